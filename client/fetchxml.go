package client

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/goliatone/go-processes/core"
)

// FetchQuery is a structured FetchXML read, used where OData filters cannot
// express the join.
type FetchQuery struct {
	Entity     string
	EntitySet  string
	Attributes []string
	Filter     FetchFilter
	Orders     []FetchOrder
	Links      []FetchLink
	Count      int
	Distinct   bool
	// Page and PagingCookie select a later page; RetrieveAllFetch sets them.
	Page         int
	PagingCookie string
}

type FetchFilter struct {
	Type       string
	Conditions []FetchCondition
}

type FetchCondition struct {
	Attribute string
	Operator  string
	Value     string
	Values    []string
}

type FetchOrder struct {
	Attribute  string
	Descending bool
}

type FetchLink struct {
	Name       string
	From       string
	To         string
	Alias      string
	LinkType   string
	Attributes []string
	Filter     FetchFilter
}

type fetchDocument struct {
	XMLName  xml.Name    `xml:"fetch"`
	Version  string      `xml:"version,attr"`
	Mapping  string      `xml:"mapping,attr"`
	Distinct string      `xml:"distinct,attr,omitempty"`
	Count    string      `xml:"count,attr,omitempty"`
	Page     string      `xml:"page,attr,omitempty"`
	Cookie   string      `xml:"paging-cookie,attr,omitempty"`
	Entity   fetchEntity `xml:"entity"`
}

type fetchEntity struct {
	Name       string           `xml:"name,attr"`
	Attributes []fetchAttribute `xml:"attribute"`
	Orders     []fetchOrder     `xml:"order"`
	Filter     *fetchFilter     `xml:"filter"`
	Links      []fetchLink      `xml:"link-entity"`
}

type fetchAttribute struct {
	Name string `xml:"name,attr"`
}

type fetchOrder struct {
	Attribute  string `xml:"attribute,attr"`
	Descending bool   `xml:"descending,attr"`
}

type fetchFilter struct {
	Type       string           `xml:"type,attr"`
	Conditions []fetchCondition `xml:"condition"`
}

type fetchCondition struct {
	Attribute string       `xml:"attribute,attr"`
	Operator  string       `xml:"operator,attr"`
	Value     string       `xml:"value,attr,omitempty"`
	Values    []fetchValue `xml:"value"`
}

type fetchValue struct {
	Text string `xml:",chardata"`
}

type fetchLink struct {
	Name       string           `xml:"name,attr"`
	From       string           `xml:"from,attr"`
	To         string           `xml:"to,attr"`
	Alias      string           `xml:"alias,attr,omitempty"`
	LinkType   string           `xml:"link-type,attr,omitempty"`
	Attributes []fetchAttribute `xml:"attribute"`
	Filter     *fetchFilter     `xml:"filter"`
}

func (q FetchQuery) XML() (string, error) {
	if strings.TrimSpace(q.Entity) == "" {
		return "", core.ValidationFailed("entity", "fetch entity is required")
	}
	doc := fetchDocument{
		Version: "1.0",
		Mapping: "logical",
		Entity: fetchEntity{
			Name:       q.Entity,
			Attributes: toFetchAttributes(q.Attributes),
			Filter:     toFetchFilter(q.Filter),
		},
	}
	if q.Distinct {
		doc.Distinct = "true"
	}
	if q.Count > 0 {
		doc.Count = strconv.Itoa(q.Count)
	}
	if q.Page > 1 {
		doc.Page = strconv.Itoa(q.Page)
		doc.Cookie = q.PagingCookie
	}
	for _, order := range q.Orders {
		doc.Entity.Orders = append(doc.Entity.Orders, fetchOrder{Attribute: order.Attribute, Descending: order.Descending})
	}
	for _, link := range q.Links {
		doc.Entity.Links = append(doc.Entity.Links, fetchLink{
			Name:       link.Name,
			From:       link.From,
			To:         link.To,
			Alias:      link.Alias,
			LinkType:   link.LinkType,
			Attributes: toFetchAttributes(link.Attributes),
			Filter:     toFetchFilter(link.Filter),
		})
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", core.ValidationFailed("fetch", "fetch query is not serializable: "+err.Error())
	}
	return string(out), nil
}

// URI renders "<set>?fetchXml=<encoded>".
func (q FetchQuery) URI() (string, error) {
	if strings.TrimSpace(q.EntitySet) == "" {
		return "", core.ValidationFailed("entitySet", "fetch entity set is required")
	}
	document, err := q.XML()
	if err != nil {
		return "", err
	}
	return q.EntitySet + "?fetchXml=" + escapeOption(document), nil
}

func toFetchAttributes(names []string) []fetchAttribute {
	out := make([]fetchAttribute, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, fetchAttribute{Name: name})
		}
	}
	return out
}

func toFetchFilter(filter FetchFilter) *fetchFilter {
	if len(filter.Conditions) == 0 {
		return nil
	}
	kind := strings.ToLower(strings.TrimSpace(filter.Type))
	if kind == "" {
		kind = "and"
	}
	out := &fetchFilter{Type: kind}
	for _, condition := range filter.Conditions {
		converted := fetchCondition{
			Attribute: condition.Attribute,
			Operator:  condition.Operator,
			Value:     condition.Value,
		}
		for _, value := range condition.Values {
			converted.Values = append(converted.Values, fetchValue{Text: value})
		}
		out.Conditions = append(out.Conditions, converted)
	}
	return out
}
