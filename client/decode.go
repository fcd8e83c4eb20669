package client

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/url"

	"github.com/goliatone/go-processes/core"
)

const maxFollowedPages = 1000

type collectionEnvelope[T any] struct {
	Value    *[]T   `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// CheckStatus turns a non-2xx response into a RemoteCallFailed error that
// carries the status and the body.
func CheckStatus(res Response, uri string) error {
	if res.Successful() {
		return nil
	}
	return core.RemoteCallFailed(res.StatusCode, uri, res.Body)
}

// DecodeCollection reads the records of an OData collection response.
func DecodeCollection[T any](res Response) ([]T, error) {
	var envelope collectionEnvelope[T]
	if err := json.Unmarshal(res.Body, &envelope); err != nil {
		return nil, core.DeserializationFailed(err, "collection")
	}
	if envelope.Value == nil {
		return nil, core.DeserializationFailed(nil, "collection")
	}
	return *envelope.Value, nil
}

func DecodeEntity[T any](res Response) (T, error) {
	var out T
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return out, core.DeserializationFailed(err, "entity")
	}
	return out, nil
}

// RetrieveAll follows @odata.nextLink and merges every page into one
// collection response. The first non-2xx page is returned as is.
func (c *Client) RetrieveAll(ctx context.Context, identity core.ServiceIdentity, query string, opts ...RetrieveOption) (Response, error) {
	merged := make([]json.RawMessage, 0)
	next := query
	var last Response
	for page := 0; next != ""; page++ {
		if page >= maxFollowedPages {
			return Response{}, core.InternalError("client: too many result pages for " + query)
		}
		res, err := c.Retrieve(ctx, identity, next, opts...)
		if err != nil {
			return Response{}, err
		}
		if !res.Successful() {
			return res, nil
		}
		var envelope collectionEnvelope[json.RawMessage]
		if err := json.Unmarshal(res.Body, &envelope); err != nil || envelope.Value == nil {
			return Response{}, core.DeserializationFailed(err, "collection")
		}
		merged = append(merged, (*envelope.Value)...)
		next = envelope.NextLink
		last = res
	}
	body, err := json.Marshal(map[string]any{"value": merged})
	if err != nil {
		return Response{}, core.InternalError("client: merge pages: " + err.Error())
	}
	return Response{
		StatusCode: http.StatusOK,
		Headers:    last.Headers,
		Body:       body,
		Metadata:   last.Metadata,
	}, nil
}

type fetchEnvelope struct {
	Value        *[]json.RawMessage `json:"value"`
	PagingCookie string             `json:"@Microsoft.Dynamics.CRM.fetchxmlpagingcookie"`
	MoreRecords  bool               `json:"@Microsoft.Dynamics.CRM.morerecords"`
}

// RetrieveAllFetch runs a FetchXML query and follows the paging cookie while
// the server reports more records, merging every page into one collection
// response. The first non-2xx page is returned as is.
func (c *Client) RetrieveAllFetch(ctx context.Context, identity core.ServiceIdentity, query FetchQuery, opts ...RetrieveOption) (Response, error) {
	merged := make([]json.RawMessage, 0)
	opts = append(opts[:len(opts):len(opts)], withFetchPaging())
	query.Page = 1
	query.PagingCookie = ""
	var last Response
	for {
		if query.Page > maxFollowedPages {
			return Response{}, core.InternalError("client: too many fetch pages for " + query.EntitySet)
		}
		uri, err := query.URI()
		if err != nil {
			return Response{}, err
		}
		res, err := c.Retrieve(ctx, identity, uri, opts...)
		if err != nil {
			return Response{}, err
		}
		if !res.Successful() {
			return res, nil
		}
		var envelope fetchEnvelope
		if err := json.Unmarshal(res.Body, &envelope); err != nil || envelope.Value == nil {
			return Response{}, core.DeserializationFailed(err, "collection")
		}
		merged = append(merged, (*envelope.Value)...)
		last = res
		if !envelope.MoreRecords {
			break
		}
		query.Page++
		query.PagingCookie = pagingCookieValue(envelope.PagingCookie)
	}
	body, err := json.Marshal(map[string]any{"value": merged})
	if err != nil {
		return Response{}, core.InternalError("client: merge pages: " + err.Error())
	}
	return Response{
		StatusCode: http.StatusOK,
		Headers:    last.Headers,
		Body:       body,
		Metadata:   last.Metadata,
	}, nil
}

// pagingCookieValue extracts the pagingcookie attribute from the
// <cookie .../> annotation. The attribute arrives URL-encoded twice. An
// unreadable annotation yields "", which still pages by number.
func pagingCookieValue(annotation string) string {
	var cookie struct {
		Value string `xml:"pagingcookie,attr"`
	}
	if err := xml.Unmarshal([]byte(annotation), &cookie); err != nil {
		return ""
	}
	value := cookie.Value
	for range 2 {
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return ""
		}
		value = decoded
	}
	return value
}
