package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpGe       Operator = "ge"
	OpLt       Operator = "lt"
	OpLe       Operator = "le"
	OpContains Operator = "contains"
)

// GUID is written unquoted in filters.
type GUID string

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func Eq(field string, value any) Condition {
	return Condition{Field: field, Operator: OpEq, Value: value}
}

func Ne(field string, value any) Condition {
	return Condition{Field: field, Operator: OpNe, Value: value}
}

func Gt(field string, value any) Condition {
	return Condition{Field: field, Operator: OpGt, Value: value}
}

func Ge(field string, value any) Condition {
	return Condition{Field: field, Operator: OpGe, Value: value}
}

func Lt(field string, value any) Condition {
	return Condition{Field: field, Operator: OpLt, Value: value}
}

func Le(field string, value any) Condition {
	return Condition{Field: field, Operator: OpLe, Value: value}
}

func Contains(field string, value string) Condition {
	return Condition{Field: field, Operator: OpContains, Value: value}
}

func (c Condition) String() string {
	if c.Operator == OpContains {
		return fmt.Sprintf("contains(%s,%s)", c.Field, FormatValue(c.Value))
	}
	return fmt.Sprintf("%s %s %s", c.Field, c.Operator, FormatValue(c.Value))
}

// Query is a structured OData read. Conditions are joined with "and".
type Query struct {
	EntitySet string
	Select    []string
	Filter    []Condition
	Expand    []string
	OrderBy   []string
	Top       int
}

// String renders "<set>?$select=..&$filter=..". Option values are percent
// encoded; option names are kept literal.
func (q Query) String() string {
	options := make([]string, 0, 5)
	if len(q.Select) > 0 {
		options = append(options, "$select="+escapeOption(strings.Join(q.Select, ",")))
	}
	if len(q.Filter) > 0 {
		parts := make([]string, 0, len(q.Filter))
		for _, condition := range q.Filter {
			parts = append(parts, condition.String())
		}
		options = append(options, "$filter="+escapeOption(strings.Join(parts, " and ")))
	}
	if len(q.Expand) > 0 {
		options = append(options, "$expand="+escapeOption(strings.Join(q.Expand, ",")))
	}
	if len(q.OrderBy) > 0 {
		options = append(options, "$orderby="+escapeOption(strings.Join(q.OrderBy, ",")))
	}
	if q.Top > 0 {
		options = append(options, "$top="+strconv.Itoa(q.Top))
	}
	if len(options) == 0 {
		return q.EntitySet
	}
	return q.EntitySet + "?" + strings.Join(options, "&")
}

// FormatValue renders an OData literal.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return "'" + strings.ReplaceAll(typed, "'", "''") + "'"
	case GUID:
		return string(typed)
	case uuid.UUID:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case int:
		return strconv.Itoa(typed)
	case int32:
		return strconv.FormatInt(int64(typed), 10)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case decimal.Decimal:
		return typed.String()
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return "'" + strings.ReplaceAll(typed.String(), "'", "''") + "'"
	default:
		return fmt.Sprint(typed)
	}
}

// EntityPath renders "<set>(<id>)".
func EntityPath(entitySet string, id string) string {
	return fmt.Sprintf("%s(%s)", strings.TrimSpace(entitySet), strings.Trim(strings.TrimSpace(id), "{}"))
}

func escapeOption(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}
