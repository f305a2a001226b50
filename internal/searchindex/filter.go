package searchindex

import (
	"fmt"
	"strconv"
	"strings"
)

// Clause is a single equality predicate.
type Clause struct {
	Field string
	Value any
}

// Filter is a conjunction of equality clauses. Values are escaped once, at
// render time, so callers never build predicate strings by hand.
type Filter struct {
	clauses []Clause
}

// Eq starts a filter with field == value.
func Eq(field string, value any) *Filter {
	return (&Filter{}).And(field, value)
}

// And appends field == value.
func (f *Filter) And(field string, value any) *Filter {
	f.clauses = append(f.clauses, Clause{Field: field, Value: value})
	return f
}

// Clauses returns a copy of the clauses for backends that render their own
// query language.
func (f *Filter) Clauses() []Clause {
	if f == nil {
		return nil
	}
	out := make([]Clause, len(f.clauses))
	copy(out, f.clauses)
	return out
}

// Empty reports whether the filter has no clauses.
func (f *Filter) Empty() bool {
	return f == nil || len(f.clauses) == 0
}

// OData renders the filter as an OData $filter expression, e.g.
// tenantId eq 'T1' and fileName eq 'O''Brien.pdf'.
func (f *Filter) OData() string {
	if f.Empty() {
		return ""
	}
	parts := make([]string, 0, len(f.clauses))
	for _, c := range f.clauses {
		parts = append(parts, fmt.Sprintf("%s eq %s", c.Field, ODataLiteral(c.Value)))
	}
	return strings.Join(parts, " and ")
}

// String implements fmt.Stringer for logging.
func (f *Filter) String() string { return f.OData() }

// ODataLiteral renders a value as an OData literal; strings are single-quoted
// with embedded quotes doubled.
func ODataLiteral(v any) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(val), "'", "''") + "'"
	}
}

// Matches evaluates the filter against a document in process.
func (f *Filter) Matches(doc Document) bool {
	if f.Empty() {
		return true
	}
	for _, c := range f.clauses {
		if s, ok := doc.StringField(c.Field); ok {
			if fmt.Sprint(c.Value) != s {
				return false
			}
			continue
		}
		if n, ok := doc.IntField(c.Field); ok {
			if fmt.Sprint(c.Value) != strconv.Itoa(n) {
				return false
			}
			continue
		}
		return false
	}
	return true
}
