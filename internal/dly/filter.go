package dly

import (
	"fmt"
	"strconv"
	"strings"

	"ghcn-daily/internal/models"
)

// Operator is a filter comparison
type Operator string

const (
	OpEq Operator = "eq"
	OpNe Operator = "ne"
	OpGt Operator = "gt"
	OpLt Operator = "lt"
	OpGe Operator = "ge"
	OpLe Operator = "le"
)

var operatorAliases = map[string]Operator{
	"eq":  OpEq,
	"ne":  OpNe,
	"gt":  OpGt,
	"lt":  OpLt,
	"ge":  OpGe,
	"le":  OpLe,
	"gte": OpGe,
	"lte": OpLe,
}

// ParseOperator resolves an operator name. An empty name means eq.
func ParseOperator(name string) (Operator, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return OpEq, nil
	}
	if op, ok := operatorAliases[name]; ok {
		return op, nil
	}
	return "", &models.InvalidFilterError{
		Operator: name,
		Message:  "operator must be one of eq, ne, gt, lt, ge, le",
	}
}

// Filter is a single column predicate. Build one with NewFilter or
// ParseFilter so the value is coerced to the column type.
type Filter struct {
	Column models.Column
	Op     Operator
	Value  any
}

// NewFilter validates column, operator and value. op may be empty (eq).
func NewFilter(column string, value any, op string) (Filter, error) {
	col, err := models.ParseColumn(column)
	if err != nil {
		return Filter{}, err
	}
	operator, err := ParseOperator(op)
	if err != nil {
		return Filter{}, &models.InvalidFilterError{
			Column:   string(col),
			Operator: op,
			Message:  "operator must be one of eq, ne, gt, lt, ge, le",
		}
	}

	v, err := coerce(col, value)
	if err != nil {
		return Filter{}, &models.InvalidFilterError{
			Column:   string(col),
			Operator: string(operator),
			Message:  err.Error(),
		}
	}
	return Filter{Column: col, Op: operator, Value: v}, nil
}

// ParseFilter reads "column:op:value" or "column:value" (eq)
func ParseFilter(expr string) (Filter, error) {
	parts := strings.SplitN(expr, ":", 3)
	switch len(parts) {
	case 2:
		return NewFilter(parts[0], parts[1], "")
	case 3:
		return NewFilter(parts[0], parts[2], parts[1])
	default:
		return Filter{}, &models.InvalidFilterError{
			Column:  expr,
			Message: "expected column:op:value or column:value",
		}
	}
}

// ParseFilters parses each expression in order
func ParseFilters(exprs []string) ([]Filter, error) {
	filters := make([]Filter, 0, len(exprs))
	for _, e := range exprs {
		f, err := ParseFilter(e)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func (f Filter) String() string {
	return fmt.Sprintf("%s:%s:%v", f.Column, f.Op, f.Value)
}

// Match reports whether row satisfies the filter. Rows holding the
// sentinel never match a value predicate unless the filter value is the
// sentinel itself, in which case raw values are compared. A filter that
// NewFilter would reject matches nothing.
func (f Filter) Match(row models.Row) bool {
	n, err := f.normalize()
	if err != nil {
		return false
	}
	return n.match(row)
}

// match evaluates a normalized filter
func (f Filter) match(row models.Row) bool {
	if f.Column == models.ColumnObs {
		return compareStrings(row.Obs, f.Value.(string), f.Op)
	}

	want := f.Value.(float64)
	if f.Column == models.ColumnValue && row.Missing() && want != models.Sentinel {
		return false
	}
	return compareNumbers(numericField(row, f.Column), want, f.Op)
}

// Apply runs filters left to right, each narrowing the previous result.
// An empty filter list returns t itself. All filters are checked before
// any is applied.
func Apply(t *Table, filters []Filter) (*Table, error) {
	if len(filters) == 0 {
		return t, nil
	}

	normalized := make([]Filter, len(filters))
	for i, f := range filters {
		n, err := f.normalize()
		if err != nil {
			return nil, err
		}
		normalized[i] = n
	}

	current := t.rows
	for _, f := range normalized {
		next := make([]models.Row, 0, len(current))
		for _, row := range current {
			if f.match(row) {
				next = append(next, row)
			}
		}
		current = next
	}
	return newOwnedTable(current, t.units), nil
}

// normalize re-validates filters built as struct literals
func (f Filter) normalize() (Filter, error) {
	return NewFilter(string(f.Column), f.Value, string(f.Op))
}

func numericField(row models.Row, c models.Column) float64 {
	switch c {
	case models.ColumnYear:
		return float64(row.Year)
	case models.ColumnMonth:
		return float64(row.Month)
	case models.ColumnDay:
		return float64(row.Day)
	default:
		return row.Value
	}
}

func compareNumbers(got, want float64, op Operator) bool {
	switch op {
	case OpEq:
		return got == want
	case OpNe:
		return got != want
	case OpGt:
		return got > want
	case OpLt:
		return got < want
	case OpGe:
		return got >= want
	case OpLe:
		return got <= want
	}
	return false
}

func compareStrings(got, want string, op Operator) bool {
	switch op {
	case OpEq:
		return got == want
	case OpNe:
		return got != want
	case OpGt:
		return got > want
	case OpLt:
		return got < want
	case OpGe:
		return got >= want
	case OpLe:
		return got <= want
	}
	return false
}

// coerce normalizes a filter value: float64 for numeric columns, string for obs
func coerce(col models.Column, value any) (any, error) {
	if !col.Numeric() {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("obs column needs a string value, got %T", value)
		}
		return s, nil
	}

	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("numeric column needs a number, got %T", value)
	}
}
