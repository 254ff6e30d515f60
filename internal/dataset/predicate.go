package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Operator is a comparison used by a Predicate
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

// Predicate restricts rows by comparing one column against a value
type Predicate struct {
	Column string   `yaml:"column"`
	Op     Operator `yaml:"op"`
	Value  any      `yaml:"value"`
}

// Eq is shorthand for an equality predicate
func Eq(column string, value any) Predicate {
	return Predicate{Column: column, Op: OpEqual, Value: value}
}

// ParsePredicate parses "column<op>value", e.g. "visit_date==2025-10-29" or
// "avg_time_spent>=30". Unquoted integers, floats and booleans become int64,
// float64 and bool; quoted values and anything else stay strings.
func ParsePredicate(s string) (Predicate, error) {
	// Two-character operators first so "<=" is not read as "<"
	for _, op := range []Operator{OpEqual, OpNotEqual, OpLessEqual, OpGreaterEqual, OpLess, OpGreater} {
		if i := strings.Index(s, string(op)); i > 0 {
			return Predicate{
				Column: strings.TrimSpace(s[:i]),
				Op:     op,
				Value:  parseLiteral(strings.TrimSpace(s[i+len(op):])),
			}, nil
		}
	}
	return Predicate{}, fmt.Errorf("invalid predicate %q", s)
}

func parseLiteral(s string) any {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

// Validate checks the operator
func (p Predicate) Validate() error {
	switch p.Op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return nil
	case "":
		return fmt.Errorf("predicate on %q has no operator", p.Column)
	default:
		return fmt.Errorf("predicate on %q has unknown operator %q", p.Column, p.Op)
	}
}

// Match evaluates the predicate against a cell value.
// Equality is type-strict; ordering uses CompareValues.
func (p Predicate) Match(v any) bool {
	v, want := alignDates(v, Normalize(p.Value))
	switch p.Op {
	case OpEqual:
		return Equal(v, want)
	case OpNotEqual:
		return !Equal(v, want)
	}

	// Nulls never satisfy an ordering
	if v == nil || want == nil {
		return false
	}
	c := CompareValues(v, want)
	switch p.Op {
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

// alignDates parses the string side when a date is compared with a string,
// so "2025-10-29" in a file matches a date value and the other way round.
// Other types stay strict.
func alignDates(v, want any) (any, any) {
	switch w := want.(type) {
	case time.Time:
		if s, ok := v.(string); ok {
			if t, err := ParseDate(s); err == nil {
				return t, w
			}
		}
	case string:
		if _, ok := v.(time.Time); ok {
			if t, err := ParseDate(w); err == nil {
				return v, t
			}
		}
	}
	return v, want
}

// MatchString evaluates the predicate against a raw string such as a
// partition folder value, parsing it into the type of the predicate value.
func (p Predicate) MatchString(s string) (bool, error) {
	v, err := CoerceLike(s, Normalize(p.Value))
	if err != nil {
		return false, err
	}
	return p.Match(v), nil
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Column, p.Op, Format(p.Value))
}
