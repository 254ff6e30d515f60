package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical string form of date values
const DateLayout = "2006-01-02"

// kind ranks value types so that values of different types still sort deterministically
func kind(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

// CompareValues orders two cell values. nil sorts first, numbers compare
// numerically across int64 and float64, other mixed types order by kind.
func CompareValues(a, b any) int {
	ka, kb := kind(a), kind(b)
	if ka != kb {
		if ka < kb {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case nil:
		return 0
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case int64, float64:
		x, y := toFloat(a), toFloat(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case time.Time:
		return av.Compare(b.(time.Time))
	case string:
		return strings.Compare(av, b.(string))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

// Equal reports whether two cell values are equal in both type and value
func Equal(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return fmt.Sprintf("%T:%v", a, a) == fmt.Sprintf("%T:%v", b, b)
	}
}

// TypeName returns a short name for the value's type, used in diff messages
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case int64:
		return "int64"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case time.Time:
		return "date"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Format renders a cell value for display and CSV output
func Format(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case int64:
		return strconv.FormatInt(tv, 10)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	case time.Time:
		if tv.Hour() == 0 && tv.Minute() == 0 && tv.Second() == 0 && tv.Nanosecond() == 0 {
			return tv.Format(DateLayout)
		}
		return tv.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Describe renders a value together with its type, e.g. int64(5) or string("5")
func Describe(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return fmt.Sprintf("string(%q)", s)
	}
	return fmt.Sprintf("%s(%s)", TypeName(v), Format(v))
}

// CoerceLike parses s into the type of like so it can be compared with it
func CoerceLike(s string, like any) (any, error) {
	switch like.(type) {
	case nil, string:
		return s, nil
	case int64:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case float64:
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	case bool:
		return strconv.ParseBool(strings.TrimSpace(s))
	case time.Time:
		return ParseDate(s)
	default:
		return nil, fmt.Errorf("cannot coerce %q to %T", s, like)
	}
}

// ParseDate accepts a date or a timestamp and returns the UTC date at midnight
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{DateLayout, "2006-01-02 15:04:05", time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// Normalize converts Go numeric types to the int64/float64 cell types
// (values decoded from YAML arrive as int or float64).
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
