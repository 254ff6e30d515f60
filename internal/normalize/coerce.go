package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/shopspring/decimal"
)

// Float coerces a value to float64. Unparseable or missing values become nil.
func Float(v any) any {
	switch n := dataset.Normalize(v).(type) {
	case nil:
		return nil
	case int64:
		return float64(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return n
	case bool:
		if n {
			return 1.0
		}
		return 0.0
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return nil
		}
		f, _ := d.Float64()
		return f
	default:
		return nil
	}
}

// Int coerces a value to int64: non-numeric and missing values become 0,
// fractional values are rounded half to even.
func Int(v any) int64 {
	switch n := dataset.Normalize(v).(type) {
	case int64:
		return n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return decimal.NewFromFloat(n).RoundBank(0).IntPart()
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return d.RoundBank(0).IntPart()
	default:
		return 0
	}
}

// Date renders a date-like value in YYYY-MM-DD form. Values that are not
// dates are returned unchanged.
func Date(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(dataset.DateLayout)
	case string:
		d, err := dataset.ParseDate(t)
		if err != nil {
			return t
		}
		return d.Format(dataset.DateLayout)
	default:
		return v
	}
}

// IntColumn applies Int to every value of the named column
func IntColumn(ds *dataset.Dataset, name string) (*dataset.Dataset, error) {
	return mapColumn(ds, name, func(v any) any { return Int(v) })
}

// FloatColumn applies Float to every value of the named column
func FloatColumn(ds *dataset.Dataset, name string) (*dataset.Dataset, error) {
	return mapColumn(ds, name, Float)
}

// DateColumn applies Date to every value of the named column
func DateColumn(ds *dataset.Dataset, name string) (*dataset.Dataset, error) {
	return mapColumn(ds, name, Date)
}

func mapColumn(ds *dataset.Dataset, name string, fn func(any) any) (*dataset.Dataset, error) {
	i := ds.Index(name)
	if i < 0 {
		return nil, &dataset.SchemaMismatchError{Reason: "column " + quote(name) + " not found"}
	}
	out := ds.Clone()
	for j, v := range out.Columns[i].Values {
		out.Columns[i].Values[j] = fn(v)
	}
	return out, nil
}

func quote(s string) string {
	return `"` + s + `"`
}
