// Package quality holds data-quality checks over datasets. Each check
// returns nil when the data passes and a *CheckError describing the
// first problem otherwise.
package quality

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/go-scripts/dqcheck/internal/normalize"
	"github.com/go-scripts/dqcheck/internal/reconcile"
)

// CheckError is a failed data-quality check
type CheckError struct {
	Check  string
	Detail string
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%s: %s", e.Check, e.Detail)
}

func fail(check, format string, args ...any) error {
	return &CheckError{Check: check, Detail: fmt.Sprintf(format, args...)}
}

// NotEmpty fails on a dataset without rows
func NotEmpty(ds *dataset.Dataset) error {
	if ds == nil || ds.IsEmpty() {
		return fail("not_empty", "dataset is empty")
	}
	return nil
}

// NoDuplicates fails when two rows share the same values in cols, or in
// every column when cols is empty.
func NoDuplicates(ds *dataset.Dataset, cols ...string) error {
	sub := ds
	if len(cols) > 0 {
		var err error
		if sub, err = ds.Select(cols...); err != nil {
			return err
		}
	} else {
		cols = []string{"all columns"}
	}
	if err := sub.Validate(); err != nil {
		return err
	}

	seen := make(map[string]int, sub.NumRows())
	for i := 0; i < sub.NumRows(); i++ {
		k := rowKey(sub.Row(i))
		if first, ok := seen[k]; ok {
			return fail("no_duplicates", "found duplicate rows in %s: rows %d and %d", strings.Join(cols, ", "), first, i)
		}
		seen[k] = i
	}
	return nil
}

func rowKey(row []any) string {
	var b strings.Builder
	for _, v := range row {
		b.WriteString(dataset.Describe(v))
		b.WriteByte(0)
	}
	return b.String()
}

// SameCount fails when the datasets have a different number of rows
func SameCount(a, b *dataset.Dataset) error {
	if a.NumRows() != b.NumRows() {
		return fail("count", "row count mismatch: %d != %d", a.NumRows(), b.NumRows())
	}
	return nil
}

// FullDataSet fails unless both datasets hold the same rows in the same order
func FullDataSet(a, b *dataset.Dataset) error {
	v, err := reconcile.Compare(a, b, "")
	if err != nil {
		return err
	}
	if !v.OK() {
		return fail("full_data_set", "%s", v.Detail)
	}
	return nil
}

// NotNull fails when any of cols, or any column when cols is empty, holds a
// null or empty value.
func NotNull(ds *dataset.Dataset, cols ...string) error {
	if len(cols) == 0 {
		cols = ds.Names()
	}
	for _, name := range cols {
		c, ok := ds.Column(name)
		if !ok {
			return &dataset.SchemaMismatchError{Reason: fmt.Sprintf("column %q not found", name)}
		}
		for i, v := range c.Values {
			if v == nil || v == "" {
				return fail("not_null", "null values found in column %s at row %d", name, i)
			}
		}
	}
	return nil
}

// Schema fails unless the dataset has exactly the expected columns in order
func Schema(ds *dataset.Dataset, expected ...string) error {
	if actual := ds.Names(); !slices.Equal(actual, expected) {
		return fail("schema", "schema mismatch: [%s] != [%s]", strings.Join(actual, ", "), strings.Join(expected, ", "))
	}
	return nil
}

// Range fails when a value of col is not numeric or lies outside [min, max]
func Range(ds *dataset.Dataset, col string, min, max float64) error {
	c, ok := ds.Column(col)
	if !ok {
		return &dataset.SchemaMismatchError{Reason: fmt.Sprintf("column %q not found", col)}
	}
	for i, v := range c.Values {
		f, ok := normalize.Float(v).(float64)
		if !ok {
			return fail("range", "non-numeric value %s in column %s at row %d", dataset.Describe(v), col, i)
		}
		if f < min || f > max {
			return fail("range", "invalid %s %s at row %d, want %s to %s", col, dataset.Format(v), i,
				dataset.Format(min), dataset.Format(max))
		}
	}
	return nil
}

// Pattern fails when a value of col does not match re
func Pattern(ds *dataset.Dataset, col string, re *regexp.Regexp) error {
	c, ok := ds.Column(col)
	if !ok {
		return &dataset.SchemaMismatchError{Reason: fmt.Sprintf("column %q not found", col)}
	}
	for i, v := range c.Values {
		s := dataset.Format(v)
		if !re.MatchString(s) {
			return fail("pattern", "invalid %s format: %q at row %d", col, s, i)
		}
	}
	return nil
}

// ValueAt fails unless every row where keyCol equals key has want in col
func ValueAt(ds *dataset.Dataset, keyCol string, key any, col string, want any) error {
	rows, err := ds.Filter(dataset.Eq(keyCol, key))
	if err != nil {
		return err
	}
	c, ok := rows.Column(col)
	if !ok {
		return &dataset.SchemaMismatchError{Reason: fmt.Sprintf("column %q not found", col)}
	}
	if len(c.Values) == 0 {
		return fail("value", "no row with %s=%s", keyCol, dataset.Format(key))
	}
	for _, v := range c.Values {
		if !dataset.Equal(v, dataset.Normalize(want)) {
			return fail("value", "expected %s=%s for %s=%s, got %s", col, dataset.Describe(want), keyCol,
				dataset.Format(key), dataset.Describe(v))
		}
	}
	return nil
}
