// Package reconcile compares two datasets and produces a verdict.
package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/dqcheck/internal/dataset"
)

// MaxDiffs caps the number of cell differences kept in a Verdict
const MaxDiffs = 50

// Status is the outcome of a comparison
type Status string

const (
	Match    Status = "MATCH"
	Mismatch Status = "MISMATCH"
)

// CellDiff is one differing cell, located in the sorted datasets
type CellDiff struct {
	Row      int
	Column   string
	Expected any
	Got      any
}

func (d CellDiff) String() string {
	return fmt.Sprintf("value mismatch at row %d, column %q: expected %s got %s",
		d.Row, d.Column, dataset.Describe(d.Expected), dataset.Describe(d.Got))
}

// Verdict is the result of Compare
type Verdict struct {
	Status Status
	Detail string
	Diffs  []CellDiff
	// Truncated is set when more than MaxDiffs cells differ
	Truncated bool
}

// OK reports whether the datasets matched
func (v Verdict) OK() bool {
	return v.Status == Match
}

func (v Verdict) String() string {
	if v.Detail == "" {
		return string(v.Status)
	}
	return fmt.Sprintf("%s: %s", v.Status, v.Detail)
}

func mismatch(detail string) Verdict {
	return Verdict{Status: Mismatch, Detail: detail}
}

// Compare checks that expected and actual hold the same rows once both are
// ordered by key, ties broken by the other columns. An empty key compares
// rows in their given order. Values are compared type-strictly. Neither input
// is modified.
func Compare(expected, actual *dataset.Dataset, key string) (Verdict, error) {
	if expected == nil || actual == nil {
		return Verdict{}, &dataset.SchemaMismatchError{Reason: "nothing to compare"}
	}
	if err := expected.Validate(); err != nil {
		return Verdict{}, fmt.Errorf("expected dataset: %w", err)
	}
	if err := actual.Validate(); err != nil {
		return Verdict{}, fmt.Errorf("actual dataset: %w", err)
	}

	want, got := expected.Names(), actual.Names()
	if !sameNames(want, got) {
		return mismatch(fmt.Sprintf("schema mismatch: expected [%s] got [%s]",
			strings.Join(want, ", "), strings.Join(got, ", "))), nil
	}

	if expected.NumRows() != actual.NumRows() {
		return mismatch(fmt.Sprintf("row count mismatch: %d != %d", expected.NumRows(), actual.NumRows())), nil
	}

	a, b := expected, actual
	if key != "" {
		var err error
		if a, err = expected.SortRows(key); err != nil {
			return Verdict{}, err
		}
		if b, err = actual.SortRows(key); err != nil {
			return Verdict{}, err
		}
	}

	v := Verdict{Status: Match}
	for _, col := range a.Columns {
		other, _ := b.Column(col.Name)
		for row, value := range col.Values {
			if dataset.Equal(value, other.Values[row]) {
				continue
			}
			if len(v.Diffs) == MaxDiffs {
				v.Truncated = true
				continue
			}
			v.Diffs = append(v.Diffs, CellDiff{Row: row, Column: col.Name, Expected: value, Got: other.Values[row]})
		}
	}

	if len(v.Diffs) > 0 {
		v.Status = Mismatch
		v.Detail = v.Diffs[0].String()
	}
	log.Debug("Compared datasets", "status", v.Status, "rows", a.NumRows(), "diffs", len(v.Diffs))
	return v, nil
}

// sameNames compares column name sets, ignoring order
func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
