package dataset

import (
	"fmt"
	"sort"
)

// Column is a named, ordered sequence of cell values.
// Values are nil, string, int64, float64, bool or time.Time.
type Column struct {
	Name   string
	Values []any
}

// Dataset is an ordered set of named columns.
// Operations that transform a Dataset return a new one and never modify the receiver.
type Dataset struct {
	Columns []Column
}

// New creates a dataset from the given columns, copying their values
func New(columns ...Column) *Dataset {
	ds := &Dataset{Columns: make([]Column, 0, len(columns))}
	for _, c := range columns {
		ds.Columns = append(ds.Columns, Column{Name: c.Name, Values: append([]any(nil), c.Values...)})
	}
	return ds
}

// FromStrings builds a dataset of string columns in the given label order
func FromStrings(labels []string, values map[string][]string) *Dataset {
	ds := &Dataset{Columns: make([]Column, 0, len(labels))}
	for _, label := range labels {
		raw := values[label]
		vals := make([]any, len(raw))
		for i, v := range raw {
			vals[i] = v
		}
		ds.Columns = append(ds.Columns, Column{Name: label, Values: vals})
	}
	return ds
}

// Names returns the column names in order
func (d *Dataset) Names() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column or -1
func (d *Dataset) Index(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column
func (d *Dataset) Column(name string) (Column, bool) {
	i := d.Index(name)
	if i < 0 {
		return Column{}, false
	}
	return d.Columns[i], true
}

// NumRows returns the row count. For a ragged dataset it is the length of the longest column.
func (d *Dataset) NumRows() int {
	n := 0
	for _, c := range d.Columns {
		if len(c.Values) > n {
			n = len(c.Values)
		}
	}
	return n
}

// IsEmpty reports whether the dataset has no rows
func (d *Dataset) IsEmpty() bool {
	return d.NumRows() == 0
}

// Validate checks that all columns have equal length
func (d *Dataset) Validate() error {
	if len(d.Columns) == 0 {
		return nil
	}
	want := len(d.Columns[0].Values)
	for _, c := range d.Columns[1:] {
		if len(c.Values) != want {
			return &SchemaMismatchError{
				Reason: fmt.Sprintf("column %q has %d values, column %q has %d",
					d.Columns[0].Name, want, c.Name, len(c.Values)),
			}
		}
	}
	return nil
}

// Row returns the values of row i in column order
func (d *Dataset) Row(i int) []any {
	row := make([]any, len(d.Columns))
	for j, c := range d.Columns {
		if i < len(c.Values) {
			row[j] = c.Values[i]
		}
	}
	return row
}

// Clone returns a deep copy of the column structure
func (d *Dataset) Clone() *Dataset {
	return New(d.Columns...)
}

// Select returns a dataset with only the named columns, in the given order
func (d *Dataset) Select(names ...string) (*Dataset, error) {
	out := &Dataset{Columns: make([]Column, 0, len(names))}
	for _, name := range names {
		c, ok := d.Column(name)
		if !ok {
			return nil, &SchemaMismatchError{Reason: fmt.Sprintf("column %q not found in %v", name, d.Names())}
		}
		out.Columns = append(out.Columns, Column{Name: c.Name, Values: append([]any(nil), c.Values...)})
	}
	return out, nil
}

// Rename returns a copy with columns renamed according to mapping.
// Names not in the mapping are kept.
func (d *Dataset) Rename(mapping map[string]string) *Dataset {
	out := d.Clone()
	for i, c := range out.Columns {
		if to, ok := mapping[c.Name]; ok {
			out.Columns[i].Name = to
		}
	}
	return out
}

// Filter returns the rows matching every predicate
func (d *Dataset) Filter(preds ...Predicate) (*Dataset, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	idx := make([]int, len(preds))
	for i, p := range preds {
		idx[i] = d.Index(p.Column)
		if idx[i] < 0 {
			return nil, &SchemaMismatchError{Reason: fmt.Sprintf("filter column %q not found in %v", p.Column, d.Names())}
		}
	}

	var keep []int
	for row := 0; row < d.NumRows(); row++ {
		ok := true
		for i, p := range preds {
			if !p.Match(d.Columns[idx[i]].Values[row]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, row)
		}
	}
	return d.take(keep), nil
}

// SortBy returns a copy with rows stably sorted ascending by the named column
func (d *Dataset) SortBy(name string) (*Dataset, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	key := d.Index(name)
	if key < 0 {
		return nil, &SchemaMismatchError{Reason: fmt.Sprintf("sort column %q not found in %v", name, d.Names())}
	}

	order := make([]int, d.NumRows())
	for i := range order {
		order[i] = i
	}
	values := d.Columns[key].Values
	sort.SliceStable(order, func(i, j int) bool {
		return CompareValues(values[order[i]], values[order[j]]) < 0
	})
	return d.take(order), nil
}

// SortRows returns a copy with rows sorted ascending by key, ties broken by
// the other columns taken in name order. Datasets holding the same rows in
// any order sort to the same sequence.
func (d *Dataset) SortRows(key string) (*Dataset, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	k := d.Index(key)
	if k < 0 {
		return nil, &SchemaMismatchError{Reason: fmt.Sprintf("sort column %q not found in %v", key, d.Names())}
	}

	cols := []int{k}
	rest := make([]int, 0, len(d.Columns)-1)
	for i := range d.Columns {
		if i != k {
			rest = append(rest, i)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return d.Columns[rest[i]].Name < d.Columns[rest[j]].Name
	})
	cols = append(cols, rest...)

	order := make([]int, d.NumRows())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		for _, c := range cols {
			values := d.Columns[c].Values
			if n := CompareValues(values[order[i]], values[order[j]]); n != 0 {
				return n < 0
			}
		}
		return false
	})
	return d.take(order), nil
}

// Append adds the rows of other, matching columns by name.
// Columns missing from one side are filled with nil.
func (d *Dataset) Append(other *Dataset) *Dataset {
	out := d.Clone()
	before := out.NumRows()
	for _, c := range other.Columns {
		if out.Index(c.Name) < 0 {
			out.Columns = append(out.Columns, Column{Name: c.Name, Values: make([]any, before)})
		}
	}
	for i, c := range out.Columns {
		if src, ok := other.Column(c.Name); ok {
			out.Columns[i].Values = append(out.Columns[i].Values, src.Values...)
		} else {
			out.Columns[i].Values = append(out.Columns[i].Values, make([]any, other.NumRows())...)
		}
	}
	return out
}

// take builds a new dataset from the given row positions
func (d *Dataset) take(rows []int) *Dataset {
	out := &Dataset{Columns: make([]Column, len(d.Columns))}
	for j, c := range d.Columns {
		vals := make([]any, len(rows))
		for i, r := range rows {
			vals[i] = c.Values[r]
		}
		out.Columns[j] = Column{Name: c.Name, Values: vals}
	}
	return out
}
