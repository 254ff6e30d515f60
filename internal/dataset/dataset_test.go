package dataset

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func facilities() *Dataset {
	return New(
		Column{Name: "facility_type", Values: []any{"ICU", "ER", "Lab"}},
		Column{Name: "visit_date", Values: []any{"2025-10-29", "2025-10-29", "2025-10-28"}},
		Column{Name: "avg_time_spent", Values: []any{int64(45), int64(30), int64(12)}},
	)
}

func TestSortByIsStableAndDoesNotMutate(t *testing.T) {
	ds := New(
		Column{Name: "k", Values: []any{"b", "a", "b", "a"}},
		Column{Name: "n", Values: []any{int64(1), int64(2), int64(3), int64(4)}},
	)

	sorted, err := ds.SortBy("k")
	require.NoError(t, err)

	assert.Equal(t, []any{"a", "a", "b", "b"}, sorted.Columns[0].Values)
	assert.Equal(t, []any{int64(2), int64(4), int64(1), int64(3)}, sorted.Columns[1].Values)

	// The receiver keeps its original order
	assert.Equal(t, []any{"b", "a", "b", "a"}, ds.Columns[0].Values)
}

func TestSortByMissingColumn(t *testing.T) {
	_, err := facilities().SortBy("nope")

	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Contains(t, mismatch.Error(), `"nope"`)
}

func TestValidateRagged(t *testing.T) {
	ds := New(
		Column{Name: "a", Values: []any{"1", "2"}},
		Column{Name: "b", Values: []any{"1"}},
	)

	err := ds.Validate()
	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 2, ds.NumRows())

	_, err = ds.SortBy("a")
	assert.Error(t, err)
	_, err = ds.Filter(Eq("a", "1"))
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	testCases := []struct {
		name  string
		preds []Predicate
		want  []any
	}{
		{
			name:  "exact date",
			preds: []Predicate{Eq("visit_date", "2025-10-29")},
			want:  []any{"ICU", "ER"},
		},
		{
			name:  "yaml int value",
			preds: []Predicate{{Column: "avg_time_spent", Op: OpGreaterEqual, Value: 30}},
			want:  []any{"ICU", "ER"},
		},
		{
			name:  "type strict equality",
			preds: []Predicate{Eq("avg_time_spent", "45")},
			want:  []any{},
		},
		{
			name: "combined",
			preds: []Predicate{
				Eq("visit_date", "2025-10-29"),
				{Column: "avg_time_spent", Op: OpLess, Value: int64(40)},
			},
			want: []any{"ER"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := facilities().Filter(tc.preds...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Columns[0].Values)
		})
	}
}

func TestSelectAndRename(t *testing.T) {
	ds := facilities()

	sel, err := ds.Select("avg_time_spent", "facility_type")
	require.NoError(t, err)
	assert.Equal(t, []string{"avg_time_spent", "facility_type"}, sel.Names())

	renamed := sel.Rename(map[string]string{"avg_time_spent": "average_time_spent"})
	assert.Equal(t, []string{"average_time_spent", "facility_type"}, renamed.Names())
	assert.Equal(t, []string{"avg_time_spent", "facility_type"}, sel.Names())

	_, err = ds.Select("missing")
	assert.Error(t, err)
}

func TestAppendPadsMissingColumns(t *testing.T) {
	a := New(Column{Name: "x", Values: []any{"1"}})
	b := New(Column{Name: "y", Values: []any{"2", "3"}})

	out := a.Append(b)
	require.NoError(t, out.Validate())
	assert.Equal(t, []any{"1", nil, nil}, out.Columns[0].Values)
	assert.Equal(t, []any{nil, "2", "3"}, out.Columns[1].Values)
}

func TestCompareValues(t *testing.T) {
	day := time.Date(2025, 10, 29, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, -1, CompareValues(nil, "a"))
	assert.Equal(t, 0, CompareValues(int64(2), 2.0))
	assert.Equal(t, 1, CompareValues(2.5, int64(2)))
	assert.Equal(t, -1, CompareValues(day, day.AddDate(0, 0, 1)))
	assert.Equal(t, -1, CompareValues("ER", "ICU"))
	assert.Equal(t, -1, CompareValues(int64(9), "1"))
}

func TestEqualIsTypeStrict(t *testing.T) {
	assert.True(t, Equal(int64(5), int64(5)))
	assert.False(t, Equal(int64(5), "5"))
	assert.False(t, Equal(int64(5), 5.0))
	assert.True(t, Equal(nil, nil))
	assert.Equal(t, `string("5")`, Describe("5"))
	assert.Equal(t, "int64(5)", Describe(int64(5)))
}

func TestParsePredicate(t *testing.T) {
	testCases := []struct {
		in   string
		want Predicate
	}{
		{"visit_date==2025-10-29", Predicate{Column: "visit_date", Op: OpEqual, Value: "2025-10-29"}},
		{"avg <= 10", Predicate{Column: "avg", Op: OpLessEqual, Value: int64(10)}},
		{"avg>29.5", Predicate{Column: "avg", Op: OpGreater, Value: 29.5}},
		{"facility_type != ICU", Predicate{Column: "facility_type", Op: OpNotEqual, Value: "ICU"}},
		{`code=="45"`, Predicate{Column: "code", Op: OpEqual, Value: "45"}},
		{"active==true", Predicate{Column: "active", Op: OpEqual, Value: true}},
		{"grade==f", Predicate{Column: "grade", Op: OpEqual, Value: "f"}},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			p, err := ParsePredicate(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p)
		})
	}

	_, err := ParsePredicate("no operator")
	assert.Error(t, err)
}

func TestParsedPredicateFilters(t *testing.T) {
	p, err := ParsePredicate("avg_time_spent>=30")
	require.NoError(t, err)

	out, err := facilities().Filter(p)
	require.NoError(t, err)
	assert.Equal(t, []any{"ICU", "ER"}, out.Columns[0].Values)
}

func TestMatchAlignsDates(t *testing.T) {
	day := time.Date(2025, 10, 29, 0, 0, 0, 0, time.UTC)

	// String dates in a file against a date value
	assert.True(t, Eq("visit_date", day).Match("2025-10-29"))
	assert.True(t, Eq("visit_date", day).Match("2025-10-29T00:00:00Z"))
	assert.False(t, Eq("visit_date", day).Match("2025-10-28"))
	assert.False(t, Eq("visit_date", day).Match("not a date"))
	assert.True(t, Predicate{Column: "visit_date", Op: OpGreater, Value: day}.Match("2025-10-30"))

	// Date cells against a string value
	assert.True(t, Eq("visit_date", "2025-10-29").Match(day))
	assert.False(t, Eq("visit_date", "ICU").Match(day))

	out, err := facilities().Filter(Eq("visit_date", day))
	require.NoError(t, err)
	assert.Equal(t, []any{"ICU", "ER"}, out.Columns[0].Values)
}

func TestSortRowsBreaksTies(t *testing.T) {
	a := New(
		Column{Name: "facility_type", Values: []any{"ICU", "ICU", "ER"}},
		Column{Name: "visit_date", Values: []any{"2025-10-28", "2025-10-29", "2025-10-29"}},
	)
	b := New(
		Column{Name: "visit_date", Values: []any{"2025-10-29", "2025-10-29", "2025-10-28"}},
		Column{Name: "facility_type", Values: []any{"ICU", "ER", "ICU"}},
	)

	sa, err := a.SortRows("facility_type")
	require.NoError(t, err)
	sb, err := b.SortRows("facility_type")
	require.NoError(t, err)

	assert.Equal(t, []any{"ER", "ICU", "ICU"}, sa.Columns[0].Values)
	assert.Equal(t, []any{"2025-10-29", "2025-10-28", "2025-10-29"}, sa.Columns[1].Values)
	assert.Equal(t, []any{"2025-10-29", "2025-10-28", "2025-10-29"}, sb.Columns[0].Values)
	assert.Equal(t, []any{"ER", "ICU", "ICU"}, sb.Columns[1].Values)

	// Receiver untouched
	assert.Equal(t, []any{"ICU", "ICU", "ER"}, a.Columns[0].Values)

	_, err = a.SortRows("nope")
	var mismatch *SchemaMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestMatchString(t *testing.T) {
	p := Eq("visit_date", time.Date(2025, 10, 29, 0, 0, 0, 0, time.UTC))

	ok, err := p.MatchString("2025-10-29")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.MatchString("2025-10-29 00:00:00")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = p.MatchString("yesterday")
	assert.Error(t, err)
}
