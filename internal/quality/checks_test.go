package quality

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/dqcheck/internal/dataset"
)

func players() *dataset.Dataset {
	return dataset.FromStrings(
		[]string{"id", "name", "age", "email", "is_active"},
		map[string][]string{
			"id":        {"1", "2", "3"},
			"name":      {"Ann", "Bob", "Cid"},
			"age":       {"30", "45", "101"},
			"email":     {"ann@example.com", "bob@example", "cid@example.com"},
			"is_active": {"False", "True", "True"},
		},
	)
}

func checkName(t *testing.T, err error) string {
	t.Helper()
	var checkErr *CheckError
	require.True(t, errors.As(err, &checkErr), "got %v", err)
	return checkErr.Check
}

func TestNotEmpty(t *testing.T) {
	assert.NoError(t, NotEmpty(players()))
	assert.Equal(t, "not_empty", checkName(t, NotEmpty(dataset.New())))
	assert.Error(t, NotEmpty(nil))
}

func TestNoDuplicates(t *testing.T) {
	ds := players()
	assert.NoError(t, NoDuplicates(ds))
	assert.NoError(t, NoDuplicates(ds, "id"))
	assert.Equal(t, "no_duplicates", checkName(t, NoDuplicates(ds, "is_active")))

	// Same text with different types is not a duplicate
	mixed := dataset.New(dataset.Column{Name: "v", Values: []any{"5", int64(5)}})
	assert.NoError(t, NoDuplicates(mixed))

	assert.Error(t, NoDuplicates(ds, "nope"))
}

func TestSameCount(t *testing.T) {
	ten := dataset.New(dataset.Column{Name: "id", Values: make([]any, 10)})
	nine := dataset.New(dataset.Column{Name: "id", Values: make([]any, 9)})

	assert.NoError(t, SameCount(ten, ten))
	err := SameCount(ten, nine)
	assert.EqualError(t, err, "count: row count mismatch: 10 != 9")
}

func TestFullDataSet(t *testing.T) {
	a := players()
	assert.NoError(t, FullDataSet(a, players()))

	// Same rows, different order
	first, err := a.Filter(dataset.Eq("id", "1"))
	require.NoError(t, err)
	rest, err := a.Filter(dataset.Predicate{Column: "id", Op: dataset.OpNotEqual, Value: "1"})
	require.NoError(t, err)
	assert.Equal(t, "full_data_set", checkName(t, FullDataSet(a, rest.Append(first))))
}

func TestNotNull(t *testing.T) {
	assert.NoError(t, NotNull(players()))

	ds := dataset.New(
		dataset.Column{Name: "a", Values: []any{"x", "y"}},
		dataset.Column{Name: "b", Values: []any{"x", nil}},
	)
	assert.NoError(t, NotNull(ds, "a"))
	assert.Equal(t, "not_null", checkName(t, NotNull(ds)))
}

func TestSchema(t *testing.T) {
	assert.NoError(t, Schema(players(), "id", "name", "age", "email", "is_active"))
	assert.Equal(t, "schema", checkName(t, Schema(players(), "id", "name")))
}

func TestRange(t *testing.T) {
	err := Range(players(), "age", 0, 100)
	assert.Equal(t, "range", checkName(t, err))
	assert.Contains(t, err.Error(), "101")

	assert.NoError(t, Range(players(), "age", 0, 120))
	assert.Equal(t, "range", checkName(t, Range(players(), "name", 0, 120)))
}

func TestPattern(t *testing.T) {
	email := regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	err := Pattern(players(), "email", email)
	assert.Equal(t, "pattern", checkName(t, err))
	assert.Contains(t, err.Error(), "bob@example")
}

func TestValueAt(t *testing.T) {
	ds := players()
	assert.NoError(t, ValueAt(ds, "id", "2", "is_active", "True"))
	assert.Equal(t, "value", checkName(t, ValueAt(ds, "id", "1", "is_active", "True")))
	assert.Equal(t, "value", checkName(t, ValueAt(ds, "id", "9", "is_active", "True")))
}

func TestRun(t *testing.T) {
	ds := players()
	report := Run(
		Check{Name: "not empty", Fn: func() error { return NotEmpty(ds) }},
		Check{Name: "duplicates", Fn: func() error { return NoDuplicates(ds, "is_active") }, ExpectFail: true},
		Check{Name: "age", Fn: func() error { return Range(ds, "age", 0, 100) }},
		Check{Name: "missing", Fn: func() error { return NotNull(ds, "nope") }},
	)

	require.Len(t, report.Results, 4)
	assert.True(t, report.Results[0].Passed)
	assert.False(t, report.Results[1].Passed)
	assert.Equal(t, 2, report.Failed())
}
