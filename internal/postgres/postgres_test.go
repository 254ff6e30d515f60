package postgres

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/go-scripts/dqcheck/internal/reconcile"
)

func openSQLite(t *testing.T) *Connector {
	t.Helper()
	c, err := OpenDriver(context.Background(), "sqlite", filepath.Join(t.TempDir(), "visits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Exec(ctx, `CREATE TABLE visits (facility_type TEXT, visit_date TEXT, avg_time_spent INTEGER, note TEXT)`))
	require.NoError(t, c.Exec(ctx, `INSERT INTO visits VALUES ('ICU', '2025-10-29', 45, NULL), ('ER', '2025-10-29', 30, 'busy'), ('Lab', '2025-10-28', 12, NULL)`))
	return c
}

func TestQuery(t *testing.T) {
	c := openSQLite(t)

	ds, err := c.Query(context.Background(),
		`SELECT facility_type, visit_date, avg_time_spent AS average_time_spent FROM visits WHERE visit_date = ? ORDER BY facility_type`,
		"2025-10-29")
	require.NoError(t, err)

	want := dataset.New(
		dataset.Column{Name: "facility_type", Values: []any{"ER", "ICU"}},
		dataset.Column{Name: "visit_date", Values: []any{"2025-10-29", "2025-10-29"}},
		dataset.Column{Name: "average_time_spent", Values: []any{int64(30), int64(45)}},
	)
	v, err := reconcile.Compare(want, ds, "facility_type")
	require.NoError(t, err)
	assert.True(t, v.OK(), v.Detail)
}

func TestQueryNullsAndEmptyResult(t *testing.T) {
	c := openSQLite(t)
	ctx := context.Background()

	ds, err := c.Query(ctx, `SELECT note FROM visits ORDER BY facility_type`)
	require.NoError(t, err)
	assert.Equal(t, []any{"busy", nil, nil}, ds.Columns[0].Values)

	empty, err := c.Query(ctx, `SELECT facility_type FROM visits WHERE 1 = 0`)
	require.NoError(t, err)
	assert.Equal(t, []string{"facility_type"}, empty.Names())
	assert.True(t, empty.IsEmpty())
}

func TestQueryError(t *testing.T) {
	c := openSQLite(t)
	_, err := c.Query(context.Background(), `SELECT * FROM missing_table`)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "defaults",
			cfg:  Config{Host: "localhost", Name: "dq", User: "tester"},
			want: "host=localhost port=5432 dbname=dq user=tester sslmode=disable",
		},
		{
			name: "quoted password",
			cfg:  Config{Host: "db", Port: 5433, Name: "dq", User: "tester", Password: "it's secret", SSLMode: "require"},
			want: `host=db port=5433 dbname=dq user=tester sslmode=require password='it\'s secret'`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.DSN())
		})
	}
}

func TestWithUnreachable(t *testing.T) {
	called := false
	err := With(context.Background(), Config{Host: "127.0.0.1", Port: 1, Name: "x", User: "x"}, func(*Connector) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
