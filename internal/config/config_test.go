package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFile), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "custom.yaml"), true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
reconcile:
  date: "2025-10-29"
  report:
    html: reports/source_report.html
    timeout: 5s
  reference:
    path: data/visits
chart:
  settle:
    interval: 250ms
postgres:
  host: db.internal
  name: dq
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "2025-10-29", cfg.Reconcile.Date)
	assert.Equal(t, "reports/source_report.html", cfg.Reconcile.Report.HTMLPath)
	assert.Equal(t, 5*time.Second, cfg.Reconcile.Report.Timeout)
	assert.Equal(t, "data/visits", cfg.Reconcile.Reference.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Chart.Settle.Interval)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)

	// Untouched defaults survive
	assert.Equal(t, "facility_type", cfg.Reconcile.SortKey)
	assert.Equal(t, ".table", cfg.Reconcile.Report.Table.Table)
	assert.Equal(t, 3*time.Second, cfg.Chart.Settle.Timeout)
	assert.Equal(t, "Facility Type", cfg.Chart.Locator.LabelColumn)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "average_time_spent", cfg.Reconcile.Reference.Renames["avg_time_spent"])
}

func TestLoadLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
postgres:
  host: db.internal
  user: ci
artifact:
  url: https://ci.example.com/job/visits/lastSuccessfulBuild/artifact/visits.parquet
`)
	writeFile(t, filepath.Join(dir, "config.local.yaml"), `
postgres:
  host: localhost
  password: secret
artifact:
  user: me
  token: abc
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "ci", cfg.Postgres.User)
	assert.Equal(t, "secret", cfg.Postgres.Password)
	assert.Equal(t, "me", cfg.Artifact.User)
	assert.Equal(t, "abc", cfg.Artifact.Token)
	assert.Equal(t, 2*time.Minute, cfg.Artifact.Timeout)
	assert.Contains(t, cfg.Artifact.URL, "lastSuccessfulBuild")
}

func TestLoadReplacesListsAndMaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
reconcile:
  report:
    numeric_columns: []
  reference:
    renames:
      visits: total
    int_columns: [visits]
browser:
  window_width: 0
artifact:
  timeout: 0s
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Empty(t, cfg.Reconcile.Report.NumericColumns)
	assert.Equal(t, map[string]string{"visits": "total"}, cfg.Reconcile.Reference.Renames)
	assert.Equal(t, []string{"visits"}, cfg.Reconcile.Reference.IntColumns)
	assert.Zero(t, cfg.Browser.WindowWidth)
	assert.Zero(t, cfg.Artifact.Timeout)

	// Siblings not written in the file keep their defaults
	assert.Equal(t, []string{"Facility Type", "Visit Date", "Average Time Spent"}, cfg.Reconcile.Report.Columns)
	assert.Equal(t, "visit_date", cfg.Reconcile.Reference.DateColumn)
	assert.Equal(t, 1024, cfg.Browser.WindowHeight)
	assert.Equal(t, filepath.Join("data", "reference.parquet"), cfg.Artifact.Dest)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "reconcile: [not, a, map")

	_, err := Load(path, true)
	assert.Error(t, err)
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "config.local.yaml", localName("config.yaml"))
	assert.Equal(t, filepath.Join("etc", "dq.local.yml"), localName(filepath.Join("etc", "dq.yml")))
}
