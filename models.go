package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/dqcheck/internal/artifact"
	"github.com/go-scripts/dqcheck/internal/browser"
	"github.com/go-scripts/dqcheck/internal/config"
	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/go-scripts/dqcheck/internal/dom"
	"github.com/go-scripts/dqcheck/internal/extract"
	"github.com/go-scripts/dqcheck/internal/flow"
	"github.com/go-scripts/dqcheck/internal/normalize"
	"github.com/go-scripts/dqcheck/internal/postgres"
	"github.com/go-scripts/dqcheck/internal/progress"
	"github.com/go-scripts/dqcheck/internal/quality"
	"github.com/go-scripts/dqcheck/internal/reconcile"
	"github.com/go-scripts/dqcheck/internal/source"
	"github.com/go-scripts/dqcheck/internal/writer"
	"github.com/go-scripts/dqcheck/ui"
)

// errMismatch is returned when a comparison produced a MISMATCH verdict
var errMismatch = errors.New("datasets do not match")

// CLIFlags is the command line
type CLIFlags struct {
	ConfigFile string `help:"Path to configuration file (default config.yaml)" short:"c" name:"config"`
	Debug      bool   `help:"Enable debug logging" default:"false"`

	Reconcile ReconcileCmd `cmd:"" help:"Compare a rendered report table with its Parquet reference"`
	Chart     ChartCmd     `cmd:"" help:"Capture chart states for every legend filter"`
	Check     CheckCmd     `cmd:"" help:"Run data-quality checks on a CSV file"`
	Fetch     FetchCmd     `cmd:"" help:"Download the reference artifact"`
	Query     QueryCmd     `cmd:"" help:"Run a SQL query and print or compare the result"`
}

// session is a source of report pages that must be closed after use
type session interface {
	Opener() dom.Opener
	Close() error
}

type sessionFunc func(ctx context.Context, opts browser.Options) (session, error)

func openBrowser(ctx context.Context, opts browser.Options) (session, error) {
	s, err := browser.NewSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// App is bound to every command's Run method
type App struct {
	ctx        context.Context
	config     config.Config
	out        io.Writer
	steps      *progress.Steps
	newSession sessionFunc
}

func (a *App) startSession() (session, error) {
	a.steps.Start("Starting browser")
	s, err := a.newSession(a.ctx, a.config.Browser)
	if err != nil {
		a.steps.Fail(err)
		return nil, err
	}
	a.steps.Done("Browser ready")
	return s, nil
}

// ReconcileCmd compares the report table with the reference data
type ReconcileCmd struct {
	HTML    string   `help:"Rendered report HTML file" type:"path"`
	Parquet string   `help:"Reference Parquet file or partitioned directory" type:"path"`
	Date    string   `help:"Visit date to compare (YYYY-MM-DD)"`
	Show    bool     `help:"Print both normalized datasets"`
	Where   []string `help:"Extra reference filter such as facility_type==ICU (repeatable)" sep:"none"`
}

func (c *ReconcileCmd) Run(app *App) error {
	cfg := app.config.Reconcile
	if c.HTML != "" {
		cfg.Report.HTMLPath = c.HTML
	}
	if c.Parquet != "" {
		cfg.Reference.Path = c.Parquet
	}
	if c.Date != "" {
		cfg.Date = c.Date
	}
	cfg.Where = append(cfg.Where, c.Where...)
	if cfg.Report.HTMLPath == "" || cfg.Reference.Path == "" {
		return errors.New("both a report HTML file and a reference path are required")
	}

	s, err := app.startSession()
	if err != nil {
		return err
	}
	defer s.Close()

	app.steps.Start("Reconciling " + cfg.Report.HTMLPath)
	res, err := flow.Reconcile(app.ctx, s.Opener(), cfg)
	if err != nil {
		app.steps.Fail(err)
		return err
	}
	app.steps.Done("Reconciled " + cfg.Report.HTMLPath)

	if c.Show {
		fmt.Fprintln(app.out, ui.Dataset("Reference", res.Expected))
		fmt.Fprintln(app.out, ui.Dataset("Report", res.Actual))
	}
	fmt.Fprintln(app.out, ui.Verdict(res.Verdict))

	if !res.Verdict.OK() {
		return errMismatch
	}
	return nil
}

// ChartCmd captures a snapshot of the chart after each legend click
type ChartCmd struct {
	HTML   string `help:"Rendered report HTML file" type:"path"`
	Output string `help:"Directory for snapshot images and tables" type:"path"`
	PerRun bool   `help:"Write each run into its own subdirectory"`
}

func (c *ChartCmd) Run(app *App) error {
	cfg := app.config.Chart
	if c.HTML != "" {
		cfg.HTMLPath = c.HTML
	}
	if c.Output != "" {
		cfg.OutputDir = c.Output
	}
	if cfg.HTMLPath == "" {
		return errors.New("a report HTML file is required")
	}

	var (
		w   *writer.FileWriter
		err error
	)
	if c.PerRun || cfg.PerRun {
		w, err = writer.NewRun(cfg.OutputDir, cfg.Prefix)
	} else {
		w, err = writer.New(cfg.OutputDir, cfg.Prefix)
	}
	if err != nil {
		return err
	}

	s, err := app.startSession()
	if err != nil {
		return err
	}
	defer s.Close()

	page, err := s.Opener()(app.ctx, cfg.HTMLPath)
	if err != nil {
		return err
	}
	defer page.Close()

	app.steps.Start("Capturing chart states")
	snaps, err := extract.ChartSeries(app.ctx, page, extract.SeriesOptions{
		Chart:      cfg.Locator,
		Legend:     cfg.Legend,
		LegendItem: cfg.LegendItem,
		Timeout:    cfg.Timeout,
		Settle:     cfg.Settle,
		Writer:     w,
		OnProgress: app.steps.Advance,
	})
	if err != nil {
		app.steps.Fail(err)
		return err
	}
	app.steps.Done(fmt.Sprintf("Captured %d chart states in %s", len(snaps), w.Dir()))

	fmt.Fprintln(app.out, ui.Snapshots(snaps))
	return nil
}

// CheckCmd runs the configured data-quality checks on a CSV file
type CheckCmd struct {
	Path string `arg:"" optional:"" help:"CSV file to check" type:"path"`
	JSON bool   `help:"Print results as JSON"`
}

func (c *CheckCmd) Run(app *App) error {
	cfg := app.config.Checks
	if c.Path != "" {
		cfg.Path = c.Path
	}
	if cfg.Path == "" {
		return errors.New("a CSV file is required")
	}

	ds, err := source.ReadCSV(cfg.Path)
	if err != nil {
		return err
	}
	for _, col := range cfg.FloatColumns {
		if ds, err = normalize.FloatColumn(ds, col); err != nil {
			return err
		}
	}
	var reference *dataset.Dataset
	if cfg.Reference != "" {
		if reference, err = source.ReadCSV(cfg.Reference); err != nil {
			return err
		}
	}

	checks, err := buildChecks(ds, reference, cfg)
	if err != nil {
		return err
	}

	report := quality.Run(checks...)
	if c.JSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Fprintln(app.out, string(data))
	} else {
		fmt.Fprintln(app.out, ui.Checks(report))
	}

	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d checks failed", n, len(report.Results))
	}
	return nil
}

// buildChecks turns the checks configuration into quality checks over ds.
// reference may be nil.
func buildChecks(ds, reference *dataset.Dataset, cfg config.ChecksConfig) ([]quality.Check, error) {
	checks := []quality.Check{
		{Name: "not empty", Fn: func() error { return quality.NotEmpty(ds) }},
	}
	if len(cfg.Schema) > 0 {
		checks = append(checks, quality.Check{Name: "schema", Fn: func() error { return quality.Schema(ds, cfg.Schema...) }})
	}
	checks = append(checks, quality.Check{
		Name:       "no duplicates",
		Fn:         func() error { return quality.NoDuplicates(ds, cfg.Unique...) },
		ExpectFail: cfg.ExpectDuplicates,
	})
	if len(cfg.NotNull) > 0 {
		checks = append(checks, quality.Check{Name: "not null", Fn: func() error { return quality.NotNull(ds, cfg.NotNull...) }})
	}

	for _, col := range sortedKeys(cfg.Ranges) {
		bounds := cfg.Ranges[col]
		checks = append(checks, quality.Check{
			Name: "range " + col,
			Fn:   func() error { return quality.Range(ds, col, bounds[0], bounds[1]) },
		})
	}
	for _, col := range sortedKeys(cfg.Patterns) {
		re, err := regexp.Compile(cfg.Patterns[col])
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for %s: %w", col, err)
		}
		checks = append(checks, quality.Check{
			Name: "pattern " + col,
			Fn:   func() error { return quality.Pattern(ds, col, re) },
		})
	}
	for _, v := range cfg.Values {
		checks = append(checks, quality.Check{
			Name: fmt.Sprintf("value %s for %s=%s", v.Column, v.KeyColumn, v.Key),
			Fn:   func() error { return quality.ValueAt(ds, v.KeyColumn, v.Key, v.Column, v.Want) },
		})
	}

	if reference != nil {
		checks = append(checks,
			quality.Check{Name: "same count", Fn: func() error { return quality.SameCount(reference, ds) }},
			quality.Check{Name: "full data set", Fn: func() error { return quality.FullDataSet(reference, ds) }},
		)
	}
	return checks, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FetchCmd downloads the reference artifact
type FetchCmd struct {
	URL   string `arg:"" optional:"" help:"Artifact URL"`
	Dest  string `help:"Destination file" type:"path"`
	Token string `help:"Token for basic auth" env:"DQCHECK_ARTIFACT_TOKEN"`
}

func (c *FetchCmd) Run(app *App) error {
	cfg := app.config.Artifact
	if c.URL != "" {
		cfg.URL = c.URL
	}
	if c.Dest != "" {
		cfg.Dest = c.Dest
	}
	if c.Token != "" {
		cfg.Token = c.Token
	}
	if cfg.URL == "" {
		return errors.New("an artifact URL is required")
	}

	app.steps.Start("Downloading " + cfg.URL)
	if err := artifact.New(cfg.Options).Fetch(app.ctx, cfg.URL, cfg.Dest); err != nil {
		app.steps.Fail(err)
		return err
	}
	app.steps.Done("Saved " + cfg.Dest)
	return nil
}

// QueryCmd runs a query and prints the result, or compares it with a
// Parquet reference
type QueryCmd struct {
	SQL      string `arg:"" help:"Query to run"`
	Compare  string `help:"Parquet reference to compare the result with" type:"path"`
	Key      string `help:"Column to order rows by before comparing"`
	Password string `help:"Database password" env:"PGPASSWORD"`
}

func (c *QueryCmd) Run(app *App) error {
	cfg := app.config.Postgres
	if c.Password != "" {
		cfg.Password = c.Password
	}

	var result *dataset.Dataset
	err := postgres.With(app.ctx, cfg, func(conn *postgres.Connector) error {
		var err error
		result, err = conn.Query(app.ctx, c.SQL)
		return err
	})
	if err != nil {
		return err
	}
	log.Debug("Query returned", "rows", result.NumRows(), "columns", len(result.Columns))

	if c.Compare == "" {
		fmt.Fprintln(app.out, ui.Dataset("", result))
		return nil
	}

	reference, err := source.ReadParquet(app.ctx, c.Compare, source.Options{})
	if err != nil {
		return err
	}
	verdict, err := compareNormalized(reference, result, c.Key)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.out, ui.Verdict(verdict))
	if !verdict.OK() {
		return errMismatch
	}
	return nil
}

func compareNormalized(expected, actual *dataset.Dataset, key string) (reconcile.Verdict, error) {
	opts := normalize.Options{SortKey: key}
	expected, err := normalize.Normalize(expected, opts)
	if err != nil {
		return reconcile.Verdict{}, err
	}
	actual, err = normalize.Normalize(actual, opts)
	if err != nil {
		return reconcile.Verdict{}, err
	}
	return reconcile.Compare(expected, actual, normalize.ColumnName(key))
}
