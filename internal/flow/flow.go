// Package flow wires extraction, loading, normalization and comparison
// into the report reconciliation run.
package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/go-scripts/dqcheck/internal/dom"
	"github.com/go-scripts/dqcheck/internal/extract"
	"github.com/go-scripts/dqcheck/internal/normalize"
	"github.com/go-scripts/dqcheck/internal/reconcile"
	"github.com/go-scripts/dqcheck/internal/source"
)

// ReportConfig describes the rendered report side of the comparison
type ReportConfig struct {
	HTMLPath string               `yaml:"html"`
	Table    extract.TableLocator `yaml:"table"`
	Timeout  time.Duration        `yaml:"timeout"`
	// DateColumn is the report column holding the visit date
	DateColumn     string   `yaml:"date_column"`
	NumericColumns []string `yaml:"numeric_columns"`
	Columns        []string `yaml:"columns"`
}

// ReferenceConfig describes the Parquet side of the comparison
type ReferenceConfig struct {
	Path string `yaml:"path"`
	// DateColumn is the partition key or column holding the visit date
	DateColumn string            `yaml:"date_column"`
	IntColumns []string          `yaml:"int_columns"`
	Columns    []string          `yaml:"columns"`
	Renames    map[string]string `yaml:"renames"`
}

// Config is a complete reconciliation run
type Config struct {
	Report    ReportConfig    `yaml:"report"`
	Reference ReferenceConfig `yaml:"reference"`
	// Date restricts both sides to one day (YYYY-MM-DD); empty compares everything
	Date    string `yaml:"date"`
	SortKey string `yaml:"sort_key"`
	// Where holds extra reference filters such as "facility_type==ICU"
	Where []string `yaml:"where"`
}

// DefaultConfig matches the facility visit report
func DefaultConfig() Config {
	return Config{
		Report: ReportConfig{
			Table:          extract.PlotlyTable(),
			Timeout:        extract.DefaultTimeout,
			DateColumn:     "Visit Date",
			NumericColumns: []string{"Average Time Spent"},
			Columns:        []string{"Facility Type", "Visit Date", "Average Time Spent"},
		},
		Reference: ReferenceConfig{
			DateColumn: "visit_date",
			IntColumns: []string{"avg_time_spent"},
			Columns:    []string{"facility_type", "visit_date", "avg_time_spent"},
			Renames:    map[string]string{"avg_time_spent": "average_time_spent"},
		},
		SortKey: "facility_type",
	}
}

// Result holds the verdict and the normalized datasets it was computed from
type Result struct {
	Verdict  reconcile.Verdict
	Expected *dataset.Dataset
	Actual   *dataset.Dataset
}

// Reconcile extracts the report table, loads the reference data for the same
// date and compares both. The report page is closed before returning.
func Reconcile(ctx context.Context, open dom.Opener, cfg Config) (Result, error) {
	actual, err := ReportTable(ctx, open, cfg)
	if err != nil {
		return Result{}, err
	}

	expected, err := Reference(ctx, cfg)
	if err != nil {
		return Result{}, err
	}

	opts := normalize.Options{SortKey: cfg.SortKey}
	if actual, err = normalize.Normalize(actual, opts); err != nil {
		return Result{}, fmt.Errorf("report: %w", err)
	}
	if expected, err = normalize.Normalize(expected, opts); err != nil {
		return Result{}, fmt.Errorf("reference: %w", err)
	}

	verdict, err := reconcile.Compare(expected, actual, normalize.ColumnName(cfg.SortKey))
	if err != nil {
		return Result{}, err
	}

	log.Info("Reconciled report", "status", verdict.Status, "rows", expected.NumRows())
	return Result{Verdict: verdict, Expected: expected, Actual: actual}, nil
}

// ReportTable opens the report and extracts its table filtered to cfg.Date
func ReportTable(ctx context.Context, open dom.Opener, cfg Config) (*dataset.Dataset, error) {
	page, err := open(ctx, cfg.Report.HTMLPath)
	if err != nil {
		log.Error("Failed to open report", "path", cfg.Report.HTMLPath, "error", err)
		return nil, &extract.ExtractionError{Op: "open", Err: err}
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Warn("Failed to close report page", "error", err)
		}
	}()

	opts := extract.TableOptions{
		Timeout:        cfg.Report.Timeout,
		NumericColumns: cfg.Report.NumericColumns,
		Select:         cfg.Report.Columns,
	}
	if cfg.Date != "" {
		opts.RowFilter = []dataset.Predicate{dataset.Eq(cfg.Report.DateColumn, cfg.Date)}
	}
	return extract.Table(ctx, page, cfg.Report.Table, opts)
}

// Reference loads the Parquet reference data for cfg.Date
func Reference(ctx context.Context, cfg Config) (*dataset.Dataset, error) {
	ref := cfg.Reference
	opts := source.Options{
		Prepare: source.Prepare{
			IntColumns: ref.IntColumns,
			SortBy:     cfg.SortKey,
			Select:     ref.Columns,
			Renames:    ref.Renames,
		},
	}
	if ref.DateColumn != "" {
		opts.Prepare.DateColumns = []string{ref.DateColumn}
	}
	if cfg.Date != "" {
		day, err := dataset.ParseDate(cfg.Date)
		if err != nil {
			return nil, err
		}
		opts.Filters = []dataset.Predicate{dataset.Eq(ref.DateColumn, day)}
	}
	for _, expr := range cfg.Where {
		p, err := dataset.ParsePredicate(expr)
		if err != nil {
			return nil, err
		}
		opts.Filters = append(opts.Filters, p)
	}
	return source.ReadParquet(ctx, ref.Path, opts)
}
