// Package extract reads tables and chart states from rendered dashboards.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/go-scripts/dqcheck/internal/dom"
	"github.com/go-scripts/dqcheck/internal/normalize"
)

// DefaultTimeout bounds the wait for a table or chart to appear
const DefaultTimeout = 10 * time.Second

// TableLocator holds the selectors describing a column-oriented table
type TableLocator struct {
	Table    string `yaml:"table"`
	Column   string `yaml:"column"`
	Header   string `yaml:"header"`
	HeaderID string `yaml:"header_id"`
	Block    string `yaml:"block"`
	Cells    string `yaml:"cells"`
	Cell     string `yaml:"cell"`
}

// PlotlyTable locates the table trace rendered by Plotly
func PlotlyTable() TableLocator {
	return TableLocator{
		Table:    ".table",
		Column:   ".y-column",
		Header:   "#header",
		HeaderID: "header",
		Block:    "g.column-block",
		Cells:    ".column-cells",
		Cell:     ".column-cell",
	}
}

// Result maps column labels to raw cell texts, keeping label order
type Result struct {
	Labels []string
	Values map[string][]string
}

func (r *Result) set(label string, values []string) {
	if r.Values == nil {
		r.Values = make(map[string][]string)
	}
	// A repeated label replaces the values but keeps its first position
	if _, ok := r.Values[label]; !ok {
		r.Labels = append(r.Labels, label)
	}
	r.Values[label] = values
}

// Dataset converts the result to a dataset of string columns
func (r Result) Dataset() *dataset.Dataset {
	return dataset.FromStrings(r.Labels, r.Values)
}

// TableOptions shapes the dataset returned by Table
type TableOptions struct {
	Timeout        time.Duration
	NumericColumns []string
	RowFilter      []dataset.Predicate
	Select         []string
}

// RawTable waits for the table and reads every column's header and cells
func RawTable(ctx context.Context, page dom.Page, loc TableLocator, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	table, err := page.WaitPresent(ctx, loc.Table, timeout)
	if err != nil {
		return Result{}, err
	}

	columns, err := table.FindAll(ctx, loc.Column)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list columns: %w", err)
	}

	var res Result
	for i, column := range columns {
		label, err := headerLabel(ctx, column, loc, i)
		if err != nil {
			return Result{}, err
		}
		cells, err := columnCells(ctx, column, loc)
		if err != nil {
			return Result{}, fmt.Errorf("column %q: %w", label, err)
		}
		res.set(label, cells)
	}

	log.Debug("Extracted table", "columns", len(res.Labels))
	return res, nil
}

func headerLabel(ctx context.Context, column dom.Element, loc TableLocator, i int) (string, error) {
	fallback := fmt.Sprintf("Column_%d", i+1)

	header, err := column.Find(ctx, loc.Header)
	if errors.Is(err, dom.ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find header: %w", err)
	}

	text, err := header.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read header: %w", err)
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallback, nil
	}
	return text, nil
}

func columnCells(ctx context.Context, column dom.Element, loc TableLocator) ([]string, error) {
	blocks, err := column.FindAll(ctx, loc.Block)
	if err != nil {
		return nil, err
	}

	cells := []string{}
	for _, block := range blocks {
		id, _, err := block.Attr(ctx, "id")
		if err != nil {
			return nil, err
		}
		if id == loc.HeaderID {
			continue
		}

		container, err := block.Find(ctx, loc.Cells)
		if errors.Is(err, dom.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		items, err := container.FindAll(ctx, loc.Cell)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			text, err := item.Text(ctx)
			if err != nil {
				return nil, err
			}
			cells = append(cells, strings.TrimSpace(text))
		}
	}
	return cells, nil
}

// Table extracts the table as a dataset: numeric columns coerced to integers,
// then the row filter and column selection applied. A ragged table is
// returned unfiltered.
func Table(ctx context.Context, page dom.Page, loc TableLocator, opts TableOptions) (*dataset.Dataset, error) {
	res, err := RawTable(ctx, page, loc, opts.Timeout)
	if err != nil {
		log.Error("Failed to extract table", "selector", loc.Table, "error", err)
		return nil, &ExtractionError{Op: "table", Err: err}
	}

	ds := res.Dataset()
	for _, name := range opts.NumericColumns {
		if ds, err = normalize.IntColumn(ds, name); err != nil {
			log.Error("Failed to coerce column", "column", name, "error", err)
			return nil, &ExtractionError{Op: "table", Err: err}
		}
	}

	if err := ds.Validate(); err != nil {
		log.Warn("Table columns have different lengths, skipping filter", "error", err)
		return ds, nil
	}

	if len(opts.RowFilter) > 0 {
		if ds, err = ds.Filter(opts.RowFilter...); err != nil {
			log.Error("Failed to filter table", "error", err)
			return nil, &ExtractionError{Op: "table", Err: err}
		}
	}
	if len(opts.Select) > 0 {
		if ds, err = ds.Select(opts.Select...); err != nil {
			log.Error("Failed to select columns", "error", err)
			return nil, &ExtractionError{Op: "table", Err: err}
		}
	}
	return ds, nil
}
