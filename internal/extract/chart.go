package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/go-scripts/dqcheck/internal/dom"
)

// ChartLocator holds the selectors describing a pie or doughnut chart
type ChartLocator struct {
	Chart    string `yaml:"chart"`
	Slice    string `yaml:"slice"`
	Fragment string `yaml:"fragment"`

	// LabelColumn and ValueColumn name the columns of the chart dataset
	LabelColumn string `yaml:"label_column"`
	ValueColumn string `yaml:"value_column"`
}

// DoughnutChart locates a Plotly pie trace
func DoughnutChart() ChartLocator {
	return ChartLocator{
		Chart:       "svg",
		Slice:       "g.slice",
		Fragment:    "g.slicetext text tspan",
		LabelColumn: "Facility Type",
		ValueColumn: "Min Average Time Spent",
	}
}

// Slice is one labelled chart segment
type Slice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ChartData is the set of visible slices in document order
type ChartData []Slice

// Dataset converts the chart data to a two column dataset
func (d ChartData) Dataset(labelColumn, valueColumn string) *dataset.Dataset {
	names := make([]any, len(d))
	values := make([]any, len(d))
	for i, s := range d {
		names[i] = s.Label
		values[i] = s.Value
	}
	return &dataset.Dataset{Columns: []dataset.Column{
		{Name: labelColumn, Values: names},
		{Name: valueColumn, Values: values},
	}}
}

// ChartState locates the chart under root and reads its slices
func ChartState(ctx context.Context, root dom.Element, loc ChartLocator) (ChartData, error) {
	chart, err := root.Find(ctx, loc.Chart)
	if err != nil {
		return nil, &ExtractionError{Op: "chart", Err: fmt.Errorf("chart %q: %w", loc.Chart, err)}
	}
	data, err := readSlices(ctx, chart, loc)
	if err != nil {
		return nil, &ExtractionError{Op: "chart", Err: err}
	}
	return data, nil
}

// readSlices reads label and value from the first two text fragments of
// each slice. Slices with fewer fragments have no visible text and are skipped.
func readSlices(ctx context.Context, chart dom.Element, loc ChartLocator) (ChartData, error) {
	slices, err := chart.FindAll(ctx, loc.Slice)
	if err != nil {
		return nil, err
	}

	data := ChartData{}
	for i, slice := range slices {
		fragments, err := slice.FindAll(ctx, loc.Fragment)
		if err != nil {
			return nil, err
		}
		if len(fragments) < 2 {
			log.Debug("Skipping slice without label and value", "slice", i, "fragments", len(fragments))
			continue
		}

		label, err := fragments[0].Text(ctx)
		if err != nil {
			return nil, err
		}
		value, err := fragments[1].Text(ctx)
		if err != nil {
			return nil, err
		}
		data = append(data, Slice{Label: strings.TrimSpace(label), Value: strings.TrimSpace(value)})
	}
	return data, nil
}

// isMissing reports whether err means an element was not there
func isMissing(err error) bool {
	return errors.Is(err, dom.ErrNotFound)
}
