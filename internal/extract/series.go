package extract

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/dqcheck/internal/dom"
	"github.com/go-scripts/dqcheck/internal/poll"
	"github.com/go-scripts/dqcheck/internal/writer"
)

// SeriesOptions controls ChartSeries
type SeriesOptions struct {
	Chart      ChartLocator
	Legend     string
	LegendItem string
	Timeout    time.Duration
	// Settle bounds the wait for the chart to stop changing after a click
	Settle poll.Options
	Writer *writer.FileWriter
	// OnProgress reports how many legend items have been handled
	OnProgress func(done, total int)
}

// Snapshot is the chart state after one legend interaction. Index 0 is the
// initial state.
type Snapshot struct {
	Index     int       `json:"index"`
	Data      ChartData `json:"data"`
	ImagePath string    `json:"image_path,omitempty"`
	TablePath string    `json:"table_path,omitempty"`
}

// Summary is written next to the snapshot artifacts
type Summary struct {
	RunID     string     `json:"run_id,omitempty"`
	Snapshots []Snapshot `json:"snapshots"`
}

// ChartSeries records the initial chart state, then clicks every legend item
// in order and records the state after each click. A missing chart or legend
// ends the series early without an error; a failing legend item is logged
// and skipped.
func ChartSeries(ctx context.Context, page dom.Page, opts SeriesOptions) ([]Snapshot, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Legend == "" {
		opts.Legend = ".legend"
	}
	if opts.LegendItem == "" {
		opts.LegendItem = ".traces"
	}

	var snapshots []Snapshot
	defer func() {
		if opts.Writer == nil {
			return
		}
		summary := Summary{RunID: opts.Writer.RunID(), Snapshots: snapshots}
		if err := opts.Writer.WriteSummary(summary); err != nil {
			log.Error("Failed to write summary", "error", err)
		}
	}()

	chart, err := page.WaitPresent(ctx, opts.Chart.Chart, opts.Timeout)
	if err != nil {
		log.Warn("Chart not found", "selector", opts.Chart.Chart, "error", err)
		return snapshots, nil
	}

	snap, err := capture(ctx, page, chart, opts, 0)
	if err != nil {
		log.Error("Failed to capture initial chart state", "error", err)
		return snapshots, nil
	}
	snapshots = append(snapshots, snap)

	legend, err := page.WaitPresent(ctx, opts.Legend, opts.Timeout)
	if err != nil {
		log.Warn("Legend not found", "selector", opts.Legend, "error", err)
		return snapshots, nil
	}
	items, err := legend.FindAll(ctx, opts.LegendItem)
	if err != nil {
		log.Error("Failed to list legend items", "error", err)
		return snapshots, nil
	}
	log.Info("Found legend items", "count", len(items))

	progress := func(done int) {
		if opts.OnProgress != nil {
			opts.OnProgress(done, len(items))
		}
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return snapshots, err
		}
		progress(i)

		if err := item.Click(ctx); err != nil {
			log.Error("Failed to apply legend filter", "item", i, "error", err)
			continue
		}

		if err := settle(ctx, page, opts); err != nil {
			log.Warn("Chart did not settle", "item", i, "error", err)
		}

		chart, err := page.Find(ctx, opts.Chart.Chart)
		if err != nil {
			log.Error("Chart disappeared after legend click", "item", i, "error", err)
			continue
		}
		snap, err := capture(ctx, page, chart, opts, len(snapshots))
		if err != nil {
			log.Error("Failed to capture chart", "item", i, "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	progress(len(items))

	return snapshots, nil
}

// settle waits until two consecutive reads of the chart markup agree
func settle(ctx context.Context, page dom.Page, opts SeriesOptions) error {
	_, err := poll.UntilStable(ctx, opts.Settle, func(ctx context.Context) (string, error) {
		chart, err := page.Find(ctx, opts.Chart.Chart)
		if isMissing(err) {
			// Mid-redraw; keep polling
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return chart.HTML(ctx)
	})
	return err
}

func capture(ctx context.Context, page dom.Page, chart dom.Element, opts SeriesOptions, n int) (Snapshot, error) {
	data, err := readSlices(ctx, chart, opts.Chart)
	if err != nil {
		return Snapshot{}, &ExtractionError{Op: "chart", Err: err}
	}
	snap := Snapshot{Index: n, Data: data}
	if opts.Writer == nil {
		return snap, nil
	}

	if img, err := screenshot(ctx, page, chart); err != nil {
		log.Error("Failed to take screenshot", "snapshot", n, "error", err)
	} else if snap.ImagePath, err = opts.Writer.WriteImage(n, img); err != nil {
		log.Error("Failed to save screenshot", "snapshot", n, "error", err)
	}

	if snap.TablePath, err = opts.Writer.WriteTable(n, data.Dataset(opts.Chart.LabelColumn, opts.Chart.ValueColumn)); err != nil {
		log.Error("Failed to save chart data", "snapshot", n, "error", err)
	}
	return snap, nil
}

// screenshot captures the chart, falling back to the whole page when the
// chart cannot be captured on its own (zero size)
func screenshot(ctx context.Context, page dom.Page, chart dom.Element) ([]byte, error) {
	img, err := chart.Screenshot(ctx)
	if err == nil {
		return img, nil
	}
	if errors.Is(err, dom.ErrNotInteractive) {
		return nil, err
	}
	log.Debug("Chart screenshot failed, capturing full page", "error", err)
	return page.FullScreenshot(ctx)
}
