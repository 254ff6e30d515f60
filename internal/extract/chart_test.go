package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/dqcheck/internal/dom"
	"github.com/go-scripts/dqcheck/internal/poll"
	"github.com/go-scripts/dqcheck/internal/writer"
)

func TestChartState(t *testing.T) {
	data, err := ChartState(context.Background(), openFixture(t, "chart.html"), DoughnutChart())
	require.NoError(t, err)

	// Lab has a single fragment and is skipped
	assert.Equal(t, ChartData{{Label: "ICU", Value: "45"}, {Label: "ER", Value: "30"}}, data)

	loc := DoughnutChart()
	ds := data.Dataset(loc.LabelColumn, loc.ValueColumn)
	assert.Equal(t, []string{"Facility Type", "Min Average Time Spent"}, ds.Names())
}

func TestChartStateMissingChart(t *testing.T) {
	_, err := ChartState(context.Background(), openFixture(t, "no_table.html"), DoughnutChart())

	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.ErrorIs(t, err, dom.ErrNotFound)
}

var fastSettle = poll.Options{Interval: time.Millisecond, Timeout: 200 * time.Millisecond}

func TestChartSeriesStatic(t *testing.T) {
	w, err := writer.New(filepath.Join(t.TempDir(), "output_chart"), "output_chart")
	require.NoError(t, err)

	snaps, err := ChartSeries(context.Background(), openFixture(t, "chart.html"), SeriesOptions{
		Chart:   DoughnutChart(),
		Timeout: time.Second,
		Settle:  fastSettle,
		Writer:  w,
	})
	require.NoError(t, err)

	// A static page cannot be clicked: only the initial state is recorded
	require.Len(t, snaps, 1)
	assert.Equal(t, 0, snaps[0].Index)
	assert.Empty(t, snaps[0].ImagePath)
	assert.FileExists(t, filepath.Join(w.Dir(), "output_chart0.csv"))
	assert.FileExists(t, filepath.Join(w.Dir(), "summary.json"))
}

func TestChartSeriesMissingChart(t *testing.T) {
	snaps, err := ChartSeries(context.Background(), openFixture(t, "no_table.html"), SeriesOptions{
		Chart:   DoughnutChart(),
		Timeout: 10 * time.Millisecond,
	})
	assert.NoError(t, err)
	assert.Empty(t, snaps)
}

// chartHTML renders a doughnut chart with the given slices and a three item legend
func chartHTML(slices ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><svg class="main-svg"><g class="trace">`)
	for _, s := range slices {
		fmt.Fprintf(&b, `<g class="slice"><g class="slicetext"><text><tspan>%s</tspan><tspan>%s</tspan></text></g></g>`, s[0], s[1])
	}
	b.WriteString(`</g></svg><svg><g class="legend">`)
	b.WriteString(`<g class="traces">ICU</g><g class="traces">ER</g><g class="traces">Lab</g>`)
	b.WriteString(`</g></svg></body></html>`)
	return b.String()
}

// clickPage switches to the next state on every successful legend click
type clickPage struct {
	states []*dom.StaticPage
	cur    int
	clicks int
	failOn int
}

func newClickPage(t *testing.T, failOn int, states ...string) *clickPage {
	p := &clickPage{failOn: failOn}
	for _, s := range states {
		sp, err := dom.ParseStatic(s)
		require.NoError(t, err)
		p.states = append(p.states, sp)
	}
	return p
}

type clickElement struct {
	dom.Element
	page *clickPage
}

func (p *clickPage) wrap(el dom.Element) dom.Element {
	return clickElement{Element: el, page: p}
}

func (p *clickPage) Find(ctx context.Context, sel string) (dom.Element, error) {
	el, err := p.states[p.cur].Find(ctx, sel)
	if err != nil {
		return nil, err
	}
	return p.wrap(el), nil
}

func (p *clickPage) FindAll(ctx context.Context, sel string) ([]dom.Element, error) {
	els, err := p.states[p.cur].FindAll(ctx, sel)
	for i := range els {
		els[i] = p.wrap(els[i])
	}
	return els, err
}

func (p *clickPage) Text(ctx context.Context) (string, error) { return p.states[p.cur].Text(ctx) }
func (p *clickPage) HTML(ctx context.Context) (string, error) { return p.states[p.cur].HTML(ctx) }
func (p *clickPage) Attr(ctx context.Context, name string) (string, bool, error) {
	return p.states[p.cur].Attr(ctx, name)
}
func (p *clickPage) Click(context.Context) error { return dom.ErrNotInteractive }
func (p *clickPage) Screenshot(context.Context) ([]byte, error) {
	return []byte("page"), nil
}
func (p *clickPage) FullScreenshot(context.Context) ([]byte, error) {
	return []byte("page"), nil
}
func (p *clickPage) Close() error { return nil }

func (p *clickPage) WaitPresent(ctx context.Context, sel string, timeout time.Duration) (dom.Element, error) {
	el, err := p.states[p.cur].WaitPresent(ctx, sel, timeout)
	if err != nil {
		return nil, err
	}
	return p.wrap(el), nil
}

func (e clickElement) Click(context.Context) error {
	e.page.clicks++
	if e.page.clicks == e.page.failOn {
		return errors.New("element click intercepted")
	}
	if e.page.cur < len(e.page.states)-1 {
		e.page.cur++
	}
	return nil
}

func (e clickElement) Screenshot(context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (e clickElement) Find(ctx context.Context, sel string) (dom.Element, error) {
	el, err := e.Element.Find(ctx, sel)
	if err != nil {
		return nil, err
	}
	return e.page.wrap(el), nil
}

func (e clickElement) FindAll(ctx context.Context, sel string) ([]dom.Element, error) {
	els, err := e.Element.FindAll(ctx, sel)
	for i := range els {
		els[i] = e.page.wrap(els[i])
	}
	return els, err
}

func TestChartSeriesLegendInteraction(t *testing.T) {
	page := newClickPage(t, 2,
		chartHTML([2]string{"ICU", "45"}, [2]string{"ER", "30"}, [2]string{"Lab", "12"}),
		chartHTML([2]string{"ER", "30"}, [2]string{"Lab", "12"}),
		chartHTML([2]string{"Lab", "12"}),
	)
	w, err := writer.New(t.TempDir(), "output_chart")
	require.NoError(t, err)

	var progress [][2]int
	snaps, err := ChartSeries(context.Background(), page, SeriesOptions{
		Chart:   DoughnutChart(),
		Timeout: time.Second,
		Settle:  fastSettle,
		Writer:  w,
		OnProgress: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 3}, {1, 3}, {2, 3}, {3, 3}}, progress)

	// The second click fails and is skipped
	require.Len(t, snaps, 3)
	assert.Equal(t, 3, page.clicks)
	for i, snap := range snaps {
		assert.Equal(t, i, snap.Index)
		assert.FileExists(t, snap.ImagePath)
		assert.FileExists(t, snap.TablePath)
	}
	assert.Len(t, snaps[0].Data, 3)
	assert.Equal(t, ChartData{{Label: "ER", Value: "30"}, {Label: "Lab", Value: "12"}}, snaps[1].Data)
	assert.Equal(t, ChartData{{Label: "Lab", Value: "12"}}, snaps[2].Data)

	csv, err := os.ReadFile(snaps[2].TablePath)
	require.NoError(t, err)
	assert.Equal(t, "Facility Type,Min Average Time Spent\nLab,12\n", string(csv))
}
