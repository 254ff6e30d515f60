// Package ui renders verdicts, datasets and check results for the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/go-scripts/dqcheck/internal/extract"
	"github.com/go-scripts/dqcheck/internal/quality"
	"github.com/go-scripts/dqcheck/internal/reconcile"
)

// maxDiffLines caps the cell differences listed under a verdict
const maxDiffLines = 10

// Verdict renders a comparison verdict in a bordered box
func Verdict(v reconcile.Verdict) string {
	var b strings.Builder

	if v.OK() {
		b.WriteString(successStyle.Render(string(v.Status)))
	} else {
		b.WriteString(errorStyle.Render(string(v.Status)))
	}
	if v.Detail != "" {
		b.WriteString("\n" + v.Detail)
	}

	if len(v.Diffs) > 1 {
		b.WriteString("\n" + titleStyle.Render("Differences"))
		for i, d := range v.Diffs {
			if i == maxDiffLines {
				b.WriteString("\n" + infoStyle.Render(fmt.Sprintf("… %d more", len(v.Diffs)-maxDiffLines)))
				break
			}
			b.WriteString(fmt.Sprintf("\n  row %d %s: %s → %s", d.Row, d.Column,
				truncate(dataset.Describe(d.Expected), 30), truncate(dataset.Describe(d.Got), 30)))
		}
	}
	if v.Truncated {
		b.WriteString("\n" + warningStyle.Render(fmt.Sprintf("more than %d cells differ", reconcile.MaxDiffs)))
	}

	return borderStyle.Render(b.String())
}

// Dataset renders a dataset as a table with an optional title
func Dataset(title string, ds *dataset.Dataset) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if title != "" {
		t.SetTitle(title)
	}

	header := table.Row{}
	for _, name := range ds.Names() {
		header = append(header, name)
	}
	t.AppendHeader(header)

	for i := 0; i < ds.NumRows(); i++ {
		row := table.Row{}
		for _, v := range ds.Row(i) {
			row = append(row, dataset.Format(v))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

// Checks renders the results of a data-quality run
func Checks(report quality.Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Check", "Result", "Detail"})

	for _, r := range report.Results {
		var result string
		switch {
		case r.Passed && !r.ExpectFail:
			result = successStyle.Render("PASS")
		case !r.Passed && r.ExpectFail:
			result = warningStyle.Render("XFAIL")
		case r.Passed && r.ExpectFail:
			result = errorStyle.Render("XPASS")
		default:
			result = errorStyle.Render("FAIL")
		}
		t.AppendRow(table.Row{r.Name, result, truncate(r.Error, 80)})
	}
	t.SetCaption("%d of %d failed", report.Failed(), len(report.Results))
	return t.Render()
}

// Snapshots lists the captured chart states and their artifacts
func Snapshots(snaps []extract.Snapshot) string {
	if len(snaps) == 0 {
		return infoStyle.Render("No chart states captured")
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Slices", "Image", "Table"})
	for _, s := range snaps {
		labels := make([]string, len(s.Data))
		for i, sl := range s.Data {
			labels[i] = sl.Label + "=" + sl.Value
		}
		t.AppendRow(table.Row{s.Index, truncate(strings.Join(labels, ", "), 50), s.ImagePath, s.TablePath})
	}
	return t.Render()
}

// truncate shortens s to w display columns without splitting a rune
func truncate(s string, w int) string {
	if text.RuneWidthWithoutEscSequences(s) <= w {
		return s
	}
	return text.Trim(s, w-3) + "..."
}
