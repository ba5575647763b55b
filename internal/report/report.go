// Package report renders crawl results as terminal tables.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"linkedin-harvester/internal/harvest"
	"linkedin-harvester/internal/history"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// Summary prints one row per searched name and the run totals.
func Summary(w io.Writer, sum harvest.Summary) {
	t := newTable(w)
	t.SetTitle("Run %s", sum.RunID)
	t.AppendHeader(table.Row{"#", "Name", "Reached", "Links", "Records", "Note"})
	for i, r := range sum.Results {
		note := r.Note
		if r.Skipped {
			note = "skipped: " + note
		}
		t.AppendRow(table.Row{i + 1, r.Query, r.Reached.String(), r.Links, r.Records, note})
	}
	t.AppendFooter(table.Row{"", "Total", fmt.Sprintf("%d skipped", sum.SkippedNames()), "", sum.Records,
		elapsed(sum.StartedAt, sum.FinishedAt)})
	t.Render()
}

// Runs prints a run listing, newest first as given.
func Runs(w io.Writer, runs []history.Run) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Started", "Took", "Status", "Backend", "User", "Names", "Skipped", "Records", "Output"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format(timeLayout),
			elapsed(r.StartedAt, r.FinishedAt),
			string(r.Status),
			r.Backend,
			r.Username,
			r.Names,
			r.Skipped,
			r.Records,
			r.Outfile,
		})
	}
	t.Render()
}

// Outcomes prints the per-name ledger of one run.
func Outcomes(w io.Writer, outcomes []history.Outcome) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Status", "Links", "Records", "Message"})
	for _, o := range outcomes {
		t.AppendRow(table.Row{o.Query, string(o.Status), o.Links, o.Records, o.Message})
	}
	t.Render()
}

func elapsed(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return "-"
	}
	return end.Sub(start).Round(time.Second).String()
}
