package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"linkedin-harvester/internal/harvest"
	"linkedin-harvester/internal/history"
)

func TestSummary(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sum := harvest.Summary{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Records:    1,
		Results: []harvest.QueryResult{
			{Query: "Jane Doe", Reached: harvest.StatePersisting, Links: 1, Records: 1},
			{Query: "John Smith", Reached: harvest.StateCollecting, Skipped: true, Note: "results: not found"},
		},
	}

	var buf bytes.Buffer
	Summary(&buf, sum)
	out := buf.String()

	require.Contains(t, out, "Run run-1")
	require.Contains(t, out, "Jane Doe")
	require.Contains(t, out, "persisting")
	require.Contains(t, out, "skipped: results: not found")
	require.Contains(t, out, "1 SKIPPED")
	require.Contains(t, out, "1M30S")
}

func TestRuns(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	runs := []history.Run{
		{ID: "run-2", StartedAt: start, Status: history.StatusRunning, Backend: "chrome", Names: 2},
		{ID: "run-1", StartedAt: start, FinishedAt: start.Add(time.Minute), Status: history.StatusDone,
			Backend: "http", Username: "me@example.com", Names: 3, Skipped: 1, Records: 2, Outfile: "data/out.csv"},
	}

	var buf bytes.Buffer
	Runs(&buf, runs)
	out := buf.String()

	require.Contains(t, out, "run-2")
	require.Contains(t, out, "running")
	require.Contains(t, out, "data/out.csv")
	require.Contains(t, out, "1m0s")
	require.Less(t, bytes.Index(buf.Bytes(), []byte("run-2")), bytes.Index(buf.Bytes(), []byte("run-1")))
}

func TestOutcomes(t *testing.T) {
	var buf bytes.Buffer
	Outcomes(&buf, []history.Outcome{
		{Query: "Jane Doe", Status: history.OutcomeSuccess, Links: 1, Records: 1},
		{Query: "Ada Lovelace", Status: history.OutcomeError, Message: "context canceled"},
	})
	require.Contains(t, buf.String(), "context canceled")
	require.Contains(t, buf.String(), "success")
}
