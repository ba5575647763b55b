// Package history keeps a ledger of crawl runs and of what happened to every
// name in them. Runs are stored in a local sqlite file or in MongoDB.
package history

import (
	"context"
	"strings"
	"time"
)

type Status string

const (
	StatusRunning     Status = "running"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeError   OutcomeStatus = "error"
)

type Run struct {
	ID         string
	Backend    string
	Username   string
	Infile     string
	Outfile    string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     Status
	Message    string

	// Filled in from the run's outcomes when listing.
	Names   int
	Skipped int
	Records int
}

type Outcome struct {
	RunID      string
	Query      string
	Status     OutcomeStatus
	Links      int
	Records    int
	Message    string
	RecordedAt time.Time
}

type Store interface {
	StartRun(ctx context.Context, run Run) error
	RecordOutcome(ctx context.Context, o Outcome) error
	FinishRun(ctx context.Context, id string, status Status, finishedAt time.Time, message string) error
	// Runs returns the most recent runs first.
	Runs(ctx context.Context, limit int) ([]Run, error)
	Outcomes(ctx context.Context, runID string) ([]Outcome, error)
	Close() error
}

// Open picks the store from the DSN: a mongodb:// or mongodb+srv:// URI
// selects MongoDB, anything else is a sqlite file path.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "mongodb://") || strings.HasPrefix(dsn, "mongodb+srv://") {
		return OpenMongo(ctx, dsn)
	}
	return OpenSQLite(ctx, dsn)
}
