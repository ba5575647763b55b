package harvest

import (
	"time"
)

// State is how far the crawl got with one name.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateCollecting
	StateExtracting
	StatePersisting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearching:
		return "searching"
	case StateCollecting:
		return "collecting"
	case StateExtracting:
		return "extracting"
	case StatePersisting:
		return "persisting"
	}
	return "unknown"
}

// QueryResult is the outcome of one search cycle.
type QueryResult struct {
	Query   string
	Reached State
	Links   int
	Records int
	// SkippedLinks counts profiles that had no overview section or could
	// not be loaded.
	SkippedLinks int
	Skipped      bool
	Note         string
	// Err is set only on the result of the name that stopped the crawl.
	// Such a result is reported to OnResult but not kept in the Summary.
	Err error
}

type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []QueryResult
	Records    int
}

func (s Summary) SkippedNames() int {
	n := 0
	for _, r := range s.Results {
		if r.Skipped {
			n++
		}
	}
	return n
}
