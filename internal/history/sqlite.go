package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	backend     TEXT NOT NULL,
	username    TEXT NOT NULL,
	infile      TEXT NOT NULL,
	outfile     TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS outcomes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	query       TEXT NOT NULL,
	status      TEXT NOT NULL,
	links       INTEGER NOT NULL,
	records     INTEGER NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	recorded_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS outcomes_run_id ON outcomes(run_id);
`

type SQLiteStore struct {
	db *sql.DB
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open history db: %w", err)
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, wrapOpenDB(fmt.Errorf("empty path"))
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, wrapOpenDB(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpenDB(err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, wrapOpenDB(err)
	}
	return &SQLiteStore{db: db}, nil
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (s *SQLiteStore) StartRun(ctx context.Context, run Run) error {
	status := run.Status
	if status == "" {
		status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, backend, username, infile, outfile, started_at, status, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Backend, run.Username, run.Infile, run.Outfile,
		millis(run.StartedAt), string(status), run.Message,
	)
	if err != nil {
		return fmt.Errorf("start run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) RecordOutcome(ctx context.Context, o Outcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, query, status, links, records, message, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Query, string(o.Status), o.Links, o.Records, o.Message, millis(o.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("record outcome for %q: %w", o.Query, err)
	}
	return nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, status Status, finishedAt time.Time, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, message = ? WHERE id = ?`,
		string(status), millis(finishedAt), message, id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: no such run", id)
	}
	return nil
}

func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.backend, r.username, r.infile, r.outfile, r.started_at,
		       r.finished_at, r.status, r.message,
		       COUNT(o.id),
		       COALESCE(SUM(o.status = 'skipped'), 0),
		       COALESCE(SUM(o.records), 0)
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			status   string
		)
		if err := rows.Scan(&r.ID, &r.Backend, &r.Username, &r.Infile, &r.Outfile,
			&started, &finished, &status, &r.Message,
			&r.Names, &r.Skipped, &r.Records); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		r.StartedAt = fromMillis(started)
		if finished.Valid {
			r.FinishedAt = fromMillis(finished.Int64)
		}
		r.Status = Status(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, query, status, links, records, message, recorded_at
		FROM outcomes WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var (
			o        Outcome
			status   string
			recorded int64
		)
		if err := rows.Scan(&o.RunID, &o.Query, &status, &o.Links, &o.Records, &o.Message, &recorded); err != nil {
			return nil, fmt.Errorf("list outcomes: %w", err)
		}
		o.Status = OutcomeStatus(status)
		o.RecordedAt = fromMillis(recorded)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
