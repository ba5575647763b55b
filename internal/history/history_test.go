package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.StartRun(ctx, Run{
		ID: "run-1", Backend: "http", Username: "me@example.com",
		Infile: "names.txt", Outfile: "out.csv", StartedAt: start,
	}))
	outcomes := []Outcome{
		{RunID: "run-1", Query: "Jane Doe", Status: OutcomeSuccess, Links: 1, Records: 1, RecordedAt: start.Add(time.Second)},
		{RunID: "run-1", Query: "John Smith", Status: OutcomeSkipped, Message: "results: not found", RecordedAt: start.Add(2 * time.Second)},
		{RunID: "run-1", Query: "Ada Lovelace", Status: OutcomeSuccess, Links: 3, Records: 2, Message: "1 profile(s) skipped", RecordedAt: start.Add(3 * time.Second)},
	}
	for _, o := range outcomes {
		require.NoError(t, s.RecordOutcome(ctx, o))
	}

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, StatusRunning, runs[0].Status)
	require.True(t, runs[0].FinishedAt.IsZero())

	finish := start.Add(time.Minute)
	require.NoError(t, s.FinishRun(ctx, "run-1", StatusDone, finish, ""))

	runs, err = s.Runs(ctx, 10)
	require.NoError(t, err)
	want := Run{
		ID: "run-1", Backend: "http", Username: "me@example.com",
		Infile: "names.txt", Outfile: "out.csv",
		StartedAt: start, FinishedAt: finish, Status: StatusDone,
		Names: 3, Skipped: 1, Records: 3,
	}
	if diff := cmp.Diff([]Run{want}, runs); diff != "" {
		t.Errorf("runs mismatch (-want +got):\n%s", diff)
	}

	got, err := s.Outcomes(ctx, "run-1")
	require.NoError(t, err)
	if diff := cmp.Diff(outcomes, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.StartRun(ctx, Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	runs, err := s.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "c", runs[0].ID)
	require.Equal(t, "b", runs[1].ID)
	require.Zero(t, runs[0].Names)

	all, err := s.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestSQLiteFinishUnknownRun(t *testing.T) {
	s := openTestStore(t)
	err := s.FinishRun(context.Background(), "missing", StatusFailed, time.Now(), "boom")
	require.ErrorContains(t, err, "no such run")
}

func TestSQLiteDuplicateRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.StartRun(ctx, Run{ID: "a", StartedAt: time.Now()}))
	require.Error(t, s.StartRun(ctx, Run{ID: "a", StartedAt: time.Now()}))
}

func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.StartRun(ctx, Run{ID: "a", StartedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestMongoDatabaseName(t *testing.T) {
	require.Equal(t, "crawls", mongoDatabase("mongodb://localhost:27017/crawls?retryWrites=true"))
	require.Equal(t, defaultMongoDatabase, mongoDatabase("mongodb://localhost:27017"))
	require.Equal(t, defaultMongoDatabase, mongoDatabase("mongodb://localhost:27017/"))
}

func TestOpenMongoUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for server selection")
	}
	_, err := Open(context.Background(), "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200")
	require.ErrorContains(t, err, "MongoDB")
}
