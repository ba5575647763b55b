package history

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultMongoDatabase = "linkedin_harvester"

type MongoStore struct {
	client   *mongo.Client
	runs     *mongo.Collection
	outcomes *mongo.Collection
}

type runDoc struct {
	ID         string    `bson:"_id"`
	Backend    string    `bson:"backend"`
	Username   string    `bson:"username"`
	Infile     string    `bson:"infile"`
	Outfile    string    `bson:"outfile"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at,omitempty"`
	Status     string    `bson:"status"`
	Message    string    `bson:"message"`
	Names      int       `bson:"names"`
	Skipped    int       `bson:"skipped"`
	Records    int       `bson:"records"`
}

type outcomeDoc struct {
	RunID      string    `bson:"run_id"`
	Query      string    `bson:"query"`
	Status     string    `bson:"status"`
	Links      int       `bson:"links"`
	Records    int       `bson:"records"`
	Message    string    `bson:"message"`
	RecordedAt time.Time `bson:"recorded_at"`
}

// mongoDatabase takes the database name from the URI path.
func mongoDatabase(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return defaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}

func OpenMongo(ctx context.Context, dsn string) (*MongoStore, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	db := client.Database(mongoDatabase(dsn))
	s := &MongoStore{
		client:   client,
		runs:     db.Collection("runs"),
		outcomes: db.Collection("outcomes"),
	}
	s.createIndexes(cctx)
	return s, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.runs, mongo.IndexModel{Keys: bson.D{{Key: "started_at", Value: -1}}}},
		{s.outcomes, mongo.IndexModel{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "recorded_at", Value: 1}}}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			slog.Warn("creating history index", "collection", idx.coll.Name(), "err", err)
		}
	}
}

func (s *MongoStore) StartRun(ctx context.Context, run Run) error {
	status := run.Status
	if status == "" {
		status = StatusRunning
	}
	_, err := s.runs.InsertOne(ctx, runDoc{
		ID:        run.ID,
		Backend:   run.Backend,
		Username:  run.Username,
		Infile:    run.Infile,
		Outfile:   run.Outfile,
		StartedAt: run.StartedAt,
		Status:    string(status),
		Message:   run.Message,
	})
	if err != nil {
		return fmt.Errorf("start run %s: %w", run.ID, err)
	}
	return nil
}

func (s *MongoStore) RecordOutcome(ctx context.Context, o Outcome) error {
	_, err := s.outcomes.InsertOne(ctx, outcomeDoc{
		RunID:      o.RunID,
		Query:      o.Query,
		Status:     string(o.Status),
		Links:      o.Links,
		Records:    o.Records,
		Message:    o.Message,
		RecordedAt: o.RecordedAt,
	})
	if err != nil {
		return fmt.Errorf("record outcome for %q: %w", o.Query, err)
	}

	inc := bson.M{"names": 1, "records": o.Records}
	if o.Status == OutcomeSkipped {
		inc["skipped"] = 1
	}
	_, err = s.runs.UpdateOne(ctx,
		bson.M{"_id": o.RunID},
		bson.M{"$inc": inc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", o.RunID, err)
	}
	return nil
}

func (s *MongoStore) FinishRun(ctx context.Context, id string, status Status, finishedAt time.Time, message string) error {
	res, err := s.runs.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status), "finished_at": finishedAt, "message": message}},
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("finish run %s: no such run", id)
	}
	return nil
}

func (s *MongoStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.runs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []runDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]Run, 0, len(docs))
	for _, d := range docs {
		runs = append(runs, Run{
			ID:         d.ID,
			Backend:    d.Backend,
			Username:   d.Username,
			Infile:     d.Infile,
			Outfile:    d.Outfile,
			StartedAt:  d.StartedAt.UTC(),
			FinishedAt: d.FinishedAt.UTC(),
			Status:     Status(d.Status),
			Message:    d.Message,
			Names:      d.Names,
			Skipped:    d.Skipped,
			Records:    d.Records,
		})
	}
	return runs, nil
}

func (s *MongoStore) Outcomes(ctx context.Context, runID string) ([]Outcome, error) {
	cursor, err := s.outcomes.Find(ctx,
		bson.M{"run_id": runID},
		options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Outcome
	for cursor.Next(ctx) {
		var d outcomeDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode outcome: %w", err)
		}
		out = append(out, Outcome{
			RunID:      d.RunID,
			Query:      d.Query,
			Status:     OutcomeStatus(d.Status),
			Links:      d.Links,
			Records:    d.Records,
			Message:    d.Message,
			RecordedAt: d.RecordedAt.UTC(),
		})
	}
	return out, cursor.Err()
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
