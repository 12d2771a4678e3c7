package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
)

// runIDCounter is the counters document that hands out run IDs.
const runIDCounter = "sync_run_id"

// SyncRunStore implements storage.SyncRunStore.
// IDs come from an atomic counter so they stay sequential like the SQL store.
type SyncRunStore struct {
	col *mgo.Collection
	ids *CounterStore
}

// NewSyncRunStore creates a new SyncRunStore.
func NewSyncRunStore(db *Database) *SyncRunStore {
	return &SyncRunStore{
		col: db.db.Collection(runsCollection),
		ids: NewCounterStore(db),
	}
}

// Compile-time interface check.
var _ storage.SyncRunStore = (*SyncRunStore)(nil)

type runDoc struct {
	ID         int64     `bson:"_id"`
	Kind       string    `bson:"kind"`
	Source     string    `bson:"source"`
	Fetched    int       `bson:"fetched"`
	Written    int       `bson:"written"`
	Skipped    int       `bson:"skipped"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
}

func (d *runDoc) toDomain() *domain.SyncRun {
	return &domain.SyncRun{
		ID:         d.ID,
		Kind:       domain.RunKind(d.Kind),
		Source:     domain.Source(d.Source),
		Fetched:    d.Fetched,
		Written:    d.Written,
		Skipped:    d.Skipped,
		StartedAt:  d.StartedAt.UTC(),
		FinishedAt: d.FinishedAt.UTC(),
	}
}

// Insert appends a run and assigns its ID.
func (s *SyncRunStore) Insert(ctx context.Context, run *domain.SyncRun) error {
	if run == nil {
		return storage.ErrInvalidInput
	}
	id, err := s.ids.Increment(ctx, runIDCounter, 1)
	if err != nil {
		return err
	}

	doc := runDoc{
		ID:         id,
		Kind:       string(run.Kind),
		Source:     run.Source.String(),
		Fetched:    run.Fetched,
		Written:    run.Written,
		Skipped:    run.Skipped,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	run.ID = id
	return nil
}

// Latest returns the newest run for kind and source. Returns ErrNotFound if none.
func (s *SyncRunStore) Latest(ctx context.Context, kind domain.RunKind, source domain.Source) (*domain.SyncRun, error) {
	var doc runDoc
	err := s.col.FindOne(ctx,
		bson.M{"kind": string(kind), "source": source.String()},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}),
	).Decode(&doc)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest sync run: %w", err)
	}
	return doc.toDomain(), nil
}

// Recent returns the newest runs, newest first. limit <= 0 returns all.
func (s *SyncRunStore) Recent(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("recent sync runs: %w", err)
	}
	defer cur.Close(ctx)

	var result []*domain.SyncRun
	for cur.Next(ctx) {
		var doc runDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode sync run: %w", err)
		}
		result = append(result, doc.toDomain())
	}
	return result, cur.Err()
}
