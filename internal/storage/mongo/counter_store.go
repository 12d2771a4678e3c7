package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"launchpad-index/internal/storage"
)

// CounterStore implements storage.CounterStore with $inc upserts.
type CounterStore struct {
	col *mgo.Collection
}

// NewCounterStore creates a new CounterStore.
func NewCounterStore(db *Database) *CounterStore {
	return &CounterStore{col: db.db.Collection(countersCollection)}
}

// Compile-time interface check.
var _ storage.CounterStore = (*CounterStore)(nil)

type counterDoc struct {
	Name  string `bson:"_id"`
	Value int64  `bson:"value"`
}

// Increment atomically adds delta and returns the new value.
func (s *CounterStore) Increment(ctx context.Context, name string, delta int64) (int64, error) {
	if name == "" {
		return 0, storage.ErrInvalidInput
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": delta}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	return doc.Value, nil
}

// GetCounter returns the counter value, 0 when unset.
func (s *CounterStore) GetCounter(ctx context.Context, name string) (int64, error) {
	var doc counterDoc
	err := s.col.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get counter %s: %w", name, err)
	}
	return doc.Value, nil
}

// SetCounter overwrites the counter value.
func (s *CounterStore) SetCounter(ctx context.Context, name string, value int64) error {
	if name == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("set counter %s: %w", name, err)
	}
	return nil
}
