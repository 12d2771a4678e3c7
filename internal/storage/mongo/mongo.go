// Package mongo implements the record and counter stores on MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	recordsCollection  = "token_records"
	countersCollection = "counters"
	runsCollection     = "sync_runs"

	connectTimeout = 10 * time.Second
)

// Database wraps a connected client and the database it serves.
type Database struct {
	client *mgo.Client
	db     *mgo.Database
}

// Connect opens a client to uri and verifies it with a ping.
func Connect(ctx context.Context, uri, database string) (*Database, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mgo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Database{client: client, db: client.Database(database)}, nil
}

// EnsureIndexes creates the secondary indexes used by List.
func (d *Database) EnsureIndexes(ctx context.Context) error {
	_, err := d.db.Collection(recordsCollection).Indexes().CreateMany(ctx, []mgo.IndexModel{
		{Keys: bson.D{{Key: "source", Value: 1}}},
		{Keys: bson.D{{Key: "volume_24h", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create record indexes: %w", err)
	}
	_, err = d.db.Collection(runsCollection).Indexes().CreateOne(ctx, mgo.IndexModel{
		Keys: bson.D{{Key: "kind", Value: 1}, {Key: "source", Value: 1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create run indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (d *Database) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}
