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

// maxCASAttempts bounds the compare-and-swap loop in UpsertMerge.
const maxCASAttempts = 8

// recordDoc is the stored document. Rev increments on every write and
// guards replacements.
type recordDoc struct {
	Address     string     `bson:"_id"`
	Rev         int64      `bson:"rev"`
	Name        string     `bson:"name"`
	Symbol      string     `bson:"symbol"`
	Handle      string     `bson:"handle"`
	AvatarURL   *string    `bson:"avatar_url,omitempty"`
	Karma       int        `bson:"karma"`
	Source      string     `bson:"source"`
	Price       *float64   `bson:"price,omitempty"`
	MarketCap   *float64   `bson:"market_cap,omitempty"`
	Volume24h   *float64   `bson:"volume_24h,omitempty"`
	Liquidity   *float64   `bson:"liquidity,omitempty"`
	Change24h   *float64   `bson:"change_24h,omitempty"`
	HolderCount *int64     `bson:"holder_count,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	TokenizedAt *time.Time `bson:"tokenized_at,omitempty"`
}

func toDoc(r *domain.TokenRecord, rev int64) *recordDoc {
	d := &recordDoc{
		Address:     r.Address,
		Rev:         rev,
		Name:        r.Name,
		Symbol:      r.Symbol,
		Handle:      r.Handle,
		AvatarURL:   r.AvatarURL,
		Karma:       r.Karma,
		Source:      string(r.Source),
		Price:       r.Market.Price,
		MarketCap:   r.Market.MarketCap,
		Volume24h:   r.Market.Volume24h,
		Liquidity:   r.Market.Liquidity,
		Change24h:   r.Market.Change24h,
		HolderCount: r.Market.HolderCount,
		CreatedAt:   r.CreatedAt.UTC().Truncate(time.Millisecond),
		UpdatedAt:   r.UpdatedAt.UTC().Truncate(time.Millisecond),
	}
	if r.TokenizedAt != nil {
		t := r.TokenizedAt.UTC().Truncate(time.Millisecond)
		d.TokenizedAt = &t
	}
	return d
}

func (d *recordDoc) record() *domain.TokenRecord {
	r := &domain.TokenRecord{
		Address:   d.Address,
		Name:      d.Name,
		Symbol:    d.Symbol,
		Handle:    d.Handle,
		AvatarURL: d.AvatarURL,
		Karma:     d.Karma,
		Source:    domain.Source(d.Source),
		Market: domain.MarketData{
			Price:       d.Price,
			MarketCap:   d.MarketCap,
			Volume24h:   d.Volume24h,
			Liquidity:   d.Liquidity,
			Change24h:   d.Change24h,
			HolderCount: d.HolderCount,
		},
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.TokenizedAt != nil {
		t := d.TokenizedAt.UTC()
		r.TokenizedAt = &t
	}
	return r
}

// RecordStore implements storage.RecordStore on MongoDB.
// MongoDB has no per-field conditional merge, so UpsertMerge reads the
// document, merges in process and replaces it only if rev is unchanged.
type RecordStore struct {
	col *mgo.Collection
	now func() time.Time
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(db *Database) *RecordStore {
	return &RecordStore{col: db.db.Collection(recordsCollection), now: time.Now}
}

// Compile-time interface check.
var _ storage.RecordStore = (*RecordStore)(nil)

// Get retrieves a record by address. Returns ErrNotFound if not exists.
func (s *RecordStore) Get(ctx context.Context, address string) (*domain.TokenRecord, error) {
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	doc, err := s.find(ctx, addr)
	if err != nil {
		return nil, err
	}
	return doc.record(), nil
}

func (s *RecordStore) find(ctx context.Context, addr string) (*recordDoc, error) {
	var doc recordDoc
	err := s.col.FindOne(ctx, bson.M{"_id": addr}).Decode(&doc)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find token record: %w", err)
	}
	return &doc, nil
}

// UpsertMerge applies patch under policy with a compare-and-swap retry loop.
// Returns ErrConflict when every attempt lost the race.
func (s *RecordStore) UpsertMerge(ctx context.Context, patch *domain.RecordPatch, policy storage.MergePolicy) (*domain.TokenRecord, error) {
	if patch == nil {
		return nil, storage.ErrInvalidInput
	}
	p := *patch
	if err := storage.ValidatePatch(&p); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		now := s.now().UTC().Truncate(time.Millisecond)

		doc, err := s.find(ctx, p.Address)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		if doc == nil {
			merged, err := storage.Merge(nil, &p, policy, now)
			if err != nil {
				return nil, err
			}
			_, err = s.col.InsertOne(ctx, toDoc(merged, 1))
			if mgo.IsDuplicateKeyError(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("insert token record: %w", err)
			}
			return toDoc(merged, 1).record(), nil
		}

		existing := doc.record()
		merged, err := storage.Merge(existing, &p, policy, now)
		if err != nil {
			return nil, err
		}
		if merged.ContentEqual(existing) {
			return merged, nil
		}

		res, err := s.col.ReplaceOne(ctx,
			bson.M{"_id": p.Address, "rev": doc.Rev},
			toDoc(merged, doc.Rev+1),
		)
		if err != nil {
			return nil, fmt.Errorf("replace token record: %w", err)
		}
		if res.MatchedCount == 1 {
			return toDoc(merged, doc.Rev+1).record(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrConflict, p.Address)
}

// List returns records matching filter. Predicates run in MongoDB; ordering
// and limit run in process so missing values sort the same on every backend.
func (s *RecordStore) List(ctx context.Context, filter storage.RecordFilter) ([]*domain.TokenRecord, error) {
	cur, err := s.col.Find(ctx, listQuery(filter))
	if err != nil {
		return nil, fmt.Errorf("list token records: %w", err)
	}
	defer cur.Close(ctx)

	var result []*domain.TokenRecord
	for cur.Next(ctx) {
		var doc recordDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode token record: %w", err)
		}
		result = append(result, doc.record())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate token records: %w", err)
	}
	return filter.Apply(result), nil
}

func listQuery(filter storage.RecordFilter) bson.M {
	q := bson.M{}
	var sources []string
	if len(filter.Sources) > 0 {
		sources = sourceStrings(filter.Sources)
	}
	if filter.VerifiedOnly {
		verified := sourceStrings(domain.VerifiedSources())
		if sources == nil {
			sources = verified
		} else {
			sources = intersect(sources, verified)
		}
	}
	if sources != nil {
		q["source"] = bson.M{"$in": sources}
	}
	if filter.HasPrice {
		q["price"] = bson.M{"$exists": true}
	}
	if filter.MinVolume != nil {
		q["volume_24h"] = bson.M{"$gte": *filter.MinVolume}
	}
	if filter.MinLiquidity != nil {
		q["liquidity"] = bson.M{"$gte": *filter.MinLiquidity}
	}
	if filter.MinMarketCap != nil {
		q["market_cap"] = bson.M{"$gte": *filter.MinMarketCap}
	}
	return q
}

// Addresses returns every stored address in ascending order.
func (s *RecordStore) Addresses(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer cur.Close(ctx)

	var result []string
	for cur.Next(ctx) {
		var row struct {
			Address string `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode address: %w", err)
		}
		result = append(result, row.Address)
	}
	return result, cur.Err()
}

func sourceStrings(sources []domain.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}

func intersect(a, b []string) []string {
	out := []string{}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}
