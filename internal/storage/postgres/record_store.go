package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"launchpad-index/internal/domain"
	"launchpad-index/internal/storage"
)

// RecordStore implements storage.RecordStore using PostgreSQL.
// Every merge is one statement, so concurrent writers never lose fields.
type RecordStore struct {
	pool *Pool
	now  func() time.Time
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool, now: time.Now}
}

// Compile-time interface check.
var _ storage.RecordStore = (*RecordStore)(nil)

const recordColumns = `address, name, symbol, handle, avatar_url, karma, source,
	price, market_cap, volume_24h, liquidity, change_24h, holder_count,
	created_at, updated_at, tokenized_at`

const emptyHandleFill = `CASE WHEN token_records.handle = '' THEN EXCLUDED.handle ELSE token_records.handle END`

// upsertListingQuery inserts the record built from the patch, or merges the
// supplied fields into the existing row. $1-$16 are the insert values,
// $17-$23 the non-market patch fields (NULL when not supplied).
// Market columns come from EXCLUDED since an inserted row carries exactly
// the patch's market fields. An empty stored handle takes the derived one.
const upsertListingQuery = `
	INSERT INTO token_records (` + recordColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (address) DO UPDATE SET
		name         = COALESCE($17::text, token_records.name),
		symbol       = COALESCE($18::text, token_records.symbol),
		handle       = COALESCE($19::text, ` + emptyHandleFill + `),
		avatar_url   = COALESCE($20::text, token_records.avatar_url),
		karma        = COALESCE($21::integer, token_records.karma),
		tokenized_at = COALESCE($22::timestamptz, token_records.tokenized_at),
		source       = COALESCE($23::text, token_records.source),
		price        = COALESCE(EXCLUDED.price, token_records.price),
		market_cap   = COALESCE(EXCLUDED.market_cap, token_records.market_cap),
		volume_24h   = COALESCE(EXCLUDED.volume_24h, token_records.volume_24h),
		liquidity    = COALESCE(EXCLUDED.liquidity, token_records.liquidity),
		change_24h   = COALESCE(EXCLUDED.change_24h, token_records.change_24h),
		holder_count = COALESCE(EXCLUDED.holder_count, token_records.holder_count),
		updated_at   = CASE WHEN (
			COALESCE($17::text, token_records.name),
			COALESCE($18::text, token_records.symbol),
			COALESCE($19::text, ` + emptyHandleFill + `),
			COALESCE($20::text, token_records.avatar_url),
			COALESCE($21::integer, token_records.karma),
			COALESCE($22::timestamptz, token_records.tokenized_at),
			COALESCE($23::text, token_records.source),
			COALESCE(EXCLUDED.price, token_records.price),
			COALESCE(EXCLUDED.market_cap, token_records.market_cap),
			COALESCE(EXCLUDED.volume_24h, token_records.volume_24h),
			COALESCE(EXCLUDED.liquidity, token_records.liquidity),
			COALESCE(EXCLUDED.change_24h, token_records.change_24h),
			COALESCE(EXCLUDED.holder_count, token_records.holder_count)
		) IS DISTINCT FROM (
			token_records.name, token_records.symbol, token_records.handle,
			token_records.avatar_url, token_records.karma, token_records.tokenized_at,
			token_records.source, token_records.price, token_records.market_cap,
			token_records.volume_24h, token_records.liquidity, token_records.change_24h,
			token_records.holder_count
		) THEN EXCLUDED.updated_at ELSE token_records.updated_at END
	RETURNING ` + recordColumns

// updateMarketQuery merges market fields into an existing row only.
const updateMarketQuery = `
	UPDATE token_records SET
		price        = COALESCE($2::double precision, price),
		market_cap   = COALESCE($3::double precision, market_cap),
		volume_24h   = COALESCE($4::double precision, volume_24h),
		liquidity    = COALESCE($5::double precision, liquidity),
		change_24h   = COALESCE($6::double precision, change_24h),
		holder_count = COALESCE($7::bigint, holder_count),
		updated_at   = CASE WHEN (
			COALESCE($2::double precision, price),
			COALESCE($3::double precision, market_cap),
			COALESCE($4::double precision, volume_24h),
			COALESCE($5::double precision, liquidity),
			COALESCE($6::double precision, change_24h),
			COALESCE($7::bigint, holder_count)
		) IS DISTINCT FROM (
			price, market_cap, volume_24h, liquidity, change_24h, holder_count
		) THEN $8 ELSE updated_at END
	WHERE address = $1
	RETURNING ` + recordColumns

// Get retrieves a record by address. Returns ErrNotFound if not exists.
func (s *RecordStore) Get(ctx context.Context, address string) (*domain.TokenRecord, error) {
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	query := `SELECT ` + recordColumns + ` FROM token_records WHERE address = $1`
	r, err := scanRecord(s.pool.QueryRow(ctx, query, addr))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token record: %w", err)
	}
	return r, nil
}

// UpsertMerge applies patch under policy in a single statement.
func (s *RecordStore) UpsertMerge(ctx context.Context, patch *domain.RecordPatch, policy storage.MergePolicy) (*domain.TokenRecord, error) {
	if patch == nil {
		return nil, storage.ErrInvalidInput
	}
	p := *patch
	if err := storage.ValidatePatch(&p); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	switch policy {
	case storage.MergeListing:
		return s.upsertListing(ctx, &p, now)
	case storage.MergeMarketOnly:
		return s.updateMarket(ctx, &p, now)
	default:
		return nil, fmt.Errorf("%w: merge policy %d", storage.ErrInvalidInput, policy)
	}
}

func (s *RecordStore) upsertListing(ctx context.Context, p *domain.RecordPatch, now time.Time) (*domain.TokenRecord, error) {
	ins := p.NewRecord(now)

	var source *string
	if p.Source != "" {
		v := string(p.Source)
		source = &v
	}

	row := s.pool.QueryRow(ctx, upsertListingQuery,
		ins.Address,
		ins.Name,
		ins.Symbol,
		ins.Handle,
		ins.AvatarURL,
		ins.Karma,
		string(ins.Source),
		ins.Market.Price,
		ins.Market.MarketCap,
		ins.Market.Volume24h,
		ins.Market.Liquidity,
		ins.Market.Change24h,
		ins.Market.HolderCount,
		ins.CreatedAt,
		ins.UpdatedAt,
		ins.TokenizedAt,
		p.Name,
		p.Symbol,
		p.Handle,
		p.AvatarURL,
		p.Karma,
		p.TokenizedAt,
		source,
	)
	r, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("upsert token record: %w", err)
	}
	return r, nil
}

func (s *RecordStore) updateMarket(ctx context.Context, p *domain.RecordPatch, now time.Time) (*domain.TokenRecord, error) {
	row := s.pool.QueryRow(ctx, updateMarketQuery,
		p.Address,
		p.Market.Price,
		p.Market.MarketCap,
		p.Market.Volume24h,
		p.Market.Liquidity,
		p.Market.Change24h,
		p.Market.HolderCount,
		now,
	)
	r, err := scanRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("update token market: %w", err)
	}
	return r, nil
}

// List returns records matching filter. Predicates, ordering and limit run in SQL.
func (s *RecordStore) List(ctx context.Context, filter storage.RecordFilter) ([]*domain.TokenRecord, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Sources) > 0 {
		where = append(where, "source = ANY("+arg(sourceStrings(filter.Sources))+")")
	}
	if filter.VerifiedOnly {
		where = append(where, "source = ANY("+arg(sourceStrings(domain.VerifiedSources()))+")")
	}
	if filter.HasPrice {
		where = append(where, "price IS NOT NULL")
	}
	if filter.MinVolume != nil {
		where = append(where, "volume_24h >= "+arg(*filter.MinVolume))
	}
	if filter.MinLiquidity != nil {
		where = append(where, "liquidity >= "+arg(*filter.MinLiquidity))
	}
	if filter.MinMarketCap != nil {
		where = append(where, "market_cap >= "+arg(*filter.MinMarketCap))
	}

	query := `SELECT ` + recordColumns + ` FROM token_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderClause(filter.SortBy, filter.Ascending)
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list token records: %w", err)
	}
	defer rows.Close()

	var result []*domain.TokenRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token record: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token records: %w", err)
	}
	return result, nil
}

// Addresses returns every stored address in ascending order.
func (s *RecordStore) Addresses(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT address FROM token_records ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		result = append(result, addr)
	}
	return result, rows.Err()
}

// orderClause mirrors storage.SortRecords: missing values last, ties on address.
func orderClause(field storage.SortField, ascending bool) string {
	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	var column string
	switch field {
	case storage.SortByVolume:
		column = "volume_24h"
	case storage.SortByMarketCap:
		column = "market_cap"
	case storage.SortByChange:
		column = "change_24h"
	case storage.SortByCreated:
		column = "created_at"
	case storage.SortByKarma:
		column = "karma"
	default:
		return "address ASC"
	}
	return column + " " + dir + " NULLS LAST, address ASC"
}

func sourceStrings(sources []domain.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}

// scanRecord scans a single row into TokenRecord.
func scanRecord(row pgx.Row) (*domain.TokenRecord, error) {
	var (
		r      domain.TokenRecord
		source string
	)

	err := row.Scan(
		&r.Address,
		&r.Name,
		&r.Symbol,
		&r.Handle,
		&r.AvatarURL,
		&r.Karma,
		&source,
		&r.Market.Price,
		&r.Market.MarketCap,
		&r.Market.Volume24h,
		&r.Market.Liquidity,
		&r.Market.Change24h,
		&r.Market.HolderCount,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.TokenizedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Source = domain.Source(source)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}
