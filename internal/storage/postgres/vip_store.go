package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/storage"
)

// VipStore implements storage.VipStore using PostgreSQL.
// ApplyOutcome merges server-side in one upsert, so it never returns ErrConflict.
type VipStore struct {
	pool *Pool
}

// NewVipStore creates a new VipStore.
func NewVipStore(pool *Pool) *VipStore {
	return &VipStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VipStore = (*VipStore)(nil)

// Get returns the record for handle. Returns ErrNotFound if none.
func (s *VipStore) Get(ctx context.Context, handle string) (*domain.VipRecord, error) {
	query := `
		SELECT handle, platform, influence_score, coins_influenced, updated_at, version
		FROM vip_records
		WHERE handle = $1
	`

	r, err := scanVipRecord(s.pool.QueryRow(ctx, query, handle))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get vip record: %w", err)
	}
	return r, nil
}

// ApplyOutcome creates the record or merges the outcome into it atomically.
func (s *VipStore) ApplyOutcome(ctx context.Context, o storage.VipOutcome) (*domain.VipRecord, error) {
	began := time.Now()
	out, err := s.applyOutcome(ctx, o)
	observe("vip_apply_outcome", began, err)
	return out, err
}

func (s *VipStore) applyOutcome(ctx context.Context, o storage.VipOutcome) (*domain.VipRecord, error) {
	if o.Handle == "" || o.Coin == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO vip_records (handle, platform, influence_score, coins_influenced, updated_at, version)
		VALUES ($1, $2, $3, ARRAY[$4::text], $5, 1)
		ON CONFLICT (handle) DO UPDATE SET
			influence_score = LEAST(100, vip_records.influence_score + $6),
			coins_influenced = CASE
				WHEN $4::text = ANY(vip_records.coins_influenced) THEN vip_records.coins_influenced
				ELSE array_append(vip_records.coins_influenced, $4::text)
			END,
			updated_at = EXCLUDED.updated_at,
			version = vip_records.version + 1
		RETURNING handle, platform, influence_score, coins_influenced, updated_at, version
	`

	r, err := scanVipRecord(s.pool.QueryRow(ctx, query,
		o.Handle, o.Platform, o.InitialScore, o.Coin, o.At, o.Delta,
	))
	if err != nil {
		return nil, fmt.Errorf("apply vip outcome: %w", err)
	}
	return r, nil
}

// SeedIfAbsent inserts r unless the handle exists.
func (s *VipStore) SeedIfAbsent(ctx context.Context, r *domain.VipRecord) (bool, error) {
	if r == nil || r.Handle == "" {
		return false, storage.ErrInvalidInput
	}

	coins := r.CoinsInfluenced
	if coins == nil {
		coins = []string{}
	}

	query := `
		INSERT INTO vip_records (handle, platform, influence_score, coins_influenced, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (handle) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query, r.Handle, r.Platform, r.InfluenceScore, coins, r.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("seed vip record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Top returns up to limit records ordered by score DESC, handle ASC.
func (s *VipStore) Top(ctx context.Context, limit int) ([]*domain.VipRecord, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}

	query := `
		SELECT handle, platform, influence_score, coins_influenced, updated_at, version
		FROM vip_records
		ORDER BY influence_score DESC, handle ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list top vips: %w", err)
	}
	defer rows.Close()

	var records []*domain.VipRecord
	for rows.Next() {
		r, err := scanVipRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vip record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vip records: %w", err)
	}
	return records, nil
}

func scanVipRecord(row pgx.Row) (*domain.VipRecord, error) {
	var r domain.VipRecord
	err := row.Scan(&r.Handle, &r.Platform, &r.InfluenceScore, &r.CoinsInfluenced, &r.UpdatedAt, &r.Version)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
