package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// SyncStateStore implements domain.SyncStateStore using PostgreSQL.
type SyncStateStore struct {
	pool *pgxpool.Pool
}

// NewSyncStateStore creates a new SyncStateStore backed by the given pool.
func NewSyncStateStore(pool *pgxpool.Pool) *SyncStateStore {
	return &SyncStateStore{pool: pool}
}

var _ domain.SyncStateStore = (*SyncStateStore)(nil)

const syncStateCols = `market_id, last_sync_at, last_trade_count, tier, updated_at`

func scanSyncState(row pgx.Row) (domain.SyncState, error) {
	var st domain.SyncState
	var tier string
	err := row.Scan(&st.MarketID, &st.LastSyncAt, &st.LastTradeCount, &tier, &st.UpdatedAt)
	if err != nil {
		return domain.SyncState{}, err
	}
	st.Tier = domain.PriorityTier(tier)
	return st, nil
}

// Get retrieves the sync state for one market.
func (s *SyncStateStore) Get(ctx context.Context, marketID string) (domain.SyncState, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+syncStateCols+` FROM sync_state WHERE market_id = $1`, marketID)
	st, err := scanSyncState(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SyncState{}, domain.ErrNotFound
		}
		return domain.SyncState{}, fmt.Errorf("postgres: get sync state %s: %w", marketID, err)
	}
	return st, nil
}

// Put upserts the sync state for one market. The watermark never moves
// backwards: an older last_sync_at than the stored row is kept as-is at the
// database level as a final guard behind the writer's own check.
func (s *SyncStateStore) Put(ctx context.Context, st domain.SyncState) error {
	const query = `
		INSERT INTO sync_state (market_id, last_sync_at, last_trade_count, tier, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (market_id) DO UPDATE SET
			last_sync_at     = GREATEST(sync_state.last_sync_at, EXCLUDED.last_sync_at),
			last_trade_count = EXCLUDED.last_trade_count,
			tier             = EXCLUDED.tier,
			updated_at       = NOW()`

	_, err := s.pool.Exec(ctx, query,
		st.MarketID, st.LastSyncAt, st.LastTradeCount, string(st.Tier))
	if err != nil {
		return fmt.Errorf("postgres: %w: put sync state %s: %v", domain.ErrStoreWrite, st.MarketID, err)
	}
	return nil
}

// Ensure creates a sync state row for a newly discovered market with a nil
// watermark and the given tier. Existing rows are left untouched.
func (s *SyncStateStore) Ensure(ctx context.Context, marketID string, tier domain.PriorityTier) error {
	const query = `
		INSERT INTO sync_state (market_id, tier, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (market_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, marketID, string(tier))
	if err != nil {
		return fmt.Errorf("postgres: %w: ensure sync state %s: %v", domain.ErrStoreWrite, marketID, err)
	}
	return nil
}

// List returns the sync state of every tracked market.
func (s *SyncStateStore) List(ctx context.Context) ([]domain.SyncState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+syncStateCols+` FROM sync_state ORDER BY market_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sync states: %w", err)
	}
	defer rows.Close()

	var states []domain.SyncState
	for rows.Next() {
		st, err := scanSyncState(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan sync state: %w", err)
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list sync states rows: %w", err)
	}
	return states, nil
}

// UpdateTiers applies reclassified priority tiers in one batch. Markets not
// present in the map are untouched.
func (s *SyncStateStore) UpdateTiers(ctx context.Context, tiers map[string]domain.PriorityTier) error {
	if len(tiers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO sync_state (market_id, tier, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (market_id) DO UPDATE SET
			tier       = EXCLUDED.tier,
			updated_at = NOW()`

	for marketID, tier := range tiers {
		batch.Queue(query, marketID, string(tier))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range tiers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: %w: update tiers: %v", domain.ErrStoreWrite, err)
		}
	}
	return nil
}
