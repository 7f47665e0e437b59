package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// MetricsStore implements domain.MetricsStore using PostgreSQL. It is the
// write side of the materialized-view pattern: the analytics refresher
// recomputes aggregates from the ledger and replaces them here.
type MetricsStore struct {
	pool *pgxpool.Pool
}

// NewMetricsStore creates a new MetricsStore backed by the given pool.
func NewMetricsStore(pool *pgxpool.Pool) *MetricsStore {
	return &MetricsStore{pool: pool}
}

var _ domain.MetricsStore = (*MetricsStore)(nil)

// ReplaceMarketPnL deletes and rewrites all PnL records for one market in a
// single transaction, so readers never observe a half-refreshed market.
func (s *MetricsStore) ReplaceMarketPnL(ctx context.Context, marketID string, records []domain.PnLRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: %w: begin pnl replace: %v", domain.ErrStoreWrite, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM pnl_records WHERE market_id = $1`, marketID); err != nil {
		return fmt.Errorf("postgres: %w: clear pnl records %s: %v", domain.ErrStoreWrite, marketID, err)
	}

	const query = `
		INSERT INTO pnl_records (
			trader, market_id, winning_shares, losing_shares,
			position_value, realized_pnl, settlement_pnl, total_pnl,
			buy_cost, sale_proceeds, roi, trade_count, computed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13
		)`

	for _, r := range records {
		if _, err := tx.Exec(ctx, query,
			r.Trader, r.MarketID, r.WinningShares, r.LosingShares,
			r.PositionValue, r.RealizedPnL, r.SettlementPnL, r.TotalPnL,
			r.BuyCost, r.SaleProceeds, r.ROI, r.TradeCount, r.ComputedAt,
		); err != nil {
			return fmt.Errorf("postgres: %w: insert pnl record %s/%s: %v",
				domain.ErrStoreWrite, r.Trader, r.MarketID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: %w: commit pnl replace %s: %v", domain.ErrStoreWrite, marketID, err)
	}
	return nil
}

// UpsertProfiles writes recomputed trader profiles in one batch.
func (s *MetricsStore) UpsertProfiles(ctx context.Context, profiles []domain.TraderProfile) error {
	if len(profiles) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trader_profiles (
			trader, markets_traded, markets_won, total_trades,
			total_pnl, total_buy_cost, win_rate, overall_roi,
			is_successful, computed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10
		)
		ON CONFLICT (trader) DO UPDATE SET
			markets_traded = EXCLUDED.markets_traded,
			markets_won    = EXCLUDED.markets_won,
			total_trades   = EXCLUDED.total_trades,
			total_pnl      = EXCLUDED.total_pnl,
			total_buy_cost = EXCLUDED.total_buy_cost,
			win_rate       = EXCLUDED.win_rate,
			overall_roi    = EXCLUDED.overall_roi,
			is_successful  = EXCLUDED.is_successful,
			computed_at    = EXCLUDED.computed_at`

	for _, p := range profiles {
		batch.Queue(query,
			p.Trader, p.MarketsTraded, p.MarketsWon, p.TotalTrades,
			p.TotalPnL, p.TotalBuyCost, p.WinRate, p.OverallROI,
			p.IsSuccessful, p.ComputedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range profiles {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: %w: upsert profile batch item %d: %v",
				domain.ErrStoreWrite, i, err)
		}
	}
	return nil
}

const profileCols = `trader, markets_traded, markets_won, total_trades,
	total_pnl, total_buy_cost, win_rate, overall_roi, is_successful, computed_at`

func scanProfile(row pgx.Row) (domain.TraderProfile, error) {
	var p domain.TraderProfile
	err := row.Scan(
		&p.Trader, &p.MarketsTraded, &p.MarketsWon, &p.TotalTrades,
		&p.TotalPnL, &p.TotalBuyCost, &p.WinRate, &p.OverallROI,
		&p.IsSuccessful, &p.ComputedAt,
	)
	return p, err
}

// ListSuccessful returns the top successful traders by total PnL.
func (s *MetricsStore) ListSuccessful(ctx context.Context, limit int) ([]domain.TraderProfile, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileCols+` FROM trader_profiles
		 WHERE is_successful ORDER BY total_pnl DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list successful traders: %w", err)
	}
	defer rows.Close()

	var profiles []domain.TraderProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list successful traders rows: %w", err)
	}
	return profiles, nil
}
