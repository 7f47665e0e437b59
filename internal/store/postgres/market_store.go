package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

var _ domain.MarketStore = (*MarketStore)(nil)

const marketUpsertQuery = `
	INSERT INTO markets (
		condition_id, slug, question, outcomes,
		active, closed, archived, resolved_outcome,
		volume_24h, end_date, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11, NOW()
	)
	ON CONFLICT (condition_id) DO UPDATE SET
		slug             = EXCLUDED.slug,
		question         = EXCLUDED.question,
		outcomes         = EXCLUDED.outcomes,
		active           = EXCLUDED.active,
		closed           = EXCLUDED.closed,
		archived         = EXCLUDED.archived,
		resolved_outcome = EXCLUDED.resolved_outcome,
		volume_24h       = EXCLUDED.volume_24h,
		end_date         = EXCLUDED.end_date,
		updated_at       = NOW()`

func marketUpsertArgs(m domain.Market) []any {
	return []any{
		m.ConditionID, m.Slug, m.Question, m.Outcomes,
		m.Active, m.Closed, m.Archived, m.ResolvedOutcome,
		m.Volume24h, m.EndDate, m.CreatedAt,
	}
}

// UpsertBatch inserts or updates multiple markets in a single batch operation.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(marketUpsertQuery, marketUpsertArgs(m)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

const marketCols = `condition_id, slug, question, outcomes,
	active, closed, archived, resolved_outcome,
	volume_24h, end_date, created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ConditionID, &m.Slug, &m.Question, &m.Outcomes,
		&m.Active, &m.Closed, &m.Archived, &m.ResolvedOutcome,
		&m.Volume24h, &m.EndDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

func scanMarketRows(rows pgx.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// ListActive returns active markets with pagination and optional time filtering.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE active AND NOT closed`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan active markets: %w", err)
	}
	return markets, nil
}

// ListResolved returns markets that have settled to a final outcome, oldest
// first so the analytics refresher processes them in a stable order.
func (s *MarketStore) ListResolved(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets
		WHERE closed AND resolved_outcome IS NOT NULL
		ORDER BY end_date ASC NULLS LAST, condition_id ASC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	defer rows.Close()

	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan resolved markets: %w", err)
	}
	return markets, nil
}

// FilterUnresolved returns the given condition IDs that exist in the store
// and have not settled to a final outcome. The market refresher uses this
// before an upsert to detect resolution transitions.
func (s *MarketStore) FilterUnresolved(ctx context.Context, conditionIDs []string) ([]string, error) {
	if len(conditionIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT condition_id FROM markets
		 WHERE condition_id = ANY($1) AND resolved_outcome IS NULL`, conditionIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: filter unresolved markets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan unresolved market id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: filter unresolved rows: %w", err)
	}
	return ids, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
