package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market metadata.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
	ListResolved(ctx context.Context, opts ListOpts) ([]Market, error)
	// FilterUnresolved returns the subset of conditionIDs that exist in
	// the store without a resolved outcome. Unknown IDs are not returned.
	FilterUnresolved(ctx context.Context, conditionIDs []string) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// TradeStore persists the append-only trade ledger. InsertBatch uses
// insert-or-ignore semantics keyed on transaction hash and returns the
// number of rows actually inserted, excluding ignored duplicates.
type TradeStore interface {
	InsertBatch(ctx context.Context, trades []Trade) (int64, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// SyncStateStore persists per-market watermarks and priority tiers.
type SyncStateStore interface {
	Get(ctx context.Context, marketID string) (SyncState, error)
	Put(ctx context.Context, state SyncState) error
	Ensure(ctx context.Context, marketID string, tier PriorityTier) error
	List(ctx context.Context) ([]SyncState, error)
	UpdateTiers(ctx context.Context, tiers map[string]PriorityTier) error
}

// MetricsStore persists recomputed PnL aggregates. ReplaceMarketPnL
// swaps all records for one market in a single transaction so readers
// never observe a half-refreshed market.
type MetricsStore interface {
	ReplaceMarketPnL(ctx context.Context, marketID string, records []PnLRecord) error
	UpsertProfiles(ctx context.Context, profiles []TraderProfile) error
	ListSuccessful(ctx context.Context, limit int) ([]TraderProfile, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
