package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// Writer commits a fetched batch and advances the market's watermark. The
// ordering is the whole point: trades are durably inserted first, and only
// then does the watermark move. A crash between the two re-fetches an
// already-inserted window on the next cycle, which the insert-or-ignore
// ledger absorbs as zero new rows.
type Writer struct {
	trades domain.TradeStore
	states domain.SyncStateStore
	logger *slog.Logger
}

// NewWriter creates a Writer over the trade ledger and sync state stores.
func NewWriter(trades domain.TradeStore, states domain.SyncStateStore, logger *slog.Logger) *Writer {
	return &Writer{trades: trades, states: states, logger: logger}
}

// Commit inserts the batch and persists the advanced state. It returns the
// updated state and the number of rows actually inserted (duplicates count
// zero). The new watermark is the newest trade timestamp in the batch when
// anything new landed, or now otherwise; it never moves backwards.
//
// The "or now" arm matters for quiet markets: the source window is
// inclusive, so a market with at least one trade always re-returns its
// boundary trade. Without advancing to now on an all-duplicate batch the
// watermark would pin to the last trade forever and the market would stay
// the stalest in its tier, crowding everything else out of the bounded
// selection.
func (w *Writer) Commit(ctx context.Context, st domain.SyncState, batch []domain.Trade, now time.Time) (domain.SyncState, int64, error) {
	inserted, err := w.trades.InsertBatch(ctx, batch)
	if err != nil {
		return st, inserted, fmt.Errorf("commit trades for %s: %w", st.MarketID, err)
	}

	watermark := now
	if n := len(batch); n > 0 && inserted > 0 {
		watermark = batch[n-1].Timestamp
	}
	if st.LastSyncAt != nil && watermark.Before(*st.LastSyncAt) {
		w.logger.Warn("watermark would regress, keeping existing",
			slog.String("market_id", st.MarketID),
			slog.Time("existing", *st.LastSyncAt),
			slog.Time("computed", watermark),
		)
		watermark = *st.LastSyncAt
	}

	st.LastSyncAt = &watermark
	st.LastTradeCount += inserted
	st.UpdatedAt = now

	if err := w.states.Put(ctx, st); err != nil {
		// The trades are in; the stale watermark just means the next
		// cycle re-reads a window it already has.
		return st, inserted, fmt.Errorf("advance watermark for %s: %w", st.MarketID, err)
	}
	return st, inserted, nil
}
