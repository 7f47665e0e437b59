package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// TradeLister is the slice of the Data API client the fetcher needs.
type TradeLister interface {
	ListTrades(ctx context.Context, marketID string, since *time.Time, limit, offset int) ([]domain.Trade, error)
}

// Fetcher pulls trade pages for one market from the Data API. It comes in
// two modes: FetchSince reads forward from a watermark during incremental
// sync, Backfill walks the market's full history for first contact.
type Fetcher struct {
	source   TradeLister
	pageSize int
	maxPages int
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher. maxPages bounds a single fetch so one
// pathological market cannot monopolize a cycle; zero means no bound.
func NewFetcher(source TradeLister, pageSize, maxPages int, logger *slog.Logger) *Fetcher {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Fetcher{
		source:   source,
		pageSize: pageSize,
		maxPages: maxPages,
		logger:   logger,
	}
}

// FetchSince returns all trades for marketID at or after the watermark,
// oldest first. The source window is inclusive, so trades exactly at the
// watermark come back again on every cycle; the idempotent ledger write
// absorbs them.
func (f *Fetcher) FetchSince(ctx context.Context, marketID string, watermark time.Time) ([]domain.Trade, error) {
	return f.fetch(ctx, marketID, &watermark)
}

// Backfill returns the market's entire trade history, oldest first. Used for
// markets that have never been synced.
func (f *Fetcher) Backfill(ctx context.Context, marketID string) ([]domain.Trade, error) {
	return f.fetch(ctx, marketID, nil)
}

func (f *Fetcher) fetch(ctx context.Context, marketID string, since *time.Time) ([]domain.Trade, error) {
	var all []domain.Trade
	seen := make(map[string]struct{})

	for page := 0; ; page++ {
		if f.maxPages > 0 && page >= f.maxPages {
			f.logger.Warn("fetch page bound reached",
				slog.String("market_id", marketID),
				slog.Int("pages", page),
				slog.Int("trades", len(all)),
			)
			break
		}

		trades, err := f.source.ListTrades(ctx, marketID, since, f.pageSize, page*f.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch trades for %s page %d: %w", marketID, page, err)
		}

		for _, t := range trades {
			if _, dup := seen[t.TxHash]; dup {
				continue
			}
			seen[t.TxHash] = struct{}{}
			all = append(all, t)
		}

		if len(trades) < f.pageSize {
			break
		}
	}

	// The source orders ascending per page, but dedup across overlapping
	// pages can leave stragglers. Watermark math needs a sorted batch.
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})
	return all, nil
}
