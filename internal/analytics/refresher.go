package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// Notifier receives events worth pushing somewhere a human looks.
type Notifier interface {
	Notify(ctx context.Context, event, message string) error
}

// Refresher recomputes PnL records and trader profiles for every resolved
// market. Each market is rebuilt from its raw trades and swapped into the
// metrics store atomically; profiles are rolled up afterwards from the
// records that passed the cross-check.
type Refresher struct {
	markets          domain.MarketStore
	trades           domain.TradeStore
	metrics          domain.MetricsStore
	audit            domain.AuditStore
	notifier         Notifier
	criteria         SuccessCriteria
	archiveRetention time.Duration
	parallelism      int
	logger           *slog.Logger
}

// NewRefresher creates a Refresher. audit and notifier may be nil.
// archiveRetention mirrors the archiver's retention window; zero means
// trades are never archived out of the ledger.
func NewRefresher(
	markets domain.MarketStore,
	trades domain.TradeStore,
	metrics domain.MetricsStore,
	audit domain.AuditStore,
	notifier Notifier,
	criteria SuccessCriteria,
	archiveRetention time.Duration,
	parallelism int,
	logger *slog.Logger,
) *Refresher {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Refresher{
		markets:          markets,
		trades:           trades,
		metrics:          metrics,
		audit:            audit,
		notifier:         notifier,
		criteria:         criteria,
		archiveRetention: archiveRetention,
		parallelism:      parallelism,
		logger:           logger,
	}
}

// tradesMayBeArchived reports whether part of a market's trade history may
// already have been deleted from the ledger by the archiver. Recomputing
// such a market would replace correct records with ones built from a
// truncated ledger, so the refresher freezes its existing records instead.
func (r *Refresher) tradesMayBeArchived(m domain.Market, cutoff time.Time) bool {
	start := m.CreatedAt
	if start.IsZero() && m.EndDate != nil {
		start = *m.EndDate
	}
	if start.IsZero() {
		start = m.UpdatedAt
	}
	return start.Before(cutoff)
}

// Run performs one full analytics refresh.
func (r *Refresher) Run(ctx context.Context) error {
	start := time.Now()
	now := start.UTC()

	var (
		mu         sync.Mutex
		byTrader   = make(map[string][]domain.PnLRecord)
		markets    int
		frozen     int
		violations int
	)

	var cutoff time.Time
	if r.archiveRetention > 0 {
		cutoff = now.Add(-r.archiveRetention)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	const pageSize = 200
	for offset := 0; ; offset += pageSize {
		page, err := r.markets.ListResolved(ctx, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("list resolved markets: %w", err)
		}

		for _, m := range page {
			m := m
			if m.ResolvedOutcome == nil {
				continue
			}
			if !cutoff.IsZero() && r.tradesMayBeArchived(m, cutoff) {
				frozen++
				r.logger.Debug("market skipped, trade history may be archived",
					slog.String("market_id", m.ConditionID),
				)
				continue
			}
			g.Go(func() error {
				records, bad, err := r.refreshMarket(gctx, m, now)
				if err != nil {
					// One broken market must not sink the rest.
					r.logger.Error("market pnl refresh failed",
						slog.String("market_id", m.ConditionID),
						slog.String("error", err.Error()),
					)
					return nil
				}

				mu.Lock()
				markets++
				violations += bad
				for _, rec := range records {
					byTrader[rec.Trader] = append(byTrader[rec.Trader], rec)
				}
				mu.Unlock()
				return nil
			})
		}

		if len(page) < pageSize {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	profiles := make([]domain.TraderProfile, 0, len(byTrader))
	for trader, records := range byTrader {
		profiles = append(profiles, BuildProfile(trader, records, r.criteria, now))
	}
	if err := r.metrics.UpsertProfiles(ctx, profiles); err != nil {
		return fmt.Errorf("upsert trader profiles: %w", err)
	}

	top, err := r.metrics.ListSuccessful(ctx, 5)
	if err != nil {
		r.logger.Warn("listing successful traders failed", slog.String("error", err.Error()))
	}
	for i, p := range top {
		r.logger.Info("top trader",
			slog.Int("rank", i+1),
			slog.String("trader", p.Trader),
			slog.Float64("total_pnl", p.TotalPnL),
			slog.Float64("win_rate", p.WinRate),
		)
	}

	r.logger.Info("analytics refresh complete",
		slog.Int("markets", markets),
		slog.Int("frozen", frozen),
		slog.Int("traders", len(profiles)),
		slog.Int("violations", violations),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// refreshMarket rebuilds one market's PnL records from its raw trades and
// replaces them in the store. It returns the records that passed the
// cross-check and the number that did not.
func (r *Refresher) refreshMarket(ctx context.Context, m domain.Market, now time.Time) ([]domain.PnLRecord, int, error) {
	trades, err := r.trades.ListByMarket(ctx, m.ConditionID, domain.ListOpts{})
	if err != nil {
		return nil, 0, fmt.Errorf("list trades for %s: %w", m.ConditionID, err)
	}

	positions := AggregatePositions(trades)
	records, violations := ComputeMarketPnL(m.ConditionID, positions, *m.ResolvedOutcome, now)

	for _, verr := range violations {
		r.logger.Error("pnl invariant violation, record excluded",
			slog.String("market_id", m.ConditionID),
			slog.String("error", verr.Error()),
		)
		if r.audit != nil {
			if aerr := r.audit.Log(ctx, "invariant_violation", map[string]any{
				"market_id": m.ConditionID,
				"detail":    verr.Error(),
			}); aerr != nil {
				r.logger.Warn("audit log write failed", slog.String("error", aerr.Error()))
			}
		}
		if r.notifier != nil {
			if nerr := r.notifier.Notify(ctx, "invariant_violation", verr.Error()); nerr != nil {
				r.logger.Warn("violation notification failed", slog.String("error", nerr.Error()))
			}
		}
	}

	if err := r.metrics.ReplaceMarketPnL(ctx, m.ConditionID, records); err != nil {
		return nil, len(violations), fmt.Errorf("replace pnl for %s: %w", m.ConditionID, err)
	}
	return records, len(violations), nil
}

// RunLoop runs a refresh immediately and then on every tick until the
// context is cancelled.
func (r *Refresher) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := r.Run(ctx); err != nil {
		r.logger.Error("analytics refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				r.logger.Error("analytics refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}
