package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// EventNotifier receives operational events worth pushing somewhere a human
// looks. Implementations must be safe for concurrent use.
type EventNotifier interface {
	Notify(ctx context.Context, event, message string) error
}

// CoordinatorConfig holds the per-cycle knobs.
type CoordinatorConfig struct {
	BatchSize    int
	Parallelism  int
	FetchTimeout time.Duration
	LockTTL      time.Duration
}

// Coordinator drives the incremental sync cycles. Each tier runs its own
// loop; a cycle snapshots the registry, picks the stalest due markets, and
// syncs them through a bounded worker pool. One market failing never stops
// the others.
type Coordinator struct {
	registry  *Registry
	scheduler *Scheduler
	fetcher   *Fetcher
	writer    *Writer
	locks     domain.LockManager
	notifier  EventNotifier
	cfg       CoordinatorConfig
	logger    *slog.Logger
}

// NewCoordinator creates a Coordinator. notifier may be nil.
func NewCoordinator(
	registry *Registry,
	scheduler *Scheduler,
	fetcher *Fetcher,
	writer *Writer,
	locks domain.LockManager,
	notifier EventNotifier,
	cfg CoordinatorConfig,
	logger *slog.Logger,
) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	return &Coordinator{
		registry:  registry,
		scheduler: scheduler,
		fetcher:   fetcher,
		writer:    writer,
		locks:     locks,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run starts one loop per priority tier and blocks until the context is
// cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, tier := range []domain.PriorityTier{
		domain.TierHigh, domain.TierNormal, domain.TierLow, domain.TierArchived,
	} {
		tier := tier
		g.Go(func() error {
			err := c.runTierLoop(ctx, tier)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

// runTierLoop runs a cycle for one tier immediately, then on every tick of
// that tier's interval.
func (c *Coordinator) runTierLoop(ctx context.Context, tier domain.PriorityTier) error {
	interval := c.scheduler.Interval(tier)
	c.logger.Info("tier loop started",
		slog.String("tier", string(tier)),
		slog.Duration("interval", interval),
	)

	c.runCycle(ctx, tier)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("tier loop stopped", slog.String("tier", string(tier)))
			return ctx.Err()
		case <-ticker.C:
			c.runCycle(ctx, tier)
		}
	}
}

// runCycle executes one sync cycle for a tier and logs its summary.
func (c *Coordinator) runCycle(ctx context.Context, tier domain.PriorityTier) domain.CycleSummary {
	start := time.Now()
	selected := c.scheduler.Select(c.registry.Snapshot(), tier, start.UTC(), c.cfg.BatchSize)

	summary := domain.CycleSummary{Tier: tier, Selected: len(selected)}
	if len(selected) == 0 {
		return summary
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)

	for _, st := range selected {
		st := st
		g.Go(func() error {
			inserted, err := c.syncOne(gctx, st)

			mu.Lock()
			defer mu.Unlock()
			summary.TradesInserted += inserted
			switch {
			case err == nil:
				summary.Synced++
			case errors.Is(err, domain.ErrLockHeld):
				// Another worker has it; its sync covers this cycle.
				summary.SkippedLocked++
			case errors.Is(err, context.Canceled):
				// Shutting down.
			case errors.Is(err, domain.ErrSourceMalformed):
				summary.SkippedMalformed++
				c.logger.Warn("skipping market this cycle, source payload malformed",
					slog.String("market_id", st.MarketID),
					slog.String("error", err.Error()),
				)
			case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, context.DeadlineExceeded):
				summary.FailedTransient++
				c.logger.Warn("market sync failed, will retry next cycle",
					slog.String("market_id", st.MarketID),
					slog.String("error", err.Error()),
				)
			default:
				summary.FailedFatal++
				c.logger.Error("market sync failed",
					slog.String("market_id", st.MarketID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	g.Wait()

	summary.Elapsed = time.Since(start)
	c.logSummary(ctx, summary)
	return summary
}

// syncOne fetches and commits one market under its distributed lock. The
// returned insert count is valid even when err is non-nil.
func (c *Coordinator) syncOne(ctx context.Context, st domain.SyncState) (int64, error) {
	unlock, err := c.locks.Acquire(ctx, "sync:market:"+st.MarketID, c.cfg.LockTTL)
	if err != nil {
		return 0, err
	}
	defer unlock()

	fctx := ctx
	if c.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()
	}

	// Stamp before the fetch: a trade landing mid-fetch stays ahead of the
	// watermark and is picked up next cycle.
	fetchStart := time.Now().UTC()

	var batch []domain.Trade
	if st.LastSyncAt == nil {
		batch, err = c.fetcher.Backfill(fctx, st.MarketID)
	} else {
		batch, err = c.fetcher.FetchSince(fctx, st.MarketID, *st.LastSyncAt)
	}
	if err != nil {
		return 0, err
	}

	updated, inserted, err := c.writer.Commit(ctx, st, batch, fetchStart)
	if err != nil {
		return inserted, err
	}

	c.registry.Put(updated)
	if inserted > 0 {
		c.logger.Debug("market synced",
			slog.String("market_id", st.MarketID),
			slog.Int64("inserted", inserted),
			slog.Int("fetched", len(batch)),
		)
	}
	return inserted, nil
}

// BackfillAll syncs every market that has never been synced, through the
// same worker pool a cycle uses. Used by the one-shot backfill mode.
func (c *Coordinator) BackfillAll(ctx context.Context) (domain.CycleSummary, error) {
	start := time.Now()
	summary := domain.CycleSummary{Tier: domain.TierNormal}

	var pending []domain.SyncState
	for _, st := range c.registry.Snapshot() {
		if st.LastSyncAt == nil {
			pending = append(pending, st)
		}
	}
	summary.Selected = len(pending)
	c.logger.Info("backfill starting", slog.Int("markets", len(pending)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)

	for _, st := range pending {
		st := st
		g.Go(func() error {
			inserted, err := c.syncOne(gctx, st)

			mu.Lock()
			defer mu.Unlock()
			summary.TradesInserted += inserted
			switch {
			case err == nil:
				summary.Synced++
			case errors.Is(err, domain.ErrLockHeld):
				summary.SkippedLocked++
			case errors.Is(err, context.Canceled):
			case errors.Is(err, domain.ErrSourceMalformed):
				summary.SkippedMalformed++
			case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, context.DeadlineExceeded):
				summary.FailedTransient++
			default:
				summary.FailedFatal++
			}
			return nil
		})
	}
	g.Wait()

	summary.Elapsed = time.Since(start)
	c.logSummary(ctx, summary)
	return summary, ctx.Err()
}

func (c *Coordinator) logSummary(ctx context.Context, s domain.CycleSummary) {
	c.logger.Info("sync cycle complete",
		slog.String("tier", string(s.Tier)),
		slog.Int("selected", s.Selected),
		slog.Int("synced", s.Synced),
		slog.Int("skipped_locked", s.SkippedLocked),
		slog.Int("skipped_malformed", s.SkippedMalformed),
		slog.Int("failed_transient", s.FailedTransient),
		slog.Int("failed_fatal", s.FailedFatal),
		slog.Int64("trades_inserted", s.TradesInserted),
		slog.Duration("elapsed", s.Elapsed),
	)

	if s.Failed() && c.notifier != nil {
		msg := "sync cycle for tier " + string(s.Tier) + " had failures"
		if err := c.notifier.Notify(ctx, "cycle_failed", msg); err != nil {
			c.logger.Warn("cycle failure notification failed", slog.String("error", err.Error()))
		}
	}
}
