package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/analytics"
	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
	"github.com/xiaoyuezhuu/polymarket-agent/internal/feed"
	"github.com/xiaoyuezhuu/polymarket-agent/internal/pipeline"
	"github.com/xiaoyuezhuu/polymarket-agent/internal/platform/polymarket"
)

// syncStack bundles the pipeline components the sync-capable modes share.
type syncStack struct {
	registry     *pipeline.Registry
	coordinator  *pipeline.Coordinator
	refresher    *pipeline.MarketRefresher
	orchestrator *pipeline.Orchestrator
}

// buildSyncStack constructs the sync pipeline and loads the registry from
// the persisted sync states.
func (a *App) buildSyncStack(ctx context.Context, deps *Dependencies) (*syncStack, error) {
	registry := pipeline.NewRegistry(a.cfg.Reclassify.RecencyWindow.Duration)
	if err := registry.Load(ctx, deps.SyncStateStore); err != nil {
		return nil, fmt.Errorf("load sync registry: %w", err)
	}
	a.logger.InfoContext(ctx, "sync registry loaded", slog.Int("markets", registry.Len()))

	scheduler := pipeline.NewScheduler(map[domain.PriorityTier]time.Duration{
		domain.TierHigh:     a.cfg.Sync.HighInterval.Duration,
		domain.TierNormal:   a.cfg.Sync.NormalInterval.Duration,
		domain.TierLow:      a.cfg.Sync.LowInterval.Duration,
		domain.TierArchived: a.cfg.Sync.ArchivedInterval.Duration,
	})

	dataClient := polymarket.NewDataClient(a.cfg.Polymarket.DataHost, a.cfg.Sync.RateLimitRPS)
	fetcher := pipeline.NewFetcher(dataClient, a.cfg.Sync.PageSize, 0, a.logger)
	writer := pipeline.NewWriter(deps.TradeStore, deps.SyncStateStore, a.logger)

	coordinator := pipeline.NewCoordinator(
		registry, scheduler, fetcher, writer,
		deps.LockManager, deps.Notifier,
		pipeline.CoordinatorConfig{
			BatchSize:    a.cfg.Sync.BatchSize,
			Parallelism:  a.cfg.Sync.Parallelism,
			FetchTimeout: a.cfg.Sync.FetchTimeout.Duration,
			LockTTL:      a.cfg.Sync.LockTTL.Duration,
		},
		a.logger,
	)

	gammaClient := polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost)
	refresher := pipeline.NewMarketRefresher(
		gammaClient, deps.MarketStore, deps.SyncStateStore,
		deps.MarketCache, registry, deps.Notifier,
		a.cfg.Sync.MarketPageSize, a.logger,
	)

	reclassifier := pipeline.NewReclassifier(
		deps.MarketStore, deps.SyncStateStore, registry,
		pipeline.ClassifyParams{
			VolumeThreshold: a.cfg.Reclassify.VolumeThreshold,
			RecencyWindow:   a.cfg.Reclassify.RecencyWindow.Duration,
		},
		a.logger,
	)

	orchestrator := pipeline.NewOrchestrator(
		refresher, coordinator, reclassifier,
		a.cfg.Sync.MarketRefreshInterval.Duration,
		a.cfg.Reclassify.Interval.Duration,
		a.logger,
	)

	return &syncStack{
		registry:     registry,
		coordinator:  coordinator,
		refresher:    refresher,
		orchestrator: orchestrator,
	}, nil
}

// buildAnalytics constructs the analytics refresher. When archiving is on,
// the refresher gets the same retention window so it can leave alone the
// markets whose early trades are no longer in the ledger.
func (a *App) buildAnalytics(deps *Dependencies) *analytics.Refresher {
	var retention time.Duration
	if a.cfg.Archive.Enabled {
		retention = time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	}
	return analytics.NewRefresher(
		deps.MarketStore, deps.TradeStore, deps.MetricsStore,
		deps.AuditStore, deps.Notifier,
		analytics.SuccessCriteria{
			MinWinRate: a.cfg.Analytics.MinWinRate,
			MinTrades:  a.cfg.Analytics.MinTrades,
			MinROI:     a.cfg.Analytics.MinROI,
			MinPnL:     a.cfg.Analytics.MinPnL,
		},
		retention,
		a.cfg.Analytics.Parallelism,
		a.logger,
	)
}

// startFeed starts the live activity feed when enabled. The feed is
// advisory; a connection failure degrades scheduling, not data.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, stack *syncStack) {
	if !a.cfg.Feed.Enabled {
		return
	}
	wsClient := polymarket.NewWSClient(a.cfg.Polymarket.WsHost)
	activityFeed := feed.NewActivityFeed(wsClient, stack.registry, a.logger)
	g.Go(func() error {
		err := activityFeed.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			a.logger.Error("activity feed exited", slog.String("error", err.Error()))
		}
		return nil
	})
}

// SyncMode runs the continuous sync pipeline: market refresh, tiered sync
// loops, reclassification, and optionally the live activity feed.
func (a *App) SyncMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sync mode")

	stack, err := a.buildSyncStack(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := stack.orchestrator.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	a.startFeed(ctx, g, stack)

	return g.Wait()
}

// BackfillMode refreshes the market catalogue once, then syncs every market
// that has never been synced, and exits.
func (a *App) BackfillMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backfill mode")

	stack, err := a.buildSyncStack(ctx, deps)
	if err != nil {
		return err
	}

	if err := stack.refresher.Run(ctx); err != nil {
		return fmt.Errorf("backfill market refresh: %w", err)
	}

	summary, err := stack.coordinator.BackfillAll(ctx)
	if err != nil {
		return err
	}
	if summary.Failed() {
		return fmt.Errorf("backfill finished with failures: %d transient, %d fatal",
			summary.FailedTransient, summary.FailedFatal)
	}

	marketCount, err := deps.MarketStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("count markets: %w", err)
	}
	tradeCount, err := deps.TradeStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("count trades: %w", err)
	}
	a.logger.InfoContext(ctx, "backfill complete",
		slog.Int64("markets", marketCount),
		slog.Int64("trades", tradeCount),
		slog.Int64("trades_inserted", summary.TradesInserted),
	)
	return nil
}

// AnalyzeMode recomputes PnL records and trader profiles once and exits.
func (a *App) AnalyzeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting analyze mode")
	return a.buildAnalytics(deps).Run(ctx)
}

// ArchiveMode runs one archive pass and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	if deps.Archiver == nil {
		return fmt.Errorf("archive mode requires archive.enabled and S3 configuration")
	}
	archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, deps.Notifier, a.logger)
	return archiver.Run(ctx)
}

// FullMode runs everything: the sync pipeline, the periodic analytics
// refresh, the archive cron when enabled, and the live feed when enabled.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	stack, err := a.buildSyncStack(ctx, deps)
	if err != nil {
		return err
	}

	if deps.Archiver != nil {
		if err := pipeline.ParseCron(a.cfg.Archive.Cron); err != nil {
			return fmt.Errorf("archive cron: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := stack.orchestrator.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	refresher := a.buildAnalytics(deps)
	g.Go(func() error {
		err := refresher.RunLoop(ctx, a.cfg.Analytics.RefreshInterval.Duration)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	if deps.Archiver != nil {
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, deps.Notifier, a.logger)
		g.Go(func() error {
			err := archiver.RunCron(ctx, a.cfg.Archive.Cron)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	a.startFeed(ctx, g, stack)

	return g.Wait()
}
