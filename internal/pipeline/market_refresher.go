package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// MarketLister is the slice of the Gamma API client the refresher needs.
type MarketLister interface {
	GetMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error)
}

// MarketRefresher keeps the local market catalogue current. It pages through
// the Gamma API, upserts metadata, warms the cache, and registers any newly
// discovered market for syncing with a nil watermark. Markets that settle to
// a final outcome since the previous refresh raise a market_resolved event.
type MarketRefresher struct {
	source   MarketLister
	markets  domain.MarketStore
	states   domain.SyncStateStore
	cache    domain.MarketCache
	registry *Registry
	notifier EventNotifier
	pageSize int
	logger   *slog.Logger
}

// NewMarketRefresher creates a MarketRefresher. cache and notifier may be nil.
func NewMarketRefresher(
	source MarketLister,
	markets domain.MarketStore,
	states domain.SyncStateStore,
	cache domain.MarketCache,
	registry *Registry,
	notifier EventNotifier,
	pageSize int,
	logger *slog.Logger,
) *MarketRefresher {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &MarketRefresher{
		source:   source,
		markets:  markets,
		states:   states,
		cache:    cache,
		registry: registry,
		notifier: notifier,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Run performs one full catalogue refresh.
func (mr *MarketRefresher) Run(ctx context.Context) error {
	start := time.Now()
	var total, discovered, resolved int

	for offset := 0; ; offset += mr.pageSize {
		page, err := mr.source.GetMarkets(ctx, mr.pageSize, offset)
		if err != nil {
			return fmt.Errorf("refresh markets at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		// Snapshot which of this page's resolved markets were still
		// unresolved locally, before the upsert overwrites them.
		newlyResolved, err := mr.resolutionTransitions(ctx, page)
		if err != nil {
			return fmt.Errorf("detect resolutions at offset %d: %w", offset, err)
		}

		if err := mr.markets.UpsertBatch(ctx, page); err != nil {
			return fmt.Errorf("upsert market page at offset %d: %w", offset, err)
		}

		resolved += len(newlyResolved)
		mr.announceResolutions(ctx, newlyResolved)

		for _, m := range page {
			if mr.cache != nil {
				if err := mr.cache.Set(ctx, m); err != nil {
					mr.logger.Warn("market cache set failed",
						slog.String("market_id", m.ConditionID),
						slog.String("error", err.Error()),
					)
				}
			}

			if mr.registry.Ensure(m.ConditionID, domain.TierNormal) {
				discovered++
				if err := mr.states.Ensure(ctx, m.ConditionID, domain.TierNormal); err != nil {
					return fmt.Errorf("register market %s: %w", m.ConditionID, err)
				}
			}
		}

		total += len(page)
		if len(page) < mr.pageSize {
			break
		}
	}

	mr.logger.Info("market refresh complete",
		slog.Int("markets", total),
		slog.Int("discovered", discovered),
		slog.Int("resolved", resolved),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// resolutionTransitions returns the markets in page that carry a resolved
// outcome upstream but are still unresolved in the local store.
func (mr *MarketRefresher) resolutionTransitions(ctx context.Context, page []domain.Market) ([]domain.Market, error) {
	byID := make(map[string]domain.Market)
	var ids []string
	for _, m := range page {
		if m.ResolvedOutcome != nil {
			byID[m.ConditionID] = m
			ids = append(ids, m.ConditionID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	unresolved, err := mr.markets.FilterUnresolved(ctx, ids)
	if err != nil {
		return nil, err
	}

	transitions := make([]domain.Market, 0, len(unresolved))
	for _, id := range unresolved {
		transitions = append(transitions, byID[id])
	}
	return transitions, nil
}

// announceResolutions logs and notifies each resolution transition.
// Notification failures do not fail the refresh.
func (mr *MarketRefresher) announceResolutions(ctx context.Context, markets []domain.Market) {
	for _, m := range markets {
		mr.logger.Info("market resolved",
			slog.String("market_id", m.ConditionID),
			slog.String("question", m.Question),
			slog.String("outcome", *m.ResolvedOutcome),
		)
		if mr.notifier == nil {
			continue
		}
		msg := fmt.Sprintf("%s resolved %s (%s)", m.Question, *m.ResolvedOutcome, m.ConditionID)
		if err := mr.notifier.Notify(ctx, "market_resolved", msg); err != nil {
			mr.logger.Warn("market resolved notification failed",
				slog.String("market_id", m.ConditionID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// RunLoop runs a refresh immediately and then on every tick until the
// context is cancelled.
func (mr *MarketRefresher) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := mr.Run(ctx); err != nil {
		mr.logger.Error("market refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := mr.Run(ctx); err != nil {
				mr.logger.Error("market refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}
