package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the continuous sync side of the agent: the market
// catalogue refresher, the per-tier sync loops, and the reclassifier. The
// analytics refresher and archiver run outside it so the one-shot modes can
// use them on their own.
type Orchestrator struct {
	refresher       *MarketRefresher
	coordinator     *Coordinator
	reclassifier    *Reclassifier
	refreshInterval time.Duration
	reclassInterval time.Duration
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	refresher *MarketRefresher,
	coordinator *Coordinator,
	reclassifier *Reclassifier,
	refreshInterval time.Duration,
	reclassInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		refresher:       refresher,
		coordinator:     coordinator,
		reclassifier:    reclassifier,
		refreshInterval: refreshInterval,
		reclassInterval: reclassInterval,
		logger:          logger,
	}
}

// Run starts all loops and blocks until the context is cancelled or a loop
// fails unrecoverably. Each loop does its first pass immediately, so a cold
// start discovers markets on the first refresher tick and the sync loops
// pick them up one tier interval later.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.refresher.RunLoop(ctx, o.refreshInterval)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := o.coordinator.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := o.reclassifier.RunLoop(ctx, o.reclassInterval)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	o.logger.Info("sync orchestrator started")
	return g.Wait()
}
