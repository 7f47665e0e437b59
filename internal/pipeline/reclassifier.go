package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// ClassifyParams are the tier assignment knobs.
type ClassifyParams struct {
	// VolumeThreshold is the trailing notional above which an active
	// market is promoted to the high tier.
	VolumeThreshold float64
	// RecencyWindow is how long a closed market stays in the normal tier
	// before dropping to low. Settlement trades cluster right after close.
	RecencyWindow time.Duration
}

// Classify maps one market to its priority tier. It is total: every market
// gets exactly one tier, and the same inputs always produce the same tier.
func Classify(m domain.Market, trailingVolume float64, now time.Time, p ClassifyParams) domain.PriorityTier {
	if m.Archived {
		return domain.TierArchived
	}
	if m.Closed {
		closedAt := m.UpdatedAt
		if m.EndDate != nil {
			closedAt = *m.EndDate
		}
		if now.Sub(closedAt) <= p.RecencyWindow {
			return domain.TierNormal
		}
		return domain.TierLow
	}
	if m.Active {
		if trailingVolume > p.VolumeThreshold {
			return domain.TierHigh
		}
		return domain.TierNormal
	}
	return domain.TierLow
}

// Reclassifier periodically re-tiers every tracked market from its current
// lifecycle flags and trailing activity, persisting only the tiers that
// changed.
type Reclassifier struct {
	markets  domain.MarketStore
	states   domain.SyncStateStore
	registry *Registry
	params   ClassifyParams
	logger   *slog.Logger
}

// NewReclassifier creates a Reclassifier.
func NewReclassifier(markets domain.MarketStore, states domain.SyncStateStore, registry *Registry, params ClassifyParams, logger *slog.Logger) *Reclassifier {
	return &Reclassifier{
		markets:  markets,
		states:   states,
		registry: registry,
		params:   params,
		logger:   logger,
	}
}

// Run performs one reclassification pass. Markets whose tier did not change
// are untouched, so a pass over an unchanged world is a no-op.
func (r *Reclassifier) Run(ctx context.Context) error {
	now := time.Now().UTC()
	changed := make(map[string]domain.PriorityTier)

	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		markets, err := r.markets.ListActive(ctx, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return err
		}
		r.classifyPage(markets, now, changed)
		if len(markets) < pageSize {
			break
		}
	}
	for offset := 0; ; offset += pageSize {
		markets, err := r.markets.ListResolved(ctx, domain.ListOpts{Limit: pageSize, Offset: offset})
		if err != nil {
			return err
		}
		r.classifyPage(markets, now, changed)
		if len(markets) < pageSize {
			break
		}
	}

	if len(changed) == 0 {
		r.logger.Debug("reclassify pass found no tier changes")
		return nil
	}

	if err := r.states.UpdateTiers(ctx, changed); err != nil {
		return err
	}
	for marketID, tier := range changed {
		r.registry.SetTier(marketID, tier)
	}

	r.logger.Info("reclassified markets", slog.Int("changed", len(changed)))
	return nil
}

func (r *Reclassifier) classifyPage(markets []domain.Market, now time.Time, changed map[string]domain.PriorityTier) {
	for _, m := range markets {
		trailing := m.Volume24h
		if live := r.registry.TrailingVolume(m.ConditionID, now); live > trailing {
			trailing = live
		}

		tier := Classify(m, trailing, now, r.params)
		st, ok := r.registry.Get(m.ConditionID)
		if !ok || st.Tier != tier {
			changed[m.ConditionID] = tier
		}
	}
}

// RunLoop runs a pass immediately and then on every tick until the context
// is cancelled.
func (r *Reclassifier) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := r.Run(ctx); err != nil {
		r.logger.Error("reclassify pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				r.logger.Error("reclassify pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
