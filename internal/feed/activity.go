// Package feed bridges the live trade WebSocket into the scheduler's
// activity signal. The feed is advisory only: the authoritative ledger is
// always built by the sync pipeline from the Data API, so a dropped or
// duplicated WebSocket message can bias scheduling at worst, never the data.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/platform/polymarket"
)

// ActivityRecorder receives live notional per market. Implemented by the
// pipeline registry.
type ActivityRecorder interface {
	RecordActivity(marketID string, notional float64, at time.Time)
}

// ActivityFeed subscribes to the live trade activity stream and records
// each trade's notional against its market. Reconnects are handled inside
// the WebSocket client.
type ActivityFeed struct {
	client   *polymarket.WSClient
	recorder ActivityRecorder
	logger   *slog.Logger
}

// NewActivityFeed creates an ActivityFeed over the given WebSocket client.
func NewActivityFeed(client *polymarket.WSClient, recorder ActivityRecorder, logger *slog.Logger) *ActivityFeed {
	return &ActivityFeed{
		client:   client,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "activity_feed")),
	}
}

// Run connects, subscribes to trade activity, and blocks until the context
// is cancelled.
func (f *ActivityFeed) Run(ctx context.Context) error {
	f.client.OnTrade(func(ev polymarket.WSTradeEvent) {
		if ev.Size <= 0 || ev.Price <= 0 {
			return
		}
		at := time.Unix(ev.Timestamp, 0).UTC()
		if ev.Timestamp == 0 {
			at = time.Now().UTC()
		}
		f.recorder.RecordActivity(ev.ConditionID, ev.Size*ev.Price, at)
	})

	if err := f.client.Connect(ctx); err != nil {
		return err
	}
	defer f.client.Close()

	if err := f.client.SubscribeTrades(ctx); err != nil {
		return err
	}
	f.logger.Info("activity feed subscribed")

	<-ctx.Done()
	f.logger.Info("activity feed stopped")
	return ctx.Err()
}
