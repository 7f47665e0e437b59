// Package analytics recomputes positions, PnL, and trader profiles from the
// trade ledger. Nothing here is incremental: every refresh rebuilds its
// aggregates from raw trades, so a fixed ledger always yields the same
// numbers no matter how often the computation runs.
package analytics

import (
	"sort"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// positionKey identifies one trader's holding of one outcome in one market.
type positionKey struct {
	Trader  string
	Outcome string
}

// AggregatePositions folds a market's trades into per-trader, per-outcome
// positions using weighted-average cost basis. Trades must all belong to the
// same market; they are processed in timestamp order regardless of input
// order. Sells beyond the held quantity are clamped to the held quantity, so
// a ledger with missing early history cannot drive a position negative.
func AggregatePositions(trades []domain.Trade) []domain.Position {
	sorted := make([]domain.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	positions := make(map[positionKey]*domain.Position)
	for _, t := range sorted {
		key := positionKey{Trader: t.Trader, Outcome: t.Outcome}
		pos, ok := positions[key]
		if !ok {
			pos = &domain.Position{
				Trader:   t.Trader,
				MarketID: t.MarketID,
				Outcome:  t.Outcome,
			}
			positions[key] = pos
		}
		applyTrade(pos, t)
	}

	out := make([]domain.Position, 0, len(positions))
	for _, pos := range positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Trader != out[j].Trader {
			return out[i].Trader < out[j].Trader
		}
		return out[i].Outcome < out[j].Outcome
	})
	return out
}

func applyTrade(pos *domain.Position, t domain.Trade) {
	pos.TradeCount++

	switch t.Side {
	case domain.TradeSideBuy:
		pos.SharesBought += t.Size
		pos.BuyCost += t.Size * t.Price
		pos.NetPosition += t.Size
		// Weighted average over everything ever bought. Sells never
		// change the basis.
		pos.AvgCostBasis = pos.BuyCost / pos.SharesBought

	case domain.TradeSideSell:
		size := t.Size
		if size > pos.NetPosition {
			size = pos.NetPosition
		}
		if size <= 0 {
			return
		}
		pos.SharesSold += size
		pos.SaleProceeds += size * t.Price
		pos.NetPosition -= size
	}
}
