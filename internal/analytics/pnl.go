package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// Epsilon is the tolerance for the PnL cross-check. The inputs are sums of
// products of float64 trade fields, so exact equality is not meaningful.
const Epsilon = 1e-6

// ComputeMarketPnL settles a resolved market's positions into one PnLRecord
// per trader. Shares of the resolved outcome pay $1 each, all other shares
// pay $0. Every record is cross-checked against the identity
//
//	totalPnL = realizedPnL + settlementPnL
//
// computed along two independent paths; a trader whose record fails the
// check is dropped from the result and returned as an error wrapping
// domain.ErrInvariantViolation, so a bad record never reaches the store.
func ComputeMarketPnL(marketID string, positions []domain.Position, resolvedOutcome string, now time.Time) ([]domain.PnLRecord, []error) {
	byTrader := make(map[string][]domain.Position)
	for _, pos := range positions {
		byTrader[pos.Trader] = append(byTrader[pos.Trader], pos)
	}

	traders := make([]string, 0, len(byTrader))
	for trader := range byTrader {
		traders = append(traders, trader)
	}
	sort.Strings(traders)

	var records []domain.PnLRecord
	var violations []error

	for _, trader := range traders {
		rec := settleTrader(trader, marketID, byTrader[trader], resolvedOutcome, now)

		if diff := math.Abs(rec.TotalPnL - (rec.RealizedPnL + rec.SettlementPnL)); diff > Epsilon {
			violations = append(violations, fmt.Errorf(
				"%w: pnl cross-check for trader %s in market %s off by %g (total=%g realized=%g settlement=%g)",
				domain.ErrInvariantViolation, trader, marketID, diff,
				rec.TotalPnL, rec.RealizedPnL, rec.SettlementPnL))
			continue
		}
		records = append(records, rec)
	}
	return records, violations
}

func settleTrader(trader, marketID string, positions []domain.Position, resolvedOutcome string, now time.Time) domain.PnLRecord {
	rec := domain.PnLRecord{
		Trader:     trader,
		MarketID:   marketID,
		ComputedAt: now,
	}

	var realized, heldCost float64
	for _, pos := range positions {
		if pos.Outcome == resolvedOutcome {
			rec.WinningShares += pos.NetPosition
		} else {
			rec.LosingShares += pos.NetPosition
		}
		rec.BuyCost += pos.BuyCost
		rec.SaleProceeds += pos.SaleProceeds
		rec.TradeCount += pos.TradeCount

		realized += pos.SaleProceeds - pos.AvgCostBasis*pos.SharesSold
		heldCost += pos.AvgCostBasis * pos.NetPosition
	}

	rec.PositionValue = rec.WinningShares // $1 per winning share
	rec.RealizedPnL = realized
	rec.SettlementPnL = rec.PositionValue - heldCost
	rec.TotalPnL = rec.PositionValue + rec.SaleProceeds - rec.BuyCost

	if rec.BuyCost > 0 {
		roi := rec.TotalPnL / rec.BuyCost * 100
		rec.ROI = &roi
	}
	return rec
}
