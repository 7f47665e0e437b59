package analytics

import (
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// SuccessCriteria are the cutoffs for flagging a trader as successful.
// Every comparison is strict: a trader sitting exactly on a cutoff does
// not qualify.
type SuccessCriteria struct {
	MinWinRate float64 // percent
	MinTrades  int64
	MinROI     float64 // percent
	MinPnL     float64 // dollars
}

// Met reports whether a profile clears every cutoff. A nil overall ROI
// (the trader never spent anything) can never clear the ROI cutoff.
func (c SuccessCriteria) Met(p domain.TraderProfile) bool {
	return p.WinRate > c.MinWinRate &&
		p.TotalTrades > c.MinTrades &&
		p.OverallROI != nil && *p.OverallROI > c.MinROI &&
		p.TotalPnL > c.MinPnL
}

// BuildProfile rolls one trader's settled market records into a profile.
// Records excluded by the PnL cross-check never reach this function, so a
// profile only ever aggregates verified numbers.
func BuildProfile(trader string, records []domain.PnLRecord, criteria SuccessCriteria, now time.Time) domain.TraderProfile {
	p := domain.TraderProfile{
		Trader:     trader,
		ComputedAt: now,
	}

	for _, r := range records {
		p.MarketsTraded++
		if r.TotalPnL > 0 {
			p.MarketsWon++
		}
		p.TotalTrades += r.TradeCount
		p.TotalPnL += r.TotalPnL
		p.TotalBuyCost += r.BuyCost
	}

	if p.MarketsTraded > 0 {
		p.WinRate = float64(p.MarketsWon) / float64(p.MarketsTraded) * 100
	}
	if p.TotalBuyCost > 0 {
		roi := p.TotalPnL / p.TotalBuyCost * 100
		p.OverallROI = &roi
	}

	p.IsSuccessful = criteria.Met(p)
	return p
}
