package domain

import "time"

// Position is the derived holding for one trader×market×outcome key,
// recomputed from the trade ledger rather than patched in place.
type Position struct {
	Trader       string
	MarketID     string
	Outcome      string
	NetPosition  float64 // shares bought minus shares sold
	SharesBought float64
	SharesSold   float64
	BuyCost      float64 // Σ price×size over buys
	SaleProceeds float64 // Σ price×size over sells
	AvgCostBasis float64 // BuyCost / SharesBought, 0 when no buys
	TradeCount   int64
}

// PnLRecord is the settled profit/loss for one trader×market pair.
// Only resolved markets produce records; unresolved positions are
// excluded from aggregation rather than marked speculatively.
type PnLRecord struct {
	Trader        string
	MarketID      string
	WinningShares float64 // net position on the resolved outcome
	LosingShares  float64 // net position across all other outcomes
	PositionValue float64 // winning shares × $1
	RealizedPnL   float64
	SettlementPnL float64
	TotalPnL      float64
	BuyCost       float64
	SaleProceeds  float64
	ROI           *float64 // percent; nil when BuyCost is zero
	TradeCount    int64
	ComputedAt    time.Time
}

// TraderProfile aggregates a trader's PnLRecords across all resolved
// markets they traded.
type TraderProfile struct {
	Trader        string
	MarketsTraded int64
	MarketsWon    int64
	TotalTrades   int64
	TotalPnL      float64
	TotalBuyCost  float64
	WinRate       float64  // percent of traded markets with PnL > 0
	OverallROI    *float64 // percent; nil when TotalBuyCost is zero
	IsSuccessful  bool
	ComputedAt    time.Time
}
