package domain

import "time"

// TradeSide is the direction of a trade from the trader's perspective.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Trade is one immutable fill from the Data API. The transaction hash is
// the uniqueness key; a trade is never updated or deleted once written.
type Trade struct {
	TxHash       string
	Trader       string // proxy wallet address
	MarketID     string // condition ID
	Slug         string
	Side         TradeSide
	Outcome      string
	OutcomeIndex int
	Size         float64 // shares, > 0
	Price        float64 // [0,1]
	Timestamp    time.Time
}
