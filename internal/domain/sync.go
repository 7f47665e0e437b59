package domain

import "time"

// PriorityTier is the scheduling class controlling how often a market
// is re-synced. Owned by the Priority Reclassifier; read-only elsewhere.
type PriorityTier string

const (
	TierHigh     PriorityTier = "high"
	TierNormal   PriorityTier = "normal"
	TierLow      PriorityTier = "low"
	TierArchived PriorityTier = "archived"
)

// Valid reports whether t is one of the four known tiers.
func (t PriorityTier) Valid() bool {
	switch t {
	case TierHigh, TierNormal, TierLow, TierArchived:
		return true
	}
	return false
}

// SyncState is the per-market sync watermark and priority metadata.
//
// LastSyncAt is nil for a market that has never been synced. It is
// monotonically non-decreasing and advances only after the corresponding
// trade batch has fully committed.
type SyncState struct {
	MarketID       string
	LastSyncAt     *time.Time
	LastTradeCount int64
	Tier           PriorityTier
	UpdatedAt      time.Time
}

// CycleSummary is the per-cycle outcome report: every market dispatched
// in a sync cycle lands in exactly one bucket, except markets dropped by
// shutdown mid-cycle.
type CycleSummary struct {
	Tier             PriorityTier
	Selected         int
	Synced           int
	SkippedLocked    int
	SkippedMalformed int
	FailedTransient  int
	FailedFatal      int
	TradesInserted   int64
	Elapsed          time.Duration
}

// Failed reports whether any unit of work in the cycle did not complete.
func (s CycleSummary) Failed() bool {
	return s.SkippedMalformed > 0 || s.FailedTransient > 0 || s.FailedFatal > 0
}
