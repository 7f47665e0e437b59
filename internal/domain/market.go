package domain

import "time"

// Market represents a Polymarket prediction market tracked by the agent.
// The condition ID is the immutable key; lifecycle flags follow the
// Gamma API convention (a market can be closed but not yet archived).
type Market struct {
	ConditionID     string
	Slug            string
	Question        string
	Outcomes        []string // e.g. ["Yes","No"]
	Active          bool
	Closed          bool
	Archived        bool
	ResolvedOutcome *string // nil until settlement
	Volume24h       float64
	EndDate         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Resolved reports whether the market has settled to a final outcome.
func (m Market) Resolved() bool {
	return m.ResolvedOutcome != nil && *m.ResolvedOutcome != ""
}
