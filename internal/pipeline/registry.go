package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// Registry is the in-memory view of every tracked market's sync state, plus
// a trailing activity counter fed by the live trade feed. It is the single
// source the scheduler snapshots from, so cycles never hit the database just
// to decide what to sync.
type Registry struct {
	mu       sync.RWMutex
	states   map[string]domain.SyncState
	activity map[string][]activitySample
	window   time.Duration
}

type activitySample struct {
	at       time.Time
	notional float64
}

// NewRegistry creates an empty Registry. Activity samples older than window
// are discarded when trailing volume is read.
func NewRegistry(window time.Duration) *Registry {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Registry{
		states:   make(map[string]domain.SyncState),
		activity: make(map[string][]activitySample),
		window:   window,
	}
}

// Load replaces the in-memory states with the persisted ones. Called once at
// startup before any loop runs.
func (r *Registry) Load(ctx context.Context, store domain.SyncStateStore) error {
	states, err := store.List(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = make(map[string]domain.SyncState, len(states))
	for _, st := range states {
		r.states[st.MarketID] = st
	}
	return nil
}

// Get returns the state for one market.
func (r *Registry) Get(marketID string) (domain.SyncState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[marketID]
	return st, ok
}

// Put stores the state for one market, replacing any existing entry.
func (r *Registry) Put(st domain.SyncState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[st.MarketID] = st
}

// Ensure registers a market with a nil watermark and the given tier if it is
// not already tracked. Returns true when a new entry was created.
func (r *Registry) Ensure(marketID string, tier domain.PriorityTier) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[marketID]; ok {
		return false
	}
	r.states[marketID] = domain.SyncState{MarketID: marketID, Tier: tier}
	return true
}

// SetTier updates the tier of a tracked market in place.
func (r *Registry) SetTier(marketID string, tier domain.PriorityTier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[marketID]; ok {
		st.Tier = tier
		r.states[marketID] = st
	}
}

// Snapshot returns a copy of all tracked states ordered by market ID.
func (r *Registry) Snapshot() []domain.SyncState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SyncState, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// Len returns the number of tracked markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// RecordActivity adds live-feed notional (size times price) to a market's
// trailing window. Unknown markets are recorded too; the next metadata
// refresh will register them properly.
func (r *Registry) RecordActivity(marketID string, notional float64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	samples := r.activity[marketID]
	samples = append(samples, activitySample{at: at, notional: notional})
	r.activity[marketID] = pruneSamples(samples, at.Add(-r.window))
}

// TrailingVolume returns the summed notional recorded for a market within
// the trailing window ending at now.
func (r *Registry) TrailingVolume(marketID string, now time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	samples := pruneSamples(r.activity[marketID], now.Add(-r.window))
	if len(samples) == 0 {
		delete(r.activity, marketID)
	} else {
		r.activity[marketID] = samples
	}

	var sum float64
	for _, s := range samples {
		sum += s.notional
	}
	return sum
}

func pruneSamples(samples []activitySample, cutoff time.Time) []activitySample {
	i := 0
	for i < len(samples) && !samples[i].at.After(cutoff) {
		i++
	}
	return samples[i:]
}
