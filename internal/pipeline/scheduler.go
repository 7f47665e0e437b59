package pipeline

import (
	"container/heap"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// Scheduler selects which markets a sync cycle should touch. Selection is a
// pure function of the candidate states and the clock, so cycles are
// reproducible and testable without a database.
type Scheduler struct {
	intervals map[domain.PriorityTier]time.Duration
}

// NewScheduler creates a Scheduler with per-tier minimum inter-sync intervals.
func NewScheduler(intervals map[domain.PriorityTier]time.Duration) *Scheduler {
	return &Scheduler{intervals: intervals}
}

// Interval returns the minimum inter-sync interval for a tier.
func (s *Scheduler) Interval(tier domain.PriorityTier) time.Duration {
	return s.intervals[tier]
}

// staler reports whether a is more overdue than b. A nil watermark means the
// market has never been synced and always sorts first; ties break on market
// ID so repeated selections over the same input are deterministic.
func staler(a, b domain.SyncState) bool {
	switch {
	case a.LastSyncAt == nil && b.LastSyncAt == nil:
		return a.MarketID < b.MarketID
	case a.LastSyncAt == nil:
		return true
	case b.LastSyncAt == nil:
		return false
	case a.LastSyncAt.Equal(*b.LastSyncAt):
		return a.MarketID < b.MarketID
	default:
		return a.LastSyncAt.Before(*b.LastSyncAt)
	}
}

// stateHeap is a bounded max-heap keyed on freshness: the root is the least
// stale retained candidate, so pushing past the bound evicts the freshest.
type stateHeap []domain.SyncState

func (h stateHeap) Len() int           { return len(h) }
func (h stateHeap) Less(i, j int) bool { return staler(h[j], h[i]) }
func (h stateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *stateHeap) Push(x any)        { *h = append(*h, x.(domain.SyncState)) }
func (h *stateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Select returns up to limit markets of the given tier that are due for a
// sync at now, stalest first. A market is due when it has never been synced
// or when its watermark is at least the tier interval old. Selection keeps at
// most limit candidates in memory regardless of how many states are passed.
func (s *Scheduler) Select(states []domain.SyncState, tier domain.PriorityTier, now time.Time, limit int) []domain.SyncState {
	if limit <= 0 {
		return nil
	}
	interval := s.intervals[tier]

	h := make(stateHeap, 0, limit+1)
	heap.Init(&h)
	for _, st := range states {
		if st.Tier != tier {
			continue
		}
		if st.LastSyncAt != nil && now.Sub(*st.LastSyncAt) < interval {
			continue
		}
		heap.Push(&h, st)
		if h.Len() > limit {
			heap.Pop(&h)
		}
	}

	// Drain the heap freshest-first, filling the result back to front.
	out := make([]domain.SyncState, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(domain.SyncState)
	}
	return out
}
