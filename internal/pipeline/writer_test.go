package pipeline

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// memTradeStore keeps inserted trades keyed by tx hash, mirroring the
// insert-or-ignore semantics of the real store.
type memTradeStore struct {
	rows map[string]domain.Trade
	err  error
}

func newMemTradeStore() *memTradeStore {
	return &memTradeStore{rows: make(map[string]domain.Trade)}
}

func (m *memTradeStore) InsertBatch(_ context.Context, trades []domain.Trade) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var inserted int64
	for _, t := range trades {
		if _, dup := m.rows[t.TxHash]; dup {
			continue
		}
		m.rows[t.TxHash] = t
		inserted++
	}
	return inserted, nil
}

func (m *memTradeStore) ListByMarket(context.Context, string, domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

func (m *memTradeStore) ListBefore(context.Context, time.Time) ([]domain.Trade, error) {
	return nil, nil
}

func (m *memTradeStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memTradeStore) Count(context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}

// memSyncStateStore keeps sync states in a map.
type memSyncStateStore struct {
	states map[string]domain.SyncState
	err    error
}

func newMemSyncStateStore() *memSyncStateStore {
	return &memSyncStateStore{states: make(map[string]domain.SyncState)}
}

func (m *memSyncStateStore) Get(_ context.Context, id string) (domain.SyncState, error) {
	st, ok := m.states[id]
	if !ok {
		return domain.SyncState{}, domain.ErrNotFound
	}
	return st, nil
}

func (m *memSyncStateStore) Put(_ context.Context, st domain.SyncState) error {
	if m.err != nil {
		return m.err
	}
	m.states[st.MarketID] = st
	return nil
}

func (m *memSyncStateStore) Ensure(_ context.Context, id string, tier domain.PriorityTier) error {
	if _, ok := m.states[id]; !ok {
		m.states[id] = domain.SyncState{MarketID: id, Tier: tier}
	}
	return nil
}

func (m *memSyncStateStore) List(context.Context) ([]domain.SyncState, error) {
	out := make([]domain.SyncState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	return out, nil
}

func (m *memSyncStateStore) UpdateTiers(_ context.Context, tiers map[string]domain.PriorityTier) error {
	for id, tier := range tiers {
		st := m.states[id]
		st.MarketID = id
		st.Tier = tier
		m.states[id] = st
	}
	return nil
}

func TestWriter_WatermarkIsNewestTradeTimestamp(t *testing.T) {
	trades := newMemTradeStore()
	states := newMemSyncStateStore()
	w := NewWriter(trades, states, slog.Default())

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	now := base.Add(time.Hour)
	batch := []domain.Trade{
		testTrade("t1", base),
		testTrade("t2", base.Add(10*time.Minute)),
	}

	updated, inserted, err := w.Commit(context.Background(),
		domain.SyncState{MarketID: "0xcond", Tier: domain.TierNormal}, batch, now)

	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)
	require.NotNil(t, updated.LastSyncAt)
	assert.True(t, updated.LastSyncAt.Equal(base.Add(10*time.Minute)))
	assert.Equal(t, int64(2), updated.LastTradeCount)

	persisted, err := states.Get(context.Background(), "0xcond")
	require.NoError(t, err)
	assert.True(t, persisted.LastSyncAt.Equal(*updated.LastSyncAt))
}

func TestWriter_EmptyBatchAdvancesToNow(t *testing.T) {
	w := NewWriter(newMemTradeStore(), newMemSyncStateStore(), slog.Default())

	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	updated, inserted, err := w.Commit(context.Background(),
		domain.SyncState{MarketID: "0xcond", Tier: domain.TierLow}, nil, now)

	require.NoError(t, err)
	assert.Zero(t, inserted)
	require.NotNil(t, updated.LastSyncAt)
	assert.True(t, updated.LastSyncAt.Equal(now))
}

func TestWriter_ReingestCountsZeroDuplicates(t *testing.T) {
	trades := newMemTradeStore()
	states := newMemSyncStateStore()
	w := NewWriter(trades, states, slog.Default())

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	batch := []domain.Trade{testTrade("t1", base), testTrade("t2", base.Add(time.Minute))}

	st := domain.SyncState{MarketID: "0xcond", Tier: domain.TierNormal}
	st, inserted, err := w.Commit(context.Background(), st, batch, base.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), inserted)

	// Same window fetched again after a crash between insert and advance.
	st, inserted, err = w.Commit(context.Background(), st, batch, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Equal(t, int64(2), st.LastTradeCount)
}

func TestWriter_DuplicateOnlyBatchAdvancesToNow(t *testing.T) {
	trades := newMemTradeStore()
	states := newMemSyncStateStore()
	w := NewWriter(trades, states, slog.Default())

	// The inclusive source window always re-returns the boundary trade, so
	// a quiet market fetches the same single duplicate forever. The
	// watermark must still move, or the market stays the stalest in its
	// tier for good.
	boundary := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := []domain.Trade{testTrade("boundary", boundary)}

	st := domain.SyncState{MarketID: "0xcond", Tier: domain.TierNormal}
	st, _, err := w.Commit(context.Background(), st, batch, boundary.Add(time.Minute))
	require.NoError(t, err)

	now := boundary.Add(30 * 24 * time.Hour)
	st, inserted, err := w.Commit(context.Background(), st, batch, now)

	require.NoError(t, err)
	assert.Zero(t, inserted)
	require.NotNil(t, st.LastSyncAt)
	assert.True(t, st.LastSyncAt.Equal(now), "watermark must advance past a duplicate-only window")
}

func TestWriter_WatermarkNeverRegresses(t *testing.T) {
	w := NewWriter(newMemTradeStore(), newMemSyncStateStore(), slog.Default())

	existing := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	st := domain.SyncState{
		MarketID:   "0xcond",
		Tier:       domain.TierNormal,
		LastSyncAt: &existing,
	}

	// Source returns only stale data older than the watermark.
	batch := []domain.Trade{testTrade("old", existing.Add(-time.Hour))}
	updated, _, err := w.Commit(context.Background(), st, batch, existing.Add(time.Minute))

	require.NoError(t, err)
	require.NotNil(t, updated.LastSyncAt)
	assert.True(t, updated.LastSyncAt.Equal(existing), "watermark must be monotonic")
}

func TestWriter_InsertFailureKeepsWatermark(t *testing.T) {
	trades := newMemTradeStore()
	trades.err = domain.ErrStoreWrite
	states := newMemSyncStateStore()
	w := NewWriter(trades, states, slog.Default())

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	st := domain.SyncState{MarketID: "0xcond", Tier: domain.TierNormal}
	updated, _, err := w.Commit(context.Background(), st, []domain.Trade{testTrade("t1", base)}, base)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreWrite)
	assert.Nil(t, updated.LastSyncAt)
	assert.Empty(t, states.states)
}
