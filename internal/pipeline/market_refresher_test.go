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

// memMarketStore keeps markets keyed by condition ID.
type memMarketStore struct {
	rows map[string]domain.Market
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{rows: make(map[string]domain.Market)}
}

func (m *memMarketStore) UpsertBatch(_ context.Context, markets []domain.Market) error {
	for _, mk := range markets {
		m.rows[mk.ConditionID] = mk
	}
	return nil
}

func (m *memMarketStore) ListActive(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

func (m *memMarketStore) ListResolved(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

func (m *memMarketStore) FilterUnresolved(_ context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if mk, ok := m.rows[id]; ok && mk.ResolvedOutcome == nil {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memMarketStore) Count(context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}

// fakeMarketLister serves one fixed catalogue page.
type fakeMarketLister struct {
	markets []domain.Market
}

func (f *fakeMarketLister) GetMarkets(_ context.Context, limit, offset int) ([]domain.Market, error) {
	if offset >= len(f.markets) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.markets) {
		end = len(f.markets)
	}
	return f.markets[offset:end], nil
}

// recordingNotifier captures events passed to Notify.
type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, event, _ string) error {
	r.events = append(r.events, event)
	return nil
}

func testMarket(id string, resolved *string) domain.Market {
	return domain.Market{
		ConditionID:     id,
		Question:        "Will it settle?",
		Active:          resolved == nil,
		Closed:          resolved != nil,
		ResolvedOutcome: resolved,
		UpdatedAt:       time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMarketRefresher_RegistersDiscoveredMarkets(t *testing.T) {
	markets := newMemMarketStore()
	states := newMemSyncStateStore()
	registry := NewRegistry(time.Hour)

	mr := NewMarketRefresher(
		&fakeMarketLister{markets: []domain.Market{
			testMarket("0xa", nil),
			testMarket("0xb", nil),
		}},
		markets, states, nil, registry, nil, 10, slog.Default(),
	)

	require.NoError(t, mr.Run(context.Background()))

	assert.Equal(t, 2, registry.Len())
	st, ok := registry.Get("0xa")
	require.True(t, ok)
	assert.Equal(t, domain.TierNormal, st.Tier)
	assert.Nil(t, st.LastSyncAt)

	persisted, err := states.Get(context.Background(), "0xb")
	require.NoError(t, err)
	assert.Equal(t, domain.TierNormal, persisted.Tier)
}

func TestMarketRefresher_RefreshDoesNotResetTrackedState(t *testing.T) {
	markets := newMemMarketStore()
	states := newMemSyncStateStore()
	registry := NewRegistry(time.Hour)

	synced := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	registry.Put(domain.SyncState{MarketID: "0xa", Tier: domain.TierHigh, LastSyncAt: &synced})

	mr := NewMarketRefresher(
		&fakeMarketLister{markets: []domain.Market{testMarket("0xa", nil)}},
		markets, states, nil, registry, nil, 10, slog.Default(),
	)

	require.NoError(t, mr.Run(context.Background()))

	st, ok := registry.Get("0xa")
	require.True(t, ok)
	assert.Equal(t, domain.TierHigh, st.Tier)
	require.NotNil(t, st.LastSyncAt)
	assert.True(t, st.LastSyncAt.Equal(synced))
}

func TestMarketRefresher_NotifiesOnResolutionTransition(t *testing.T) {
	markets := newMemMarketStore()
	require.NoError(t, markets.UpsertBatch(context.Background(), []domain.Market{testMarket("0xa", nil)}))

	notifier := &recordingNotifier{}
	yes := "Yes"
	mr := NewMarketRefresher(
		&fakeMarketLister{markets: []domain.Market{testMarket("0xa", &yes)}},
		markets, newMemSyncStateStore(), nil, NewRegistry(time.Hour),
		notifier, 10, slog.Default(),
	)

	require.NoError(t, mr.Run(context.Background()))
	assert.Equal(t, []string{"market_resolved"}, notifier.events)

	// The transition was persisted, so the next refresh stays quiet.
	require.NoError(t, mr.Run(context.Background()))
	assert.Equal(t, []string{"market_resolved"}, notifier.events)
}

func TestMarketRefresher_NoNotificationForNewAlreadyResolvedMarket(t *testing.T) {
	notifier := &recordingNotifier{}
	no := "No"
	mr := NewMarketRefresher(
		&fakeMarketLister{markets: []domain.Market{testMarket("0xold", &no)}},
		newMemMarketStore(), newMemSyncStateStore(), nil, NewRegistry(time.Hour),
		notifier, 10, slog.Default(),
	)

	require.NoError(t, mr.Run(context.Background()))
	assert.Empty(t, notifier.events)
}
