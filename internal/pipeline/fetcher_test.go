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

// fakeTradeSource serves canned pages keyed by offset.
type fakeTradeSource struct {
	pages map[int][]domain.Trade
	err   error
	calls int
	since []*time.Time
}

func (f *fakeTradeSource) ListTrades(_ context.Context, _ string, since *time.Time, _, offset int) ([]domain.Trade, error) {
	f.calls++
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[offset], nil
}

func testTrade(tx string, ts time.Time) domain.Trade {
	return domain.Trade{
		TxHash:    tx,
		Trader:    "0xabc",
		MarketID:  "0xcond",
		Side:      domain.TradeSideBuy,
		Outcome:   "Yes",
		Size:      10,
		Price:     0.5,
		Timestamp: ts,
	}
}

func TestFetcher_PaginatesUntilShortPage(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeTradeSource{pages: map[int][]domain.Trade{
		0: {testTrade("t1", base), testTrade("t2", base.Add(time.Second))},
		2: {testTrade("t3", base.Add(2 * time.Second))},
	}}
	f := NewFetcher(source, 2, 0, slog.Default())

	trades, err := f.Backfill(context.Background(), "0xcond")

	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, 2, source.calls)
	assert.Equal(t, "t1", trades[0].TxHash)
	assert.Equal(t, "t3", trades[2].TxHash)
}

func TestFetcher_DeduplicatesAcrossPages(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeTradeSource{pages: map[int][]domain.Trade{
		0: {testTrade("t1", base), testTrade("t2", base.Add(time.Second))},
		2: {testTrade("t2", base.Add(time.Second)), testTrade("t3", base.Add(2*time.Second))},
		4: {},
	}}
	f := NewFetcher(source, 2, 0, slog.Default())

	trades, err := f.Backfill(context.Background(), "0xcond")

	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"},
		[]string{trades[0].TxHash, trades[1].TxHash, trades[2].TxHash})
}

func TestFetcher_SortsAscending(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeTradeSource{pages: map[int][]domain.Trade{
		0: {testTrade("late", base.Add(time.Hour)), testTrade("early", base)},
	}}
	f := NewFetcher(source, 10, 0, slog.Default())

	trades, err := f.Backfill(context.Background(), "0xcond")

	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "early", trades[0].TxHash)
	assert.Equal(t, "late", trades[1].TxHash)
}

func TestFetcher_FetchSincePassesWatermark(t *testing.T) {
	watermark := time.Date(2026, 7, 15, 8, 0, 0, 0, time.UTC)
	source := &fakeTradeSource{pages: map[int][]domain.Trade{}}
	f := NewFetcher(source, 10, 0, slog.Default())

	trades, err := f.FetchSince(context.Background(), "0xcond", watermark)

	require.NoError(t, err)
	assert.Empty(t, trades)
	require.Len(t, source.since, 1)
	require.NotNil(t, source.since[0])
	assert.True(t, source.since[0].Equal(watermark))
}

func TestFetcher_BackfillPassesNilWatermark(t *testing.T) {
	source := &fakeTradeSource{pages: map[int][]domain.Trade{}}
	f := NewFetcher(source, 10, 0, slog.Default())

	_, err := f.Backfill(context.Background(), "0xcond")

	require.NoError(t, err)
	require.Len(t, source.since, 1)
	assert.Nil(t, source.since[0])
}

func TestFetcher_PropagatesSourceErrors(t *testing.T) {
	source := &fakeTradeSource{err: domain.ErrSourceMalformed}
	f := NewFetcher(source, 10, 0, slog.Default())

	_, err := f.Backfill(context.Background(), "0xcond")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceMalformed)
}

func TestFetcher_StopsAtPageBound(t *testing.T) {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	full := []domain.Trade{testTrade("a", base), testTrade("b", base.Add(time.Second))}
	source := &fakeTradeSource{pages: map[int][]domain.Trade{
		0: full,
		2: {testTrade("c", base.Add(2 * time.Second)), testTrade("d", base.Add(3 * time.Second))},
		4: full, // would loop on without the bound
	}}
	f := NewFetcher(source, 2, 2, slog.Default())

	trades, err := f.Backfill(context.Background(), "0xcond")

	require.NoError(t, err)
	assert.Len(t, trades, 4)
	assert.Equal(t, 2, source.calls)
}
