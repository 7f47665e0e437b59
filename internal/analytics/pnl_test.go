package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

var computedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func TestComputeMarketPnL_WinningHold(t *testing.T) {
	// Buy 100 Yes at $0.30, market resolves Yes.
	positions := AggregatePositions([]domain.Trade{
		buy("0xa", "Yes", 100, 0.30, 1),
	})

	records, violations := ComputeMarketPnL("0xcond", positions, "Yes", computedAt)

	require.Empty(t, violations)
	require.Len(t, records, 1)
	rec := records[0]
	assert.InDelta(t, 100.0, rec.PositionValue, 1e-9)
	assert.InDelta(t, 0.0, rec.RealizedPnL, 1e-9)
	assert.InDelta(t, 70.0, rec.SettlementPnL, 1e-9)
	assert.InDelta(t, 70.0, rec.TotalPnL, 1e-9)
	require.NotNil(t, rec.ROI)
	assert.InDelta(t, 233.33, *rec.ROI, 0.01)
}

func TestComputeMarketPnL_LosingHold(t *testing.T) {
	// Buy 100 No at $0.35, market resolves Yes.
	positions := AggregatePositions([]domain.Trade{
		buy("0xa", "No", 100, 0.35, 1),
	})

	records, violations := ComputeMarketPnL("0xcond", positions, "Yes", computedAt)

	require.Empty(t, violations)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Zero(t, rec.PositionValue)
	assert.InDelta(t, -35.0, rec.TotalPnL, 1e-9)
	require.NotNil(t, rec.ROI)
	assert.InDelta(t, -100.0, *rec.ROI, 1e-9)
}

func TestComputeMarketPnL_PartialSaleBeforeResolution(t *testing.T) {
	// Buy 100 Yes at $0.40, sell 50 at $0.60, market resolves Yes.
	positions := AggregatePositions([]domain.Trade{
		buy("0xa", "Yes", 100, 0.40, 1),
		sell("0xa", "Yes", 50, 0.60, 2),
	})

	records, violations := ComputeMarketPnL("0xcond", positions, "Yes", computedAt)

	require.Empty(t, violations)
	require.Len(t, records, 1)
	rec := records[0]
	assert.InDelta(t, 50.0, rec.PositionValue, 1e-9)
	// Sold 50 at 0.60 against a 0.40 basis.
	assert.InDelta(t, 10.0, rec.RealizedPnL, 1e-9)
	// 50 held shares pay $1 each against a 0.40 basis.
	assert.InDelta(t, 30.0, rec.SettlementPnL, 1e-9)
	assert.InDelta(t, 40.0, rec.TotalPnL, 1e-9)
	assert.InDelta(t, rec.TotalPnL, rec.RealizedPnL+rec.SettlementPnL, Epsilon)
}

func TestComputeMarketPnL_BothSides(t *testing.T) {
	positions := AggregatePositions([]domain.Trade{
		buy("0xa", "Yes", 60, 0.50, 1),
		buy("0xa", "No", 40, 0.50, 2),
	})

	records, violations := ComputeMarketPnL("0xcond", positions, "Yes", computedAt)

	require.Empty(t, violations)
	require.Len(t, records, 1)
	rec := records[0]
	assert.InDelta(t, 60.0, rec.WinningShares, 1e-9)
	assert.InDelta(t, 40.0, rec.LosingShares, 1e-9)
	assert.InDelta(t, 60.0, rec.PositionValue, 1e-9)
	assert.InDelta(t, 10.0, rec.TotalPnL, 1e-9)
	assert.InDelta(t, rec.TotalPnL, rec.RealizedPnL+rec.SettlementPnL, Epsilon)
}

func TestComputeMarketPnL_NilROIWithoutBuys(t *testing.T) {
	// A seller-only ledger slice: sells clamp to zero held shares, so the
	// record carries no cost and ROI is undefined.
	positions := AggregatePositions([]domain.Trade{
		sell("0xa", "Yes", 10, 0.50, 1),
	})

	records, violations := ComputeMarketPnL("0xcond", positions, "Yes", computedAt)

	require.Empty(t, violations)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].ROI)
	assert.Zero(t, records[0].TotalPnL)
}

func TestComputeMarketPnL_MultipleTraders(t *testing.T) {
	positions := AggregatePositions([]domain.Trade{
		buy("0xa", "Yes", 10, 0.50, 1),
		buy("0xb", "No", 10, 0.50, 2),
	})

	records, violations := ComputeMarketPnL("0xcond", positions, "Yes", computedAt)

	require.Empty(t, violations)
	require.Len(t, records, 2)
	assert.Equal(t, "0xa", records[0].Trader)
	assert.InDelta(t, 5.0, records[0].TotalPnL, 1e-9)
	assert.Equal(t, "0xb", records[1].Trader)
	assert.InDelta(t, -5.0, records[1].TotalPnL, 1e-9)
}

func TestComputeMarketPnL_IdentityHoldsOverMixedActivity(t *testing.T) {
	positions := AggregatePositions([]domain.Trade{
		buy("0xa", "Yes", 100, 0.20, 1),
		buy("0xa", "Yes", 50, 0.44, 2),
		sell("0xa", "Yes", 80, 0.55, 3),
		buy("0xa", "No", 30, 0.60, 4),
		sell("0xa", "No", 10, 0.40, 5),
	})

	records, violations := ComputeMarketPnL("0xcond", positions, "No", computedAt)

	require.Empty(t, violations)
	require.Len(t, records, 1)
	rec := records[0]
	assert.InDelta(t, rec.TotalPnL, rec.RealizedPnL+rec.SettlementPnL, Epsilon)
	assert.InDelta(t, rec.PositionValue+rec.SaleProceeds-rec.BuyCost, rec.TotalPnL, Epsilon)
}
