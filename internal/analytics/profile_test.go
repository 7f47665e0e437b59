package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

var testCriteria = SuccessCriteria{
	MinWinRate: 55,
	MinTrades:  50,
	MinROI:     10,
	MinPnL:     1000,
}

func record(marketID string, pnl, buyCost float64, trades int64) domain.PnLRecord {
	return domain.PnLRecord{
		Trader:     "0xa",
		MarketID:   marketID,
		TotalPnL:   pnl,
		BuyCost:    buyCost,
		TradeCount: trades,
	}
}

func TestBuildProfile_RollsUpRecords(t *testing.T) {
	now := time.Now().UTC()
	records := []domain.PnLRecord{
		record("m1", 500, 1000, 10),
		record("m2", -200, 400, 5),
		record("m3", 900, 600, 20),
	}

	p := BuildProfile("0xa", records, testCriteria, now)

	assert.Equal(t, int64(3), p.MarketsTraded)
	assert.Equal(t, int64(2), p.MarketsWon)
	assert.Equal(t, int64(35), p.TotalTrades)
	assert.InDelta(t, 1200.0, p.TotalPnL, 1e-9)
	assert.InDelta(t, 2000.0, p.TotalBuyCost, 1e-9)
	assert.InDelta(t, 66.67, p.WinRate, 0.01)
	require.NotNil(t, p.OverallROI)
	assert.InDelta(t, 60.0, *p.OverallROI, 1e-9)
}

func TestBuildProfile_SuccessfulAboveAllThresholds(t *testing.T) {
	now := time.Now().UTC()
	var records []domain.PnLRecord
	// 6 wins out of 10 markets, 60 trades, +2000 on 10000 spent: 20% ROI.
	for i := 0; i < 6; i++ {
		records = append(records, record("w", 400, 1000, 6))
	}
	for i := 0; i < 4; i++ {
		records = append(records, record("l", -100, 1000, 6))
	}

	p := BuildProfile("0xa", records, testCriteria, now)

	assert.True(t, p.IsSuccessful)
}

func TestCriteria_ExactlyAtThresholdsIsNotSuccessful(t *testing.T) {
	// Exactly 55% win rate, exactly 50 trades, exactly 10% ROI, exactly
	// $1000 PnL. Strict comparisons must reject all four.
	roi := 10.0
	p := domain.TraderProfile{
		WinRate:      55,
		TotalTrades:  50,
		TotalPnL:     1000,
		TotalBuyCost: 10000,
		OverallROI:   &roi,
	}

	assert.False(t, testCriteria.Met(p))
}

func TestCriteria_OneAboveRestAtBoundaryStillFails(t *testing.T) {
	roi := 10.0
	p := domain.TraderProfile{
		WinRate:      80, // clears
		TotalTrades:  50, // boundary
		TotalPnL:     5000,
		TotalBuyCost: 10000,
		OverallROI:   &roi, // boundary
	}

	assert.False(t, testCriteria.Met(p))
}

func TestCriteria_NilROINeverSuccessful(t *testing.T) {
	p := domain.TraderProfile{
		WinRate:     100,
		TotalTrades: 200,
		TotalPnL:    5000,
	}

	assert.False(t, testCriteria.Met(p))
}

func TestBuildProfile_Empty(t *testing.T) {
	p := BuildProfile("0xa", nil, testCriteria, time.Now().UTC())

	assert.Zero(t, p.MarketsTraded)
	assert.Zero(t, p.WinRate)
	assert.Nil(t, p.OverallROI)
	assert.False(t, p.IsSuccessful)
}
