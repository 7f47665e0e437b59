package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIMarket_DecodeStringifiedFields(t *testing.T) {
	raw := `{
		"conditionId": "0xcond",
		"slug": "will-it-rain",
		"question": "Will it rain?",
		"active": "true",
		"closed": false,
		"outcomes": "[\"Yes\",\"No\"]",
		"outcomePrices": "[\"0.62\",\"0.38\"]",
		"volume24hr": 1234.5,
		"endDate": "2026-12-31T00:00:00Z"
	}`

	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	dm := m.ToDomainMarket()
	assert.Equal(t, "0xcond", dm.ConditionID)
	assert.True(t, dm.Active)
	assert.Equal(t, []string{"Yes", "No"}, dm.Outcomes)
	assert.Equal(t, 1234.5, dm.Volume24h)
	assert.Nil(t, dm.ResolvedOutcome, "open market must not be resolved")
	require.NotNil(t, dm.EndDate)
	assert.Equal(t, 2026, dm.EndDate.Year())
}

func TestAPIMarket_DecodeNativeFields(t *testing.T) {
	raw := `{
		"conditionId": "0xcond",
		"active": true,
		"closed": false,
		"outcomes": ["Yes", "No"]
	}`

	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.True(t, bool(m.Active))
	assert.Equal(t, stringList{"Yes", "No"}, m.Outcomes)
}

func TestAPIMarket_ResolvedOutcomeFromPrices(t *testing.T) {
	raw := `{
		"conditionId": "0xcond",
		"closed": true,
		"outcomes": "[\"Yes\",\"No\"]",
		"outcomePrices": "[\"0\",\"1\"]"
	}`

	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	dm := m.ToDomainMarket()
	require.NotNil(t, dm.ResolvedOutcome)
	assert.Equal(t, "No", *dm.ResolvedOutcome)
	assert.True(t, dm.Resolved())
}

func TestAPIMarket_ClosedWithoutWinnerStaysUnresolved(t *testing.T) {
	raw := `{
		"conditionId": "0xcond",
		"closed": true,
		"outcomes": "[\"Yes\",\"No\"]",
		"outcomePrices": "[\"0.5\",\"0.5\"]"
	}`

	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Nil(t, m.ToDomainMarket().ResolvedOutcome)
}

func TestAPIMarket_MissingMetadataDefaults(t *testing.T) {
	var m APIMarket
	require.NoError(t, json.Unmarshal([]byte(`{"conditionId": "0xcond"}`), &m))

	dm := m.ToDomainMarket()
	assert.Equal(t, "Unknown", dm.Question)
	assert.Equal(t, []string{"Yes", "No"}, dm.Outcomes)
}

func TestAPITrade_Validate(t *testing.T) {
	good := APITrade{
		TransactionHash: "0xhash",
		ProxyWallet:     "0xwallet",
		ConditionID:     "0xcond",
		Side:            "BUY",
		Outcome:         "Yes",
		Size:            10,
		Price:           0.5,
		Timestamp:       1750000000,
	}
	assert.NoError(t, good.Validate())

	bad := good
	bad.TransactionHash = ""
	assert.Error(t, bad.Validate())

	bad = good
	bad.Side = "HOLD"
	assert.Error(t, bad.Validate())

	bad = good
	bad.Size = 0
	assert.Error(t, bad.Validate())

	bad = good
	bad.Price = 1.5
	assert.Error(t, bad.Validate())

	bad = good
	bad.Timestamp = 0
	assert.Error(t, bad.Validate())
}

func TestAPITrade_PriceBoundariesAllowed(t *testing.T) {
	tr := APITrade{
		TransactionHash: "0xhash",
		ProxyWallet:     "0xwallet",
		ConditionID:     "0xcond",
		Side:            "SELL",
		Size:            1,
		Price:           0,
		Timestamp:       1750000000,
	}
	assert.NoError(t, tr.Validate())

	tr.Price = 1
	assert.NoError(t, tr.Validate())
}

func TestAPITrade_ToDomainTrade(t *testing.T) {
	tr := APITrade{
		TransactionHash: "0xhash",
		ProxyWallet:     "0xwallet",
		ConditionID:     "0xcond",
		Slug:            "will-it-rain",
		Side:            "BUY",
		Outcome:         "Yes",
		OutcomeIndex:    0,
		Size:            10,
		Price:           0.42,
		Timestamp:       1750000000,
	}

	dt := tr.ToDomainTrade()
	assert.Equal(t, "0xhash", dt.TxHash)
	assert.Equal(t, "0xwallet", dt.Trader)
	assert.Equal(t, time.Unix(1750000000, 0).UTC(), dt.Timestamp)
	assert.Equal(t, time.UTC, dt.Timestamp.Location())
}
