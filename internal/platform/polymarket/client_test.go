package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

func TestGammaClient_GetMarketsQueryAndDecode(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[{"conditionId": "0xcond", "question": "Will it rain?", "active": "true", "outcomes": "[\"Yes\",\"No\"]"}]`))
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL)
	markets, err := client.GetMarkets(context.Background(), 100, 200)

	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "0xcond", markets[0].ConditionID)
	assert.True(t, markets[0].Active)
	assert.Contains(t, gotQuery, "limit=100")
	assert.Contains(t, gotQuery, "offset=200")
	assert.Contains(t, gotQuery, "order=id")
	assert.Contains(t, gotQuery, "ascending=true")
}

func TestGammaClient_GetMarketNotFoundOnEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL)
	_, err := client.GetMarket(context.Background(), "0xmissing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGammaClient_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL)
	_, err := client.GetMarkets(context.Background(), 10, 0)

	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestGammaClient_ThrottleIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL)
	_, err := client.GetMarkets(context.Background(), 10, 0)

	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestGammaClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "an array"`))
	}))
	defer srv.Close()

	client := NewGammaClient(srv.URL)
	_, err := client.GetMarkets(context.Background(), 10, 0)

	assert.ErrorIs(t, err, domain.ErrSourceMalformed)
}

func TestDataClient_ListTradesQueryAndOrdering(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[
			{"transactionHash": "0x1", "proxyWallet": "0xa", "conditionId": "0xcond", "side": "BUY", "size": 10, "price": 0.5, "timestamp": 1750000000},
			{"transactionHash": "0x2", "proxyWallet": "0xb", "conditionId": "0xcond", "side": "SELL", "size": 5, "price": 0.6, "timestamp": 1750000060}
		]`))
	}))
	defer srv.Close()

	client := NewDataClient(srv.URL, 100)
	since := time.Unix(1749999000, 0).UTC()
	trades, err := client.ListTrades(context.Background(), "0xcond", &since, 500, 0)

	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "0x1", trades[0].TxHash)
	assert.Equal(t, domain.TradeSideSell, trades[1].Side)
	assert.Contains(t, gotQuery, "market=0xcond")
	assert.Contains(t, gotQuery, "sortBy=TIMESTAMP")
	assert.Contains(t, gotQuery, "sortDirection=ASC")
	assert.Contains(t, gotQuery, "from=1749999000")
}

func TestDataClient_NoFromParamWithoutWatermark(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewDataClient(srv.URL, 100)
	trades, err := client.ListTrades(context.Background(), "0xcond", nil, 500, 0)

	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.NotContains(t, gotQuery, "from=")
}

func TestDataClient_BadRowFailsWholePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"transactionHash": "0x1", "proxyWallet": "0xa", "conditionId": "0xcond", "side": "BUY", "size": 10, "price": 0.5, "timestamp": 1750000000},
			{"transactionHash": "0x2", "proxyWallet": "0xb", "conditionId": "0xcond", "side": "BUY", "size": 10, "price": 1.7, "timestamp": 1750000060}
		]`))
	}))
	defer srv.Close()

	client := NewDataClient(srv.URL, 100)
	trades, err := client.ListTrades(context.Background(), "0xcond", nil, 500, 0)

	assert.ErrorIs(t, err, domain.ErrSourceMalformed)
	assert.Nil(t, trades)
}

func TestDataClient_RateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	// 1 rps with an exhausted burst forces the second call to wait; the
	// cancelled context must abort it before any request is sent.
	client := NewDataClient(srv.URL, 1)
	_, err := client.ListTrades(context.Background(), "0xcond", nil, 10, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.ListTrades(ctx, "0xcond", nil, 10, 0)
	assert.Error(t, err)
}
