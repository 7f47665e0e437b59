package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// DataClient is the REST client for the Polymarket Data API, which serves
// the historical trade feed. All requests share one rate limiter so that
// concurrent market syncs stay inside the API's request budget.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewDataClient creates a new Data API client.
//
// baseURL is the Data API root, e.g. "https://data-api.polymarket.com".
// rps caps outbound requests per second across all callers.
func NewDataClient(baseURL string, rps float64) *DataClient {
	if rps <= 0 {
		rps = 2
	}
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// ListTrades returns one page of trades for a market, ordered by timestamp
// ascending. When since is non-nil only trades at or after it are requested;
// the boundary is inclusive, so callers must tolerate overlap with already
// ingested trades. A malformed row fails the whole page: a partially-bad
// page must not be silently half-ingested.
func (d *DataClient) ListTrades(ctx context.Context, marketID string, since *time.Time, limit, offset int) ([]domain.Trade, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("polymarket/data: rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("market", marketID)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("sortBy", "TIMESTAMP")
	params.Set("sortDirection", "ASC")
	if since != nil {
		params.Set("from", strconv.FormatInt(since.Unix(), 10))
	}

	path := "/trades?" + params.Encode()

	body, err := d.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: list trades market=%s: %w", marketID, err)
	}

	var apiTrades []APITrade
	if err := json.Unmarshal(body, &apiTrades); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode trades market=%s: %w", marketID, domainMalformed(err))
	}

	trades := make([]domain.Trade, 0, len(apiTrades))
	for i := range apiTrades {
		if err := apiTrades[i].Validate(); err != nil {
			return nil, fmt.Errorf("polymarket/data: %w: market=%s offset=%d: %v",
				domain.ErrSourceMalformed, marketID, offset+i, err)
		}
		trades = append(trades, apiTrades[i].ToDomainTrade())
	}

	return trades, nil
}

// doGet sends an unauthenticated GET request to the Data API.
func (d *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrSourceUnavailable, err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
