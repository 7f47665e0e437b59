package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xiaoyuezhuu/polymarket-agent/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// stringList unmarshals from a JSON array of strings or from a JSON-encoded
// string containing such an array (the Gamma API sends "outcomes" both ways).
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	return json.Unmarshal([]byte(s), (*[]string)(l))
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	ConditionID   string     `json:"conditionId"`
	Slug          string     `json:"slug"`
	Active        flexBool   `json:"active"` // API may send bool or "true"/"false" string
	Closed        bool       `json:"closed"`
	Archived      bool       `json:"archived"`
	Outcomes      stringList `json:"outcomes"`      // e.g. "[\"Yes\",\"No\"]"
	OutcomePrices stringList `json:"outcomePrices"` // e.g. "[\"1\",\"0\"]" once resolved
	Volume24hr    float64    `json:"volume24hr"`
	EndDateISO    string     `json:"endDate"`
	CreatedAt     string     `json:"createdAt"`
	UpdatedAt     string     `json:"updatedAt"`
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market. The resolved
// outcome is derived from outcome prices: once a market is closed, the
// winning outcome's price is reported as 1.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ConditionID: m.ConditionID,
		Slug:        m.Slug,
		Question:    m.Question,
		Active:      bool(m.Active),
		Closed:      m.Closed,
		Archived:    m.Archived,
		Volume24h:   m.Volume24hr,
		Outcomes:    []string(m.Outcomes),
	}
	if dm.Question == "" {
		dm.Question = "Unknown"
	}
	if len(dm.Outcomes) == 0 {
		dm.Outcomes = []string{"Yes", "No"}
	}

	if m.Closed {
		for i, p := range m.OutcomePrices {
			if i >= len(dm.Outcomes) {
				break
			}
			if v, err := strconv.ParseFloat(p, 64); err == nil && v >= 0.999 {
				outcome := dm.Outcomes[i]
				dm.ResolvedOutcome = &outcome
				break
			}
		}
	}

	// Timestamps
	if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		dm.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		dm.UpdatedAt = t
	}
	if m.EndDateISO != "" {
		if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
			dm.EndDate = &t
		}
	}

	return dm
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APITrade represents a trade as returned by the Polymarket Data API
// /trades endpoint.
type APITrade struct {
	TransactionHash string  `json:"transactionHash"`
	ProxyWallet     string  `json:"proxyWallet"`
	ConditionID     string  `json:"conditionId"`
	Slug            string  `json:"slug"`
	Side            string  `json:"side"` // "BUY" or "SELL"
	Outcome         string  `json:"outcome"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"` // unix seconds
}

// Validate checks that the trade satisfies the ledger's schema constraints.
func (t *APITrade) Validate() error {
	switch {
	case t.TransactionHash == "":
		return fmt.Errorf("missing transactionHash")
	case t.ProxyWallet == "":
		return fmt.Errorf("missing proxyWallet")
	case t.ConditionID == "":
		return fmt.Errorf("missing conditionId")
	case t.Side != "BUY" && t.Side != "SELL":
		return fmt.Errorf("invalid side %q", t.Side)
	case t.Size <= 0:
		return fmt.Errorf("non-positive size %g", t.Size)
	case t.Price < 0 || t.Price > 1:
		return fmt.Errorf("price %g outside [0,1]", t.Price)
	case t.Timestamp <= 0:
		return fmt.Errorf("invalid timestamp %d", t.Timestamp)
	}
	return nil
}

// ToDomainTrade converts an APITrade to a domain.Trade. Callers should
// Validate first; conversion does not re-check fields.
func (t *APITrade) ToDomainTrade() domain.Trade {
	return domain.Trade{
		TxHash:       t.TransactionHash,
		Trader:       t.ProxyWallet,
		MarketID:     t.ConditionID,
		Slug:         t.Slug,
		Side:         domain.TradeSide(t.Side),
		Outcome:      t.Outcome,
		OutcomeIndex: t.OutcomeIndex,
		Size:         t.Size,
		Price:        t.Price,
		Timestamp:    time.Unix(t.Timestamp, 0).UTC(),
	}
}

// --------------------------------------------------------------------------
// WebSocket DTOs (live-data activity feed)
// --------------------------------------------------------------------------

// WSCommand is the JSON payload sent to the live-data WebSocket to
// subscribe or unsubscribe.
type WSCommand struct {
	Action        string           `json:"action"` // "subscribe" or "unsubscribe"
	Subscriptions []WSSubscription `json:"subscriptions"`
}

// WSSubscription selects one topic/type pair on the live-data feed.
type WSSubscription struct {
	Topic string `json:"topic"` // e.g. "activity"
	Type  string `json:"type"`  // e.g. "trades"
}

// WSActivity is the envelope of a live-data activity frame.
type WSActivity struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WSTradeEvent is the payload of an activity/trades frame.
type WSTradeEvent struct {
	ConditionID     string  `json:"conditionId"`
	Slug            string  `json:"slug"`
	Side            string  `json:"side"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	ProxyWallet     string  `json:"proxyWallet"`
	TransactionHash string  `json:"transactionHash"`
	Timestamp       int64   `json:"timestamp"`
}
