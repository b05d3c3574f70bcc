package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is a single last-trade observation from a price feed.
type Ticker struct {
	Symbol    string          `json:"symbol"` // Broker symbol (e.g., "ETH/USD")
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Source    string          `json:"source"` // "STREAM", "REST", "PAPER"
	Timestamp time.Time       `json:"timestamp"`
}

// MarketData keeps the latest observation of one symbol.
type MarketData struct {
	Symbol     string    `json:"symbol"`
	Last       *Ticker   `json:"last,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Updates    uint64    `json:"updates"`
}

// IsFresh reports whether the last observation is younger than maxAge at now.
func (m *MarketData) IsFresh(now time.Time, maxAge time.Duration) bool {
	if m == nil || m.Last == nil || !m.Last.Price.IsPositive() {
		return false
	}
	return now.Sub(m.ReceivedAt) <= maxAge
}

// Apply records t if it is not older than the current observation.
func (m *MarketData) Apply(t *Ticker, receivedAt time.Time) bool {
	if m.Last != nil && !t.Timestamp.IsZero() && t.Timestamp.Before(m.Last.Timestamp) {
		return false
	}
	m.Last = t
	m.ReceivedAt = receivedAt
	m.Updates++
	return true
}
