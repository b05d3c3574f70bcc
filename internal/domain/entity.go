package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundRecord is one round as written to the journal.
type RoundRecord struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Symbol       string          `gorm:"index" json:"symbol"`
	StartedAt    time.Time       `gorm:"index" json:"started_at"`
	DurationMs   int64           `json:"duration_ms"`
	Price        decimal.Decimal `gorm:"type:text" json:"price"`
	Position     decimal.Decimal `gorm:"type:text" json:"position"`
	RangeLow     decimal.Decimal `gorm:"type:text" json:"range_low"`
	RangeHigh    decimal.Decimal `gorm:"type:text" json:"range_high"`
	Outcome      RoundOutcome    `gorm:"index" json:"outcome"`
	Placed       int             `json:"placed"`
	Skipped      int             `json:"skipped"`
	StopReason   StopReason      `json:"stop_reason,omitempty"`
	TakeProfits  int             `json:"take_profits"`
	TPDuplicates int             `json:"tp_duplicates"`
	TPRejected   int             `json:"tp_rejected"`
	Canceled     int             `json:"canceled"`
	Recentered   bool            `json:"recentered"`
	Broken       bool            `json:"broken"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderAction is one submit or cancel the bot performed.
type OrderAction struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	RoundStarted  time.Time       `gorm:"index" json:"round_started"`
	Kind          ActionKind      `gorm:"index" json:"kind"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Price         decimal.Decimal `gorm:"type:text" json:"price"`
	Qty           decimal.Decimal `gorm:"type:text" json:"qty"`
	ClientOrderID string          `gorm:"index" json:"client_order_id"`
	OrderID       string          `json:"order_id"`
	Result        ActionResult    `json:"result"`
	CreatedAt     time.Time       `json:"created_at"`
}
