package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundOutcome summarizes how a round ended.
type RoundOutcome string

const (
	OutcomeOK      RoundOutcome = "ok"
	OutcomeSkipped RoundOutcome = "skipped" // No price available
	OutcomeBroken  RoundOutcome = "broken"  // Range break handled, grid work skipped
	OutcomeFailed  RoundOutcome = "failed"  // Aborted by a remote error or panic
)

// ActionKind is the kind of order action the bot performed.
type ActionKind string

const (
	ActionPlaceBuy        ActionKind = "place_buy"
	ActionPlaceTakeProfit ActionKind = "place_tp"
	ActionCancel          ActionKind = "cancel"
	ActionLiquidate       ActionKind = "liquidate"
)

// ActionResult is the broker's answer to an order action.
type ActionResult string

const (
	ResultOK        ActionResult = "ok"
	ResultDuplicate ActionResult = "duplicate"
	ResultNotFound  ActionResult = "not_found"
	ResultRejected  ActionResult = "rejected"
	ResultError     ActionResult = "error"
)

// StopReason explains why order placement ended before every level was covered.
type StopReason string

const (
	StopNone            StopReason = ""
	StopMaxOpenBuys     StopReason = "max_open_buys"
	StopBudgetExhausted StopReason = "budget_exhausted"
)

// RoundSummary is the structured result of one round.
type RoundSummary struct {
	Symbol    string
	StartedAt time.Time
	Duration  time.Duration
	Price     decimal.Decimal
	Position  decimal.Decimal
	Range     Range

	Levels      int // Desired buy levels after zone filtering
	Placed      int
	Existing    int // Levels already covered by an open buy
	Duplicates  int // Submissions answered with a duplicate client id
	Skipped     int // Missing levels left unplaced because of StopReason
	StopReason  StopReason
	TakeProfits int
	Canceled    int

	Fills          int // Grid buy fills inside the lookback window
	TPDuplicates   int // Take-profits refused as duplicate client ids
	TPRejected     int // Take-profits refused for insufficient position
	MalformedFills int

	Recentered bool
	Broken     bool
	Liquidated decimal.Decimal

	Outcome RoundOutcome
	Err     string

	Actions []OrderAction
}

// NewRoundSummary starts a summary for a round.
func NewRoundSummary(symbol string, startedAt time.Time, active Range) *RoundSummary {
	return &RoundSummary{
		Symbol:    symbol,
		StartedAt: startedAt,
		Range:     active,
		Outcome:   OutcomeOK,
	}
}

// AddAction appends an action stamped with the round start time.
func (s *RoundSummary) AddAction(a OrderAction) {
	a.RoundStarted = s.StartedAt
	if a.Symbol == "" {
		a.Symbol = s.Symbol
	}
	s.Actions = append(s.Actions, a)
}

// Record converts the summary to its journal row.
func (s *RoundSummary) Record() *RoundRecord {
	return &RoundRecord{
		Symbol:       s.Symbol,
		StartedAt:    s.StartedAt,
		DurationMs:   s.Duration.Milliseconds(),
		Price:        s.Price,
		Position:     s.Position,
		RangeLow:     s.Range.Low,
		RangeHigh:    s.Range.High,
		Outcome:      s.Outcome,
		Placed:       s.Placed,
		Skipped:      s.Skipped,
		StopReason:   s.StopReason,
		TakeProfits:  s.TakeProfits,
		TPDuplicates: s.TPDuplicates,
		TPRejected:   s.TPRejected,
		Canceled:     s.Canceled,
		Recentered:   s.Recentered,
		Broken:       s.Broken,
		Error:        s.Err,
	}
}
