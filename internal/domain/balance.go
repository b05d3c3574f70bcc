package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Budget tracks the cash left for new buys during one round.
// It starts from the cash reported at round start and is only ever decremented,
// so the planned notional of a round can never exceed that cash.
type Budget struct {
	Symbol   string          `json:"symbol"`
	Start    decimal.Decimal `json:"start"`    // Cash reported at round start
	Reserved decimal.Decimal `json:"reserved"` // Notional of orders planned this round
}

// NewBudget creates a budget from the cash reported by the broker.
// Negative cash is clamped to zero.
func NewBudget(symbol string, cash decimal.Decimal) *Budget {
	if cash.IsNegative() {
		cash = decimal.Zero
	}
	return &Budget{Symbol: symbol, Start: cash, Reserved: decimal.Zero}
}

// Remaining returns the cash not yet reserved.
func (b *Budget) Remaining() decimal.Decimal {
	return b.Start.Sub(b.Reserved)
}

// CanAfford reports whether notional fits in the remaining cash.
func (b *Budget) CanAfford(notional decimal.Decimal) bool {
	return notional.LessThanOrEqual(b.Remaining())
}

// TryReserve reserves notional if it fits. It returns false and leaves the
// budget untouched otherwise.
func (b *Budget) TryReserve(notional decimal.Decimal) bool {
	if notional.IsNegative() || !b.CanAfford(notional) {
		return false
	}
	b.Reserved = b.Reserved.Add(notional)
	return true
}

// VerifyInvariant checks that the budget was never overdrawn.
func (b *Budget) VerifyInvariant() error {
	if b.Reserved.IsNegative() {
		return fmt.Errorf("BUDGET_INVARIANT_NEGATIVE_RESERVED: %s = %s", b.Symbol, b.Reserved)
	}
	if b.Reserved.GreaterThan(b.Start) {
		return fmt.Errorf("BUDGET_INVARIANT_OVERDRAWN: %s reserved=%s, start=%s",
			b.Symbol, b.Reserved, b.Start)
	}
	return nil
}
