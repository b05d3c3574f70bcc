package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Range is the active [Low, High] price band of the grid.
// Exactly one of Step (> 0) or Levels (>= 2) describes the spacing.
type Range struct {
	Low    decimal.Decimal `json:"low"`
	High   decimal.Decimal `json:"high"`
	Step   decimal.Decimal `json:"step"`
	Levels int             `json:"levels"`
}

// Width returns High - Low.
func (r Range) Width() decimal.Decimal {
	return r.High.Sub(r.Low)
}

// Mid returns the midpoint of the range.
func (r Range) Mid() decimal.Decimal {
	return r.Low.Add(r.High).Div(decimal.NewFromInt(2))
}

// Spacing returns the distance between adjacent levels.
// In level-count mode it is Width / Levels.
func (r Range) Spacing() decimal.Decimal {
	if r.Step.IsPositive() {
		return r.Step
	}
	if r.Levels > 0 {
		return r.Width().Div(decimal.NewFromInt(int64(r.Levels)))
	}
	return decimal.Zero
}

// WithBounds returns a copy of r with new bounds and the same spacing rule.
func (r Range) WithBounds(low, high decimal.Decimal) Range {
	r.Low = low
	r.High = high
	return r
}

// Validate checks the range invariants.
func (r Range) Validate() error {
	if !r.Low.IsPositive() {
		return fmt.Errorf("%w: low must be positive, got %s", ErrDegenerateRange, r.Low)
	}
	if !r.Low.LessThan(r.High) {
		return fmt.Errorf("%w: low %s must be below high %s", ErrDegenerateRange, r.Low, r.High)
	}
	if !r.Step.IsPositive() && r.Levels < 2 {
		return fmt.Errorf("%w: need step > 0 or levels >= 2", ErrDegenerateRange)
	}
	return nil
}

// String renders the range for logs.
func (r Range) String() string {
	return r.Low.String() + "-" + r.High.String()
}
