package strategy

import (
	"github.com/shopspring/decimal"

	"grid_go/internal/domain"
)

// MaxLevels bounds the size of a grid. Larger grids are treated as degenerate.
const MaxLevels = 1000

// TruncateToIncrement rounds v down to a multiple of inc.
func TruncateToIncrement(v, inc decimal.Decimal) decimal.Decimal {
	if !inc.IsPositive() {
		return v
	}
	return v.Div(inc).Floor().Mul(inc)
}

// CeilToIncrement rounds v up to a multiple of inc.
func CeilToIncrement(v, inc decimal.Decimal) decimal.Decimal {
	if !inc.IsPositive() {
		return v
	}
	return v.Div(inc).Ceil().Mul(inc)
}

// BuildLevels returns the ascending, duplicate-free grid prices of r, each
// truncated to tick. Both bounds are included when they sit on the grid.
// Degenerate input yields an empty slice.
func BuildLevels(r domain.Range, tick decimal.Decimal) []decimal.Decimal {
	if !tick.IsPositive() || !r.Low.IsPositive() || !r.High.GreaterThan(r.Low) {
		return nil
	}

	low := CeilToIncrement(r.Low, tick)
	high := TruncateToIncrement(r.High, tick)
	if !high.GreaterThan(low) {
		return nil
	}

	var raw []decimal.Decimal
	switch {
	case r.Step.IsPositive():
		n := high.Sub(low).Div(r.Step).Floor().IntPart() + 1
		if n > MaxLevels {
			return nil
		}
		raw = make([]decimal.Decimal, 0, n)
		for p := low; p.LessThanOrEqual(high); p = p.Add(r.Step) {
			raw = append(raw, p)
		}
	case r.Levels >= 2:
		if r.Levels+1 > MaxLevels {
			return nil
		}
		step := high.Sub(low).Div(decimal.NewFromInt(int64(r.Levels)))
		raw = make([]decimal.Decimal, 0, r.Levels+1)
		for i := 0; i < r.Levels; i++ {
			raw = append(raw, low.Add(step.Mul(decimal.NewFromInt(int64(i)))))
		}
		raw = append(raw, high)
	default:
		return nil
	}

	levels := make([]decimal.Decimal, 0, len(raw))
	for _, p := range raw {
		p = TruncateToIncrement(p, tick)
		if n := len(levels); n > 0 && !p.GreaterThan(levels[n-1]) {
			continue
		}
		levels = append(levels, p)
	}
	return levels
}

// FilterBuyZone keeps the levels that should carry a resting buy.
func FilterBuyZone(levels []decimal.Decimal, zone BuyZone, active domain.Range, price decimal.Decimal) []decimal.Decimal {
	var limit decimal.Decimal
	switch zone {
	case BuyZoneBelowMid:
		limit = active.Mid()
	case BuyZoneBelowPrice:
		limit = price
	default:
		return levels
	}

	out := make([]decimal.Decimal, 0, len(levels))
	for _, p := range levels {
		if p.LessThan(limit) {
			out = append(out, p)
		}
	}
	return out
}
