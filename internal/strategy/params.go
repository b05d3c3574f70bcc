package strategy

import (
	"fmt"
	"time"

	"grid_go/internal/domain"

	"github.com/shopspring/decimal"
)

// BuyZone selects which grid levels receive resting buys.
type BuyZone string

const (
	BuyZoneAll        BuyZone = "all"
	BuyZoneBelowMid   BuyZone = "below_mid"
	BuyZoneBelowPrice BuyZone = "below_price"
)

// RecenterMode selects how a new range is placed around the price.
type RecenterMode string

const (
	RecenterCenter RecenterMode = "center"
	RecenterEdge   RecenterMode = "edge"
)

// RecenterParams configures automatic recentring.
type RecenterParams struct {
	Enabled   bool
	BufferPct decimal.Decimal // Percent of the active range width
	Mode      RecenterMode
	Cooldown  time.Duration
}

// Params is the validated, typed configuration of one grid.
type Params struct {
	Symbol string
	Base   domain.Range // Configured range; anchor for recenter snapping

	PriceTick    decimal.Decimal
	QtyIncrement decimal.Decimal
	QtyPerLevel  decimal.Decimal

	TakeProfitPct    decimal.Decimal
	BreakBufferPct   decimal.Decimal
	LiquidateOnBreak bool
	MaxOpenBuys      int
	BuyZone          BuyZone
	FillLookback     time.Duration

	Recenter RecenterParams
}

// Validate checks the parameters once at startup.
func (p Params) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", domain.ErrInvalidSymbol)
	}
	if err := p.Base.Validate(); err != nil {
		return err
	}
	if !p.PriceTick.IsPositive() {
		return fmt.Errorf("price tick must be positive, got %s", p.PriceTick)
	}
	if !p.QtyIncrement.IsPositive() {
		return fmt.Errorf("quantity increment must be positive, got %s", p.QtyIncrement)
	}
	if TruncateToIncrement(p.QtyPerLevel, p.QtyIncrement).IsZero() {
		return fmt.Errorf("quantity per level %s is below the quantity increment %s", p.QtyPerLevel, p.QtyIncrement)
	}
	if !p.TakeProfitPct.IsPositive() {
		return fmt.Errorf("take profit percent must be positive, got %s", p.TakeProfitPct)
	}
	if p.BreakBufferPct.IsNegative() {
		return fmt.Errorf("break buffer percent must not be negative, got %s", p.BreakBufferPct)
	}
	if p.MaxOpenBuys <= 0 {
		return fmt.Errorf("max open buys must be positive, got %d", p.MaxOpenBuys)
	}
	switch p.BuyZone {
	case BuyZoneAll, BuyZoneBelowMid, BuyZoneBelowPrice:
	default:
		return fmt.Errorf("unknown buy zone %q", p.BuyZone)
	}
	if p.FillLookback <= 0 {
		return fmt.Errorf("fill lookback must be positive, got %s", p.FillLookback)
	}
	if p.Recenter.Enabled {
		if p.Recenter.BufferPct.IsNegative() {
			return fmt.Errorf("recenter buffer percent must not be negative, got %s", p.Recenter.BufferPct)
		}
		if p.Recenter.Mode != RecenterCenter && p.Recenter.Mode != RecenterEdge {
			return fmt.Errorf("unknown recenter mode %q", p.Recenter.Mode)
		}
		if p.Recenter.Cooldown < 0 {
			return fmt.Errorf("recenter cooldown must not be negative, got %s", p.Recenter.Cooldown)
		}
	}
	return nil
}
