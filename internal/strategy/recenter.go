package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"grid_go/internal/domain"

	"github.com/shopspring/decimal"
)

// RecenterDecision is the outcome of the recenter gate for one round.
type RecenterDecision int

const (
	RecenterNotNeeded RecenterDecision = iota
	RecenterCooldown                   // Price drifted but the cooldown has not elapsed
	RecenterDue
)

// String returns the string representation of RecenterDecision
func (d RecenterDecision) String() string {
	switch d {
	case RecenterNotNeeded:
		return "NOT_NEEDED"
	case RecenterCooldown:
		return "COOLDOWN"
	case RecenterDue:
		return "DUE"
	default:
		return "UNKNOWN"
	}
}

// Recenterer moves the active range when price drifts too far from it.
type Recenterer struct {
	broker domain.Broker
	params Params
}

// NewRecenterer creates a recenterer.
func NewRecenterer(broker domain.Broker, params Params) *Recenterer {
	return &Recenterer{broker: broker, params: params}
}

// Evaluate applies the two-condition gate: price beyond the width-relative
// buffer, and the cooldown elapsed since the last recenter (if any).
func (rc *Recenterer) Evaluate(price decimal.Decimal, st State, now time.Time) RecenterDecision {
	if !rc.params.Recenter.Enabled {
		return RecenterNotNeeded
	}

	buf := st.Active.Width().Mul(rc.params.Recenter.BufferPct).Div(hundred)
	if !price.LessThan(st.Active.Low.Sub(buf)) && !price.GreaterThan(st.Active.High.Add(buf)) {
		return RecenterNotNeeded
	}

	if st.Recentered() && now.Sub(st.LastRecenter) < rc.params.Recenter.Cooldown {
		return RecenterCooldown
	}
	return RecenterDue
}

// NewRange computes the range that replaces active for price.
func (rc *Recenterer) NewRange(price decimal.Decimal, active domain.Range) domain.Range {
	width := active.Width()

	var (
		low, high decimal.Decimal
		up        bool
	)
	switch rc.params.Recenter.Mode {
	case RecenterEdge:
		if price.LessThan(active.Low) {
			low, high = price, price.Add(width)
		} else {
			low, high = price.Sub(width), price
			up = true
		}
	default:
		half := width.Div(decimal.NewFromInt(2))
		low, high = price.Sub(half), price.Add(half)
	}

	// The whole range moves with the snapped low so the width, and with it
	// the level spacing, stays the same.
	snapped := snapToGrid(low, rc.params.Base, up)
	shifted := high.Add(snapped.Sub(low))
	if snapped.IsPositive() && !price.LessThan(snapped) && !price.GreaterThan(shifted) {
		low, high = snapped, shifted
	}
	return active.WithBounds(low, high)
}

// snapToGrid moves low onto the step grid anchored at the configured low,
// downwards unless up is set.
func snapToGrid(low decimal.Decimal, base domain.Range, up bool) decimal.Decimal {
	step := base.Spacing()
	if !step.IsPositive() {
		return low
	}
	k := low.Sub(base.Low).Div(step)
	if up {
		k = k.Ceil()
	} else {
		k = k.Floor()
	}
	return base.Low.Add(k.Mul(step))
}

// RecenterResult reports what a recenter did.
type RecenterResult struct {
	Applied  bool
	Canceled int
	Actions  []domain.OrderAction
}

// Recenter cancels the grid buys and returns the state with the new range.
// Take-profits keep resting since their client ids cannot be reused.
// On failure, or when the new range would be degenerate, the input state is
// returned unchanged.
func (rc *Recenterer) Recenter(ctx context.Context, price decimal.Decimal, st State, now time.Time) (State, *RecenterResult, error) {
	res := &RecenterResult{}

	next := rc.NewRange(price, st.Active)
	if err := next.Validate(); err != nil {
		slog.Warn("GRID_RECENTER_REJECTED",
			slog.String("price", price.String()),
			slog.String("range", next.String()),
			slog.Any("error", err))
		return st, res, nil
	}

	canceled, actions, err := CancelGridBuys(ctx, rc.broker, rc.params.Symbol)
	res.Canceled = canceled
	res.Actions = actions
	if err != nil {
		return st, res, fmt.Errorf("recenter cancel: %w", err)
	}

	slog.Info("GRID_RECENTERED",
		slog.String("symbol", rc.params.Symbol),
		slog.String("price", price.String()),
		slog.String("mode", string(rc.params.Recenter.Mode)),
		slog.String("from", st.Active.String()),
		slog.String("to", next.String()),
		slog.Int("canceled", canceled))

	res.Applied = true
	return State{Active: next, LastRecenter: now}, res, nil
}
