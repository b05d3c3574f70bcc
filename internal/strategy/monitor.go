package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"grid_go/internal/domain"

	"github.com/shopspring/decimal"
)

// BreakResult reports what handling a range break did.
type BreakResult struct {
	Canceled   int
	Liquidated decimal.Decimal
	Actions    []domain.OrderAction
}

// RangeMonitor detects price excursions beyond the range plus buffer.
// It keeps no memory between rounds.
type RangeMonitor struct {
	broker domain.Broker
	params Params
}

// NewRangeMonitor creates a range monitor.
func NewRangeMonitor(broker domain.Broker, params Params) *RangeMonitor {
	return &RangeMonitor{broker: broker, params: params}
}

// BreakThresholds returns the prices beyond which the range counts as broken.
func BreakThresholds(r domain.Range, bufferPct decimal.Decimal) (lower, upper decimal.Decimal) {
	buf := bufferPct.Div(hundred)
	one := decimal.NewFromInt(1)
	return r.Low.Mul(one.Sub(buf)), r.High.Mul(one.Add(buf))
}

// IsBreak reports whether price is strictly outside the buffered range.
func IsBreak(price decimal.Decimal, r domain.Range, bufferPct decimal.Decimal) bool {
	lower, upper := BreakThresholds(r, bufferPct)
	return price.LessThan(lower) || price.GreaterThan(upper)
}

// IsBreak checks price against the active range.
func (m *RangeMonitor) IsBreak(price decimal.Decimal, active domain.Range) bool {
	return IsBreak(price, active, m.params.BreakBufferPct)
}

// HandleBreak cancels all grid orders and, when enabled, sells the whole
// position at market.
func (m *RangeMonitor) HandleBreak(ctx context.Context, position decimal.Decimal) (*BreakResult, error) {
	res := &BreakResult{}

	canceled, actions, cancelErr := CancelGridOrders(ctx, m.broker, m.params.Symbol)
	res.Canceled = canceled
	res.Actions = append(res.Actions, actions...)

	if !m.params.LiquidateOnBreak {
		return res, cancelErr
	}

	qty := TruncateToIncrement(position, m.params.QtyIncrement)
	if !qty.IsPositive() {
		slog.Info("GRID_LIQUIDATE_SKIPPED",
			slog.String("symbol", m.params.Symbol),
			slog.String("reason", "no position"),
			slog.String("position", position.String()))
		return res, cancelErr
	}

	intent := domain.OrderIntent{
		Symbol:        m.params.Symbol,
		Side:          domain.SideSell,
		Type:          domain.OrderTypeMarket,
		Qty:           qty,
		ClientOrderID: NewLiquidateClientID(),
	}
	action := domain.OrderAction{
		Kind:          domain.ActionLiquidate,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Qty:           qty,
		ClientOrderID: intent.ClientOrderID,
	}

	orderID, err := m.broker.SubmitMarketOrder(ctx, intent)
	if err != nil {
		action.Result = domain.ResultError
		res.Actions = append(res.Actions, action)
		return res, errors.Join(cancelErr, fmt.Errorf("liquidate %s %s: %w", qty, m.params.Symbol, err))
	}

	action.OrderID = orderID
	action.Result = domain.ResultOK
	res.Actions = append(res.Actions, action)
	res.Liquidated = qty
	slog.Info("GRID_LIQUIDATED",
		slog.String("symbol", m.params.Symbol),
		slog.String("qty", qty.String()),
		slog.String("order_id", orderID))

	return res, cancelErr
}
