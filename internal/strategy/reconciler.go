package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"grid_go/internal/domain"

	"github.com/shopspring/decimal"
)

// ReconcileResult reports what one reconciliation pass did.
type ReconcileResult struct {
	Placed     int
	Existing   int
	Duplicates int
	Skipped    int
	StopReason domain.StopReason
	Actions    []domain.OrderAction
}

// Reconciler keeps one open grid buy on every desired level.
type Reconciler struct {
	broker      domain.Broker
	params      Params
	newClientID func(price decimal.Decimal) string
}

// NewReconciler creates a reconciler that mints random client ids.
func NewReconciler(broker domain.Broker, params Params) *Reconciler {
	return &Reconciler{
		broker: broker,
		params: params,
		newClientID: func(price decimal.Decimal) string {
			return NewBuyClientID(price, params.PriceTick)
		},
	}
}

// Reconcile places a limit buy for every level without an open grid buy
// within one price tick, cheapest level first. It stops for the round when
// the open-buy cap is reached or the budget cannot cover the next order.
// Only unexpected submission errors are returned.
func (r *Reconciler) Reconcile(ctx context.Context, levels []decimal.Decimal, open []domain.RemoteOrder, budget *domain.Budget) (*ReconcileResult, error) {
	res := &ReconcileResult{}

	sorted := make([]decimal.Decimal, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	resting := openGridBuyPrices(open, r.params.Symbol)
	openCount := len(resting)
	qty := TruncateToIncrement(r.params.QtyPerLevel, r.params.QtyIncrement)

	for i, level := range sorted {
		if hasPriceWithin(resting, level, r.params.PriceTick) {
			res.Existing++
			continue
		}

		if openCount >= r.params.MaxOpenBuys {
			r.stop(res, domain.StopMaxOpenBuys, sorted[i:], resting)
			slog.Info("GRID_MAX_OPEN_BUYS",
				slog.String("symbol", r.params.Symbol),
				slog.Int("open_buys", openCount),
				slog.Int("max_open_buys", r.params.MaxOpenBuys),
				slog.Int("skipped", res.Skipped))
			break
		}

		intent := domain.OrderIntent{
			Symbol: r.params.Symbol,
			Side:   domain.SideBuy,
			Type:   domain.OrderTypeLimit,
			Price:  level,
			Qty:    qty,
		}
		if !budget.TryReserve(intent.Notional()) {
			r.stop(res, domain.StopBudgetExhausted, sorted[i:], resting)
			slog.Info("GRID_BUDGET_EXHAUSTED",
				slog.String("symbol", r.params.Symbol),
				slog.String("level", level.String()),
				slog.String("notional", intent.Notional().String()),
				slog.String("remaining", budget.Remaining().String()),
				slog.Int("skipped", res.Skipped))
			break
		}

		intent.ClientOrderID = r.newClientID(level)
		action := domain.OrderAction{
			Kind:          domain.ActionPlaceBuy,
			Symbol:        intent.Symbol,
			Side:          intent.Side,
			Price:         intent.Price,
			Qty:           intent.Qty,
			ClientOrderID: intent.ClientOrderID,
		}

		orderID, err := r.broker.SubmitLimitOrder(ctx, intent)
		switch {
		case err == nil:
			action.OrderID = orderID
			action.Result = domain.ResultOK
			res.Placed++
			openCount++
			resting = append(resting, level)
			slog.Info("GRID_BUY_PLACED",
				slog.String("symbol", intent.Symbol),
				slog.String("price", level.String()),
				slog.String("qty", qty.String()),
				slog.String("client_order_id", intent.ClientOrderID),
				slog.String("order_id", orderID))

		case errors.Is(err, domain.ErrDuplicateClientOrderID):
			action.Result = domain.ResultDuplicate
			res.Duplicates++
			openCount++
			resting = append(resting, level)
			slog.Warn("GRID_BUY_DUPLICATE_ID",
				slog.String("price", level.String()),
				slog.String("client_order_id", intent.ClientOrderID),
				slog.Any("error", err))

		case errors.Is(err, domain.ErrInsufficientFunds):
			action.Result = domain.ResultRejected
			res.Actions = append(res.Actions, action)
			r.stop(res, domain.StopBudgetExhausted, sorted[i:], resting)
			slog.Info("GRID_BUDGET_EXHAUSTED",
				slog.String("symbol", r.params.Symbol),
				slog.String("level", level.String()),
				slog.String("source", "broker"),
				slog.Int("skipped", res.Skipped),
				slog.Any("error", err))
			return res, nil

		default:
			action.Result = domain.ResultError
			res.Actions = append(res.Actions, action)
			return res, fmt.Errorf("submit grid buy at %s: %w", level, err)
		}
		res.Actions = append(res.Actions, action)
	}

	return res, nil
}

func (r *Reconciler) stop(res *ReconcileResult, reason domain.StopReason, remaining, resting []decimal.Decimal) {
	res.StopReason = reason
	for _, level := range remaining {
		if !hasPriceWithin(resting, level, r.params.PriceTick) {
			res.Skipped++
		}
	}
}

// openGridBuyPrices collects the limit prices of open grid buys on symbol.
func openGridBuyPrices(orders []domain.RemoteOrder, symbol string) []decimal.Decimal {
	var prices []decimal.Decimal
	for i := range orders {
		o := &orders[i]
		if o.Symbol != symbol || o.Side != domain.SideBuy || !o.IsOpen() || !IsGridBuy(o.ClientOrderID) {
			continue
		}
		if !o.Price.IsPositive() {
			slog.Warn("GRID_ORDER_MALFORMED",
				slog.String("order_id", o.ID),
				slog.String("reason", "open grid buy without limit price"))
			continue
		}
		prices = append(prices, o.Price)
	}
	return prices
}

func hasPriceWithin(prices []decimal.Decimal, target, tick decimal.Decimal) bool {
	for _, p := range prices {
		if p.Sub(target).Abs().LessThanOrEqual(tick) {
			return true
		}
	}
	return false
}
