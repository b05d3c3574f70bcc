package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"grid_go/internal/domain"
)

// CancelGridOrders cancels every open grid-tagged order on symbol.
// Orders already gone count as cancelled. Other failures do not stop the
// sweep; they are joined into the returned error.
func CancelGridOrders(ctx context.Context, broker domain.Broker, symbol string) (int, []domain.OrderAction, error) {
	return cancelMatching(ctx, broker, symbol, IsGridOrder)
}

// CancelGridBuys cancels open grid buys on symbol and leaves take-profits
// resting.
func CancelGridBuys(ctx context.Context, broker domain.Broker, symbol string) (int, []domain.OrderAction, error) {
	return cancelMatching(ctx, broker, symbol, IsGridBuy)
}

func cancelMatching(ctx context.Context, broker domain.Broker, symbol string, match func(clientID string) bool) (int, []domain.OrderAction, error) {
	open, err := broker.ListOrders(ctx, domain.OrderQuery{Symbol: symbol, Status: domain.QueryOpen})
	if err != nil {
		return 0, nil, fmt.Errorf("list open orders: %w", err)
	}

	var (
		canceled int
		actions  []domain.OrderAction
		errs     []error
	)
	for i := range open {
		o := &open[i]
		if !o.IsOpen() || !match(o.ClientOrderID) {
			continue
		}

		action := domain.OrderAction{
			Kind:          domain.ActionCancel,
			Symbol:        symbol,
			Side:          o.Side,
			Price:         o.Price,
			Qty:           o.Qty,
			ClientOrderID: o.ClientOrderID,
			OrderID:       o.ID,
		}

		err := broker.CancelOrder(ctx, o.ID)
		switch {
		case err == nil:
			action.Result = domain.ResultOK
			canceled++
		case errors.Is(err, domain.ErrOrderNotFound):
			action.Result = domain.ResultNotFound
			canceled++
			slog.Info("GRID_CANCEL_ALREADY_GONE", slog.String("order_id", o.ID))
		default:
			action.Result = domain.ResultError
			errs = append(errs, fmt.Errorf("cancel %s: %w", o.ID, err))
			slog.Warn("GRID_CANCEL_FAILED",
				slog.String("order_id", o.ID),
				slog.String("client_order_id", o.ClientOrderID),
				slog.Any("error", err))
		}
		actions = append(actions, action)
	}

	return canceled, actions, errors.Join(errs...)
}
