package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource provides the last traded price of a symbol.
// found is false when no price is currently available; that is not an error.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (price decimal.Decimal, found bool, err error)
}

// Broker is the order-management surface the grid needs.
// It abstracts away the difference between the paper engine and a real brokerage.
type Broker interface {
	PriceSource

	// SubmitLimitOrder places a limit order and returns the broker order id.
	SubmitLimitOrder(ctx context.Context, intent OrderIntent) (string, error)

	// SubmitMarketOrder places a market order and returns the broker order id.
	SubmitMarketOrder(ctx context.Context, intent OrderIntent) (string, error)

	// CancelOrder cancels an order by broker id. ErrOrderNotFound if it is gone.
	CancelOrder(ctx context.Context, orderID string) error

	// ListOrders returns orders matching the query, newest first.
	ListOrders(ctx context.Context, q OrderQuery) ([]RemoteOrder, error)

	// AccountCash returns the cash available for new buys.
	AccountCash(ctx context.Context) (decimal.Decimal, error)

	// PositionQty returns the held quantity of symbol, zero if there is no position.
	PositionQty(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Journal records what happened in each round. It is never read back for decisions.
type Journal interface {
	SaveRound(rec *RoundRecord) error
	SaveOrderActions(actions []OrderAction) error
}
