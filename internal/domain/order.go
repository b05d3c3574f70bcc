package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

// OrderType is the execution type of an order.
type OrderType string

// OrderStatus is the broker-reported lifecycle status of an order.
type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"

	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusUnknown         OrderStatus = "UNKNOWN"
)

// RemoteOrder is the normalized view of an order owned by the broker.
// This process only observes it and may request its cancellation.
type RemoteOrder struct {
	ID             string
	ClientOrderID  string
	Symbol         string
	Side           Side
	Type           OrderType
	Price          decimal.Decimal // Limit price. Zero for market orders.
	Qty            decimal.Decimal
	FilledQty      decimal.Decimal
	FilledAvgPrice decimal.Decimal
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsOpen checks if the order is still resting on the book.
// An order with a pending cancel is treated as gone.
func (o *RemoteOrder) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// HasFill reports whether any quantity executed at a known price.
func (o *RemoteOrder) HasFill() bool {
	return o.FilledQty.IsPositive() && o.FilledAvgPrice.IsPositive()
}

// OrderIntent is an order this process is about to submit.
type OrderIntent struct {
	Symbol        string
	Side          Side
	Type          OrderType
	Price         decimal.Decimal // Ignored for market orders.
	Qty           decimal.Decimal
	ClientOrderID string
}

// Notional returns price × quantity.
func (i OrderIntent) Notional() decimal.Decimal {
	return i.Price.Mul(i.Qty)
}

// OrderQuery filters ListOrders.
type OrderQuery struct {
	Symbol string
	Status QueryStatus
	Side   Side      // Empty for both sides.
	After  time.Time // Zero for no lower bound.
	Until  time.Time // Zero for no upper bound.
	Limit  int
}

// QueryStatus selects open or closed orders.
type QueryStatus string

const (
	QueryOpen   QueryStatus = "open"
	QueryClosed QueryStatus = "closed"
	QueryAll    QueryStatus = "all"
)
