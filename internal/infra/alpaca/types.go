package alpaca

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"grid_go/internal/domain"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// flexDecimal accepts a JSON string, a JSON number or null.
// Alpaca sends quantities as strings and market data prices as numbers.
type flexDecimal struct {
	decimal.Decimal
	Valid bool
}

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = flexDecimal{}
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return errors.Wrap(err, "flexDecimal")
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*f = flexDecimal{}
			return nil
		}
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return errors.Wrapf(err, "flexDecimal %q", raw)
	}
	*f = flexDecimal{Decimal: d, Valid: true}
	return nil
}

// orZero returns the value or zero when null.
func (f flexDecimal) orZero() decimal.Decimal {
	if !f.Valid {
		return decimal.Zero
	}
	return f.Decimal
}

// orderRequest is the POST /v2/orders body.
type orderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"` // buy, sell
	Type          string `json:"type"` // limit, market
	TimeInForce   string `json:"time_in_force"`
	LimitPrice    string `json:"limit_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// orderResponse is an order as returned by the trading API.
type orderResponse struct {
	ID             string      `json:"id"`
	ClientOrderID  string      `json:"client_order_id"`
	Symbol         string      `json:"symbol"`
	Side           string      `json:"side"`
	Type           string      `json:"type"`
	OrderType      string      `json:"order_type"`
	Status         string      `json:"status"`
	Qty            flexDecimal `json:"qty"`
	LimitPrice     flexDecimal `json:"limit_price"`
	FilledQty      flexDecimal `json:"filled_qty"`
	FilledAvgPrice flexDecimal `json:"filled_avg_price"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// toDomain normalizes the order. Orders without an id or side are rejected.
func (o *orderResponse) toDomain() (domain.RemoteOrder, error) {
	if o.ID == "" {
		return domain.RemoteOrder{}, errors.New("order without id")
	}

	var side domain.Side
	switch strings.ToLower(o.Side) {
	case "buy":
		side = domain.SideBuy
	case "sell":
		side = domain.SideSell
	default:
		return domain.RemoteOrder{}, errors.Errorf("order %s: unknown side %q", o.ID, o.Side)
	}

	typ := o.Type
	if typ == "" {
		typ = o.OrderType
	}
	orderType := domain.OrderTypeLimit
	if strings.EqualFold(typ, "market") {
		orderType = domain.OrderTypeMarket
	}

	return domain.RemoteOrder{
		ID:             o.ID,
		ClientOrderID:  o.ClientOrderID,
		Symbol:         o.Symbol,
		Side:           side,
		Type:           orderType,
		Price:          o.LimitPrice.orZero(),
		Qty:            o.Qty.orZero(),
		FilledQty:      o.FilledQty.orZero(),
		FilledAvgPrice: o.FilledAvgPrice.orZero(),
		Status:         mapStatus(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}, nil
}

// mapStatus folds Alpaca's order statuses into the domain lifecycle.
func mapStatus(s string) domain.OrderStatus {
	switch strings.ToLower(s) {
	case "new", "accepted", "pending_new", "accepted_for_bidding", "pending_replace", "replaced":
		return domain.OrderStatusNew
	case "partially_filled":
		return domain.OrderStatusPartiallyFilled
	case "filled":
		return domain.OrderStatusFilled
	case "pending_cancel":
		return domain.OrderStatusPendingCancel
	case "canceled":
		return domain.OrderStatusCanceled
	case "expired", "done_for_day":
		return domain.OrderStatusExpired
	case "rejected", "suspended", "stopped":
		return domain.OrderStatusRejected
	default:
		return domain.OrderStatusUnknown
	}
}

// apiError is the error body of the trading API.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// accountResponse is the subset of GET /v2/account the grid needs.
type accountResponse struct {
	Status                   string      `json:"status"`
	Cash                     flexDecimal `json:"cash"`
	NonMarginableBuyingPower flexDecimal `json:"non_marginable_buying_power"`
}

// positionResponse is the subset of GET /v2/positions/{symbol} the grid needs.
type positionResponse struct {
	Symbol string      `json:"symbol"`
	Qty    flexDecimal `json:"qty"`
}

// latestBarsResponse is GET /v1beta3/crypto/us/latest/bars.
type latestBarsResponse struct {
	Bars map[string]struct {
		Close     flexDecimal `json:"c"`
		Timestamp time.Time   `json:"t"`
	} `json:"bars"`
}

// streamMessage is one element of a market data stream frame.
//
//	{"T":"success","msg":"authenticated"}
//	{"T":"t","S":"ETH/USD","p":4210.5,"s":0.12,"t":"2025-01-02T03:04:05.123Z"}
type streamMessage struct {
	Type      string      `json:"T"`
	Symbol    string      `json:"S"`
	Price     flexDecimal `json:"p"`
	Size      flexDecimal `json:"s"`
	Timestamp time.Time   `json:"t"`
	Msg       string      `json:"msg"`
	Code      int         `json:"code"`
}

// decodeFrame parses a stream frame. Alpaca always sends arrays.
func decodeFrame(data []byte) ([]streamMessage, error) {
	var msgs []streamMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, errors.Wrap(err, "decode stream frame")
	}
	return msgs, nil
}
