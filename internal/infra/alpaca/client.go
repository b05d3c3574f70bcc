package alpaca

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grid_go/internal/domain"
	"grid_go/internal/infra"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	maxListLimit = 500

	headerKeyID  = "APCA-API-KEY-ID"
	headerSecret = "APCA-API-SECRET-KEY"

	duplicateClientIDMsg = "client_order_id must be unique"
	insufficientCode     = 40310000
)

// Client is the Alpaca trading and market data REST client.
// It implements domain.Broker.
type Client struct {
	trading *resty.Client
	data    *resty.Client
	logger  *slog.Logger
}

var _ domain.Broker = (*Client)(nil)

// NewClient creates a new Alpaca API client.
func NewClient(cfg *infra.Config) *Client {
	a := cfg.Broker.Alpaca
	return &Client{
		trading: newRestClient(a.BaseURL, a.KeyID, a.SecretKey, cfg.RequestTimeout()),
		data:    newRestClient(a.DataURL, a.KeyID, a.SecretKey, cfg.RequestTimeout()),
		logger:  slog.Default().With("module", "alpaca_client"),
	}
}

func newRestClient(host, keyID, secret string, timeout time.Duration) *resty.Client {
	host = strings.TrimSuffix(host, "/")

	// No client-side retries; the next round reconciles.
	return resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader(headerKeyID, keyID).
		SetHeader(headerSecret, secret)
}

// SubmitLimitOrder places a GTC limit order.
func (c *Client) SubmitLimitOrder(ctx context.Context, intent domain.OrderIntent) (string, error) {
	return c.submit(ctx, orderRequest{
		Symbol:        intent.Symbol,
		Qty:           intent.Qty.String(),
		Side:          sideParam(intent.Side),
		Type:          "limit",
		TimeInForce:   "gtc",
		LimitPrice:    intent.Price.String(),
		ClientOrderID: intent.ClientOrderID,
	})
}

// SubmitMarketOrder places a GTC market order.
func (c *Client) SubmitMarketOrder(ctx context.Context, intent domain.OrderIntent) (string, error) {
	return c.submit(ctx, orderRequest{
		Symbol:        intent.Symbol,
		Qty:           intent.Qty.String(),
		Side:          sideParam(intent.Side),
		Type:          "market",
		TimeInForce:   "gtc",
		ClientOrderID: intent.ClientOrderID,
	})
}

func (c *Client) submit(ctx context.Context, req orderRequest) (string, error) {
	resp, err := c.trading.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/v2/orders")
	if err := checkResponse("submit_order", resp, err); err != nil {
		return "", err
	}

	var order orderResponse
	if err := json.Unmarshal(resp.Body(), &order); err != nil {
		return "", domain.NewFatalNetworkError("submit_order", errors.Wrap(err, "decode order"))
	}

	c.logger.Debug("ORDER_SUBMITTED",
		slog.String("id", order.ID),
		slog.String("client_order_id", req.ClientOrderID),
		slog.String("type", req.Type),
	)
	return order.ID, nil
}

// CancelOrder cancels an order by broker id.
// Orders that are gone or no longer cancelable report domain.ErrOrderNotFound.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	resp, err := c.trading.R().
		SetContext(ctx).
		SetPathParam("id", orderID).
		Delete("/v2/orders/{id}")
	if err == nil && (resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusUnprocessableEntity) {
		return errors.Wrapf(domain.ErrOrderNotFound, "cancel %s: %s", orderID, errorMessage(resp.Body()).Message)
	}
	return checkResponse("cancel_order", resp, err)
}

// ListOrders returns orders matching q, newest first.
// Orders that cannot be normalized are skipped and logged.
func (c *Client) ListOrders(ctx context.Context, q domain.OrderQuery) ([]domain.RemoteOrder, error) {
	params := map[string]string{
		"status":    string(q.Status),
		"direction": "desc",
		"nested":    "false",
	}
	if q.Status == "" {
		params["status"] = string(domain.QueryOpen)
	}
	if q.Symbol != "" {
		params["symbols"] = q.Symbol
	}
	if q.Side != "" {
		params["side"] = sideParam(q.Side)
	}
	if !q.After.IsZero() {
		params["after"] = q.After.UTC().Format(time.RFC3339)
	}
	if !q.Until.IsZero() {
		params["until"] = q.Until.UTC().Format(time.RFC3339Nano)
	}
	limit := q.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	params["limit"] = strconv.Itoa(limit)

	resp, err := c.trading.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/v2/orders")
	if err := checkResponse("list_orders", resp, err); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, domain.NewFatalNetworkError("list_orders", errors.Wrap(err, "decode orders"))
	}

	orders := make([]domain.RemoteOrder, 0, len(raw))
	for _, item := range raw {
		var o orderResponse
		if err := json.Unmarshal(item, &o); err != nil {
			c.logger.Warn("ORDER_MALFORMED", slog.Any("error", err))
			continue
		}
		order, err := o.toDomain()
		if err != nil {
			c.logger.Warn("ORDER_MALFORMED", slog.String("id", o.ID), slog.Any("error", err))
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// AccountCash returns the cash available for new crypto buys.
func (c *Client) AccountCash(ctx context.Context) (decimal.Decimal, error) {
	resp, err := c.trading.R().SetContext(ctx).Get("/v2/account")
	if err := checkResponse("get_account", resp, err); err != nil {
		return decimal.Zero, err
	}

	var acct accountResponse
	if err := json.Unmarshal(resp.Body(), &acct); err != nil {
		return decimal.Zero, domain.NewFatalNetworkError("get_account", errors.Wrap(err, "decode account"))
	}
	if acct.NonMarginableBuyingPower.Valid {
		return acct.NonMarginableBuyingPower.Decimal, nil
	}
	return acct.Cash.orZero(), nil
}

// PositionQty returns the held quantity of symbol, zero if there is no position.
func (c *Client) PositionQty(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := c.trading.R().
		SetContext(ctx).
		SetPathParam("symbol", positionSymbol(symbol)).
		Get("/v2/positions/{symbol}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return decimal.Zero, nil
	}
	if err := checkResponse("get_position", resp, err); err != nil {
		return decimal.Zero, err
	}

	var pos positionResponse
	if err := json.Unmarshal(resp.Body(), &pos); err != nil {
		return decimal.Zero, domain.NewFatalNetworkError("get_position", errors.Wrap(err, "decode position"))
	}
	return pos.Qty.orZero(), nil
}

// LastPrice returns the close of the latest one-minute bar.
// A symbol without bars is reported as not found.
func (c *Client) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	resp, err := c.data.R().
		SetContext(ctx).
		SetQueryParam("symbols", symbol).
		Get("/v1beta3/crypto/us/latest/bars")
	if err := checkResponse("latest_bars", resp, err); err != nil {
		return decimal.Zero, false, err
	}

	var bars latestBarsResponse
	if err := json.Unmarshal(resp.Body(), &bars); err != nil {
		return decimal.Zero, false, domain.NewFatalNetworkError("latest_bars", errors.Wrap(err, "decode bars"))
	}
	bar, ok := bars.Bars[symbol]
	if !ok || !bar.Close.Valid || !bar.Close.IsPositive() {
		return decimal.Zero, false, nil
	}
	return bar.Close.Decimal, true, nil
}

// checkResponse maps transport failures and HTTP statuses to domain errors.
func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return domain.NewNetworkError(op, errors.Wrap(domain.ErrRemoteUnavailable, err.Error()))
	}
	if resp.IsSuccess() {
		return nil
	}

	status := resp.StatusCode()
	apiErr := errorMessage(resp.Body())

	switch {
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return domain.NewNetworkError(op, errors.Wrapf(domain.ErrRemoteUnavailable, "status %d: %s", status, apiErr.Message))
	case strings.Contains(apiErr.Message, duplicateClientIDMsg):
		return errors.Wrap(domain.ErrDuplicateClientOrderID, apiErr.Message)
	case status == http.StatusForbidden && (apiErr.Code == insufficientCode || strings.Contains(strings.ToLower(apiErr.Message), "insufficient")):
		return errors.Wrap(domain.ErrInsufficientFunds, apiErr.Message)
	case status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(apiErr.Message), "asset") &&
		strings.Contains(strings.ToLower(apiErr.Message), "not found"):
		return errors.Wrap(domain.ErrInvalidSymbol, apiErr.Message)
	default:
		return domain.NewFatalNetworkError(op, errors.Errorf("status %d: %s", status, apiErr.Message))
	}
}

// errorMessage decodes an API error body, falling back to the raw text.
func errorMessage(body []byte) apiError {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

func sideParam(s domain.Side) string {
	if s == domain.SideSell {
		return "sell"
	}
	return "buy"
}

// positionSymbol converts "ETH/USD" to the "ETHUSD" form the positions endpoint expects.
func positionSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}
