package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"grid_go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// closedOrderLimit is the page size used when scanning recent fills.
	closedOrderLimit = 500
	// maxScanPages bounds one fill scan.
	maxScanPages = 40
)

var hundred = decimal.NewFromInt(100)

// LinkResult reports what one fill-linking pass did.
type LinkResult struct {
	Fills      int // Grid buy fills inside the lookback window
	Linked     int // Fills that already had a take-profit
	Created    int
	Duplicates int
	Malformed  int
	Rejected   int
	Actions    []domain.OrderAction
}

// FillLinker places exactly one take-profit sell for every filled grid buy.
type FillLinker struct {
	broker domain.Broker
	params Params
}

// NewFillLinker creates a fill linker.
func NewFillLinker(broker domain.Broker, params Params) *FillLinker {
	return &FillLinker{broker: broker, params: params}
}

// TakeProfitPrice returns fill × (1 + pct/100) truncated to tick.
func TakeProfitPrice(fill, pct, tick decimal.Decimal) decimal.Decimal {
	return TruncateToIncrement(fill.Mul(decimal.NewFromInt(1).Add(pct.Div(hundred))), tick)
}

// Link scans grid buys closed since now minus the lookback and submits a
// take-profit for each fill that has none. A fill counts as linked when a
// take-profit with the derived client id is open or has already filled.
func (l *FillLinker) Link(ctx context.Context, now time.Time) (*LinkResult, error) {
	closed, err := l.closedOrders(ctx, now.Add(-l.params.FillLookback))
	if err != nil {
		return nil, err
	}

	openSells, err := l.broker.ListOrders(ctx, domain.OrderQuery{
		Symbol: l.params.Symbol,
		Status: domain.QueryOpen,
		Side:   domain.SideSell,
	})
	if err != nil {
		return nil, fmt.Errorf("list open sells: %w", err)
	}

	linked := linkedTakeProfits(openSells, closed)
	res := &LinkResult{}
	seen := make(map[string]bool)

	for i := range closed {
		o := &closed[i]
		if o.Side != domain.SideBuy || !IsGridBuy(o.ClientOrderID) {
			continue
		}
		if o.Status != domain.OrderStatusFilled && o.Status != domain.OrderStatusPartiallyFilled {
			continue
		}
		if seen[o.ClientOrderID] {
			continue
		}
		seen[o.ClientOrderID] = true

		if !o.HasFill() {
			res.Malformed++
			slog.Warn("GRID_FILL_MALFORMED",
				slog.String("order_id", o.ID),
				slog.String("client_order_id", o.ClientOrderID),
				slog.String("filled_qty", o.FilledQty.String()),
				slog.String("filled_avg_price", o.FilledAvgPrice.String()))
			continue
		}
		res.Fills++

		tpID := TakeProfitClientID(o.ClientOrderID)
		if linked[tpID] {
			res.Linked++
			continue
		}

		qty := TruncateToIncrement(o.FilledQty, l.params.QtyIncrement)
		if !qty.IsPositive() {
			res.Malformed++
			slog.Warn("GRID_FILL_MALFORMED",
				slog.String("client_order_id", o.ClientOrderID),
				slog.String("reason", "filled quantity below increment"),
				slog.String("filled_qty", o.FilledQty.String()))
			continue
		}

		intent := domain.OrderIntent{
			Symbol:        l.params.Symbol,
			Side:          domain.SideSell,
			Type:          domain.OrderTypeLimit,
			Price:         TakeProfitPrice(o.FilledAvgPrice, l.params.TakeProfitPct, l.params.PriceTick),
			Qty:           qty,
			ClientOrderID: tpID,
		}
		action := domain.OrderAction{
			Kind:          domain.ActionPlaceTakeProfit,
			Symbol:        intent.Symbol,
			Side:          intent.Side,
			Price:         intent.Price,
			Qty:           intent.Qty,
			ClientOrderID: tpID,
		}

		orderID, err := l.broker.SubmitLimitOrder(ctx, intent)
		switch {
		case err == nil:
			action.OrderID = orderID
			action.Result = domain.ResultOK
			res.Created++
			linked[tpID] = true
			slog.Info("GRID_TP_PLACED",
				slog.String("symbol", intent.Symbol),
				slog.String("fill_price", o.FilledAvgPrice.String()),
				slog.String("tp_price", intent.Price.String()),
				slog.String("qty", qty.String()),
				slog.String("client_order_id", tpID),
				slog.String("order_id", orderID))

		case errors.Is(err, domain.ErrDuplicateClientOrderID):
			action.Result = domain.ResultDuplicate
			res.Duplicates++
			linked[tpID] = true
			slog.Warn("GRID_TP_DUPLICATE_ID",
				slog.String("client_order_id", tpID),
				slog.Any("error", err))

		case errors.Is(err, domain.ErrInsufficientFunds):
			action.Result = domain.ResultRejected
			res.Rejected++
			slog.Warn("GRID_TP_REJECTED",
				slog.String("client_order_id", tpID),
				slog.String("reason", "insufficient position"),
				slog.Any("error", err))

		default:
			action.Result = domain.ResultError
			res.Actions = append(res.Actions, action)
			return res, fmt.Errorf("submit take profit %s: %w", tpID, err)
		}
		res.Actions = append(res.Actions, action)
	}

	return res, nil
}

// closedOrders pages through closed orders submitted after the given time,
// newest first. Each page ends just past the oldest order of the previous
// one; the overlap is dropped by order id.
func (l *FillLinker) closedOrders(ctx context.Context, after time.Time) ([]domain.RemoteOrder, error) {
	var (
		out   []domain.RemoteOrder
		until time.Time
	)
	seen := make(map[string]bool)

	for page := 1; ; page++ {
		batch, err := l.broker.ListOrders(ctx, domain.OrderQuery{
			Symbol: l.params.Symbol,
			Status: domain.QueryClosed,
			After:  after,
			Until:  until,
			Limit:  closedOrderLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("list closed orders page %d: %w", page, err)
		}

		added := 0
		var oldest time.Time
		for i := range batch {
			o := &batch[i]
			if oldest.IsZero() || o.CreatedAt.Before(oldest) {
				oldest = o.CreatedAt
			}
			if seen[o.ID] {
				continue
			}
			seen[o.ID] = true
			out = append(out, *o)
			added++
		}

		if len(batch) < closedOrderLimit || oldest.IsZero() || !oldest.After(after) {
			return out, nil
		}
		if added == 0 {
			// A full page sharing one timestamp cannot be split further.
			slog.Warn("GRID_FILL_SCAN_STALLED",
				slog.Int("page", page),
				slog.Int("orders", len(out)),
				slog.Time("until", until))
			return out, nil
		}
		if page >= maxScanPages {
			slog.Warn("GRID_FILL_SCAN_TRUNCATED",
				slog.Int("pages", page),
				slog.Int("orders", len(out)),
				slog.Time("oldest", oldest))
			return out, nil
		}

		slog.Info("GRID_FILL_SCAN_PAGE",
			slog.Int("page", page),
			slog.Int("orders", len(out)),
			slog.Time("oldest", oldest))
		until = oldest.Add(time.Nanosecond)
	}
}

// linkedTakeProfits returns the take-profit ids that are open or already filled.
func linkedTakeProfits(openSells, closed []domain.RemoteOrder) map[string]bool {
	linked := make(map[string]bool)
	for i := range openSells {
		o := &openSells[i]
		if o.IsOpen() && IsTakeProfit(o.ClientOrderID) {
			linked[o.ClientOrderID] = true
		}
	}
	for i := range closed {
		o := &closed[i]
		if o.Side == domain.SideSell && IsTakeProfit(o.ClientOrderID) && o.FilledQty.IsPositive() {
			linked[o.ClientOrderID] = true
		}
	}
	return linked
}
