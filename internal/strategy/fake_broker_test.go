package strategy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"grid_go/internal/domain"

	"github.com/shopspring/decimal"
)

// fakeBroker is an in-memory broker. Submitted limit orders rest as open
// until the test changes them.
type fakeBroker struct {
	price      decimal.Decimal
	priceFound bool
	priceErr   error
	cash       decimal.Decimal
	position   decimal.Decimal

	orders []domain.RemoteOrder
	nextID int

	submitErr    func(intent domain.OrderIntent) error
	cancelErr    func(id string) error
	submitted    []domain.OrderIntent
	marketOrders []domain.OrderIntent
	canceled     []string
	listCalls    int
}

func newFakeBroker(price string) *fakeBroker {
	return &fakeBroker{
		price:      decimal.RequireFromString(price),
		priceFound: true,
		cash:       decimal.NewFromInt(1_000_000),
	}
}

func (f *fakeBroker) LastPrice(_ context.Context, _ string) (decimal.Decimal, bool, error) {
	return f.price, f.priceFound, f.priceErr
}

func (f *fakeBroker) SubmitLimitOrder(_ context.Context, intent domain.OrderIntent) (string, error) {
	if f.submitErr != nil {
		if err := f.submitErr(intent); err != nil {
			return "", err
		}
	}
	for _, o := range f.orders {
		if o.ClientOrderID == intent.ClientOrderID {
			return "", fmt.Errorf("client_order_id must be unique: %w", domain.ErrDuplicateClientOrderID)
		}
	}
	f.nextID++
	id := fmt.Sprintf("ord-%d", f.nextID)
	f.submitted = append(f.submitted, intent)
	f.orders = append(f.orders, domain.RemoteOrder{
		ID:            id,
		ClientOrderID: intent.ClientOrderID,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Type:          intent.Type,
		Price:         intent.Price,
		Qty:           intent.Qty,
		Status:        domain.OrderStatusNew,
		CreatedAt:     time.Now(),
	})
	return id, nil
}

func (f *fakeBroker) SubmitMarketOrder(_ context.Context, intent domain.OrderIntent) (string, error) {
	f.marketOrders = append(f.marketOrders, intent)
	f.nextID++
	return fmt.Sprintf("mkt-%d", f.nextID), nil
}

func (f *fakeBroker) CancelOrder(_ context.Context, id string) error {
	if f.cancelErr != nil {
		if err := f.cancelErr(id); err != nil {
			return err
		}
	}
	for i := range f.orders {
		if f.orders[i].ID == id && f.orders[i].IsOpen() {
			f.orders[i].Status = domain.OrderStatusCanceled
			f.canceled = append(f.canceled, id)
			return nil
		}
	}
	return domain.ErrOrderNotFound
}

func (f *fakeBroker) ListOrders(_ context.Context, q domain.OrderQuery) ([]domain.RemoteOrder, error) {
	var out []domain.RemoteOrder
	for _, o := range f.orders {
		if q.Symbol != "" && o.Symbol != q.Symbol {
			continue
		}
		if q.Side != "" && o.Side != q.Side {
			continue
		}
		if !q.After.IsZero() && !o.CreatedAt.After(q.After) {
			continue
		}
		if !q.Until.IsZero() && !o.CreatedAt.Before(q.Until) {
			continue
		}
		switch q.Status {
		case domain.QueryOpen:
			if !o.IsOpen() {
				continue
			}
		case domain.QueryClosed:
			if o.IsOpen() {
				continue
			}
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	f.listCalls++
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeBroker) AccountCash(_ context.Context) (decimal.Decimal, error) {
	return f.cash, nil
}

func (f *fakeBroker) PositionQty(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.position, nil
}

// fill marks the open order with client id cid as filled at price.
func (f *fakeBroker) fill(cid, price string) {
	for i := range f.orders {
		if f.orders[i].ClientOrderID == cid {
			f.orders[i].Status = domain.OrderStatusFilled
			f.orders[i].FilledQty = f.orders[i].Qty
			f.orders[i].FilledAvgPrice = decimal.RequireFromString(price)
			f.orders[i].UpdatedAt = time.Now()
			return
		}
	}
	panic("fill: unknown client order id " + cid)
}

func (f *fakeBroker) openCount(prefix string) int {
	n := 0
	for _, o := range f.orders {
		if o.IsOpen() && strings.HasPrefix(o.ClientOrderID, prefix) {
			n++
		}
	}
	return n
}

func testParams() Params {
	d := decimal.RequireFromString
	return Params{
		Symbol:         "ETH/USD",
		Base:           domain.Range{Low: d("4000"), High: d("4400"), Levels: 10},
		PriceTick:      d("0.01"),
		QtyIncrement:   d("0.000001"),
		QtyPerLevel:    d("0.01"),
		TakeProfitPct:  d("0.5"),
		BreakBufferPct: d("1"),
		MaxOpenBuys:    50,
		BuyZone:        BuyZoneAll,
		FillLookback:   24 * time.Hour,
		Recenter: RecenterParams{
			Enabled:   false,
			BufferPct: d("10"),
			Mode:      RecenterCenter,
			Cooldown:  10 * time.Minute,
		},
	}
}
