package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"grid_go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fill is one simulated execution.
type Fill struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          domain.Side
	Price         decimal.Decimal
	Qty           decimal.Decimal
	Fee           decimal.Decimal
	Time          time.Time
}

// PaperExecution is an in-memory broker for dry runs.
// Resting limit orders fill at their limit price once the fed price crosses
// them. Cash and position are reserved while orders rest, so rejections
// (duplicate ids, insufficient funds) mirror the real broker.
type PaperExecution struct {
	mu sync.Mutex

	cash         decimal.Decimal
	reservedCash decimal.Decimal
	positions    map[string]decimal.Decimal
	reservedQty  map[string]decimal.Decimal
	prices       map[string]decimal.Decimal

	orders  []*domain.RemoteOrder
	byID    map[string]*domain.RemoteOrder
	usedIDs map[string]bool // Client ids are unique forever, like at the broker

	fills   []Fill
	feeRate decimal.Decimal
	feed    domain.PriceSource
	now     func() time.Time
}

// NewPaperExecution creates a paper broker with a proportional fee rate
// (e.g. 0.0025 for 25 bps).
func NewPaperExecution(feeRate decimal.Decimal) *PaperExecution {
	return &PaperExecution{
		positions:   make(map[string]decimal.Decimal),
		reservedQty: make(map[string]decimal.Decimal),
		prices:      make(map[string]decimal.Decimal),
		byID:        make(map[string]*domain.RemoteOrder),
		usedIDs:     make(map[string]bool),
		feeRate:     feeRate,
		now:         time.Now,
	}
}

// SetPriceFeed makes LastPrice pull from feed and match resting orders.
func (p *PaperExecution) SetPriceFeed(feed domain.PriceSource) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feed = feed
}

// Deposit adds cash.
func (p *PaperExecution) Deposit(amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash = p.cash.Add(amount)
}

// DepositPosition adds base-asset quantity for symbol.
func (p *PaperExecution) DepositPosition(symbol string, qty decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions[symbol] = p.positions[symbol].Add(qty)
}

// UpdatePrice records the last price and fills every resting order it crosses.
func (p *PaperExecution) UpdatePrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
	p.matchLocked(symbol, price)
}

// LastPrice implements domain.PriceSource.
func (p *PaperExecution) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, bool, error) {
	p.mu.Lock()
	feed := p.feed
	p.mu.Unlock()

	if feed != nil {
		price, found, err := feed.LastPrice(ctx, symbol)
		if err != nil {
			return decimal.Zero, false, err
		}
		if found {
			p.UpdatePrice(symbol, price)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	price, ok := p.prices[symbol]
	return price, ok && price.IsPositive(), nil
}

// SubmitLimitOrder rests a limit order, filling it at once if marketable.
func (p *PaperExecution) SubmitLimitOrder(_ context.Context, intent domain.OrderIntent) (string, error) {
	if !intent.Price.IsPositive() || !intent.Qty.IsPositive() {
		return "", fmt.Errorf("paper: invalid limit order price=%s qty=%s", intent.Price, intent.Qty)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	o, err := p.acceptLocked(intent)
	if err != nil {
		return "", err
	}
	if price, ok := p.prices[intent.Symbol]; ok {
		p.matchLocked(intent.Symbol, price)
	}
	return o.ID, nil
}

// SubmitMarketOrder fills immediately at the last price.
func (p *PaperExecution) SubmitMarketOrder(_ context.Context, intent domain.OrderIntent) (string, error) {
	if !intent.Qty.IsPositive() {
		return "", fmt.Errorf("paper: invalid market order qty=%s", intent.Qty)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.prices[intent.Symbol]
	if !ok || !price.IsPositive() {
		return "", fmt.Errorf("paper: no price for %s", intent.Symbol)
	}
	intent.Price = price

	o, err := p.acceptLocked(intent)
	if err != nil {
		return "", err
	}
	p.fillLocked(o, price)
	return o.ID, nil
}

// acceptLocked validates funds, reserves them and records a new open order.
func (p *PaperExecution) acceptLocked(intent domain.OrderIntent) (*domain.RemoteOrder, error) {
	if intent.ClientOrderID == "" {
		intent.ClientOrderID = uuid.NewString()
	}
	if p.usedIDs[intent.ClientOrderID] {
		return nil, fmt.Errorf("paper: client_order_id %s: %w", intent.ClientOrderID, domain.ErrDuplicateClientOrderID)
	}

	switch intent.Side {
	case domain.SideBuy:
		cost := intent.Price.Mul(intent.Qty)
		if cost.GreaterThan(p.cash.Sub(p.reservedCash)) {
			return nil, fmt.Errorf("paper: need %s, available %s: %w",
				cost, p.cash.Sub(p.reservedCash), domain.ErrInsufficientFunds)
		}
		p.reservedCash = p.reservedCash.Add(cost)
	case domain.SideSell:
		available := p.positions[intent.Symbol].Sub(p.reservedQty[intent.Symbol])
		if intent.Qty.GreaterThan(available) {
			return nil, fmt.Errorf("paper: sell %s, available %s: %w",
				intent.Qty, available, domain.ErrInsufficientFunds)
		}
		p.reservedQty[intent.Symbol] = p.reservedQty[intent.Symbol].Add(intent.Qty)
	default:
		return nil, fmt.Errorf("paper: unknown side %q", intent.Side)
	}

	now := p.now()
	o := &domain.RemoteOrder{
		ID:            uuid.NewString(),
		ClientOrderID: intent.ClientOrderID,
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Type:          intent.Type,
		Price:         intent.Price,
		Qty:           intent.Qty,
		Status:        domain.OrderStatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if o.Type == domain.OrderTypeMarket {
		o.Price = decimal.Zero
	}
	p.orders = append(p.orders, o)
	p.byID[o.ID] = o
	p.usedIDs[o.ClientOrderID] = true
	return o, nil
}

// matchLocked fills resting limits crossed by price.
func (p *PaperExecution) matchLocked(symbol string, price decimal.Decimal) {
	for _, o := range p.orders {
		if o.Symbol != symbol || !o.IsOpen() || o.Type != domain.OrderTypeLimit {
			continue
		}
		if (o.Side == domain.SideBuy && price.LessThanOrEqual(o.Price)) ||
			(o.Side == domain.SideSell && price.GreaterThanOrEqual(o.Price)) {
			p.fillLocked(o, o.Price)
		}
	}
}

// fillLocked executes o completely at price and releases its reservation.
func (p *PaperExecution) fillLocked(o *domain.RemoteOrder, price decimal.Decimal) {
	notional := price.Mul(o.Qty)
	fee := notional.Mul(p.feeRate)

	switch o.Side {
	case domain.SideBuy:
		reserved := notional
		if o.Type == domain.OrderTypeLimit {
			reserved = o.Price.Mul(o.Qty)
		}
		p.reservedCash = p.reservedCash.Sub(reserved)
		p.cash = p.cash.Sub(notional).Sub(fee)
		p.positions[o.Symbol] = p.positions[o.Symbol].Add(o.Qty)
	case domain.SideSell:
		p.reservedQty[o.Symbol] = p.reservedQty[o.Symbol].Sub(o.Qty)
		p.positions[o.Symbol] = p.positions[o.Symbol].Sub(o.Qty)
		p.cash = p.cash.Add(notional).Sub(fee)
	}

	now := p.now()
	o.Status = domain.OrderStatusFilled
	o.FilledQty = o.Qty
	o.FilledAvgPrice = price
	o.UpdatedAt = now

	p.fills = append(p.fills, Fill{
		OrderID:       o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Price:         price,
		Qty:           o.Qty,
		Fee:           fee,
		Time:          now,
	})
	slog.Info("PAPER_FILL",
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
		slog.String("price", price.String()),
		slog.String("qty", o.Qty.String()),
		slog.String("client_order_id", o.ClientOrderID))
}

// CancelOrder cancels an open order and releases its reservation.
func (p *PaperExecution) CancelOrder(_ context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.byID[orderID]
	if !ok || !o.IsOpen() {
		return fmt.Errorf("paper: cancel %s: %w", orderID, domain.ErrOrderNotFound)
	}

	switch o.Side {
	case domain.SideBuy:
		p.reservedCash = p.reservedCash.Sub(o.Price.Mul(o.Qty))
	case domain.SideSell:
		p.reservedQty[o.Symbol] = p.reservedQty[o.Symbol].Sub(o.Qty)
	}
	o.Status = domain.OrderStatusCanceled
	o.UpdatedAt = p.now()
	return nil
}

// ListOrders returns copies of matching orders, newest first.
func (p *PaperExecution) ListOrders(_ context.Context, q domain.OrderQuery) ([]domain.RemoteOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []domain.RemoteOrder
	for _, o := range p.orders {
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
		out = append(out, *o)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// AccountCash returns cash not reserved by resting buys.
func (p *PaperExecution) AccountCash(_ context.Context) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash.Sub(p.reservedCash), nil
}

// PositionQty returns the held quantity, including quantity reserved by resting sells.
func (p *PaperExecution) PositionQty(_ context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions[symbol], nil
}

// GetFills returns a copy of all simulated fills.
func (p *PaperExecution) GetFills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Fill, len(p.fills))
	copy(out, p.fills)
	return out
}
