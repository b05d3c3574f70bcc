package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"grid_go/internal/domain"

	"github.com/shopspring/decimal"
)

var d = decimal.RequireFromString

func limit(side domain.Side, price, qty, cid string) domain.OrderIntent {
	return domain.OrderIntent{
		Symbol:        "ETH/USD",
		Side:          side,
		Type:          domain.OrderTypeLimit,
		Price:         d(price),
		Qty:           d(qty),
		ClientOrderID: cid,
	}
}

func TestPaperExecution_LimitBuyFillsOnCross(t *testing.T) {
	ctx := context.Background()
	paper := NewPaperExecution(decimal.Zero)
	paper.Deposit(d("1000"))
	paper.UpdatePrice("ETH/USD", d("4100"))

	id, err := paper.SubmitLimitOrder(ctx, limit(domain.SideBuy, "4000", "0.1", "GRIDBUY-4000.00-a"))
	if err != nil {
		t.Fatalf("SubmitLimitOrder failed: %v", err)
	}

	// Reserved while resting
	cash, _ := paper.AccountCash(ctx)
	if !cash.Equal(d("600")) {
		t.Errorf("Expected 600 available, got %s", cash)
	}

	paper.UpdatePrice("ETH/USD", d("3999"))

	fills := paper.GetFills()
	if len(fills) != 1 {
		t.Fatalf("Expected 1 fill, got %d", len(fills))
	}
	if fills[0].Side != domain.SideBuy || !fills[0].Price.Equal(d("4000")) {
		t.Errorf("unexpected fill %+v", fills[0])
	}

	pos, _ := paper.PositionQty(ctx, "ETH/USD")
	if !pos.Equal(d("0.1")) {
		t.Errorf("Expected position 0.1, got %s", pos)
	}
	cash, _ = paper.AccountCash(ctx)
	if !cash.Equal(d("600")) {
		t.Errorf("Expected 600 cash after fill, got %s", cash)
	}

	closed, _ := paper.ListOrders(ctx, domain.OrderQuery{Symbol: "ETH/USD", Status: domain.QueryClosed})
	if len(closed) != 1 || closed[0].ID != id || closed[0].Status != domain.OrderStatusFilled {
		t.Errorf("unexpected closed orders %+v", closed)
	}
	if !closed[0].FilledAvgPrice.Equal(d("4000")) || !closed[0].FilledQty.Equal(d("0.1")) {
		t.Errorf("fill data missing on order %+v", closed[0])
	}
}

func TestPaperExecution_ListOrdersWindow(t *testing.T) {
	ctx := context.Background()
	paper := NewPaperExecution(d("100000"))
	paper.UpdatePrice("ETH/USD", d("4200"))

	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, cid := range []string{"GRIDBUY-a", "GRIDBUY-b", "GRIDBUY-c", "GRIDBUY-d"} {
		at := t0.Add(time.Duration(i) * time.Minute)
		paper.now = func() time.Time { return at }
		if _, err := paper.SubmitLimitOrder(ctx, limit(domain.SideBuy, "4000", "0.01", cid)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		q     domain.OrderQuery
		wantC []string
	}{
		{"newest first", domain.OrderQuery{Symbol: "ETH/USD", Limit: 2}, []string{"GRIDBUY-d", "GRIDBUY-c"}},
		{"until is exclusive", domain.OrderQuery{Symbol: "ETH/USD", Until: t0.Add(2 * time.Minute)}, []string{"GRIDBUY-b", "GRIDBUY-a"}},
		{"after and until", domain.OrderQuery{Symbol: "ETH/USD", After: t0, Until: t0.Add(3 * time.Minute)}, []string{"GRIDBUY-c", "GRIDBUY-b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := paper.ListOrders(ctx, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.wantC) {
				t.Fatalf("Expected %d orders, got %d", len(tt.wantC), len(got))
			}
			for i, o := range got {
				if o.ClientOrderID != tt.wantC[i] {
					t.Errorf("order %d: expected %s, got %s", i, tt.wantC[i], o.ClientOrderID)
				}
			}
		})
	}
}

func TestPaperExecution_Sell(t *testing.T) {
	ctx := context.Background()
	paper := NewPaperExecution(decimal.Zero)
	paper.DepositPosition("ETH/USD", d("1"))
	paper.UpdatePrice("ETH/USD", d("4000"))

	if _, err := paper.SubmitLimitOrder(ctx, limit(domain.SideSell, "4020", "0.5", "GRIDTP-x")); err != nil {
		t.Fatal(err)
	}
	paper.UpdatePrice("ETH/USD", d("4020"))

	pos, _ := paper.PositionQty(ctx, "ETH/USD")
	if !pos.Equal(d("0.5")) {
		t.Errorf("Expected 0.5 left, got %s", pos)
	}
	cash, _ := paper.AccountCash(ctx)
	if !cash.Equal(d("2010")) {
		t.Errorf("Expected 2010 cash, got %s", cash)
	}
}

func TestPaperExecution_MarketSellWithFee(t *testing.T) {
	ctx := context.Background()
	paper := NewPaperExecution(d("0.001"))
	paper.DepositPosition("ETH/USD", d("1"))
	paper.UpdatePrice("ETH/USD", d("4000"))

	if _, err := paper.SubmitMarketOrder(ctx, domain.OrderIntent{Symbol: "ETH/USD", Side: domain.SideSell, Type: domain.OrderTypeMarket, Qty: d("1")}); err != nil {
		t.Fatal(err)
	}
	cash, _ := paper.AccountCash(ctx)
	if !cash.Equal(d("3996")) {
		t.Errorf("Expected 3996 after fee, got %s", cash)
	}
}

func TestPaperExecution_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient cash", func(t *testing.T) {
		paper := NewPaperExecution(decimal.Zero)
		paper.Deposit(d("100"))
		_, err := paper.SubmitLimitOrder(ctx, limit(domain.SideBuy, "4000", "0.1", "a"))
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Errorf("Expected ErrInsufficientFunds, got %v", err)
		}
	})

	t.Run("insufficient position", func(t *testing.T) {
		paper := NewPaperExecution(decimal.Zero)
		_, err := paper.SubmitLimitOrder(ctx, limit(domain.SideSell, "4000", "0.1", "a"))
		if !errors.Is(err, domain.ErrInsufficientFunds) {
			t.Errorf("Expected ErrInsufficientFunds, got %v", err)
		}
	})

	t.Run("duplicate client id even after cancel", func(t *testing.T) {
		paper := NewPaperExecution(decimal.Zero)
		paper.Deposit(d("10000"))
		id, err := paper.SubmitLimitOrder(ctx, limit(domain.SideBuy, "4000", "0.1", "dup"))
		if err != nil {
			t.Fatal(err)
		}
		if err := paper.CancelOrder(ctx, id); err != nil {
			t.Fatal(err)
		}
		_, err = paper.SubmitLimitOrder(ctx, limit(domain.SideBuy, "4000", "0.1", "dup"))
		if !errors.Is(err, domain.ErrDuplicateClientOrderID) {
			t.Errorf("Expected ErrDuplicateClientOrderID, got %v", err)
		}
	})

	t.Run("cancel unknown order", func(t *testing.T) {
		paper := NewPaperExecution(decimal.Zero)
		if err := paper.CancelOrder(ctx, "nope"); !errors.Is(err, domain.ErrOrderNotFound) {
			t.Errorf("Expected ErrOrderNotFound, got %v", err)
		}
	})
}

func TestPaperExecution_CancelReleasesCash(t *testing.T) {
	ctx := context.Background()
	paper := NewPaperExecution(decimal.Zero)
	paper.Deposit(d("500"))

	id, err := paper.SubmitLimitOrder(ctx, limit(domain.SideBuy, "4000", "0.1", "a"))
	if err != nil {
		t.Fatal(err)
	}
	if err := paper.CancelOrder(ctx, id); err != nil {
		t.Fatal(err)
	}
	cash, _ := paper.AccountCash(ctx)
	if !cash.Equal(d("500")) {
		t.Errorf("Expected 500 after cancel, got %s", cash)
	}
}

type fixedFeed struct{ price decimal.Decimal }

func (f fixedFeed) LastPrice(context.Context, string) (decimal.Decimal, bool, error) {
	return f.price, true, nil
}

func TestPaperExecution_PriceFeed(t *testing.T) {
	ctx := context.Background()
	paper := NewPaperExecution(decimal.Zero)
	paper.Deposit(d("1000"))

	if _, found, _ := paper.LastPrice(ctx, "ETH/USD"); found {
		t.Error("no price expected before any update")
	}

	if _, err := paper.SubmitLimitOrder(ctx, limit(domain.SideBuy, "4000", "0.1", "a")); err != nil {
		t.Fatal(err)
	}
	paper.SetPriceFeed(fixedFeed{price: d("3990")})

	price, found, err := paper.LastPrice(ctx, "ETH/USD")
	if err != nil || !found || !price.Equal(d("3990")) {
		t.Fatalf("got %s %v %v", price, found, err)
	}
	if len(paper.GetFills()) != 1 {
		t.Error("feed price should match the resting buy")
	}
}

func TestPaperExecution_ImplementsInterface(t *testing.T) {
	var _ domain.Broker = (*PaperExecution)(nil)
}
