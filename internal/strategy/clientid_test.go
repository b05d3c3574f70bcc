package strategy

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewBuyClientID(t *testing.T) {
	price := decimal.RequireFromString("4000")
	tick := decimal.RequireFromString("0.01")

	a := NewBuyClientID(price, tick)
	b := NewBuyClientID(price, tick)

	if !strings.HasPrefix(a, "GRIDBUY-4000.00-") {
		t.Errorf("unexpected id format: %s", a)
	}
	if a == b {
		t.Error("every attempt must mint a fresh id")
	}
	if !IsGridBuy(a) || IsTakeProfit(a) {
		t.Errorf("classification wrong for %s", a)
	}
}

func TestTakeProfitClientID(t *testing.T) {
	buyID := "GRIDBUY-4000.00-1a2b3c4d"
	tpID := TakeProfitClientID(buyID)

	if tpID != "GRIDTP-GRIDBUY-4000.00-1a2b3c4d" {
		t.Errorf("unexpected take-profit id: %s", tpID)
	}
	if TakeProfitClientID(buyID) != tpID {
		t.Error("take-profit id must be deterministic")
	}

	got, ok := BuyIDFromTakeProfit(tpID)
	if !ok || got != buyID {
		t.Errorf("BuyIDFromTakeProfit(%s) = %s, %v", tpID, got, ok)
	}
	if _, ok := BuyIDFromTakeProfit("GRIDTP-manual"); ok {
		t.Error("take-profit without a grid buy id should not resolve")
	}
	if !IsGridOrder(tpID) || IsGridOrder("manual-order") || IsGridOrder(NewLiquidateClientID()) {
		t.Error("IsGridOrder classification wrong")
	}
}
