package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBudget_TryReserve(t *testing.T) {
	t.Run("reserves until exhausted", func(t *testing.T) {
		b := NewBudget("ETH/USD", decimal.NewFromInt(100))

		if !b.TryReserve(decimal.NewFromInt(40)) {
			t.Fatal("first reserve should fit")
		}
		if !b.TryReserve(decimal.NewFromInt(60)) {
			t.Fatal("exact remainder should fit")
		}
		if b.TryReserve(decimal.NewFromFloat(0.01)) {
			t.Error("reserve beyond start cash must fail")
		}
		if !b.Remaining().IsZero() {
			t.Errorf("Expected zero remaining, got %s", b.Remaining())
		}
		if err := b.VerifyInvariant(); err != nil {
			t.Errorf("unexpected invariant violation: %v", err)
		}
	})

	t.Run("failed reserve leaves budget untouched", func(t *testing.T) {
		b := NewBudget("ETH/USD", decimal.NewFromInt(10))
		b.TryReserve(decimal.NewFromInt(50))

		if !b.Reserved.IsZero() {
			t.Errorf("Expected nothing reserved, got %s", b.Reserved)
		}
	})

	t.Run("negative cash clamps to zero", func(t *testing.T) {
		b := NewBudget("ETH/USD", decimal.NewFromInt(-5))
		if !b.Start.IsZero() {
			t.Errorf("Expected zero start, got %s", b.Start)
		}
		if b.TryReserve(decimal.NewFromInt(1)) {
			t.Error("nothing should fit in an empty budget")
		}
	})
}

func TestBudget_VerifyInvariant(t *testing.T) {
	b := &Budget{Symbol: "ETH/USD", Start: decimal.NewFromInt(10), Reserved: decimal.NewFromInt(11)}
	if err := b.VerifyInvariant(); err == nil {
		t.Error("overdrawn budget should fail invariant check")
	}
}
