package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"grid_go/internal/domain"
	"grid_go/internal/execution"
	"grid_go/internal/infra"
	"grid_go/internal/strategy"

	"github.com/shopspring/decimal"
)

func TestParamsFromConfig(t *testing.T) {
	cfg := infra.DefaultConfig()
	cfg.Grid.BuyZone = "below_mid"
	cfg.Recenter.Enabled = true
	cfg.Recenter.Mode = "edge"
	cfg.Recenter.CooldownSec = 120

	p, err := ParamsFromConfig(cfg)
	if err != nil {
		t.Fatalf("ParamsFromConfig failed: %v", err)
	}
	if p.Symbol != "ETH/USD" || p.BuyZone != strategy.BuyZoneBelowMid {
		t.Errorf("unexpected params %+v", p)
	}
	if p.FillLookback != 168*time.Hour || p.Recenter.Cooldown != 2*time.Minute {
		t.Errorf("durations not converted: lookback=%s cooldown=%s", p.FillLookback, p.Recenter.Cooldown)
	}
	if p.Recenter.Mode != strategy.RecenterEdge || !p.Base.High.Equal(decimal.NewFromInt(4400)) {
		t.Errorf("unexpected recenter/range %+v %s", p.Recenter, p.Base)
	}
}

func TestParamsFromConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *infra.Config)
	}{
		{"unknown buy zone", func(cfg *infra.Config) { cfg.Grid.BuyZone = "everywhere" }},
		{"zero max open buys", func(cfg *infra.Config) { cfg.Grid.MaxOpenBuys = 0 }},
		{"qty below increment", func(cfg *infra.Config) { cfg.Grid.QtyPerLevel = decimal.RequireFromString("0.0000001") }},
		{"unknown recenter mode", func(cfg *infra.Config) {
			cfg.Recenter.Enabled = true
			cfg.Recenter.Mode = "drift"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := infra.DefaultConfig()
			tt.mutate(cfg)

			_, err := ParamsFromConfig(cfg)
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != "grid" {
				t.Errorf("Expected grid ConfigError, got %v", err)
			}
		})
	}
}

func TestBootstrap_StartPaper(t *testing.T) {
	cfg := infra.DefaultConfig()
	cfg.Broker.Kind = infra.BrokerPaper
	cfg.Broker.Paper.Cash = decimal.NewFromInt(500)
	cfg.Storage.Enabled = true
	cfg.Storage.Path = filepath.Join(t.TempDir(), "journal.db")

	params, err := ParamsFromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b := &Bootstrap{Config: cfg, Params: params}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, err := b.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer b.Close()

	if sched == nil || b.Metrics == nil || b.Storage == nil {
		t.Fatal("expected scheduler, metrics and journal")
	}
	paper, ok := b.Broker.(*execution.PaperExecution)
	if !ok {
		t.Fatalf("Expected paper broker, got %T", b.Broker)
	}
	cash, _ := paper.AccountCash(ctx)
	if !cash.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected 500 cash, got %s", cash)
	}
	if !sched.State().Active.Low.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("scheduler should start from the configured range, got %s", sched.State().Active)
	}
}
