package app

import (
	"context"
	"log/slog"

	"grid_go/internal/domain"
	"grid_go/internal/engine"
	"grid_go/internal/execution"
	"grid_go/internal/infra"
	"grid_go/internal/infra/alpaca"
	"grid_go/internal/infra/storage"
	"grid_go/internal/service"
	"grid_go/internal/strategy"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Params  strategy.Params
	Broker  domain.Broker
	Prices  *service.PriceService
	Stream  *alpaca.Stream
	Storage *storage.Storage
	Metrics *infra.Metrics
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads and validates configuration and sets up logging.
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("Bootstrapping grid bot",
		slog.String("broker", cfg.Broker.Kind),
		slog.String("symbol", cfg.Grid.Symbol),
		slog.String("range", cfg.Range().String()),
	)

	// 3. Typed grid parameters
	params, err := ParamsFromConfig(cfg)
	if err != nil {
		return err
	}
	b.Params = params
	return nil
}

// ParamsFromConfig converts the file/env configuration into validated grid parameters.
func ParamsFromConfig(cfg *infra.Config) (strategy.Params, error) {
	p := strategy.Params{
		Symbol:           cfg.Grid.Symbol,
		Base:             cfg.Range(),
		PriceTick:        cfg.Grid.PriceIncrement,
		QtyIncrement:     cfg.Grid.QtyIncrement,
		QtyPerLevel:      cfg.Grid.QtyPerLevel,
		TakeProfitPct:    cfg.Grid.TakeProfitPct,
		BreakBufferPct:   cfg.Grid.BreakBufferPct,
		LiquidateOnBreak: cfg.Grid.LiquidateOnBreak,
		MaxOpenBuys:      cfg.Grid.MaxOpenBuys,
		BuyZone:          strategy.BuyZone(cfg.Grid.BuyZone),
		FillLookback:     cfg.FillLookback(),
		Recenter: strategy.RecenterParams{
			Enabled:   cfg.Recenter.Enabled,
			BufferPct: cfg.Recenter.BufferPct,
			Mode:      strategy.RecenterMode(cfg.Recenter.Mode),
			Cooldown:  cfg.RecenterCooldown(),
		},
	}
	if err := p.Validate(); err != nil {
		return strategy.Params{}, &domain.ConfigError{Field: "grid", Err: err}
	}
	return p, nil
}

// Start connects the broker, price feed, journal and metrics, and returns the
// scheduler ready to run.
func (b *Bootstrap) Start(ctx context.Context) (*engine.Scheduler, error) {
	cfg := b.Config

	// 1. Price source: stream cache in front of the REST latest bar
	rest := alpaca.NewClient(cfg)
	b.Prices = service.NewPriceService(rest, cfg.StreamMaxAge())

	// 2. Broker
	switch cfg.Broker.Kind {
	case infra.BrokerPaper:
		paper := execution.NewPaperExecution(cfg.Broker.Paper.FeeRate)
		paper.Deposit(cfg.Broker.Paper.Cash)
		paper.SetPriceFeed(b.Prices)
		b.Broker = paper
		slog.Info("Paper broker ready", slog.String("cash", cfg.Broker.Paper.Cash.String()))
	default:
		b.Broker = service.WithPriceSource(rest, b.Prices)
		slog.Info("Alpaca broker ready", slog.String("base_url", cfg.Broker.Alpaca.BaseURL))
	}

	// 3. Streaming trades (optional)
	if cfg.Stream.Enabled {
		b.Prices.StartTickerProcessor(ctx)
		b.Stream = alpaca.NewStream(cfg, []string{b.Params.Symbol}, b.Prices.GetTickerChan())
		if err := b.Stream.Connect(ctx); err != nil {
			slog.Error("Failed to connect Alpaca stream", slog.Any("error", err))
		}
	}

	observers := make([]engine.RoundObserver, 0, 2)

	// 4. Metrics
	b.Metrics = infra.NewMetrics()
	observers = append(observers, b.Metrics)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := b.Metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				slog.Error("Metrics server failed", slog.Any("error", err))
			}
		}()
	}

	// 5. Journal (optional)
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		b.Storage = store
		observers = append(observers, store)
		slog.Info("Journal initialized", slog.String("path", cfg.Storage.Path))
	}

	// 6. Strategy & scheduler
	grid := strategy.NewGrid(b.Broker, b.Params)
	sched := engine.NewScheduler(grid, strategy.NewState(b.Params.Base), cfg.LoopInterval(),
		engine.WithCleanSlate(cfg.Grid.RebuildOnStart),
		engine.WithObservers(observers...),
	)
	return sched, nil
}

// Close releases the stream and the journal.
func (b *Bootstrap) Close() {
	if b.Stream != nil {
		b.Stream.Disconnect()
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close journal", slog.Any("error", err))
		}
	}
}
