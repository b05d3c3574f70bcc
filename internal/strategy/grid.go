package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"grid_go/internal/domain"
)

// Grid is the long-only range grid strategy for one instrument.
// One round: fetch price, recenter, range-break check, build levels,
// reconcile buys, link fills to take-profits.
type Grid struct {
	broker domain.Broker
	params Params

	reconciler *Reconciler
	linker     *FillLinker
	monitor    *RangeMonitor
	recenterer *Recenterer

	now func() time.Time
}

// NewGrid wires the grid components around a broker.
func NewGrid(broker domain.Broker, params Params) *Grid {
	return &Grid{
		broker:     broker,
		params:     params,
		reconciler: NewReconciler(broker, params),
		linker:     NewFillLinker(broker, params),
		monitor:    NewRangeMonitor(broker, params),
		recenterer: NewRecenterer(broker, params),
		now:        time.Now,
	}
}

// Params returns the grid parameters.
func (g *Grid) Params() Params {
	return g.params
}

// CleanSlate cancels every grid-tagged open order for the instrument.
func (g *Grid) CleanSlate(ctx context.Context) (int, error) {
	canceled, _, err := CancelGridOrders(ctx, g.broker, g.params.Symbol)
	slog.Info("GRID_CLEAN_SLATE",
		slog.String("symbol", g.params.Symbol),
		slog.Int("canceled", canceled))
	return canceled, err
}

// RunRound executes one round. The returned state is st, possibly with a new
// active range. On error the summary is still returned with Outcome failed.
func (g *Grid) RunRound(ctx context.Context, st State) (State, *domain.RoundSummary, error) {
	started := g.now()
	sum := domain.NewRoundSummary(g.params.Symbol, started, st.Active)
	defer func() { sum.Duration = g.now().Sub(started) }()

	fail := func(err error) (State, *domain.RoundSummary, error) {
		sum.Outcome = domain.OutcomeFailed
		sum.Err = err.Error()
		sum.Range = st.Active
		return st, sum, err
	}

	price, found, err := g.broker.LastPrice(ctx, g.params.Symbol)
	if err != nil {
		return fail(fmt.Errorf("fetch last price: %w", err))
	}
	if !found {
		sum.Outcome = domain.OutcomeSkipped
		slog.Warn("GRID_ROUND_SKIPPED",
			slog.String("symbol", g.params.Symbol),
			slog.String("reason", "no price available"))
		return st, sum, nil
	}
	sum.Price = price

	position, err := g.broker.PositionQty(ctx, g.params.Symbol)
	if err != nil {
		return fail(fmt.Errorf("fetch position: %w", err))
	}
	sum.Position = position

	// Recenter
	switch decision := g.recenterer.Evaluate(price, st, started); decision {
	case RecenterDue:
		next, rres, err := g.recenterer.Recenter(ctx, price, st, started)
		for _, a := range rres.Actions {
			sum.AddAction(a)
		}
		sum.Canceled += rres.Canceled
		if err != nil {
			return fail(err)
		}
		st = next
		sum.Recentered = rres.Applied
		sum.Range = st.Active
	case RecenterCooldown:
		slog.Info("GRID_RECENTER_COOLDOWN",
			slog.String("symbol", g.params.Symbol),
			slog.String("price", price.String()),
			slog.Time("last_recenter", st.LastRecenter),
			slog.Duration("cooldown", g.params.Recenter.Cooldown))
	}

	// Range break
	if g.monitor.IsBreak(price, st.Active) {
		lower, upper := BreakThresholds(st.Active, g.params.BreakBufferPct)
		slog.Warn("GRID_RANGE_BREAK",
			slog.String("symbol", g.params.Symbol),
			slog.String("price", price.String()),
			slog.String("lower", lower.String()),
			slog.String("upper", upper.String()))

		sum.Broken = true
		sum.Outcome = domain.OutcomeBroken
		bres, err := g.monitor.HandleBreak(ctx, position)
		for _, a := range bres.Actions {
			sum.AddAction(a)
		}
		sum.Canceled += bres.Canceled
		sum.Liquidated = bres.Liquidated
		if err != nil {
			return fail(fmt.Errorf("handle range break: %w", err))
		}
		return st, sum, nil
	}

	// Grid buys
	levels := BuildLevels(st.Active, g.params.PriceTick)
	if len(levels) == 0 {
		slog.Warn("GRID_EMPTY",
			slog.String("symbol", g.params.Symbol),
			slog.String("range", st.Active.String()),
			slog.String("reason", "degenerate range or too many levels"))
	} else {
		desired := FilterBuyZone(levels, g.params.BuyZone, st.Active, price)
		sum.Levels = len(desired)

		open, err := g.broker.ListOrders(ctx, domain.OrderQuery{
			Symbol: g.params.Symbol,
			Status: domain.QueryOpen,
			Side:   domain.SideBuy,
		})
		if err != nil {
			return fail(fmt.Errorf("list open buys: %w", err))
		}

		cash, err := g.broker.AccountCash(ctx)
		if err != nil {
			return fail(fmt.Errorf("fetch account cash: %w", err))
		}
		budget := domain.NewBudget(g.params.Symbol, cash)

		rres, err := g.reconciler.Reconcile(ctx, desired, open, budget)
		if rres != nil {
			for _, a := range rres.Actions {
				sum.AddAction(a)
			}
			sum.Placed = rres.Placed
			sum.Existing = rres.Existing
			sum.Duplicates = rres.Duplicates
			sum.Skipped = rres.Skipped
			sum.StopReason = rres.StopReason
		}
		if err != nil {
			return fail(err)
		}
		if err := budget.VerifyInvariant(); err != nil {
			return fail(err)
		}
	}

	// Take-profits
	lres, err := g.linker.Link(ctx, started)
	if lres != nil {
		for _, a := range lres.Actions {
			sum.AddAction(a)
		}
		sum.TakeProfits = lres.Created
		sum.Fills = lres.Fills
		sum.TPDuplicates = lres.Duplicates
		sum.TPRejected = lres.Rejected
		sum.MalformedFills = lres.Malformed
	}
	if err != nil {
		return fail(err)
	}

	return st, sum, nil
}
