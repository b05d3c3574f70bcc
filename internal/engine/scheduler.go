package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"grid_go/internal/domain"
	"grid_go/internal/strategy"
)

// RoundObserver receives the summary of every finished round.
type RoundObserver interface {
	ObserveRound(sum *domain.RoundSummary)
}

// Scheduler drives the strategy one round at a time.
// Rounds never overlap: the next one starts only after the previous returned
// and the interval elapsed.
type Scheduler struct {
	strategy strategy.Strategy
	state    strategy.State
	interval time.Duration

	cleanSlate bool
	dumpPath   string
	observers  []RoundObserver

	rounds uint64
	mu     sync.RWMutex // Used only for external reads of state
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCleanSlate cancels all grid orders before the first round.
func WithCleanSlate(enabled bool) Option {
	return func(s *Scheduler) { s.cleanSlate = enabled }
}

// WithDumpPath sets where the state is written after a recovered panic.
func WithDumpPath(path string) Option {
	return func(s *Scheduler) { s.dumpPath = path }
}

// WithObservers registers round observers (metrics, journal).
func WithObservers(obs ...RoundObserver) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, obs...) }
}

// NewScheduler creates a scheduler starting from the initial state.
func NewScheduler(strat strategy.Strategy, initial strategy.State, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		strategy: strat,
		state:    initial,
		interval: interval,
		dumpPath: "panic_dump.json",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes rounds until ctx is cancelled. Round failures are logged and
// never end the loop.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("Scheduler started",
		slog.Duration("interval", s.interval),
		slog.String("range", s.State().Active.String()))

	s.prepare(ctx)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopping...")
			return
		case <-timer.C:
			s.runRound(ctx)
			timer.Reset(s.interval)
		}
	}
}

// RunOnce executes a single round (after the optional clean slate).
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.prepare(ctx)
	return s.runRound(ctx)
}

func (s *Scheduler) prepare(ctx context.Context) {
	if !s.cleanSlate {
		return
	}
	if _, err := s.strategy.CleanSlate(ctx); err != nil {
		slog.Warn("CLEAN_SLATE_FAILED", slog.Any("error", err))
	}
}

// runRound executes one round and recovers any panic at the round boundary.
func (s *Scheduler) runRound(ctx context.Context) (err error) {
	started := time.Now()
	st := s.State()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState(s.dumpPath)
			err = fmt.Errorf("round panic: %v", r)
			s.notify(&domain.RoundSummary{
				StartedAt: started,
				Duration:  time.Since(started),
				Range:     st.Active,
				Outcome:   domain.OutcomeFailed,
				Err:       err.Error(),
			})
		}
	}()

	next, sum, err := s.strategy.RunRound(ctx, st)

	s.mu.Lock()
	s.state = next
	s.rounds++
	s.mu.Unlock()

	if sum != nil {
		logSummary(sum)
		s.notify(sum)
	}
	if err != nil {
		slog.Error("ROUND_FAILED",
			slog.Bool("retriable", domain.IsRetriable(err)),
			slog.Any("error", err))
	}
	return err
}

func (s *Scheduler) notify(sum *domain.RoundSummary) {
	for _, o := range s.observers {
		o.ObserveRound(sum)
	}
}

func logSummary(sum *domain.RoundSummary) {
	slog.Info("ROUND_SUMMARY",
		slog.String("symbol", sum.Symbol),
		slog.String("outcome", string(sum.Outcome)),
		slog.String("price", sum.Price.String()),
		slog.String("position", sum.Position.String()),
		slog.String("range", sum.Range.String()),
		slog.Int("levels", sum.Levels),
		slog.Int("placed", sum.Placed),
		slog.Int("existing", sum.Existing),
		slog.Int("duplicates", sum.Duplicates),
		slog.Int("skipped", sum.Skipped),
		slog.String("stop_reason", string(sum.StopReason)),
		slog.Int("fills", sum.Fills),
		slog.Int("take_profits", sum.TakeProfits),
		slog.Int("tp_duplicates", sum.TPDuplicates),
		slog.Int("tp_rejected", sum.TPRejected),
		slog.Int("malformed_fills", sum.MalformedFills),
		slog.Int("canceled", sum.Canceled),
		slog.Bool("recentered", sum.Recentered),
		slog.Bool("broken", sum.Broken),
		slog.Duration("duration", sum.Duration))
}

// State returns a snapshot of the strategy state (external read).
func (s *Scheduler) State() strategy.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Rounds returns the number of completed rounds.
func (s *Scheduler) Rounds() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rounds
}

// DumpState writes the strategy state to a file (for post-mortem).
func (s *Scheduler) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		Rounds uint64         `json:"rounds"`
		State  strategy.State `json:"state"`
	}{
		Rounds: s.Rounds(),
		State:  s.State(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
