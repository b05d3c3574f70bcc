package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"grid_go/internal/domain"
	"grid_go/internal/strategy"

	"github.com/shopspring/decimal"
)

type scriptedStrategy struct {
	mu         sync.Mutex
	calls      int
	cleanSlate int
	panicOn    int
	failOn     int
}

func (s *scriptedStrategy) RunRound(_ context.Context, st strategy.State) (strategy.State, *domain.RoundSummary, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if n == s.panicOn {
		panic("boom")
	}
	sum := &domain.RoundSummary{Symbol: "ETH/USD", Outcome: domain.OutcomeOK, Range: st.Active}
	if n == s.failOn {
		sum.Outcome = domain.OutcomeFailed
		return st, sum, domain.NewNetworkError("list orders", errors.New("timeout"))
	}
	st.LastRecenter = time.Unix(int64(n), 0)
	return st, sum, nil
}

func (s *scriptedStrategy) CleanSlate(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanSlate++
	return 0, nil
}

func (s *scriptedStrategy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes []domain.RoundOutcome
}

func (o *countingObserver) ObserveRound(sum *domain.RoundSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, sum.Outcome)
}

func initialState() strategy.State {
	return strategy.NewState(domain.Range{
		Low:    decimal.NewFromInt(4000),
		High:   decimal.NewFromInt(4400),
		Levels: 10,
	})
}

func TestScheduler_RunOnce(t *testing.T) {
	strat := &scriptedStrategy{}
	obs := &countingObserver{}
	s := NewScheduler(strat, initialState(), time.Second, WithCleanSlate(true), WithObservers(obs))

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if strat.calls != 1 || strat.cleanSlate != 1 {
		t.Errorf("Expected 1 round and 1 clean slate, got %d and %d", strat.calls, strat.cleanSlate)
	}
	if len(obs.outcomes) != 1 {
		t.Errorf("Expected 1 observed round, got %d", len(obs.outcomes))
	}
	if !s.State().LastRecenter.Equal(time.Unix(1, 0)) {
		t.Error("returned state must be carried into the scheduler")
	}
}

func TestScheduler_RecoversPanic(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "dump.json")
	strat := &scriptedStrategy{panicOn: 1}
	obs := &countingObserver{}
	s := NewScheduler(strat, initialState(), time.Second, WithDumpPath(dump), WithObservers(obs))

	err := s.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected error from panicking round")
	}
	if _, statErr := os.Stat(dump); statErr != nil {
		t.Errorf("state dump not written: %v", statErr)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != domain.OutcomeFailed {
		t.Errorf("panic should be observed as a failed round, got %v", obs.outcomes)
	}

	// The next round runs normally.
	if err := s.runRound(context.Background()); err != nil {
		t.Errorf("round after panic failed: %v", err)
	}
}

func TestScheduler_RunContinuesAfterFailures(t *testing.T) {
	strat := &scriptedStrategy{panicOn: 2, failOn: 3}
	s := NewScheduler(strat, initialState(), 5*time.Millisecond, WithDumpPath(filepath.Join(t.TempDir(), "dump.json")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for strat.Calls() < 5 {
		select {
		case <-deadline:
			t.Fatalf("loop stalled after %d rounds", strat.Calls())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if strat.cleanSlate != 0 {
		t.Error("clean slate disabled by default")
	}
}
