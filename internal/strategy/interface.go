package strategy

import (
	"context"

	"grid_go/internal/domain"
)

// Strategy is driven by the Scheduler, one round at a time.
// Rounds never overlap, so implementations need no locking.
type Strategy interface {
	// RunRound executes one full round against the broker and returns the
	// state to pass into the next round.
	RunRound(ctx context.Context, st State) (State, *domain.RoundSummary, error)

	// CleanSlate cancels every grid-tagged open order before the first round.
	CleanSlate(ctx context.Context) (int, error)
}
