package strategy

import (
	"time"

	"grid_go/internal/domain"
)

// State is the only mutable state carried between rounds.
// It lives in process memory and resets to the configured range on restart.
type State struct {
	Active       domain.Range `json:"active"`
	LastRecenter time.Time    `json:"last_recenter"` // Zero if no recenter happened yet
}

// NewState returns the initial state for a configured range.
func NewState(base domain.Range) State {
	return State{Active: base}
}

// Recentered reports whether a recenter has happened in this process.
func (s State) Recentered() bool {
	return !s.LastRecenter.IsZero()
}
