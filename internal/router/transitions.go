package router

import (
	"storyflow/internal/ledger"
)

// transitions is the legal edge set of the story state machine. DONE is
// terminal and has no outgoing edges.
var transitions = map[ledger.State][]ledger.State{
	ledger.StateBacklog:    {ledger.StateTodo},
	ledger.StateTodo:       {ledger.StateInProgress, ledger.StateBacklog},
	ledger.StateInProgress: {ledger.StateDone, ledger.StateTodo},
	ledger.StateDone:       nil,
}

// Legal reports whether a story may move from one state to another.
// Self-transitions are never legal.
func Legal(from, to ledger.State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the states reachable from the given state in one transition.
//
// Returns [ErrStoryComplete] for DONE and [ErrUnknownStatus] for values that
// are not lifecycle states.
func Next(from ledger.State) ([]ledger.State, error) {
	if from == ledger.StateDone {
		return nil, ErrStoryComplete
	}
	next, ok := transitions[from]
	if !ok {
		return nil, ErrUnknownStatus
	}
	out := make([]ledger.State, len(next))
	copy(out, next)
	return out, nil
}
