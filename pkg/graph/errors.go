package graph

import (
	"errors"
	"fmt"
)

// ErrTurnTimeout indicates the turn-level deadline expired before the
// machine reached a terminal node.
var ErrTurnTimeout = errors.New("turn deadline exceeded")

// ErrNoTransition indicates a (node, outcome) pair with no table entry.
// This is an internal bug, not a user error.
type ErrNoTransition struct {
	Node    string
	Outcome Outcome
}

func (e *ErrNoTransition) Error() string {
	return fmt.Sprintf("no transition from node %q on outcome %q", e.Node, e.Outcome)
}
