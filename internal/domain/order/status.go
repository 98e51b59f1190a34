package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	// StatusPending is the initial state of every order.
	StatusPending Status = "pending"
	// StatusPaid marks a paid order awaiting fulfilment.
	StatusPaid Status = "paid"
	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
	// StatusCancelled is terminal.
	StatusCancelled Status = "cancelled"
)

var (
	// ErrInvalidStatus is returned for a status value outside the enum.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrNotPending is returned when cancelling an order that has already
	// left the pending state.
	ErrNotPending = errors.New("can only cancel pending orders")
)

// InvalidTransitionError indicates a status change the state machine does
// not permit.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

// transitions maps each state to the states reachable from it.
// Completed and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCompleted, StatusCancelled},
	StatusPaid:    {StatusCompleted, StatusCancelled},
}

// ParseStatus validates a raw status string against the enum.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusPaid, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// CanTransitionTo reports whether the state machine permits moving from s
// to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
