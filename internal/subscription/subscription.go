package subscription

import (
	"errors"
	"time"

	"main/internal/security"
)

var ErrInvalidTransition = errors.New("invalid subscription state transition")

// State tracks the lifecycle of a subscription.
type State uint16

const (
	StateCreated State = iota
	StateRequestSent
	StateActive
	StateFinished
	StateError
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRequestSent:
		return "request-sent"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state admits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateFinished, StateError, StateStopped:
		return true
	default:
		return false
	}
}

// Subscription describes one tracked request for ongoing or bounded-range
// data. The transaction id is assigned at creation and never changes; the
// session owns the subscription exclusively and callers hold only the id.
type Subscription struct {
	TransactionID int64
	Security      security.ID
	DataType      security.DataType
	From          *time.Time
	To            *time.Time

	state State
}

// New creates a subscription in Created state.
func New(transactionID int64, sec security.ID, dt security.DataType, from, to *time.Time) *Subscription {
	return &Subscription{
		TransactionID: transactionID,
		Security:      sec,
		DataType:      dt,
		From:          from,
		To:            to,
		state:         StateCreated,
	}
}

// State returns the current lifecycle state.
func (s *Subscription) State() State { return s.state }

// IsHistorical reports whether the subscription requests a closed time range
// and therefore completes on its own instead of running until cancelled.
func (s *Subscription) IsHistorical() bool { return s.To != nil }

// ChangeState advances the lifecycle. Terminal states admit no transitions;
// any non-terminal state may move to StateError.
func (s *Subscription) ChangeState(next State) error {
	if s.state.IsTerminal() {
		return ErrInvalidTransition
	}
	if next == StateError {
		s.state = next
		return nil
	}
	switch s.state {
	case StateCreated:
		if next != StateRequestSent {
			return ErrInvalidTransition
		}
	case StateRequestSent:
		if next != StateActive {
			return ErrInvalidTransition
		}
	case StateActive:
		if next != StateFinished && next != StateStopped {
			return ErrInvalidTransition
		}
	default:
		return ErrInvalidTransition
	}
	s.state = next
	return nil
}
