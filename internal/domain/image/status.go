package image

import "fmt"

// State is the embedding status name persisted with a record.
type State string

const (
	// StatePending is the initial state, before any embedding work.
	StatePending State = "pending"
	// StateProcessing means a worker owns the record and is calling the provider.
	StateProcessing State = "processing"
	// StateDone means the embedding is stored.
	StateDone State = "done"
	// StateFailed means the last attempt failed; the message is kept.
	StateFailed State = "failed"
)

// ParseState converts a stored status string.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StatePending, StateProcessing, StateDone, StateFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown embedding status %q", s)
	}
}

// Status is the closed embedding status variant. Only Failed carries a message.
type Status struct {
	state   State
	message string
}

// Pending returns the pending status.
func Pending() Status { return Status{state: StatePending} }

// Processing returns the processing status.
func Processing() Status { return Status{state: StateProcessing} }

// Done returns the done status.
func Done() Status { return Status{state: StateDone} }

// Failed returns the failed status with a human-readable message.
func Failed(message string) Status {
	if message == "" {
		message = "embedding failed"
	}
	return Status{state: StateFailed, message: message}
}

// State returns the status name.
func (s Status) State() State { return s.state }

// Message returns the failure message, empty unless failed.
func (s Status) Message() string { return s.message }

// Is reports whether the status is in the given state.
func (s Status) Is(st State) bool { return s.state == st }

func (s Status) String() string {
	if s.state == StateFailed {
		return fmt.Sprintf("%s: %s", s.state, s.message)
	}
	return string(s.state)
}

// statusFrom rebuilds a status from stored columns.
func statusFrom(state State, message *string) (Status, error) {
	switch state {
	case StateFailed:
		if message == nil || *message == "" {
			return Status{}, fmt.Errorf("failed status without error message")
		}
		return Failed(*message), nil
	case StatePending, StateProcessing, StateDone:
		if message != nil && *message != "" {
			return Status{}, fmt.Errorf("status %s with error message %q", state, *message)
		}
		return Status{state: state}, nil
	default:
		return Status{}, fmt.Errorf("unknown embedding status %q", state)
	}
}
