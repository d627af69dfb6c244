package state

import "strings"

type TransactionState string

const (
	StateUndefined TransactionState = "undefined"
	StateCreated   TransactionState = "created"
	StateStarted   TransactionState = "started"
	StateSubmitted TransactionState = "submitted"
	StateSuccess   TransactionState = "success"
	StateDeclined  TransactionState = "declined"
	StateTimedOut  TransactionState = "timedout"
	StateCancelled TransactionState = "cancelled"
	StateError     TransactionState = "error"
)

var knownStates = map[TransactionState]struct{}{
	StateUndefined: {},
	StateCreated:   {},
	StateStarted:   {},
	StateSubmitted: {},
	StateSuccess:   {},
	StateDeclined:  {},
	StateTimedOut:  {},
	StateCancelled: {},
	StateError:     {},
}

// Parse accepts any casing of a known state name.
func Parse(raw string) (TransactionState, bool) {
	s := TransactionState(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := knownStates[s]
	return s, ok
}

// Finished reports whether no further transition is expected.
func (s TransactionState) Finished() bool {
	switch s {
	case StateSuccess, StateDeclined, StateTimedOut, StateCancelled, StateError:
		return true
	default:
		return false
	}
}

func (s TransactionState) String() string {
	return string(s)
}
