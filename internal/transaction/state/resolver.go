package state

import "strings"

// Resolver maps salient event types to lifecycle states. The mapping is
// copied at construction and never mutated.
type Resolver struct {
	mapping map[string]TransactionState
}

func New(mapping map[string]TransactionState) *Resolver {
	copied := make(map[string]TransactionState, len(mapping))
	for eventType, s := range mapping {
		copied[normalizeEventType(eventType)] = s
	}
	return &Resolver{mapping: copied}
}

// Default returns the resolver for payment and refund lifecycles.
func Default() *Resolver {
	return New(map[string]TransactionState{
		"PAYMENT_CREATED":                    StateCreated,
		"PAYMENT_STARTED":                    StateStarted,
		"AUTHORISATION_SUCCEEDED":            StateSubmitted,
		"PAYMENT_SUBMITTED":                  StateSubmitted,
		"AUTHORISATION_REJECTED":             StateDeclined,
		"AUTHORISATION_CANCELLED":            StateCancelled,
		"CANCELLED_BY_USER":                  StateCancelled,
		"CANCELLED_BY_EXTERNAL_SERVICE":      StateCancelled,
		"PAYMENT_EXPIRED":                    StateTimedOut,
		"GATEWAY_ERROR_DURING_AUTHORISATION": StateError,
		"USER_APPROVED_FOR_CAPTURE":          StateSuccess,
		"CAPTURE_SUBMITTED":                  StateSuccess,
		"CAPTURE_CONFIRMED":                  StateSuccess,

		"REFUND_CREATED_BY_USER":    StateCreated,
		"REFUND_CREATED_BY_SERVICE": StateCreated,
		"REFUND_SUBMITTED":          StateSubmitted,
		"REFUND_SUCCEEDED":          StateSuccess,
		"REFUND_ERROR":              StateError,
	})
}

// Resolve returns the state for a salient event type. ok is false for
// informational types.
func (r *Resolver) Resolve(eventType string) (TransactionState, bool) {
	if r == nil {
		return "", false
	}
	s, ok := r.mapping[normalizeEventType(eventType)]
	return s, ok
}

// StateFor resolves eventType, falling back to StateUndefined.
func (r *Resolver) StateFor(eventType string) TransactionState {
	if s, ok := r.Resolve(eventType); ok {
		return s
	}
	return StateUndefined
}

func (r *Resolver) IsSalient(eventType string) bool {
	_, ok := r.Resolve(eventType)
	return ok
}

func normalizeEventType(eventType string) string {
	return strings.ToUpper(strings.TrimSpace(eventType))
}
