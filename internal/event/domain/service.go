package domain

import (
	"context"
	"errors"
)

// Store is the append-only event log.
type Store interface {
	Record(ctx context.Context, event *Event) (InsertResult, error)
	Events(ctx context.Context, resourceExternalID string) ([]Event, error)
}

var (
	ErrStoreUnavailable = errors.New("store_unavailable")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrNoEvents         = errors.New("no_events")
)
