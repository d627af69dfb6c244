package digest

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/smallbiznis/payledger/internal/event/domain"
)

// Salience decides which event types carry lifecycle state.
type Salience interface {
	IsSalient(eventType string) bool
}

type Builder struct {
	store    domain.Store
	salience Salience
}

func NewBuilder(store domain.Store, salience Salience) *Builder {
	return &Builder{store: store, salience: salience}
}

// Digest recomputes the digest from every stored event of the resource.
func (b *Builder) Digest(ctx context.Context, resourceExternalID string) (domain.EventDigest, error) {
	events, err := b.store.Events(ctx, resourceExternalID)
	if err != nil {
		return domain.EventDigest{}, err
	}
	return Build(events, b.salience)
}

// Build folds events into a digest. The result depends only on the set of
// events, not on the order of the slice.
func Build(events []domain.Event, salience Salience) (domain.EventDigest, error) {
	if len(events) == 0 {
		return domain.EventDigest{}, domain.ErrNoEvents
	}

	sorted := make([]domain.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].EventDate.Equal(sorted[j].EventDate) {
			return sorted[i].EventDate.Before(sorted[j].EventDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	digest := domain.EventDigest{
		ResourceExternalID: sorted[0].ResourceExternalID,
		EventCount:         len(sorted),
		MergedPayload:      map[string]any{},
		EventCreatedDate:   sorted[0].EventDate,
	}

	for _, event := range sorted {
		fields, err := decodePayload(event.Payload)
		if err != nil {
			return domain.EventDigest{}, fmt.Errorf("%w: event %d payload: %v", domain.ErrInvalidEvent, event.ID, err)
		}
		for k, v := range fields {
			digest.MergedPayload[k] = v
		}
		if event.ResourceType != "" {
			digest.ResourceType = event.ResourceType
		}
		if event.ParentResourceExternalID != nil && *event.ParentResourceExternalID != "" {
			parent := *event.ParentResourceExternalID
			digest.ParentResourceExternalID = &parent
		}
	}

	for i := len(sorted) - 1; i >= 0; i-- {
		if salience != nil && salience.IsSalient(sorted[i].EventType) {
			digest.MostRecentSalientEventType = sorted[i].EventType
			break
		}
	}

	return digest, nil
}

func decodePayload(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
