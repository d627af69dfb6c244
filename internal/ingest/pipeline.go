package ingest

import (
	"context"

	eventdomain "github.com/smallbiznis/payledger/internal/event/domain"
	obslogger "github.com/smallbiznis/payledger/internal/observability/logger"
	txdomain "github.com/smallbiznis/payledger/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Refresher re-derives the transaction of one resource.
type Refresher interface {
	Refresh(ctx context.Context, externalID string) (txdomain.Transaction, bool, error)
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Store     eventdomain.Store
	Refresher Refresher
}

// Pipeline records one event and refreshes the projection of its resource.
type Pipeline struct {
	log       *zap.Logger
	store     eventdomain.Store
	refresher Refresher
}

func New(p Params) *Pipeline {
	return &Pipeline{
		log:       p.Log.Named("ingest.pipeline"),
		store:     p.Store,
		refresher: p.Refresher,
	}
}

// Handle is safe to repeat for the same event. A duplicate still refreshes
// the projection so a crash between record and projection heals on
// redelivery.
func (p *Pipeline) Handle(ctx context.Context, event *eventdomain.Event) (eventdomain.InsertResult, error) {
	result, err := p.store.Record(ctx, event)
	if err != nil {
		return "", err
	}

	log := obslogger.WithResource(p.log, string(event.ResourceType), event.ResourceExternalID)
	if !projectable(event.ResourceType) {
		log.Debug("event recorded without projection",
			zap.String("event_type", event.EventType),
			zap.String("result", string(result)),
		)
		return result, nil
	}

	txn, written, err := p.refresher.Refresh(ctx, event.ResourceExternalID)
	if err != nil {
		return "", err
	}

	log.Debug("event ingested",
		zap.String("event_type", event.EventType),
		zap.String("result", string(result)),
		zap.String("state", string(txn.State)),
		zap.Int("event_count", txn.EventCount),
		zap.Bool("projection_written", written),
	)
	return result, nil
}

func projectable(resourceType eventdomain.ResourceType) bool {
	switch resourceType {
	case eventdomain.ResourceTypePayment, eventdomain.ResourceTypeRefund:
		return true
	default:
		return false
	}
}
