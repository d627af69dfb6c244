package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payledger/internal/clock"
	"github.com/smallbiznis/payledger/internal/event/domain"
	obsmetrics "github.com/smallbiznis/payledger/internal/observability/metrics"
	"github.com/smallbiznis/payledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Store {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("event.store"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

// Record appends the event unless its dedup key is already stored.
func (s *Service) Record(ctx context.Context, event *domain.Event) (domain.InsertResult, error) {
	if err := s.normalize(event); err != nil {
		return "", err
	}

	event.ID = s.genID.Generate()
	event.IngestedAt = s.clock.Now().UTC()

	inserted, err := s.repo.Insert(ctx, s.db, event)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			inserted = false
		} else {
			return "", fmt.Errorf("%w: insert event: %w", domain.ErrStoreUnavailable, err)
		}
	}

	result := domain.InsertResultInserted
	if !inserted {
		result = domain.InsertResultIgnored
		s.log.Debug("duplicate event ignored",
			zap.String("dedup_key", event.DedupKey),
			zap.String("event_type", event.EventType),
			zap.String("resource_external_id", event.ResourceExternalID),
		)
	}
	s.metrics.RecordEvent(ctx, string(event.ResourceType), strings.ToLower(string(result)))
	return result, nil
}

func (s *Service) Events(ctx context.Context, resourceExternalID string) ([]domain.Event, error) {
	resourceExternalID = strings.TrimSpace(resourceExternalID)
	if resourceExternalID == "" {
		return nil, domain.ErrInvalidEvent
	}
	events, err := s.repo.ListByResource(ctx, s.db, resourceExternalID)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %w", domain.ErrStoreUnavailable, err)
	}
	return events, nil
}

func (s *Service) normalize(event *domain.Event) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}

	event.ResourceExternalID = strings.TrimSpace(event.ResourceExternalID)
	if event.ResourceExternalID == "" {
		return fmt.Errorf("%w: resource_external_id is required", domain.ErrInvalidEvent)
	}
	event.EventType = strings.ToUpper(strings.TrimSpace(event.EventType))
	if event.EventType == "" {
		return fmt.Errorf("%w: event_type is required", domain.ErrInvalidEvent)
	}
	resourceType, ok := domain.ParseResourceType(string(event.ResourceType))
	if !ok {
		return fmt.Errorf("%w: unknown resource_type %q", domain.ErrInvalidEvent, event.ResourceType)
	}
	event.ResourceType = resourceType
	if event.EventDate.IsZero() {
		return fmt.Errorf("%w: event_date is required", domain.ErrInvalidEvent)
	}
	event.EventDate = event.EventDate.UTC()

	if event.ParentResourceExternalID != nil {
		parent := strings.TrimSpace(*event.ParentResourceExternalID)
		if parent == "" {
			event.ParentResourceExternalID = nil
		} else {
			event.ParentResourceExternalID = &parent
		}
	}

	payload := bytes.TrimSpace(event.Payload)
	switch {
	case len(payload) == 0 || bytes.Equal(payload, []byte("null")):
		event.Payload = datatypes.JSON("{}")
	case payload[0] != '{':
		return fmt.Errorf("%w: payload must be an object", domain.ErrInvalidEvent)
	}

	if strings.TrimSpace(event.DedupKey) == "" {
		event.DedupKey = domain.DedupKey("", event.ResourceExternalID, event.EventType, event.EventDate)
	}
	return nil
}
