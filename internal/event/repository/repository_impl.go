package repository

import (
	"context"

	"github.com/smallbiznis/payledger/internal/event/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO events (
			id, dedup_key, resource_type, resource_external_id, parent_resource_external_id,
			event_type, event_date, payload, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dedup_key) DO NOTHING`,
		event.ID,
		event.DedupKey,
		event.ResourceType,
		event.ResourceExternalID,
		event.ParentResourceExternalID,
		event.EventType,
		event.EventDate,
		event.Payload,
		event.IngestedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ListByResource(ctx context.Context, db *gorm.DB, resourceExternalID string) ([]domain.Event, error) {
	var events []domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT id, dedup_key, resource_type, resource_external_id, parent_resource_external_id,
			event_type, event_date, payload, ingested_at
		 FROM events
		 WHERE resource_external_id = ?
		 ORDER BY event_date ASC, id ASC`,
		resourceExternalID,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
