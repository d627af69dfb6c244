package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) (bool, error)
	ListByResource(ctx context.Context, db *gorm.DB, resourceExternalID string) ([]Event, error)
}
