package domain

import (
	"context"

	"github.com/smallbiznis/payledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert writes the row only when it covers more events than the stored
	// one. It reports whether the row was written.
	Upsert(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, externalID string) (*Transaction, error)
	Search(ctx context.Context, db *gorm.DB, filter SearchFilter, page pagination.Pagination) ([]Transaction, error)
	Count(ctx context.Context, db *gorm.DB, filter SearchFilter) (int64, error)
}
