package migration

import (
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the embedded postgres migrations for local runs and tests.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id BIGINT PRIMARY KEY,
		dedup_key TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_external_id TEXT NOT NULL,
		parent_resource_external_id TEXT,
		event_type TEXT NOT NULL,
		event_date DATETIME NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		ingested_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_events_dedup_key ON events (dedup_key)`,
	`CREATE INDEX IF NOT EXISTS ix_events_resource ON events (resource_external_id, event_date, id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGINT PRIMARY KEY,
		external_id TEXT NOT NULL,
		parent_external_id TEXT,
		gateway_account_id TEXT NOT NULL DEFAULT '',
		transaction_type TEXT NOT NULL,
		state TEXT NOT NULL,
		amount BIGINT,
		reference TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		cardholder_name TEXT NOT NULL DEFAULT '',
		created_date DATETIME NOT NULL,
		transaction_details TEXT NOT NULL DEFAULT '{}',
		event_count INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_external_id ON transactions (external_id)`,
	`CREATE INDEX IF NOT EXISTS ix_transactions_account_id ON transactions (gateway_account_id, id)`,
}

func ApplySQLiteSchema(conn *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
