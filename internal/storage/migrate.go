package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema if it does not exist. Statements are
// idempotent so the server can run it unconditionally at startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			is_beeping BOOLEAN NOT NULL DEFAULT FALSE,
			queue_size INTEGER NOT NULL DEFAULT 0,
			capacity   INTEGER NOT NULL DEFAULT 0,
			push_token TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS queue_entries (
			id          UUID PRIMARY KEY,
			beeper_id   UUID NOT NULL REFERENCES users(id),
			rider_id    UUID NOT NULL REFERENCES users(id),
			origin      TEXT NOT NULL,
			destination TEXT NOT NULL,
			group_size  INTEGER NOT NULL CHECK (group_size > 0),
			enqueued_at TIMESTAMPTZ NOT NULL,
			accepted    BOOLEAN NOT NULL DEFAULT FALSE,
			progress    TEXT NOT NULL DEFAULT 'waiting'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_entries_beeper
			ON queue_entries (beeper_id, enqueued_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_entries_rider
			ON queue_entries (rider_id)`,
		`CREATE TABLE IF NOT EXISTS beeps (
			id           UUID PRIMARY KEY,
			beeper_id    UUID NOT NULL,
			rider_id     UUID NOT NULL,
			origin       TEXT NOT NULL,
			destination  TEXT NOT NULL,
			group_size   INTEGER NOT NULL,
			outcome      TEXT NOT NULL,
			enqueued_at  TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_beeps_beeper
			ON beeps (beeper_id, completed_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
