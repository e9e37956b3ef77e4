package postgres

import (
	"context"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS booking_attempts (
	id UUID PRIMARY KEY,
	plan_id UUID NOT NULL,
	cycle INTEGER NOT NULL,
	activity TEXT NOT NULL,
	target_at TIMESTAMPTZ NOT NULL,
	attempt INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	attempted_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS booking_outcomes (
	plan_id UUID PRIMARY KEY,
	cycle INTEGER NOT NULL,
	activity TEXT NOT NULL,
	target_at TIMESTAMPTZ NOT NULL,
	execute_at TIMESTAMPTZ NOT NULL,
	weekly BOOLEAN NOT NULL,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	slot_id TEXT NOT NULL DEFAULT '',
	resolved_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_booking_attempts_plan ON booking_attempts(plan_id);
CREATE INDEX IF NOT EXISTS idx_booking_outcomes_activity ON booking_outcomes(activity, target_at);
`

// Migrate creates the journal tables. It is idempotent.
func Migrate(ctx context.Context, db execer) error {
	_, err := db.Exec(ctx, schemaSQL)
	return err
}
