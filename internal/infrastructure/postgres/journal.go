// Package postgres stores the booking attempt journal.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Open connects a pool and applies the schema.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pool, nil
}

// Journal writes attempts and outcomes. Rows are never read back by the
// service.
type Journal struct{ db execer }

func NewJournal(db execer) *Journal { return &Journal{db: db} }

func (j *Journal) RecordAttempt(ctx context.Context, rec booking.AttemptRecord) error {
	_, err := j.db.Exec(ctx, `
		INSERT INTO booking_attempts (id, plan_id, cycle, activity, target_at, attempt, outcome, error, attempted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, uuid.New(), rec.PlanID, rec.Cycle, rec.Activity, rec.Target, rec.Number, rec.Outcome, rec.Error, rec.At)
	if err != nil {
		return fmt.Errorf("journal attempt: %w", err)
	}
	return nil
}

func (j *Journal) RecordOutcome(ctx context.Context, ev booking.OutcomeEvent) error {
	_, err := j.db.Exec(ctx, `
		INSERT INTO booking_outcomes (plan_id, cycle, activity, target_at, execute_at, weekly, status, attempts, reason, slot_id, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (plan_id) DO UPDATE
		SET status=EXCLUDED.status, attempts=EXCLUDED.attempts, reason=EXCLUDED.reason,
			slot_id=EXCLUDED.slot_id, resolved_at=EXCLUDED.resolved_at
	`, ev.PlanID, ev.Cycle, ev.Activity, ev.Target, ev.ExecuteAt, ev.Weekly, string(ev.Status), ev.Attempts, ev.Reason, ev.SlotID, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("journal outcome: %w", err)
	}
	return nil
}
