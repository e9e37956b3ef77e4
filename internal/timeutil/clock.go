package timeutil

import (
	"context"
	"time"
)

// MaxSleepChunk bounds a single timer so that wall-clock jumps (suspend/resume,
// NTP corrections) are noticed within the hour.
const MaxSleepChunk = time.Hour

// Source is the time source the scheduler and retry policy depend on.
type Source interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock reads the wall clock and reports it in Location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SleepUntil waits until src reports a time at or after t. Each wait is capped at
// MaxSleepChunk and the remaining duration is recomputed from src.Now().
func SleepUntil(ctx context.Context, src Source, t time.Time) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := t.Sub(src.Now())
		if remaining <= 0 {
			return nil
		}
		if remaining > MaxSleepChunk {
			remaining = MaxSleepChunk
		}
		if err := src.Sleep(ctx, remaining); err != nil {
			return err
		}
	}
}
