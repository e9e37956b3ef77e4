// Package executor performs a single booking attempt for a plan.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/example/sport-scheduler/internal/application/retry"
	"github.com/example/sport-scheduler/internal/domain/booking"
)

type Kind string

const (
	KindSucceeded Kind = "succeeded"
	KindRetryable Kind = "retryable"
	KindFatal     Kind = "fatal"
)

type Outcome struct {
	Kind   Kind
	Reason string
	Slot   booking.Slot
	err    error
}

// Err returns nil on success and the classified failure otherwise, in a form
// retry.Classify understands.
func (o Outcome) Err() error {
	switch o.Kind {
	case KindSucceeded:
		return nil
	case KindFatal:
		return fatalError{o.err}
	default:
		return retryableError{o.err}
	}
}

type fatalError struct{ err error }

func (e fatalError) Error() string { return e.err.Error() }
func (e fatalError) Unwrap() error { return e.err }
func (fatalError) Retryable() bool { return false }

type retryableError struct{ err error }

func (e retryableError) Error() string { return e.err.Error() }
func (e retryableError) Unwrap() error { return e.err }
func (retryableError) Retryable() bool { return true }

type Executor struct {
	// SlotGraceAttempts is how many attempts a missing slot stays retryable.
	// Zero leaves the bound to the retry policy.
	SlotGraceAttempts int
	Logger            *logrus.Entry
}

func (e Executor) logger() *logrus.Entry {
	if e.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return e.Logger
}

// Execute resolves the plan's activity and slot through session and books it.
// attempt is the 1-based attempt number within the current retry run.
func (e Executor) Execute(ctx context.Context, session booking.Session, plan *booking.Plan, attempt int) Outcome {
	log := e.logger().WithFields(logrus.Fields{
		"activity": plan.Request.Activity,
		"target":   plan.Target.Format("2006-01-02 15:04:05"),
		"attempt":  attempt,
	})

	activities, err := session.ListActivities(ctx)
	if err != nil {
		return failure(fmt.Errorf("list activities: %w", err))
	}
	activity, err := booking.MatchActivity(plan.Request.Activity, activities)
	if err != nil {
		return failure(err)
	}

	slots, err := session.ListSlots(ctx, activity, plan.Target)
	if err != nil {
		return failure(fmt.Errorf("list slots: %w", err))
	}
	slot, ok := booking.MatchSlot(plan.Target, slots)
	if !ok {
		return failure(booking.SlotNotFoundError{
			Activity: activity.Name,
			Start:    plan.Target,
			Attempt:  attempt,
			Grace:    e.SlotGraceAttempts,
		})
	}
	if slot.Booked {
		return failure(booking.BookingRejectedError{Reason: booking.RejectAlreadyBooked, Slot: slot})
	}

	log.WithField("slot", slot.ID).Debug("booking slot")
	if err := session.Book(ctx, slot); err != nil {
		o := failure(fmt.Errorf("book: %w", err))
		o.Slot = slot
		return o
	}
	return Outcome{Kind: KindSucceeded, Slot: slot}
}

func failure(err error) Outcome {
	kind := KindRetryable
	if retry.Classify(err) == retry.OutcomeFatal {
		kind = KindFatal
	}
	var rejected booking.BookingRejectedError
	reason := err.Error()
	if errors.As(err, &rejected) {
		reason = string(rejected.Reason)
	}
	return Outcome{Kind: kind, Reason: reason, err: err}
}
