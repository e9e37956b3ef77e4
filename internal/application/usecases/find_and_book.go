package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

var errNoSession = errors.New("session is nil")

// FindAndBook books the slot of an activity starting at a given time, once,
// with no scheduling or retries.
type FindAndBook struct {
	Session     booking.Session
	Credentials booking.Credentials
}

func (u FindAndBook) Execute(ctx context.Context, activity string, start time.Time) (booking.Slot, error) {
	slot, err := findSlot(ctx, u.Session, u.Credentials, activity, start)
	if err != nil {
		return booking.Slot{}, err
	}
	if slot.Booked {
		return slot, booking.BookingRejectedError{Reason: booking.RejectAlreadyBooked, Slot: slot}
	}
	if err := u.Session.Book(ctx, slot); err != nil {
		return slot, fmt.Errorf("book %s: %w", activity, err)
	}
	return slot, nil
}

// FindAndCancel cancels the user's booking of an activity starting at a given time.
type FindAndCancel struct {
	Session     booking.Session
	Credentials booking.Credentials
}

func (u FindAndCancel) Execute(ctx context.Context, activity string, start time.Time) (booking.Slot, error) {
	slot, err := findSlot(ctx, u.Session, u.Credentials, activity, start)
	if err != nil {
		return booking.Slot{}, err
	}
	if err := u.Session.Cancel(ctx, slot); err != nil {
		var cancelErr booking.CancelError
		if errors.As(err, &cancelErr) {
			return slot, err
		}
		return slot, booking.CancelError{Slot: slot, Err: err}
	}
	return slot, nil
}

func login(ctx context.Context, s booking.Session, creds booking.Credentials) error {
	if s == nil {
		return errNoSession
	}
	return s.Authenticate(ctx, creds)
}

func findSlot(ctx context.Context, s booking.Session, creds booking.Credentials, name string, start time.Time) (booking.Slot, error) {
	if err := login(ctx, s, creds); err != nil {
		return booking.Slot{}, err
	}
	activities, err := s.ListActivities(ctx)
	if err != nil {
		return booking.Slot{}, fmt.Errorf("list activities: %w", err)
	}
	activity, err := booking.MatchActivity(name, activities)
	if err != nil {
		return booking.Slot{}, err
	}
	slots, err := s.ListSlots(ctx, activity, start)
	if err != nil {
		return booking.Slot{}, fmt.Errorf("list slots: %w", err)
	}
	slot, ok := booking.MatchSlot(start, slots)
	if !ok {
		return booking.Slot{}, booking.SlotNotFoundError{Activity: activity.Name, Start: start, Attempt: 1, Grace: 1}
	}
	return slot, nil
}
