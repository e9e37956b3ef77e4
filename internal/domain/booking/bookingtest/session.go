// Package bookingtest provides an in-memory booking.Session for tests.
package bookingtest

import (
	"context"
	"sync"
	"time"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

// Session serves a fixed catalogue. Each *Errs queue is consumed one entry per
// call; a nil entry or an empty queue means the call succeeds.
type Session struct {
	mu sync.Mutex

	Activities []booking.Activity
	Slots      []booking.Slot

	AuthErrs       []error
	ActivitiesErrs []error
	SlotsErrs      []error
	BookErrs       []error
	CancelErrs     []error

	// OnBook runs inside Book before the scripted error is consumed.
	OnBook func(ctx context.Context, slot booking.Slot)

	Calls     []string
	AuthCount int
	Booked    []booking.Slot
	Cancelled []booking.Slot

	authed   bool
	inflight int
	// Overlaps counts calls that started while another was still running.
	Overlaps int
}

func (s *Session) enter(name string) func() {
	s.mu.Lock()
	s.Calls = append(s.Calls, name)
	if s.inflight > 0 {
		s.Overlaps++
	}
	s.inflight++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (s *Session) Authenticate(ctx context.Context, creds booking.Credentials) error {
	defer s.enter("authenticate")()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AuthCount++
	if err := pop(&s.AuthErrs); err != nil {
		s.authed = false
		return err
	}
	s.authed = true
	return ctx.Err()
}

func (s *Session) ListActivities(ctx context.Context) ([]booking.Activity, error) {
	defer s.enter("activities")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := pop(&s.ActivitiesErrs); err != nil {
		return nil, err
	}
	out := make([]booking.Activity, len(s.Activities))
	copy(out, s.Activities)
	return out, ctx.Err()
}

func (s *Session) ListSlots(ctx context.Context, activity booking.Activity, day time.Time) ([]booking.Slot, error) {
	defer s.enter("slots")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := pop(&s.SlotsErrs); err != nil {
		return nil, err
	}
	y, m, d := day.Date()
	var out []booking.Slot
	for _, sl := range s.Slots {
		sy, sm, sd := sl.Start.In(day.Location()).Date()
		if sl.ActivityID == activity.ID && sy == y && sm == m && sd == d {
			out = append(out, sl)
		}
	}
	return out, ctx.Err()
}

func (s *Session) Book(ctx context.Context, slot booking.Slot) error {
	defer s.enter("book")()
	if s.OnBook != nil {
		s.OnBook(ctx, slot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := pop(&s.BookErrs); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Booked = append(s.Booked, slot)
	return nil
}

func (s *Session) Cancel(ctx context.Context, slot booking.Slot) error {
	defer s.enter("cancel")()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := pop(&s.CancelErrs); err != nil {
		return err
	}
	s.Cancelled = append(s.Cancelled, slot)
	return ctx.Err()
}

// Authenticated reports whether the last Authenticate call succeeded.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

// CallLog returns a copy of the call names seen so far.
func (s *Session) CallLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Calls))
	copy(out, s.Calls)
	return out
}

// WeeklySlots returns one slot per week at the wall-clock time of first,
// for weeks consecutive weeks.
func WeeklySlots(activityID string, first time.Time, weeks int) []booking.Slot {
	out := make([]booking.Slot, 0, weeks)
	for i := 0; i < weeks; i++ {
		start := first.AddDate(0, 0, 7*i)
		out = append(out, booking.Slot{
			ID:         activityID + "-" + start.Format("20060102T1504"),
			ActivityID: activityID,
			Start:      start,
			Capacity:   booking.CapacityAvailable,
		})
	}
	return out
}
