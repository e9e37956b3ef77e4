package executor

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/sport-scheduler/internal/application/retry"
	"github.com/example/sport-scheduler/internal/domain/booking"
	"github.com/example/sport-scheduler/internal/domain/booking/bookingtest"
	"github.com/example/sport-scheduler/internal/timeutil"
	"github.com/example/sport-scheduler/internal/timeutil/timeutiltest"
)

var target = time.Date(2025, time.January, 20, 18, 0, 0, 0, time.UTC)

func newExecutor(grace int) Executor {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return Executor{SlotGraceAttempts: grace, Logger: logrus.NewEntry(l)}
}

func newSession() *bookingtest.Session {
	return &bookingtest.Session{
		Activities: []booking.Activity{{ID: "10", Name: "Yoga"}, {ID: "11", Name: "Pilates"}},
		Slots:      bookingtest.WeeklySlots("10", target, 2),
	}
}

func newPlan(t *testing.T, activity string) *booking.Plan {
	t.Helper()
	es, err := timeutil.ParseExecSpec("now")
	require.NoError(t, err)
	p, err := booking.NewPlan(booking.Request{
		Activity:  activity,
		ClassDay:  time.Monday,
		ClassTime: timeutil.Clock{Hour: 18},
		Execution: es,
	}, time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	require.Equal(t, target, p.Target)
	return p
}

func TestExecuteBooksMatchingSlot(t *testing.T) {
	s := newSession()
	out := newExecutor(0).Execute(context.Background(), s, newPlan(t, "yoga"), 1)

	assert.Equal(t, KindSucceeded, out.Kind)
	assert.NoError(t, out.Err())
	require.Len(t, s.Booked, 1)
	assert.Equal(t, target, s.Booked[0].Start)
	assert.Equal(t, []string{"activities", "slots", "book"}, s.CallLog())
}

func TestExecuteUnknownActivityIsFatal(t *testing.T) {
	s := newSession()
	out := newExecutor(0).Execute(context.Background(), s, newPlan(t, "Zumba"), 1)

	assert.Equal(t, KindFatal, out.Kind)
	assert.Equal(t, retry.OutcomeFatal, retry.Classify(out.Err()))
	var nf booking.ActivityNotFoundError
	assert.True(t, errors.As(out.Err(), &nf))
	assert.Empty(t, s.Booked)
}

func TestExecuteMissingSlotGrace(t *testing.T) {
	s := newSession()
	s.Slots = nil
	ex := newExecutor(2)
	p := newPlan(t, "Yoga")

	first := ex.Execute(context.Background(), s, p, 1)
	assert.Equal(t, KindRetryable, first.Kind)

	second := ex.Execute(context.Background(), s, p, 2)
	assert.Equal(t, KindFatal, second.Kind)

	unbounded := newExecutor(0).Execute(context.Background(), s, p, 10)
	assert.Equal(t, KindRetryable, unbounded.Kind)
}

func TestExecuteBookErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		reason string
	}{
		{"full", booking.BookingRejectedError{Reason: booking.RejectFull}, KindFatal, "full"},
		{"already booked", booking.BookingRejectedError{Reason: booking.RejectAlreadyBooked}, KindFatal, "already booked"},
		{"not open", booking.SlotNotOpenError{}, KindRetryable, ""},
		{"transient", booking.TransientError{Op: "book", Err: errors.New("502")}, KindRetryable, ""},
		{"unknown", errors.New("weird"), KindRetryable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession()
			s.BookErrs = []error{tt.err}
			out := newExecutor(0).Execute(context.Background(), s, newPlan(t, "Yoga"), 1)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, target, out.Slot.Start)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, out.Reason)
			}
			assert.ErrorIs(t, out.Err(), tt.err)
		})
	}
}

func TestExecuteSlotAlreadyHeld(t *testing.T) {
	s := newSession()
	s.Slots[0].Booked = true
	out := newExecutor(0).Execute(context.Background(), s, newPlan(t, "Yoga"), 1)

	assert.Equal(t, KindFatal, out.Kind)
	assert.Equal(t, string(booking.RejectAlreadyBooked), out.Reason)
	assert.NotContains(t, s.CallLog(), "book")
}

func TestExecuteListingFailureIsRetryable(t *testing.T) {
	s := newSession()
	s.ActivitiesErrs = []error{booking.TransientError{Op: "activities"}}
	out := newExecutor(0).Execute(context.Background(), s, newPlan(t, "Yoga"), 1)
	assert.Equal(t, KindRetryable, out.Kind)

	s = newSession()
	s.SlotsErrs = []error{booking.AuthenticationError{Reason: "session expired"}}
	out = newExecutor(0).Execute(context.Background(), s, newPlan(t, "Yoga"), 1)
	assert.Equal(t, KindFatal, out.Kind)
	assert.True(t, booking.IsAuthenticationError(out.Err()))
}

func TestExecutorUnderRetryPolicy(t *testing.T) {
	s := newSession()
	s.BookErrs = []error{booking.SlotNotOpenError{}, booking.SlotNotOpenError{}}
	p := newPlan(t, "Yoga")
	ex := newExecutor(0)
	l := logrus.New()
	l.SetOutput(io.Discard)

	clock := timeutiltest.NewFakeClock(time.Date(2025, time.January, 18, 18, 0, 0, 0, time.UTC))
	policy := retry.Policy{MaxAttempts: 3, Delay: time.Minute, Clock: clock, Logger: logrus.NewEntry(l)}
	res := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return ex.Execute(ctx, s, p, attempt).Err()
	})
	assert.True(t, res.Succeeded())
	assert.Len(t, res.Attempts, 3)
	assert.Len(t, s.Booked, 1)
}
