package booking

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchActivity(t *testing.T) {
	activities := []Activity{
		{ID: "1", Name: "Yoga"},
		{ID: "2", Name: "Pilates"},
		{ID: "3", Name: "yoga"},
		{ID: "4", Name: "Body Pump"},
		{ID: "5", Name: "body pump"},
	}

	a, err := MatchActivity("Yoga", activities)
	require.NoError(t, err)
	assert.Equal(t, "1", a.ID)

	a, err = MatchActivity("PILATES", activities)
	require.NoError(t, err)
	assert.Equal(t, "2", a.ID)

	_, err = MatchActivity("BODY PUMP", activities)
	var nf ActivityNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.True(t, nf.Ambiguous)
	assert.Len(t, nf.Candidates, 2)

	_, err = MatchActivity("Zumba", activities)
	require.True(t, errors.As(err, &nf))
	assert.False(t, nf.Ambiguous)
	assert.Equal(t, []string{"Body Pump", "Pilates", "Yoga", "body pump", "yoga"}, nf.Candidates)
	assert.False(t, nf.Retryable())
}

func TestMatchSlot(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	start := time.Date(2025, time.January, 20, 18, 0, 0, 0, loc)
	slots := []Slot{
		{ID: "a", Start: start.Add(-time.Hour)},
		{ID: "b", Start: start.UTC()},
	}

	s, ok := MatchSlot(start, slots)
	require.True(t, ok)
	assert.Equal(t, "b", s.ID)

	_, ok = MatchSlot(start.Add(time.Minute), slots)
	assert.False(t, ok)
}

func TestErrorRetryability(t *testing.T) {
	tests := []struct {
		err  interface{ Retryable() bool }
		want bool
	}{
		{AuthenticationError{Reason: "bad password"}, false},
		{ActivityNotFoundError{Name: "x"}, false},
		{SlotNotFoundError{Attempt: 1, Grace: 0}, true},
		{SlotNotFoundError{Attempt: 5, Grace: 0}, true},
		{SlotNotFoundError{Attempt: 1, Grace: 2}, true},
		{SlotNotFoundError{Attempt: 2, Grace: 2}, false},
		{SlotNotOpenError{}, true},
		{BookingRejectedError{Reason: RejectFull}, false},
		{BookingRejectedError{Reason: RejectAlreadyBooked}, false},
		{TransientError{Op: "book"}, true},
		{CancelError{}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Retryable(), "%T %v", tt.err, tt.err)
	}
}

func TestErrorHelpers(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	wrapped := fmt.Errorf("list slots: %w", TransientError{Op: "slots", Err: cause})
	assert.True(t, IsTransientError(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.False(t, IsAuthenticationError(wrapped))

	rejected := fmt.Errorf("book: %w", BookingRejectedError{Reason: RejectFull})
	reason, ok := RejectionReason(rejected)
	require.True(t, ok)
	assert.Equal(t, RejectFull, reason)

	_, ok = RejectionReason(cause)
	assert.False(t, ok)

	assert.Equal(t, "class 2: class_day: bad", ConfigError{Index: 2, Field: "class_day", Reason: "bad"}.Error())
	assert.Equal(t, "email: missing", ConfigError{Index: -1, Field: "email", Reason: "missing"}.Error())
}
