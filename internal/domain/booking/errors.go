package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	errEmptyActivity = errors.New("activity name is empty")
	errWeeklyNow     = errors.New(`weekly bookings cannot use booking_execution "now"`)

	// ErrNoSession is returned by collaborators used before Authenticate succeeded.
	ErrNoSession = errors.New("no authenticated session")
)

// ConfigError is a problem with one configured entry. Index is -1 for
// problems with the document as a whole.
type ConfigError struct {
	Index  int
	Field  string
	Reason string
	Err    error
}

func (e ConfigError) Error() string {
	var b strings.Builder
	if e.Index >= 0 {
		fmt.Fprintf(&b, "class %d: ", e.Index)
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	switch {
	case e.Reason != "":
		b.WriteString(e.Reason)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("invalid configuration")
	}
	return b.String()
}

func (e ConfigError) Unwrap() error { return e.Err }

// TimeResolutionError reports an unparsable class day, class time or booking execution.
type TimeResolutionError struct {
	Field string
	Value string
	Err   error
}

func (e TimeResolutionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e TimeResolutionError) Unwrap() error { return e.Err }

type AuthenticationError struct {
	Reason string
	Err    error
}

func (e AuthenticationError) Error() string {
	msg := "authentication failed"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e AuthenticationError) Unwrap() error { return e.Err }
func (AuthenticationError) Retryable() bool { return false }

// ActivityNotFoundError is returned when no activity, or more than one,
// matches the requested name.
type ActivityNotFoundError struct {
	Name       string
	Ambiguous  bool
	Candidates []string
}

func (e ActivityNotFoundError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("activity %q is ambiguous: %s", e.Name, strings.Join(e.Candidates, ", "))
	}
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("activity %q not found", e.Name)
	}
	return fmt.Sprintf("activity %q not found (available: %s)", e.Name, strings.Join(e.Candidates, ", "))
}

func (ActivityNotFoundError) Retryable() bool { return false }

// SlotNotFoundError stays retryable while Attempt < Grace. A zero Grace
// leaves the bound to the retry policy.
type SlotNotFoundError struct {
	Activity string
	Start    time.Time
	Attempt  int
	Grace    int
}

func (e SlotNotFoundError) Error() string {
	return fmt.Sprintf("no %q slot at %s", e.Activity, e.Start.Format("2006-01-02 15:04:05"))
}

func (e SlotNotFoundError) Retryable() bool {
	return e.Grace <= 0 || e.Attempt < e.Grace
}

// SlotNotOpenError means the slot exists but bookings have not opened yet.
type SlotNotOpenError struct {
	Slot Slot
	Err  error
}

func (e SlotNotOpenError) Error() string {
	return fmt.Sprintf("slot %s at %s is not bookable yet", e.Slot.ID, e.Slot.Start.Format("2006-01-02 15:04:05"))
}

func (e SlotNotOpenError) Unwrap() error { return e.Err }
func (SlotNotOpenError) Retryable() bool { return true }

type RejectReason string

const (
	RejectFull          RejectReason = "full"
	RejectAlreadyBooked RejectReason = "already booked"
)

type BookingRejectedError struct {
	Reason RejectReason
	Slot   Slot
	Err    error
}

func (e BookingRejectedError) Error() string {
	return fmt.Sprintf("booking of slot %s rejected: %s", e.Slot.ID, e.Reason)
}

func (e BookingRejectedError) Unwrap() error { return e.Err }
func (BookingRejectedError) Retryable() bool { return false }

// TransientError wraps network failures, unexpected responses and unknown
// site codes.
type TransientError struct {
	Op  string
	Err error
}

func (e TransientError) Error() string {
	if e.Err == nil {
		return e.Op + ": temporary failure"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e TransientError) Unwrap() error { return e.Err }
func (TransientError) Retryable() bool { return true }

type CancelError struct {
	Slot Slot
	Err  error
}

func (e CancelError) Error() string {
	msg := fmt.Sprintf("cancel slot %s failed", e.Slot.ID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e CancelError) Unwrap() error { return e.Err }
func (CancelError) Retryable() bool { return false }

func IsAuthenticationError(err error) bool {
	var target AuthenticationError
	return errors.As(err, &target)
}

func IsConfigError(err error) bool {
	var target ConfigError
	return errors.As(err, &target)
}

func IsTransientError(err error) bool {
	var target TransientError
	return errors.As(err, &target)
}

// RejectionReason returns the rejection reason carried by err, if any.
func RejectionReason(err error) (RejectReason, bool) {
	var target BookingRejectedError
	if errors.As(err, &target) {
		return target.Reason, true
	}
	return "", false
}
