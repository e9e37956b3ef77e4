package booking

import (
	"context"
	"time"

	"github.com/example/sport-scheduler/internal/timeutil"
)

// Request is one configured class to book. It is immutable once loaded.
type Request struct {
	Activity  string
	ClassDay  time.Weekday
	ClassTime timeutil.Clock
	Execution timeutil.ExecSpec
	Weekly    bool
}

// Validate returns a ConfigError with Index -1; loaders fill in the position.
func (r Request) Validate() error {
	if r.Activity == "" {
		return ConfigError{Index: -1, Field: "activity", Err: errEmptyActivity}
	}
	if r.Weekly && r.Execution.Now {
		return ConfigError{Index: -1, Field: "booking_execution", Err: errWeeklyNow}
	}
	return nil
}

type Activity struct {
	ID   string
	Name string
	// CategoryID groups activities on the site calendar.
	CategoryID string
}

type CapacityState string

const (
	CapacityUnknown   CapacityState = ""
	CapacityAvailable CapacityState = "available"
	CapacityFull      CapacityState = "full"
)

// Slot is a concrete occurrence of an activity.
type Slot struct {
	ID         string
	ActivityID string
	Start      time.Time
	// Booked reports the slot is already held by the authenticated user.
	Booked   bool
	Capacity CapacityState
}

type Credentials struct {
	Email    string
	Password string
	Centre   string
}

// Session is the authenticated connection to the reservation site. Calls are
// not safe for concurrent use; callers serialise access.
type Session interface {
	Authenticate(ctx context.Context, creds Credentials) error
	ListActivities(ctx context.Context) ([]Activity, error)
	// ListSlots returns the slots of activity on the calendar date of day.
	ListSlots(ctx context.Context, activity Activity, day time.Time) ([]Slot, error)
	Book(ctx context.Context, slot Slot) error
	Cancel(ctx context.Context, slot Slot) error
}
