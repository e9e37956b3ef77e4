package usecases

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

// Catalog lists what the centre offers.
type Catalog struct {
	Session     booking.Session
	Credentials booking.Credentials
}

// Activities returns the centre's activities sorted by name.
func (c Catalog) Activities(ctx context.Context) ([]booking.Activity, error) {
	if err := login(ctx, c.Session, c.Credentials); err != nil {
		return nil, err
	}
	activities, err := c.Session.ListActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	sort.SliceStable(activities, func(i, j int) bool { return activities[i].Name < activities[j].Name })
	return activities, nil
}

// DailySlots returns the slots of activity on day, earliest first.
func (c Catalog) DailySlots(ctx context.Context, activity string, day time.Time) ([]booking.Slot, error) {
	if err := login(ctx, c.Session, c.Credentials); err != nil {
		return nil, err
	}
	activities, err := c.Session.ListActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	a, err := booking.MatchActivity(activity, activities)
	if err != nil {
		return nil, err
	}
	slots, err := c.Session.ListSlots(ctx, a, day)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, nil
}
