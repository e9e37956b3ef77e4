package nubapp

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

const (
	slotTimeLayout  = "2006-01-02 15:04:05"
	queryDateLayout = "02-01-2006"
)

type apiActivity struct {
	ID         flexString `json:"id_activity"`
	Name       string     `json:"name_activity"`
	CategoryID flexString `json:"id_category_activity"`
}

type apiSlot struct {
	ID         flexString `json:"id_activity_calendar"`
	ActivityID flexString `json:"id_activity"`
	Start      string     `json:"start_timestamp"`
	Capacity   flexInt    `json:"capacity"`
	Inscribed  flexInt    `json:"n_inscribed"`
	Booked     flexInt    `json:"booked"`
}

func (c *Client) sessionForm() url.Values {
	form := url.Values{"id_user": {c.idUser}}
	if c.appID != "" {
		form.Set("id_application", c.appID)
	}
	return form
}

func (c *Client) ListActivities(ctx context.Context) ([]booking.Activity, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	res, err := c.postForm(ctx, c.api+pathActivities, c.sessionForm())
	if err != nil {
		return nil, err
	}
	var body struct {
		Data struct {
			Activities []apiActivity `json:"activities"`
		} `json:"data"`
	}
	if err := decodeJSON("activities", res, &body); err != nil {
		return nil, err
	}
	out := make([]booking.Activity, 0, len(body.Data.Activities))
	for _, a := range body.Data.Activities {
		out = append(out, booking.Activity{ID: string(a.ID), Name: a.Name, CategoryID: string(a.CategoryID)})
	}
	return out, nil
}

// ListSlots returns the calendar entries of activity on day. Start times are
// read in day's location.
func (c *Client) ListSlots(ctx context.Context, activity booking.Activity, day time.Time) ([]booking.Slot, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	form := c.sessionForm()
	form.Set("id_category_activity", activity.CategoryID)
	form.Set("start_timestamp", day.Format(queryDateLayout))
	form.Set("end_timestamp", day.Format(queryDateLayout))

	res, err := c.postForm(ctx, c.api+pathSlots, form)
	if err != nil {
		return nil, err
	}
	var body struct {
		Data struct {
			Calendar []apiSlot `json:"activities_calendar"`
		} `json:"data"`
	}
	if err := decodeJSON("slots", res, &body); err != nil {
		return nil, err
	}

	y, m, d := day.Date()
	var out []booking.Slot
	for _, s := range body.Data.Calendar {
		if string(s.ActivityID) != activity.ID {
			continue
		}
		start, err := time.ParseInLocation(slotTimeLayout, s.Start, day.Location())
		if err != nil {
			return nil, booking.TransientError{Op: "slots", Err: fmt.Errorf("slot %s: %w", s.ID, err)}
		}
		if sy, sm, sd := start.Date(); sy != y || sm != m || sd != d {
			continue
		}
		slot := booking.Slot{
			ID:         string(s.ID),
			ActivityID: string(s.ActivityID),
			Start:      start,
			Booked:     s.Booked > 0,
		}
		switch {
		case s.Capacity <= 0:
			slot.Capacity = booking.CapacityUnknown
		case s.Inscribed >= s.Capacity:
			slot.Capacity = booking.CapacityFull
		default:
			slot.Capacity = booking.CapacityAvailable
		}
		out = append(out, slot)
	}
	return out, nil
}
