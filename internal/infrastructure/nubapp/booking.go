package nubapp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

// Site error codes returned by bookActivityCalendar.php.
const (
	codeAlreadyBooked = 5
	codeUnavailable   = 6
	codeNotOpenYet    = 28
)

type actionResult struct {
	Success bool    `json:"success"`
	Error   flexInt `json:"error"`
}

func (c *Client) slotAction(ctx context.Context, op, path string, slot booking.Slot) (actionResult, error) {
	var out actionResult
	if err := c.requireSession(); err != nil {
		return out, err
	}
	res, err := c.postForm(ctx, c.api+path, url.Values{
		"id_user":              {c.idUser},
		"id_activity_calendar": {slot.ID},
	})
	if err != nil {
		return out, err
	}
	if err := decodeJSON(op, res, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *Client) Book(ctx context.Context, slot booking.Slot) error {
	res, err := c.slotAction(ctx, "book", pathBook, slot)
	if err != nil {
		return err
	}
	if res.Success {
		c.log.WithField("slot", slot.ID).Debug("Slot booked")
		return nil
	}
	switch res.Error {
	case codeAlreadyBooked:
		return booking.BookingRejectedError{Reason: booking.RejectAlreadyBooked, Slot: slot}
	case codeUnavailable:
		return booking.BookingRejectedError{Reason: booking.RejectFull, Slot: slot}
	case codeNotOpenYet:
		return booking.SlotNotOpenError{Slot: slot}
	default:
		return booking.TransientError{Op: "book", Err: fmt.Errorf("site error code %d", res.Error)}
	}
}

// Cancel frees a booked slot. The site reports any failure the same way, most
// often because the slot was not booked.
func (c *Client) Cancel(ctx context.Context, slot booking.Slot) error {
	res, err := c.slotAction(ctx, "cancel", pathCancel, slot)
	if err != nil {
		return err
	}
	if !res.Success {
		return booking.CancelError{Slot: slot, Err: fmt.Errorf("site error code %d, slot not booked", res.Error)}
	}
	return nil
}
