package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/sport-scheduler/internal/timeutil"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusInProgress  Status = "in_progress"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusRescheduled Status = "rescheduled"
)

const successorDays = 7

// Plan is a Request resolved to concrete timestamps.
type Plan struct {
	ID    uuid.UUID
	Cycle int

	Request Request

	// Target is the class occurrence to book.
	Target time.Time
	// ExecuteAt is when the booking attempt runs. Always <= Target.
	ExecuteAt time.Time
	// OpensAt is when the site starts accepting bookings for Target. Zero
	// when no booking window is configured.
	OpensAt time.Time

	Immediate bool
	Status    Status
}

// NewPlan resolves req against now. windowDays, when positive, is how far
// ahead of a class the site opens bookings; an attempt planned earlier than
// that is moved to the opening instant.
func NewPlan(req Request, now time.Time, windowDays int) (*Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p := &Plan{
		ID:        uuid.New(),
		Request:   req,
		ExecuteAt: req.Execution.Resolve(now),
		Immediate: req.Execution.Now,
		Status:    StatusPending,
	}
	p.Target = timeutil.Next(req.ClassDay, req.ClassTime, p.ExecuteAt)
	if windowDays > 0 {
		p.OpensAt = p.Target.AddDate(0, 0, -windowDays)
		if p.ExecuteAt.Before(p.OpensAt) {
			p.ExecuteAt = p.OpensAt
			p.Immediate = false
		}
	}
	if p.ExecuteAt.After(p.Target) || p.ExecuteAt.Before(now) {
		p.ExecuteAt = now
		p.Immediate = true
	}
	return p, nil
}

// Successor returns the next weekly occurrence, with every timestamp advanced
// seven calendar days, and marks p rescheduled. One-off plans have none.
func (p *Plan) Successor() (*Plan, bool) {
	if !p.Request.Weekly {
		return nil, false
	}
	next := &Plan{
		ID:        uuid.New(),
		Cycle:     p.Cycle + 1,
		Request:   p.Request,
		Target:    p.Target.AddDate(0, 0, successorDays),
		ExecuteAt: p.ExecuteAt.AddDate(0, 0, successorDays),
		Status:    StatusPending,
	}
	if !p.OpensAt.IsZero() {
		next.OpensAt = p.OpensAt.AddDate(0, 0, successorDays)
	}
	p.Status = StatusRescheduled
	return next, true
}

// SkipPast moves a pending plan forward whole weeks until its class is after
// now, and runs it immediately if its execution time has already passed. It
// returns the number of weeks skipped.
func (p *Plan) SkipPast(now time.Time) int {
	skipped := 0
	for !p.Target.After(now) {
		p.Target = p.Target.AddDate(0, 0, successorDays)
		p.ExecuteAt = p.ExecuteAt.AddDate(0, 0, successorDays)
		if !p.OpensAt.IsZero() {
			p.OpensAt = p.OpensAt.AddDate(0, 0, successorDays)
		}
		skipped++
	}
	if p.ExecuteAt.Before(now) {
		p.ExecuteAt = now
		p.Immediate = true
	}
	return skipped
}

func (p *Plan) Start()   { p.Status = StatusInProgress }
func (p *Plan) Succeed() { p.Status = StatusSucceeded }
func (p *Plan) Fail()    { p.Status = StatusFailed }

// Resolved reports whether the plan reached a terminal outcome.
func (p *Plan) Resolved() bool {
	return p.Status == StatusSucceeded || p.Status == StatusFailed
}

func (p *Plan) String() string {
	return fmt.Sprintf("%s on %s (run at %s)",
		p.Request.Activity,
		p.Target.Format("Mon 2006-01-02 15:04:05"),
		p.ExecuteAt.Format("Mon 2006-01-02 15:04:05"))
}
