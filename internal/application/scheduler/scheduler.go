// Package scheduler keeps the working set of booking plans and runs each one
// when it falls due.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/sport-scheduler/internal/application/executor"
	"github.com/example/sport-scheduler/internal/application/retry"
	"github.com/example/sport-scheduler/internal/domain/booking"
	"github.com/example/sport-scheduler/internal/timeutil"
)

// Journal records attempts and outcomes for audit. It is never read back.
type Journal interface {
	RecordAttempt(ctx context.Context, rec booking.AttemptRecord) error
	RecordOutcome(ctx context.Context, ev booking.OutcomeEvent) error
}

type Notifier interface {
	PublishOutcome(ctx context.Context, ev booking.OutcomeEvent) error
}

// Locker guards the site account across processes. The returned release
// function is always called, even when the attempt fails.
type Locker interface {
	Lock(ctx context.Context) (release func(context.Context) error, err error)
}

// DefaultRecordTimeout bounds each journal or notifier call.
const DefaultRecordTimeout = 10 * time.Second

type Options struct {
	Credentials booking.Credentials

	// Weekly applies to recurring plans, OneOff to the rest.
	Weekly retry.Policy
	OneOff retry.Policy

	Executor executor.Executor
	// Offset delays non-immediate plans past their execution time.
	Offset time.Duration

	Clock    timeutil.Source
	Logger   *logrus.Entry
	Journal  Journal
	Notifier Notifier
	Locker   Locker
	// RecordTimeout bounds journal and notifier calls. They outlive
	// cancellation of the run so a stopping service still records outcomes.
	RecordTimeout time.Duration
}

type Scheduler struct {
	session booking.Session
	opts    Options
	clock   timeutil.Source
	log     *logrus.Entry

	// sessionMu serialises access to session.
	sessionMu sync.Mutex

	mu        sync.Mutex
	queue     planQueue
	seq       uint64
	interrupt context.CancelFunc
}

func New(session booking.Session, opts Options) *Scheduler {
	s := &Scheduler{session: session, opts: opts, clock: opts.Clock, log: opts.Logger}
	if s.clock == nil {
		s.clock = timeutil.SystemClock{}
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("component", "scheduler")
	for _, p := range []*retry.Policy{&s.opts.Weekly, &s.opts.OneOff} {
		if p.Clock == nil {
			p.Clock = s.clock
		}
		if p.Logger == nil {
			p.Logger = s.log
		}
	}
	if s.opts.RecordTimeout <= 0 {
		s.opts.RecordTimeout = DefaultRecordTimeout
	}
	if s.opts.Executor.Logger == nil {
		s.opts.Executor.Logger = s.log
	}
	return s
}

// Add inserts a plan into the working set. It is safe to call while Run is
// waiting; an earlier plan wakes the loop.
func (s *Scheduler) Add(p *booking.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	heap.Push(&s.queue, queued{plan: p, seq: s.seq})
	if s.interrupt != nil && s.queue.peek() == p {
		s.interrupt()
	}
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Plans returns the pending plans in execution order.
func (s *Scheduler) Plans() []*booking.Plan {
	s.mu.Lock()
	items := make([]queued, len(s.queue))
	copy(items, s.queue)
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return planQueue(items).Less(i, j) })
	out := make([]*booking.Plan, len(items))
	for i, it := range items {
		out[i] = it.plan
	}
	return out
}

// Validate logs in once and drops plans whose activity the site does not
// offer. Rejected credentials are returned; other failures only skip the
// check.
func (s *Scheduler) Validate(ctx context.Context) error {
	var activities []booking.Activity
	err := s.withSession(ctx, func(ctx context.Context) error {
		if err := s.session.Authenticate(ctx, s.opts.Credentials); err != nil {
			return err
		}
		var err error
		activities, err = s.session.ListActivities(ctx)
		return err
	})
	if err != nil {
		if booking.IsAuthenticationError(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.log.WithError(err).Warn("[SCHEDULER] Could not validate activities, continuing")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.queue[:0]
	for _, it := range s.queue {
		if _, err := booking.MatchActivity(it.plan.Request.Activity, activities); err != nil {
			s.log.WithError(err).WithField("plan", it.plan.ID).Error("[SCHEDULER] Dropping booking")
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = queued{}
	}
	s.queue = kept
	heap.Init(&s.queue)
	return nil
}

// Run executes plans in order until the working set is empty or ctx is done.
// A plan interrupted by cancellation is dropped without an outcome.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infof("[SCHEDULER] Started with %d booking(s)", s.Len())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		next := s.queue.peek()
		waitCtx, cancel := context.WithCancel(ctx)
		s.interrupt = cancel
		s.mu.Unlock()

		if next == nil {
			cancel()
			s.log.Info("[SCHEDULER] No bookings left, stopping")
			return nil
		}

		due := s.dueAt(next)
		s.log.WithFields(planFields(next)).Infof("[SCHEDULER] Next booking at %s", due.Format(time.RFC3339))
		err := timeutil.SleepUntil(waitCtx, s.clock, due)

		s.mu.Lock()
		s.interrupt = nil
		s.mu.Unlock()
		cancel()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.log.Info("[SCHEDULER] Stopped while waiting")
				return ctxErr
			}
			s.log.Debug("[SCHEDULER] Woken by a new booking")
			continue
		}

		s.mu.Lock()
		if s.queue.peek() != next {
			s.mu.Unlock()
			continue
		}
		s.queue.pop()
		s.mu.Unlock()

		if err := s.runPlan(ctx, next); err != nil {
			return err
		}
	}
}

func (s *Scheduler) dueAt(p *booking.Plan) time.Time {
	if p.Immediate {
		return p.ExecuteAt
	}
	return p.ExecuteAt.Add(s.opts.Offset)
}

func (s *Scheduler) policyFor(p *booking.Plan) retry.Policy {
	if p.Request.Weekly {
		return s.opts.Weekly
	}
	return s.opts.OneOff
}

// runPlan executes one plan and re-arms it when weekly. It returns an error
// only when ctx was cancelled mid-plan.
func (s *Scheduler) runPlan(ctx context.Context, p *booking.Plan) error {
	log := s.log.WithFields(planFields(p))
	p.Start()
	log.Info("[SCHEDULER] Executing booking")

	var last executor.Outcome
	needAuth := true
	policy := s.policyFor(p)
	policy.OnAttempt = func(a retry.Attempt) { s.recordAttempt(ctx, p, a) }

	res := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		last = executor.Outcome{}
		return s.withSession(ctx, func(ctx context.Context) error {
			if needAuth {
				if err := s.session.Authenticate(ctx, s.opts.Credentials); err != nil {
					return err
				}
				needAuth = false
			}
			last = s.opts.Executor.Execute(ctx, s.session, p, attempt)
			err := last.Err()
			if booking.IsAuthenticationError(err) || errors.Is(err, booking.ErrNoSession) {
				needAuth = true
			}
			return err
		})
	})

	if res.Status == retry.StatusCancelled {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("[SCHEDULER] Stopped during booking, plan dropped")
			return ctxErr
		}
	}

	reason := last.Reason
	if res.Succeeded() {
		p.Succeed()
		log.WithField("slot", last.Slot.ID).Infof("[SCHEDULER] Booked after %d attempt(s)", len(res.Attempts))
	} else {
		p.Fail()
		if reason == "" && res.Err != nil {
			reason = res.Err.Error()
		}
		log.WithError(res.Err).WithField("status", res.Status).Errorf("[SCHEDULER] Booking failed after %d attempt(s)", len(res.Attempts))
	}
	s.recordOutcome(ctx, p, len(res.Attempts), reason, last.Slot.ID)

	if next, ok := p.Successor(); ok {
		if skipped := next.SkipPast(s.clock.Now()); skipped > 0 {
			s.log.WithFields(planFields(next)).Warnf("[SCHEDULER] Skipped %d past week(s)", skipped)
		}
		s.Add(next)
		s.log.WithFields(planFields(next)).Infof("[SCHEDULER] Rescheduled for %s", next.ExecuteAt.Format(time.RFC3339))
	}
	return nil
}

// withSession holds the session for the duration of fn.
func (s *Scheduler) withSession(ctx context.Context, fn func(context.Context) error) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.opts.Locker != nil {
		release, err := s.opts.Locker.Lock(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.WithError(err).Warn("[SCHEDULER] Failed to release session lock")
			}
		}()
	}
	return fn(ctx)
}

func (s *Scheduler) recordAttempt(ctx context.Context, p *booking.Plan, a retry.Attempt) {
	if s.opts.Journal == nil {
		return
	}
	rec := booking.AttemptRecord{
		PlanID:   p.ID,
		Cycle:    p.Cycle,
		Activity: p.Request.Activity,
		Target:   p.Target,
		Number:   a.Number,
		Outcome:  string(a.Outcome),
		At:       a.At,
	}
	if a.Err != nil {
		rec.Error = a.Err.Error()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RecordTimeout)
	defer cancel()
	if err := s.opts.Journal.RecordAttempt(ctx, rec); err != nil {
		s.log.WithError(err).Warn("[SCHEDULER] Failed to journal attempt")
	}
}

func (s *Scheduler) recordOutcome(ctx context.Context, p *booking.Plan, attempts int, reason, slotID string) {
	if s.opts.Journal == nil && s.opts.Notifier == nil {
		return
	}
	ev := booking.OutcomeEvent{
		PlanID:     p.ID,
		Cycle:      p.Cycle,
		Activity:   p.Request.Activity,
		Target:     p.Target,
		ExecuteAt:  p.ExecuteAt,
		Weekly:     p.Request.Weekly,
		Status:     p.Status,
		Attempts:   attempts,
		Reason:     reason,
		SlotID:     slotID,
		OccurredAt: s.clock.Now(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RecordTimeout)
	defer cancel()
	var errs []error
	if s.opts.Journal != nil {
		errs = append(errs, s.opts.Journal.RecordOutcome(ctx, ev))
	}
	if s.opts.Notifier != nil {
		errs = append(errs, s.opts.Notifier.PublishOutcome(ctx, ev))
	}
	if err := errors.Join(errs...); err != nil {
		s.log.WithError(err).Warn("[SCHEDULER] Failed to record outcome")
	}
}

func planFields(p *booking.Plan) logrus.Fields {
	return logrus.Fields{
		"plan":     p.ID.String(),
		"cycle":    p.Cycle,
		"activity": p.Request.Activity,
		"target":   p.Target.Format("2006-01-02 15:04:05"),
	}
}
