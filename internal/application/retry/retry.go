// Package retry runs an action a bounded number of times with a fixed,
// interruptible delay between attempts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/sport-scheduler/internal/timeutil"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	// StatusExhausted means every attempt failed retryably.
	StatusExhausted Status = "exhausted"
	StatusFatal     Status = "fatal"
	StatusCancelled Status = "cancelled"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable"
	OutcomeFatal     Outcome = "fatal"
	OutcomeCancelled Outcome = "cancelled"
)

type Attempt struct {
	Number  int
	Outcome Outcome
	Err     error
	At      time.Time
}

type Result struct {
	Status   Status
	Attempts []Attempt
	// Err is the error of the last attempt, or the context error when cancelled.
	Err error
}

func (r Result) Succeeded() bool { return r.Status == StatusSucceeded }

// Action is one attempt. attempt is 1-based.
type Action func(ctx context.Context, attempt int) error

type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	Clock  timeutil.Source
	Logger *logrus.Entry
	// OnAttempt, when set, is called after every finished attempt.
	OnAttempt func(Attempt)
}

// Classify maps an error to an attempt outcome. Errors that implement
// Retryable() decide for themselves, context errors mean cancellation and
// anything else is treated as transient.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		if r.Retryable() {
			return OutcomeRetryable
		}
		return OutcomeFatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeCancelled
	}
	return OutcomeRetryable
}

func (p Policy) clock() timeutil.Source {
	if p.Clock == nil {
		return timeutil.SystemClock{}
	}
	return p.Clock
}

func (p Policy) logger() *logrus.Entry {
	if p.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return p.Logger
}

// Do runs action until it succeeds, fails fatally, runs out of attempts or ctx
// is cancelled.
func (p Policy) Do(ctx context.Context, action Action) Result {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	clock := p.clock()
	log := p.logger()

	var res Result
	for n := 1; n <= maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			res.Status, res.Err = StatusCancelled, err
			return res
		}

		at := clock.Now()
		err := action(ctx, n)
		outcome := Classify(err)
		if outcome != OutcomeSuccess && ctx.Err() != nil {
			outcome = OutcomeCancelled
		}
		a := Attempt{Number: n, Outcome: outcome, Err: err, At: at}
		res.Attempts = append(res.Attempts, a)
		res.Err = err
		if p.OnAttempt != nil {
			p.OnAttempt(a)
		}

		switch outcome {
		case OutcomeSuccess:
			res.Status = StatusSucceeded
			return res
		case OutcomeFatal:
			log.WithError(err).WithField("attempt", n).Error("attempt failed, not retrying")
			res.Status = StatusFatal
			return res
		case OutcomeCancelled:
			res.Status = StatusCancelled
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.Err = ctxErr
			}
			return res
		}

		if n == maxAttempts {
			break
		}
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": n,
			"max":     maxAttempts,
			"delay":   p.Delay.String(),
		}).Warn("attempt failed, retrying")
		if err := clock.Sleep(ctx, p.Delay); err != nil {
			res.Status, res.Err = StatusCancelled, err
			return res
		}
	}

	log.WithError(res.Err).WithField("attempts", maxAttempts).Error("all attempts failed")
	res.Status = StatusExhausted
	return res
}
