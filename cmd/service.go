package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/example/sport-scheduler/internal/application/executor"
	"github.com/example/sport-scheduler/internal/application/retry"
	"github.com/example/sport-scheduler/internal/application/scheduler"
	"github.com/example/sport-scheduler/internal/domain/booking"
	"github.com/example/sport-scheduler/internal/infrastructure/amqp"
	"github.com/example/sport-scheduler/internal/infrastructure/config"
	"github.com/example/sport-scheduler/internal/infrastructure/crypto"
	"github.com/example/sport-scheduler/internal/infrastructure/nubapp"
	"github.com/example/sport-scheduler/internal/infrastructure/postgres"
	"github.com/example/sport-scheduler/internal/infrastructure/redislock"
	"github.com/example/sport-scheduler/internal/logging"
	"github.com/example/sport-scheduler/internal/timeutil"
)

// app holds what every command needs once settings are loaded.
type app struct {
	settings config.Settings
	loc      *time.Location
	log      *logrus.Entry
	client   *nubapp.Client
}

func newApp(v *viper.Viper) (*app, error) {
	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	loc, err := timeutil.LoadLocation(settings.TimeZone)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, settings.LogLevel, loc)
	if err != nil {
		return nil, err
	}
	log := logrus.NewEntry(logger)

	client, err := nubapp.New(nubapp.Options{
		SiteBaseURL: settings.SiteBaseURL,
		APIBaseURL:  settings.APIBaseURL,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	return &app{settings: settings, loc: loc, log: log, client: client}, nil
}

// bookings loads the booking file named by --config.
func (a *app) bookings() (*config.Bookings, error) {
	if a.settings.ConfigPath == "" {
		return nil, errors.New("--config is required")
	}
	var open config.Opener
	if a.settings.SecretKey != "" {
		sealer, err := crypto.NewSealer(a.settings.SecretKey)
		if err != nil {
			return nil, err
		}
		open = sealer.Open
	}
	b, err := config.LoadBookings(a.settings.ConfigPath, open)
	if err != nil {
		return nil, err
	}
	for _, rej := range b.Rejected {
		a.log.WithError(rej).Error("[CONFIG] Skipping class")
	}
	return b, nil
}

func runService(ctx context.Context, v *viper.Viper) error {
	a, err := newApp(v)
	if err != nil {
		return err
	}
	b, err := a.bookings()
	if err != nil {
		return err
	}

	clock := timeutil.SystemClock{Location: a.loc}
	opts := scheduler.Options{
		Credentials: b.Credentials,
		Weekly:      retry.Policy{MaxAttempts: a.settings.RetryAttempts, Delay: a.settings.RetryDelay()},
		OneOff:      retry.Policy{MaxAttempts: a.settings.RetryAttempts, Delay: a.settings.OneOffRetryDelay()},
		Executor:    executor.Executor{SlotGraceAttempts: a.settings.SlotGraceAttempts},
		Offset:      a.settings.Offset(),
		Clock:       clock,
		Logger:      a.log,
	}

	if a.settings.DatabaseURL != "" {
		pool, err := postgres.Open(ctx, a.settings.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		opts.Journal = postgres.NewJournal(pool)
		a.log.Info("[SCHEDULER] Journaling attempts to postgres")
	}
	if a.settings.AMQPURL != "" {
		opts.Notifier = amqp.NewPublisher(a.settings.AMQPURL, a.settings.AMQPQueue)
		a.log.WithField("queue", a.settings.AMQPQueue).Info("[SCHEDULER] Publishing outcomes to RabbitMQ")
	}
	if a.settings.RedisAddr != "" {
		rdb, err := redislock.NewClient(ctx, a.settings.RedisAddr, a.settings.RedisPassword)
		if err != nil {
			return err
		}
		defer rdb.Close()
		opts.Locker = redislock.New(rdb, redislock.Key(b.Credentials.Email, b.Credentials.Centre))
	}

	s := scheduler.New(a.client, opts)
	now := clock.Now()
	for _, req := range b.Requests {
		p, err := booking.NewPlan(req, now, a.settings.BookingWindowDays)
		if err != nil {
			a.log.WithError(err).WithField("activity", req.Activity).Error("[CONFIG] Skipping class")
			continue
		}
		s.Add(p)
		a.log.WithFields(logrus.Fields{
			"plan":     p.ID.String(),
			"activity": req.Activity,
			"weekly":   req.Weekly,
			"target":   p.Target.Format(time.RFC3339),
		}).Infof("[SCHEDULER] Planned booking for %s", p.ExecuteAt.Format(time.RFC3339))
	}

	if err := s.Validate(ctx); err != nil {
		return err
	}
	err = s.Run(ctx)
	if errors.Is(err, context.Canceled) {
		a.log.Info("[SCHEDULER] Shutting down")
		return nil
	}
	return err
}
