package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/sport-scheduler/internal/infrastructure/config"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	root := &cobra.Command{
		Use:   "sportsched",
		Short: "Books sports-centre classes the moment they open and keeps weekly classes booked",
		Long: `sportsched reads a booking file of classes, works out when each booking
should be attempted and books it on the centre's site, retrying transient
failures. Weekly classes are re-armed for the following week.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(cmd.Context(), v)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	f := root.PersistentFlags()
	f.String(config.KeyConfig, "", "booking file (JSON or YAML)")
	f.Int(config.KeyRetryAttempts, config.DefaultRetryAttempts, "attempts per weekly booking")
	f.Int(config.KeyRetryDelayMinutes, config.DefaultRetryDelayMinutes, "minutes between weekly booking attempts")
	f.Int(config.KeyOneOffRetryDelaySeconds, 0, "seconds between one-off booking attempts")
	f.Int(config.KeyOffsetSeconds, 0, "seconds to wait past the execution time of scheduled bookings")
	f.Int(config.KeyBookingWindowDays, 0, "days before a class its booking opens (0 = unknown)")
	f.Int(config.KeySlotGraceAttempts, 0, "attempts a missing slot is retried before giving up (0 = all)")
	f.String(config.KeyTimeZone, config.DefaultTimeZone, "IANA zone the booking file is written in")
	f.String(config.KeyLogLevel, config.DefaultLogLevel, "DEBUG, INFO, WARNING or ERROR")
	f.String(config.KeyDatabaseURL, "", "postgres URL for the attempt journal (optional)")
	f.String(config.KeyAMQPURL, "", "RabbitMQ URL for outcome events (optional)")
	f.String(config.KeyAMQPQueue, config.DefaultAMQPQueue, "queue outcome events are published to")
	f.String(config.KeyRedisAddr, "", "redis host:port for the account lock (optional)")
	f.String(config.KeySiteBaseURL, config.DefaultSiteBaseURL, "booking portal base URL")
	f.String(config.KeyAPIBaseURL, config.DefaultAPIBaseURL, "booking API base URL")
	if err := v.BindPFlags(f); err != nil {
		panic(err)
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newSealCmd(v))
	root.AddCommand(newCentresCmd(v))
	root.AddCommand(newActivitiesCmd(v))
	root.AddCommand(newSlotsCmd(v))
	root.AddCommand(newBookCmd(v))
	root.AddCommand(newCancelCmd(v))

	return root
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
