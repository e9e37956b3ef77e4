package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/sport-scheduler/internal/application/usecases"
	"github.com/example/sport-scheduler/internal/domain/booking"
	"github.com/example/sport-scheduler/internal/timeutil"
)

const dateLayout = "2006-01-02"

func newCentresCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "centres",
		Short: "List the centres the booking site serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			centres, err := a.client.Centres(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tNAME\tADDRESS")
			for _, c := range centres {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Slug, c.Name, c.Address)
			}
			return w.Flush()
		},
	}
}

func newActivitiesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "activities",
		Short: "List the activities offered to the account in the booking file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			b, err := a.bookings()
			if err != nil {
				return err
			}
			activities, err := usecases.Catalog{Session: a.client, Credentials: b.Credentials}.Activities(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, act := range activities {
				fmt.Fprintf(w, "%s\t%s\n", act.ID, act.Name)
			}
			return w.Flush()
		},
	}
}

func newSlotsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "slots <activity> <YYYY-MM-DD>",
		Short: "List the slots of an activity on a day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(v)
			if err != nil {
				return err
			}
			day, err := time.ParseInLocation(dateLayout, args[1], a.loc)
			if err != nil {
				return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", args[1])
			}
			b, err := a.bookings()
			if err != nil {
				return err
			}
			slots, err := usecases.Catalog{Session: a.client, Credentials: b.Credentials}.DailySlots(cmd.Context(), args[0], day)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTART\tCAPACITY\tBOOKED")
			for _, s := range slots {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", s.ID, s.Start.Format("15:04:05"), capacityLabel(s.Capacity), s.Booked)
			}
			return w.Flush()
		},
	}
}

func newBookCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "book <activity> <YYYY-MM-DD> <HH:MM:SS>",
		Short: "Book one slot now, without scheduling or retries",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, creds, start, err := slotCommand(v, args)
			if err != nil {
				return err
			}
			slot, err := usecases.FindAndBook{Session: a.client, Credentials: creds}.Execute(cmd.Context(), args[0], start)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "booked %s at %s (slot %s)\n", args[0], slot.Start.Format(time.RFC3339), slot.ID)
			return nil
		},
	}
}

func newCancelCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <activity> <YYYY-MM-DD> <HH:MM:SS>",
		Short: "Cancel a booked slot",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, creds, start, err := slotCommand(v, args)
			if err != nil {
				return err
			}
			slot, err := usecases.FindAndCancel{Session: a.client, Credentials: creds}.Execute(cmd.Context(), args[0], start)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s at %s (slot %s)\n", args[0], slot.Start.Format(time.RFC3339), slot.ID)
			return nil
		},
	}
}

// slotCommand parses <activity> <date> <time> and loads the account.
func slotCommand(v *viper.Viper, args []string) (*app, booking.Credentials, time.Time, error) {
	a, err := newApp(v)
	if err != nil {
		return nil, booking.Credentials{}, time.Time{}, err
	}
	day, err := time.ParseInLocation(dateLayout, args[1], a.loc)
	if err != nil {
		return nil, booking.Credentials{}, time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", args[1])
	}
	at, err := timeutil.ParseClock(args[2])
	if err != nil {
		return nil, booking.Credentials{}, time.Time{}, err
	}
	b, err := a.bookings()
	if err != nil {
		return nil, booking.Credentials{}, time.Time{}, err
	}
	return a, b.Credentials, at.On(day), nil
}

func capacityLabel(c booking.CapacityState) string {
	if c == booking.CapacityUnknown {
		return "unknown"
	}
	return string(c)
}
