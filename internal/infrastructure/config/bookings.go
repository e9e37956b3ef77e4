package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/example/sport-scheduler/internal/domain/booking"
	"github.com/example/sport-scheduler/internal/timeutil"
)

// SealedPrefix marks a password produced by `sportsched seal`.
const SealedPrefix = "sealed:"

// Opener turns a sealed value back into plain text.
type Opener func(sealed string) (string, error)

type bookingFile struct {
	Email    string      `yaml:"email" validate:"required"`
	Password string      `yaml:"password" validate:"required"`
	Center   string      `yaml:"center"`
	Centre   string      `yaml:"centre"`
	Classes  []yaml.Node `yaml:"classes" validate:"required,min=1"`
}

type classEntry struct {
	Activity         string `yaml:"activity" validate:"required"`
	ClassDay         string `yaml:"class_day" validate:"required"`
	ClassTime        string `yaml:"class_time" validate:"required"`
	BookingExecution string `yaml:"booking_execution" validate:"required"`
	Weekly           bool   `yaml:"weekly"`
}

// Bookings is a parsed booking file. Entries that failed to parse are left
// out of Requests and reported in Rejected.
type Bookings struct {
	Credentials booking.Credentials
	Requests    []booking.Request
	Rejected    []booking.ConfigError
}

// LoadBookings reads and parses the booking file at path.
func LoadBookings(path string, open Opener) (*Bookings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, booking.ConfigError{Index: -1, Reason: "cannot read booking file", Err: err}
	}
	return ParseBookings(data, open)
}

// ParseBookings parses a JSON or YAML booking document. Problems with the
// document itself are returned as an error; problems with a single class
// only reject that class.
func ParseBookings(data []byte, open Opener) (*Bookings, error) {
	var doc bookingFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, booking.ConfigError{Index: -1, Reason: "cannot parse booking file", Err: err}
	}
	v := newValidator()
	if err := v.Struct(doc); err != nil {
		return nil, validationError(-1, err)
	}

	password, err := openPassword(doc.Password, open)
	if err != nil {
		return nil, err
	}
	centre := strings.TrimSpace(doc.Centre)
	if centre == "" {
		centre = strings.TrimSpace(doc.Center)
	}

	out := &Bookings{
		Credentials: booking.Credentials{
			Email:    strings.TrimSpace(doc.Email),
			Password: password,
			Centre:   centre,
		},
	}
	for i := range doc.Classes {
		req, err := parseClass(v, &doc.Classes[i])
		if err != nil {
			var cfgErr booking.ConfigError
			if !errors.As(err, &cfgErr) {
				cfgErr = booking.ConfigError{Err: err}
			}
			cfgErr.Index = i
			out.Rejected = append(out.Rejected, cfgErr)
			continue
		}
		out.Requests = append(out.Requests, req)
	}
	return out, nil
}

func parseClass(v *validator.Validate, node *yaml.Node) (booking.Request, error) {
	var entry classEntry
	if err := node.Decode(&entry); err != nil {
		return booking.Request{}, booking.ConfigError{Reason: "malformed class entry", Err: err}
	}
	if err := v.Struct(entry); err != nil {
		return booking.Request{}, validationError(0, err)
	}

	day, err := timeutil.ParseWeekday(entry.ClassDay)
	if err != nil {
		return booking.Request{}, timeError("class_day", entry.ClassDay, err)
	}
	at, err := timeutil.ParseClock(entry.ClassTime)
	if err != nil {
		return booking.Request{}, timeError("class_time", entry.ClassTime, err)
	}
	exec, err := timeutil.ParseExecSpec(entry.BookingExecution)
	if err != nil {
		return booking.Request{}, timeError("booking_execution", entry.BookingExecution, err)
	}

	req := booking.Request{
		Activity:  strings.TrimSpace(entry.Activity),
		ClassDay:  day,
		ClassTime: at,
		Execution: exec,
		Weekly:    entry.Weekly,
	}
	if err := req.Validate(); err != nil {
		return booking.Request{}, err
	}
	return req, nil
}

func openPassword(raw string, open Opener) (string, error) {
	if !strings.HasPrefix(raw, SealedPrefix) {
		return raw, nil
	}
	if open == nil {
		return "", booking.ConfigError{Index: -1, Field: "password", Reason: "password is sealed but no secret key is configured"}
	}
	plain, err := open(strings.TrimPrefix(raw, SealedPrefix))
	if err != nil {
		return "", booking.ConfigError{Index: -1, Field: "password", Reason: "cannot open sealed password", Err: err}
	}
	return plain, nil
}

func timeError(field, value string, err error) error {
	return booking.ConfigError{
		Field: field,
		Err:   booking.TimeResolutionError{Field: field, Value: value, Err: err},
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func validationError(index int, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return booking.ConfigError{Index: index, Err: err}
	}
	fe := verrs[0]
	reason := "is required"
	if fe.Tag() != "required" {
		reason = fmt.Sprintf("failed %q check", fe.Tag())
	}
	return booking.ConfigError{Index: index, Field: fe.Field(), Reason: reason, Err: err}
}
