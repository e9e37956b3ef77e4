// Package timeutil turns the human day/time strings used in booking files into
// concrete timestamps in the service zone.
package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidWeekday  = errors.New("invalid weekday")
	ErrInvalidClock    = errors.New("invalid time of day (want HH:MM:SS)")
	ErrInvalidExecSpec = errors.New(`invalid booking execution (want "now" or "<Day> HH:MM:SS")`)
)

const daysPerWeek = 7

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts English day names, full or three-letter, in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if d, ok := weekdays[name]; ok {
		return d, nil
	}
	if len(name) == 3 {
		for full, d := range weekdays {
			if strings.HasPrefix(full, name) {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour, Minute, Second int
}

// ParseClock parses "HH:MM:SS". "HH:MM" is read as "HH:MM:00".
func ParseClock(s string) (Clock, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) == 2 {
		parts = append(parts, "00")
	}
	if len(parts) != 3 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	var vals [3]int
	limits := [3]int{23, 59, 59}
	for i, p := range parts {
		if len(p) != 2 || !isDigit(p[0]) || !isDigit(p[1]) {
			return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n > limits[i] {
			return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		vals[i] = n
	}
	return Clock{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// On returns the instant at c on the calendar date of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, day.Location())
}

// Next returns the first instant strictly after now that falls on day at c.
// Later today yields today; otherwise the following matching weekday.
func Next(day time.Weekday, c Clock, now time.Time) time.Time {
	ahead := (int(day) - int(now.Weekday()) + daysPerWeek) % daysPerWeek
	y, m, d := now.Date()
	candidate := time.Date(y, m, d+ahead, c.Hour, c.Minute, c.Second, 0, now.Location())
	if !candidate.After(now) {
		candidate = time.Date(y, m, d+ahead+daysPerWeek, c.Hour, c.Minute, c.Second, 0, now.Location())
	}
	return candidate
}

// ExecSpec says when a booking attempt runs: immediately, or at a weekday and time.
type ExecSpec struct {
	Now bool
	Day time.Weekday
	At  Clock
}

const execNow = "now"

// ParseExecSpec parses "now" or "<Day> HH:MM:SS".
func ParseExecSpec(s string) (ExecSpec, error) {
	raw := strings.TrimSpace(s)
	if strings.EqualFold(raw, execNow) {
		return ExecSpec{Now: true}, nil
	}
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return ExecSpec{}, fmt.Errorf("%w: %q", ErrInvalidExecSpec, s)
	}
	day, err := ParseWeekday(fields[0])
	if err != nil {
		return ExecSpec{}, err
	}
	at, err := ParseClock(fields[1])
	if err != nil {
		return ExecSpec{}, err
	}
	return ExecSpec{Day: day, At: at}, nil
}

// Resolve returns now for "now", otherwise the next matching instant after now.
func (e ExecSpec) Resolve(now time.Time) time.Time {
	if e.Now {
		return now
	}
	return Next(e.Day, e.At, now)
}

func (e ExecSpec) String() string {
	if e.Now {
		return execNow
	}
	return e.Day.String() + " " + e.At.String()
}

// LoadLocation resolves an IANA zone name, defaulting to UTC for "".
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", name, err)
	}
	return loc, nil
}
