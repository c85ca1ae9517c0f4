// Package schedule holds the weekly wake schedule: one optional time-of-day
// window per weekday, Monday first.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DaysPerWeek is the number of slots in a Schedule
const DaysPerWeek = 7

// DayNames are the config keys for each slot, Monday first
var DayNames = [DaysPerWeek]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// DayIndex returns the slot index for a config day key
func DayIndex(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range DayNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// IndexOf maps Go's Sunday-first weekday numbering onto the Monday-first slot order
func IndexOf(weekday time.Weekday) int {
	return (int(weekday) + 6) % DaysPerWeek
}

// TimeOfDay is a wall clock time with minute precision
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an "HH:MM" string
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the time as "HH:MM"
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the number of minutes since midnight
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier in the day than o
func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.Minutes() < o.Minutes()
}

// On returns the instant at this time of day on the calendar date of day, in day's location
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// MarshalText implements encoding.TextMarshaler
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Window is the part of a day during which the wake effect runs
type Window struct {
	Start TimeOfDay `yaml:"start"`
	End   TimeOfDay `yaml:"end"`
}

// On returns the absolute start and end instants of the window on the date of day
func (w Window) On(day time.Time) (start, end time.Time) {
	return w.Start.On(day), w.End.On(day)
}

// Valid reports whether the window starts before it ends
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// String formats the window as "HH:MM-HH:MM"
func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Schedule holds an optional window for each weekday. The zero value has no windows.
type Schedule struct {
	days [DaysPerWeek]*Window
}

// New builds a Schedule from Monday-first slots. Windows are copied.
func New(days [DaysPerWeek]*Window) Schedule {
	var s Schedule
	for i, w := range days {
		if w != nil {
			c := *w
			s.days[i] = &c
		}
	}
	return s
}

// Day returns the window for a Monday-first slot index
func (s Schedule) Day(index int) (Window, bool) {
	if index < 0 || index >= DaysPerWeek || s.days[index] == nil {
		return Window{}, false
	}
	return *s.days[index], true
}

// For returns the window configured for a weekday
func (s Schedule) For(weekday time.Weekday) (Window, bool) {
	return s.Day(IndexOf(weekday))
}

// Days returns a copy of the slots, Monday first
func (s Schedule) Days() [DaysPerWeek]*Window {
	return New(s.days).days
}

// Empty reports whether no day has a window
func (s Schedule) Empty() bool {
	for _, w := range s.days {
		if w != nil {
			return false
		}
	}
	return true
}
