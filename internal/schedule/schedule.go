// Package schedule triggers time-of-day actions such as the daily
// auto-close of the cover.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// String formats t as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses "HH:MM" (24-hour).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("schedule: invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("schedule: invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("schedule: invalid minute in %q", s)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// Daily fires at most once per calendar day, during the configured
// minute. Check is polled from the control loop.
type Daily struct {
	At      TimeOfDay
	Enabled bool

	now     func() time.Time
	lastDay int
	fired   bool
}

// NewDaily creates a daily trigger. now supplies local wall-clock time.
func NewDaily(at TimeOfDay, enabled bool, now func() time.Time) *Daily {
	if now == nil {
		now = time.Now
	}
	return &Daily{At: at, Enabled: enabled, now: now, lastDay: -1}
}

// Check reports whether the action is due now. It returns true once per
// day, on the first call that falls inside the configured minute.
func (d *Daily) Check() bool {
	if !d.Enabled {
		return false
	}
	t := d.now()
	if day := t.YearDay(); day != d.lastDay {
		d.lastDay = day
		d.fired = false
	}
	if d.fired {
		return false
	}
	if t.Hour() == d.At.Hour && t.Minute() == d.At.Minute {
		d.fired = true
		return true
	}
	return false
}

// FiredToday reports whether the action already ran today.
func (d *Daily) FiredToday() bool {
	return d.fired
}
