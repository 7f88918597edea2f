// Package calendar implements the business-hours calendar that SLA budgets
// are measured against. A calendar is immutable after construction and all
// methods are pure functions of the configured week.
package calendar

import (
	"time"

	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// Holiday marks a calendar date as an exception to the weekly pattern.
// Working=true keeps the date a (partial) working day.
type Holiday struct {
	Date    time.Time
	Working bool
}

// Config describes the weekly working window.
type Config struct {
	StartHour   int
	EndHour     int
	WorkingDays []time.Weekday
	Holidays    []Holiday
	Location    *time.Location
}

// BusinessCalendar answers working-time questions for SLA arithmetic.
type BusinessCalendar struct {
	startHour   int
	endHour     int
	workingDays map[time.Weekday]bool
	holidays    map[string]bool // date key -> working flag
	loc         *time.Location
}

// New validates the configuration and builds a calendar. Misconfiguration
// (start >= end, hours out of range, no working weekdays) is fatal here so
// it can never surface mid-computation.
func New(cfg Config) (*BusinessCalendar, error) {
	if cfg.StartHour < 0 || cfg.StartHour > 23 || cfg.EndHour < 0 || cfg.EndHour > 23 {
		return nil, apperrors.NewCalendarMisconfiguration("working hours must be within 0-23")
	}
	if cfg.StartHour >= cfg.EndHour {
		return nil, apperrors.NewCalendarMisconfiguration("work day start hour must precede end hour")
	}
	if len(cfg.WorkingDays) == 0 {
		return nil, apperrors.NewCalendarMisconfiguration("at least one working weekday is required")
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	cal := &BusinessCalendar{
		startHour:   cfg.StartHour,
		endHour:     cfg.EndHour,
		workingDays: make(map[time.Weekday]bool, len(cfg.WorkingDays)),
		holidays:    make(map[string]bool, len(cfg.Holidays)),
		loc:         loc,
	}
	for _, day := range cfg.WorkingDays {
		cal.workingDays[day] = true
	}
	for _, h := range cfg.Holidays {
		cal.holidays[h.Date.In(loc).Format(dateKeyLayout)] = h.Working
	}
	return cal, nil
}

const dateKeyLayout = "2006-01-02"

// WorkingDayMinutes returns the length of a full working day.
func (c *BusinessCalendar) WorkingDayMinutes() int {
	return (c.endHour - c.startHour) * 60
}

// IsWorkingInstant reports whether t falls inside the working window:
// a working weekday, not a non-working holiday, local hour in [start, end).
func (c *BusinessCalendar) IsWorkingInstant(t time.Time) bool {
	local := t.In(c.loc)
	if !c.isWorkingDate(local) {
		return false
	}
	hour := local.Hour()
	return hour >= c.startHour && hour < c.endHour
}

// EndOfWorkingDay returns the working window's closing instant on t's date.
func (c *BusinessCalendar) EndOfWorkingDay(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.endHour, 0, 0, 0, c.loc)
}

// StartOfWorkingDay returns the working window's opening instant on t's date.
func (c *BusinessCalendar) StartOfWorkingDay(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.startHour, 0, 0, 0, c.loc)
}

// StartOfNextWorkingDay advances one calendar day at a time, snapped to the
// start hour, until a working day is found. The walk is bounded: with a
// non-empty weekday set and a finite holiday list, a working date exists
// within len(holidays)+7 days of any instant.
func (c *BusinessCalendar) StartOfNextWorkingDay(t time.Time) time.Time {
	local := t.In(c.loc)
	limit := len(c.holidays) + 7
	cursor := local
	for i := 0; i <= limit; i++ {
		cursor = cursor.AddDate(0, 0, 1)
		snapped := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), c.startHour, 0, 0, 0, c.loc)
		if c.isWorkingDate(snapped) {
			return snapped
		}
	}
	// unreachable with a validated config; return the last snap regardless
	return time.Date(cursor.Year(), cursor.Month(), cursor.Day(), c.startHour, 0, 0, 0, c.loc)
}

func (c *BusinessCalendar) isWorkingDate(local time.Time) bool {
	if working, isHoliday := c.holidays[local.Format(dateKeyLayout)]; isHoliday && !working {
		return false
	}
	return c.workingDays[local.Weekday()]
}
