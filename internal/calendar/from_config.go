package calendar

import (
	"strings"
	"time"

	"github.com/spec-kit/sla-engine/internal/config"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// FromConfig builds a calendar from the process configuration. It shares
// New's validation, so a bad env configuration fails at startup.
func FromConfig(cfg config.CalendarConfig) (*BusinessCalendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, apperrors.NewCalendarMisconfiguration("unknown calendar timezone " + cfg.Timezone)
	}

	days := make([]time.Weekday, 0, len(cfg.WorkingDays))
	for _, name := range cfg.WorkingDays {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, apperrors.NewCalendarMisconfiguration("unknown working day " + name)
		}
		days = append(days, day)
	}

	holidays := make([]Holiday, 0, len(cfg.Holidays))
	for _, entry := range cfg.Holidays {
		date, err := time.ParseInLocation("2006-01-02", entry.Date, loc)
		if err != nil {
			return nil, apperrors.NewCalendarMisconfiguration("invalid holiday date " + entry.Date)
		}
		holidays = append(holidays, Holiday{Date: date, Working: entry.Working})
	}

	return New(Config{
		StartHour:   cfg.StartHour,
		EndHour:     cfg.EndHour,
		WorkingDays: days,
		Holidays:    holidays,
		Location:    loc,
	})
}
