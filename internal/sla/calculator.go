// Package sla computes resolution due dates by walking the business
// calendar. All arithmetic is integer minutes; nothing here does I/O.
package sla

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/domain"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// Base resolution budgets per SLA tier, in business hours.
const (
	standardBudgetHours        = 40
	premiumBudgetHours         = 16
	criticalSupportBudgetHours = 4
)

// Priority clamps applied on top of the tier budget. These are policy
// bounds, not additive adjustments: CRITICAL and HIGH cap the budget, LOW
// raises it to a floor. The cross-tier interaction (LOW loosening
// CRITICAL_SUPPORT to 40h, CRITICAL tightening STANDARD to 4h) is intended
// product behavior.
const (
	criticalCapHours = 4
	highCapHours     = 8
	lowFloorHours    = 40
)

// Calculator derives due dates from SLA tier, priority and a start instant.
type Calculator struct {
	cal *calendar.BusinessCalendar
}

// NewCalculator builds a calculator over a validated calendar.
func NewCalculator(cal *calendar.BusinessCalendar) *Calculator {
	return &Calculator{cal: cal}
}

// BudgetHours returns the clamped resolution budget for a tier/priority pair.
func BudgetHours(level domain.SLALevel, priority domain.TicketPriority) int {
	budget := standardBudgetHours
	switch level {
	case domain.SLALevelPremium:
		budget = premiumBudgetHours
	case domain.SLALevelCriticalSupport:
		budget = criticalSupportBudgetHours
	}

	switch priority {
	case domain.TicketPriorityCritical:
		if budget > criticalCapHours {
			budget = criticalCapHours
		}
	case domain.TicketPriorityHigh:
		if budget > highCapHours {
			budget = highCapHours
		}
	case domain.TicketPriorityLow:
		if budget < lowFloorHours {
			budget = lowFloorHours
		}
	}
	return budget
}

// ResponseTimeBudget returns the first-response budget for a tier, in hours.
func ResponseTimeBudget(level domain.SLALevel) int {
	switch level {
	case domain.SLALevelPremium:
		return 4
	case domain.SLALevelCriticalSupport:
		return 1
	default:
		return 8
	}
}

// DueDate consumes the clamped budget across working days starting at
// start. The loop is bounded and monotone: every iteration either returns
// or consumes at least one full working day of budget.
func (c *Calculator) DueDate(level domain.SLALevel, priority domain.TicketPriority, start time.Time) (time.Time, error) {
	remaining := BudgetHours(level, priority) * 60

	cursor := start
	if !c.cal.IsWorkingInstant(cursor) {
		cursor = c.snapToWorkingStart(cursor)
	}

	maxIterations := remaining/c.cal.WorkingDayMinutes() + 2
	for i := 0; i < maxIterations; i++ {
		available := int(c.cal.EndOfWorkingDay(cursor).Sub(cursor).Minutes())
		if available >= remaining {
			return cursor.Add(time.Duration(remaining) * time.Minute), nil
		}
		remaining -= available
		cursor = c.cal.StartOfNextWorkingDay(cursor)
	}
	return time.Time{}, apperrors.NewCalendarMisconfiguration("due date walk exceeded iteration bound")
}

// snapToWorkingStart moves a non-working instant to the next opening of the
// working window, which may be later the same day.
func (c *Calculator) snapToWorkingStart(t time.Time) time.Time {
	sameDayStart := c.cal.StartOfWorkingDay(t)
	if t.Before(sameDayStart) && c.cal.IsWorkingInstant(sameDayStart) {
		return sameDayStart
	}
	return c.cal.StartOfNextWorkingDay(t)
}
