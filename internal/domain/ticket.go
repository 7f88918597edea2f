package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "NEW"
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusOnHold     TicketStatus = "ON_HOLD"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusReopened   TicketStatus = "REOPENED"
)

// Terminal reports whether no SLA enforcement applies to the status.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// IsValid reports whether s is a known lifecycle status. The enum set is
// closed; unknown strings must be rejected at the boundary, never stored.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusInProgress, TicketStatusOnHold,
		TicketStatusResolved, TicketStatusClosed, TicketStatusReopened:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// IsValid reports whether p is a known priority.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Bumped returns the next priority up the ordered scale. CRITICAL is a
// fixed point; escalation never wraps or lowers.
func (p TicketPriority) Bumped() TicketPriority {
	switch p {
	case TicketPriorityLow:
		return TicketPriorityMedium
	case TicketPriorityMedium:
		return TicketPriorityHigh
	case TicketPriorityHigh:
		return TicketPriorityCritical
	default:
		return TicketPriorityCritical
	}
}

// SLALevel enumerates service-level commitments.
type SLALevel string

const (
	SLALevelStandard        SLALevel = "STANDARD"
	SLALevelPremium         SLALevel = "PREMIUM"
	SLALevelCriticalSupport SLALevel = "CRITICAL_SUPPORT"
)

// IsValid reports whether l is a known SLA tier. An unknown tier must never
// fall through to the STANDARD budget.
func (l SLALevel) IsValid() bool {
	switch l {
	case SLALevelStandard, SLALevelPremium, SLALevelCriticalSupport:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. Status, priority, assignee
// and closed_at are written only through the workflow entry points.
type Ticket struct {
	ID          string
	ExternalKey string
	RequesterID string
	AssigneeID  *string
	Category    string
	Subcategory string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	SLALevel    SLALevel
	Resolution  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DueDate     *time.Time
	ClosedAt    *time.Time
}

// CategoryKey is the ranking key for load-balanced assignment.
func (t *Ticket) CategoryKey() string {
	if t.Subcategory == "" {
		return t.Category
	}
	return t.Category + "/" + t.Subcategory
}
