package domain

import "time"

// NotificationKind enumerates alert categories emitted by the engine.
type NotificationKind string

const (
	NotificationSLAWarning      NotificationKind = "SLA_WARNING"
	NotificationSLABreach       NotificationKind = "SLA_BREACH"
	NotificationTicketEscalated NotificationKind = "TICKET_ESCALATED"
	NotificationTicketAssigned  NotificationKind = "TICKET_ASSIGNED"
)

// Notification is a persisted alert record. Its existence within a lookback
// window doubles as the dedup marker for repeat alerts of the same kind.
type Notification struct {
	ID        string
	TicketID  string
	UserID    string
	Kind      NotificationKind
	Payload   map[string]any
	CreatedAt time.Time
}
