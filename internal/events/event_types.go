package events

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventSLAWarning          EventType = "sla_warning"
	EventSLABreach           EventType = "sla_breach"
)

// Event represents a domain event emitted by the engine. Recipients carry
// the user ids the notification collaborator should fan the event out to.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	TicketID   string      `json:"ticket_id"`
	ActorID    *string     `json:"actor_id,omitempty"`
	Recipients []string    `json:"recipients,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority domain.TicketPriority `json:"priority"`
	SLALevel domain.SLALevel       `json:"sla_level"`
	DueDate  *time.Time            `json:"due_date,omitempty"`
	Title    string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeStaffID *string `json:"assignee_staff_id,omitempty"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
	NewAssignee string                `json:"new_assignee"`
	Manual      bool                  `json:"manual"`
}

// SLADeadlinePayload payload for warning and breach events.
type SLADeadlinePayload struct {
	DueDate  time.Time             `json:"due_date"`
	Priority domain.TicketPriority `json:"priority"`
	SLALevel domain.SLALevel       `json:"sla_level"`
}
