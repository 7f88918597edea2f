// Package workflow is the authoritative state machine for ticket
// lifecycles. Every mutation of status, priority, assignee or closed_at
// flows through the entry points here; no other package writes those fields.
package workflow

import (
	"strings"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:        {domain.TicketStatusOpen, domain.TicketStatusClosed},
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusOnHold, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusOnHold, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusOnHold:     {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusReopened},
	domain.TicketStatusClosed:     {domain.TicketStatusReopened},
	domain.TicketStatusReopened:   {domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusClosed},
}

// CanTransition reports whether the transition table permits current -> next.
func CanTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Workflow applies validated mutations to tickets. The clock is injectable
// so callers can pin updated_at/closed_at in tests.
type Workflow struct {
	now func() time.Time
}

// New constructs a workflow using the wall clock.
func New() *Workflow {
	return &Workflow{now: time.Now}
}

// NewWithClock constructs a workflow with a fixed clock source.
func NewWithClock(now func() time.Time) *Workflow {
	return &Workflow{now: now}
}

// ApplyStatusChange validates and applies a status transition. On failure
// the ticket is left untouched; on success it sets status and updated_at,
// closed_at exactly once when entering CLOSED, and resolution when provided.
func (w *Workflow) ApplyStatusChange(ticket *domain.Ticket, next domain.TicketStatus, resolution string) error {
	if !CanTransition(ticket.Status, next) {
		return apperrors.NewInvalidTransition(string(ticket.Status), string(next))
	}
	resolution = strings.TrimSpace(resolution)
	if next == domain.TicketStatusResolved && resolution == "" {
		return apperrors.NewMissingResolution()
	}

	now := w.now()
	ticket.Status = next
	ticket.UpdatedAt = now
	if next == domain.TicketStatusClosed && ticket.ClosedAt == nil {
		closedAt := now
		ticket.ClosedAt = &closedAt
	}
	if resolution != "" {
		ticket.Resolution = resolution
	}
	return nil
}

// Assign sets the ticket owner. Assigning a NEW ticket moves it to OPEN via
// the same transition table: assignment implies the ticket has left the
// unstarted state. The assignee must be an active staff-capable account.
func (w *Workflow) Assign(ticket *domain.Ticket, assignee *domain.StaffMember) error {
	if assignee == nil {
		return apperrors.NewInvalidAssignee("assignee is required", nil)
	}
	if !assignee.Active {
		return apperrors.NewInvalidAssignee("assignee is not an active staff account",
			map[string]any{"staff_id": assignee.ID})
	}

	if ticket.Status == domain.TicketStatusNew {
		if err := w.ApplyStatusChange(ticket, domain.TicketStatusOpen, ""); err != nil {
			return err
		}
	}
	assigneeID := assignee.ID
	ticket.AssigneeID = &assigneeID
	ticket.UpdatedAt = w.now()
	return nil
}

// Escalate bumps priority one step and reassigns the ticket, the single
// escalation mutation used by the compliance monitor. An already-CRITICAL
// ticket keeps its priority but is still reassigned.
func (w *Workflow) Escalate(ticket *domain.Ticket, manager *domain.StaffMember) error {
	if err := w.Assign(ticket, manager); err != nil {
		return err
	}
	ticket.Priority = ticket.Priority.Bumped()
	ticket.UpdatedAt = w.now()
	return nil
}
