package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/assignment"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/sla"
	"github.com/spec-kit/sla-engine/internal/workflow"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// IntakeService creates tickets: it computes the SLA due date, optionally
// auto-assigns the least-loaded eligible agent, and persists the result. The
// due date is computed exactly once, at creation; nothing downstream ever
// recomputes it.
type IntakeService struct {
	tickets    repository.TicketRepository
	staff      repository.StaffRepository
	calculator *sla.Calculator
	workflow   *workflow.Workflow
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// IntakeDependencies bundles collaborators for the intake service.
type IntakeDependencies struct {
	TicketRepo repository.TicketRepository
	StaffRepo  repository.StaffRepository
	Calculator *sla.Calculator
	Workflow   *workflow.Workflow
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes a ticket creation payload.
type TicketCreateInput struct {
	RequesterID string
	Category    string
	Subcategory string
	Title       string
	Description string
	Priority    domain.TicketPriority
	SLALevel    domain.SLALevel
	AutoAssign  bool
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{
		tickets:    deps.TicketRepo,
		staff:      deps.StaffRepo,
		calculator: deps.Calculator,
		workflow:   deps.Workflow,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket registers a new ticket and runs the intake flow.
func (s *IntakeService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.RequesterID) == "" {
		return nil, apperrors.NewValidationError("requester is required", nil)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		RequesterID: input.RequesterID,
		Category:    strings.TrimSpace(input.Category),
		Subcategory: strings.TrimSpace(input.Subcategory),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusNew,
		Priority:    input.Priority,
		SLALevel:    input.SLALevel,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.SLALevel == "" {
		ticket.SLALevel = domain.SLALevelStandard
	}
	if !ticket.Priority.IsValid() {
		return nil, apperrors.NewValidationError("unknown priority",
			map[string]any{"priority": string(ticket.Priority)})
	}
	if !ticket.SLALevel.IsValid() {
		return nil, apperrors.NewValidationError("unknown sla level",
			map[string]any{"sla_level": string(ticket.SLALevel)})
	}

	due, err := s.calculator.DueDate(ticket.SLALevel, ticket.Priority, time.Now())
	if err != nil {
		return nil, err
	}
	ticket.DueDate = &due

	if input.AutoAssign {
		if err := s.autoAssign(ctx, ticket); err != nil {
			// leaving the ticket unassigned is acceptable; the monitor
			// picks unowned breaches up later
			s.logger.Warn("auto-assign failed", zap.String("ticket_key", ticket.ExternalKey), zap.Error(err))
		}
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:       events.EventTicketCreated,
		TicketID:   ticket.ID,
		ActorID:    &ticket.RequesterID,
		Recipients: []string{ticket.RequesterID},
		Payload: events.TicketCreatedPayload{
			Priority: ticket.Priority,
			SLALevel: ticket.SLALevel,
			DueDate:  ticket.DueDate,
			Title:    ticket.Title,
		},
	})
	if ticket.AssigneeID != nil {
		s.publish(ctx, events.Event{
			Type:       events.EventTicketAssigned,
			TicketID:   ticket.ID,
			Recipients: []string{*ticket.AssigneeID},
			Payload:    events.TicketAssignedPayload{AssigneeStaffID: ticket.AssigneeID},
		})
	}
	return ticket, nil
}

// UpdateStatus applies a caller-requested status change and persists it.
// Authorization is the caller's concern; the workflow enforces only the
// transition table and the resolution invariant.
func (s *IntakeService) UpdateStatus(ctx context.Context, ticketID string, next domain.TicketStatus, resolution string) (*domain.Ticket, error) {
	if !next.IsValid() {
		return nil, apperrors.NewValidationError("unknown status",
			map[string]any{"status": string(next)})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	oldStatus := ticket.Status
	if err := s.workflow.ApplyStatusChange(ticket, next, resolution); err != nil {
		return nil, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:       events.EventTicketStatusChanged,
		TicketID:   ticket.ID,
		Recipients: []string{ticket.RequesterID},
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
		},
	})
	return ticket, nil
}

// autoAssign picks the least-loaded eligible agent for the ticket's
// category and applies the assignment through the workflow. Prior exposure
// to the category is a ranking signal only, never a hard filter.
func (s *IntakeService) autoAssign(ctx context.Context, ticket *domain.Ticket) error {
	candidates, err := s.staff.ListCandidates(ctx, nil, ticket.CategoryKey())
	if err != nil {
		return err
	}
	selected := assignment.SelectAssignee(candidates)
	if selected == nil {
		return nil
	}
	agent, err := s.staff.GetByID(ctx, *selected)
	if err != nil {
		return err
	}
	return s.workflow.Assign(ticket, agent)
}

func (s *IntakeService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
