// Package monitor implements the recurring SLA compliance pass: warning
// detection, breach detection and auto-escalation over the open-ticket
// corpus. One invocation scans every non-terminal ticket; per-ticket work is
// parallelized behind a bounded pool while the three sub-passes for a single
// ticket always run sequentially.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/sla-engine/internal/assignment"
	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/workflow"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

// Dependencies bundles collaborators for the monitor.
type Dependencies struct {
	Tickets       repository.TicketRepository
	Staff         repository.StaffRepository
	Notifications repository.NotificationRepository
	Workflow      *workflow.Workflow
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Config        config.ComplianceConfig
	Now           func() time.Time
}

// Monitor runs the compliance passes.
type Monitor struct {
	tickets       repository.TicketRepository
	staff         repository.StaffRepository
	notifications repository.NotificationRepository
	workflow      *workflow.Workflow
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	metrics       *observability.Metrics
	cfg           config.ComplianceConfig
	now           func() time.Time

	inFlight atomic.Bool
}

// New constructs the monitor.
func New(deps Dependencies) *Monitor {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		tickets:       deps.Tickets,
		staff:         deps.Staff,
		notifications: deps.Notifications,
		workflow:      deps.Workflow,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		metrics:       deps.Metrics,
		cfg:           deps.Config,
		now:           now,
	}
}

type passStats struct {
	warnings    atomic.Int64
	breaches    atomic.Int64
	escalations atomic.Int64
	errors      atomic.Int64
}

// RunOnce executes one compliance pass. A pass already in progress causes
// the call to return immediately; duplicate-alert risk is then bounded to
// races within a single tick, which the conditional dedup insert absorbs.
func (m *Monitor) RunOnce(ctx context.Context) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.logger.Warn("compliance pass already in progress; skipping tick")
		return nil
	}
	defer m.inFlight.Store(false)

	now := m.now()
	tickets, err := m.tickets.ListOpen(ctx)
	if err != nil {
		return apperrors.MapError(err)
	}

	var stats passStats
	group, groupCtx := errgroup.WithContext(ctx)
	limit := m.cfg.WorkerLimit
	if limit <= 0 {
		limit = 1
	}
	group.SetLimit(limit)

	for i := range tickets {
		ticket := tickets[i]
		group.Go(func() error {
			m.processTicket(groupCtx, ticket, now, &stats)
			return nil
		})
	}
	_ = group.Wait()

	m.metrics.RecordCompliancePass(len(tickets),
		int(stats.warnings.Load()), int(stats.breaches.Load()),
		int(stats.escalations.Load()), int(stats.errors.Load()))
	m.logger.Info("compliance pass complete",
		zap.Int("tickets_scanned", len(tickets)),
		zap.Int64("warnings", stats.warnings.Load()),
		zap.Int64("breaches", stats.breaches.Load()),
		zap.Int64("escalations", stats.escalations.Load()),
		zap.Int64("errors", stats.errors.Load()))
	return nil
}

// processTicket runs the three sub-passes sequentially for one ticket.
// Failures are isolated: logged, counted, and left for the next tick to
// retry through the same dedup-miss path.
func (m *Monitor) processTicket(ctx context.Context, ticket domain.Ticket, now time.Time, stats *passStats) {
	if ticket.DueDate == nil {
		return
	}

	if warned, err := m.warningPass(ctx, &ticket, now); err != nil {
		stats.errors.Add(1)
		m.logger.Error("warning pass failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else if warned {
		stats.warnings.Add(1)
	}

	if breached, err := m.breachPass(ctx, &ticket, now); err != nil {
		stats.errors.Add(1)
		m.logger.Error("breach pass failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else if breached {
		stats.breaches.Add(1)
	}

	if escalated, err := m.escalationPass(ctx, &ticket, now); err != nil {
		stats.errors.Add(1)
		m.logger.Error("escalation pass failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else if escalated {
		stats.escalations.Add(1)
	}
}

// warningPass alerts requester and assignee when the due date falls inside
// the warning window. Returns true when a fresh warning was emitted.
func (m *Monitor) warningPass(ctx context.Context, ticket *domain.Ticket, now time.Time) (bool, error) {
	due := *ticket.DueDate
	if !due.After(now) || due.Sub(now) > m.cfg.WarningWindow() {
		return false, nil
	}

	recipients := []string{ticket.RequesterID}
	if ticket.AssigneeID != nil {
		recipients = append(recipients, *ticket.AssigneeID)
	}
	return m.emitDeduped(ctx, ticket, domain.NotificationSLAWarning, recipients,
		m.cfg.WarningDedup(), events.EventSLAWarning, now)
}

// breachPass alerts requester, assignee and all active managers once the
// due date has passed. Returns true when a fresh breach alert was emitted.
func (m *Monitor) breachPass(ctx context.Context, ticket *domain.Ticket, now time.Time) (bool, error) {
	if ticket.DueDate.After(now) {
		return false, nil
	}

	recipients := []string{ticket.RequesterID}
	if ticket.AssigneeID != nil {
		recipients = append(recipients, *ticket.AssigneeID)
	}
	managers, err := m.activeManagers(ctx)
	if err != nil {
		return false, err
	}
	recipients = append(recipients, managers...)

	return m.emitDeduped(ctx, ticket, domain.NotificationSLABreach, recipients,
		m.cfg.BreachDedup(), events.EventSLABreach, now)
}

// escalationPass bumps priority and reassigns breached tickets that are not
// already escalated. "Already escalated" means the assignee holds a
// managerial role or the priority is already CRITICAL.
func (m *Monitor) escalationPass(ctx context.Context, ticket *domain.Ticket, now time.Time) (bool, error) {
	if ticket.DueDate.After(now) {
		return false, nil
	}
	escalated, err := m.isTicketEscalated(ctx, ticket)
	if err != nil {
		return false, err
	}
	if escalated {
		return false, nil
	}
	return m.escalateTicket(ctx, ticket, nil, false)
}

// ManualEscalate performs the escalation body for a single ticket on demand,
// bypassing the breach-detection filter. The initiator is recorded as the
// acting party on the emitted event.
func (m *Monitor) ManualEscalate(ctx context.Context, ticketID, initiatorID string) (*domain.Ticket, error) {
	ticket, err := m.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if ticket.Status.Terminal() {
		return nil, apperrors.NewConflict("ticket is already resolved or closed",
			map[string]any{"ticket_id": ticketID, "status": string(ticket.Status)})
	}
	escalated, err := m.escalateTicket(ctx, ticket, &initiatorID, true)
	if err != nil {
		return nil, err
	}
	// the automatic pass just waits for the next tick here, but an operator
	// asked for this escalation and must learn nothing changed
	if !escalated {
		return nil, apperrors.NewConflict("no eligible manager to escalate to",
			map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// escalateTicket is the shared single-ticket escalation body: pick the
// least-loaded active manager by total load, bump priority one step,
// reassign through the workflow, persist, and notify the new assignee and
// the requester.
func (m *Monitor) escalateTicket(ctx context.Context, ticket *domain.Ticket, actorID *string, manual bool) (bool, error) {
	role := domain.StaffRoleManager
	candidates, err := m.staff.ListCandidates(ctx, &role, "")
	if err != nil {
		return false, err
	}
	selected := assignment.SelectAssignee(candidates)
	if selected == nil {
		m.logger.Warn("no eligible manager for escalation", zap.String("ticket_id", ticket.ID))
		return false, nil
	}
	manager, err := m.staff.GetByID(ctx, *selected)
	if err != nil {
		return false, err
	}

	oldPriority := ticket.Priority
	if err := m.workflow.Escalate(ticket, manager); err != nil {
		return false, err
	}
	if err := m.tickets.Update(ctx, ticket); err != nil {
		return false, err
	}

	recipients := []string{manager.ID, ticket.RequesterID}
	batch := notificationBatch(ticket, domain.NotificationTicketEscalated, recipients)
	if _, err := m.notifications.CreateIfAbsent(ctx, batch, 0); err != nil {
		return false, err
	}

	m.publish(ctx, events.Event{
		Type:       events.EventTicketEscalated,
		TicketID:   ticket.ID,
		ActorID:    actorID,
		Recipients: recipients,
		Payload: events.TicketEscalatedPayload{
			OldPriority: oldPriority,
			NewPriority: ticket.Priority,
			NewAssignee: manager.ID,
			Manual:      manual,
		},
	})
	return true, nil
}

// isTicketEscalated checks the assignee's role and the ticket priority. An
// unassigned ticket is never considered escalated.
func (m *Monitor) isTicketEscalated(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	if ticket.Priority == domain.TicketPriorityCritical {
		return true, nil
	}
	if ticket.AssigneeID == nil {
		return false, nil
	}
	assignee, err := m.staff.GetByID(ctx, *ticket.AssigneeID)
	if err != nil {
		return false, err
	}
	return assignee.Role.Managerial(), nil
}

// emitDeduped atomically records the notification batch unless a matching
// alert exists inside the window, then publishes the outward event only for
// a fresh insert.
func (m *Monitor) emitDeduped(ctx context.Context, ticket *domain.Ticket, kind domain.NotificationKind,
	recipients []string, window time.Duration, eventType events.EventType, now time.Time) (bool, error) {
	batch := notificationBatch(ticket, kind, recipients)
	inserted, err := m.notifications.CreateIfAbsent(ctx, batch, window)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	m.publish(ctx, events.Event{
		Type:       eventType,
		TicketID:   ticket.ID,
		Recipients: recipients,
		Payload: events.SLADeadlinePayload{
			DueDate:  *ticket.DueDate,
			Priority: ticket.Priority,
			SLALevel: ticket.SLALevel,
		},
	})
	return true, nil
}

func (m *Monitor) activeManagers(ctx context.Context) ([]string, error) {
	active := true
	staffList, err := m.staff.List(ctx, repository.StaffFilter{Active: &active})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, member := range staffList {
		if member.Role.Managerial() {
			ids = append(ids, member.ID)
		}
	}
	return ids, nil
}

func (m *Monitor) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now()
	}
	_ = m.dispatcher.Publish(ctx, event)
}

func notificationBatch(ticket *domain.Ticket, kind domain.NotificationKind, recipients []string) []domain.Notification {
	payload := map[string]any{
		"ticket_key": ticket.ExternalKey,
		"priority":   string(ticket.Priority),
		"sla_level":  string(ticket.SLALevel),
	}
	if ticket.DueDate != nil {
		payload["due_date"] = ticket.DueDate.Format(time.RFC3339)
	}

	seen := make(map[string]bool, len(recipients))
	batch := make([]domain.Notification, 0, len(recipients))
	for _, userID := range recipients {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		batch = append(batch, domain.Notification{
			ID:       uuid.NewString(),
			TicketID: ticket.ID,
			UserID:   userID,
			Kind:     kind,
			Payload:  payload,
		})
	}
	return batch
}
