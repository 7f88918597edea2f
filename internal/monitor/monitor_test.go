package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/workflow"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) subscribe(d events.Dispatcher) {
	handler := func(ctx context.Context, event events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, event)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventSLAWarning, events.EventSLABreach, events.EventTicketEscalated,
	} {
		d.Subscribe(eventType, handler)
	}
}

func (r *eventRecorder) byType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []events.Event
	for _, event := range r.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

type fixture struct {
	tickets       *repository.MemoryTicketRepository
	staff         *repository.MemoryStaffRepository
	notifications *repository.MemoryNotificationRepository
	monitor       *Monitor
	recorder      *eventRecorder
}

func defaultConfig() config.ComplianceConfig {
	return config.ComplianceConfig{
		IntervalMinutes:      15,
		WarningWindowMinutes: 120,
		WarningDedupMinutes:  120,
		BreachDedupHours:     24,
		WorkerLimit:          2,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tickets := repository.NewMemoryTicketRepository()
	staff := repository.NewMemoryStaffRepository(tickets)
	notifications := repository.NewMemoryNotificationRepository()
	dispatcher := events.NewInMemoryDispatcher()
	recorder := &eventRecorder{}
	recorder.subscribe(dispatcher)

	m := New(Dependencies{
		Tickets:       tickets,
		Staff:         staff,
		Notifications: notifications,
		Workflow:      workflow.New(),
		Dispatcher:    dispatcher,
		Config:        defaultConfig(),
	})
	return &fixture{tickets: tickets, staff: staff, notifications: notifications, monitor: m, recorder: recorder}
}

func (f *fixture) addStaff(t *testing.T, id string, role domain.StaffRole, active bool, createdOffsetDays int) {
	t.Helper()
	err := f.staff.Create(context.Background(), &domain.StaffMember{
		ID:        id,
		Name:      id,
		Email:     id + "@example.com",
		Role:      role,
		Active:    active,
		CreatedAt: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, createdOffsetDays),
	})
	require.NoError(t, err)
}

func (f *fixture) addTicket(t *testing.T, id string, status domain.TicketStatus, priority domain.TicketPriority, assignee *string, dueIn time.Duration) *domain.Ticket {
	t.Helper()
	due := time.Now().Add(dueIn)
	ticket := &domain.Ticket{
		ID:          id,
		ExternalKey: "TCK-" + id,
		RequesterID: "requester-" + id,
		AssigneeID:  assignee,
		Status:      status,
		Priority:    priority,
		SLALevel:    domain.SLALevelStandard,
		Title:       "ticket " + id,
		DueDate:     &due,
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))
	return ticket
}

func strptr(s string) *string { return &s }

func (f *fixture) notificationsFor(t *testing.T, ticketID string, kind domain.NotificationKind) []domain.Notification {
	t.Helper()
	all, err := f.notifications.ListByTicket(context.Background(), ticketID, 100)
	require.NoError(t, err)
	var result []domain.Notification
	for _, n := range all {
		if n.Kind == kind {
			result = append(result, n)
		}
	}
	return result
}

func TestWarningEmittedOncePerWindow(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "agent-1", domain.StaffRoleAgent, true, 0)
	f.addTicket(t, "w1", domain.TicketStatusInProgress, domain.TicketPriorityMedium, strptr("agent-1"), time.Hour)

	require.NoError(t, f.monitor.RunOnce(context.Background()))
	require.NoError(t, f.monitor.RunOnce(context.Background()))

	warnings := f.notificationsFor(t, "w1", domain.NotificationSLAWarning)
	// one batch only: requester + assignee, no duplicates from the second run
	assert.Len(t, warnings, 2)
	assert.Len(t, f.recorder.byType(events.EventSLAWarning), 1)
}

func TestNoWarningOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.addTicket(t, "far", domain.TicketStatusOpen, domain.TicketPriorityMedium, nil, 3*time.Hour)

	require.NoError(t, f.monitor.RunOnce(context.Background()))

	assert.Empty(t, f.notificationsFor(t, "far", domain.NotificationSLAWarning))
	assert.Empty(t, f.recorder.byType(events.EventSLAWarning))
}

func TestTerminalTicketsIgnored(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "mgr-1", domain.StaffRoleManager, true, 0)
	resolved := f.addTicket(t, "done", domain.TicketStatusResolved, domain.TicketPriorityMedium, nil, -time.Hour)
	resolved.Resolution = "fixed"
	require.NoError(t, f.tickets.Update(context.Background(), resolved))

	require.NoError(t, f.monitor.RunOnce(context.Background()))

	assert.Empty(t, f.notificationsFor(t, "done", domain.NotificationSLABreach))
}

func TestBreachNotifiesManagersOnce(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "agent-1", domain.StaffRoleAgent, true, 0)
	f.addStaff(t, "mgr-1", domain.StaffRoleManager, true, 1)
	f.addStaff(t, "mgr-2", domain.StaffRoleManager, false, 2) // inactive, not notified
	f.addStaff(t, "admin-1", domain.StaffRoleAdmin, true, 3)
	f.addTicket(t, "b1", domain.TicketStatusInProgress, domain.TicketPriorityHigh, strptr("agent-1"), -time.Hour)

	require.NoError(t, f.monitor.RunOnce(context.Background()))
	require.NoError(t, f.monitor.RunOnce(context.Background()))

	breaches := f.notificationsFor(t, "b1", domain.NotificationSLABreach)
	recipients := map[string]bool{}
	for _, n := range breaches {
		recipients[n.UserID] = true
	}
	assert.Len(t, breaches, 4)
	assert.True(t, recipients["requester-b1"])
	assert.True(t, recipients["agent-1"])
	assert.True(t, recipients["mgr-1"])
	assert.True(t, recipients["admin-1"])
	assert.False(t, recipients["mgr-2"])
	assert.Len(t, f.recorder.byType(events.EventSLABreach), 1)
}

func TestBreachedTicketEscalatesToLeastLoadedManager(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "agent-1", domain.StaffRoleAgent, true, 0)
	f.addStaff(t, "mgr-busy", domain.StaffRoleManager, true, 1)
	f.addStaff(t, "mgr-idle", domain.StaffRoleManager, true, 2)
	// load mgr-busy with an open ticket so mgr-idle wins the ranking
	f.addTicket(t, "load", domain.TicketStatusOpen, domain.TicketPriorityMedium, strptr("mgr-busy"), 100*time.Hour)
	f.addTicket(t, "e1", domain.TicketStatusInProgress, domain.TicketPriorityLow, strptr("agent-1"), -time.Hour)

	require.NoError(t, f.monitor.RunOnce(context.Background()))

	updated, err := f.tickets.GetByID(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, updated.Priority)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, "mgr-idle", *updated.AssigneeID)

	escalations := f.notificationsFor(t, "e1", domain.NotificationTicketEscalated)
	recipients := map[string]bool{}
	for _, n := range escalations {
		recipients[n.UserID] = true
	}
	assert.True(t, recipients["mgr-idle"])
	assert.True(t, recipients["requester-e1"])

	emitted := f.recorder.byType(events.EventTicketEscalated)
	require.Len(t, emitted, 1)
	payload, ok := emitted[0].Payload.(events.TicketEscalatedPayload)
	require.True(t, ok)
	assert.False(t, payload.Manual)
	assert.Equal(t, domain.TicketPriorityLow, payload.OldPriority)
	assert.Equal(t, domain.TicketPriorityMedium, payload.NewPriority)
}

// A NEW unassigned ticket has no assignee role to inspect, so it is not
// "already escalated": it gets bumped and handed to a manager, moving to
// OPEN through the assignment transition.
func TestUnassignedNewTicketEscalates(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "mgr-1", domain.StaffRoleManager, true, 0)
	f.addTicket(t, "n1", domain.TicketStatusNew, domain.TicketPriorityLow, nil, -30*time.Minute)

	require.NoError(t, f.monitor.RunOnce(context.Background()))

	updated, err := f.tickets.GetByID(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Equal(t, domain.TicketPriorityMedium, updated.Priority)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, "mgr-1", *updated.AssigneeID)
}

// A breached CRITICAL ticket is already escalated: no bump, no reassignment,
// but the breach alert still goes out.
func TestCriticalTicketNotReBumpedButStillNotified(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "agent-1", domain.StaffRoleAgent, true, 0)
	f.addStaff(t, "mgr-1", domain.StaffRoleManager, true, 1)
	f.addTicket(t, "c1", domain.TicketStatusInProgress, domain.TicketPriorityCritical, strptr("agent-1"), -time.Hour)

	require.NoError(t, f.monitor.RunOnce(context.Background()))

	updated, err := f.tickets.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityCritical, updated.Priority)
	assert.Equal(t, "agent-1", *updated.AssigneeID)
	assert.Empty(t, f.recorder.byType(events.EventTicketEscalated))
	assert.NotEmpty(t, f.notificationsFor(t, "c1", domain.NotificationSLABreach))
}

func TestManagerOwnedTicketNotEscalated(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "mgr-1", domain.StaffRoleManager, true, 0)
	f.addTicket(t, "m1", domain.TicketStatusInProgress, domain.TicketPriorityHigh, strptr("mgr-1"), -time.Hour)

	require.NoError(t, f.monitor.RunOnce(context.Background()))

	updated, err := f.tickets.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	assert.Empty(t, f.recorder.byType(events.EventTicketEscalated))
}

func TestNoEligibleManagerLeavesTicketUntouched(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "agent-1", domain.StaffRoleAgent, true, 0)
	f.addTicket(t, "x1", domain.TicketStatusOpen, domain.TicketPriorityLow, strptr("agent-1"), -time.Hour)

	require.NoError(t, f.monitor.RunOnce(context.Background()))

	updated, err := f.tickets.GetByID(context.Background(), "x1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityLow, updated.Priority)
	assert.Equal(t, "agent-1", *updated.AssigneeID)
}

func TestManualEscalate(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "mgr-1", domain.StaffRoleManager, true, 0)

	t.Run("escalates without breach check", func(t *testing.T) {
		// due date far in the future; manual escalation does not re-check it
		f.addTicket(t, "man1", domain.TicketStatusOpen, domain.TicketPriorityMedium, nil, 100*time.Hour)

		ticket, err := f.monitor.ManualEscalate(context.Background(), "man1", "admin-7")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketPriorityHigh, ticket.Priority)
		require.NotNil(t, ticket.AssigneeID)
		assert.Equal(t, "mgr-1", *ticket.AssigneeID)

		emitted := f.recorder.byType(events.EventTicketEscalated)
		require.Len(t, emitted, 1)
		require.NotNil(t, emitted[0].ActorID)
		assert.Equal(t, "admin-7", *emitted[0].ActorID)
		payload := emitted[0].Payload.(events.TicketEscalatedPayload)
		assert.True(t, payload.Manual)
	})

	t.Run("terminal ticket rejected", func(t *testing.T) {
		closed := f.addTicket(t, "man2", domain.TicketStatusNew, domain.TicketPriorityMedium, nil, time.Hour)
		require.NoError(t, workflow.New().ApplyStatusChange(closed, domain.TicketStatusClosed, ""))
		require.NoError(t, f.tickets.Update(context.Background(), closed))

		_, err := f.monitor.ManualEscalate(context.Background(), "man2", "admin-7")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, "CONFLICT"))
	})

	t.Run("unknown ticket rejected", func(t *testing.T) {
		_, err := f.monitor.ManualEscalate(context.Background(), "missing", "admin-7")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
	})
}

// Without an eligible manager the automatic pass silently retries next tick,
// but a manual request must fail loudly: the operator asked for a change
// that did not happen.
func TestManualEscalateNoManagerIsConflict(t *testing.T) {
	f := newFixture(t)
	f.addStaff(t, "agent-1", domain.StaffRoleAgent, true, 0)
	f.addTicket(t, "stuck", domain.TicketStatusOpen, domain.TicketPriorityMedium, strptr("agent-1"), time.Hour)

	_, err := f.monitor.ManualEscalate(context.Background(), "stuck", "admin-7")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "CONFLICT"))

	unchanged, err := f.tickets.GetByID(context.Background(), "stuck")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, unchanged.Priority)
	assert.Equal(t, "agent-1", *unchanged.AssigneeID)
	assert.Empty(t, f.recorder.byType(events.EventTicketEscalated))
}

// failingNotificationRepo fails every write for one ticket id.
type failingNotificationRepo struct {
	repository.NotificationRepository
	failTicketID string
}

func (r *failingNotificationRepo) CreateIfAbsent(ctx context.Context, batch []domain.Notification, window time.Duration) (bool, error) {
	if len(batch) > 0 && batch[0].TicketID == r.failTicketID {
		return false, errors.New("notification store unavailable")
	}
	return r.NotificationRepository.CreateIfAbsent(ctx, batch, window)
}

// A persistence failure for one ticket never aborts the pass: the healthy
// ticket is still alerted, and the failed one is retried on the next tick
// through the same dedup-miss path.
func TestPerTicketFailureIsolation(t *testing.T) {
	tickets := repository.NewMemoryTicketRepository()
	staff := repository.NewMemoryStaffRepository(tickets)
	notifications := repository.NewMemoryNotificationRepository()
	failing := &failingNotificationRepo{NotificationRepository: notifications, failTicketID: "bad"}

	m := New(Dependencies{
		Tickets:       tickets,
		Staff:         staff,
		Notifications: failing,
		Workflow:      workflow.New(),
		Dispatcher:    events.NewInMemoryDispatcher(),
		Config:        defaultConfig(),
	})

	for _, id := range []string{"bad", "good"} {
		due := time.Now().Add(time.Hour)
		require.NoError(t, tickets.Create(context.Background(), &domain.Ticket{
			ID:          id,
			ExternalKey: "TCK-" + id,
			RequesterID: "requester-" + id,
			Status:      domain.TicketStatusOpen,
			Priority:    domain.TicketPriorityMedium,
			SLALevel:    domain.SLALevelStandard,
			DueDate:     &due,
		}))
	}

	require.NoError(t, m.RunOnce(context.Background()))

	good, err := notifications.ListByTicket(context.Background(), "good", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, good)
	bad, err := notifications.ListByTicket(context.Background(), "bad", 10)
	require.NoError(t, err)
	assert.Empty(t, bad)
}

// gatedTicketRepo blocks ListOpen until released, to hold a pass open.
type gatedTicketRepo struct {
	repository.TicketRepository
	release chan struct{}
	entered chan struct{}
}

func (r *gatedTicketRepo) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	r.entered <- struct{}{}
	<-r.release
	return r.TicketRepository.ListOpen(ctx)
}

func TestOverlappingTickSkipped(t *testing.T) {
	tickets := repository.NewMemoryTicketRepository()
	staff := repository.NewMemoryStaffRepository(tickets)
	gated := &gatedTicketRepo{
		TicketRepository: tickets,
		release:          make(chan struct{}),
		entered:          make(chan struct{}, 1),
	}

	m := New(Dependencies{
		Tickets:       gated,
		Staff:         staff,
		Notifications: repository.NewMemoryNotificationRepository(),
		Workflow:      workflow.New(),
		Dispatcher:    events.NewInMemoryDispatcher(),
		Config:        defaultConfig(),
	})

	done := make(chan error, 1)
	go func() { done <- m.RunOnce(context.Background()) }()
	<-gated.entered // first pass is now in flight

	// the overlapping invocation must return immediately without touching
	// the repository
	require.NoError(t, m.RunOnce(context.Background()))

	close(gated.release)
	require.NoError(t, <-done)
}
