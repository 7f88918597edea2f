package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/sla"
	"github.com/spec-kit/sla-engine/internal/workflow"
	apperrors "github.com/spec-kit/sla-engine/pkg/util"
)

type capturedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturedEvents) attach(d events.Dispatcher) {
	handler := func(ctx context.Context, event events.Event) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, event)
		return nil
	}
	d.Subscribe(events.EventTicketCreated, handler)
	d.Subscribe(events.EventTicketAssigned, handler)
	d.Subscribe(events.EventTicketStatusChanged, handler)
}

func (c *capturedEvents) ofType(eventType events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result []events.Event
	for _, event := range c.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}

type intakeFixture struct {
	tickets  *repository.MemoryTicketRepository
	staff    *repository.MemoryStaffRepository
	service  *IntakeService
	captured *capturedEvents
}

func newIntakeFixture(t *testing.T) *intakeFixture {
	t.Helper()
	cal, err := calendar.New(calendar.Config{
		StartHour:   9,
		EndHour:     17,
		WorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	})
	require.NoError(t, err)

	tickets := repository.NewMemoryTicketRepository()
	staff := repository.NewMemoryStaffRepository(tickets)
	dispatcher := events.NewInMemoryDispatcher()
	captured := &capturedEvents{}
	captured.attach(dispatcher)

	svc := NewIntakeService(IntakeDependencies{
		TicketRepo: tickets,
		StaffRepo:  staff,
		Calculator: sla.NewCalculator(cal),
		Workflow:   workflow.New(),
		Dispatcher: dispatcher,
	})
	return &intakeFixture{tickets: tickets, staff: staff, service: svc, captured: captured}
}

// addAgent registers an active agent and seeds openLoad open tickets in the
// given category so the ranking sees the load.
func (f *intakeFixture) addAgent(t *testing.T, id string, openLoad int, category string) {
	t.Helper()
	require.NoError(t, f.staff.Create(context.Background(), &domain.StaffMember{
		ID:     id,
		Name:   id,
		Email:  id + "@example.com",
		Role:   domain.StaffRoleAgent,
		Active: true,
	}))
	for i := 0; i < openLoad; i++ {
		assignee := id
		require.NoError(t, f.tickets.Create(context.Background(), &domain.Ticket{
			RequesterID: "seed",
			Category:    category,
			Status:      domain.TicketStatusOpen,
			Priority:    domain.TicketPriorityMedium,
			SLALevel:    domain.SLALevelStandard,
			Title:       "seed load",
			AssigneeID:  &assignee,
		}))
	}
}

func TestCreateTicketDefaultsAndDueDate(t *testing.T) {
	f := newIntakeFixture(t)

	ticket, err := f.service.CreateTicket(context.Background(), TicketCreateInput{
		RequesterID: "user-1",
		Title:       "  printer jam  ",
		Category:    "hardware",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, domain.SLALevelStandard, ticket.SLALevel)
	assert.Equal(t, "printer jam", ticket.Title)
	assert.True(t, strings.HasPrefix(ticket.ExternalKey, "TCK-"))
	require.NotNil(t, ticket.DueDate)
	assert.True(t, ticket.DueDate.After(time.Now()))
	assert.Nil(t, ticket.AssigneeID)

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.DueDate.Unix(), stored.DueDate.Unix())

	created := f.captured.ofType(events.EventTicketCreated)
	require.Len(t, created, 1)
	assert.Equal(t, ticket.ID, created[0].TicketID)
	assert.Empty(t, f.captured.ofType(events.EventTicketAssigned))
}

func TestCreateTicketValidation(t *testing.T) {
	f := newIntakeFixture(t)

	_, err := f.service.CreateTicket(context.Background(), TicketCreateInput{Title: "no requester"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))

	_, err = f.service.CreateTicket(context.Background(), TicketCreateInput{RequesterID: "user-1", Title: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
}

// Unknown enum strings are rejected at intake, never persisted. A bogus
// priority would otherwise skip every clamp and a bogus tier would silently
// get the STANDARD budget.
func TestCreateTicketRejectsUnknownEnums(t *testing.T) {
	f := newIntakeFixture(t)

	_, err := f.service.CreateTicket(context.Background(), TicketCreateInput{
		RequesterID: "user-1",
		Title:       "broken screen",
		Priority:    domain.TicketPriority("BOGUS"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))

	_, err = f.service.CreateTicket(context.Background(), TicketCreateInput{
		RequesterID: "user-1",
		Title:       "broken screen",
		SLALevel:    domain.SLALevel("NOT_A_TIER"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))

	open, err := f.tickets.ListOpen(context.Background())
	require.NoError(t, err)
	assert.Empty(t, open, "rejected tickets must not be stored")
}

func TestCreateTicketAutoAssignPicksLeastLoaded(t *testing.T) {
	f := newIntakeFixture(t)
	f.addAgent(t, "agent-busy", 3, "network")
	f.addAgent(t, "agent-idle", 0, "network")

	ticket, err := f.service.CreateTicket(context.Background(), TicketCreateInput{
		RequesterID: "user-1",
		Title:       "vpn down",
		Category:    "network",
		AutoAssign:  true,
	})
	require.NoError(t, err)

	require.NotNil(t, ticket.AssigneeID)
	assert.Equal(t, "agent-idle", *ticket.AssigneeID)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status, "assignment moves NEW to OPEN")

	assigned := f.captured.ofType(events.EventTicketAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, []string{"agent-idle"}, assigned[0].Recipients)
}

func TestCreateTicketAutoAssignWithEmptyPool(t *testing.T) {
	f := newIntakeFixture(t)

	ticket, err := f.service.CreateTicket(context.Background(), TicketCreateInput{
		RequesterID: "user-1",
		Title:       "account locked",
		AutoAssign:  true,
	})
	require.NoError(t, err)
	assert.Nil(t, ticket.AssigneeID)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
}

func TestUpdateStatus(t *testing.T) {
	f := newIntakeFixture(t)
	ticket, err := f.service.CreateTicket(context.Background(), TicketCreateInput{
		RequesterID: "user-1",
		Title:       "slow laptop",
	})
	require.NoError(t, err)

	t.Run("valid transition persists and publishes", func(t *testing.T) {
		updated, err := f.service.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatusOpen, "")
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, updated.Status)

		stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, stored.Status)

		changes := f.captured.ofType(events.EventTicketStatusChanged)
		require.Len(t, changes, 1)
		payload, ok := changes[0].Payload.(events.TicketStatusChangedPayload)
		require.True(t, ok)
		assert.Equal(t, domain.TicketStatusNew, payload.OldStatus)
		assert.Equal(t, domain.TicketStatusOpen, payload.NewStatus)
	})

	t.Run("invalid transition leaves store untouched", func(t *testing.T) {
		_, err := f.service.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatusResolved, "done")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

		stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	})

	t.Run("unknown ticket", func(t *testing.T) {
		_, err := f.service.UpdateStatus(context.Background(), "missing", domain.TicketStatusOpen, "")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
	})

	t.Run("unknown status rejected before lookup", func(t *testing.T) {
		_, err := f.service.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatus("LIMBO"), "")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
	})
}
