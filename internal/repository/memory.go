package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// In-memory repository implementations. The host process falls back to these
// when no POSTGRES_DSN is configured, and the engine tests run against them.
// Locking is coarse; correctness matters here, not throughput.

// MemoryTicketRepository is a map-backed TicketRepository.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository creates an empty repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

func (r *MemoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	now := time.Now()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = now
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *MemoryTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *MemoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *MemoryTicketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if !ticket.Status.Terminal() {
			result = append(result, ticket)
		}
	}
	sortTicketsByCreation(result)
	return result, nil
}

func (r *MemoryTicketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
			continue
		}
		if filter.DueBefore != nil && (ticket.DueDate == nil || ticket.DueDate.After(*filter.DueBefore)) {
			continue
		}
		result = append(result, ticket)
	}
	sortTicketsByCreation(result)
	return result, nil
}

// MemoryStaffRepository is a map-backed StaffRepository. Open-ticket counts
// for candidate projections come from an attached ticket repository.
type MemoryStaffRepository struct {
	mu      sync.Mutex
	staff   map[string]domain.StaffMember
	tickets *MemoryTicketRepository
}

// NewMemoryStaffRepository creates an empty repository drawing load counts
// from the given ticket store.
func NewMemoryStaffRepository(tickets *MemoryTicketRepository) *MemoryStaffRepository {
	return &MemoryStaffRepository{staff: make(map[string]domain.StaffMember), tickets: tickets}
}

func (r *MemoryStaffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	now := time.Now()
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = now
	}
	staff.UpdatedAt = now
	r.staff[staff.ID] = *staff
	return nil
}

func (r *MemoryStaffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	staff, ok := r.staff[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &staff, nil
}

func (r *MemoryStaffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.StaffMember
	for _, staff := range r.staff {
		if filter.Role != nil && staff.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && staff.Active != *filter.Active {
			continue
		}
		result = append(result, staff)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *MemoryStaffRepository) ListCandidates(ctx context.Context, role *domain.StaffRole, categoryKey string) ([]domain.StaffCandidate, error) {
	staffList, err := r.List(ctx, StaffFilter{Role: role})
	if err != nil {
		return nil, err
	}
	open, err := r.tickets.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, ticket := range open {
		if ticket.AssigneeID == nil {
			continue
		}
		if categoryKey != "" && ticket.CategoryKey() != categoryKey {
			continue
		}
		counts[*ticket.AssigneeID]++
	}

	result := make([]domain.StaffCandidate, 0, len(staffList))
	for _, staff := range staffList {
		result = append(result, domain.StaffCandidate{
			ID:          staff.ID,
			Role:        staff.Role,
			Active:      staff.Active,
			OpenTickets: counts[staff.ID],
			CreatedAt:   staff.CreatedAt,
		})
	}
	return result, nil
}

// MemoryNotificationRepository is a slice-backed NotificationRepository with
// the same atomic dedup semantics as the postgres implementation: the
// check-and-insert happens under one lock acquisition.
type MemoryNotificationRepository struct {
	mu            sync.Mutex
	notifications []domain.Notification
}

// NewMemoryNotificationRepository creates an empty repository.
func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{}
}

func (r *MemoryNotificationRepository) CreateIfAbsent(ctx context.Context, batch []domain.Notification, window time.Duration) (bool, error) {
	if len(batch) == 0 {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-window)
	for _, existing := range r.notifications {
		if existing.TicketID == batch[0].TicketID && existing.Kind == batch[0].Kind && existing.CreatedAt.After(cutoff) {
			return false, nil
		}
	}
	now := time.Now()
	for _, n := range batch {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		r.notifications = append(r.notifications, n)
	}
	return true, nil
}

func (r *MemoryNotificationRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var result []domain.Notification
	for i := len(r.notifications) - 1; i >= 0 && len(result) < limit; i-- {
		if r.notifications[i].TicketID == ticketID {
			result = append(result, r.notifications[i])
		}
	}
	return result, nil
}

func sortTicketsByCreation(tickets []domain.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		if !tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
		}
		return strings.Compare(tickets[i].ID, tickets[j].ID) < 0
	})
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, p := range list {
		if p == priority {
			return true
		}
	}
	return false
}
