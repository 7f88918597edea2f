package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// StaffRepository handles persistence for staff members and exposes the
// candidate projections the balancer ranks.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffMember) error
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error)
	// ListCandidates loads active-or-not staff with their open-ticket
	// counts. A non-empty categoryKey scopes the count to tickets in that
	// category; the candidate set itself is never narrowed by category.
	ListCandidates(ctx context.Context, role *domain.StaffRole, categoryKey string) ([]domain.StaffCandidate, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Role   *domain.StaffRole
	Active *bool
	Limit  int
	Offset int
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the postgres-backed repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	const query = `
        INSERT INTO staff_members (name, email, role, active_flag)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		staff.Name,
		staff.Email,
		staff.Role,
		staff.Active,
	).Scan(&staff.ID, &staff.CreatedAt, &staff.UpdatedAt)
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	const query = `
        SELECT id, name, email, role, active_flag, created_at, updated_at
        FROM staff_members WHERE id=$1`
	var staff domain.StaffMember
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&staff.ID,
		&staff.Name,
		&staff.Email,
		&staff.Role,
		&staff.Active,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	query := `
        SELECT id, name, email, role, active_flag, created_at, updated_at
        FROM staff_members`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffMember
	for rows.Next() {
		var staff domain.StaffMember
		if err := rows.Scan(
			&staff.ID,
			&staff.Name,
			&staff.Email,
			&staff.Role,
			&staff.Active,
			&staff.CreatedAt,
			&staff.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, staff)
	}
	return result, rows.Err()
}

func (r *staffRepository) ListCandidates(ctx context.Context, role *domain.StaffRole, categoryKey string) ([]domain.StaffCandidate, error) {
	query := `
        SELECT s.id, s.role, s.active_flag, s.created_at,
               COUNT(t.id) FILTER (WHERE t.status NOT IN ('RESOLVED','CLOSED')`
	args := []any{}
	if categoryKey != "" {
		args = append(args, categoryKey)
		query += fmt.Sprintf(" AND (CASE WHEN t.subcategory='' THEN t.category ELSE t.category || '/' || t.subcategory END)=$%d", len(args))
	}
	query += `) AS open_tickets
        FROM staff_members s
        LEFT JOIN tickets t ON t.assignee_staff_id = s.id`
	if role != nil {
		args = append(args, *role)
		query += fmt.Sprintf(" WHERE s.role=$%d", len(args))
	}
	query += `
        GROUP BY s.id, s.role, s.active_flag, s.created_at
        ORDER BY s.created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffCandidate
	for rows.Next() {
		var candidate domain.StaffCandidate
		if err := rows.Scan(
			&candidate.ID,
			&candidate.Role,
			&candidate.Active,
			&candidate.CreatedAt,
			&candidate.OpenTickets,
		); err != nil {
			return nil, err
		}
		result = append(result, candidate)
	}
	return result, rows.Err()
}
