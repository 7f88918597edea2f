package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent   StaffRole = "AGENT"
	StaffRoleManager StaffRole = "MANAGER"
	StaffRoleAdmin   StaffRole = "ADMIN"
)

// Managerial reports whether the role counts as already-escalated ownership.
func (r StaffRole) Managerial() bool {
	return r == StaffRoleManager || r == StaffRoleAdmin
}

// StaffMember models a support agent, manager or administrator.
type StaffMember struct {
	ID        string
	Name      string
	Email     string
	Role      StaffRole
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StaffCandidate is the read-only projection used for assignment decisions.
// OpenTickets is scoped by whatever category filter produced the projection;
// for the manager escalation pool it is the total open-ticket count.
type StaffCandidate struct {
	ID          string
	Role        StaffRole
	Active      bool
	OpenTickets int
	CreatedAt   time.Time
}
