// Package assignment implements least-loaded assignee selection. Selection
// is pure: the balancer never mutates tickets or writes assignments, it only
// picks a candidate id for the caller to apply through the workflow.
package assignment

import (
	"sort"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// SelectAssignee returns the least-loaded active candidate, tie-broken by
// account age and finally id so the choice is stable under candidate-list
// reordering. An empty eligible set yields nil, which callers treat as
// "leave unassigned", not an error.
func SelectAssignee(candidates []domain.StaffCandidate) *string {
	eligible := make([]domain.StaffCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Active {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].OpenTickets != eligible[j].OpenTickets {
			return eligible[i].OpenTickets < eligible[j].OpenTickets
		}
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	id := eligible[0].ID
	return &id
}
