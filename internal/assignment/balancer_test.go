package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/domain"
)

func candidate(id string, load int, createdOffsetDays int, active bool) domain.StaffCandidate {
	return domain.StaffCandidate{
		ID:          id,
		Role:        domain.StaffRoleAgent,
		Active:      active,
		OpenTickets: load,
		CreatedAt:   time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, createdOffsetDays),
	}
}

func TestSelectAssigneeLeastLoaded(t *testing.T) {
	candidates := []domain.StaffCandidate{
		candidate("busy", 7, 0, true),
		candidate("idle", 1, 5, true),
		candidate("medium", 3, 2, true),
	}
	selected := SelectAssignee(candidates)
	require.NotNil(t, selected)
	assert.Equal(t, "idle", *selected)
}

func TestSelectAssigneeFiltersInactive(t *testing.T) {
	candidates := []domain.StaffCandidate{
		candidate("gone", 0, 0, false),
		candidate("here", 5, 1, true),
	}
	selected := SelectAssignee(candidates)
	require.NotNil(t, selected)
	assert.Equal(t, "here", *selected)
}

func TestSelectAssigneeEmptyPool(t *testing.T) {
	assert.Nil(t, SelectAssignee(nil))
	assert.Nil(t, SelectAssignee([]domain.StaffCandidate{candidate("gone", 0, 0, false)}))
}

func TestSelectAssigneeTieBreakByAccountAge(t *testing.T) {
	candidates := []domain.StaffCandidate{
		candidate("newer", 2, 10, true),
		candidate("older", 2, 1, true),
	}
	selected := SelectAssignee(candidates)
	require.NotNil(t, selected)
	assert.Equal(t, "older", *selected)
}

// The selection is a pure function of the candidate set: repeated calls and
// reordered inputs always pick the same id.
func TestSelectAssigneeDeterministicUnderReordering(t *testing.T) {
	base := []domain.StaffCandidate{
		candidate("a", 2, 3, true),
		candidate("b", 2, 3, true), // full tie with a; id breaks it
		candidate("c", 1, 8, true),
		candidate("d", 4, 0, true),
	}
	first := SelectAssignee(base)
	require.NotNil(t, first)
	assert.Equal(t, "c", *first)

	permutations := [][]int{{3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, perm := range permutations {
		shuffled := make([]domain.StaffCandidate, len(base))
		for i, j := range perm {
			shuffled[i] = base[j]
		}
		again := SelectAssignee(shuffled)
		require.NotNil(t, again)
		assert.Equal(t, *first, *again)
	}
}

func TestSelectAssigneeDoesNotMutateInput(t *testing.T) {
	candidates := []domain.StaffCandidate{
		candidate("z", 9, 0, true),
		candidate("a", 1, 0, true),
	}
	_ = SelectAssignee(candidates)
	assert.Equal(t, "z", candidates[0].ID)
	assert.Equal(t, "a", candidates[1].ID)
}
