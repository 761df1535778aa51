package contract_test

import (
	"testing"

	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/stretchr/testify/require"
)

func TestProjectPhaseStatus(t *testing.T) {
	tests := []struct {
		status    milestone.Status
		processed bool
		want      contract.PhaseStatus
	}{
		{milestone.StatusPending, false, contract.PhasePending},
		{milestone.StatusInProgress, false, contract.PhaseInProgress},
		{milestone.StatusRevisionRequested, false, contract.PhaseInProgress},
		{milestone.StatusAwaitingApproval, false, contract.PhaseCompleted},
		{milestone.StatusCompleted, false, contract.PhaseApproved},
		{milestone.StatusCompleted, true, contract.PhasePaid},
	}
	for _, tt := range tests {
		got := contract.ProjectPhaseStatus(milestone.Milestone{Status: tt.status, PaymentProcessed: tt.processed})
		require.Equal(t, tt.want, got, "status %s processed %v", tt.status, tt.processed)
	}
}

func TestProjectPhases_JoinsByNumber(t *testing.T) {
	c := &contract.Contract{Phases: []contract.Phase{
		{Number: 2, Title: "Build", Amount: 60},
		{Number: 1, Title: "Design", Amount: 40},
	}}
	views := contract.ProjectPhases(c, []milestone.Milestone{
		{ID: "m1", PhaseNumber: 1, Status: milestone.StatusCompleted},
	})
	require.Len(t, views, 2)
	require.Equal(t, 1, views[0].Number)
	require.Equal(t, contract.PhaseApproved, views[0].Status)
	require.Equal(t, "m1", views[0].MilestoneID)
	require.Equal(t, contract.PhasePending, views[1].Status)
	require.Empty(t, views[1].MilestoneID)
}

func TestProjectPhases_SyntheticMilestone(t *testing.T) {
	c := &contract.Contract{TotalAmount: 500}
	views := contract.ProjectPhases(c, []milestone.Milestone{
		{ID: "m1", PhaseNumber: 1, Title: "Complete project", Amount: 500, Status: milestone.StatusInProgress},
	})
	require.Len(t, views, 1)
	require.Equal(t, "Complete project", views[0].Title)
	require.Equal(t, int64(500), views[0].Amount)
	require.Equal(t, contract.PhaseInProgress, views[0].Status)
}
