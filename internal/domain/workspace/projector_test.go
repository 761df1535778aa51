package workspace_test

import (
	"testing"
	"time"

	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/stretchr/testify/require"
)

func activeContract() *contract.Contract {
	id := "c1"
	return &contract.Contract{
		ID:           id,
		ClientID:     "client",
		FreelancerID: "freelancer",
		Title:        "Landing page",
		TotalAmount:  100000,
		Currency:     "USD",
		Phases: []contract.Phase{
			{Number: 1, Title: "Design", Amount: 40000},
			{Number: 2, Title: "Build", Amount: 60000},
		},
		Status:  contract.StatusActive,
		Version: 3,
	}
}

func seeded(t *testing.T) (*workspace.Workspace, []milestone.Milestone) {
	t.Helper()
	ws, ms := workspace.Build(activeContract(), time.Now().UTC())
	ws.ClientPrivate.Notes = append(ws.ClientPrivate.Notes, workspace.Note{ID: "n1", Text: "client secret"})
	ws.FreelancerPrivate.Notes = append(ws.FreelancerPrivate.Notes, workspace.Note{ID: "n2", Text: "freelancer secret"})
	return ws, ms
}

func TestProject_Client(t *testing.T) {
	ws, ms := seeded(t)
	view, err := workspace.Project(ws, ms, "client", "")
	require.NoError(t, err)
	require.Equal(t, party.RoleClient, view.Role)
	require.Equal(t, []workspace.Permission{
		workspace.PermApproveMilestones,
		workspace.PermRequestRevisions,
		workspace.PermMakePayments,
		workspace.PermUploadFiles,
		workspace.PermSendMessages,
	}, view.Permissions)
	require.Len(t, view.Private.Notes, 1)
	require.Equal(t, "client secret", view.Private.Notes[0].Text)
	require.Len(t, view.Milestones, 2)
	require.Empty(t, view.Milestones[0].Actions)
}

func TestProject_Freelancer(t *testing.T) {
	ws, ms := seeded(t)
	view, err := workspace.Project(ws, ms, "freelancer", party.RoleFreelancer)
	require.NoError(t, err)
	require.Equal(t, party.RoleFreelancer, view.Role)
	require.Contains(t, view.Permissions, workspace.PermSubmitWork)
	require.Contains(t, view.Permissions, workspace.PermTrackEarnings)
	require.NotContains(t, view.Permissions, workspace.PermApproveMilestones)
	require.Len(t, view.Private.Notes, 1)
	require.Equal(t, "freelancer secret", view.Private.Notes[0].Text)
	require.Equal(t, []milestone.Action{milestone.ActionStart}, view.Milestones[0].Actions)
}

func TestProject_AssertedRoleMismatch(t *testing.T) {
	ws, ms := seeded(t)
	_, err := workspace.Project(ws, ms, "freelancer", party.RoleClient)
	require.ErrorIs(t, err, workspace.ErrAccessDenied)
}

func TestProject_NonParty(t *testing.T) {
	ws, ms := seeded(t)
	_, err := workspace.Project(ws, ms, "stranger", "")
	require.ErrorIs(t, err, workspace.ErrAccessDenied)

	_, err = workspace.Project(ws, ms, "", "")
	require.ErrorIs(t, err, workspace.ErrAccessDenied)
}

func TestProject_DoesNotAlias(t *testing.T) {
	ws, ms := seeded(t)
	view, err := workspace.Project(ws, ms, "client", "")
	require.NoError(t, err)

	view.Private.Notes[0].Text = "changed"
	view.Shared.Phases[0].Title = "changed"
	require.Equal(t, "client secret", ws.ClientPrivate.Notes[0].Text)
	require.Equal(t, "Design", ws.Shared.Phases[0].Title)
}

func TestComputeLedger(t *testing.T) {
	ms := []milestone.Milestone{
		{Amount: 30000, Status: milestone.StatusCompleted, PaymentProcessed: true},
		{Amount: 20000, Status: milestone.StatusCompleted, PaymentEligible: true},
		{Amount: 50000, Status: milestone.StatusInProgress},
	}
	ledger := workspace.ComputeLedger(100000, ms)
	require.Equal(t, workspace.Ledger{Total: 100000, Released: 30000, Pending: 20000, Remaining: 70000}, ledger)
}

func TestBuild_SeedsOneMilestonePerPhase(t *testing.T) {
	c := activeContract()
	ws, ms := workspace.Build(c, time.Now().UTC())
	require.Equal(t, workspace.NewID("c1"), ws.ID)
	require.Equal(t, workspace.StatusActive, ws.Shared.Status)
	require.Equal(t, 1, ws.Shared.CurrentPhase)
	require.Equal(t, int64(100000), ws.ClientPrivate.BudgetTotal)
	require.Equal(t, int64(100000), ws.FreelancerPrivate.BudgetTotal)
	require.Len(t, ms, 2)
	for i, m := range ms {
		require.Equal(t, milestone.NewID(ws.ID, i+1), m.ID)
		require.Equal(t, milestone.StatusPending, m.Status)
		require.Equal(t, c.Phases[i].Amount, m.Amount)
		require.Equal(t, ws.ID, m.WorkspaceID)
	}
}

func TestBuild_SyntheticMilestone(t *testing.T) {
	c := activeContract()
	c.Phases = nil
	ws, ms := workspace.Build(c, time.Now().UTC())
	require.NotNil(t, ws.Shared.Phases)
	require.Len(t, ms, 1)
	require.Equal(t, "Complete project", ms[0].Title)
	require.Equal(t, c.TotalAmount, ms[0].Amount)
	require.Equal(t, 1, ms[0].PhaseNumber)
}
