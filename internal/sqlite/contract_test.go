package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestContractRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	c := seedContract(t, db, "c1")

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, c.ClientID, got.ClientID)
	require.Equal(t, c.Phases, got.Phases)
	require.Equal(t, contract.StatusActive, got.Status)
	require.True(t, got.ClientSignature.Signed)
	require.Equal(t, "c-sig", got.ClientSignature.Token)
	require.NotNil(t, got.FreelancerSignature.SignedAt)
	require.Nil(t, got.WorkspaceID)
	require.Nil(t, got.JobID)
	require.Equal(t, int64(3), got.Version)
}

func TestContractRepository_Get_NotFound(t *testing.T) {
	db := NewTestDB(t)
	_, err := NewContractRepository(db).Get(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestContractRepository_Create_Duplicate(t *testing.T) {
	db := NewTestDB(t)
	c := seedContract(t, db, "c1")
	err := NewContractRepository(db).Create(context.Background(), c)
	require.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestContractRepository_Update_Version(t *testing.T) {
	db := NewTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	c := seedContract(t, db, "c1")
	c.Status = contract.StatusCompleted
	c.Version = 4
	c.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Update(ctx, c, 3))

	// Stale writer
	c.Status = contract.StatusCancelled
	c.Version = 4
	require.ErrorIs(t, repo.Update(ctx, c, 3), repository.ErrConflict)

	c.ID = "missing"
	require.ErrorIs(t, repo.Update(ctx, c, 3), repository.ErrNotFound)

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, contract.StatusCompleted, got.Status)
	require.Equal(t, int64(4), got.Version)
}

func TestContractRepository_UpdateLeavesWorkspaceReference(t *testing.T) {
	db := NewTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	c := seedContract(t, db, "c1")
	require.NoError(t, repo.SetWorkspace(ctx, "c1", "ws1"))

	c.Version = 4
	require.NoError(t, repo.Update(ctx, c, 3))

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got.WorkspaceID)
	require.Equal(t, "ws1", *got.WorkspaceID)
	require.Equal(t, int64(4), got.Version)
}

func TestContractRepository_SetWorkspace_NotFound(t *testing.T) {
	db := NewTestDB(t)
	err := NewContractRepository(db).SetWorkspace(context.Background(), "missing", "ws1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestContractRepository_List(t *testing.T) {
	db := NewTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	seedContract(t, db, "c1")
	seedContract(t, db, "c2")

	list, err := repo.List(ctx, contract.ListOptions{PartyID: "freelancer"})
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = repo.List(ctx, contract.ListOptions{PartyID: "someone-else"})
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = repo.List(ctx, contract.ListOptions{PartyID: "client", Statuses: []contract.Status{contract.StatusDraft}})
	require.NoError(t, err)
	require.Empty(t, list)

	list, err = repo.List(ctx, contract.ListOptions{PartyID: "client", Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestContractRepository_ListActiveWithoutWorkspace(t *testing.T) {
	db := NewTestDB(t)
	repo := NewContractRepository(db)
	ctx := context.Background()

	seedContract(t, db, "orphan")
	linked := seedContract(t, db, "linked")
	dangling := seedContract(t, db, "dangling")

	ws, ms := workspace.Build(linked, time.Now().UTC())
	require.NoError(t, NewWorkspaceRepository(db).Create(ctx, ws, ms))
	require.NoError(t, repo.SetWorkspace(ctx, linked.ID, ws.ID))
	require.NoError(t, repo.SetWorkspace(ctx, dangling.ID, "does-not-exist"))

	list, err := repo.ListActiveWithoutWorkspace(ctx, "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"dangling", "orphan"}, contractIDs(list))

	list, err = repo.ListActiveWithoutWorkspace(ctx, "", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"dangling"}, contractIDs(list))

	list, err = repo.ListActiveWithoutWorkspace(ctx, "dangling", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"orphan"}, contractIDs(list))
}

func TestContractRepository_ListActiveWithCompletedWorkspace(t *testing.T) {
	db := NewTestDB(t)
	repo := NewContractRepository(db)
	workspaces := NewWorkspaceRepository(db)
	ctx := context.Background()

	for _, id := range []string{"running", "finished"} {
		c := seedContract(t, db, id)
		ws, ms := workspace.Build(c, time.Now().UTC())
		if id == "finished" {
			ws.Status = workspace.StatusCompleted
		}
		require.NoError(t, workspaces.Create(ctx, ws, ms))
		require.NoError(t, repo.SetWorkspace(ctx, c.ID, ws.ID))
	}
	seedContract(t, db, "orphan")

	list, err := repo.ListActiveWithCompletedWorkspace(ctx, "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"finished"}, contractIDs(list))

	list, err = repo.ListActiveWithCompletedWorkspace(ctx, "finished", 10)
	require.NoError(t, err)
	require.Empty(t, list)
}

func contractIDs(list []contract.Contract) []string {
	ids := []string{}
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return ids
}
