package workspace_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/repository"
	"github.com/rpggio/handshake/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fastRetry = workspace.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

func TestProvision_Creates(t *testing.T) {
	ctx := context.Background()
	contracts := &mocks.ContractRepository{}
	workspaces := &mocks.WorkspaceRepository{}
	events := &notify.Recorder{}

	contracts.On("Get", ctx, "c1").Return(activeContract(), nil)
	workspaces.On("GetByContract", ctx, "c1").Return(nil, repository.ErrNotFound)
	workspaces.On("Create", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	contracts.On("SetWorkspace", ctx, "c1", workspace.NewID("c1")).Return(nil).Once()

	p := workspace.NewProvisioner(contracts, workspaces, nil, events, fastRetry, nil)
	ws, created, err := p.Provision(ctx, "c1")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, workspace.NewID("c1"), ws.ID)
	require.Len(t, events.EventsFor("client", notify.KindWorkspaceReady), 1)
	require.Len(t, events.EventsFor("freelancer", notify.KindWorkspaceReady), 1)
	contracts.AssertExpectations(t)
	workspaces.AssertExpectations(t)
}

func TestProvision_ReturnsExisting(t *testing.T) {
	ctx := context.Background()
	contracts := &mocks.ContractRepository{}
	workspaces := &mocks.WorkspaceRepository{}
	events := &notify.Recorder{}

	c := activeContract()
	wsID := workspace.NewID("c1")
	c.WorkspaceID = &wsID
	existing, _ := workspace.Build(c, time.Now().UTC())

	contracts.On("Get", ctx, "c1").Return(c, nil)
	workspaces.On("GetByContract", ctx, "c1").Return(existing, nil)

	p := workspace.NewProvisioner(contracts, workspaces, nil, events, fastRetry, nil)
	ws, created, err := p.Provision(ctx, "c1")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, existing.ID, ws.ID)
	require.Empty(t, events.Events())
	workspaces.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	contracts.AssertNotCalled(t, "SetWorkspace", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvision_RepairsMissingReference(t *testing.T) {
	ctx := context.Background()
	contracts := &mocks.ContractRepository{}
	workspaces := &mocks.WorkspaceRepository{}

	c := activeContract()
	existing, _ := workspace.Build(c, time.Now().UTC())

	contracts.On("Get", ctx, "c1").Return(c, nil)
	workspaces.On("GetByContract", ctx, "c1").Return(existing, nil)
	contracts.On("SetWorkspace", ctx, "c1", existing.ID).Return(nil).Once()

	p := workspace.NewProvisioner(contracts, workspaces, nil, nil, fastRetry, nil)
	_, created, err := p.Provision(ctx, "c1")
	require.NoError(t, err)
	require.False(t, created)
	contracts.AssertExpectations(t)
}

func TestProvision_LostRaceAdoptsWinner(t *testing.T) {
	ctx := context.Background()
	contracts := &mocks.ContractRepository{}
	workspaces := &mocks.WorkspaceRepository{}
	events := &notify.Recorder{}

	c := activeContract()
	winner, _ := workspace.Build(c, time.Now().UTC())

	contracts.On("Get", ctx, "c1").Return(c, nil)
	workspaces.On("GetByContract", ctx, "c1").Return(nil, repository.ErrNotFound).Once()
	workspaces.On("Create", ctx, mock.Anything, mock.Anything).Return(repository.ErrDuplicate).Once()
	workspaces.On("GetByContract", ctx, "c1").Return(winner, nil).Once()
	contracts.On("SetWorkspace", ctx, "c1", winner.ID).Return(nil)

	p := workspace.NewProvisioner(contracts, workspaces, nil, events, fastRetry, nil)
	ws, created, err := p.Provision(ctx, "c1")
	require.NoError(t, err)
	require.False(t, created)
	require.Same(t, winner, ws)
	require.Empty(t, events.Events())
}

func TestProvision_NotActive(t *testing.T) {
	ctx := context.Background()
	contracts := &mocks.ContractRepository{}
	workspaces := &mocks.WorkspaceRepository{}

	c := activeContract()
	c.Status = contract.StatusPendingClient
	contracts.On("Get", ctx, "c1").Return(c, nil)
	workspaces.On("GetByContract", ctx, "c1").Return(nil, repository.ErrNotFound)

	p := workspace.NewProvisioner(contracts, workspaces, nil, nil, fastRetry, nil)
	_, _, err := p.Provision(ctx, "c1")
	require.ErrorIs(t, err, workspace.ErrContractNotActive)
	require.ErrorIs(t, err, contract.ErrInvalidTransition)
	contracts.AssertNumberOfCalls(t, "Get", 1)
}

func TestProvision_ContractNotFound(t *testing.T) {
	ctx := context.Background()
	contracts := &mocks.ContractRepository{}
	contracts.On("Get", ctx, "missing").Return(nil, repository.ErrNotFound)

	p := workspace.NewProvisioner(contracts, &mocks.WorkspaceRepository{}, nil, nil, fastRetry, nil)
	_, _, err := p.Provision(ctx, "missing")
	require.ErrorIs(t, err, contract.ErrContractNotFound)
}

func TestProvision_RetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	contracts := &mocks.ContractRepository{}
	workspaces := &mocks.WorkspaceRepository{}

	contracts.On("Get", ctx, "c1").Return(activeContract(), nil)
	workspaces.On("GetByContract", ctx, "c1").Return(nil, repository.ErrNotFound)
	workspaces.On("Create", ctx, mock.Anything, mock.Anything).Return(errors.New("database is locked")).Once()
	workspaces.On("Create", ctx, mock.Anything, mock.Anything).Return(nil).Once()
	contracts.On("SetWorkspace", ctx, "c1", mock.Anything).Return(nil)

	p := workspace.NewProvisioner(contracts, workspaces, nil, nil, fastRetry, nil)
	_, created, err := p.Provision(ctx, "c1")
	require.NoError(t, err)
	require.True(t, created)
	workspaces.AssertNumberOfCalls(t, "Create", 2)
}

func TestProvision_ExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	contracts := &mocks.ContractRepository{}
	workspaces := &mocks.WorkspaceRepository{}

	contracts.On("Get", ctx, "c1").Return(activeContract(), nil)
	workspaces.On("GetByContract", ctx, "c1").Return(nil, repository.ErrNotFound)
	workspaces.On("Create", ctx, mock.Anything, mock.Anything).Return(errors.New("disk I/O error"))

	p := workspace.NewProvisioner(contracts, workspaces, nil, nil, fastRetry, nil)
	_, _, err := p.Provision(ctx, "c1")
	require.ErrorIs(t, err, workspace.ErrDependencyFailure)
	workspaces.AssertNumberOfCalls(t, "Create", fastRetry.Attempts)
	contracts.AssertNotCalled(t, "SetWorkspace", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureWorkspace(t *testing.T) {
	ctx := context.Background()
	contracts := &mocks.ContractRepository{}
	workspaces := &mocks.WorkspaceRepository{}

	contracts.On("Get", ctx, "c1").Return(activeContract(), nil)
	workspaces.On("GetByContract", ctx, "c1").Return(nil, repository.ErrNotFound)
	workspaces.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)
	contracts.On("SetWorkspace", ctx, "c1", mock.Anything).Return(nil)

	p := workspace.NewProvisioner(contracts, workspaces, nil, nil, fastRetry, nil)
	id, err := p.EnsureWorkspace(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, workspace.NewID("c1"), id)
}
