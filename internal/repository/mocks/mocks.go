package mocks

import (
	"context"

	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/stretchr/testify/mock"
)

// ContractRepository is a mock for contract.Repository and workspace.ContractRepository.
type ContractRepository struct {
	mock.Mock
}

func (m *ContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *ContractRepository) Get(ctx context.Context, id string) (*contract.Contract, error) {
	args := m.Called(ctx, id)
	if c, ok := args.Get(0).(*contract.Contract); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ContractRepository) Update(ctx context.Context, c *contract.Contract, expectedVersion int64) error {
	args := m.Called(ctx, c, expectedVersion)
	return args.Error(0)
}

func (m *ContractRepository) List(ctx context.Context, opts contract.ListOptions) ([]contract.Contract, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]contract.Contract); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ContractRepository) ListActiveWithoutWorkspace(ctx context.Context, afterID string, limit int) ([]contract.Contract, error) {
	args := m.Called(ctx, afterID, limit)
	if list, ok := args.Get(0).([]contract.Contract); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ContractRepository) ListActiveWithCompletedWorkspace(ctx context.Context, afterID string, limit int) ([]contract.Contract, error) {
	args := m.Called(ctx, afterID, limit)
	if list, ok := args.Get(0).([]contract.Contract); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ContractRepository) SetWorkspace(ctx context.Context, contractID, workspaceID string) error {
	args := m.Called(ctx, contractID, workspaceID)
	return args.Error(0)
}

// MilestoneRepository is a mock for milestone.Repository and the read-only milestone views.
type MilestoneRepository struct {
	mock.Mock
}

func (m *MilestoneRepository) Get(ctx context.Context, id string) (*milestone.Milestone, error) {
	args := m.Called(ctx, id)
	if ms, ok := args.Get(0).(*milestone.Milestone); ok {
		return ms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MilestoneRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]milestone.Milestone, error) {
	args := m.Called(ctx, workspaceID)
	if list, ok := args.Get(0).([]milestone.Milestone); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MilestoneRepository) WorkspaceParties(ctx context.Context, workspaceID string) (string, string, error) {
	args := m.Called(ctx, workspaceID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MilestoneRepository) ListByContract(ctx context.Context, contractID string) ([]milestone.Milestone, error) {
	args := m.Called(ctx, contractID)
	if list, ok := args.Get(0).([]milestone.Milestone); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MilestoneRepository) Update(ctx context.Context, ms *milestone.Milestone, expectedVersion int64) error {
	args := m.Called(ctx, ms, expectedVersion)
	return args.Error(0)
}

func (m *MilestoneRepository) Approve(ctx context.Context, ms *milestone.Milestone, expectedVersion int64) (*milestone.WorkspaceProgress, error) {
	args := m.Called(ctx, ms, expectedVersion)
	if p, ok := args.Get(0).(*milestone.WorkspaceProgress); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// WorkspaceRepository is a mock for workspace.Repository.
type WorkspaceRepository struct {
	mock.Mock
}

func (m *WorkspaceRepository) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	args := m.Called(ctx, id)
	if ws, ok := args.Get(0).(*workspace.Workspace); ok {
		return ws, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorkspaceRepository) GetByContract(ctx context.Context, contractID string) (*workspace.Workspace, error) {
	args := m.Called(ctx, contractID)
	if ws, ok := args.Get(0).(*workspace.Workspace); ok {
		return ws, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorkspaceRepository) Create(ctx context.Context, ws *workspace.Workspace, milestones []milestone.Milestone) error {
	args := m.Called(ctx, ws, milestones)
	return args.Error(0)
}

func (m *WorkspaceRepository) Update(ctx context.Context, ws *workspace.Workspace, expectedVersion int64) error {
	args := m.Called(ctx, ws, expectedVersion)
	return args.Error(0)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Provisioner is a mock for contract.Provisioner.
type Provisioner struct {
	mock.Mock
}

func (m *Provisioner) EnsureWorkspace(ctx context.Context, contractID string) (string, error) {
	args := m.Called(ctx, contractID)
	return args.String(0), args.Error(1)
}

// ContractCompleter is a mock for milestone.ContractCompleter.
type ContractCompleter struct {
	mock.Mock
}

func (m *ContractCompleter) Complete(ctx context.Context, contractID string) error {
	args := m.Called(ctx, contractID)
	return args.Error(0)
}

// Publisher is a mock for notify.Publisher.
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, ev notify.Event) {
	m.Called(ctx, ev)
}

func (m *Publisher) PaymentReady(ctx context.Context, milestoneID string) {
	m.Called(ctx, milestoneID)
}
