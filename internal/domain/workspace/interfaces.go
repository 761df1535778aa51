package workspace

import (
	"context"

	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
)

// Repository provides persistence for workspaces.
type Repository interface {
	Get(ctx context.Context, id string) (*Workspace, error)
	GetByContract(ctx context.Context, contractID string) (*Workspace, error)
	// Create stores the workspace and its seeded milestones atomically. A second workspace for
	// the same contract yields repository.ErrDuplicate.
	Create(ctx context.Context, ws *Workspace, milestones []milestone.Milestone) error
	// Update writes the shared and private partitions. Phase and progress are owned by
	// milestone approval.
	Update(ctx context.Context, ws *Workspace, expectedVersion int64) error
}

// ContractRepository reads contracts and records their workspace reference.
type ContractRepository interface {
	Get(ctx context.Context, id string) (*contract.Contract, error)
	SetWorkspace(ctx context.Context, contractID, workspaceID string) error
}

// MilestoneRepository lists a workspace's canonical milestones.
type MilestoneRepository interface {
	ListByWorkspace(ctx context.Context, workspaceID string) ([]milestone.Milestone, error)
}

// ActivityRepository logs workspace activities.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}
