package milestone

import (
	"context"

	"github.com/rpggio/handshake/internal/domain/activity"
)

// Repository provides persistence for milestones.
type Repository interface {
	Get(ctx context.Context, id string) (*Milestone, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]Milestone, error)
	// WorkspaceParties returns the client and freelancer of a workspace, or
	// repository.ErrNotFound when it does not exist.
	WorkspaceParties(ctx context.Context, workspaceID string) (clientID, freelancerID string, err error)
	Update(ctx context.Context, m *Milestone, expectedVersion int64) error
	// Approve persists an approved milestone and recomputes the owning workspace's
	// current phase and overall progress in the same transaction.
	Approve(ctx context.Context, m *Milestone, expectedVersion int64) (*WorkspaceProgress, error)
}

// ContractCompleter closes out a contract once its workspace reaches 100%.
type ContractCompleter interface {
	Complete(ctx context.Context, contractID string) error
}

// ActivityRepository logs milestone activities.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}
