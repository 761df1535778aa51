package contract

import (
	"context"

	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/milestone"
)

// Repository provides persistence for contracts.
type Repository interface {
	Create(ctx context.Context, c *Contract) error
	Get(ctx context.Context, id string) (*Contract, error)
	// Update writes every mutable field except the workspace reference.
	Update(ctx context.Context, c *Contract, expectedVersion int64) error
	List(ctx context.Context, opts ListOptions) ([]Contract, error)
	// ListActiveWithoutWorkspace and ListActiveWithCompletedWorkspace page by contract ID:
	// they return up to limit contracts with an ID greater than afterID, in ID order.
	ListActiveWithoutWorkspace(ctx context.Context, afterID string, limit int) ([]Contract, error)
	ListActiveWithCompletedWorkspace(ctx context.Context, afterID string, limit int) ([]Contract, error)
}

// MilestoneRepository reads the canonical milestones behind contract phases.
type MilestoneRepository interface {
	ListByContract(ctx context.Context, contractID string) ([]milestone.Milestone, error)
}

// Provisioner creates or returns the workspace of an active contract.
type Provisioner interface {
	EnsureWorkspace(ctx context.Context, contractID string) (string, error)
}

// ActivityRepository logs contract activities.
type ActivityRepository interface {
	Log(ctx context.Context, entry *activity.ActivityEntry) error
}
