// Package app assembles the domain services over a storage backend.
package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/mcp"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/postgres"
	"github.com/rpggio/handshake/internal/sqlite"
	"github.com/rpggio/handshake/internal/transport"
)

// ContractStore is the contract persistence both the contract service and the provisioner need.
type ContractStore interface {
	contract.Repository
	workspace.ContractRepository
}

// MilestoneStore is the milestone persistence shared by the milestone, contract and workspace services.
type MilestoneStore interface {
	milestone.Repository
	contract.MilestoneRepository
}

// Repositories is one storage backend.
type Repositories struct {
	Contracts  ContractStore
	Workspaces workspace.Repository
	Milestones MilestoneStore
	Activities activity.Repository
}

// SQLiteRepositories returns the repositories backed by db.
func SQLiteRepositories(db *sqlite.DB) Repositories {
	return Repositories{
		Contracts:  sqlite.NewContractRepository(db),
		Workspaces: sqlite.NewWorkspaceRepository(db),
		Milestones: sqlite.NewMilestoneRepository(db),
		Activities: sqlite.NewActivityRepository(db),
	}
}

// PostgresRepositories returns the repositories backed by a pgx pool.
func PostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Contracts:  postgres.NewContractRepository(pool),
		Workspaces: postgres.NewWorkspaceRepository(pool),
		Milestones: postgres.NewMilestoneRepository(pool),
		Activities: postgres.NewActivityRepository(pool),
	}
}

// App holds the constructed services.
type App struct {
	Contracts   *contract.Service
	Workspaces  *workspace.Service
	Milestones  *milestone.Service
	Activity    *activity.Service
	Provisioner *workspace.Provisioner
}

// New wires the services. A nil events publisher disables notifications.
func New(repos Repositories, events notify.Publisher, retry workspace.RetryPolicy, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	provisioner := workspace.NewProvisioner(repos.Contracts, repos.Workspaces, repos.Activities, events, retry, logger)
	contracts := contract.NewService(repos.Contracts, repos.Milestones, provisioner, repos.Activities, events, logger)
	return &App{
		Contracts:   contracts,
		Workspaces:  workspace.NewService(repos.Workspaces, repos.Milestones, events, logger),
		Milestones:  milestone.NewService(repos.Milestones, contracts, repos.Activities, events, logger),
		Activity:    activity.NewService(repos.Activities, logger),
		Provisioner: provisioner,
	}
}

// HTTPServices adapts the app to the HTTP surface.
func (a *App) HTTPServices() transport.Services {
	return transport.Services{
		Contracts:  a.Contracts,
		Workspaces: a.Workspaces,
		Milestones: a.Milestones,
		Activity:   a.Activity,
	}
}

// MCPServices adapts the app to the MCP surface.
func (a *App) MCPServices() mcp.Services {
	return mcp.Services{
		Contracts:  a.Contracts,
		Workspaces: a.Workspaces,
		Milestones: a.Milestones,
		Activity:   a.Activity,
	}
}
