// Package mcp exposes the deal lifecycle as Model Context Protocol tools.
package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/rpggio/handshake/internal/domain/workspace"
)

// ContractService defines contract operations needed by MCP.
type ContractService interface {
	Create(ctx context.Context, actorID string, req contract.CreateRequest) (*contract.Contract, error)
	Get(ctx context.Context, actorID, id string) (*contract.Contract, error)
	List(ctx context.Context, actorID string, opts contract.ListOptions) ([]contract.Contract, error)
	Phases(ctx context.Context, actorID, id string) ([]contract.PhaseView, error)
	Send(ctx context.Context, actorID, id string) (*contract.Contract, error)
	Sign(ctx context.Context, actorID string, req contract.SignRequest) (*contract.SignResult, error)
	Decline(ctx context.Context, actorID, id, reason string) (*contract.Contract, error)
	Cancel(ctx context.Context, actorID, id string) (*contract.Contract, error)
}

// WorkspaceService defines workspace operations needed by MCP.
type WorkspaceService interface {
	View(ctx context.Context, actorID, workspaceID string, asserted party.Role) (*workspace.RoleView, error)
	ViewByContract(ctx context.Context, actorID, contractID string, asserted party.Role) (*workspace.RoleView, error)
	PostMessage(ctx context.Context, actorID string, req workspace.MessageRequest) (*workspace.Message, error)
	MarkRead(ctx context.Context, actorID, workspaceID string) error
	AddFile(ctx context.Context, actorID string, req workspace.FileRequest) (*workspace.File, error)
	AddNote(ctx context.Context, actorID, workspaceID, text string) (*workspace.Note, error)
	ScheduleCall(ctx context.Context, actorID string, req workspace.CallRequest) (*workspace.Call, error)
}

// MilestoneService defines milestone operations needed by MCP.
type MilestoneService interface {
	Get(ctx context.Context, actorID, id string) (*milestone.Milestone, error)
	List(ctx context.Context, actorID, workspaceID string) ([]milestone.Milestone, error)
	Start(ctx context.Context, actorID string, req milestone.StartRequest) (*milestone.Milestone, error)
	Submit(ctx context.Context, actorID string, req milestone.SubmitRequest) (*milestone.Milestone, error)
	Approve(ctx context.Context, actorID string, req milestone.ApproveRequest) (*milestone.ApprovalResult, error)
	RequestRevision(ctx context.Context, actorID string, req milestone.RevisionRequest) (*milestone.Milestone, error)
	RecordPayment(ctx context.Context, actorID string, req milestone.PaymentRequest) (*milestone.Milestone, error)
	Stats(ctx context.Context, actorID, workspaceID string) (*milestone.Stats, error)
}

// ActivityService defines activity operations needed by MCP.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Contracts  ContractService
	Workspaces WorkspaceService
	Milestones MilestoneService
	Activity   ActivityService
}

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      ActorResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	// DefaultActor acts for every call when auth is disabled.
	DefaultActor string
	Version      string
	Logger       *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "handshake",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is local only and always acts as the default actor.
	if cfg.TransportMode == "stdio" || !cfg.AuthEnabled {
		server.AddReceivingMiddleware(noAuthMiddleware(cfg.DefaultActor))
	} else {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerContractTools(server, cfg.Services)
	registerWorkspaceTools(server, cfg.Services)
	registerMilestoneTools(server, cfg.Services)

	return server
}
