// Package transport exposes the deal lifecycle over HTTP.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/metrics"
	"github.com/rpggio/handshake/internal/push"
)

const basePath = "/v1"

// ContractService defines contract operations exposed over HTTP.
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

// WorkspaceService defines workspace operations exposed over HTTP.
type WorkspaceService interface {
	View(ctx context.Context, actorID, workspaceID string, asserted party.Role) (*workspace.RoleView, error)
	ViewByContract(ctx context.Context, actorID, contractID string, asserted party.Role) (*workspace.RoleView, error)
	PostMessage(ctx context.Context, actorID string, req workspace.MessageRequest) (*workspace.Message, error)
	MarkRead(ctx context.Context, actorID, workspaceID string) error
	AddFile(ctx context.Context, actorID string, req workspace.FileRequest) (*workspace.File, error)
	AddNote(ctx context.Context, actorID, workspaceID, text string) (*workspace.Note, error)
	ScheduleCall(ctx context.Context, actorID string, req workspace.CallRequest) (*workspace.Call, error)
}

// MilestoneService defines milestone operations exposed over HTTP.
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

// ActivityService lists a contract's audit trail.
type ActivityService interface {
	GetRecentActivity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error)
}

// EventSource streams a party's realtime events.
type EventSource interface {
	Subscribe(ctx context.Context, partyID string) (*push.Subscription, error)
}

// Services contains the domain services served over HTTP.
type Services struct {
	Contracts  ContractService
	Workspaces WorkspaceService
	Milestones MilestoneService
	Activity   ActivityService
}

// Config wires the HTTP server.
type Config struct {
	Services Services
	Resolver ActorResolver
	Events   EventSource
	// MCP, when set, is mounted at /mcp. It authenticates on its own.
	MCP http.Handler
	// Ready reports dependency health for /health.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

type server struct {
	services Services
	events   EventSource
	logger   *slog.Logger
}

// NewServer creates the HTTP router.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = StaticResolver{}
	}
	useErrorEnvelope()

	s := &server{services: cfg.Services, events: cfg.Events, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/health", healthHandler(cfg.Ready))
	r.Handle("/metrics", metrics.Handler())
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
	}

	hcfg := huma.DefaultConfig("Handshake API", "1.0.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	hcfg.SchemasPath = ""
	hcfg.CreateHooks = nil

	var api huma.API
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(resolver))
		r.Get(basePath+"/events", s.streamEvents)
		api = humachi.New(r, hcfg)
		group := huma.NewGroup(api, basePath)
		s.registerContracts(group)
		s.registerWorkspaces(group)
		s.registerMilestones(group)
	})

	r.Get(basePath+"/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.OpenAPI())
	})

	return r
}

func healthHandler(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// actor returns the authenticated actor of the request.
func actor(ctx context.Context) (string, error) {
	actorID, ok := ActorFromContext(ctx)
	if !ok {
		return "", newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required")
	}
	return actorID, nil
}

// fail maps err and logs anything that is not a client error.
func (s *server) fail(ctx context.Context, op string, err error) error {
	apiErr := mapError(err)
	if apiErr.GetStatus() >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "request failed", "operation", op, "error", err)
	}
	return apiErr
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequestDuration(r.Method, route, strconv.Itoa(status), time.Since(start))
	})
}
