package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/metrics"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/repository"
)

// RetryPolicy bounds how often provisioning retries transient storage failures.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is used when a zero policy is supplied.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}

// Provisioner creates exactly one workspace per active contract.
type Provisioner struct {
	contracts  ContractRepository
	workspaces Repository
	activities ActivityRepository
	events     notify.Publisher
	retry      RetryPolicy
	logger     *slog.Logger
	now        func() time.Time
}

// NewProvisioner creates a new workspace provisioner.
func NewProvisioner(
	contracts ContractRepository,
	workspaces Repository,
	activities ActivityRepository,
	events notify.Publisher,
	retry RetryPolicy,
	logger *slog.Logger,
) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.Attempts <= 0 {
		retry = DefaultRetryPolicy
	}
	return &Provisioner{
		contracts:  contracts,
		workspaces: workspaces,
		activities: activities,
		events:     events,
		retry:      retry,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureWorkspace provisions the contract's workspace and returns its ID.
func (p *Provisioner) EnsureWorkspace(ctx context.Context, contractID string) (string, error) {
	ws, _, err := p.Provision(ctx, contractID)
	if err != nil {
		return "", err
	}
	return ws.ID, nil
}

// Provision returns the contract's workspace, creating it when none exists. Concurrent and
// repeated calls converge on the same workspace; created is true only for the call that
// inserted it.
func (p *Provisioner) Provision(ctx context.Context, contractID string) (*Workspace, bool, error) {
	if contractID == "" {
		return nil, false, ErrInvalidInput
	}
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= p.retry.Attempts; attempt++ {
		ws, created, err := p.provisionOnce(ctx, contractID)
		if err == nil {
			outcome := "reused"
			if created {
				outcome = "created"
				p.announce(ctx, ws)
			}
			metrics.RecordProvisioning(outcome, time.Since(start))
			return ws, created, nil
		}
		if !retryable(ctx, err) {
			metrics.RecordProvisioning("rejected", time.Since(start))
			return nil, false, err
		}
		lastErr = err
		p.logger.Warn("workspace provisioning attempt failed",
			"contract_id", contractID, "attempt", attempt, "error", err)
		if attempt < p.retry.Attempts {
			select {
			case <-ctx.Done():
				metrics.RecordProvisioning("failed", time.Since(start))
				return nil, false, ctx.Err()
			case <-time.After(p.retry.Backoff * time.Duration(attempt)):
			}
		}
	}

	metrics.RecordProvisioning("failed", time.Since(start))
	p.logger.Error("workspace provisioning exhausted retries", "contract_id", contractID, "error", lastErr)
	return nil, false, fmt.Errorf("%w: %v", ErrDependencyFailure, lastErr)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, contract.ErrContractNotFound),
		errors.Is(err, ErrContractNotActive),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (p *Provisioner) provisionOnce(ctx context.Context, contractID string) (*Workspace, bool, error) {
	c, err := p.contracts.Get(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, contract.ErrContractNotFound
		}
		return nil, false, fmt.Errorf("loading contract: %w", err)
	}

	existing, err := p.workspaces.GetByContract(ctx, contractID)
	switch {
	case err == nil:
		if c.Status != contract.StatusActive && c.Status != contract.StatusCompleted {
			return nil, false, ErrContractNotActive
		}
		if err := p.repairReference(ctx, c, existing.ID); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, fmt.Errorf("looking up workspace: %w", err)
	}

	if c.Status != contract.StatusActive {
		return nil, false, ErrContractNotActive
	}

	ws, seeded := Build(c, p.now())
	created := true
	if err := p.workspaces.Create(ctx, ws, seeded); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, false, fmt.Errorf("creating workspace: %w", err)
		}
		// Lost the race; adopt the winner's record.
		metrics.IncrementProvisioningConflict()
		canonical, err := p.workspaces.GetByContract(ctx, contractID)
		if err != nil {
			return nil, false, fmt.Errorf("re-reading workspace: %w", err)
		}
		ws = canonical
		created = false
	}

	if err := p.repairReference(ctx, c, ws.ID); err != nil {
		return nil, false, err
	}
	if created {
		p.logActivity(ctx, ws, activity.TypeWorkspaceCreated, fmt.Sprintf("workspace created with %d milestones", len(seeded)))
	}
	return ws, created, nil
}

func (p *Provisioner) repairReference(ctx context.Context, c *contract.Contract, workspaceID string) error {
	if c.WorkspaceID != nil && *c.WorkspaceID == workspaceID {
		return nil
	}
	if err := p.contracts.SetWorkspace(ctx, c.ID, workspaceID); err != nil {
		return fmt.Errorf("linking workspace to contract: %w", err)
	}
	if c.WorkspaceID != nil {
		p.logger.Warn("repaired contract workspace reference",
			"contract_id", c.ID, "previous", *c.WorkspaceID, "workspace_id", workspaceID)
		ws := &Workspace{ID: workspaceID, ContractID: c.ID}
		p.logActivity(ctx, ws, activity.TypeWorkspaceRepaired, "contract workspace reference repaired")
	}
	return nil
}

// Build derives a workspace and its seeded milestones from an active contract. One milestone is
// seeded per phase; a contract without phases gets a single milestone for the full amount.
func Build(c *contract.Contract, now time.Time) (*Workspace, []milestone.Milestone) {
	id := NewID(c.ID)
	phases := append([]contract.Phase{}, c.Phases...)

	ws := &Workspace{
		ID:           id,
		ContractID:   c.ID,
		ClientID:     c.ClientID,
		FreelancerID: c.FreelancerID,
		Shared: SharedData{
			Title:        c.Title,
			Description:  c.Description,
			Status:       StatusActive,
			CurrentPhase: 1,
			TotalAmount:  c.TotalAmount,
			Currency:     c.Currency,
			Phases:       phases,
			Messages:     []Message{},
			Files:        []File{},
			Calls:        []Call{},
		},
		ClientPrivate:     PrivateData{Notes: []Note{}, Files: []File{}, BudgetTotal: c.TotalAmount},
		FreelancerPrivate: PrivateData{Notes: []Note{}, Files: []File{}, BudgetTotal: c.TotalAmount},
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
	}

	seed := phases
	if len(seed) == 0 {
		seed = []contract.Phase{{
			Number:      1,
			Title:       "Complete project",
			Description: c.Description,
			Amount:      c.TotalAmount,
		}}
	}

	milestones := make([]milestone.Milestone, 0, len(seed))
	for _, phase := range seed {
		milestones = append(milestones, milestone.Milestone{
			ID:           milestone.NewID(id, phase.Number),
			WorkspaceID:  id,
			ContractID:   c.ID,
			ClientID:     c.ClientID,
			FreelancerID: c.FreelancerID,
			PhaseNumber:  phase.Number,
			Title:        phase.Title,
			Description:  phase.Description,
			Amount:       phase.Amount,
			DueDate:      phase.DueDate,
			Status:       milestone.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
			Version:      1,
		})
	}
	return ws, milestones
}

func (p *Provisioner) announce(ctx context.Context, ws *Workspace) {
	if p.events == nil {
		return
	}
	payload := map[string]any{
		"workspace_id": ws.ID,
		"contract_id":  ws.ContractID,
		"title":        ws.Shared.Title,
	}
	p.events.Publish(ctx, notify.NewEvent(notify.KindWorkspaceReady, ws.ClientID, ws.ID, payload))
	p.events.Publish(ctx, notify.NewEvent(notify.KindWorkspaceReady, ws.FreelancerID, ws.ID, payload))
}

func (p *Provisioner) logActivity(ctx context.Context, ws *Workspace, kind activity.ActivityType, summary string) {
	if p.activities == nil {
		return
	}
	wsID := ws.ID
	_ = p.activities.Log(ctx, &activity.ActivityEntry{
		ContractID:   ws.ContractID,
		WorkspaceID:  &wsID,
		ActivityType: kind,
		Summary:      summary,
	})
}
