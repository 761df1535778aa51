package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/rpggio/handshake/internal/metrics"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/repository"
)

const maxUpdateAttempts = 5

// Service handles contract business logic.
type Service struct {
	contracts   Repository
	milestones  MilestoneRepository
	provisioner Provisioner
	activities  ActivityRepository
	events      notify.Publisher
	logger      *slog.Logger
}

// NewService creates a new contract service.
func NewService(
	contracts Repository,
	milestones MilestoneRepository,
	provisioner Provisioner,
	activities ActivityRepository,
	events notify.Publisher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		contracts:   contracts,
		milestones:  milestones,
		provisioner: provisioner,
		activities:  activities,
		events:      events,
		logger:      logger,
	}
}

// CreateRequest describes a contract drafted by a client.
type CreateRequest struct {
	FreelancerID string
	ProposalID   string
	JobID        *string
	Title        string
	Description  string
	TotalAmount  int64
	Currency     string
	Phases       []Phase
	RespondBy    *time.Time
}

// SignRequest describes a party signing a contract.
type SignRequest struct {
	ContractID string
	Token      string
}

// SignResult reports the signed contract and, once active, its workspace.
type SignResult struct {
	Contract  *Contract `json:"contract"`
	Activated bool      `json:"activated"`
	// WorkspaceID is empty when the contract is not active yet or provisioning must be retried.
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// Create drafts a contract with the actor as client.
func (s *Service) Create(ctx context.Context, actorID string, req CreateRequest) (*Contract, error) {
	if err := ValidateCreateInput(actorID, req); err != nil {
		return nil, err
	}
	if sum := PhaseTotal(req.Phases); sum > req.TotalAmount {
		s.logger.Warn("phase amounts exceed contract total", "phase_total", sum, "total", req.TotalAmount)
	}

	now := time.Now().UTC()
	c := &Contract{
		ID:           uuid.NewString(),
		ClientID:     actorID,
		FreelancerID: req.FreelancerID,
		ProposalID:   req.ProposalID,
		JobID:        req.JobID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		TotalAmount:  req.TotalAmount,
		Currency:     strings.ToUpper(strings.TrimSpace(req.Currency)),
		Phases:       req.Phases,
		Status:       StatusDraft,
		RespondBy:    req.RespondBy,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	if c.Phases == nil {
		c.Phases = []Phase{}
	}

	if err := s.contracts.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("creating contract: %w", err)
	}

	s.logActivity(ctx, actorID, c, activity.TypeContractCreated, "drafted contract")
	return c, nil
}

// Get returns a contract visible to the actor.
func (s *Service) Get(ctx context.Context, actorID, id string) (*Contract, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := c.RoleOf(actorID); !ok {
		return nil, ErrAccessDenied
	}
	return c, nil
}

// List returns contracts where the actor is a party.
func (s *Service) List(ctx context.Context, actorID string, opts ListOptions) ([]Contract, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, ErrAccessDenied
	}
	opts.PartyID = actorID
	return s.contracts.List(ctx, opts)
}

// Phases returns the contract's phases with status projected from the workspace milestones.
func (s *Service) Phases(ctx context.Context, actorID, id string) ([]PhaseView, error) {
	c, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	list, err := s.milestones.ListByContract(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	return ProjectPhases(c, list), nil
}

// ListActiveWithoutWorkspace returns active contracts whose provisioning has not completed.
func (s *Service) ListActiveWithoutWorkspace(ctx context.Context, afterID string, limit int) ([]Contract, error) {
	return s.contracts.ListActiveWithoutWorkspace(ctx, afterID, limit)
}

// Send offers a draft to the freelancer.
func (s *Service) Send(ctx context.Context, actorID, id string) (*Contract, error) {
	before, c, err := s.mutate(ctx, id, func(c *Contract) error {
		role, ok := c.RoleOf(actorID)
		if !ok || role != party.RoleClient {
			return ErrAccessDenied
		}
		if c.Status != StatusDraft {
			return ErrInvalidTransition
		}
		c.Status = StatusSent
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(before, c.Status)
	s.announce(ctx, c.FreelancerID, notify.KindContractSent, c)
	s.logActivity(ctx, actorID, c, activity.TypeContractSent, "sent contract to freelancer")
	return c, nil
}

// Sign records the actor's signature. When both parties have signed the workspace is
// provisioned; a provisioning failure leaves the contract active and is retried later.
func (s *Service) Sign(ctx context.Context, actorID string, req SignRequest) (*SignResult, error) {
	if strings.TrimSpace(req.Token) == "" {
		return nil, ErrInvalidInput
	}

	var role party.Role
	before, c, err := s.mutate(ctx, req.ContractID, func(c *Contract) error {
		r, ok := c.RoleOf(actorID)
		if !ok {
			return ErrAccessDenied
		}
		if err := CheckSignable(c.Status, c.SignatureOf(r)); err != nil {
			return err
		}
		now := time.Now().UTC()
		c.setSignature(r, Signature{Signed: true, Token: req.Token, SignedAt: &now})
		c.Status = NextStatus(c.Status, c.ClientSignature.Signed, c.FreelancerSignature.Signed)
		role = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transitioned(before, c.Status)
	s.logActivity(ctx, actorID, c, activity.TypeContractSigned, fmt.Sprintf("%s signed", role))
	result := &SignResult{Contract: c}

	if c.Status != StatusActive {
		s.announce(ctx, party.Counterpart(role, c.ClientID, c.FreelancerID), notify.KindContractSigned, c)
		return result, nil
	}

	result.Activated = true
	s.logActivity(ctx, actorID, c, activity.TypeContractActivated, "both parties signed")
	s.announce(ctx, c.ClientID, notify.KindContractActive, c)
	s.announce(ctx, c.FreelancerID, notify.KindContractActive, c)

	if s.provisioner == nil {
		return result, nil
	}
	workspaceID, err := s.provisioner.EnsureWorkspace(ctx, c.ID)
	if err != nil {
		s.logger.Error("workspace provisioning failed", "contract_id", c.ID, "error", err)
		return result, nil
	}
	c.WorkspaceID = &workspaceID
	result.WorkspaceID = workspaceID
	return result, nil
}

// Decline lets the freelancer reject an offer before signing it.
func (s *Service) Decline(ctx context.Context, actorID, id, reason string) (*Contract, error) {
	before, c, err := s.mutate(ctx, id, func(c *Contract) error {
		role, ok := c.RoleOf(actorID)
		if !ok {
			return ErrAccessDenied
		}
		if err := CheckDeclinable(c.Status, role, c.SignatureOf(role)); err != nil {
			return err
		}
		c.Status = StatusDeclined
		c.DeclineReason = strings.TrimSpace(reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(before, c.Status)
	s.announce(ctx, c.ClientID, notify.KindContractDeclined, c)
	s.logActivity(ctx, actorID, c, activity.TypeContractDeclined, "freelancer declined")
	return c, nil
}

// Cancel withdraws a contract that is not active yet.
func (s *Service) Cancel(ctx context.Context, actorID, id string) (*Contract, error) {
	var role party.Role
	before, c, err := s.mutate(ctx, id, func(c *Contract) error {
		r, ok := c.RoleOf(actorID)
		if !ok {
			return ErrAccessDenied
		}
		if err := CheckCancellable(c.Status); err != nil {
			return err
		}
		c.Status = StatusCancelled
		c.CancelledBy = actorID
		role = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.transitioned(before, c.Status)
	s.announce(ctx, party.Counterpart(role, c.ClientID, c.FreelancerID), notify.KindContractCancelled, c)
	s.logActivity(ctx, actorID, c, activity.TypeContractCancelled, fmt.Sprintf("%s cancelled", role))
	return c, nil
}

// Complete closes an active contract once all of its milestones are approved. Completing
// an already completed contract is a no-op.
func (s *Service) Complete(ctx context.Context, id string) error {
	before, c, err := s.mutate(ctx, id, func(c *Contract) error {
		switch c.Status {
		case StatusCompleted:
			return errAlreadyCompleted
		case StatusActive:
			c.Status = StatusCompleted
			return nil
		default:
			return ErrInvalidTransition
		}
	})
	if errors.Is(err, errAlreadyCompleted) {
		return nil
	}
	if err != nil {
		return err
	}
	s.transitioned(before, c.Status)
	s.announce(ctx, c.ClientID, notify.KindContractCompleted, c)
	s.announce(ctx, c.FreelancerID, notify.KindContractCompleted, c)
	s.logActivity(ctx, "", c, activity.TypeContractCompleted, "all milestones approved")
	return nil
}

var errAlreadyCompleted = errors.New("contract already completed")

// mutate runs a read-modify-write with an optimistic version check. On conflict the
// contract is re-read and change re-evaluated against the fresh state.
func (s *Service) mutate(ctx context.Context, id string, change func(*Contract) error) (Status, *Contract, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return "", nil, err
		}

		updated := *current
		if err := change(&updated); err != nil {
			return "", nil, err
		}
		updated.Version = current.Version + 1
		updated.UpdatedAt = time.Now().UTC()

		err = s.contracts.Update(ctx, &updated, current.Version)
		switch {
		case err == nil:
			return current.Status, &updated, nil
		case errors.Is(err, repository.ErrConflict):
			s.logger.Debug("contract update conflict, retrying", "contract_id", id, "attempt", attempt+1)
			continue
		case errors.Is(err, repository.ErrNotFound):
			return "", nil, ErrContractNotFound
		default:
			return "", nil, fmt.Errorf("updating contract: %w", err)
		}
	}
	return "", nil, ErrConflict
}

func (s *Service) load(ctx context.Context, id string) (*Contract, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	c, err := s.contracts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("loading contract: %w", err)
	}
	return c, nil
}

func (s *Service) transitioned(from, to Status) {
	if from != to {
		metrics.RecordContractTransition(string(from), string(to))
	}
}

func (s *Service) announce(ctx context.Context, partyID string, kind notify.Kind, c *Contract) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, notify.NewEvent(kind, partyID, c.ID, map[string]any{
		"title":  c.Title,
		"status": c.Status,
	}))
}

func (s *Service) logActivity(ctx context.Context, actorID string, c *Contract, kind activity.ActivityType, summary string) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, &activity.ActivityEntry{
		ContractID:   c.ID,
		WorkspaceID:  c.WorkspaceID,
		ActorID:      actorID,
		ActivityType: kind,
		Summary:      summary,
	})
}
