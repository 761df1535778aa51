package milestone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/rpggio/handshake/internal/metrics"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/repository"
)

// Service runs the milestone lifecycle.
type Service struct {
	milestones Repository
	contracts  ContractCompleter
	activities ActivityRepository
	events     notify.Publisher
	logger     *slog.Logger
}

// NewService creates a new milestone service.
func NewService(
	milestones Repository,
	contracts ContractCompleter,
	activities ActivityRepository,
	events notify.Publisher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		milestones: milestones,
		contracts:  contracts,
		activities: activities,
		events:     events,
		logger:     logger,
	}
}

// StartRequest describes a freelancer starting work on a milestone.
type StartRequest struct {
	MilestoneID     string
	ExpectedVersion *int64
}

// SubmitRequest describes a freelancer submitting work for approval.
type SubmitRequest struct {
	MilestoneID     string
	Deliverables    []Deliverable
	Note            string
	ExpectedVersion *int64
}

// ApproveRequest describes a client approving submitted work.
type ApproveRequest struct {
	MilestoneID     string
	Feedback        string
	ExpectedVersion *int64
}

// RevisionRequest describes a client sending work back.
type RevisionRequest struct {
	MilestoneID     string
	Notes           string
	ExpectedVersion *int64
}

// PaymentRequest records that an approved milestone was paid out.
type PaymentRequest struct {
	MilestoneID     string
	Reference       string
	ExpectedVersion *int64
}

// ApprovalResult carries the approved milestone and the recomputed workspace progress.
type ApprovalResult struct {
	Milestone *Milestone        `json:"milestone"`
	Progress  WorkspaceProgress `json:"progress"`
}

// Get returns a milestone visible to the actor.
func (s *Service) Get(ctx context.Context, actorID, id string) (*Milestone, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := party.Resolve(actorID, m.ClientID, m.FreelancerID); !ok {
		return nil, ErrAccessDenied
	}
	return m, nil
}

// List returns the workspace's milestones ordered by phase.
func (s *Service) List(ctx context.Context, actorID, workspaceID string) ([]Milestone, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, ErrInvalidInput
	}
	clientID, freelancerID, err := s.milestones.WorkspaceParties(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("loading workspace parties: %w", err)
	}
	if _, ok := party.Resolve(actorID, clientID, freelancerID); !ok {
		return nil, ErrAccessDenied
	}
	list, err := s.milestones.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	return list, nil
}

// Start moves a pending (or revision-requested) milestone into progress.
func (s *Service) Start(ctx context.Context, actorID string, req StartRequest) (*Milestone, error) {
	m, err := s.apply(ctx, actorID, req.MilestoneID, req.ExpectedVersion, ActionStart, func(m *Milestone, now time.Time) {
		if m.Progress.StartedAt == nil {
			m.Progress.StartedAt = &now
		}
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, m.ClientID, notify.KindMilestoneStarted, m)
	s.logActivity(ctx, actorID, m, activity.TypeMilestoneStarted, fmt.Sprintf("started phase %d", m.PhaseNumber))
	return m, nil
}

// Submit hands work to the client for approval.
func (s *Service) Submit(ctx context.Context, actorID string, req SubmitRequest) (*Milestone, error) {
	for _, d := range req.Deliverables {
		if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.URL) == "" {
			return nil, ErrInvalidInput
		}
	}
	m, err := s.apply(ctx, actorID, req.MilestoneID, req.ExpectedVersion, ActionSubmit, func(m *Milestone, now time.Time) {
		if m.Progress.StartedAt == nil {
			m.Progress.StartedAt = &now
		}
		m.Progress.SubmittedAt = &now
		m.Progress.Deliverables = req.Deliverables
		m.Progress.SubmissionNote = req.Note
		m.Progress.Approved = false
		m.Progress.ApprovedAt = nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, m.ClientID, notify.KindMilestoneSubmitted, m)
	s.logActivity(ctx, actorID, m, activity.TypeMilestoneSubmitted, fmt.Sprintf("submitted phase %d", m.PhaseNumber))
	return m, nil
}

// Approve completes a milestone, advances the workspace and marks the milestone payable.
func (s *Service) Approve(ctx context.Context, actorID string, req ApproveRequest) (*ApprovalResult, error) {
	var progress *WorkspaceProgress
	m, err := s.applyWith(ctx, actorID, req.MilestoneID, req.ExpectedVersion, ActionApprove, func(m *Milestone, now time.Time) {
		m.Progress.ApprovedAt = &now
		m.Progress.Feedback = req.Feedback
		m.Progress.Approved = true
		m.PaymentEligible = true
	}, func(ctx context.Context, m *Milestone, expected int64) error {
		p, err := s.milestones.Approve(ctx, m, expected)
		if err != nil {
			return err
		}
		progress = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, m.FreelancerID, notify.KindMilestoneApproved, m)
	if s.events != nil {
		s.events.PaymentReady(ctx, m.ID)
	}
	s.logActivity(ctx, actorID, m, activity.TypeMilestoneApproved, fmt.Sprintf("approved phase %d", m.PhaseNumber))

	if progress.Done() && s.contracts != nil {
		if err := s.contracts.Complete(ctx, m.ContractID); err != nil {
			s.logger.Warn("contract completion failed", "contract_id", m.ContractID, "error", err)
		}
	}

	return &ApprovalResult{Milestone: m, Progress: *progress}, nil
}

// RequestRevision sends submitted work back to the freelancer.
func (s *Service) RequestRevision(ctx context.Context, actorID string, req RevisionRequest) (*Milestone, error) {
	if strings.TrimSpace(req.Notes) == "" {
		return nil, ErrInvalidInput
	}
	m, err := s.apply(ctx, actorID, req.MilestoneID, req.ExpectedVersion, ActionRequestRevision, func(m *Milestone, now time.Time) {
		m.Progress.RevisionNotes = req.Notes
		m.Progress.RevisionRequestedAt = &now
		m.Progress.RevisionCount++
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, m.FreelancerID, notify.KindRevisionRequested, m)
	s.logActivity(ctx, actorID, m, activity.TypeRevisionRequested, fmt.Sprintf("requested revision of phase %d", m.PhaseNumber))
	return m, nil
}

// RecordPayment marks an approved, payable milestone as paid.
func (s *Service) RecordPayment(ctx context.Context, actorID string, req PaymentRequest) (*Milestone, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return nil, ErrInvalidInput
	}
	current, err := s.load(ctx, req.MilestoneID)
	if err != nil {
		return nil, err
	}
	role, ok := party.Resolve(actorID, current.ClientID, current.FreelancerID)
	if !ok || role != party.RoleClient {
		return nil, ErrAccessDenied
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != current.Version {
		return nil, ErrConflict
	}
	if current.Status != StatusCompleted || !current.PaymentEligible || current.PaymentProcessed {
		return nil, ErrInvalidTransition
	}

	now := time.Now().UTC()
	updated := *current
	updated.PaymentProcessed = true
	updated.PaymentReference = req.Reference
	updated.PaidAt = &now
	updated.UpdatedAt = now
	updated.Version = current.Version + 1

	if err := s.milestones.Update(ctx, &updated, current.Version); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("updating milestone: %w", err)
	}

	s.announce(ctx, updated.FreelancerID, notify.KindPaymentRecorded, &updated)
	s.logActivity(ctx, actorID, &updated, activity.TypePaymentRecorded, fmt.Sprintf("recorded payment %s for phase %d", req.Reference, updated.PhaseNumber))
	return &updated, nil
}

// Stats summarizes the workspace's milestones.
func (s *Service) Stats(ctx context.Context, actorID, workspaceID string) (*Stats, error) {
	list, err := s.List(ctx, actorID, workspaceID)
	if err != nil {
		return nil, err
	}
	stats := ComputeStats(list)
	return &stats, nil
}

// ComputeStats derives completion rate and average start-to-approval time.
func ComputeStats(list []Milestone) Stats {
	var stats Stats
	var total time.Duration
	var timed int
	for _, m := range list {
		stats.Total++
		switch m.Status {
		case StatusPending:
			stats.Pending++
		case StatusInProgress:
			stats.InProgress++
		case StatusAwaitingApproval:
			stats.AwaitingApproval++
		case StatusRevisionRequested:
			stats.RevisionRequested++
		case StatusCompleted:
			stats.Completed++
			if m.Progress.StartedAt != nil && m.Progress.ApprovedAt != nil {
				total += m.Progress.ApprovedAt.Sub(*m.Progress.StartedAt)
				timed++
			}
		}
		if m.PaymentProcessed {
			stats.Paid++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	if timed > 0 {
		stats.AverageCompletionSeconds = (total / time.Duration(timed)).Seconds()
	}
	return stats
}

func (s *Service) apply(ctx context.Context, actorID, id string, expected *int64, action Action, mutate func(*Milestone, time.Time)) (*Milestone, error) {
	return s.applyWith(ctx, actorID, id, expected, action, mutate, func(ctx context.Context, m *Milestone, expected int64) error {
		return s.milestones.Update(ctx, m, expected)
	})
}

// applyWith validates and persists one lifecycle action. A stale read is rejected, never retried.
func (s *Service) applyWith(
	ctx context.Context,
	actorID, id string,
	expected *int64,
	action Action,
	mutate func(*Milestone, time.Time),
	persist func(context.Context, *Milestone, int64) error,
) (*Milestone, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	role, ok := party.Resolve(actorID, current.ClientID, current.FreelancerID)
	if !ok {
		metrics.RecordMilestoneTransition(string(action), "denied")
		return nil, ErrAccessDenied
	}
	if expected != nil && *expected != current.Version {
		metrics.RecordMilestoneTransition(string(action), "conflict")
		return nil, ErrConflict
	}
	next, err := Transition(current.Status, action, role)
	if err != nil {
		metrics.RecordMilestoneTransition(string(action), "rejected")
		return nil, err
	}

	now := time.Now().UTC()
	updated := *current
	mutate(&updated, now)
	updated.Status = next
	updated.UpdatedAt = now
	updated.Version = current.Version + 1

	if err := persist(ctx, &updated, current.Version); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RecordMilestoneTransition(string(action), "conflict")
			return nil, ErrConflict
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("updating milestone: %w", err)
	}

	metrics.RecordMilestoneTransition(string(action), "ok")
	return &updated, nil
}

func (s *Service) load(ctx context.Context, id string) (*Milestone, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	m, err := s.milestones.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("loading milestone: %w", err)
	}
	return m, nil
}

func (s *Service) announce(ctx context.Context, partyID string, kind notify.Kind, m *Milestone) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, notify.NewEvent(kind, partyID, m.ID, map[string]any{
		"workspace_id": m.WorkspaceID,
		"contract_id":  m.ContractID,
		"phase":        m.PhaseNumber,
		"status":       m.Status,
	}))
}

func (s *Service) logActivity(ctx context.Context, actorID string, m *Milestone, kind activity.ActivityType, summary string) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, &activity.ActivityEntry{
		ContractID:   m.ContractID,
		WorkspaceID:  &m.WorkspaceID,
		MilestoneID:  &m.ID,
		ActorID:      actorID,
		ActivityType: kind,
		Summary:      summary,
	})
}
