package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/rpggio/handshake/internal/notify"
	"github.com/rpggio/handshake/internal/repository"
)

const maxUpdateAttempts = 5

// Service exposes role-scoped workspace views and collaboration operations.
type Service struct {
	workspaces Repository
	milestones MilestoneRepository
	events     notify.Publisher
	logger     *slog.Logger
}

// NewService creates a new workspace service.
func NewService(workspaces Repository, milestones MilestoneRepository, events notify.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		workspaces: workspaces,
		milestones: milestones,
		events:     events,
		logger:     logger,
	}
}

// MessageRequest posts to the shared thread.
type MessageRequest struct {
	WorkspaceID string
	Body        string
	Attachments []File
}

// FileRequest attaches a file reference to the shared list or the actor's private partition.
type FileRequest struct {
	WorkspaceID string
	Name        string
	URL         string
	Size        int64
	Private     bool
}

// CallRequest schedules a video call.
type CallRequest struct {
	WorkspaceID     string
	Title           string
	StartsAt        time.Time
	DurationMinutes int
}

// View projects the workspace for the actor. A non-empty asserted role must match the actor's
// actual role.
func (s *Service) View(ctx context.Context, actorID, workspaceID string, asserted party.Role) (*RoleView, error) {
	ws, err := s.load(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, ws, actorID, asserted)
}

// ViewByContract projects the workspace of a contract for the actor. A non-empty asserted role
// must match the actor's actual role.
func (s *Service) ViewByContract(ctx context.Context, actorID, contractID string, asserted party.Role) (*RoleView, error) {
	if strings.TrimSpace(contractID) == "" {
		return nil, ErrInvalidInput
	}
	ws, err := s.workspaces.GetByContract(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	return s.project(ctx, ws, actorID, asserted)
}

func (s *Service) project(ctx context.Context, ws *Workspace, actorID string, asserted party.Role) (*RoleView, error) {
	if _, ok := party.Resolve(actorID, ws.ClientID, ws.FreelancerID); !ok {
		return nil, ErrAccessDenied
	}
	milestones, err := s.milestones.ListByWorkspace(ctx, ws.ID)
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	return Project(ws, milestones, actorID, asserted)
}

// PostMessage appends to the shared thread and bumps the counterpart's unread counter.
func (s *Service) PostMessage(ctx context.Context, actorID string, req MessageRequest) (*Message, error) {
	if strings.TrimSpace(req.Body) == "" {
		return nil, ErrInvalidInput
	}
	if err := validateFiles(req.Attachments); err != nil {
		return nil, err
	}

	var msg Message
	ws, err := s.mutate(ctx, actorID, req.WorkspaceID, func(ws *Workspace, role party.Role, now time.Time) {
		attachments := make([]File, 0, len(req.Attachments))
		for _, f := range req.Attachments {
			attachments = append(attachments, newFile(f.Name, f.URL, f.Size, actorID, now))
		}
		msg = Message{
			ID:          uuid.NewString(),
			SenderID:    actorID,
			Body:        req.Body,
			Attachments: attachments,
			SentAt:      now,
		}
		ws.Shared.Messages = append(ws.Shared.Messages, msg)
		if role == party.RoleClient {
			ws.Shared.Unread.Freelancer++
		} else {
			ws.Shared.Unread.Client++
		}
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		role, _ := party.Resolve(actorID, ws.ClientID, ws.FreelancerID)
		recipient := party.Counterpart(role, ws.ClientID, ws.FreelancerID)
		s.events.Publish(ctx, notify.NewEvent(notify.KindMessagePosted, recipient, ws.ID, map[string]any{
			"workspace_id": ws.ID,
			"message_id":   msg.ID,
			"sender_id":    actorID,
		}))
	}
	return &msg, nil
}

// MarkRead resets the actor's unread counter.
func (s *Service) MarkRead(ctx context.Context, actorID, workspaceID string) error {
	_, err := s.mutate(ctx, actorID, workspaceID, func(ws *Workspace, role party.Role, _ time.Time) {
		if role == party.RoleClient {
			ws.Shared.Unread.Client = 0
		} else {
			ws.Shared.Unread.Freelancer = 0
		}
	})
	return err
}

// AddFile records a file reference.
func (s *Service) AddFile(ctx context.Context, actorID string, req FileRequest) (*File, error) {
	if err := validateFiles([]File{{Name: req.Name, URL: req.URL, Size: req.Size}}); err != nil {
		return nil, err
	}
	var file File
	_, err := s.mutate(ctx, actorID, req.WorkspaceID, func(ws *Workspace, role party.Role, now time.Time) {
		file = newFile(req.Name, req.URL, req.Size, actorID, now)
		if req.Private {
			private := ws.Private(role)
			private.Files = append(private.Files, file)
			return
		}
		ws.Shared.Files = append(ws.Shared.Files, file)
	})
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// AddNote appends a private note for the actor.
func (s *Service) AddNote(ctx context.Context, actorID, workspaceID, text string) (*Note, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	var note Note
	_, err := s.mutate(ctx, actorID, workspaceID, func(ws *Workspace, role party.Role, now time.Time) {
		note = Note{ID: uuid.NewString(), Text: text, CreatedAt: now}
		private := ws.Private(role)
		private.Notes = append(private.Notes, note)
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// ScheduleCall adds a call to the shared schedule.
func (s *Service) ScheduleCall(ctx context.Context, actorID string, req CallRequest) (*Call, error) {
	if strings.TrimSpace(req.Title) == "" || req.StartsAt.IsZero() || req.DurationMinutes <= 0 {
		return nil, ErrInvalidInput
	}
	var call Call
	_, err := s.mutate(ctx, actorID, req.WorkspaceID, func(ws *Workspace, _ party.Role, _ time.Time) {
		call = Call{
			ID:              uuid.NewString(),
			Title:           req.Title,
			ScheduledBy:     actorID,
			StartsAt:        req.StartsAt.UTC(),
			DurationMinutes: req.DurationMinutes,
		}
		ws.Shared.Calls = append(ws.Shared.Calls, call)
	})
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// mutate applies change to a fresh copy of the workspace, retrying on version conflicts.
func (s *Service) mutate(ctx context.Context, actorID, workspaceID string, change func(*Workspace, party.Role, time.Time)) (*Workspace, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := s.load(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		role, ok := party.Resolve(actorID, current.ClientID, current.FreelancerID)
		if !ok {
			return nil, ErrAccessDenied
		}

		now := time.Now().UTC()
		updated := *current
		updated.Shared = copyShared(current.Shared)
		updated.ClientPrivate = copyPrivate(current.ClientPrivate)
		updated.FreelancerPrivate = copyPrivate(current.FreelancerPrivate)
		change(&updated, role, now)
		updated.UpdatedAt = now
		updated.Version = current.Version + 1

		err = s.workspaces.Update(ctx, &updated, current.Version)
		if err == nil {
			return &updated, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("updating workspace: %w", err)
		}
		s.logger.Debug("workspace update conflict, retrying", "workspace_id", workspaceID, "attempt", attempt+1)
	}
	return nil, ErrConflict
}

func (s *Service) load(ctx context.Context, id string) (*Workspace, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	ws, err := s.workspaces.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("loading workspace: %w", err)
	}
	return ws, nil
}

func validateFiles(files []File) error {
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.URL) == "" || f.Size < 0 {
			return ErrInvalidInput
		}
	}
	return nil
}

func newFile(name, url string, size int64, uploadedBy string, now time.Time) File {
	return File{
		ID:         uuid.NewString(),
		Name:       name,
		URL:        url,
		Size:       size,
		UploadedBy: uploadedBy,
		UploadedAt: now,
	}
}
