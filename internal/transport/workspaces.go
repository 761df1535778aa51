package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/rpggio/handshake/internal/domain/workspace"
)

// AttachmentBody references a file stored elsewhere.
type AttachmentBody struct {
	Name string `json:"name"`
	URL  string `json:"url" format:"uri"`
	Size int64  `json:"size,omitempty" minimum:"0"`
}

type workspacePath struct {
	ID string `path:"id"`
}

func (s *server) registerWorkspaces(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-workspace",
		Method:      http.MethodGet,
		Path:        "/workspaces/{id}",
		Summary:     "The caller's role-scoped workspace view",
		Tags:        []string{"workspaces"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Role string `query:"role" enum:"client,freelancer" doc:"Asserted role; rejected when it does not match the caller"`
	}) (*workspaceOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		view, err := s.services.Workspaces.View(ctx, actorID, input.ID, party.Role(input.Role))
		if err != nil {
			return nil, s.fail(ctx, "get-workspace", err)
		}
		return &workspaceOutput{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "post-message",
		Method:        http.MethodPost,
		Path:          "/workspaces/{id}/messages",
		Summary:       "Post to the shared thread",
		Tags:          []string{"workspaces"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Body        string           `json:"body"`
			Attachments []AttachmentBody `json:"attachments,omitempty"`
		}
	}) (*struct {
		Body *workspace.Message
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		attachments := make([]workspace.File, 0, len(input.Body.Attachments))
		for _, a := range input.Body.Attachments {
			attachments = append(attachments, workspace.File{Name: a.Name, URL: a.URL, Size: a.Size})
		}
		msg, err := s.services.Workspaces.PostMessage(ctx, actorID, workspace.MessageRequest{
			WorkspaceID: input.ID,
			Body:        input.Body.Body,
			Attachments: attachments,
		})
		if err != nil {
			return nil, s.fail(ctx, "post-message", err)
		}
		return &struct {
			Body *workspace.Message
		}{Body: msg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "mark-read",
		Method:        http.MethodPost,
		Path:          "/workspaces/{id}/read",
		Summary:       "Reset the caller's unread counter",
		Tags:          []string{"workspaces"},
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *workspacePath) (*struct{}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.services.Workspaces.MarkRead(ctx, actorID, input.ID); err != nil {
			return nil, s.fail(ctx, "mark-read", err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-file",
		Method:        http.MethodPost,
		Path:          "/workspaces/{id}/files",
		Summary:       "Attach a file reference",
		Tags:          []string{"workspaces"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			AttachmentBody
			Private bool `json:"private,omitempty" doc:"Store in the caller's private partition"`
		}
	}) (*struct {
		Body *workspace.File
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		file, err := s.services.Workspaces.AddFile(ctx, actorID, workspace.FileRequest{
			WorkspaceID: input.ID,
			Name:        input.Body.Name,
			URL:         input.Body.URL,
			Size:        input.Body.Size,
			Private:     input.Body.Private,
		})
		if err != nil {
			return nil, s.fail(ctx, "add-file", err)
		}
		return &struct {
			Body *workspace.File
		}{Body: file}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-note",
		Method:        http.MethodPost,
		Path:          "/workspaces/{id}/notes",
		Summary:       "Add a private note",
		Tags:          []string{"workspaces"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Text string `json:"text"`
		}
	}) (*struct {
		Body *workspace.Note
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		note, err := s.services.Workspaces.AddNote(ctx, actorID, input.ID, input.Body.Text)
		if err != nil {
			return nil, s.fail(ctx, "add-note", err)
		}
		return &struct {
			Body *workspace.Note
		}{Body: note}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "schedule-call",
		Method:        http.MethodPost,
		Path:          "/workspaces/{id}/calls",
		Summary:       "Schedule a video call",
		Tags:          []string{"workspaces"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Title           string    `json:"title"`
			StartsAt        time.Time `json:"starts_at"`
			DurationMinutes int       `json:"duration_minutes" minimum:"1"`
		}
	}) (*struct {
		Body *workspace.Call
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		call, err := s.services.Workspaces.ScheduleCall(ctx, actorID, workspace.CallRequest{
			WorkspaceID:     input.ID,
			Title:           input.Body.Title,
			StartsAt:        input.Body.StartsAt,
			DurationMinutes: input.Body.DurationMinutes,
		})
		if err != nil {
			return nil, s.fail(ctx, "schedule-call", err)
		}
		return &struct {
			Body *workspace.Call
		}{Body: call}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-milestones",
		Method:      http.MethodGet,
		Path:        "/workspaces/{id}/milestones",
		Summary:     "Milestones ordered by phase",
		Tags:        []string{"workspaces", "milestones"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *workspacePath) (*struct {
		Body []milestone.Milestone
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		list, err := s.services.Milestones.List(ctx, actorID, input.ID)
		if err != nil {
			return nil, s.fail(ctx, "list-milestones", err)
		}
		return &struct {
			Body []milestone.Milestone
		}{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "milestone-stats",
		Method:      http.MethodGet,
		Path:        "/workspaces/{id}/stats",
		Summary:     "Derived milestone statistics",
		Tags:        []string{"workspaces", "milestones"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *workspacePath) (*struct {
		Body *milestone.Stats
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		stats, err := s.services.Milestones.Stats(ctx, actorID, input.ID)
		if err != nil {
			return nil, s.fail(ctx, "milestone-stats", err)
		}
		return &struct {
			Body *milestone.Stats
		}{Body: stats}, nil
	})
}
