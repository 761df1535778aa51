package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/party"
	"github.com/rpggio/handshake/internal/domain/workspace"
)

// addTool registers a tool whose handler runs as the authenticated actor. Domain errors are
// returned as tool errors carrying an APIError.
func addTool[In any](server *sdkmcp.Server, name, description string, run func(ctx context.Context, actorID string, in In) (any, error)) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *sdkmcp.CallToolRequest, in In) (*sdkmcp.CallToolResult, any, error) {
			actorID := getActorID(ctx)
			if actorID == "" {
				return toolError(&APIError{Code: "UNAUTHORIZED", Message: "no actor for this call"}), nil, nil
			}
			out, err := run(ctx, actorID, in)
			if err != nil {
				return toolError(err), nil, nil
			}
			return nil, out, nil
		})
}

type idArgs struct {
	ID string `json:"id" jsonschema:"the record ID"`
}

type phaseArgs struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Amount      int64  `json:"amount" jsonschema:"amount in minor currency units"`
	DueDate     string `json:"due_date,omitempty" jsonschema:"RFC 3339 timestamp"`
}

type createContractArgs struct {
	FreelancerID string      `json:"freelancer_id"`
	ProposalID   string      `json:"proposal_id"`
	JobID        string      `json:"job_id,omitempty"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	TotalAmount  int64       `json:"total_amount" jsonschema:"amount in minor currency units"`
	Currency     string      `json:"currency" jsonschema:"ISO 4217 code"`
	Phases       []phaseArgs `json:"phases,omitempty"`
	RespondBy    string      `json:"respond_by,omitempty" jsonschema:"RFC 3339 timestamp"`
}

type listContractsArgs struct {
	Statuses []string `json:"statuses,omitempty" jsonschema:"filter by contract status"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

type signArgs struct {
	ID    string `json:"id"`
	Token string `json:"token" jsonschema:"opaque signature token"`
}

type declineArgs struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

type activityArgs struct {
	ContractID  string `json:"contract_id"`
	MilestoneID string `json:"milestone_id,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

func registerContractTools(server *sdkmcp.Server, svc Services) {
	addTool(server, "create_contract", "Draft a contract with yourself as client",
		func(ctx context.Context, actorID string, in createContractArgs) (any, error) {
			req := contract.CreateRequest{
				FreelancerID: in.FreelancerID,
				ProposalID:   in.ProposalID,
				Title:        in.Title,
				Description:  in.Description,
				TotalAmount:  in.TotalAmount,
				Currency:     in.Currency,
			}
			if in.JobID != "" {
				req.JobID = &in.JobID
			}
			var err error
			if req.RespondBy, err = parseTime(in.RespondBy); err != nil {
				return nil, err
			}
			for _, p := range in.Phases {
				due, err := parseTime(p.DueDate)
				if err != nil {
					return nil, err
				}
				req.Phases = append(req.Phases, contract.Phase{
					Number:      p.Number,
					Title:       p.Title,
					Description: p.Description,
					Amount:      p.Amount,
					DueDate:     due,
				})
			}
			return svc.Contracts.Create(ctx, actorID, req)
		})

	addTool(server, "list_contracts", "List contracts where you are a party",
		func(ctx context.Context, actorID string, in listContractsArgs) (any, error) {
			opts := contract.ListOptions{Limit: in.Limit, Offset: in.Offset}
			for _, st := range in.Statuses {
				opts.Statuses = append(opts.Statuses, contract.Status(st))
			}
			list, err := svc.Contracts.List(ctx, actorID, opts)
			if err != nil {
				return nil, err
			}
			return map[string]any{"contracts": list}, nil
		})

	addTool(server, "get_contract", "Get a contract",
		func(ctx context.Context, actorID string, in idArgs) (any, error) {
			return svc.Contracts.Get(ctx, actorID, in.ID)
		})

	addTool(server, "get_contract_phases", "Get a contract's phases with their milestone status",
		func(ctx context.Context, actorID string, in idArgs) (any, error) {
			phases, err := svc.Contracts.Phases(ctx, actorID, in.ID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"phases": phases}, nil
		})

	addTool(server, "send_contract", "Send a draft contract to the freelancer (client only)",
		func(ctx context.Context, actorID string, in idArgs) (any, error) {
			return svc.Contracts.Send(ctx, actorID, in.ID)
		})

	addTool(server, "sign_contract", "Sign a contract; it activates once both parties have signed",
		func(ctx context.Context, actorID string, in signArgs) (any, error) {
			return svc.Contracts.Sign(ctx, actorID, contract.SignRequest{ContractID: in.ID, Token: in.Token})
		})

	addTool(server, "decline_contract", "Decline a sent contract (freelancer only)",
		func(ctx context.Context, actorID string, in declineArgs) (any, error) {
			return svc.Contracts.Decline(ctx, actorID, in.ID, in.Reason)
		})

	addTool(server, "cancel_contract", "Cancel a contract that is not yet active",
		func(ctx context.Context, actorID string, in idArgs) (any, error) {
			return svc.Contracts.Cancel(ctx, actorID, in.ID)
		})

	addTool(server, "get_recent_activity", "List a contract's audit trail, newest first",
		func(ctx context.Context, actorID string, in activityArgs) (any, error) {
			// Party check; activity rows carry no party columns.
			if _, err := svc.Contracts.Get(ctx, actorID, in.ContractID); err != nil {
				return nil, err
			}
			opts := activity.ListActivityOptions{ContractID: in.ContractID, Limit: in.Limit}
			if in.MilestoneID != "" {
				opts.MilestoneID = &in.MilestoneID
			}
			entries, err := svc.Activity.GetRecentActivity(ctx, opts)
			if err != nil {
				return nil, err
			}
			return map[string]any{"activity": entries}, nil
		})
}

type viewArgs struct {
	ID         string `json:"id,omitempty" jsonschema:"workspace ID"`
	ContractID string `json:"contract_id,omitempty" jsonschema:"look up by contract instead of workspace ID"`
	Role       string `json:"role,omitempty" jsonschema:"asserted role: client or freelancer"`
}

type attachmentArgs struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

type messageArgs struct {
	WorkspaceID string           `json:"workspace_id"`
	Body        string           `json:"body"`
	Attachments []attachmentArgs `json:"attachments,omitempty"`
}

type fileArgs struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Size        int64  `json:"size,omitempty"`
	Private     bool   `json:"private,omitempty" jsonschema:"store in your private partition"`
}

type noteArgs struct {
	WorkspaceID string `json:"workspace_id"`
	Text        string `json:"text"`
}

type callArgs struct {
	WorkspaceID     string `json:"workspace_id"`
	Title           string `json:"title"`
	StartsAt        string `json:"starts_at" jsonschema:"RFC 3339 timestamp"`
	DurationMinutes int    `json:"duration_minutes"`
}

func registerWorkspaceTools(server *sdkmcp.Server, svc Services) {
	addTool(server, "get_workspace", "Get your view of a workspace: shared data, your private data, milestones, ledger and permissions",
		func(ctx context.Context, actorID string, in viewArgs) (any, error) {
			role := party.Role(strings.ToLower(in.Role))
			if role != "" && role != party.RoleClient && role != party.RoleFreelancer {
				return nil, &APIError{Code: "INVALID_INPUT", Message: fmt.Sprintf("unknown role %q", in.Role)}
			}
			if in.ID == "" && in.ContractID != "" {
				return svc.Workspaces.ViewByContract(ctx, actorID, in.ContractID, role)
			}
			return svc.Workspaces.View(ctx, actorID, in.ID, role)
		})

	addTool(server, "post_message", "Post to the workspace's shared thread",
		func(ctx context.Context, actorID string, in messageArgs) (any, error) {
			req := workspace.MessageRequest{WorkspaceID: in.WorkspaceID, Body: in.Body}
			for _, a := range in.Attachments {
				req.Attachments = append(req.Attachments, workspace.File{Name: a.Name, URL: a.URL, Size: a.Size})
			}
			return svc.Workspaces.PostMessage(ctx, actorID, req)
		})

	addTool(server, "mark_read", "Reset your unread message counter",
		func(ctx context.Context, actorID string, in idArgs) (any, error) {
			if err := svc.Workspaces.MarkRead(ctx, actorID, in.ID); err != nil {
				return nil, err
			}
			return map[string]any{"ok": true}, nil
		})

	addTool(server, "add_file", "Attach a file reference to the workspace",
		func(ctx context.Context, actorID string, in fileArgs) (any, error) {
			return svc.Workspaces.AddFile(ctx, actorID, workspace.FileRequest{
				WorkspaceID: in.WorkspaceID,
				Name:        in.Name,
				URL:         in.URL,
				Size:        in.Size,
				Private:     in.Private,
			})
		})

	addTool(server, "add_note", "Add a private note only you can see",
		func(ctx context.Context, actorID string, in noteArgs) (any, error) {
			return svc.Workspaces.AddNote(ctx, actorID, in.WorkspaceID, in.Text)
		})

	addTool(server, "schedule_call", "Schedule a video call",
		func(ctx context.Context, actorID string, in callArgs) (any, error) {
			startsAt, err := time.Parse(time.RFC3339, in.StartsAt)
			if err != nil {
				return nil, &APIError{Code: "INVALID_INPUT", Message: "starts_at must be an RFC 3339 timestamp"}
			}
			return svc.Workspaces.ScheduleCall(ctx, actorID, workspace.CallRequest{
				WorkspaceID:     in.WorkspaceID,
				Title:           in.Title,
				StartsAt:        startsAt,
				DurationMinutes: in.DurationMinutes,
			})
		})
}

type milestoneArgs struct {
	ID              string `json:"id"`
	ExpectedVersion *int64 `json:"expected_version,omitempty" jsonschema:"reject if the milestone changed since this version"`
}

type submitArgs struct {
	ID              string                  `json:"id"`
	ExpectedVersion *int64                  `json:"expected_version,omitempty"`
	Deliverables    []milestone.Deliverable `json:"deliverables,omitempty"`
	Note            string                  `json:"note,omitempty"`
}

type approveArgs struct {
	ID              string `json:"id"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
	Feedback        string `json:"feedback,omitempty"`
}

type revisionArgs struct {
	ID              string `json:"id"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type paymentArgs struct {
	ID              string `json:"id"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
	Reference       string `json:"reference" jsonschema:"payment processor reference"`
}

func registerMilestoneTools(server *sdkmcp.Server, svc Services) {
	addTool(server, "list_milestones", "List a workspace's milestones in phase order",
		func(ctx context.Context, actorID string, in idArgs) (any, error) {
			list, err := svc.Milestones.List(ctx, actorID, in.ID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"milestones": list}, nil
		})

	addTool(server, "get_milestone", "Get a milestone",
		func(ctx context.Context, actorID string, in idArgs) (any, error) {
			return svc.Milestones.Get(ctx, actorID, in.ID)
		})

	addTool(server, "get_milestone_stats", "Derived progress statistics for a workspace",
		func(ctx context.Context, actorID string, in idArgs) (any, error) {
			return svc.Milestones.Stats(ctx, actorID, in.ID)
		})

	addTool(server, "start_milestone", "Start work on a milestone (freelancer)",
		func(ctx context.Context, actorID string, in milestoneArgs) (any, error) {
			return svc.Milestones.Start(ctx, actorID, milestone.StartRequest{
				MilestoneID:     in.ID,
				ExpectedVersion: in.ExpectedVersion,
			})
		})

	addTool(server, "submit_milestone", "Submit work for client approval (freelancer)",
		func(ctx context.Context, actorID string, in submitArgs) (any, error) {
			return svc.Milestones.Submit(ctx, actorID, milestone.SubmitRequest{
				MilestoneID:     in.ID,
				Deliverables:    in.Deliverables,
				Note:            in.Note,
				ExpectedVersion: in.ExpectedVersion,
			})
		})

	addTool(server, "approve_milestone", "Approve submitted work and advance the workspace (client)",
		func(ctx context.Context, actorID string, in approveArgs) (any, error) {
			return svc.Milestones.Approve(ctx, actorID, milestone.ApproveRequest{
				MilestoneID:     in.ID,
				Feedback:        in.Feedback,
				ExpectedVersion: in.ExpectedVersion,
			})
		})

	addTool(server, "request_revision", "Send submitted work back for changes (client)",
		func(ctx context.Context, actorID string, in revisionArgs) (any, error) {
			return svc.Milestones.RequestRevision(ctx, actorID, milestone.RevisionRequest{
				MilestoneID:     in.ID,
				Notes:           in.Notes,
				ExpectedVersion: in.ExpectedVersion,
			})
		})

	addTool(server, "record_payment", "Record that an approved milestone was paid (client)",
		func(ctx context.Context, actorID string, in paymentArgs) (any, error) {
			return svc.Milestones.RecordPayment(ctx, actorID, milestone.PaymentRequest{
				MilestoneID:     in.ID,
				Reference:       in.Reference,
				ExpectedVersion: in.ExpectedVersion,
			})
		})
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, &APIError{Code: "INVALID_INPUT", Message: fmt.Sprintf("invalid timestamp %q", s)}
	}
	t = t.UTC()
	return &t, nil
}
