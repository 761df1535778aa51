package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/workspace"
)

// CreateContractBody drafts a contract; the caller becomes the client.
type CreateContractBody struct {
	FreelancerID string           `json:"freelancer_id"`
	ProposalID   string           `json:"proposal_id"`
	JobID        *string          `json:"job_id,omitempty"`
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	TotalAmount  int64            `json:"total_amount" doc:"Amount in minor currency units"`
	Currency     string           `json:"currency" example:"USD"`
	Phases       []contract.Phase `json:"phases,omitempty"`
	RespondBy    *time.Time       `json:"respond_by,omitempty"`
}

type contractPath struct {
	ID string `path:"id"`
}

type contractOutput struct {
	Body *contract.Contract
}

func (s *server) registerContracts(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-contract",
		Method:        http.MethodPost,
		Path:          "/contracts",
		Summary:       "Draft a contract",
		Tags:          []string{"contracts"},
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateContractBody
	}) (*contractOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		c, err := s.services.Contracts.Create(ctx, actorID, contract.CreateRequest{
			FreelancerID: input.Body.FreelancerID,
			ProposalID:   input.Body.ProposalID,
			JobID:        input.Body.JobID,
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			TotalAmount:  input.Body.TotalAmount,
			Currency:     input.Body.Currency,
			Phases:       input.Body.Phases,
			RespondBy:    input.Body.RespondBy,
		})
		if err != nil {
			return nil, s.fail(ctx, "create-contract", err)
		}
		return &contractOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contracts",
		Method:      http.MethodGet,
		Path:        "/contracts",
		Summary:     "List the caller's contracts",
		Tags:        []string{"contracts"},
	}, func(ctx context.Context, input *struct {
		Status []string `query:"status" doc:"Filter by status"`
		Limit  int      `query:"limit" default:"50" minimum:"0" maximum:"500"`
		Offset int      `query:"offset" minimum:"0"`
	}) (*struct {
		Body []contract.Contract
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		statuses := make([]contract.Status, 0, len(input.Status))
		for _, st := range input.Status {
			statuses = append(statuses, contract.Status(st))
		}
		list, err := s.services.Contracts.List(ctx, actorID, contract.ListOptions{
			Statuses: statuses,
			Limit:    input.Limit,
			Offset:   input.Offset,
		})
		if err != nil {
			return nil, s.fail(ctx, "list-contracts", err)
		}
		return &struct {
			Body []contract.Contract
		}{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-contract",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}",
		Summary:     "Get a contract",
		Tags:        []string{"contracts"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *contractPath) (*contractOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		c, err := s.services.Contracts.Get(ctx, actorID, input.ID)
		if err != nil {
			return nil, s.fail(ctx, "get-contract", err)
		}
		return &contractOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-contract-phases",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}/phases",
		Summary:     "Phase terms with milestone status",
		Tags:        []string{"contracts"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *contractPath) (*struct {
		Body []contract.PhaseView
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		phases, err := s.services.Contracts.Phases(ctx, actorID, input.ID)
		if err != nil {
			return nil, s.fail(ctx, "get-contract-phases", err)
		}
		return &struct {
			Body []contract.PhaseView
		}{Body: phases}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "send-contract",
		Method:      http.MethodPost,
		Path:        "/contracts/{id}/send",
		Summary:     "Send a draft to the freelancer",
		Tags:        []string{"contracts"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *contractPath) (*contractOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		c, err := s.services.Contracts.Send(ctx, actorID, input.ID)
		if err != nil {
			return nil, s.fail(ctx, "send-contract", err)
		}
		return &contractOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sign-contract",
		Method:      http.MethodPost,
		Path:        "/contracts/{id}/sign",
		Summary:     "Sign as the caller's role",
		Tags:        []string{"contracts"},
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Token string `json:"token" doc:"Opaque signature token"`
		}
	}) (*struct {
		Body *contract.SignResult
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		result, err := s.services.Contracts.Sign(ctx, actorID, contract.SignRequest{
			ContractID: input.ID,
			Token:      input.Body.Token,
		})
		if err != nil {
			return nil, s.fail(ctx, "sign-contract", err)
		}
		return &struct {
			Body *contract.SignResult
		}{Body: result}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decline-contract",
		Method:      http.MethodPost,
		Path:        "/contracts/{id}/decline",
		Summary:     "Decline as the freelancer",
		Tags:        []string{"contracts"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			Reason string `json:"reason,omitempty"`
		}
	}) (*contractOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		c, err := s.services.Contracts.Decline(ctx, actorID, input.ID, input.Body.Reason)
		if err != nil {
			return nil, s.fail(ctx, "decline-contract", err)
		}
		return &contractOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-contract",
		Method:      http.MethodPost,
		Path:        "/contracts/{id}/cancel",
		Summary:     "Cancel before activation",
		Tags:        []string{"contracts"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *contractPath) (*contractOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		c, err := s.services.Contracts.Cancel(ctx, actorID, input.ID)
		if err != nil {
			return nil, s.fail(ctx, "cancel-contract", err)
		}
		return &contractOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-contract-workspace",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}/workspace",
		Summary:     "The caller's view of the contract's workspace",
		Tags:        []string{"contracts", "workspaces"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *contractPath) (*workspaceOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		view, err := s.services.Workspaces.ViewByContract(ctx, actorID, input.ID, "")
		if err != nil {
			return nil, s.fail(ctx, "get-contract-workspace", err)
		}
		return &workspaceOutput{Body: view}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-contract-activity",
		Method:      http.MethodGet,
		Path:        "/contracts/{id}/activity",
		Summary:     "Audit trail, newest first",
		Tags:        []string{"contracts"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Limit  int    `query:"limit" default:"50" minimum:"0" maximum:"500"`
		Offset int    `query:"offset" minimum:"0"`
	}) (*struct {
		Body []activity.ActivityEntry
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		// Party check.
		if _, err := s.services.Contracts.Get(ctx, actorID, input.ID); err != nil {
			return nil, s.fail(ctx, "list-contract-activity", err)
		}
		entries, err := s.services.Activity.GetRecentActivity(ctx, activity.ListActivityOptions{
			ContractID: input.ID,
			Limit:      input.Limit,
			Offset:     input.Offset,
		})
		if err != nil {
			return nil, s.fail(ctx, "list-contract-activity", err)
		}
		return &struct {
			Body []activity.ActivityEntry
		}{Body: entries}, nil
	})
}

type workspaceOutput struct {
	Body *workspace.RoleView
}
