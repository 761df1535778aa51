package transport

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rpggio/handshake/internal/domain/milestone"
)

type milestoneOutput struct {
	Body *milestone.Milestone
}

// VersionGuard carries the optional optimistic-concurrency guard.
type VersionGuard struct {
	ExpectedVersion *int64 `json:"expected_version,omitempty" doc:"Reject the action if the milestone changed since this version"`
}

func (s *server) registerMilestones(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-milestone",
		Method:      http.MethodGet,
		Path:        "/milestones/{id}",
		Summary:     "Get a milestone",
		Tags:        []string{"milestones"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*milestoneOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		m, err := s.services.Milestones.Get(ctx, actorID, input.ID)
		if err != nil {
			return nil, s.fail(ctx, "get-milestone", err)
		}
		return &milestoneOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-milestone",
		Method:      http.MethodPost,
		Path:        "/milestones/{id}/start",
		Summary:     "Start work (freelancer)",
		Tags:        []string{"milestones"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body VersionGuard `required:"false"`
	}) (*milestoneOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		m, err := s.services.Milestones.Start(ctx, actorID, milestone.StartRequest{
			MilestoneID:     input.ID,
			ExpectedVersion: input.Body.ExpectedVersion,
		})
		if err != nil {
			return nil, s.fail(ctx, "start-milestone", err)
		}
		return &milestoneOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-milestone",
		Method:      http.MethodPost,
		Path:        "/milestones/{id}/submit",
		Summary:     "Submit work for approval (freelancer)",
		Tags:        []string{"milestones"},
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			VersionGuard
			Deliverables []milestone.Deliverable `json:"deliverables,omitempty"`
			Note         string                  `json:"note,omitempty"`
		}
	}) (*milestoneOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		m, err := s.services.Milestones.Submit(ctx, actorID, milestone.SubmitRequest{
			MilestoneID:     input.ID,
			Deliverables:    input.Body.Deliverables,
			Note:            input.Body.Note,
			ExpectedVersion: input.Body.ExpectedVersion,
		})
		if err != nil {
			return nil, s.fail(ctx, "submit-milestone", err)
		}
		return &milestoneOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-milestone",
		Method:      http.MethodPost,
		Path:        "/milestones/{id}/approve",
		Summary:     "Approve submitted work (client)",
		Tags:        []string{"milestones"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			VersionGuard
			Feedback string `json:"feedback,omitempty"`
		}
	}) (*struct {
		Body *milestone.ApprovalResult
	}, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		result, err := s.services.Milestones.Approve(ctx, actorID, milestone.ApproveRequest{
			MilestoneID:     input.ID,
			Feedback:        input.Body.Feedback,
			ExpectedVersion: input.Body.ExpectedVersion,
		})
		if err != nil {
			return nil, s.fail(ctx, "approve-milestone", err)
		}
		return &struct {
			Body *milestone.ApprovalResult
		}{Body: result}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-revision",
		Method:      http.MethodPost,
		Path:        "/milestones/{id}/request-revision",
		Summary:     "Send submitted work back (client)",
		Tags:        []string{"milestones"},
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			VersionGuard
			Notes string `json:"notes,omitempty"`
		}
	}) (*milestoneOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		m, err := s.services.Milestones.RequestRevision(ctx, actorID, milestone.RevisionRequest{
			MilestoneID:     input.ID,
			Notes:           input.Body.Notes,
			ExpectedVersion: input.Body.ExpectedVersion,
		})
		if err != nil {
			return nil, s.fail(ctx, "request-revision", err)
		}
		return &milestoneOutput{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-payment",
		Method:      http.MethodPost,
		Path:        "/milestones/{id}/payment",
		Summary:     "Record a released payment (client)",
		Tags:        []string{"milestones"},
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			VersionGuard
			Reference string `json:"reference" doc:"Payment processor reference"`
		}
	}) (*milestoneOutput, error) {
		actorID, err := actor(ctx)
		if err != nil {
			return nil, err
		}
		m, err := s.services.Milestones.RecordPayment(ctx, actorID, milestone.PaymentRequest{
			MilestoneID:     input.ID,
			Reference:       input.Body.Reference,
			ExpectedVersion: input.Body.ExpectedVersion,
		})
		if err != nil {
			return nil, s.fail(ctx, "record-payment", err)
		}
		return &milestoneOutput{Body: m}, nil
	})
}
