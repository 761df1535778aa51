package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/workspace"
)

type apiErrorBody struct {
	Code    string `json:"code" example:"invalid_transition"`
	Message string `json:"message" example:"invalid contract transition"`
}

// apiError is the {"error": {...}} envelope returned for every failure.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message}}
}

// useErrorEnvelope makes huma's own validation and routing errors use apiError.
func useErrorEnvelope() {
	huma.NewError = func(status int, msg string, _ ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg)
	}
}

// mapError translates domain errors into API errors.
func mapError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, contract.ErrContractNotFound),
		errors.Is(err, workspace.ErrWorkspaceNotFound),
		errors.Is(err, milestone.ErrMilestoneNotFound),
		errors.Is(err, milestone.ErrWorkspaceNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, contract.ErrAlreadySigned):
		return newAPIError(http.StatusConflict, "already_signed", err.Error())
	case errors.Is(err, contract.ErrInvalidTransition),
		errors.Is(err, milestone.ErrInvalidTransition):
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, contract.ErrConflict),
		errors.Is(err, workspace.ErrConflict),
		errors.Is(err, milestone.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, contract.ErrAccessDenied),
		errors.Is(err, workspace.ErrAccessDenied),
		errors.Is(err, milestone.ErrAccessDenied):
		return newAPIError(http.StatusForbidden, "access_denied", err.Error())
	case errors.Is(err, workspace.ErrDependencyFailure):
		return newAPIError(http.StatusServiceUnavailable, "dependency_failure", err.Error())
	case errors.Is(err, contract.ErrInvalidInput),
		errors.Is(err, workspace.ErrInvalidInput),
		errors.Is(err, milestone.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "validation_failed", err.Error())
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "access_denied"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "dependency_failure"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func writeError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}
