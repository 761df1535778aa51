package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/handshake/internal/domain/activity"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/workspace"
)

// APIError represents an MCP tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps domain errors to MCP error codes. Unrecognized errors become INTERNAL without
// their detail.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, contract.ErrContractNotFound):
		return &APIError{Code: "CONTRACT_NOT_FOUND", Message: "contract not found", RecoveryHint: "List contracts to find the ID"}
	case errors.Is(err, workspace.ErrWorkspaceNotFound), errors.Is(err, milestone.ErrWorkspaceNotFound):
		return &APIError{Code: "WORKSPACE_NOT_FOUND", Message: "workspace not found", RecoveryHint: "Workspaces exist only once a contract is active"}
	case errors.Is(err, milestone.ErrMilestoneNotFound):
		return &APIError{Code: "MILESTONE_NOT_FOUND", Message: "milestone not found", RecoveryHint: "List the workspace's milestones"}
	case errors.Is(err, contract.ErrAlreadySigned):
		return &APIError{Code: "ALREADY_SIGNED", Message: "you have already signed this contract"}
	case errors.Is(err, contract.ErrInvalidTransition), errors.Is(err, milestone.ErrInvalidTransition):
		return &APIError{Code: "INVALID_TRANSITION", Message: err.Error(), RecoveryHint: "Re-read the current status and its allowed actions"}
	case errors.Is(err, contract.ErrConflict), errors.Is(err, workspace.ErrConflict), errors.Is(err, milestone.ErrConflict):
		return &APIError{Code: "CONFLICT", Message: "modified concurrently", RecoveryHint: "Re-read and retry with the new version"}
	case errors.Is(err, contract.ErrAccessDenied), errors.Is(err, workspace.ErrAccessDenied), errors.Is(err, milestone.ErrAccessDenied):
		return &APIError{Code: "ACCESS_DENIED", Message: "not permitted for your role"}
	case errors.Is(err, workspace.ErrDependencyFailure):
		return &APIError{Code: "DEPENDENCY_FAILURE", Message: "storage unavailable", RecoveryHint: "Retry later"}
	case errors.Is(err, contract.ErrInvalidInput), errors.Is(err, workspace.ErrInvalidInput),
		errors.Is(err, milestone.ErrInvalidInput), errors.Is(err, activity.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return &APIError{Code: "INTERNAL", Message: "internal error"}
	}
}

// toolError renders err as an IsError tool result so agents can read the code.
func toolError(err error) *sdkmcp.CallToolResult {
	apiErr := MapError(err)
	data, marshalErr := json.Marshal(apiErr)
	if marshalErr != nil {
		data = []byte(apiErr.Error())
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}
