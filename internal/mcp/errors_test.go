package mcp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{contract.ErrContractNotFound, "CONTRACT_NOT_FOUND"},
		{fmt.Errorf("loading: %w", workspace.ErrWorkspaceNotFound), "WORKSPACE_NOT_FOUND"},
		{milestone.ErrMilestoneNotFound, "MILESTONE_NOT_FOUND"},
		{contract.ErrAlreadySigned, "ALREADY_SIGNED"},
		{workspace.ErrContractNotActive, "INVALID_TRANSITION"},
		{milestone.ErrInvalidTransition, "INVALID_TRANSITION"},
		{milestone.ErrConflict, "CONFLICT"},
		{workspace.ErrAccessDenied, "ACCESS_DENIED"},
		{workspace.ErrDependencyFailure, "DEPENDENCY_FAILURE"},
		{contract.ErrInvalidInput, "INVALID_INPUT"},
		{errors.New("boom"), "INTERNAL"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, MapError(tc.err).Code, tc.err.Error())
	}
	require.Nil(t, MapError(nil))

	internal := MapError(errors.New("secret detail"))
	require.NotContains(t, internal.Message, "secret")

	passthrough := &APIError{Code: "INVALID_INPUT", Message: "bad timestamp"}
	require.Same(t, passthrough, MapError(fmt.Errorf("wrapped: %w", passthrough)))
}

func TestToolError(t *testing.T) {
	res := toolError(contract.ErrAccessDenied)
	require.True(t, res.IsError)
	require.Len(t, res.Content, 1)
}
