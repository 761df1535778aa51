package workspace

import (
	"errors"
	"fmt"

	"github.com/rpggio/handshake/internal/domain/contract"
)

var (
	// ErrWorkspaceNotFound indicates the workspace doesn't exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrAccessDenied indicates the actor is not a party to the workspace.
	ErrAccessDenied = errors.New("workspace access denied")
	// ErrContractNotActive indicates provisioning was requested for a contract that is not fully signed.
	ErrContractNotActive = fmt.Errorf("%w: contract is not active", contract.ErrInvalidTransition)
	// ErrDependencyFailure indicates storage kept failing; provisioning can be re-run from the contract ID.
	ErrDependencyFailure = errors.New("workspace provisioning dependency failure")
	// ErrConflict indicates repeated concurrent modification.
	ErrConflict = errors.New("workspace modified concurrently")
	// ErrInvalidInput indicates a malformed workspace request.
	ErrInvalidInput = errors.New("invalid workspace input")
)
