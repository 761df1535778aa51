package milestone

import "errors"

var (
	// ErrMilestoneNotFound indicates the milestone doesn't exist.
	ErrMilestoneNotFound = errors.New("milestone not found")
	// ErrWorkspaceNotFound indicates the owning workspace doesn't exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrInvalidTransition indicates the action is not legal from the current status.
	ErrInvalidTransition = errors.New("invalid milestone transition")
	// ErrAccessDenied indicates the actor is not the party allowed to act.
	ErrAccessDenied = errors.New("milestone access denied")
	// ErrConflict indicates the milestone changed since it was read.
	ErrConflict = errors.New("milestone modified concurrently")
	// ErrInvalidInput indicates a malformed milestone request.
	ErrInvalidInput = errors.New("invalid milestone input")
)
