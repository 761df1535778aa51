package milestone

import (
	"math"

	"github.com/rpggio/handshake/internal/domain/party"
)

// Action is a lifecycle operation on a milestone.
type Action string

const (
	ActionStart           Action = "start"
	ActionSubmit          Action = "submit"
	ActionApprove         Action = "approve"
	ActionRequestRevision Action = "request_revision"
)

var actionRoles = map[Action]party.Role{
	ActionStart:           party.RoleFreelancer,
	ActionSubmit:          party.RoleFreelancer,
	ActionApprove:         party.RoleClient,
	ActionRequestRevision: party.RoleClient,
}

var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionStart: StatusInProgress,
	},
	StatusInProgress: {
		ActionSubmit: StatusAwaitingApproval,
	},
	StatusRevisionRequested: {
		ActionStart:  StatusInProgress,
		ActionSubmit: StatusAwaitingApproval,
	},
	StatusAwaitingApproval: {
		ActionApprove:         StatusCompleted,
		ActionRequestRevision: StatusRevisionRequested,
	},
}

// Transition returns the status reached by applying action as role.
func Transition(from Status, action Action, role party.Role) (Status, error) {
	required, ok := actionRoles[action]
	if !ok {
		return from, ErrInvalidTransition
	}
	if role != required {
		return from, ErrAccessDenied
	}
	next, ok := transitions[from][action]
	if !ok {
		return from, ErrInvalidTransition
	}
	return next, nil
}

// AllowedActions lists the actions role may take from status.
func AllowedActions(status Status, role party.Role) []Action {
	var actions []Action
	for _, action := range []Action{ActionStart, ActionSubmit, ActionApprove, ActionRequestRevision} {
		if _, err := Transition(status, action, role); err == nil {
			actions = append(actions, action)
		}
	}
	return actions
}

// OverallProgress is round(100*completed/total).
func OverallProgress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// AdvancePhase moves the current phase past an approved one. Approving an earlier
// phase out of order never moves the counter backwards.
func AdvancePhase(current, approvedPhase int) int {
	return max(current, approvedPhase+1)
}
