package workspace

import (
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/party"
)

var rolePermissions = map[party.Role][]Permission{
	party.RoleClient: {
		PermApproveMilestones,
		PermRequestRevisions,
		PermMakePayments,
		PermUploadFiles,
		PermSendMessages,
	},
	party.RoleFreelancer: {
		PermSubmitWork,
		PermTrackEarnings,
		PermUploadFiles,
		PermSendMessages,
	},
}

// Permissions returns the permission set of role.
func Permissions(role party.Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// Project builds the actor's view of a workspace. The role is derived from identity; an
// asserted role is only checked against it. The other party's private partition is never
// included, and neither the workspace nor the milestones are modified.
func Project(ws *Workspace, milestones []milestone.Milestone, actorID string, asserted party.Role) (*RoleView, error) {
	role, ok := party.Resolve(actorID, ws.ClientID, ws.FreelancerID)
	if !ok {
		return nil, ErrAccessDenied
	}
	if asserted != "" && asserted != role {
		return nil, ErrAccessDenied
	}

	view := &RoleView{
		WorkspaceID: ws.ID,
		ContractID:  ws.ContractID,
		Role:        role,
		Shared:      copyShared(ws.Shared),
		Milestones:  make([]MilestoneView, 0, len(milestones)),
		Private:     copyPrivate(*ws.Private(role)),
		Ledger:      ComputeLedger(ws.Shared.TotalAmount, milestones),
		Permissions: Permissions(role),
		Version:     ws.Version,
	}
	if role == party.RoleClient {
		view.Unread = ws.Shared.Unread.Client
	} else {
		view.Unread = ws.Shared.Unread.Freelancer
	}
	for _, m := range milestones {
		view.Milestones = append(view.Milestones, MilestoneView{
			Milestone: m,
			Actions:   milestone.AllowedActions(m.Status, role),
		})
	}
	return view, nil
}

// ComputeLedger derives released, pending and remaining amounts from milestone payment state.
func ComputeLedger(total int64, milestones []milestone.Milestone) Ledger {
	ledger := Ledger{Total: total}
	for _, m := range milestones {
		switch {
		case m.PaymentProcessed:
			ledger.Released += m.Amount
		case m.Status == milestone.StatusCompleted:
			ledger.Pending += m.Amount
		}
	}
	ledger.Remaining = ledger.Total - ledger.Released
	return ledger
}

func copyShared(s SharedData) SharedData {
	out := s
	out.Phases = append(s.Phases[:0:0], s.Phases...)
	out.Messages = append(s.Messages[:0:0], s.Messages...)
	out.Files = append(s.Files[:0:0], s.Files...)
	out.Calls = append(s.Calls[:0:0], s.Calls...)
	return out
}

func copyPrivate(p PrivateData) PrivateData {
	out := p
	out.Notes = append(p.Notes[:0:0], p.Notes...)
	out.Files = append(p.Files[:0:0], p.Files...)
	return out
}
