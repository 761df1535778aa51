// Package notify fans lifecycle events out to best-effort collaborators.
package notify

import "time"

// Kind names a lifecycle event.
type Kind string

const (
	KindContractSent       Kind = "contract.sent"
	KindContractSigned     Kind = "contract.signed"
	KindContractActive     Kind = "contract.active"
	KindContractDeclined   Kind = "contract.declined"
	KindContractCancelled  Kind = "contract.cancelled"
	KindContractCompleted  Kind = "contract.completed"
	KindWorkspaceReady     Kind = "workspace.ready"
	KindMilestoneStarted   Kind = "milestone.started"
	KindMilestoneSubmitted Kind = "milestone.submitted"
	KindMilestoneApproved  Kind = "milestone.approved"
	KindRevisionRequested  Kind = "milestone.revision_requested"
	KindPaymentRecorded    Kind = "milestone.payment_recorded"
	KindMessagePosted      Kind = "workspace.message_posted"
)

// Event is a role-scoped lifecycle event addressed to one party.
type Event struct {
	Kind       Kind           `json:"kind"`
	PartyID    string         `json:"party_id"`
	SubjectID  string         `json:"subject_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(kind Kind, partyID, subjectID string, payload map[string]any) Event {
	return Event{
		Kind:       kind,
		PartyID:    partyID,
		SubjectID:  subjectID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
