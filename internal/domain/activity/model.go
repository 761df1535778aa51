package activity

import "time"

// ActivityType represents the type of deal event
type ActivityType string

const (
	TypeContractCreated    ActivityType = "contract_created"
	TypeContractSent       ActivityType = "contract_sent"
	TypeContractSigned     ActivityType = "contract_signed"
	TypeContractActivated  ActivityType = "contract_activated"
	TypeContractDeclined   ActivityType = "contract_declined"
	TypeContractCancelled  ActivityType = "contract_cancelled"
	TypeContractCompleted  ActivityType = "contract_completed"
	TypeWorkspaceCreated   ActivityType = "workspace_created"
	TypeWorkspaceRepaired  ActivityType = "workspace_repaired"
	TypeMilestoneStarted   ActivityType = "milestone_started"
	TypeMilestoneSubmitted ActivityType = "milestone_submitted"
	TypeMilestoneApproved  ActivityType = "milestone_approved"
	TypeRevisionRequested  ActivityType = "revision_requested"
	TypePaymentRecorded    ActivityType = "payment_recorded"
)

// ActivityEntry represents an event in the deal's audit trail
type ActivityEntry struct {
	ID           int64        `json:"id"`
	ContractID   string       `json:"contract_id"`
	WorkspaceID  *string      `json:"workspace_id,omitempty"`
	MilestoneID  *string      `json:"milestone_id,omitempty"`
	ActorID      string       `json:"actor_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
}
