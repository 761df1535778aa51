package contract

import (
	"time"

	"github.com/rpggio/handshake/internal/domain/party"
)

// Status represents the signing lifecycle of a contract
type Status string

const (
	StatusDraft             Status = "draft"
	StatusSent              Status = "sent"
	StatusPending           Status = "pending"
	StatusPendingFreelancer Status = "pending_freelancer"
	StatusPendingClient     Status = "pending_client"
	StatusActive            Status = "active"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
	StatusDeclined          Status = "declined"
)

// Terminal reports whether the contract can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusDeclined
}

// Signature records one party's acceptance. The token is opaque and never verified here.
type Signature struct {
	Signed   bool       `json:"signed"`
	Token    string     `json:"-"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}

// Phase is one slice of the contract's financial terms
type Phase struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Amount      int64      `json:"amount"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// PhaseStatus is the contract-facing status of a phase, projected from its milestone
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in-progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseApproved   PhaseStatus = "approved"
	PhasePaid       PhaseStatus = "paid"
)

// PhaseView is a phase with its projected status
type PhaseView struct {
	Phase
	Status      PhaseStatus `json:"status"`
	MilestoneID string      `json:"milestone_id,omitempty"`
}

// Contract is the signable agreement between a client and a freelancer
type Contract struct {
	ID                  string     `json:"id"`
	ClientID            string     `json:"client_id"`
	FreelancerID        string     `json:"freelancer_id"`
	ProposalID          string     `json:"proposal_id"`
	JobID               *string    `json:"job_id,omitempty"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	TotalAmount         int64      `json:"total_amount"`
	Currency            string     `json:"currency"`
	Phases              []Phase    `json:"phases"`
	ClientSignature     Signature  `json:"client_signature"`
	FreelancerSignature Signature  `json:"freelancer_signature"`
	Status              Status     `json:"status"`
	WorkspaceID         *string    `json:"workspace_id,omitempty"`
	RespondBy           *time.Time `json:"respond_by,omitempty"`
	DeclineReason       string     `json:"decline_reason,omitempty"`
	CancelledBy         string     `json:"cancelled_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Version             int64      `json:"version"`
}

// RoleOf derives the actor's role from the stored party references.
func (c *Contract) RoleOf(actorID string) (party.Role, bool) {
	return party.Resolve(actorID, c.ClientID, c.FreelancerID)
}

// SignatureOf returns the signature record held for role.
func (c *Contract) SignatureOf(role party.Role) Signature {
	if role == party.RoleClient {
		return c.ClientSignature
	}
	return c.FreelancerSignature
}

func (c *Contract) setSignature(role party.Role, sig Signature) {
	if role == party.RoleClient {
		c.ClientSignature = sig
		return
	}
	c.FreelancerSignature = sig
}
