package milestone

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a milestone
type Status string

const (
	StatusPending           Status = "pending"
	StatusInProgress        Status = "in_progress"
	StatusAwaitingApproval  Status = "awaiting_approval"
	StatusCompleted         Status = "completed"
	StatusRevisionRequested Status = "revision_requested"
)

// Deliverable references submitted work. Storage of the artifact itself is external.
type Deliverable struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Progress tracks submission and approval history of a milestone
type Progress struct {
	StartedAt           *time.Time    `json:"started_at,omitempty"`
	SubmittedAt         *time.Time    `json:"submitted_at,omitempty"`
	ApprovedAt          *time.Time    `json:"approved_at,omitempty"`
	RevisionRequestedAt *time.Time    `json:"revision_requested_at,omitempty"`
	Deliverables        []Deliverable `json:"deliverables,omitempty"`
	SubmissionNote      string        `json:"submission_note,omitempty"`
	Feedback            string        `json:"feedback,omitempty"`
	RevisionNotes       string        `json:"revision_notes,omitempty"`
	RevisionCount       int           `json:"revision_count"`
	Approved            bool          `json:"approved"`
}

// Milestone is the canonical deliverable for one contract phase, owned by a workspace
type Milestone struct {
	ID               string     `json:"id"`
	WorkspaceID      string     `json:"workspace_id"`
	ContractID       string     `json:"contract_id"`
	ClientID         string     `json:"client_id"`
	FreelancerID     string     `json:"freelancer_id"`
	PhaseNumber      int        `json:"phase_number"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Amount           int64      `json:"amount"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Status           Status     `json:"status"`
	Progress         Progress   `json:"progress"`
	PaymentEligible  bool       `json:"payment_eligible"`
	PaymentProcessed bool       `json:"payment_processed"`
	PaymentReference string     `json:"payment_reference,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Version          int64      `json:"version"`
}

// WorkspaceProgress is the workspace-level aggregate recomputed on every approval
type WorkspaceProgress struct {
	WorkspaceID     string `json:"workspace_id"`
	CurrentPhase    int    `json:"current_phase"`
	OverallProgress int    `json:"overall_progress"`
	Completed       int    `json:"completed"`
	Total           int    `json:"total"`
}

// Done reports whether every milestone of the workspace is completed.
func (p WorkspaceProgress) Done() bool {
	return p.Total > 0 && p.Completed == p.Total
}

// Stats is a derived, read-only summary of a workspace's milestones
type Stats struct {
	Total                    int     `json:"total"`
	Pending                  int     `json:"pending"`
	InProgress               int     `json:"in_progress"`
	AwaitingApproval         int     `json:"awaiting_approval"`
	RevisionRequested        int     `json:"revision_requested"`
	Completed                int     `json:"completed"`
	Paid                     int     `json:"paid"`
	CompletionRate           float64 `json:"completion_rate"`
	AverageCompletionSeconds float64 `json:"average_completion_seconds"`
}

var idNamespace = uuid.MustParse("5b0d1f3e-3a9c-4c1e-9a51-6f2d3c7e8b10")

// NewID derives the milestone ID for a workspace phase, so reseeding the same phase is a key collision.
func NewID(workspaceID string, phase int) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%s/phase/%d", workspaceID, phase))).String()
}
