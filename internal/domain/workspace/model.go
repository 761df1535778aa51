package workspace

import (
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/party"
)

// Status represents the workspace state
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// File references an uploaded artifact; the bytes live in external storage.
type File struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Message is an entry in the shared thread.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	Body        string    `json:"body"`
	Attachments []File    `json:"attachments,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// Call is a scheduled video call; room provisioning is external.
type Call struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	ScheduledBy     string    `json:"scheduled_by"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Note is a private note.
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Unread holds per-party unread message counters.
type Unread struct {
	Client     int `json:"client"`
	Freelancer int `json:"freelancer"`
}

// SharedData is visible to both parties.
type SharedData struct {
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	Status          Status           `json:"status"`
	CurrentPhase    int              `json:"current_phase"`
	OverallProgress int              `json:"overall_progress"`
	TotalAmount     int64            `json:"total_amount"`
	Currency        string           `json:"currency"`
	Phases          []contract.Phase `json:"phases"`
	Messages        []Message        `json:"messages"`
	Files           []File           `json:"files"`
	Calls           []Call           `json:"calls"`
	Unread          Unread           `json:"unread"`
}

// PrivateData is visible only to the owning party.
type PrivateData struct {
	Notes       []Note `json:"notes"`
	Files       []File `json:"files"`
	BudgetTotal int64  `json:"budget_total"`
}

// Workspace is the collaboration space of one active contract
type Workspace struct {
	ID                string      `json:"id"`
	ContractID        string      `json:"contract_id"`
	ClientID          string      `json:"client_id"`
	FreelancerID      string      `json:"freelancer_id"`
	Shared            SharedData  `json:"shared"`
	ClientPrivate     PrivateData `json:"-"`
	FreelancerPrivate PrivateData `json:"-"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
	Version           int64       `json:"version"`
}

// Private returns the private partition owned by role.
func (w *Workspace) Private(role party.Role) *PrivateData {
	if role == party.RoleClient {
		return &w.ClientPrivate
	}
	return &w.FreelancerPrivate
}

// Permission names an action a role may take in a workspace
type Permission string

const (
	PermApproveMilestones Permission = "approve-milestones"
	PermRequestRevisions  Permission = "request-revisions"
	PermMakePayments      Permission = "make-payments"
	PermSubmitWork        Permission = "submit-work"
	PermTrackEarnings     Permission = "track-earnings"
	PermUploadFiles       Permission = "upload-files"
	PermSendMessages      Permission = "send-messages"
)

// Ledger is derived from milestone payment state. For the client it is a budget, for the
// freelancer it is earnings.
type Ledger struct {
	Total     int64 `json:"total"`
	Released  int64 `json:"released"`
	Pending   int64 `json:"pending"`
	Remaining int64 `json:"remaining"`
}

// MilestoneView is a milestone with the actions the viewer may take on it.
type MilestoneView struct {
	milestone.Milestone
	Actions []milestone.Action `json:"actions"`
}

// RoleView is what one party sees of a workspace.
type RoleView struct {
	WorkspaceID string          `json:"workspace_id"`
	ContractID  string          `json:"contract_id"`
	Role        party.Role      `json:"role"`
	Shared      SharedData      `json:"shared"`
	Milestones  []MilestoneView `json:"milestones"`
	Private     PrivateData     `json:"private"`
	Ledger      Ledger          `json:"ledger"`
	Unread      int             `json:"unread"`
	Permissions []Permission    `json:"permissions"`
	Version     int64           `json:"version"`
}

var idNamespace = uuid.MustParse("8f4c2b6a-1d7e-4f0a-b3c9-2e5d8a7f6c41")

// NewID derives the workspace ID from its contract so concurrent provisioners collide on the key.
func NewID(contractID string) string {
	return uuid.NewSHA1(idNamespace, []byte(contractID)).String()
}
