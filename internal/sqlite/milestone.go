package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/repository"
)

// MilestoneRepository implements milestone.Repository for SQLite
type MilestoneRepository struct {
	db *DB
}

// NewMilestoneRepository creates a new MilestoneRepository
func NewMilestoneRepository(db *DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

const milestoneColumns = `
	id, workspace_id, contract_id, client_id, freelancer_id, phase_number, title, description,
	amount, due_date, status, progress, payment_eligible, payment_processed, payment_reference,
	paid_at, created_at, updated_at, version`

func insertMilestone(ctx context.Context, tx *sql.Tx, m *milestone.Milestone) error {
	progress, err := json.Marshal(m.Progress)
	if err != nil {
		return fmt.Errorf("failed to encode milestone progress: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO milestones (`+milestoneColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.WorkspaceID,
		m.ContractID,
		m.ClientID,
		m.FreelancerID,
		m.PhaseNumber,
		m.Title,
		m.Description,
		m.Amount,
		nullTime(m.DueDate),
		m.Status,
		string(progress),
		m.PaymentEligible,
		m.PaymentProcessed,
		m.PaymentReference,
		nullTime(m.PaidAt),
		m.CreatedAt,
		m.UpdatedAt,
		m.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create milestone: %w", err)
	}
	return nil
}

// Get retrieves a milestone by ID
func (r *MilestoneRepository) Get(ctx context.Context, id string) (*milestone.Milestone, error) {
	m, err := scanMilestone(r.db.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	return m, nil
}

// WorkspaceParties returns the client and freelancer of a workspace
func (r *MilestoneRepository) WorkspaceParties(ctx context.Context, workspaceID string) (string, string, error) {
	var clientID, freelancerID string
	err := r.db.QueryRowContext(ctx,
		`SELECT client_id, freelancer_id FROM workspaces WHERE id = ?`, workspaceID).Scan(&clientID, &freelancerID)
	if err == sql.ErrNoRows {
		return "", "", repository.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get workspace parties: %w", err)
	}
	return clientID, freelancerID, nil
}

// ListByWorkspace returns a workspace's milestones ordered by phase
func (r *MilestoneRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]milestone.Milestone, error) {
	return r.list(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE workspace_id = ? ORDER BY phase_number`, workspaceID)
}

// ListByContract returns a contract's milestones ordered by phase
func (r *MilestoneRepository) ListByContract(ctx context.Context, contractID string) ([]milestone.Milestone, error) {
	return r.list(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE contract_id = ? ORDER BY phase_number`, contractID)
}

func (r *MilestoneRepository) list(ctx context.Context, query string, args ...any) ([]milestone.Milestone, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	milestones := []milestone.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating milestone rows: %w", err)
	}
	return milestones, nil
}

// Update writes the milestone if the stored version matches
func (r *MilestoneRepository) Update(ctx context.Context, m *milestone.Milestone, expectedVersion int64) error {
	return updateMilestone(ctx, r.db.DB, m, expectedVersion)
}

// Approve persists the approved milestone and recomputes the workspace's progress, phase and
// status in the same transaction.
func (r *MilestoneRepository) Approve(ctx context.Context, m *milestone.Milestone, expectedVersion int64) (*milestone.WorkspaceProgress, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateMilestone(ctx, tx, m, expectedVersion); err != nil {
		return nil, err
	}

	progress := milestone.WorkspaceProgress{WorkspaceID: m.WorkspaceID}
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0)
		FROM milestones WHERE workspace_id = ?`, m.WorkspaceID).Scan(&progress.Total, &progress.Completed)
	if err != nil {
		return nil, fmt.Errorf("failed to count milestones: %w", err)
	}

	var currentPhase int
	err = tx.QueryRowContext(ctx, `SELECT current_phase FROM workspaces WHERE id = ?`, m.WorkspaceID).Scan(&currentPhase)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace phase: %w", err)
	}

	progress.CurrentPhase = milestone.AdvancePhase(currentPhase, m.PhaseNumber)
	progress.OverallProgress = milestone.OverallProgress(progress.Completed, progress.Total)
	status := workspace.StatusActive
	if progress.Done() {
		status = workspace.StatusCompleted
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE workspaces
		SET current_phase = ?, overall_progress = ?, status = ?, updated_at = ?, version = version + 1
		WHERE id = ?`,
		progress.CurrentPhase,
		progress.OverallProgress,
		status,
		m.UpdatedAt,
		m.WorkspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update workspace progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}
	return &progress, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func updateMilestone(ctx context.Context, db execQuerier, m *milestone.Milestone, expectedVersion int64) error {
	progress, err := json.Marshal(m.Progress)
	if err != nil {
		return fmt.Errorf("failed to encode milestone progress: %w", err)
	}

	result, err := db.ExecContext(ctx, `
		UPDATE milestones
		SET status = ?, progress = ?, payment_eligible = ?, payment_processed = ?,
		    payment_reference = ?, paid_at = ?, updated_at = ?, version = ?
		WHERE id = ? AND version = ?`,
		m.Status,
		string(progress),
		m.PaymentEligible,
		m.PaymentProcessed,
		m.PaymentReference,
		nullTime(m.PaidAt),
		m.UpdatedAt,
		m.Version,
		m.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update milestone: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		err = db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM milestones WHERE id = ?)`, m.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check milestone existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

func scanMilestone(row scanner) (*milestone.Milestone, error) {
	var m milestone.Milestone
	var dueDate, paidAt sql.NullTime
	var progress string

	err := row.Scan(
		&m.ID,
		&m.WorkspaceID,
		&m.ContractID,
		&m.ClientID,
		&m.FreelancerID,
		&m.PhaseNumber,
		&m.Title,
		&m.Description,
		&m.Amount,
		&dueDate,
		&m.Status,
		&progress,
		&m.PaymentEligible,
		&m.PaymentProcessed,
		&m.PaymentReference,
		&paidAt,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.Version,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(progress), &m.Progress); err != nil {
		return nil, fmt.Errorf("failed to decode milestone progress: %w", err)
	}
	m.DueDate = timePtr(dueDate)
	m.PaidAt = timePtr(paidAt)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}
