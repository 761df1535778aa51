package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rpggio/handshake/internal/domain/milestone"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/repository"
)

// MilestoneRepository implements milestone.Repository on PostgreSQL.
type MilestoneRepository struct {
	db *pgxpool.Pool
}

func NewMilestoneRepository(db *pgxpool.Pool) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

const milestoneColumns = `
	id, workspace_id, contract_id, client_id, freelancer_id, phase_number, title, description,
	amount, due_date, status, progress, payment_eligible, payment_processed, payment_reference,
	paid_at, created_at, updated_at, version`

func insertMilestone(ctx context.Context, q querier, m *milestone.Milestone) error {
	progress, err := json.Marshal(m.Progress)
	if err != nil {
		return fmt.Errorf("failed to encode milestone progress: %w", err)
	}
	_, err = q.Exec(ctx,
		`INSERT INTO milestones (`+milestoneColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		m.ID, m.WorkspaceID, m.ContractID, m.ClientID, m.FreelancerID, m.PhaseNumber, m.Title, m.Description,
		m.Amount, m.DueDate, string(m.Status), progress, m.PaymentEligible, m.PaymentProcessed, m.PaymentReference,
		m.PaidAt, m.CreatedAt, m.UpdatedAt, m.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create milestone: %w", err)
	}
	return nil
}

func (r *MilestoneRepository) Get(ctx context.Context, id string) (*milestone.Milestone, error) {
	m, err := scanMilestone(r.db.QueryRow(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	return m, nil
}

func (r *MilestoneRepository) WorkspaceParties(ctx context.Context, workspaceID string) (string, string, error) {
	var clientID, freelancerID string
	err := r.db.QueryRow(ctx,
		`SELECT client_id, freelancer_id FROM workspaces WHERE id = $1`, workspaceID).Scan(&clientID, &freelancerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", repository.ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get workspace parties: %w", err)
	}
	return clientID, freelancerID, nil
}

func (r *MilestoneRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]milestone.Milestone, error) {
	return r.list(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE workspace_id = $1 ORDER BY phase_number`, workspaceID)
}

func (r *MilestoneRepository) ListByContract(ctx context.Context, contractID string) ([]milestone.Milestone, error) {
	return r.list(ctx, `SELECT `+milestoneColumns+` FROM milestones WHERE contract_id = $1 ORDER BY phase_number`, contractID)
}

func (r *MilestoneRepository) list(ctx context.Context, query string, args ...any) ([]milestone.Milestone, error) {
	rows, err := r.db.Query(ctx, query, args...)
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

func (r *MilestoneRepository) Update(ctx context.Context, m *milestone.Milestone, expectedVersion int64) error {
	return updateMilestone(ctx, r.db, m, expectedVersion)
}

// Approve persists the approved milestone and recomputes the workspace's progress, phase and
// status in one transaction. The workspace row is locked so concurrent approvals in the same
// workspace serialize on it.
func (r *MilestoneRepository) Approve(ctx context.Context, m *milestone.Milestone, expectedVersion int64) (*milestone.WorkspaceProgress, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentPhase int
	err = tx.QueryRow(ctx, `SELECT current_phase FROM workspaces WHERE id = $1 FOR UPDATE`, m.WorkspaceID).Scan(&currentPhase)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock workspace: %w", err)
	}

	if err := updateMilestone(ctx, tx, m, expectedVersion); err != nil {
		return nil, err
	}

	progress := milestone.WorkspaceProgress{WorkspaceID: m.WorkspaceID}
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'completed')
		FROM milestones WHERE workspace_id = $1`, m.WorkspaceID).Scan(&progress.Total, &progress.Completed)
	if err != nil {
		return nil, fmt.Errorf("failed to count milestones: %w", err)
	}

	progress.CurrentPhase = milestone.AdvancePhase(currentPhase, m.PhaseNumber)
	progress.OverallProgress = milestone.OverallProgress(progress.Completed, progress.Total)
	status := workspace.StatusActive
	if progress.Done() {
		status = workspace.StatusCompleted
	}

	_, err = tx.Exec(ctx, `
		UPDATE workspaces
		SET current_phase = $1, overall_progress = $2, status = $3, updated_at = $4, version = version + 1
		WHERE id = $5`,
		progress.CurrentPhase, progress.OverallProgress, string(status), m.UpdatedAt, m.WorkspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update workspace progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}
	return &progress, nil
}

func updateMilestone(ctx context.Context, q querier, m *milestone.Milestone, expectedVersion int64) error {
	progress, err := json.Marshal(m.Progress)
	if err != nil {
		return fmt.Errorf("failed to encode milestone progress: %w", err)
	}

	tag, err := q.Exec(ctx, `
		UPDATE milestones
		SET status = $1, progress = $2, payment_eligible = $3, payment_processed = $4,
		    payment_reference = $5, paid_at = $6, updated_at = $7, version = $8
		WHERE id = $9 AND version = $10`,
		string(m.Status), progress, m.PaymentEligible, m.PaymentProcessed,
		m.PaymentReference, m.PaidAt, m.UpdatedAt, m.Version,
		m.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update milestone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return missingOrConflict(ctx, q, "milestones", m.ID)
	}
	return nil
}

func scanMilestone(row pgx.Row) (*milestone.Milestone, error) {
	var m milestone.Milestone
	var status string
	var progress []byte

	err := row.Scan(
		&m.ID, &m.WorkspaceID, &m.ContractID, &m.ClientID, &m.FreelancerID, &m.PhaseNumber, &m.Title, &m.Description,
		&m.Amount, &m.DueDate, &status, &progress, &m.PaymentEligible, &m.PaymentProcessed, &m.PaymentReference,
		&m.PaidAt, &m.CreatedAt, &m.UpdatedAt, &m.Version,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(progress, &m.Progress); err != nil {
		return nil, fmt.Errorf("failed to decode milestone progress: %w", err)
	}
	m.Status = milestone.Status(status)
	m.DueDate = utc(m.DueDate)
	m.PaidAt = utc(m.PaidAt)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}
