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

// WorkspaceRepository implements workspace.Repository for SQLite
type WorkspaceRepository struct {
	db *DB
}

// NewWorkspaceRepository creates a new WorkspaceRepository
func NewWorkspaceRepository(db *DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

const workspaceColumns = `
	id, contract_id, client_id, freelancer_id, status, current_phase, overall_progress,
	shared, client_private, freelancer_private, created_at, updated_at, version`

// Create inserts the workspace and its seeded milestones in one transaction
func (r *WorkspaceRepository) Create(ctx context.Context, ws *workspace.Workspace, milestones []milestone.Milestone) error {
	shared, clientPrivate, freelancerPrivate, err := encodePartitions(ws)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workspaces (`+workspaceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ID,
		ws.ContractID,
		ws.ClientID,
		ws.FreelancerID,
		ws.Shared.Status,
		ws.Shared.CurrentPhase,
		ws.Shared.OverallProgress,
		shared,
		clientPrivate,
		freelancerPrivate,
		ws.CreatedAt,
		ws.UpdatedAt,
		ws.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	for i := range milestones {
		if err := insertMilestone(ctx, tx, &milestones[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workspace: %w", err)
	}
	return nil
}

// Get retrieves a workspace by ID
func (r *WorkspaceRepository) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	return r.getBy(ctx, "id", id)
}

// GetByContract retrieves the workspace of a contract
func (r *WorkspaceRepository) GetByContract(ctx context.Context, contractID string) (*workspace.Workspace, error) {
	return r.getBy(ctx, "contract_id", contractID)
}

func (r *WorkspaceRepository) getBy(ctx context.Context, column, value string) (*workspace.Workspace, error) {
	query := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE ` + column + ` = ?`
	ws, err := scanWorkspace(r.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// Update writes the shared and private partitions if the stored version matches. Status,
// current phase and progress are owned by milestone approval.
func (r *WorkspaceRepository) Update(ctx context.Context, ws *workspace.Workspace, expectedVersion int64) error {
	shared, clientPrivate, freelancerPrivate, err := encodePartitions(ws)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE workspaces
		SET shared = ?, client_private = ?, freelancer_private = ?, updated_at = ?, version = ?
		WHERE id = ? AND version = ?`,
		shared,
		clientPrivate,
		freelancerPrivate,
		ws.UpdatedAt,
		ws.Version,
		ws.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM workspaces WHERE id = ?)`, ws.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check workspace existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

func encodePartitions(ws *workspace.Workspace) (string, string, string, error) {
	shared, err := json.Marshal(ws.Shared)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode shared data: %w", err)
	}
	clientPrivate, err := json.Marshal(ws.ClientPrivate)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode client data: %w", err)
	}
	freelancerPrivate, err := json.Marshal(ws.FreelancerPrivate)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode freelancer data: %w", err)
	}
	return string(shared), string(clientPrivate), string(freelancerPrivate), nil
}

func scanWorkspace(row scanner) (*workspace.Workspace, error) {
	var ws workspace.Workspace
	var status workspace.Status
	var currentPhase, overallProgress int
	var shared, clientPrivate, freelancerPrivate string

	err := row.Scan(
		&ws.ID,
		&ws.ContractID,
		&ws.ClientID,
		&ws.FreelancerID,
		&status,
		&currentPhase,
		&overallProgress,
		&shared,
		&clientPrivate,
		&freelancerPrivate,
		&ws.CreatedAt,
		&ws.UpdatedAt,
		&ws.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(shared), &ws.Shared); err != nil {
		return nil, fmt.Errorf("failed to decode shared data: %w", err)
	}
	if err := json.Unmarshal([]byte(clientPrivate), &ws.ClientPrivate); err != nil {
		return nil, fmt.Errorf("failed to decode client data: %w", err)
	}
	if err := json.Unmarshal([]byte(freelancerPrivate), &ws.FreelancerPrivate); err != nil {
		return nil, fmt.Errorf("failed to decode freelancer data: %w", err)
	}

	// Columns are authoritative for the fields approval maintains.
	ws.Shared.Status = status
	ws.Shared.CurrentPhase = currentPhase
	ws.Shared.OverallProgress = overallProgress
	ws.CreatedAt = ws.CreatedAt.UTC()
	ws.UpdatedAt = ws.UpdatedAt.UTC()
	return &ws, nil
}
