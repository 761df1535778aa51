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

// WorkspaceRepository implements workspace.Repository on PostgreSQL.
type WorkspaceRepository struct {
	db *pgxpool.Pool
}

func NewWorkspaceRepository(db *pgxpool.Pool) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

const workspaceColumns = `
	id, contract_id, client_id, freelancer_id, status, current_phase, overall_progress,
	shared, client_private, freelancer_private, created_at, updated_at, version`

// Create inserts the workspace together with its seeded milestones.
func (r *WorkspaceRepository) Create(ctx context.Context, ws *workspace.Workspace, milestones []milestone.Milestone) error {
	shared, clientPrivate, freelancerPrivate, err := encodePartitions(ws)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO workspaces (`+workspaceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ws.ID, ws.ContractID, ws.ClientID, ws.FreelancerID,
		string(ws.Shared.Status), ws.Shared.CurrentPhase, ws.Shared.OverallProgress,
		shared, clientPrivate, freelancerPrivate,
		ws.CreatedAt, ws.UpdatedAt, ws.Version,
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

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit workspace: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) Get(ctx context.Context, id string) (*workspace.Workspace, error) {
	return r.getBy(ctx, "id", id)
}

func (r *WorkspaceRepository) GetByContract(ctx context.Context, contractID string) (*workspace.Workspace, error) {
	return r.getBy(ctx, "contract_id", contractID)
}

func (r *WorkspaceRepository) getBy(ctx context.Context, column, value string) (*workspace.Workspace, error) {
	ws, err := scanWorkspace(r.db.QueryRow(ctx,
		`SELECT `+workspaceColumns+` FROM workspaces WHERE `+column+` = $1`, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return ws, nil
}

// Update writes the JSON partitions when the stored version matches.
func (r *WorkspaceRepository) Update(ctx context.Context, ws *workspace.Workspace, expectedVersion int64) error {
	shared, clientPrivate, freelancerPrivate, err := encodePartitions(ws)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE workspaces
		SET shared = $1, client_private = $2, freelancer_private = $3, updated_at = $4, version = $5
		WHERE id = $6 AND version = $7`,
		shared, clientPrivate, freelancerPrivate, ws.UpdatedAt, ws.Version,
		ws.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return missingOrConflict(ctx, r.db, "workspaces", ws.ID)
	}
	return nil
}

func encodePartitions(ws *workspace.Workspace) ([]byte, []byte, []byte, error) {
	shared, err := json.Marshal(ws.Shared)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode shared data: %w", err)
	}
	clientPrivate, err := json.Marshal(ws.ClientPrivate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode client data: %w", err)
	}
	freelancerPrivate, err := json.Marshal(ws.FreelancerPrivate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode freelancer data: %w", err)
	}
	return shared, clientPrivate, freelancerPrivate, nil
}

func scanWorkspace(row pgx.Row) (*workspace.Workspace, error) {
	var ws workspace.Workspace
	var status string
	var currentPhase, overallProgress int
	var shared, clientPrivate, freelancerPrivate []byte

	err := row.Scan(
		&ws.ID, &ws.ContractID, &ws.ClientID, &ws.FreelancerID,
		&status, &currentPhase, &overallProgress,
		&shared, &clientPrivate, &freelancerPrivate,
		&ws.CreatedAt, &ws.UpdatedAt, &ws.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shared, &ws.Shared); err != nil {
		return nil, fmt.Errorf("failed to decode shared data: %w", err)
	}
	if err := json.Unmarshal(clientPrivate, &ws.ClientPrivate); err != nil {
		return nil, fmt.Errorf("failed to decode client data: %w", err)
	}
	if err := json.Unmarshal(freelancerPrivate, &ws.FreelancerPrivate); err != nil {
		return nil, fmt.Errorf("failed to decode freelancer data: %w", err)
	}

	ws.Shared.Status = workspace.Status(status)
	ws.Shared.CurrentPhase = currentPhase
	ws.Shared.OverallProgress = overallProgress
	ws.CreatedAt = ws.CreatedAt.UTC()
	ws.UpdatedAt = ws.UpdatedAt.UTC()
	return &ws, nil
}
