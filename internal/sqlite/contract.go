package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/repository"
)

// ContractRepository implements contract.Repository for SQLite
type ContractRepository struct {
	db *DB
}

// NewContractRepository creates a new ContractRepository
func NewContractRepository(db *DB) *ContractRepository {
	return &ContractRepository{db: db}
}

const contractColumns = `
	id, client_id, freelancer_id, proposal_id, job_id, title, description,
	total_amount, currency, phases,
	client_signed, client_signature_token, client_signed_at,
	freelancer_signed, freelancer_signature_token, freelancer_signed_at,
	status, workspace_id, respond_by, decline_reason, cancelled_by,
	created_at, updated_at, version`

// Create inserts a new contract
func (r *ContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	phases, err := json.Marshal(c.Phases)
	if err != nil {
		return fmt.Errorf("failed to encode phases: %w", err)
	}

	query := `INSERT INTO contracts (` + contractColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.ClientID,
		c.FreelancerID,
		c.ProposalID,
		nullString(c.JobID),
		c.Title,
		c.Description,
		c.TotalAmount,
		c.Currency,
		string(phases),
		c.ClientSignature.Signed,
		c.ClientSignature.Token,
		nullTime(c.ClientSignature.SignedAt),
		c.FreelancerSignature.Signed,
		c.FreelancerSignature.Token,
		nullTime(c.FreelancerSignature.SignedAt),
		c.Status,
		nullString(c.WorkspaceID),
		nullTime(c.RespondBy),
		c.DeclineReason,
		c.CancelledBy,
		c.CreatedAt,
		c.UpdatedAt,
		c.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

// Get retrieves a contract by ID
func (r *ContractRepository) Get(ctx context.Context, id string) (*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = ?`

	c, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return c, nil
}

// Update writes the contract's mutable fields if the stored version matches. The workspace
// reference is left untouched.
func (r *ContractRepository) Update(ctx context.Context, c *contract.Contract, expectedVersion int64) error {
	phases, err := json.Marshal(c.Phases)
	if err != nil {
		return fmt.Errorf("failed to encode phases: %w", err)
	}

	query := `
		UPDATE contracts
		SET title = ?, description = ?, total_amount = ?, currency = ?, phases = ?,
		    client_signed = ?, client_signature_token = ?, client_signed_at = ?,
		    freelancer_signed = ?, freelancer_signature_token = ?, freelancer_signed_at = ?,
		    status = ?, respond_by = ?, decline_reason = ?, cancelled_by = ?,
		    updated_at = ?, version = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		c.Title,
		c.Description,
		c.TotalAmount,
		c.Currency,
		string(phases),
		c.ClientSignature.Signed,
		c.ClientSignature.Token,
		nullTime(c.ClientSignature.SignedAt),
		c.FreelancerSignature.Signed,
		c.FreelancerSignature.Token,
		nullTime(c.FreelancerSignature.SignedAt),
		c.Status,
		nullTime(c.RespondBy),
		c.DeclineReason,
		c.CancelledBy,
		c.UpdatedAt,
		c.Version,
		c.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM contracts WHERE id = ?)`, c.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check contract existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

// SetWorkspace records the contract's workspace reference
func (r *ContractRepository) SetWorkspace(ctx context.Context, contractID, workspaceID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE contracts SET workspace_id = ? WHERE id = ?`, workspaceID, contractID)
	if err != nil {
		return fmt.Errorf("failed to set contract workspace: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns contracts matching the given filters, newest first
func (r *ContractRepository) List(ctx context.Context, opts contract.ListOptions) ([]contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE 1 = 1`
	args := []any{}

	if opts.PartyID != "" {
		query += " AND (client_id = ? OR freelancer_id = ?)"
		args = append(args, opts.PartyID, opts.PartyID)
	}
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, status := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query += " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	return r.query(ctx, query, args...)
}

// ListActiveWithoutWorkspace returns active contracts with no workspace reference, or a
// reference to a workspace that does not exist.
func (r *ContractRepository) ListActiveWithoutWorkspace(ctx context.Context, afterID string, limit int) ([]contract.Contract, error) {
	return r.listActivePage(ctx, `(c.workspace_id IS NULL
		       OR NOT EXISTS (SELECT 1 FROM workspaces w WHERE w.id = c.workspace_id))`, afterID, limit)
}

// ListActiveWithCompletedWorkspace returns active contracts whose workspace has finished
// every milestone.
func (r *ContractRepository) ListActiveWithCompletedWorkspace(ctx context.Context, afterID string, limit int) ([]contract.Contract, error) {
	return r.listActivePage(ctx,
		`EXISTS (SELECT 1 FROM workspaces w WHERE w.contract_id = c.id AND w.status = 'completed')`, afterID, limit)
}

func (r *ContractRepository) listActivePage(ctx context.Context, cond, afterID string, limit int) ([]contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts c
		WHERE c.status = 'active' AND c.id > ? AND ` + cond + `
		ORDER BY c.id`
	args := []any{afterID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

func (r *ContractRepository) query(ctx context.Context, query string, args ...any) ([]contract.Contract, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	contracts := []contract.Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contract rows: %w", err)
	}
	return contracts, nil
}

func scanContract(row scanner) (*contract.Contract, error) {
	var c contract.Contract
	var jobID, workspaceID sql.NullString
	var clientSignedAt, freelancerSignedAt, respondBy sql.NullTime
	var phases string

	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.FreelancerID,
		&c.ProposalID,
		&jobID,
		&c.Title,
		&c.Description,
		&c.TotalAmount,
		&c.Currency,
		&phases,
		&c.ClientSignature.Signed,
		&c.ClientSignature.Token,
		&clientSignedAt,
		&c.FreelancerSignature.Signed,
		&c.FreelancerSignature.Token,
		&freelancerSignedAt,
		&c.Status,
		&workspaceID,
		&respondBy,
		&c.DeclineReason,
		&c.CancelledBy,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(phases), &c.Phases); err != nil {
		return nil, fmt.Errorf("failed to decode phases: %w", err)
	}
	if c.Phases == nil {
		c.Phases = []contract.Phase{}
	}
	c.JobID = stringPtr(jobID)
	c.WorkspaceID = stringPtr(workspaceID)
	c.ClientSignature.SignedAt = timePtr(clientSignedAt)
	c.FreelancerSignature.SignedAt = timePtr(freelancerSignedAt)
	c.RespondBy = timePtr(respondBy)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
