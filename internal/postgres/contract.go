package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/repository"
)

// ContractRepository implements contract.Repository on PostgreSQL.
type ContractRepository struct {
	db *pgxpool.Pool
}

func NewContractRepository(db *pgxpool.Pool) *ContractRepository {
	return &ContractRepository{db: db}
}

const contractColumns = `
	id, client_id, freelancer_id, proposal_id, job_id, title, description,
	total_amount, currency, phases,
	client_signed, client_signature_token, client_signed_at,
	freelancer_signed, freelancer_signature_token, freelancer_signed_at,
	status, workspace_id, respond_by, decline_reason, cancelled_by,
	created_at, updated_at, version`

func (r *ContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	phases, err := json.Marshal(c.Phases)
	if err != nil {
		return fmt.Errorf("failed to encode phases: %w", err)
	}

	_, err = r.db.Exec(ctx, `INSERT INTO contracts (`+contractColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		        $17, $18, $19, $20, $21, $22, $23, $24)`,
		c.ID, c.ClientID, c.FreelancerID, c.ProposalID, c.JobID, c.Title, c.Description,
		c.TotalAmount, c.Currency, phases,
		c.ClientSignature.Signed, c.ClientSignature.Token, c.ClientSignature.SignedAt,
		c.FreelancerSignature.Signed, c.FreelancerSignature.Token, c.FreelancerSignature.SignedAt,
		string(c.Status), c.WorkspaceID, c.RespondBy, c.DeclineReason, c.CancelledBy,
		c.CreatedAt, c.UpdatedAt, c.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

func (r *ContractRepository) Get(ctx context.Context, id string) (*contract.Contract, error) {
	c, err := scanContract(r.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return c, nil
}

// Update writes the mutable fields when the stored version matches. The workspace reference is
// only written by SetWorkspace.
func (r *ContractRepository) Update(ctx context.Context, c *contract.Contract, expectedVersion int64) error {
	phases, err := json.Marshal(c.Phases)
	if err != nil {
		return fmt.Errorf("failed to encode phases: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE contracts
		SET title = $1, description = $2, total_amount = $3, currency = $4, phases = $5,
		    client_signed = $6, client_signature_token = $7, client_signed_at = $8,
		    freelancer_signed = $9, freelancer_signature_token = $10, freelancer_signed_at = $11,
		    status = $12, respond_by = $13, decline_reason = $14, cancelled_by = $15,
		    updated_at = $16, version = $17
		WHERE id = $18 AND version = $19`,
		c.Title, c.Description, c.TotalAmount, c.Currency, phases,
		c.ClientSignature.Signed, c.ClientSignature.Token, c.ClientSignature.SignedAt,
		c.FreelancerSignature.Signed, c.FreelancerSignature.Token, c.FreelancerSignature.SignedAt,
		string(c.Status), c.RespondBy, c.DeclineReason, c.CancelledBy,
		c.UpdatedAt, c.Version,
		c.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return missingOrConflict(ctx, r.db, "contracts", c.ID)
	}
	return nil
}

func (r *ContractRepository) SetWorkspace(ctx context.Context, contractID, workspaceID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE contracts SET workspace_id = $1 WHERE id = $2`, workspaceID, contractID)
	if err != nil {
		return fmt.Errorf("failed to set contract workspace: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ContractRepository) List(ctx context.Context, opts contract.ListOptions) ([]contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE 1 = 1`
	args := []any{}

	if opts.PartyID != "" {
		args = append(args, opts.PartyID)
		query += " AND (client_id = $1 OR freelancer_id = $1)"
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, s := range opts.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		query += " AND status = ANY($" + strconv.Itoa(len(args)) + ")"
	}

	query += " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			query += " OFFSET $" + strconv.Itoa(len(args))
		}
	}
	return r.query(ctx, query, args...)
}

// ListActiveWithoutWorkspace returns active contracts whose workspace reference is missing or
// dangling.
func (r *ContractRepository) ListActiveWithoutWorkspace(ctx context.Context, afterID string, limit int) ([]contract.Contract, error) {
	return r.listActivePage(ctx, `(c.workspace_id IS NULL
		       OR NOT EXISTS (SELECT 1 FROM workspaces w WHERE w.id = c.workspace_id))`, afterID, limit)
}

// ListActiveWithCompletedWorkspace returns active contracts whose workspace is completed.
func (r *ContractRepository) ListActiveWithCompletedWorkspace(ctx context.Context, afterID string, limit int) ([]contract.Contract, error) {
	return r.listActivePage(ctx,
		`EXISTS (SELECT 1 FROM workspaces w WHERE w.contract_id = c.id AND w.status = 'completed')`, afterID, limit)
}

func (r *ContractRepository) listActivePage(ctx context.Context, cond, afterID string, limit int) ([]contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts c
		WHERE c.status = 'active' AND c.id > $1 AND ` + cond + `
		ORDER BY c.id`
	args := []any{afterID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

func (r *ContractRepository) query(ctx context.Context, query string, args ...any) ([]contract.Contract, error) {
	rows, err := r.db.Query(ctx, query, args...)
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

func scanContract(row pgx.Row) (*contract.Contract, error) {
	var c contract.Contract
	var status string
	var phases []byte

	err := row.Scan(
		&c.ID, &c.ClientID, &c.FreelancerID, &c.ProposalID, &c.JobID, &c.Title, &c.Description,
		&c.TotalAmount, &c.Currency, &phases,
		&c.ClientSignature.Signed, &c.ClientSignature.Token, &c.ClientSignature.SignedAt,
		&c.FreelancerSignature.Signed, &c.FreelancerSignature.Token, &c.FreelancerSignature.SignedAt,
		&status, &c.WorkspaceID, &c.RespondBy, &c.DeclineReason, &c.CancelledBy,
		&c.CreatedAt, &c.UpdatedAt, &c.Version,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(phases, &c.Phases); err != nil {
		return nil, fmt.Errorf("failed to decode phases: %w", err)
	}
	if c.Phases == nil {
		c.Phases = []contract.Phase{}
	}
	c.Status = contract.Status(status)
	c.ClientSignature.SignedAt = utc(c.ClientSignature.SignedAt)
	c.FreelancerSignature.SignedAt = utc(c.FreelancerSignature.SignedAt)
	c.RespondBy = utc(c.RespondBy)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
