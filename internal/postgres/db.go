// Package postgres stores contracts, workspaces and milestones in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string, cfg PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	logger.Info("postgres connection established",
		"host", poolCfg.ConnConfig.Host, "database", poolCfg.ConnConfig.Database)
	return pool, nil
}

// Migrate creates the schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS contracts (
    id TEXT PRIMARY KEY,
    client_id TEXT NOT NULL,
    freelancer_id TEXT NOT NULL,
    proposal_id TEXT NOT NULL,
    job_id TEXT,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    total_amount BIGINT NOT NULL,
    currency TEXT NOT NULL,
    phases JSONB NOT NULL DEFAULT '[]',
    client_signed BOOLEAN NOT NULL DEFAULT FALSE,
    client_signature_token TEXT NOT NULL DEFAULT '',
    client_signed_at TIMESTAMPTZ,
    freelancer_signed BOOLEAN NOT NULL DEFAULT FALSE,
    freelancer_signature_token TEXT NOT NULL DEFAULT '',
    freelancer_signed_at TIMESTAMPTZ,
    status TEXT NOT NULL,
    workspace_id TEXT,
    respond_by TIMESTAMPTZ,
    decline_reason TEXT NOT NULL DEFAULT '',
    cancelled_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    version BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contracts_client ON contracts(client_id);
CREATE INDEX IF NOT EXISTS idx_contracts_freelancer ON contracts(freelancer_id);
CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status);

CREATE TABLE IF NOT EXISTS workspaces (
    id TEXT PRIMARY KEY,
    contract_id TEXT NOT NULL UNIQUE REFERENCES contracts(id),
    client_id TEXT NOT NULL,
    freelancer_id TEXT NOT NULL,
    status TEXT NOT NULL,
    current_phase INTEGER NOT NULL DEFAULT 1,
    overall_progress INTEGER NOT NULL DEFAULT 0,
    shared JSONB NOT NULL,
    client_private JSONB NOT NULL,
    freelancer_private JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    version BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS milestones (
    id TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL REFERENCES workspaces(id),
    contract_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    freelancer_id TEXT NOT NULL,
    phase_number INTEGER NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    amount BIGINT NOT NULL,
    due_date TIMESTAMPTZ,
    status TEXT NOT NULL,
    progress JSONB NOT NULL DEFAULT '{}',
    payment_eligible BOOLEAN NOT NULL DEFAULT FALSE,
    payment_processed BOOLEAN NOT NULL DEFAULT FALSE,
    payment_reference TEXT NOT NULL DEFAULT '',
    paid_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    version BIGINT NOT NULL,
    UNIQUE (workspace_id, phase_number)
);
CREATE INDEX IF NOT EXISTS idx_milestones_contract ON milestones(contract_id);

CREATE TABLE IF NOT EXISTS activity_log (
    id BIGSERIAL PRIMARY KEY,
    contract_id TEXT NOT NULL,
    workspace_id TEXT,
    milestone_id TEXT,
    actor_id TEXT NOT NULL DEFAULT '',
    activity_type TEXT NOT NULL,
    summary TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_contract ON activity_log(contract_id);
`
