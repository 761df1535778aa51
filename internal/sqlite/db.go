package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// Check verifies the connection is usable.
func (db *DB) Check(ctx context.Context) error {
	return db.PingContext(ctx)
}

// RunMigrations creates the schema. It is safe to run repeatedly.
func (db *DB) RunMigrations() error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

const schema = `
-- Contracts
CREATE TABLE IF NOT EXISTS contracts (
    id TEXT PRIMARY KEY,
    client_id TEXT NOT NULL,
    freelancer_id TEXT NOT NULL,
    proposal_id TEXT NOT NULL,
    job_id TEXT,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    total_amount INTEGER NOT NULL,
    currency TEXT NOT NULL,
    phases TEXT NOT NULL DEFAULT '[]',
    client_signed INTEGER NOT NULL DEFAULT 0,
    client_signature_token TEXT NOT NULL DEFAULT '',
    client_signed_at TIMESTAMP,
    freelancer_signed INTEGER NOT NULL DEFAULT 0,
    freelancer_signature_token TEXT NOT NULL DEFAULT '',
    freelancer_signed_at TIMESTAMP,
    status TEXT NOT NULL CHECK(status IN (
        'draft', 'sent', 'pending', 'pending_freelancer', 'pending_client',
        'active', 'completed', 'cancelled', 'declined'
    )),
    workspace_id TEXT,
    respond_by TIMESTAMP,
    decline_reason TEXT NOT NULL DEFAULT '',
    cancelled_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    version INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contracts_client ON contracts(client_id);
CREATE INDEX IF NOT EXISTS idx_contracts_freelancer ON contracts(freelancer_id);
CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status);

-- Workspaces, at most one per contract
CREATE TABLE IF NOT EXISTS workspaces (
    id TEXT PRIMARY KEY,
    contract_id TEXT NOT NULL UNIQUE,
    client_id TEXT NOT NULL,
    freelancer_id TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('active', 'completed')),
    current_phase INTEGER NOT NULL DEFAULT 1,
    overall_progress INTEGER NOT NULL DEFAULT 0,
    shared TEXT NOT NULL,
    client_private TEXT NOT NULL,
    freelancer_private TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    version INTEGER NOT NULL,
    FOREIGN KEY (contract_id) REFERENCES contracts(id)
);

-- Milestones, one per contract phase
CREATE TABLE IF NOT EXISTS milestones (
    id TEXT PRIMARY KEY,
    workspace_id TEXT NOT NULL,
    contract_id TEXT NOT NULL,
    client_id TEXT NOT NULL,
    freelancer_id TEXT NOT NULL,
    phase_number INTEGER NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    amount INTEGER NOT NULL,
    due_date TIMESTAMP,
    status TEXT NOT NULL CHECK(status IN (
        'pending', 'in_progress', 'awaiting_approval', 'completed', 'revision_requested'
    )),
    progress TEXT NOT NULL DEFAULT '{}',
    payment_eligible INTEGER NOT NULL DEFAULT 0,
    payment_processed INTEGER NOT NULL DEFAULT 0,
    payment_reference TEXT NOT NULL DEFAULT '',
    paid_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    version INTEGER NOT NULL,
    UNIQUE (workspace_id, phase_number),
    FOREIGN KEY (workspace_id) REFERENCES workspaces(id)
);
CREATE INDEX IF NOT EXISTS idx_milestones_contract ON milestones(contract_id);

-- Activity log
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    contract_id TEXT NOT NULL,
    workspace_id TEXT,
    milestone_id TEXT,
    actor_id TEXT NOT NULL DEFAULT '',
    activity_type TEXT NOT NULL,
    summary TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_contract ON activity_log(contract_id);
CREATE INDEX IF NOT EXISTS idx_activity_workspace ON activity_log(workspace_id);
CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity_log(created_at);
`
