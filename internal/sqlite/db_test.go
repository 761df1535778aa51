package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// seedContract stores an active two-phase contract
func seedContract(t *testing.T, db *DB, id string) *contract.Contract {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	c := &contract.Contract{
		ID:           id,
		ClientID:     "client",
		FreelancerID: "freelancer",
		ProposalID:   "proposal-" + id,
		Title:        "Landing page",
		TotalAmount:  100000,
		Currency:     "USD",
		Phases: []contract.Phase{
			{Number: 1, Title: "Design", Amount: 40000},
			{Number: 2, Title: "Build", Amount: 60000},
		},
		ClientSignature:     contract.Signature{Signed: true, Token: "c-sig", SignedAt: &now},
		FreelancerSignature: contract.Signature{Signed: true, Token: "f-sig", SignedAt: &now},
		Status:              contract.StatusActive,
		CreatedAt:           now,
		UpdatedAt:           now,
		Version:             3,
	}
	require.NoError(t, NewContractRepository(db).Create(context.Background(), c))
	return c
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{
		"contracts",
		"workspaces",
		"milestones",
		"activity_log",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}
}

func TestMigrations_Idempotent(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.RunMigrations())
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")
}

func TestContractStatusConstraint(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO contracts (id, client_id, freelancer_id, proposal_id, title, total_amount, currency, status, created_at, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"c1", "client", "freelancer", "p1", "Title", 100, "USD", "bogus", time.Now(), time.Now(), 1)
	require.Error(t, err, "should fail with invalid status")
}

func TestCheck(t *testing.T) {
	db := NewTestDB(t)
	require.NoError(t, db.Check(context.Background()))
}
