package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rpggio/handshake/internal/domain/activity"
)

// ActivityRepository implements activity.Repository on PostgreSQL.
type ActivityRepository struct {
	db *pgxpool.Pool
}

func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO activity_log (
			contract_id, workspace_id, milestone_id, actor_id,
			activity_type, summary, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		entry.ContractID, entry.WorkspaceID, entry.MilestoneID, entry.ActorID,
		string(entry.ActivityType), entry.Summary, entry.Details, createdAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	entry.CreatedAt = createdAt
	return nil
}

func (r *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	query := `
		SELECT id, contract_id, workspace_id, milestone_id, actor_id,
		       activity_type, summary, details, created_at
		FROM activity_log`

	args := []any{}
	conditions := []string{}
	add := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, column+" = $"+strconv.Itoa(len(args)))
	}

	if opts.ContractID != "" {
		add("contract_id", opts.ContractID)
	}
	if opts.WorkspaceID != nil {
		add("workspace_id", *opts.WorkspaceID)
	}
	if opts.MilestoneID != nil {
		add("milestone_id", *opts.MilestoneID)
	}
	if opts.ActivityType != nil {
		add("activity_type", string(*opts.ActivityType))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			query += " OFFSET $" + strconv.Itoa(len(args))
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := []activity.ActivityEntry{}
	for rows.Next() {
		var entry activity.ActivityEntry
		var kind string
		if err := rows.Scan(
			&entry.ID, &entry.ContractID, &entry.WorkspaceID, &entry.MilestoneID, &entry.ActorID,
			&kind, &entry.Summary, &entry.Details, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entry.ActivityType = activity.ActivityType(kind)
		entry.CreatedAt = entry.CreatedAt.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return entries, nil
}
