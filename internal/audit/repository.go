package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/constants"
)

type Repository interface {
	Record(ctx context.Context, entry LogEntry) error
	Query(ctx context.Context, filter QueryFilter) ([]LogEntry, error)
	CountByActionType(ctx context.Context, clientID string, since time.Time) (map[string]int64, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Record(ctx context.Context, entry LogEntry) error {
	query := `
		INSERT INTO audit_logs (log_id, client_id, comment_id, action_type, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	logID := entry.LogID
	if logID == "" {
		logID = uuid.NewString()
	}

	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	var commentID *string
	if entry.CommentID != "" {
		commentID = &entry.CommentID
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, query,
		logID, entry.ClientID, commentID, entry.ActionType, detailsJSON, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Query(ctx context.Context, filter QueryFilter) ([]LogEntry, error) {
	var conditions []string
	var args []interface{}

	addCondition := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.ClientID != "" {
		addCondition("client_id = $%d", filter.ClientID)
	}
	if filter.CommentID != "" {
		addCondition("comment_id = $%d", filter.CommentID)
	}
	if filter.ActionType != "" {
		addCondition("action_type = $%d", filter.ActionType)
	}
	if !filter.Since.IsZero() {
		addCondition("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		addCondition("created_at < $%d", filter.Until)
	}

	query := "SELECT log_id, client_id, comment_id, action_type, details, created_at FROM audit_logs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var entry LogEntry
		var commentID sql.NullString
		var detailsJSON []byte

		if err := rows.Scan(&entry.LogID, &entry.ClientID, &commentID, &entry.ActionType, &detailsJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if commentID.Valid {
			entry.CommentID = commentID.String
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return entries, nil
}

func (r *PostgresRepository) CountByActionType(ctx context.Context, clientID string, since time.Time) (map[string]int64, error) {
	var conditions []string
	var args []interface{}

	if clientID != "" {
		args = append(args, clientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if !since.IsZero() {
		args = append(args, since)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}

	query := "SELECT action_type, COUNT(*) FROM audit_logs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " GROUP BY action_type"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var actionType string
		var count int64
		if err := rows.Scan(&actionType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan audit counts: %w", err)
		}
		counts[actionType] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit counts: %w", err)
	}

	return counts, nil
}
