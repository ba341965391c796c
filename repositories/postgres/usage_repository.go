package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/repositories"
	"go.uber.org/zap"
)

// UsageRepository implements the repositories.UsageRepository interface
type UsageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB, logger *zap.Logger) repositories.UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

const usageColumns = `id, org_id, user_id, provider, task_type, quality,
		input_tokens, output_tokens, total_tokens, estimated_cost,
		latency_ms, success, error_message, created_at`

// Insert appends one usage record
func (r *UsageRepository) Insert(ctx context.Context, record *models.UsageRecord) error {
	query := `
		INSERT INTO ai_usage_records (id, org_id, user_id, provider, task_type, quality,
			input_tokens, output_tokens, total_tokens, estimated_cost,
			latency_ms, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.OrgID,
		record.UserID,
		record.Provider,
		record.TaskType,
		record.Quality,
		record.InputTokens,
		record.OutputTokens,
		record.TotalTokens,
		record.EstimatedCost,
		record.LatencyMs,
		record.Success,
		nullableString(record.ErrorMessage),
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// ListByOrg retrieves an organization's records in [start, end), optionally
// narrowed by a filter
func (r *UsageRepository) ListByOrg(ctx context.Context, orgID uuid.UUID, start, end time.Time, filter *models.UsageFilter) ([]*models.UsageRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM ai_usage_records
		WHERE org_id = $1 AND created_at >= $2 AND created_at < $3`, usageColumns)
	args := []interface{}{orgID, start, end}

	if filter != nil {
		if filter.Provider != nil {
			args = append(args, *filter.Provider)
			query += fmt.Sprintf(" AND provider = $%d", len(args))
		}
		if filter.TaskType != nil {
			args = append(args, *filter.TaskType)
			query += fmt.Sprintf(" AND task_type = $%d", len(args))
		}
		if filter.UserID != nil {
			args = append(args, *filter.UserID)
			query += fmt.Sprintf(" AND user_id = $%d", len(args))
		}
	}
	query += " ORDER BY created_at DESC"

	return r.queryRecords(ctx, query, args...)
}

// ListByProvider retrieves one provider's records in [start, end) across
// all organizations
func (r *UsageRepository) ListByProvider(ctx context.Context, provider models.ProviderID, start, end time.Time) ([]*models.UsageRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM ai_usage_records
		WHERE provider = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC`, usageColumns)

	return r.queryRecords(ctx, query, provider, start, end)
}

// DeleteOlderThan removes records created before the cutoff and reports
// how many were deleted
func (r *UsageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM ai_usage_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete usage records: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Debug("usage records deleted",
		zap.Int64("count", deleted),
		zap.Time("cutoff", cutoff))
	return deleted, nil
}

func (r *UsageRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*models.UsageRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*models.UsageRecord
	for rows.Next() {
		record := &models.UsageRecord{}
		var errorMessage sql.NullString

		if err := rows.Scan(
			&record.ID,
			&record.OrgID,
			&record.UserID,
			&record.Provider,
			&record.TaskType,
			&record.Quality,
			&record.InputTokens,
			&record.OutputTokens,
			&record.TotalTokens,
			&record.EstimatedCost,
			&record.LatencyMs,
			&record.Success,
			&errorMessage,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}

		record.ErrorMessage = errorMessage.String
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}

	return records, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
