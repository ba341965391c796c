package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/repositories"
	"go.uber.org/zap"
)

// QuotaRepository implements the repositories.QuotaRepository interface
type QuotaRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewQuotaRepository creates a new quota repository
func NewQuotaRepository(db *DB, logger *zap.Logger) repositories.QuotaRepository {
	return &QuotaRepository{
		db:     db,
		logger: logger,
	}
}

const quotaColumns = `org_id, tier, premium_limit, premium_used, premium_requests,
		bulk_limit, bulk_used, bulk_requests,
		soft_limit_reached, hard_limit_reached,
		last_reset_at, next_reset_at, created_at, updated_at`

// GetByOrg retrieves the quota ledger entry for an organization
func (r *QuotaRepository) GetByOrg(ctx context.Context, orgID uuid.UUID) (*models.QuotaLedgerEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM ai_quotas WHERE org_id = $1`, quotaColumns)

	entry := &models.QuotaLedgerEntry{}
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(
		&entry.OrgID,
		&entry.Tier,
		&entry.Premium.Limit,
		&entry.Premium.Used,
		&entry.Premium.RequestCount,
		&entry.Bulk.Limit,
		&entry.Bulk.Used,
		&entry.Bulk.RequestCount,
		&entry.SoftLimitReached,
		&entry.HardLimitReached,
		&entry.LastResetAt,
		&entry.NextResetAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quota entry: %w", err)
	}

	return entry, nil
}

// Create inserts a new quota ledger entry
func (r *QuotaRepository) Create(ctx context.Context, entry *models.QuotaLedgerEntry) error {
	query := `
		INSERT INTO ai_quotas (org_id, tier, premium_limit, premium_used, premium_requests,
			bulk_limit, bulk_used, bulk_requests,
			soft_limit_reached, hard_limit_reached,
			last_reset_at, next_reset_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.OrgID,
		entry.Tier,
		entry.Premium.Limit,
		entry.Premium.Used,
		entry.Premium.RequestCount,
		entry.Bulk.Limit,
		entry.Bulk.Used,
		entry.Bulk.RequestCount,
		entry.SoftLimitReached,
		entry.HardLimitReached,
		entry.LastResetAt,
		entry.NextResetAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create quota entry: %w", err)
	}

	r.logger.Debug("quota entry created", zap.String("org_id", entry.OrgID.String()))
	return nil
}

// Update overwrites the mutable fields of a quota ledger entry
func (r *QuotaRepository) Update(ctx context.Context, entry *models.QuotaLedgerEntry) error {
	query := `
		UPDATE ai_quotas
		SET tier = $2,
			premium_limit = $3, premium_used = $4, premium_requests = $5,
			bulk_limit = $6, bulk_used = $7, bulk_requests = $8,
			soft_limit_reached = $9, hard_limit_reached = $10,
			last_reset_at = $11, next_reset_at = $12, updated_at = $13
		WHERE org_id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.OrgID,
		entry.Tier,
		entry.Premium.Limit,
		entry.Premium.Used,
		entry.Premium.RequestCount,
		entry.Bulk.Limit,
		entry.Bulk.Used,
		entry.Bulk.RequestCount,
		entry.SoftLimitReached,
		entry.HardLimitReached,
		entry.LastResetAt,
		entry.NextResetAt,
		entry.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update quota entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	return nil
}

// Per-class increment statements. The flag recompute happens in the same
// statement as the counter bump, so concurrent increments cannot lose an
// alert transition. Flags are sticky until the next cycle reset.
const incrementPremiumQuery = `
	UPDATE ai_quotas
	SET premium_used = premium_used + $2,
		premium_requests = premium_requests + 1,
		soft_limit_reached = soft_limit_reached
			OR COALESCE((premium_used + $2)::float / NULLIF(premium_limit, 0) >= 0.80, false)
			OR COALESCE(bulk_used::float / NULLIF(bulk_limit, 0) >= 0.80, false),
		hard_limit_reached = hard_limit_reached
			OR COALESCE((premium_used + $2)::float / NULLIF(premium_limit, 0) >= 0.95, false)
			OR COALESCE(bulk_used::float / NULLIF(bulk_limit, 0) >= 0.95, false),
		updated_at = CURRENT_TIMESTAMP
	WHERE org_id = $1
	RETURNING ` + quotaColumns

const incrementBulkQuery = `
	UPDATE ai_quotas
	SET bulk_used = bulk_used + $2,
		bulk_requests = bulk_requests + 1,
		soft_limit_reached = soft_limit_reached
			OR COALESCE(premium_used::float / NULLIF(premium_limit, 0) >= 0.80, false)
			OR COALESCE((bulk_used + $2)::float / NULLIF(bulk_limit, 0) >= 0.80, false),
		hard_limit_reached = hard_limit_reached
			OR COALESCE(premium_used::float / NULLIF(premium_limit, 0) >= 0.95, false)
			OR COALESCE((bulk_used + $2)::float / NULLIF(bulk_limit, 0) >= 0.95, false),
		updated_at = CURRENT_TIMESTAMP
	WHERE org_id = $1
	RETURNING ` + quotaColumns

// IncrementUsage atomically adds tokensUsed to one class budget and
// recomputes the alert flags, returning the updated entry
func (r *QuotaRepository) IncrementUsage(ctx context.Context, orgID uuid.UUID, class models.ProviderClass, tokensUsed int64) (*models.QuotaLedgerEntry, error) {
	query := incrementBulkQuery
	if class == models.ClassPremium {
		query = incrementPremiumQuery
	}

	entry := &models.QuotaLedgerEntry{}
	err := r.db.QueryRowContext(ctx, query, orgID, tokensUsed).Scan(
		&entry.OrgID,
		&entry.Tier,
		&entry.Premium.Limit,
		&entry.Premium.Used,
		&entry.Premium.RequestCount,
		&entry.Bulk.Limit,
		&entry.Bulk.Used,
		&entry.Bulk.RequestCount,
		&entry.SoftLimitReached,
		&entry.HardLimitReached,
		&entry.LastResetAt,
		&entry.NextResetAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment quota usage: %w", err)
	}

	return entry, nil
}
