package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/repositories"
	"go.uber.org/zap"
)

// OrganizationRepository resolves organization attributes needed by routing,
// currently just the subscription tier.
type OrganizationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *DB, logger *zap.Logger) repositories.TierLookup {
	return &OrganizationRepository{
		db:     db,
		logger: logger,
	}
}

// TierForOrg returns the organization's subscription tier
func (r *OrganizationRepository) TierForOrg(ctx context.Context, orgID uuid.UUID) (models.SubscriptionTier, error) {
	var tier models.SubscriptionTier
	err := r.db.QueryRowContext(ctx,
		`SELECT subscription_tier FROM organizations WHERE id = $1`, orgID,
	).Scan(&tier)

	if err != nil {
		if err == sql.ErrNoRows {
			return "", repositories.ErrNotFound
		}
		return "", err
	}

	return tier, nil
}
