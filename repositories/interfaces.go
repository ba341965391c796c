package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// QuotaRepository handles quota ledger persistence. One row per organization.
type QuotaRepository interface {
	// GetByOrg retrieves the ledger entry for an organization.
	// Returns ErrNotFound when no entry exists yet.
	GetByOrg(ctx context.Context, orgID uuid.UUID) (*models.QuotaLedgerEntry, error)

	// Create inserts a freshly seeded ledger entry.
	Create(ctx context.Context, entry *models.QuotaLedgerEntry) error

	// Update overwrites the full ledger entry (used for resets and tier
	// upgrades, which replace the counters wholesale).
	Update(ctx context.Context, entry *models.QuotaLedgerEntry) error

	// IncrementUsage atomically adds tokensUsed to one class budget and bumps
	// its request count, recomputing the soft/hard limit flags in the same
	// statement. Returns the updated entry.
	IncrementUsage(ctx context.Context, orgID uuid.UUID, class models.ProviderClass, tokensUsed int64) (*models.QuotaLedgerEntry, error)
}

// UsageRepository handles the append-only usage record log.
type UsageRepository interface {
	// Insert appends one usage record.
	Insert(ctx context.Context, record *models.UsageRecord) error

	// ListByOrg returns the records for an organization in [start, end),
	// optionally narrowed by filter. A nil filter returns everything.
	ListByOrg(ctx context.Context, orgID uuid.UUID, start, end time.Time, filter *models.UsageFilter) ([]*models.UsageRecord, error)

	// ListByProvider returns all organizations' records for one provider in
	// [start, end). Used by the daily metrics recompute.
	ListByProvider(ctx context.Context, provider models.ProviderID, start, end time.Time) ([]*models.UsageRecord, error)

	// DeleteOlderThan prunes records created before cutoff and reports how
	// many rows were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MetricsRepository handles daily provider metrics snapshots.
type MetricsRepository interface {
	// UpsertDaily inserts or replaces the snapshot for (provider, day).
	UpsertDaily(ctx context.Context, snapshot *models.ProviderMetricsSnapshot) error

	// GetByProvider returns snapshots for a provider across [start, end].
	GetByProvider(ctx context.Context, provider models.ProviderID, start, end time.Time) ([]*models.ProviderMetricsSnapshot, error)
}

// TierLookup resolves an organization's current subscription tier. It is an
// external collaborator backed by the billing system.
type TierLookup interface {
	TierForOrg(ctx context.Context, orgID uuid.UUID) (models.SubscriptionTier, error)
}

// Repositories bundles all repository instances for dependency injection.
type Repositories struct {
	Quotas        QuotaRepository
	Usage         UsageRepository
	Metrics       MetricsRepository
	Organizations TierLookup
}
