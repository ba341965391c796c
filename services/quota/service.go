package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/repositories"
	"go.uber.org/zap"
)

// Service owns per-organization token budgets. It answers admission
// questions, applies usage deltas, and handles billing-cycle resets.
//
// Resets are lazy: every read path first checks whether the current cycle
// has lapsed and resets before evaluating, so a request is never denied
// just because a scheduled reset job has not run yet.
type Service struct {
	repo   repositories.QuotaRepository
	tiers  repositories.TierLookup
	logger *zap.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewService creates a new quota service.
func NewService(repo repositories.QuotaRepository, tiers repositories.TierLookup, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		tiers:  tiers,
		logger: logger,
		now:    time.Now,
	}
}

// GetOrCreate returns the ledger entry for an organization, creating it
// lazily from the organization's subscription tier on first use. A lapsed
// billing cycle is reset before the entry is returned.
func (s *Service) GetOrCreate(ctx context.Context, orgID uuid.UUID) (*models.QuotaLedgerEntry, error) {
	entry, err := s.repo.GetByOrg(ctx, orgID)
	if errors.Is(err, repositories.ErrNotFound) {
		entry, err = s.create(ctx, orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quota entry: %w", err)
	}

	if !s.now().Before(entry.NextResetAt) {
		if err := s.resetEntry(ctx, entry); err != nil {
			return nil, err
		}
	}

	return entry, nil
}

func (s *Service) create(ctx context.Context, orgID uuid.UUID) (*models.QuotaLedgerEntry, error) {
	tier, err := s.tiers.TierForOrg(ctx, orgID)
	if err != nil {
		// Organizations without a known subscription get free-tier budgets.
		s.logger.Warn("tier lookup failed, seeding free tier",
			zap.String("org_id", orgID.String()),
			zap.Error(err))
		tier = models.TierFree
	}

	entry := models.NewQuotaLedgerEntry(orgID, tier, s.now().UTC())
	if err := s.repo.Create(ctx, entry); err != nil {
		// Another request may have created the row concurrently.
		if existing, getErr := s.repo.GetByOrg(ctx, orgID); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	s.logger.Info("quota entry created",
		zap.String("org_id", orgID.String()),
		zap.String("tier", string(entry.Tier)))
	return entry, nil
}

// CheckAdmission decides whether a request needing tokensNeeded tokens from
// the given provider class may proceed. On denial it suggests the other
// class as an alternative when that class still has headroom.
//
// Soft/hard limit flags are informational only; only actual exhaustion
// denies a request.
func (s *Service) CheckAdmission(ctx context.Context, orgID uuid.UUID, class models.ProviderClass, tokensNeeded int64) (*models.QuotaCheckResult, error) {
	entry, err := s.GetOrCreate(ctx, orgID)
	if err != nil {
		return nil, err
	}

	budget := entry.Budget(class)
	remaining := budget.Remaining()

	result := &models.QuotaCheckResult{
		Class:           class,
		RemainingTokens: remaining,
	}
	if budget.Limit > 0 {
		projected := float64(budget.Used+tokensNeeded) / float64(budget.Limit)
		result.WouldTriggerAlert = projected >= models.SoftLimitThreshold
	}

	if remaining >= tokensNeeded {
		result.Allowed = true
		return result, nil
	}

	result.Reason = fmt.Sprintf("insufficient %s quota: %d tokens remaining, %d needed",
		class, remaining, tokensNeeded)

	alt := class.AlternateClass()
	if entry.Budget(alt).Remaining() >= tokensNeeded {
		result.Alternative = alt
	}

	return result, nil
}

// ApplyUsage records tokensUsed against one class budget. The increment is
// atomic at the storage layer; it may race with a concurrent admission
// check, which is an accepted, bounded over-admission (corrected at the
// next cycle reset).
func (s *Service) ApplyUsage(ctx context.Context, orgID uuid.UUID, class models.ProviderClass, tokensUsed int64) error {
	// Ensure the row exists and the cycle is current before incrementing.
	if _, err := s.GetOrCreate(ctx, orgID); err != nil {
		return err
	}

	entry, err := s.repo.IncrementUsage(ctx, orgID, class, tokensUsed)
	if err != nil {
		return fmt.Errorf("failed to apply usage: %w", err)
	}

	s.logger.Debug("quota usage applied",
		zap.String("org_id", orgID.String()),
		zap.String("class", string(class)),
		zap.Int64("tokens", tokensUsed),
		zap.Bool("soft_limit", entry.SoftLimitReached),
		zap.Bool("hard_limit", entry.HardLimitReached))
	return nil
}

// Reset zeroes the usage counters, clears the alert flags, and advances the
// next reset to one period from the reset moment. Calling it twice in
// succession yields the same post-state as calling it once.
func (s *Service) Reset(ctx context.Context, orgID uuid.UUID) error {
	entry, err := s.repo.GetByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to load quota entry: %w", err)
	}
	return s.resetEntry(ctx, entry)
}

func (s *Service) resetEntry(ctx context.Context, entry *models.QuotaLedgerEntry) error {
	now := s.now().UTC()
	entry.Premium.Used = 0
	entry.Premium.RequestCount = 0
	entry.Bulk.Used = 0
	entry.Bulk.RequestCount = 0
	entry.SoftLimitReached = false
	entry.HardLimitReached = false
	entry.LastResetAt = now
	entry.NextResetAt = models.NextMonthlyReset(now)
	entry.UpdatedAt = now

	if err := s.repo.Update(ctx, entry); err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}

	s.logger.Info("quota reset",
		zap.String("org_id", entry.OrgID.String()),
		zap.Time("next_reset_at", entry.NextResetAt))
	return nil
}

// UpgradeLimits replaces the entry's budgets with the given tier's limits.
// Current usage counters are preserved.
func (s *Service) UpgradeLimits(ctx context.Context, orgID uuid.UUID, tier models.SubscriptionTier) (*models.QuotaLedgerEntry, error) {
	entry, err := s.GetOrCreate(ctx, orgID)
	if err != nil {
		return nil, err
	}

	limits := models.LimitsForTier(tier)
	entry.Tier = limits.Tier
	entry.Premium.Limit = limits.PremiumTokens
	entry.Bulk.Limit = limits.BulkTokens
	entry.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to upgrade quota limits: %w", err)
	}

	s.logger.Info("quota limits upgraded",
		zap.String("org_id", orgID.String()),
		zap.String("tier", string(entry.Tier)))
	return entry, nil
}

// GetQuotaStatus returns the caller-facing view of an organization's quota.
func (s *Service) GetQuotaStatus(ctx context.Context, orgID uuid.UUID) (*models.QuotaStatus, error) {
	entry, err := s.GetOrCreate(ctx, orgID)
	if err != nil {
		return nil, err
	}

	until := entry.NextResetAt.Sub(s.now().UTC())
	status := &models.QuotaStatus{
		OrgID:   entry.OrgID,
		Tier:    entry.Tier,
		Premium: classStatus(entry.Premium),
		Bulk:    classStatus(entry.Bulk),
		Reset: models.ResetInfo{
			LastResetAt:     entry.LastResetAt,
			NextResetAt:     entry.NextResetAt,
			DaysUntilReset:  int(until.Hours() / 24),
			HoursUntilReset: int(until.Hours()),
		},
		Alerts: models.QuotaAlerts{
			SoftLimitReached: entry.SoftLimitReached,
			HardLimitReached: entry.HardLimitReached,
		},
	}

	if entry.HardLimitReached {
		status.Alerts.Message = "usage has passed 95% of the monthly budget"
	} else if entry.SoftLimitReached {
		status.Alerts.Message = "usage has passed 80% of the monthly budget"
	}

	return status, nil
}

// Recommendations suggests cost and plan adjustments based on current usage.
func (s *Service) Recommendations(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	entry, err := s.GetOrCreate(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var recs []string
	if entry.Premium.Percentage() > 80 {
		recs = append(recs, fmt.Sprintf(
			"Premium-class quota is %.0f%% used. Consider upgrading your plan or routing standard tasks to bulk-class providers.",
			entry.Premium.Percentage()))
	}
	if entry.Bulk.Percentage() > 80 {
		recs = append(recs, fmt.Sprintf(
			"Bulk-class quota is %.0f%% used. Consider upgrading your plan.",
			entry.Bulk.Percentage()))
	}
	if entry.Premium.Used > entry.Bulk.Used*2 && entry.Bulk.Used > 0 {
		recs = append(recs,
			"Premium-class usage is more than double bulk-class usage. Routing standard quality tasks to bulk-class providers would reduce cost.")
	}

	if next, ok := nextTier(entry.Tier); ok &&
		(entry.Premium.Percentage() > 70 || entry.Bulk.Percentage() > 70) {
		limits := models.LimitsForTier(next)
		recs = append(recs, fmt.Sprintf(
			"Consider upgrading to the %s tier for %d premium-class and %d bulk-class tokens per month.",
			next, limits.PremiumTokens, limits.BulkTokens))
	}

	return recs, nil
}

var tierOrder = []models.SubscriptionTier{
	models.TierFree,
	models.TierStandard,
	models.TierPro,
	models.TierTeam,
	models.TierUltimate,
}

func nextTier(current models.SubscriptionTier) (models.SubscriptionTier, bool) {
	for i, tier := range tierOrder {
		if tier == current && i+1 < len(tierOrder) {
			return tierOrder[i+1], true
		}
	}
	return "", false
}

func classStatus(b models.ClassBudget) models.ClassStatus {
	return models.ClassStatus{
		Limit:        b.Limit,
		Used:         b.Used,
		Remaining:    b.Remaining(),
		Percentage:   b.Percentage(),
		RequestCount: b.RequestCount,
	}
}
