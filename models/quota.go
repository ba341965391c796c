package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionTier mirrors the billing plan an organization subscribes to.
type SubscriptionTier string

const (
	TierFree     SubscriptionTier = "FREE"
	TierStandard SubscriptionTier = "STANDARD"
	TierPro      SubscriptionTier = "PRO"
	TierTeam     SubscriptionTier = "TEAM"
	TierUltimate SubscriptionTier = "ULTIMATE"
)

// Usage alert thresholds. Both are informational: neither blocks a request,
// only actual budget exhaustion does.
const (
	SoftLimitThreshold = 0.80
	HardLimitThreshold = 0.95
)

// TierLimits is the monthly token budget for a subscription tier, split by
// provider class.
type TierLimits struct {
	Tier          SubscriptionTier
	PremiumTokens int64
	BulkTokens    int64
}

var tierLimits = map[SubscriptionTier]TierLimits{
	TierFree:     {Tier: TierFree, PremiumTokens: 50_000, BulkTokens: 100_000},
	TierStandard: {Tier: TierStandard, PremiumTokens: 500_000, BulkTokens: 2_000_000},
	TierPro:      {Tier: TierPro, PremiumTokens: 2_000_000, BulkTokens: 10_000_000},
	TierTeam:     {Tier: TierTeam, PremiumTokens: 5_000_000, BulkTokens: 25_000_000},
	TierUltimate: {Tier: TierUltimate, PremiumTokens: 20_000_000, BulkTokens: 100_000_000},
}

// LimitsForTier returns the budget table row for a tier. Unknown tiers
// resolve to the free tier.
func LimitsForTier(tier SubscriptionTier) TierLimits {
	if l, ok := tierLimits[tier]; ok {
		return l
	}
	return tierLimits[TierFree]
}

// ClassBudget tracks one provider class budget inside a ledger entry.
type ClassBudget struct {
	Limit        int64 `json:"limit" db:"limit"`
	Used         int64 `json:"used" db:"used"`
	RequestCount int64 `json:"request_count" db:"request_count"`
}

// Remaining returns the unused portion of the budget, never negative.
func (b ClassBudget) Remaining() int64 {
	if b.Used >= b.Limit {
		return 0
	}
	return b.Limit - b.Used
}

// Percentage returns used/limit as a percentage in [0, 100+].
func (b ClassBudget) Percentage() float64 {
	if b.Limit == 0 {
		return 0
	}
	return float64(b.Used) / float64(b.Limit) * 100
}

// QuotaLedgerEntry is the per-organization quota row. Created lazily on the
// first request for an organization, seeded from its subscription tier.
type QuotaLedgerEntry struct {
	OrgID            uuid.UUID        `json:"org_id" db:"org_id"`
	Tier             SubscriptionTier `json:"tier" db:"tier"`
	Premium          ClassBudget      `json:"premium"`
	Bulk             ClassBudget      `json:"bulk"`
	LastResetAt      time.Time        `json:"last_reset_at" db:"last_reset_at"`
	NextResetAt      time.Time        `json:"next_reset_at" db:"next_reset_at"`
	SoftLimitReached bool             `json:"soft_limit_reached" db:"soft_limit_reached"`
	HardLimitReached bool             `json:"hard_limit_reached" db:"hard_limit_reached"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the QuotaLedgerEntry model.
func (QuotaLedgerEntry) TableName() string {
	return "ai_quotas"
}

// Budget returns the budget for one provider class.
func (e *QuotaLedgerEntry) Budget(class ProviderClass) *ClassBudget {
	if class == ClassPremium {
		return &e.Premium
	}
	return &e.Bulk
}

// NewQuotaLedgerEntry seeds a ledger entry from the tier limits table and
// schedules the next reset at the first of the following month, UTC midnight.
func NewQuotaLedgerEntry(orgID uuid.UUID, tier SubscriptionTier, now time.Time) *QuotaLedgerEntry {
	limits := LimitsForTier(tier)
	return &QuotaLedgerEntry{
		OrgID:       orgID,
		Tier:        limits.Tier,
		Premium:     ClassBudget{Limit: limits.PremiumTokens},
		Bulk:        ClassBudget{Limit: limits.BulkTokens},
		LastResetAt: now,
		NextResetAt: NextMonthlyReset(now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NextMonthlyReset returns the first day of the month after t, UTC midnight.
func NextMonthlyReset(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// QuotaStatus is the caller-facing view of a ledger entry.
type QuotaStatus struct {
	OrgID   uuid.UUID        `json:"org_id"`
	Tier    SubscriptionTier `json:"tier"`
	Premium ClassStatus      `json:"premium"`
	Bulk    ClassStatus      `json:"bulk"`
	Reset   ResetInfo        `json:"reset"`
	Alerts  QuotaAlerts      `json:"alerts"`
}

// ClassStatus is the formatted view of one class budget.
type ClassStatus struct {
	Limit        int64   `json:"limit"`
	Used         int64   `json:"used"`
	Remaining    int64   `json:"remaining"`
	Percentage   float64 `json:"percentage"`
	RequestCount int64   `json:"request_count"`
}

// ResetInfo describes the current billing cycle boundaries.
type ResetInfo struct {
	LastResetAt     time.Time `json:"last_reset_at"`
	NextResetAt     time.Time `json:"next_reset_at"`
	DaysUntilReset  int       `json:"days_until_reset"`
	HoursUntilReset int       `json:"hours_until_reset"`
}

// QuotaAlerts carries the informational threshold flags.
type QuotaAlerts struct {
	SoftLimitReached bool   `json:"soft_limit_reached"`
	HardLimitReached bool   `json:"hard_limit_reached"`
	Message          string `json:"message,omitempty"`
}

// QuotaCheckResult is the admission-control answer for one request.
type QuotaCheckResult struct {
	Allowed bool `json:"allowed"`

	// Class is the budget bucket that was checked.
	Class ProviderClass `json:"class"`

	// Reason is set when the request is denied.
	Reason string `json:"reason,omitempty"`

	// RemainingTokens in the checked class.
	RemainingTokens int64 `json:"remaining_tokens"`

	// Alternative is the other provider class when it still has headroom for
	// this request; empty otherwise.
	Alternative ProviderClass `json:"alternative,omitempty"`

	// WouldTriggerAlert reports whether admitting the request would push the
	// class past the soft limit threshold.
	WouldTriggerAlert bool `json:"would_trigger_alert"`
}
