package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is an immutable, append-only fact about one routing attempt.
// Records are never mutated or deleted except by bulk retention pruning.
type UsageRecord struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	OrgID         uuid.UUID    `json:"org_id" db:"org_id"`
	UserID        *uuid.UUID   `json:"user_id,omitempty" db:"user_id"`
	Provider      ProviderID   `json:"provider" db:"provider"`
	TaskType      TaskType     `json:"task_type" db:"task_type"`
	Quality       QualityLevel `json:"quality" db:"quality"`
	InputTokens   int64        `json:"input_tokens" db:"input_tokens"`
	OutputTokens  int64        `json:"output_tokens" db:"output_tokens"`
	TotalTokens   int64        `json:"total_tokens" db:"total_tokens"`
	EstimatedCost float64      `json:"estimated_cost" db:"estimated_cost"`
	LatencyMs     int64        `json:"latency_ms" db:"latency_ms"`
	Success       bool         `json:"success" db:"success"`
	ErrorMessage  string       `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the UsageRecord model.
func (UsageRecord) TableName() string {
	return "ai_usage_records"
}

// UsageFilter narrows a usage record query.
type UsageFilter struct {
	Provider *ProviderID
	TaskType *TaskType
	UserID   *uuid.UUID
}

// ProviderUsage is the per-provider slice of a statistics breakdown.
type ProviderUsage struct {
	Requests     int64   `json:"requests"`
	Tokens       int64   `json:"tokens"`
	Cost         float64 `json:"cost"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	ErrorRate    float64 `json:"error_rate"`
}

// DimensionUsage is a per-task-type or per-quality slice.
type DimensionUsage struct {
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// UserUsage is one row of the top-users breakdown.
type UserUsage struct {
	UserID   uuid.UUID `json:"user_id"`
	Requests int64     `json:"requests"`
	Tokens   int64     `json:"tokens"`
	Cost     float64   `json:"cost"`
}

// UsageStatistics is the aggregate breakdown for one organization and window.
type UsageStatistics struct {
	OrgID              uuid.UUID                        `json:"org_id"`
	PeriodStart        time.Time                        `json:"period_start"`
	PeriodEnd          time.Time                        `json:"period_end"`
	TotalRequests      int64                            `json:"total_requests"`
	SuccessfulRequests int64                            `json:"successful_requests"`
	FailedRequests     int64                            `json:"failed_requests"`
	TotalTokens        int64                            `json:"total_tokens"`
	TotalCost          float64                          `json:"total_cost"`
	ByProvider         map[ProviderID]*ProviderUsage    `json:"by_provider"`
	ByTaskType         map[TaskType]*DimensionUsage     `json:"by_task_type"`
	ByQuality          map[QualityLevel]*DimensionUsage `json:"by_quality"`
	TopUsers           []UserUsage                      `json:"top_users"`
}

// TrendDirection classifies a period-over-period cost change.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// CostBreakdown is the cost view with a projection and trend classification.
type CostBreakdown struct {
	Total                float64                `json:"total"`
	ByProvider           map[ProviderID]float64 `json:"by_provider"`
	ByTaskType           map[TaskType]float64   `json:"by_task_type"`
	ProjectedMonthlyCost float64                `json:"projected_monthly_cost"`
	Trend                CostTrend              `json:"trend"`
}

// CostTrend is the change versus the immediately preceding period.
type CostTrend struct {
	Direction  TrendDirection `json:"direction"`
	Percentage float64        `json:"percentage"`
}

// DailySummary is the per-day rollup for one organization.
type DailySummary struct {
	Date          time.Time                      `json:"date"`
	TotalRequests int64                          `json:"total_requests"`
	TotalTokens   int64                          `json:"total_tokens"`
	TotalCost     float64                        `json:"total_cost"`
	ByProvider    map[ProviderID]*DimensionUsage `json:"by_provider"`
}
