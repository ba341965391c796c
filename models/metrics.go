package models

import "time"

// ProviderMetricsSnapshot is the daily aggregate for one provider, derived
// from UsageRecords. One row per (provider, day); upserted by the recompute
// job, never historically mutated outside the same day's recompute.
type ProviderMetricsSnapshot struct {
	Provider           ProviderID `json:"provider" db:"provider"`
	Date               time.Time  `json:"date" db:"date"`
	TotalRequests      int64      `json:"total_requests" db:"total_requests"`
	SuccessfulRequests int64      `json:"successful_requests" db:"successful_requests"`
	FailedRequests     int64      `json:"failed_requests" db:"failed_requests"`
	AvgLatencyMs       float64    `json:"avg_latency_ms" db:"avg_latency_ms"`
	P95LatencyMs       int64      `json:"p95_latency_ms" db:"p95_latency_ms"`
	P99LatencyMs       int64      `json:"p99_latency_ms" db:"p99_latency_ms"`
	TotalTokens        int64      `json:"total_tokens" db:"total_tokens"`
	TotalCost          float64    `json:"total_cost" db:"total_cost"`
	ErrorRate          float64    `json:"error_rate" db:"error_rate"`
	AvailabilityRate   float64    `json:"availability_rate" db:"availability_rate"`
}

// TableName returns the table name for the ProviderMetricsSnapshot model.
func (ProviderMetricsSnapshot) TableName() string {
	return "ai_provider_metrics"
}
