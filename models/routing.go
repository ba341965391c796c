package models

import "github.com/google/uuid"

// RoutingContext carries the per-request inputs to a routing decision.
// It is created once per request and never mutated afterwards.
type RoutingContext struct {
	TaskType      TaskType     `json:"task_type"`
	Quality       QualityLevel `json:"quality"`
	OrgID         uuid.UUID    `json:"org_id"`
	UserID        *uuid.UUID   `json:"user_id,omitempty"`
	IsUrgent      bool         `json:"is_urgent,omitempty"`
	MaxLatencyMs  int          `json:"max_latency_ms,omitempty"`
	PreferLowCost bool         `json:"prefer_low_cost,omitempty"`

	// PreferredProvider forces the primary provider when set.
	PreferredProvider ProviderID `json:"preferred_provider,omitempty"`
}

// RoutingDecision is the Decision Engine's output. Immutable once produced
// and consumed exactly once by the fallback orchestrator.
type RoutingDecision struct {
	Provider         ProviderID `json:"provider"`
	FallbackProvider ProviderID `json:"fallback_provider"`
	Reason           string     `json:"reason"`
	Confidence       float64    `json:"confidence"`
	EstimatedCost    float64    `json:"estimated_cost"`
	EstimatedLatency int        `json:"estimated_latency_ms"`
	QuotaAvailable   bool       `json:"quota_available"`
}
