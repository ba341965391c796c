package models

import "time"

// ProviderHealthStatus is the last-known health of one provider. Owned by
// the health monitor; the decision engine only reads cached copies.
type ProviderHealthStatus struct {
	Provider    ProviderID `json:"provider"`
	Healthy     bool       `json:"healthy"`
	LatencyMs   int64      `json:"latency_ms"`
	LastChecked time.Time  `json:"last_checked"`
	LastError   string     `json:"last_error,omitempty"`
}

// SystemHealth is the aggregate view over all providers.
type SystemHealth struct {
	Healthy        bool                   `json:"healthy"`
	AvailableCount int                    `json:"available_count"`
	TotalCount     int                    `json:"total_count"`
	Providers      []ProviderHealthStatus `json:"providers"`
}
