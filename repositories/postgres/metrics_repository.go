package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/repositories"
	"go.uber.org/zap"
)

// MetricsRepository implements the repositories.MetricsRepository interface
type MetricsRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMetricsRepository creates a new metrics repository
func NewMetricsRepository(db *DB, logger *zap.Logger) repositories.MetricsRepository {
	return &MetricsRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertDaily writes one provider's daily snapshot, replacing any existing
// row for the same (provider, date)
func (r *MetricsRepository) UpsertDaily(ctx context.Context, snapshot *models.ProviderMetricsSnapshot) error {
	query := `
		INSERT INTO ai_provider_metrics (provider, date, total_requests, successful_requests,
			failed_requests, avg_latency_ms, p95_latency_ms, p99_latency_ms,
			total_tokens, total_cost, error_rate, availability_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (provider, date) DO UPDATE SET
			total_requests = EXCLUDED.total_requests,
			successful_requests = EXCLUDED.successful_requests,
			failed_requests = EXCLUDED.failed_requests,
			avg_latency_ms = EXCLUDED.avg_latency_ms,
			p95_latency_ms = EXCLUDED.p95_latency_ms,
			p99_latency_ms = EXCLUDED.p99_latency_ms,
			total_tokens = EXCLUDED.total_tokens,
			total_cost = EXCLUDED.total_cost,
			error_rate = EXCLUDED.error_rate,
			availability_rate = EXCLUDED.availability_rate
	`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.Provider,
		snapshot.Date,
		snapshot.TotalRequests,
		snapshot.SuccessfulRequests,
		snapshot.FailedRequests,
		snapshot.AvgLatencyMs,
		snapshot.P95LatencyMs,
		snapshot.P99LatencyMs,
		snapshot.TotalTokens,
		snapshot.TotalCost,
		snapshot.ErrorRate,
		snapshot.AvailabilityRate,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert metrics snapshot: %w", err)
	}

	r.logger.Debug("metrics snapshot upserted",
		zap.String("provider", string(snapshot.Provider)),
		zap.Time("date", snapshot.Date))
	return nil
}

// GetByProvider retrieves one provider's daily snapshots in [start, end)
func (r *MetricsRepository) GetByProvider(ctx context.Context, provider models.ProviderID, start, end time.Time) ([]*models.ProviderMetricsSnapshot, error) {
	query := `
		SELECT provider, date, total_requests, successful_requests, failed_requests,
			avg_latency_ms, p95_latency_ms, p99_latency_ms,
			total_tokens, total_cost, error_rate, availability_rate
		FROM ai_provider_metrics
		WHERE provider = $1 AND date >= $2 AND date < $3
		ORDER BY date
	`

	rows, err := r.db.QueryContext(ctx, query, provider, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.ProviderMetricsSnapshot
	for rows.Next() {
		snapshot := &models.ProviderMetricsSnapshot{}
		if err := rows.Scan(
			&snapshot.Provider,
			&snapshot.Date,
			&snapshot.TotalRequests,
			&snapshot.SuccessfulRequests,
			&snapshot.FailedRequests,
			&snapshot.AvgLatencyMs,
			&snapshot.P95LatencyMs,
			&snapshot.P99LatencyMs,
			&snapshot.TotalTokens,
			&snapshot.TotalCost,
			&snapshot.ErrorRate,
			&snapshot.AvailabilityRate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metrics snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metrics snapshots: %w", err)
	}

	return snapshots, nil
}
