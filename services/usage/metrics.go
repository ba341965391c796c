package usage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/repositories"
	"go.uber.org/zap"
)

// MetricsCalculator recomputes per-provider daily snapshots from the raw
// usage records. Recomputing the same day twice overwrites the row with
// identical values, so the job is safe to rerun.
type MetricsCalculator struct {
	usageRepo   repositories.UsageRepository
	metricsRepo repositories.MetricsRepository
	logger      *zap.Logger
}

// NewMetricsCalculator creates a new metrics calculator.
func NewMetricsCalculator(usageRepo repositories.UsageRepository, metricsRepo repositories.MetricsRepository, logger *zap.Logger) *MetricsCalculator {
	return &MetricsCalculator{
		usageRepo:   usageRepo,
		metricsRepo: metricsRepo,
		logger:      logger,
	}
}

// RecomputeDay rebuilds the snapshot for one provider and one UTC day.
func (c *MetricsCalculator) RecomputeDay(ctx context.Context, provider models.ProviderID, date time.Time) (*models.ProviderMetricsSnapshot, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)

	records, err := c.usageRepo.ListByProvider(ctx, provider, day, next)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider records: %w", err)
	}

	snapshot := ComputeSnapshot(provider, day, records)
	if err := c.metricsRepo.UpsertDaily(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to upsert metrics snapshot: %w", err)
	}

	c.logger.Debug("provider metrics recomputed",
		zap.String("provider", string(provider)),
		zap.Time("date", day),
		zap.Int64("requests", snapshot.TotalRequests))
	return snapshot, nil
}

// RecomputeAll rebuilds one day's snapshot for every known provider.
func (c *MetricsCalculator) RecomputeAll(ctx context.Context, date time.Time) error {
	for _, provider := range models.AllProviders {
		if _, err := c.RecomputeDay(ctx, provider, date); err != nil {
			return err
		}
	}
	return nil
}

// ComputeSnapshot folds raw records into one snapshot. Latency percentiles
// are exact order statistics over the day's sorted latencies; with no
// samples they fall back to the average.
func ComputeSnapshot(provider models.ProviderID, day time.Time, records []*models.UsageRecord) *models.ProviderMetricsSnapshot {
	snapshot := &models.ProviderMetricsSnapshot{
		Provider: provider,
		Date:     day,
	}

	var latencySum int64
	latencies := make([]int64, 0, len(records))

	for _, record := range records {
		snapshot.TotalRequests++
		snapshot.TotalTokens += record.TotalTokens
		snapshot.TotalCost += record.EstimatedCost
		if record.Success {
			snapshot.SuccessfulRequests++
		} else {
			snapshot.FailedRequests++
		}
		latencySum += record.LatencyMs
		latencies = append(latencies, record.LatencyMs)
	}

	if snapshot.TotalRequests == 0 {
		return snapshot
	}

	snapshot.AvgLatencyMs = float64(latencySum) / float64(snapshot.TotalRequests)
	snapshot.ErrorRate = float64(snapshot.FailedRequests) / float64(snapshot.TotalRequests)
	snapshot.AvailabilityRate = float64(snapshot.SuccessfulRequests) / float64(snapshot.TotalRequests)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	snapshot.P95LatencyMs = percentile(latencies, 0.95, snapshot.AvgLatencyMs)
	snapshot.P99LatencyMs = percentile(latencies, 0.99, snapshot.AvgLatencyMs)

	return snapshot
}

func percentile(sorted []int64, q float64, fallback float64) int64 {
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		return int64(fallback)
	}
	return sorted[idx]
}
