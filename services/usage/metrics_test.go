package usage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMetricsRepo struct {
	snapshots map[string]*models.ProviderMetricsSnapshot
}

func newFakeMetricsRepo() *fakeMetricsRepo {
	return &fakeMetricsRepo{snapshots: make(map[string]*models.ProviderMetricsSnapshot)}
}

func (f *fakeMetricsRepo) UpsertDaily(ctx context.Context, snapshot *models.ProviderMetricsSnapshot) error {
	key := string(snapshot.Provider) + snapshot.Date.Format("2006-01-02")
	clone := *snapshot
	f.snapshots[key] = &clone
	return nil
}

func (f *fakeMetricsRepo) GetByProvider(ctx context.Context, provider models.ProviderID, start, end time.Time) ([]*models.ProviderMetricsSnapshot, error) {
	var out []*models.ProviderMetricsSnapshot
	for _, snapshot := range f.snapshots {
		if snapshot.Provider == provider && !snapshot.Date.Before(start) && snapshot.Date.Before(end) {
			out = append(out, snapshot)
		}
	}
	return out, nil
}

func TestComputeSnapshot(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	orgID := uuid.New()

	var records []*models.UsageRecord
	for i := 1; i <= 100; i++ {
		rec := record(orgID, models.ProviderOpenAI, models.TaskPostGeneration, 100, 0.01, true, day.Add(time.Hour))
		rec.LatencyMs = int64(i * 10)
		records = append(records, rec)
	}
	records[99].Success = false

	snapshot := ComputeSnapshot(models.ProviderOpenAI, day, records)

	assert.Equal(t, int64(100), snapshot.TotalRequests)
	assert.Equal(t, int64(99), snapshot.SuccessfulRequests)
	assert.Equal(t, int64(1), snapshot.FailedRequests)
	assert.Equal(t, int64(10_000), snapshot.TotalTokens)
	assert.InDelta(t, 1.0, snapshot.TotalCost, 1e-9)
	assert.InDelta(t, 505.0, snapshot.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 0.01, snapshot.ErrorRate, 1e-9)
	assert.InDelta(t, 0.99, snapshot.AvailabilityRate, 1e-9)

	// floor(100 * 0.95) = index 95 of the sorted latencies.
	assert.Equal(t, int64(960), snapshot.P95LatencyMs)
	assert.Equal(t, int64(1000), snapshot.P99LatencyMs)
}

func TestComputeSnapshot_Empty(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	snapshot := ComputeSnapshot(models.ProviderMistral, day, nil)

	assert.Equal(t, int64(0), snapshot.TotalRequests)
	assert.Zero(t, snapshot.AvgLatencyMs)
	assert.Zero(t, snapshot.ErrorRate)
	assert.Zero(t, snapshot.P95LatencyMs)
}

func TestMetricsCalculator_RecomputeDay(t *testing.T) {
	usageRepo := &fakeUsageRepo{}
	metricsRepo := newFakeMetricsRepo()
	logger, _ := zap.NewDevelopment()
	calc := NewMetricsCalculator(usageRepo, metricsRepo, logger)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	orgID := uuid.New()
	usageRepo.records = []*models.UsageRecord{
		record(orgID, models.ProviderGLM, models.TaskAutocomplete, 1000, 0.001, true, day.Add(time.Hour)),
		record(orgID, models.ProviderGLM, models.TaskAutocomplete, 2000, 0.002, true, day.Add(2*time.Hour)),
		// Outside the day.
		record(orgID, models.ProviderGLM, models.TaskAutocomplete, 5000, 0.005, true, day.AddDate(0, 0, 1)),
	}

	snapshot, err := calc.RecomputeDay(context.Background(), models.ProviderGLM, day)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snapshot.TotalRequests)
	assert.Equal(t, int64(3000), snapshot.TotalTokens)

	// Rerunning the job for the same day overwrites with identical values.
	again, err := calc.RecomputeDay(context.Background(), models.ProviderGLM, day)
	require.NoError(t, err)
	assert.Equal(t, snapshot, again)
	assert.Len(t, metricsRepo.snapshots, 1)
}
