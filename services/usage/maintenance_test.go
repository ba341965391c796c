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

func TestMaintenance_RunOnce(t *testing.T) {
	now := time.Date(2026, 3, 10, 4, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	orgID := uuid.New()

	usageRepo := &fakeUsageRepo{}
	usageRepo.records = append(usageRepo.records,
		record(orgID, models.ProviderGLM, models.TaskPostGeneration, 200, 0.02, true, yesterday.Add(time.Hour)),
		record(orgID, models.ProviderGLM, models.TaskPostGeneration, 300, 0.03, true, yesterday.Add(2*time.Hour)),
		// Past the 90-day retention window.
		record(orgID, models.ProviderOpenAI, models.TaskAutocomplete, 100, 0.01, true, now.AddDate(0, 0, -120)),
	)
	metricsRepo := newFakeMetricsRepo()

	logger := zap.NewNop()
	service := NewService(usageRepo, logger)
	service.now = func() time.Time { return now }
	calculator := NewMetricsCalculator(usageRepo, metricsRepo, logger)

	maintenance := NewMaintenance(service, calculator, logger, 90*24*time.Hour, 0)
	maintenance.now = func() time.Time { return now }
	maintenance.RunOnce(context.Background())

	dayStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	snapshots, err := metricsRepo.GetByProvider(context.Background(), models.ProviderGLM, dayStart, dayStart.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(2), snapshots[0].TotalRequests)
	assert.Equal(t, int64(500), snapshots[0].TotalTokens)

	assert.Len(t, usageRepo.records, 2, "expired records should be pruned")
	for _, rec := range usageRepo.records {
		assert.True(t, rec.CreatedAt.After(now.AddDate(0, 0, -90)))
	}
}

func TestMaintenance_StartStop(t *testing.T) {
	usageRepo := &fakeUsageRepo{}
	logger := zap.NewNop()
	service := NewService(usageRepo, logger)
	calculator := NewMetricsCalculator(usageRepo, newFakeMetricsRepo(), logger)

	maintenance := NewMaintenance(service, calculator, logger, 0, time.Hour)
	maintenance.Start(context.Background())
	maintenance.Stop()

	// Stop is idempotent.
	maintenance.Stop()
}
