package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var usageRowColumns = []string{
	"id", "org_id", "user_id", "provider", "task_type", "quality",
	"input_tokens", "output_tokens", "total_tokens", "estimated_cost",
	"latency_ms", "success", "error_message", "created_at",
}

func TestUsageRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUsageRepository(db, zap.NewNop())

	record := &models.UsageRecord{
		ID:            uuid.New(),
		OrgID:         uuid.New(),
		Provider:      models.ProviderGLM,
		TaskType:      models.TaskAutocomplete,
		Quality:       models.QualityStandard,
		InputTokens:   100,
		OutputTokens:  200,
		TotalTokens:   300,
		EstimatedCost: 0.0003,
		LatencyMs:     150,
		Success:       true,
		CreatedAt:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO ai_usage_records").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_ListByOrg(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUsageRepository(db, zap.NewNop())

	orgID := uuid.New()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	createdAt := start.Add(48 * time.Hour)

	t.Run("without filter", func(t *testing.T) {
		rows := sqlmock.NewRows(usageRowColumns).
			AddRow(uuid.New(), orgID, nil, "GLM", "AUTOCOMPLETE", "STANDARD",
				100, 200, 300, 0.0003, 150, true, nil, createdAt).
			AddRow(uuid.New(), orgID, nil, "OPENAI", "POST_GENERATION", "PREMIUM",
				500, 1500, 2000, 0.08, 900, true, nil, createdAt)

		mock.ExpectQuery("SELECT (.+) FROM ai_usage_records\\s+WHERE org_id").
			WithArgs(orgID, start, end).
			WillReturnRows(rows)

		records, err := repo.ListByOrg(context.Background(), orgID, start, end, nil)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, models.ProviderGLM, records[0].Provider)
		assert.Equal(t, int64(2000), records[1].TotalTokens)
		assert.Empty(t, records[0].ErrorMessage)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("with provider filter", func(t *testing.T) {
		provider := models.ProviderOpenAI
		rows := sqlmock.NewRows(usageRowColumns).
			AddRow(uuid.New(), orgID, nil, "OPENAI", "POST_GENERATION", "PREMIUM",
				500, 1500, 2000, 0.08, 900, false, "rate limited", createdAt)

		mock.ExpectQuery("SELECT (.+) FROM ai_usage_records\\s+WHERE org_id (.+) AND provider").
			WithArgs(orgID, start, end, provider).
			WillReturnRows(rows)

		records, err := repo.ListByOrg(context.Background(), orgID, start, end,
			&models.UsageFilter{Provider: &provider})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "rate limited", records[0].ErrorMessage)
		assert.False(t, records[0].Success)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUsageRepository_ListByProvider(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUsageRepository(db, zap.NewNop())

	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	rows := sqlmock.NewRows(usageRowColumns).
		AddRow(uuid.New(), uuid.New(), nil, "CLAUDE", "CAPTION_REWRITE", "HIGH",
			200, 400, 600, 0.0018, 700, true, nil, start.Add(time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM ai_usage_records\\s+WHERE provider").
		WithArgs(models.ProviderClaude, start, end).
		WillReturnRows(rows)

	records, err := repo.ListByProvider(context.Background(), models.ProviderClaude, start, end)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.TaskCaptionRewrite, records[0].TaskType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepository_DeleteOlderThan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUsageRepository(db, zap.NewNop())

	cutoff := time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM ai_usage_records WHERE created_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	deleted, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricsRepository_UpsertDaily(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetricsRepository(db, zap.NewNop())

	snapshot := &models.ProviderMetricsSnapshot{
		Provider:           models.ProviderOpenAI,
		Date:               time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		TotalRequests:      100,
		SuccessfulRequests: 99,
		FailedRequests:     1,
		AvgLatencyMs:       505,
		P95LatencyMs:       960,
		P99LatencyMs:       1000,
		TotalTokens:        10_000,
		TotalCost:          1.0,
		ErrorRate:          0.01,
		AvailabilityRate:   0.99,
	}

	mock.ExpectExec("INSERT INTO ai_provider_metrics").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertDaily(context.Background(), snapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationRepository_TierForOrg(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrganizationRepository(db, zap.NewNop())

	orgID := uuid.New()
	mock.ExpectQuery("SELECT subscription_tier FROM organizations").
		WithArgs(orgID).
		WillReturnRows(sqlmock.NewRows([]string{"subscription_tier"}).AddRow("TEAM"))

	tier, err := repo.TierForOrg(context.Background(), orgID)
	require.NoError(t, err)
	assert.Equal(t, models.TierTeam, tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}
