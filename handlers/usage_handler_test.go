package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postpulse/ai-router/middleware"
	"github.com/postpulse/ai-router/models"
)

type stubUsageService struct {
	stats     *models.UsageStatistics
	breakdown *models.CostBreakdown
	summary   *models.DailySummary
	trends    []*models.DailySummary

	gotStart  time.Time
	gotEnd    time.Time
	gotFilter *models.UsageFilter
	gotDate   time.Time
	gotDays   int
}

func (s *stubUsageService) Statistics(ctx context.Context, orgID uuid.UUID, start, end time.Time, filter *models.UsageFilter) (*models.UsageStatistics, error) {
	s.gotStart, s.gotEnd, s.gotFilter = start, end, filter
	return s.stats, nil
}

func (s *stubUsageService) CostBreakdown(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*models.CostBreakdown, error) {
	s.gotStart, s.gotEnd = start, end
	return s.breakdown, nil
}

func (s *stubUsageService) DailySummary(ctx context.Context, orgID uuid.UUID, date time.Time) (*models.DailySummary, error) {
	s.gotDate = date
	return s.summary, nil
}

func (s *stubUsageService) Trends(ctx context.Context, orgID uuid.UUID, days int) ([]*models.DailySummary, error) {
	s.gotDays = days
	return s.trends, nil
}

func usageGet(target string, orgID uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return req.WithContext(middleware.WithOrgID(req.Context(), orgID))
}

func TestHandleStatistics(t *testing.T) {
	orgID := uuid.New()

	t.Run("without filters", func(t *testing.T) {
		service := &stubUsageService{stats: &models.UsageStatistics{TotalRequests: 42}}
		h := NewUsageHandler(service, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleStatistics(rec, usageGet("/api/ai/usage", orgID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, service.gotStart.IsZero())
		assert.Nil(t, service.gotFilter)
		assert.Contains(t, rec.Body.String(), `"total_requests":42`)
	})

	t.Run("with period and provider filter", func(t *testing.T) {
		service := &stubUsageService{stats: &models.UsageStatistics{}}
		h := NewUsageHandler(service, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleStatistics(rec, usageGet(
			"/api/ai/usage?start=2026-03-01T00:00:00Z&end=2026-03-15T00:00:00Z&provider=GLM", orgID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), service.gotStart)
		require.NotNil(t, service.gotFilter)
		require.NotNil(t, service.gotFilter.Provider)
		assert.Equal(t, models.ProviderGLM, *service.gotFilter.Provider)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		h := NewUsageHandler(&stubUsageService{}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleStatistics(rec, usageGet("/api/ai/usage?start=yesterday", orgID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("inverted period", func(t *testing.T) {
		h := NewUsageHandler(&stubUsageService{}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleStatistics(rec, usageGet(
			"/api/ai/usage?start=2026-03-15T00:00:00Z&end=2026-03-01T00:00:00Z", orgID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown provider filter", func(t *testing.T) {
		h := NewUsageHandler(&stubUsageService{}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleStatistics(rec, usageGet("/api/ai/usage?provider=GEMINI", orgID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing org", func(t *testing.T) {
		h := NewUsageHandler(&stubUsageService{}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleStatistics(rec, httptest.NewRequest(http.MethodGet, "/api/ai/usage", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandleCostBreakdown(t *testing.T) {
	orgID := uuid.New()
	service := &stubUsageService{breakdown: &models.CostBreakdown{
		Total:                12.5,
		ProjectedMonthlyCost: 25.0,
		Trend:                models.CostTrend{Direction: models.TrendUp, Percentage: 100},
	}}
	h := NewUsageHandler(service, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleCostBreakdown(rec, usageGet("/api/ai/usage/cost", orgID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"direction":"up"`)
	assert.Contains(t, rec.Body.String(), `"projected_monthly_cost":25`)
}

func TestHandleDailySummary(t *testing.T) {
	orgID := uuid.New()

	t.Run("explicit date", func(t *testing.T) {
		service := &stubUsageService{summary: &models.DailySummary{}}
		h := NewUsageHandler(service, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleDailySummary(rec, usageGet("/api/ai/usage/daily?date=2026-03-10", orgID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), service.gotDate)
	})

	t.Run("bad date", func(t *testing.T) {
		h := NewUsageHandler(&stubUsageService{}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleDailySummary(rec, usageGet("/api/ai/usage/daily?date=10/03/2026", orgID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("defaults to today", func(t *testing.T) {
		service := &stubUsageService{summary: &models.DailySummary{}}
		h := NewUsageHandler(service, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleDailySummary(rec, usageGet("/api/ai/usage/daily", orgID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.WithinDuration(t, time.Now().UTC(), service.gotDate, time.Minute)
	})
}

func TestHandleTrends(t *testing.T) {
	orgID := uuid.New()

	t.Run("default days", func(t *testing.T) {
		service := &stubUsageService{trends: []*models.DailySummary{}}
		h := NewUsageHandler(service, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleTrends(rec, usageGet("/api/ai/usage/trends", orgID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultTrendDays, service.gotDays)
	})

	t.Run("caps days", func(t *testing.T) {
		service := &stubUsageService{trends: []*models.DailySummary{}}
		h := NewUsageHandler(service, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleTrends(rec, usageGet("/api/ai/usage/trends?days=365", orgID))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, maxTrendDays, service.gotDays)
	})

	t.Run("rejects non-positive days", func(t *testing.T) {
		h := NewUsageHandler(&stubUsageService{}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleTrends(rec, usageGet("/api/ai/usage/trends?days=0", orgID))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
