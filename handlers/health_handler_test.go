package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postpulse/ai-router/models"
)

type stubSystemHealth struct {
	health models.SystemHealth
}

func (s *stubSystemHealth) SystemHealth() models.SystemHealth {
	return s.health
}

func healthyProviders() models.SystemHealth {
	return models.SystemHealth{
		Healthy:        true,
		AvailableCount: 4,
		TotalCount:     4,
		Providers: []models.ProviderHealthStatus{
			{Provider: models.ProviderOpenAI, Healthy: true, LatencyMs: 240},
			{Provider: models.ProviderGLM, Healthy: true, LatencyMs: 180},
			{Provider: models.ProviderClaude, Healthy: true, LatencyMs: 320},
			{Provider: models.ProviderMistral, Healthy: true, LatencyMs: 150},
		},
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewHealthHandler(nil, &stubSystemHealth{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestHandleReadiness(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		h := NewHealthHandler(db, &stubSystemHealth{health: healthyProviders()}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"healthy"`)
		assert.Contains(t, rec.Body.String(), `"providers":"healthy"`)
	})

	t.Run("no providers available", func(t *testing.T) {
		h := NewHealthHandler(nil, &stubSystemHealth{health: models.SystemHealth{
			TotalCount: 4,
		}}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"providers":"unavailable"`)
	})

	t.Run("database down", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing().WillReturnError(assert.AnError)

		h := NewHealthHandler(db, &stubSystemHealth{health: healthyProviders()}, zap.NewNop())

		rec := httptest.NewRecorder()
		h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database":"unhealthy"`)
	})
}

func TestHandleProviderHealth(t *testing.T) {
	h := NewHealthHandler(nil, &stubSystemHealth{health: healthyProviders()}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleProviderHealth(rec, httptest.NewRequest(http.MethodGet, "/api/ai/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available_count":4`)
	assert.Contains(t, rec.Body.String(), `"provider":"GLM"`)
}
