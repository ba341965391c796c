package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/providers"
)

type probeAdapter struct {
	id      models.ProviderID
	healthy bool
	delay   time.Duration
	probes  int
}

func (a *probeAdapter) Type() models.ProviderID { return a.id }

func (a *probeAdapter) IsHealthy(ctx context.Context) bool {
	a.probes++
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return false
		}
	}
	return a.healthy
}

func (a *probeAdapter) GenerateCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	return &providers.CompletionResponse{Provider: a.id, Success: true}, nil
}

func (a *probeAdapter) EstimateCost(inputTokens, outputTokens int64, quality models.QualityLevel) float64 {
	return 0
}

func newTestMonitor(t *testing.T, adapters ...*probeAdapter) *Monitor {
	t.Helper()
	registry := providers.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, registry.Register(a))
	}
	return NewMonitor(registry, zap.NewNop(), time.Minute)
}

func TestCheckAll(t *testing.T) {
	openai := &probeAdapter{id: models.ProviderOpenAI, healthy: true}
	glm := &probeAdapter{id: models.ProviderGLM, healthy: false}
	m := newTestMonitor(t, openai, glm)

	statuses := m.CheckAll(context.Background())

	require.Len(t, statuses, 2)
	assert.True(t, statuses[models.ProviderOpenAI].Healthy)
	assert.False(t, statuses[models.ProviderGLM].Healthy)
	assert.Equal(t, "health probe failed", statuses[models.ProviderGLM].LastError)
	assert.Equal(t, 1, openai.probes)
	assert.Equal(t, 1, glm.probes)
}

func TestIsHealthy(t *testing.T) {
	t.Run("unchecked provider reports unhealthy", func(t *testing.T) {
		m := newTestMonitor(t, &probeAdapter{id: models.ProviderOpenAI, healthy: true})

		assert.False(t, m.IsHealthy(models.ProviderOpenAI))
	})

	t.Run("checked provider reports last result", func(t *testing.T) {
		m := newTestMonitor(t,
			&probeAdapter{id: models.ProviderOpenAI, healthy: true},
			&probeAdapter{id: models.ProviderGLM, healthy: false})
		m.CheckAll(context.Background())

		assert.True(t, m.IsHealthy(models.ProviderOpenAI))
		assert.False(t, m.IsHealthy(models.ProviderGLM))
	})

	t.Run("unregistered provider reports unhealthy", func(t *testing.T) {
		m := newTestMonitor(t, &probeAdapter{id: models.ProviderOpenAI, healthy: true})
		m.CheckAll(context.Background())

		assert.False(t, m.IsHealthy(models.ProviderClaude))
	})
}

func TestCheckOneUnregisteredProvider(t *testing.T) {
	m := newTestMonitor(t, &probeAdapter{id: models.ProviderOpenAI, healthy: true})

	status := m.CheckOne(context.Background(), models.ProviderMistral)

	assert.False(t, status.Healthy)
	assert.NotEmpty(t, status.LastError)
}

func TestHealthyProvidersOrder(t *testing.T) {
	m := newTestMonitor(t,
		&probeAdapter{id: models.ProviderMistral, healthy: true},
		&probeAdapter{id: models.ProviderOpenAI, healthy: true},
		&probeAdapter{id: models.ProviderGLM, healthy: false},
		&probeAdapter{id: models.ProviderClaude, healthy: true})
	m.CheckAll(context.Background())

	// Canonical provider order, not registration order
	assert.Equal(t,
		[]models.ProviderID{models.ProviderOpenAI, models.ProviderClaude, models.ProviderMistral},
		m.HealthyProviders())
}

func TestFastestHealthy(t *testing.T) {
	t.Run("picks lowest latency", func(t *testing.T) {
		m := newTestMonitor(t,
			&probeAdapter{id: models.ProviderOpenAI, healthy: true, delay: 30 * time.Millisecond},
			&probeAdapter{id: models.ProviderGLM, healthy: true})
		m.CheckAll(context.Background())

		fastest, ok := m.FastestHealthy()
		require.True(t, ok)
		assert.Equal(t, models.ProviderGLM, fastest)
	})

	t.Run("none healthy", func(t *testing.T) {
		m := newTestMonitor(t, &probeAdapter{id: models.ProviderOpenAI, healthy: false})
		m.CheckAll(context.Background())

		_, ok := m.FastestHealthy()
		assert.False(t, ok)
	})
}

func TestSystemHealth(t *testing.T) {
	m := newTestMonitor(t,
		&probeAdapter{id: models.ProviderOpenAI, healthy: true},
		&probeAdapter{id: models.ProviderGLM, healthy: false})
	m.CheckAll(context.Background())

	system := m.SystemHealth()

	assert.True(t, system.Healthy)
	assert.Equal(t, 2, system.TotalCount)
	assert.Equal(t, 1, system.AvailableCount)
	assert.Len(t, system.Providers, 2)
}

func TestStartStop(t *testing.T) {
	adapter := &probeAdapter{id: models.ProviderOpenAI, healthy: true}
	m := newTestMonitor(t, adapter)

	m.Start(context.Background())
	m.Stop()

	// Start runs one synchronous round before the background loop
	assert.GreaterOrEqual(t, adapter.probes, 1)
	assert.True(t, m.IsHealthy(models.ProviderOpenAI))
}
