package decision

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeHealth struct {
	unhealthy map[models.ProviderID]bool
	latency   map[models.ProviderID]int64
}

func (f *fakeHealth) IsHealthy(id models.ProviderID) bool {
	return !f.unhealthy[id]
}

func (f *fakeHealth) Status(id models.ProviderID) (models.ProviderHealthStatus, bool) {
	ms, ok := f.latency[id]
	if !ok {
		return models.ProviderHealthStatus{}, false
	}
	return models.ProviderHealthStatus{Provider: id, Healthy: !f.unhealthy[id], LatencyMs: ms}, true
}

type fakeQuota struct {
	denied      map[models.ProviderClass]bool
	alternative map[models.ProviderClass]models.ProviderClass
}

func (f *fakeQuota) CheckAdmission(ctx context.Context, orgID uuid.UUID, class models.ProviderClass, tokensNeeded int64) (*models.QuotaCheckResult, error) {
	if f.denied[class] {
		return &models.QuotaCheckResult{
			Allowed:     false,
			Class:       class,
			Reason:      "insufficient quota",
			Alternative: f.alternative[class],
		}, nil
	}
	return &models.QuotaCheckResult{Allowed: true, Class: class, RemainingTokens: 1_000_000}, nil
}

func newTestEngine(health *fakeHealth, quota *fakeQuota) *Engine {
	logger, _ := zap.NewDevelopment()
	return NewEngine(health, quota, logger)
}

func baseContext(task models.TaskType, quality models.QualityLevel) *models.RoutingContext {
	return &models.RoutingContext{
		TaskType: task,
		Quality:  quality,
		OrgID:    uuid.New(),
	}
}

func TestEngine_Decide_MatrixRouting(t *testing.T) {
	engine := newTestEngine(&fakeHealth{}, &fakeQuota{})
	ctx := context.Background()

	t.Run("standard autocomplete routes to bulk provider", func(t *testing.T) {
		decision, err := engine.Decide(ctx, baseContext(models.TaskAutocomplete, models.QualityStandard), 500)
		require.NoError(t, err)

		assert.Equal(t, models.ProviderGLM, decision.Provider)
		assert.Equal(t, models.ProviderOpenAI, decision.FallbackProvider)
		assert.Equal(t, 1.0, decision.Confidence)
		assert.True(t, decision.QuotaAvailable)
		assert.Contains(t, decision.Reason, "matrix routing")
	})

	t.Run("premium post generation routes to premium provider", func(t *testing.T) {
		decision, err := engine.Decide(ctx, baseContext(models.TaskPostGeneration, models.QualityPremium), 500)
		require.NoError(t, err)

		assert.Equal(t, models.ProviderOpenAI, decision.Provider)
		assert.Equal(t, models.ProviderGLM, decision.FallbackProvider)
	})

	t.Run("image generation always routes to OpenAI", func(t *testing.T) {
		for _, quality := range []models.QualityLevel{models.QualityStandard, models.QualityHigh, models.QualityPremium} {
			decision, err := engine.Decide(ctx, baseContext(models.TaskImageGeneration, quality), 500)
			require.NoError(t, err)
			assert.Equal(t, models.ProviderOpenAI, decision.Provider)
		}
	})
}

func TestEngine_Decide_GracefulMatrixLookup(t *testing.T) {
	engine := newTestEngine(&fakeHealth{}, &fakeQuota{})
	ctx := context.Background()

	t.Run("unknown task type resolves through generic row", func(t *testing.T) {
		decision, err := engine.Decide(ctx, baseContext(models.TaskType("TRANSLATION"), models.QualityHigh), 500)
		require.NoError(t, err)
		assert.Equal(t, models.ProviderOpenAI, decision.Provider)
	})

	t.Run("unknown quality resolves through standard column", func(t *testing.T) {
		decision, err := engine.Decide(ctx, baseContext(models.TaskAutocomplete, models.QualityLevel("ULTRA")), 500)
		require.NoError(t, err)
		assert.Equal(t, models.ProviderGLM, decision.Provider)
	})
}

func TestEngine_Decide_PreferredProvider(t *testing.T) {
	engine := newTestEngine(&fakeHealth{}, &fakeQuota{})
	ctx := context.Background()

	rc := baseContext(models.TaskAutocomplete, models.QualityStandard)
	rc.PreferredProvider = models.ProviderClaude

	decision, err := engine.Decide(ctx, rc, 500)
	require.NoError(t, err)

	assert.Equal(t, models.ProviderClaude, decision.Provider)
	assert.Equal(t, 0.9, decision.Confidence)
	assert.Contains(t, decision.Reason, "caller preference")
}

func TestEngine_Decide_UnhealthyPrimaryFallsBack(t *testing.T) {
	health := &fakeHealth{unhealthy: map[models.ProviderID]bool{models.ProviderGLM: true}}
	engine := newTestEngine(health, &fakeQuota{})

	decision, err := engine.Decide(context.Background(), baseContext(models.TaskAutocomplete, models.QualityStandard), 500)
	require.NoError(t, err)

	assert.Equal(t, models.ProviderOpenAI, decision.Provider)
	assert.Equal(t, 0.7, decision.Confidence)
	assert.Contains(t, decision.Reason, "unhealthy")
}

func TestEngine_Decide_QuotaAlternative(t *testing.T) {
	quota := &fakeQuota{
		denied:      map[models.ProviderClass]bool{models.ClassBulk: true},
		alternative: map[models.ProviderClass]models.ProviderClass{models.ClassBulk: models.ClassPremium},
	}
	engine := newTestEngine(&fakeHealth{}, quota)

	decision, err := engine.Decide(context.Background(), baseContext(models.TaskAutocomplete, models.QualityStandard), 500)
	require.NoError(t, err)

	assert.Equal(t, models.ProviderOpenAI, decision.Provider)
	assert.Equal(t, 0.6, decision.Confidence)
	assert.True(t, decision.QuotaAvailable)
	assert.Contains(t, decision.Reason, "alternative")
}

func TestEngine_Decide_QuotaDenied(t *testing.T) {
	quota := &fakeQuota{
		denied: map[models.ProviderClass]bool{
			models.ClassBulk:    true,
			models.ClassPremium: true,
		},
	}
	engine := newTestEngine(&fakeHealth{}, quota)

	decision, err := engine.Decide(context.Background(), baseContext(models.TaskAutocomplete, models.QualityStandard), 500)
	require.NoError(t, err)

	assert.False(t, decision.QuotaAvailable)
	assert.Zero(t, decision.Confidence)
	assert.Contains(t, decision.Reason, "no quota available")
}

func TestEngine_Decide_Estimates(t *testing.T) {
	health := &fakeHealth{latency: map[models.ProviderID]int64{models.ProviderOpenAI: 800}}
	engine := newTestEngine(health, &fakeQuota{})
	ctx := context.Background()

	t.Run("cost scales with tokens and quality", func(t *testing.T) {
		decision, err := engine.Decide(ctx, baseContext(models.TaskPostGeneration, models.QualityPremium), 2000)
		require.NoError(t, err)
		// 2000 tokens at 0.04 per 1K on the premium OpenAI model.
		assert.InDelta(t, 0.08, decision.EstimatedCost, 1e-9)
	})

	t.Run("latency uses observed health sample and task multiplier", func(t *testing.T) {
		decision, err := engine.Decide(ctx, baseContext(models.TaskPostGeneration, models.QualityPremium), 500)
		require.NoError(t, err)
		assert.Equal(t, 1200, decision.EstimatedLatency)
	})

	t.Run("latency falls back to baseline without samples", func(t *testing.T) {
		decision, err := engine.Decide(ctx, baseContext(models.TaskAutocomplete, models.QualityStandard), 500)
		require.NoError(t, err)
		assert.Equal(t, 500, decision.EstimatedLatency)
	})

	t.Run("zero token estimate uses the default", func(t *testing.T) {
		decision, err := engine.Decide(ctx, baseContext(models.TaskAutocomplete, models.QualityStandard), 0)
		require.NoError(t, err)
		// 500 tokens at the bulk provider's standard rate.
		assert.InDelta(t, 0.0000005, decision.EstimatedCost, 1e-12)
	})
}

func TestEngine_RecommendedProvider(t *testing.T) {
	engine := newTestEngine(&fakeHealth{}, &fakeQuota{})

	assert.Equal(t, models.ProviderGLM, engine.RecommendedProvider(models.TaskAutocomplete, models.QualityStandard))
	assert.Equal(t, models.ProviderOpenAI, engine.RecommendedProvider(models.TaskCaptionRewrite, models.QualityHigh))
}
