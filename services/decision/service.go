package decision

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/providers"
	"go.uber.org/zap"
)

// Default token estimate when the caller supplies none.
const defaultEstimatedTokens = 500

// Baseline latency assumed for a provider with no health samples yet.
const baseLatencyMs = 1000

// HealthReader is the slice of the health monitor the engine consumes.
type HealthReader interface {
	IsHealthy(id models.ProviderID) bool
	Status(id models.ProviderID) (models.ProviderHealthStatus, bool)
}

// QuotaChecker is the slice of the quota service the engine consumes.
type QuotaChecker interface {
	CheckAdmission(ctx context.Context, orgID uuid.UUID, class models.ProviderClass, tokensNeeded int64) (*models.QuotaCheckResult, error)
}

// Engine selects a provider for each request from the routing matrix,
// then adjusts for caller preference, provider health, and quota state.
// It never executes requests itself and never blocks on provider calls.
type Engine struct {
	health HealthReader
	quota  QuotaChecker
	logger *zap.Logger
}

// NewEngine creates a new decision engine.
func NewEngine(health HealthReader, quota QuotaChecker, logger *zap.Logger) *Engine {
	return &Engine{
		health: health,
		quota:  quota,
		logger: logger,
	}
}

// Decide produces a routing decision for one request.
//
// Confidence encodes how far the decision drifted from the matrix ideal:
// 1.0 pure matrix, 0.9 caller preference, 0.7 unhealthy-primary fallback,
// 0.6 quota-driven alternative, 0 denied.
func (e *Engine) Decide(ctx context.Context, rc *models.RoutingContext, estimatedTokens int64) (*models.RoutingDecision, error) {
	if estimatedTokens <= 0 {
		estimatedTokens = defaultEstimatedTokens
	}

	route := resolveRoute(rc.TaskType, rc.Quality)
	selected := route.Primary
	fallback := route.Fallback
	reason := fmt.Sprintf("matrix routing: %s at %s", rc.TaskType, rc.Quality)
	confidence := 1.0

	if rc.PreferredProvider != "" && rc.PreferredProvider.Valid() {
		selected = rc.PreferredProvider
		reason = fmt.Sprintf("caller preference: %s", rc.PreferredProvider)
		confidence = 0.9
	}

	if !e.health.IsHealthy(selected) {
		e.logger.Warn("primary provider unhealthy, routing to fallback",
			zap.String("primary", string(selected)),
			zap.String("fallback", string(fallback)))
		selected = fallback
		reason = "fallback due to unhealthy primary provider"
		confidence = 0.7
	}

	quotaCheck, err := e.quota.CheckAdmission(ctx, rc.OrgID, selected.Class(), estimatedTokens)
	if err != nil {
		return nil, fmt.Errorf("quota check failed: %w", err)
	}

	if !quotaCheck.Allowed {
		alt, ok := e.alternativeProvider(rc, quotaCheck.Alternative)
		if !ok {
			return &models.RoutingDecision{
				Provider:         selected,
				FallbackProvider: fallback,
				Reason:           fmt.Sprintf("no quota available: %s", quotaCheck.Reason),
				Confidence:       0,
				QuotaAvailable:   false,
			}, nil
		}
		selected = alt
		reason = fmt.Sprintf("quota exhausted for primary, using alternative: %s", alt)
		confidence = 0.6
	}

	decision := &models.RoutingDecision{
		Provider:         selected,
		FallbackProvider: fallback,
		Reason:           reason,
		Confidence:       confidence,
		EstimatedCost:    e.estimateCost(selected, estimatedTokens, rc.Quality),
		EstimatedLatency: e.estimateLatency(selected, rc.TaskType),
		QuotaAvailable:   true,
	}

	e.logger.Debug("routing decision",
		zap.String("task_type", string(rc.TaskType)),
		zap.String("quality", string(rc.Quality)),
		zap.String("provider", string(decision.Provider)),
		zap.Float64("confidence", decision.Confidence),
		zap.String("reason", decision.Reason))
	return decision, nil
}

// RecommendedProvider answers which provider the matrix alone would pick.
func (e *Engine) RecommendedProvider(task models.TaskType, quality models.QualityLevel) models.ProviderID {
	return resolveRoute(task, quality).Primary
}

// alternativeProvider maps a quota-suggested budget class back to a
// concrete, healthy provider from the matrix cell or the provider list.
func (e *Engine) alternativeProvider(rc *models.RoutingContext, class models.ProviderClass) (models.ProviderID, bool) {
	if class == "" {
		return "", false
	}

	route := resolveRoute(rc.TaskType, rc.Quality)
	for _, candidate := range []models.ProviderID{route.Primary, route.Fallback} {
		if candidate.Class() == class && e.health.IsHealthy(candidate) {
			return candidate, true
		}
	}
	for _, candidate := range models.AllProviders {
		if candidate.Class() == class && e.health.IsHealthy(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (e *Engine) estimateCost(provider models.ProviderID, tokens int64, quality models.QualityLevel) float64 {
	return float64(tokens) / 1000 * providers.ProfileFor(provider).CostFor(quality)
}

// estimateLatency scales the provider's last observed latency by a
// per-task multiplier. Image and video work dominates the scale.
func (e *Engine) estimateLatency(provider models.ProviderID, task models.TaskType) int {
	latency := int64(baseLatencyMs)
	if status, ok := e.health.Status(provider); ok && status.LatencyMs > 0 {
		latency = status.LatencyMs
	}

	multiplier := 1.0
	switch task {
	case models.TaskAutocomplete:
		multiplier = 0.5
	case models.TaskCaptionRewrite:
		multiplier = 1.0
	case models.TaskPostGeneration:
		multiplier = 1.5
	case models.TaskImageGeneration:
		multiplier = 10.0
	case models.TaskVideoGeneration:
		multiplier = 50.0
	}

	return int(float64(latency) * multiplier)
}
