package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/providers"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts caps how many providers one request may try.
	DefaultMaxAttempts = 2

	// Backoff schedule for RetryWithBackoff.
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 1000 * time.Millisecond
)

// HealthReader is the slice of the health monitor the orchestrator consumes.
type HealthReader interface {
	IsHealthy(id models.ProviderID) bool
	HealthyProviders() []models.ProviderID
}

// Orchestrator executes a routing decision against real providers, walking
// the fallback chain until one succeeds. It always returns a response:
// when every candidate fails the caller gets a synthetic failure response,
// never a panic and never a nil.
type Orchestrator struct {
	registry *providers.Registry
	health   HealthReader
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a new fallback orchestrator.
func NewOrchestrator(registry *providers.Registry, health HealthReader, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		health:   health,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Execute runs the request against the primary provider and falls back down
// the chain on failure. At most maxAttempts providers are called; unhealthy
// candidates are skipped without consuming an attempt. A response served by
// anything other than the primary is marked as a fallback with the reason
// and the originally selected provider.
func (o *Orchestrator) Execute(ctx context.Context, req *providers.CompletionRequest, primary, fallbackProvider models.ProviderID, maxAttempts int) *providers.CompletionResponse {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	chain := o.FallbackChain(primary, fallbackProvider)
	attempts := 0
	var lastErr error

	for _, candidate := range chain {
		if attempts >= maxAttempts {
			break
		}
		if !o.health.IsHealthy(candidate) {
			o.logger.Debug("skipping unhealthy candidate",
				zap.String("provider", string(candidate)))
			if candidate == primary {
				lastErr = fmt.Errorf("primary provider %s unhealthy", primary)
			}
			continue
		}

		adapter, err := o.registry.Get(candidate)
		if err != nil {
			lastErr = err
			continue
		}

		attempts++
		o.logger.Debug("executing on provider",
			zap.String("provider", string(candidate)),
			zap.Int("attempt", attempts))

		response, err := adapter.GenerateCompletion(ctx, req)
		if err != nil {
			lastErr = err
			o.logger.Warn("provider call failed",
				zap.String("provider", string(candidate)),
				zap.Int("attempt", attempts),
				zap.Error(err))
			continue
		}
		if !response.Success {
			lastErr = fmt.Errorf("provider %s returned failure: %s", candidate, response.Error)
			continue
		}

		if candidate != primary {
			response.IsFallback = true
			response.OriginalProvider = primary
			if lastErr != nil {
				response.FallbackReason = lastErr.Error()
			} else {
				response.FallbackReason = fmt.Sprintf("primary provider %s unavailable", primary)
			}
		}
		return response
	}

	errMsg := "all providers failed"
	if lastErr != nil {
		errMsg = fmt.Sprintf("all providers failed, last error: %s", lastErr.Error())
	}
	o.logger.Error("fallback chain exhausted",
		zap.String("primary", string(primary)),
		zap.Int("attempts", attempts),
		zap.String("error", errMsg))

	return &providers.CompletionResponse{
		Provider: primary,
		Success:  false,
		Error:    errMsg,
	}
}

// FallbackChain orders the providers to try: the primary first, then the
// designated fallback when healthy, then any other healthy provider as a
// last resort.
func (o *Orchestrator) FallbackChain(primary, fallbackProvider models.ProviderID) []models.ProviderID {
	chain := []models.ProviderID{primary}

	if fallbackProvider != primary && o.health.IsHealthy(fallbackProvider) {
		chain = append(chain, fallbackProvider)
	}

	for _, candidate := range o.health.HealthyProviders() {
		if !contains(chain, candidate) {
			chain = append(chain, candidate)
		}
	}

	return chain
}

// TryInOrder calls each provider in turn and returns the first successful
// response. Unlike Execute it takes an explicit chain and applies no
// attempt cap.
func (o *Orchestrator) TryInOrder(ctx context.Context, req *providers.CompletionRequest, chain []models.ProviderID) (*providers.CompletionResponse, error) {
	for _, candidate := range chain {
		if !o.health.IsHealthy(candidate) {
			continue
		}
		adapter, err := o.registry.Get(candidate)
		if err != nil {
			continue
		}

		response, err := adapter.GenerateCompletion(ctx, req)
		if err != nil {
			o.logger.Warn("provider call failed",
				zap.String("provider", string(candidate)),
				zap.Error(err))
			continue
		}
		if response.Success {
			return response, nil
		}
	}

	return nil, fmt.Errorf("all providers failed")
}

// RetryWithBackoff runs op up to maxRetries+1 times with exponential
// backoff between attempts. Context cancellation aborts the wait.
func (o *Orchestrator) RetryWithBackoff(ctx context.Context, op func() error, maxRetries int, baseDelay time.Duration) error {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBackoffBase
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt < maxRetries {
			delay := baseDelay * (1 << attempt)
			o.logger.Debug("retry attempt failed, backing off",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			if err := o.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	return lastErr
}

// DegradeCheck is the answer to a quality degradation query.
type DegradeCheck struct {
	CanDegrade bool
	NextLevel  models.QualityLevel
}

// CanDegrade reports whether an urgent request may step down one quality
// level. Non-urgent requests and callers that forbid degradation never
// degrade.
func CanDegrade(current models.QualityLevel, isUrgent, allowDegradation bool) DegradeCheck {
	if !allowDegradation || !isUrgent {
		return DegradeCheck{}
	}

	next, ok := current.StepDown()
	if !ok {
		return DegradeCheck{}
	}
	return DegradeCheck{CanDegrade: true, NextLevel: next}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func contains(chain []models.ProviderID, id models.ProviderID) bool {
	for _, c := range chain {
		if c == id {
			return true
		}
	}
	return false
}
