package providers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
)

// Adapter is the uniform contract every backend model provider implements.
// Each concrete adapter wraps one vendor's HTTP API; callers never construct
// vendor payloads directly.
type Adapter interface {
	// Type returns the provider this adapter wraps.
	Type() models.ProviderID

	// IsHealthy probes the provider and reports whether it can serve traffic.
	IsHealthy(ctx context.Context) bool

	// GenerateCompletion performs a text completion request.
	GenerateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// EstimateCost estimates the cost in USD for a request before execution.
	EstimateCost(inputTokens, outputTokens int64, quality models.QualityLevel) float64
}

// ImageGenerator is implemented by adapters that can generate images.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, opts ImageOptions) (string, error)
}

// CompletionRequest is the unified request format for all providers.
type CompletionRequest struct {
	Prompt        string              `json:"prompt"`
	Quality       models.QualityLevel `json:"quality"`
	MaxTokens     int                 `json:"max_tokens,omitempty"`
	Temperature   float64             `json:"temperature,omitempty"`
	SystemMessage string              `json:"system_message,omitempty"`
	OrgID         uuid.UUID           `json:"org_id"`
	UserID        *uuid.UUID          `json:"user_id,omitempty"`
}

// CompletionResponse is the unified response format from all providers.
// Failure is a typed response (Success=false), never a panic.
type CompletionResponse struct {
	Content       string            `json:"content"`
	Provider      models.ProviderID `json:"provider"`
	Model         string            `json:"model,omitempty"`
	InputTokens   int64             `json:"input_tokens"`
	OutputTokens  int64             `json:"output_tokens"`
	TotalTokens   int64             `json:"total_tokens"`
	EstimatedCost float64           `json:"estimated_cost"`
	LatencyMs     int64             `json:"latency_ms"`
	Success       bool              `json:"success"`
	Error         string            `json:"error,omitempty"`

	// IsFallback marks a response served by a provider other than the
	// originally selected primary.
	IsFallback bool `json:"is_fallback,omitempty"`

	// FallbackReason is the prior error that triggered the fallback.
	FallbackReason string `json:"fallback_reason,omitempty"`

	// OriginalProvider is the primary that was bypassed on fallback.
	OriginalProvider models.ProviderID `json:"original_provider,omitempty"`
}

// ImageOptions tunes image generation.
type ImageOptions struct {
	IsURL      bool
	IsVertical bool
}

// AdapterError is an error from a provider adapter.
type AdapterError struct {
	Provider   models.ProviderID
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping.
func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// NewAdapterError creates a new adapter error.
func NewAdapterError(provider models.ProviderID, code, message string, statusCode int, retryable bool, cause error) *AdapterError {
	return &AdapterError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable reports whether an error is transient and worth retrying on
// the same provider.
func IsRetryable(err error) bool {
	if adaptErr, ok := err.(*AdapterError); ok {
		return adaptErr.Retryable
	}
	return false
}

// Config holds common configuration for provider adapters.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}
