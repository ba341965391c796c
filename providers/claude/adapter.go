package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/providers"
)

const anthropicVersion = "2023-06-01"

// Adapter implements the providers.Adapter interface for Anthropic's
// Messages API.
type Adapter struct {
	config     providers.Config
	profile    providers.Profile
	httpClient *http.Client
}

// New creates a new Claude adapter.
func New(config providers.Config) *Adapter {
	profile := providers.ProfileFor(models.ProviderClaude)
	if config.BaseURL == "" {
		config.BaseURL = profile.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = profile.Timeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = profile.MaxRetries
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}

	return &Adapter{
		config:  config,
		profile: profile,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Type returns the provider ID.
func (a *Adapter) Type() models.ProviderID {
	return models.ProviderClaude
}

type messagesRequest struct {
	Model       string         `json:"model"`
	System      string         `json:"system,omitempty"`
	Messages    []messageParam `json:"messages"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature,omitempty"`
}

type messageParam struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateCompletion performs a messages request.
func (a *Adapter) GenerateCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	startTime := time.Now()
	model := a.profile.ModelFor(req.Quality)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024 // the Messages API requires an explicit cap
	}

	body, err := json.Marshal(messagesRequest{
		Model:       model,
		System:      req.SystemMessage,
		Messages:    []messageParam{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, providers.NewAdapterError(a.Type(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, providers.NewAdapterError(a.Type(), "CANCELLED", "request cancelled", 0, false, ctx.Err())
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", a.config.BaseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			return nil, providers.NewAdapterError(a.Type(), "REQUEST_ERROR", "failed to create request", 0, false, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", a.config.APIKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)

		resp, err := a.httpClient.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("transient error: status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var parsed messagesResponse
			message := fmt.Sprintf("request failed with status %d", resp.StatusCode)
			if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error != nil {
				message = parsed.Error.Message
			}
			return nil, providers.NewAdapterError(a.Type(), "API_ERROR", message, resp.StatusCode, false, nil)
		}

		var parsed messagesResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, providers.NewAdapterError(a.Type(), "UNMARSHAL_ERROR", "failed to unmarshal response", resp.StatusCode, false, err)
		}
		if len(parsed.Content) == 0 {
			return nil, providers.NewAdapterError(a.Type(), "EMPTY_RESPONSE", "response contained no content", resp.StatusCode, false, nil)
		}

		totalTokens := parsed.Usage.InputTokens + parsed.Usage.OutputTokens
		return &providers.CompletionResponse{
			Content:       parsed.Content[0].Text,
			Provider:      a.Type(),
			Model:         model,
			InputTokens:   parsed.Usage.InputTokens,
			OutputTokens:  parsed.Usage.OutputTokens,
			TotalTokens:   totalTokens,
			EstimatedCost: a.EstimateCost(parsed.Usage.InputTokens, parsed.Usage.OutputTokens, req.Quality),
			LatencyMs:     time.Since(startTime).Milliseconds(),
			Success:       true,
		}, nil
	}

	return nil, providers.NewAdapterError(a.Type(), "HTTP_ERROR", "request failed after retries", 0, true, lastErr)
}

// IsHealthy probes the API with a one-token message.
func (a *Adapter) IsHealthy(ctx context.Context) bool {
	body, err := json.Marshal(messagesRequest{
		Model:     a.profile.ModelFor(models.QualityStandard),
		Messages:  []messageParam{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.config.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// EstimateCost estimates the cost in USD for a request.
func (a *Adapter) EstimateCost(inputTokens, outputTokens int64, quality models.QualityLevel) float64 {
	return float64(inputTokens+outputTokens) / 1000 * a.profile.CostFor(quality)
}
