package mistral

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

// Adapter implements the providers.Adapter interface for Mistral's
// OpenAI-compatible chat completions API.
type Adapter struct {
	config     providers.Config
	profile    providers.Profile
	httpClient *http.Client
}

// New creates a new Mistral adapter.
func New(config providers.Config) *Adapter {
	profile := providers.ProfileFor(models.ProviderMistral)
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
	return models.ProviderMistral
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Message string `json:"message,omitempty"` // error payloads use a flat message
}

// GenerateCompletion performs a chat completion request.
func (a *Adapter) GenerateCompletion(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	startTime := time.Now()
	model := a.profile.ModelFor(req.Quality)

	messages := make([]chatMessage, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemMessage})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
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

		httpReq, err := http.NewRequestWithContext(ctx, "POST", a.config.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, providers.NewAdapterError(a.Type(), "REQUEST_ERROR", "failed to create request", 0, false, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

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

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var parsed chatResponse
			message := fmt.Sprintf("request failed with status %d", resp.StatusCode)
			if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Message != "" {
				message = parsed.Message
			}
			retryable := resp.StatusCode == http.StatusTooManyRequests
			return nil, providers.NewAdapterError(a.Type(), "API_ERROR", message, resp.StatusCode, retryable, nil)
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, providers.NewAdapterError(a.Type(), "UNMARSHAL_ERROR", "failed to unmarshal response", resp.StatusCode, false, err)
		}
		if len(parsed.Choices) == 0 {
			return nil, providers.NewAdapterError(a.Type(), "EMPTY_RESPONSE", "response contained no choices", resp.StatusCode, false, nil)
		}

		return &providers.CompletionResponse{
			Content:       parsed.Choices[0].Message.Content,
			Provider:      a.Type(),
			Model:         model,
			InputTokens:   parsed.Usage.PromptTokens,
			OutputTokens:  parsed.Usage.CompletionTokens,
			TotalTokens:   parsed.Usage.TotalTokens,
			EstimatedCost: a.EstimateCost(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, req.Quality),
			LatencyMs:     time.Since(startTime).Milliseconds(),
			Success:       true,
		}, nil
	}

	return nil, providers.NewAdapterError(a.Type(), "HTTP_ERROR", "request failed after retries", 0, true, lastErr)
}

// IsHealthy probes the models endpoint.
func (a *Adapter) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

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
