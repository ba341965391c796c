package openai

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

// Adapter implements the providers.Adapter interface for OpenAI.
type Adapter struct {
	config     providers.Config
	profile    providers.Profile
	httpClient *http.Client
}

// New creates a new OpenAI adapter.
func New(config providers.Config) *Adapter {
	profile := providers.ProfileFor(models.ProviderOpenAI)
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
	return models.ProviderOpenAI
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
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
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

	respBody, status, err := a.doWithRetry(ctx, "POST", "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, a.errorFromStatus(status, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, providers.NewAdapterError(a.Type(), "UNMARSHAL_ERROR", "failed to unmarshal response", status, false, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, providers.NewAdapterError(a.Type(), "EMPTY_RESPONSE", "response contained no choices", status, false, nil)
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

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	} `json:"data"`
}

// GenerateImage generates an image with DALL-E and returns either a URL or
// base64 payload depending on opts.
func (a *Adapter) GenerateImage(ctx context.Context, prompt string, opts providers.ImageOptions) (string, error) {
	size := "1024x1024"
	if opts.IsVertical {
		size = "1024x1792"
	}
	format := "b64_json"
	if opts.IsURL {
		format = "url"
	}

	body, err := json.Marshal(imageRequest{
		Model:          a.profile.ImageModel,
		Prompt:         prompt,
		N:              1,
		Size:           size,
		ResponseFormat: format,
	})
	if err != nil {
		return "", providers.NewAdapterError(a.Type(), "MARSHAL_ERROR", "failed to marshal image request", 0, false, err)
	}

	respBody, status, err := a.doWithRetry(ctx, "POST", "/images/generations", body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", a.errorFromStatus(status, respBody)
	}

	var parsed imageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", providers.NewAdapterError(a.Type(), "UNMARSHAL_ERROR", "failed to unmarshal image response", status, false, err)
	}
	if len(parsed.Data) == 0 {
		return "", providers.NewAdapterError(a.Type(), "EMPTY_RESPONSE", "image response contained no data", status, false, nil)
	}

	if opts.IsURL {
		return parsed.Data[0].URL, nil
	}
	return parsed.Data[0].B64JSON, nil
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

// doWithRetry executes an HTTP request, retrying transient failures with a
// linear backoff. The request body is rebuilt on each attempt.
func (a *Adapter) doWithRetry(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var lastErr error

	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, providers.NewAdapterError(a.Type(), "CANCELLED", "request cancelled", 0, false, ctx.Err())
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, 0, providers.NewAdapterError(a.Type(), "REQUEST_ERROR", "failed to create request", 0, false, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

		resp, err := a.httpClient.Do(req)
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

		// Retry server-side failures, return everything else.
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			continue
		}

		return respBody, resp.StatusCode, nil
	}

	return nil, 0, providers.NewAdapterError(a.Type(), "HTTP_ERROR", "request failed after retries", 0, true, lastErr)
}

// errorFromStatus maps a non-200 vendor response to an AdapterError.
func (a *Adapter) errorFromStatus(status int, body []byte) error {
	var parsed chatResponse
	message := fmt.Sprintf("request failed with status %d", status)
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		message = parsed.Error.Message
	}

	retryable := status == http.StatusTooManyRequests || status >= 500
	return providers.NewAdapterError(a.Type(), "API_ERROR", message, status, retryable, nil)
}
