package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/postpulse/ai-router/middleware"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/services"
	"github.com/postpulse/ai-router/services/router"
)

type stubAIService struct {
	completion      *router.CompletionResult
	completionErr   error
	completionInput *router.CompletionInput
	image           *router.ImageResult
	imageErr        error
	imageInput      *router.ImageInput
}

func (s *stubAIService) RouteCompletion(ctx context.Context, in *router.CompletionInput) (*router.CompletionResult, error) {
	s.completionInput = in
	if s.completionErr != nil {
		return nil, s.completionErr
	}
	return s.completion, nil
}

func (s *stubAIService) RouteImage(ctx context.Context, in *router.ImageInput) (*router.ImageResult, error) {
	s.imageInput = in
	if s.imageErr != nil {
		return nil, s.imageErr
	}
	return s.image, nil
}

func authedRequest(t *testing.T, method, target string, body interface{}, orgID uuid.UUID) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	return req.WithContext(middleware.WithOrgID(req.Context(), orgID))
}

func TestHandleCompletion(t *testing.T) {
	orgID := uuid.New()

	t.Run("success", func(t *testing.T) {
		service := &stubAIService{completion: &router.CompletionResult{
			Content:  "generated text",
			Provider: models.ProviderGLM,
			Success:  true,
			Usage:    router.CompletionUsage{TotalTokens: 120},
		}}
		h := NewAIHandler(service, zap.NewNop())

		req := authedRequest(t, http.MethodPost, "/api/ai/completion", CompletionRequest{
			Prompt:   "write a caption",
			TaskType: string(models.TaskCaptionRewrite),
			Quality:  string(models.QualityHigh),
		}, orgID)
		rec := httptest.NewRecorder()

		h.HandleCompletion(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, service.completionInput)
		assert.Equal(t, orgID, service.completionInput.OrgID)
		assert.Equal(t, models.TaskCaptionRewrite, service.completionInput.TaskType)
		assert.Equal(t, models.QualityHigh, service.completionInput.Quality)
		assert.Contains(t, rec.Body.String(), "generated text")
	})

	t.Run("missing org", func(t *testing.T) {
		h := NewAIHandler(&stubAIService{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodPost, "/api/ai/completion", bytes.NewBufferString("{}"))
		rec := httptest.NewRecorder()

		h.HandleCompletion(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid json body", func(t *testing.T) {
		h := NewAIHandler(&stubAIService{}, zap.NewNop())

		req := httptest.NewRequest(http.MethodPost, "/api/ai/completion", bytes.NewBufferString("{not json"))
		req = req.WithContext(middleware.WithOrgID(req.Context(), orgID))
		rec := httptest.NewRecorder()

		h.HandleCompletion(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing prompt rejected by validation", func(t *testing.T) {
		service := &stubAIService{}
		h := NewAIHandler(service, zap.NewNop())

		req := authedRequest(t, http.MethodPost, "/api/ai/completion", CompletionRequest{
			TaskType: string(models.TaskAutocomplete),
		}, orgID)
		rec := httptest.NewRecorder()

		h.HandleCompletion(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Nil(t, service.completionInput)
	})

	t.Run("quota exhausted maps to 429", func(t *testing.T) {
		service := &stubAIService{
			completionErr: services.ErrQuotaExhausted.WithDetail("reason", "no quota available"),
		}
		h := NewAIHandler(service, zap.NewNop())

		req := authedRequest(t, http.MethodPost, "/api/ai/completion", CompletionRequest{
			Prompt:   "hello",
			TaskType: string(models.TaskGeneric),
		}, orgID)
		rec := httptest.NewRecorder()

		h.HandleCompletion(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "no quota available")
	})

	t.Run("provider failure maps to 502", func(t *testing.T) {
		service := &stubAIService{completionErr: services.ErrAllProvidersFailed}
		h := NewAIHandler(service, zap.NewNop())

		req := authedRequest(t, http.MethodPost, "/api/ai/completion", CompletionRequest{
			Prompt:   "hello",
			TaskType: string(models.TaskGeneric),
		}, orgID)
		rec := httptest.NewRecorder()

		h.HandleCompletion(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("invalid task type maps to 400", func(t *testing.T) {
		service := &stubAIService{completionErr: services.ErrInvalidTaskType}
		h := NewAIHandler(service, zap.NewNop())

		req := authedRequest(t, http.MethodPost, "/api/ai/completion", CompletionRequest{
			Prompt:   "hello",
			TaskType: "TRANSLATION",
		}, orgID)
		rec := httptest.NewRecorder()

		h.HandleCompletion(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleImage(t *testing.T) {
	orgID := uuid.New()

	t.Run("success", func(t *testing.T) {
		service := &stubAIService{image: &router.ImageResult{
			Image:    "https://images.example.com/result.png",
			Provider: models.ProviderOpenAI,
			Format:   "url",
			Model:    "dall-e-3",
			Success:  true,
		}}
		h := NewAIHandler(service, zap.NewNop())

		req := authedRequest(t, http.MethodPost, "/api/ai/image", ImageRequest{
			Prompt: "sunset over mountains",
			AsURL:  true,
		}, orgID)
		rec := httptest.NewRecorder()

		h.HandleImage(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, service.imageInput)
		assert.Equal(t, orgID, service.imageInput.OrgID)
		assert.True(t, service.imageInput.AsURL)
		assert.Contains(t, rec.Body.String(), "dall-e-3")
	})

	t.Run("missing prompt", func(t *testing.T) {
		h := NewAIHandler(&stubAIService{}, zap.NewNop())

		req := authedRequest(t, http.MethodPost, "/api/ai/image", ImageRequest{}, orgID)
		rec := httptest.NewRecorder()

		h.HandleImage(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("quota exhausted maps to 429", func(t *testing.T) {
		service := &stubAIService{imageErr: services.ErrQuotaExhausted}
		h := NewAIHandler(service, zap.NewNop())

		req := authedRequest(t, http.MethodPost, "/api/ai/image", ImageRequest{Prompt: "a dog"}, orgID)
		rec := httptest.NewRecorder()

		h.HandleImage(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})
}
