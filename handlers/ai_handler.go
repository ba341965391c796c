package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postpulse/ai-router/middleware"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/services/router"
	"github.com/postpulse/ai-router/utils"
)

// CompletionRequest represents a text completion request
type CompletionRequest struct {
	Prompt        string  `json:"prompt" validate:"required"`
	TaskType      string  `json:"task_type" validate:"required"`
	Quality       string  `json:"quality,omitempty"`
	MaxTokens     int     `json:"max_tokens,omitempty" validate:"omitempty,gt=0,lte=8192"`
	Temperature   float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	SystemMessage string  `json:"system_message,omitempty"`
	IsUrgent      bool    `json:"is_urgent,omitempty"`
	MaxLatencyMs  int     `json:"max_latency_ms,omitempty" validate:"omitempty,gt=0"`
	PreferLowCost bool    `json:"prefer_low_cost,omitempty"`
	Provider      string  `json:"provider,omitempty"` // Optional: preferred provider
}

// ImageRequest represents an image generation request
type ImageRequest struct {
	Prompt     string `json:"prompt" validate:"required"`
	AsURL      bool   `json:"as_url,omitempty"`
	IsVertical bool   `json:"is_vertical,omitempty"`
}

// AIService defines the routing operations the AI handler exposes
type AIService interface {
	RouteCompletion(ctx context.Context, in *router.CompletionInput) (*router.CompletionResult, error)
	RouteImage(ctx context.Context, in *router.ImageInput) (*router.ImageResult, error)
}

// AIHandler handles AI routing HTTP requests
type AIHandler struct {
	service AIService
	logger  *zap.Logger
}

// NewAIHandler creates a new AIHandler
func NewAIHandler(service AIService, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		service: service,
		logger:  logger,
	}
}

// HandleCompletion handles POST /api/ai/completion
func (h *AIHandler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	orgID := middleware.GetOrgIDFromContext(ctx)
	if orgID == uuid.Nil {
		h.logger.Error("missing organization in context",
			zap.String("request_id", requestID))
		_ = utils.WriteUnauthorized(w, "Missing organization")
		return
	}

	var req CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	input := &router.CompletionInput{
		Prompt:            req.Prompt,
		TaskType:          models.TaskType(req.TaskType),
		Quality:           models.QualityLevel(req.Quality),
		OrgID:             orgID,
		UserID:            middleware.GetUserIDFromContext(ctx),
		MaxTokens:         req.MaxTokens,
		Temperature:       req.Temperature,
		SystemMessage:     req.SystemMessage,
		IsUrgent:          req.IsUrgent,
		MaxLatencyMs:      req.MaxLatencyMs,
		PreferLowCost:     req.PreferLowCost,
		PreferredProvider: models.ProviderID(req.Provider),
	}

	result, err := h.service.RouteCompletion(ctx, input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("completion routed",
		zap.String("request_id", requestID),
		zap.String("org_id", orgID.String()),
		zap.String("provider", string(result.Provider)),
		zap.Int64("total_tokens", result.Usage.TotalTokens),
		zap.Bool("is_fallback", result.IsFallback))

	_ = utils.WriteOK(w, result)
}

// HandleImage handles POST /api/ai/image
func (h *AIHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	orgID := middleware.GetOrgIDFromContext(ctx)
	if orgID == uuid.Nil {
		h.logger.Error("missing organization in context",
			zap.String("request_id", requestID))
		_ = utils.WriteUnauthorized(w, "Missing organization")
		return
	}

	var req ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	input := &router.ImageInput{
		Prompt:     req.Prompt,
		OrgID:      orgID,
		UserID:     middleware.GetUserIDFromContext(ctx),
		AsURL:      req.AsURL,
		IsVertical: req.IsVertical,
	}

	result, err := h.service.RouteImage(ctx, input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("image generated",
		zap.String("request_id", requestID),
		zap.String("org_id", orgID.String()),
		zap.String("provider", string(result.Provider)),
		zap.Int64("latency_ms", result.LatencyMs))

	_ = utils.WriteOK(w, result)
}
