package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postpulse/ai-router/middleware"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/utils"
)

// QuotaService defines the quota operations the quota handler exposes
type QuotaService interface {
	GetQuotaStatus(ctx context.Context, orgID uuid.UUID) (*models.QuotaStatus, error)
	Recommendations(ctx context.Context, orgID uuid.UUID) ([]string, error)
}

// QuotaHandler handles quota HTTP requests
type QuotaHandler struct {
	service QuotaService
	logger  *zap.Logger
}

// NewQuotaHandler creates a new QuotaHandler
func NewQuotaHandler(service QuotaService, logger *zap.Logger) *QuotaHandler {
	return &QuotaHandler{
		service: service,
		logger:  logger,
	}
}

// HandleQuotaStatus handles GET /api/ai/quota
func (h *QuotaHandler) HandleQuotaStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID := middleware.GetOrgIDFromContext(ctx)
	if orgID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Missing organization")
		return
	}

	status, err := h.service.GetQuotaStatus(ctx, orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, status)
}

// HandleQuotaRecommendations handles GET /api/ai/quota/recommendations
func (h *QuotaHandler) HandleQuotaRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID := middleware.GetOrgIDFromContext(ctx)
	if orgID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Missing organization")
		return
	}

	recommendations, err := h.service.Recommendations(ctx, orgID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"recommendations": recommendations,
	})
}
