package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postpulse/ai-router/middleware"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/utils"
)

const (
	defaultTrendDays = 30
	maxTrendDays     = 90
)

// UsageService defines the usage reporting operations the usage handler exposes
type UsageService interface {
	Statistics(ctx context.Context, orgID uuid.UUID, start, end time.Time, filter *models.UsageFilter) (*models.UsageStatistics, error)
	CostBreakdown(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*models.CostBreakdown, error)
	DailySummary(ctx context.Context, orgID uuid.UUID, date time.Time) (*models.DailySummary, error)
	Trends(ctx context.Context, orgID uuid.UUID, days int) ([]*models.DailySummary, error)
}

// UsageHandler handles usage reporting HTTP requests
type UsageHandler struct {
	service UsageService
	logger  *zap.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(service UsageService, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		service: service,
		logger:  logger,
	}
}

// HandleStatistics handles GET /api/ai/usage
// Optional query parameters: start, end (RFC 3339), provider, task_type, user_id
func (h *UsageHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID := middleware.GetOrgIDFromContext(ctx)
	if orgID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Missing organization")
		return
	}

	start, end, err := parsePeriod(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	filter, err := parseUsageFilter(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	stats, err := h.service.Statistics(ctx, orgID, start, end, filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, stats)
}

// HandleCostBreakdown handles GET /api/ai/usage/cost
func (h *UsageHandler) HandleCostBreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID := middleware.GetOrgIDFromContext(ctx)
	if orgID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Missing organization")
		return
	}

	start, end, err := parsePeriod(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	breakdown, err := h.service.CostBreakdown(ctx, orgID, start, end)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, breakdown)
}

// HandleDailySummary handles GET /api/ai/usage/daily
// Optional query parameter: date (YYYY-MM-DD, defaults to today)
func (h *UsageHandler) HandleDailySummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID := middleware.GetOrgIDFromContext(ctx)
	if orgID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Missing organization")
		return
	}

	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "invalid date, expected YYYY-MM-DD", nil)
			return
		}
		date = parsed
	}

	summary, err := h.service.DailySummary(ctx, orgID, date)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, summary)
}

// HandleTrends handles GET /api/ai/usage/trends
// Optional query parameter: days (defaults to 30, capped at 90)
func (h *UsageHandler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID := middleware.GetOrgIDFromContext(ctx)
	if orgID == uuid.Nil {
		_ = utils.WriteUnauthorized(w, "Missing organization")
		return
	}

	days := defaultTrendDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			_ = utils.WriteBadRequest(w, "invalid days, expected a positive integer", nil)
			return
		}
		if parsed > maxTrendDays {
			parsed = maxTrendDays
		}
		days = parsed
	}

	summaries, err := h.service.Trends(ctx, orgID, days)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"days":      days,
		"summaries": summaries,
	})
}

// parsePeriod parses the optional start and end query parameters.
// Zero values are returned when absent; the service supplies defaults.
func parsePeriod(r *http.Request) (time.Time, time.Time, error) {
	var start, end time.Time

	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, errInvalidTimestamp("start")
		}
		start = parsed
	}

	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return start, end, errInvalidTimestamp("end")
		}
		end = parsed
	}

	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, errPeriodInverted
	}

	return start, end, nil
}

// parseUsageFilter parses the optional provider, task_type and user_id filters
func parseUsageFilter(r *http.Request) (*models.UsageFilter, error) {
	filter := &models.UsageFilter{}
	used := false

	if raw := r.URL.Query().Get("provider"); raw != "" {
		provider := models.ProviderID(raw)
		if !provider.Valid() {
			return nil, errInvalidQueryValue("provider", raw)
		}
		filter.Provider = &provider
		used = true
	}

	if raw := r.URL.Query().Get("task_type"); raw != "" {
		taskType := models.TaskType(raw)
		if !taskType.Valid() {
			return nil, errInvalidQueryValue("task_type", raw)
		}
		filter.TaskType = &taskType
		used = true
	}

	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return nil, errInvalidQueryValue("user_id", raw)
		}
		filter.UserID = &userID
		used = true
	}

	if !used {
		return nil, nil
	}
	return filter, nil
}

var errPeriodInverted = errors.New("end must not be before start")

func errInvalidTimestamp(param string) error {
	return fmt.Errorf("invalid %s, expected an RFC 3339 timestamp", param)
}

func errInvalidQueryValue(param, value string) error {
	return fmt.Errorf("invalid %s: %q", param, value)
}
