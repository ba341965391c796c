package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/providers"
	"github.com/postpulse/ai-router/services"
	"go.uber.org/zap"
)

// Token accounting constants for image generation. Images have no real
// token count, so quota draws a fixed equivalent.
const (
	imageTokenEquivalent = 1000
	imageCost            = 0.04
	imageModel           = "dall-e-3"
)

// Decider makes routing decisions.
type Decider interface {
	Decide(ctx context.Context, rc *models.RoutingContext, estimatedTokens int64) (*models.RoutingDecision, error)
}

// Executor runs a request against the provider chain.
type Executor interface {
	Execute(ctx context.Context, req *providers.CompletionRequest, primary, fallback models.ProviderID, maxAttempts int) *providers.CompletionResponse
}

// QuotaManager is the slice of the quota service the facade consumes.
type QuotaManager interface {
	CheckAdmission(ctx context.Context, orgID uuid.UUID, class models.ProviderClass, tokensNeeded int64) (*models.QuotaCheckResult, error)
	ApplyUsage(ctx context.Context, orgID uuid.UUID, class models.ProviderClass, tokensUsed int64) error
	GetQuotaStatus(ctx context.Context, orgID uuid.UUID) (*models.QuotaStatus, error)
}

// UsageSink accepts usage records for asynchronous persistence.
type UsageSink interface {
	Record(record *models.UsageRecord) error
}

// UsageReader answers usage queries for the read endpoints.
type UsageReader interface {
	Statistics(ctx context.Context, orgID uuid.UUID, start, end time.Time, filter *models.UsageFilter) (*models.UsageStatistics, error)
	CostBreakdown(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*models.CostBreakdown, error)
	DailySummary(ctx context.Context, orgID uuid.UUID, date time.Time) (*models.DailySummary, error)
}

// SystemHealthReader exposes the aggregate provider health view.
type SystemHealthReader interface {
	SystemHealth() models.SystemHealth
}

// Service is the single entry point for AI requests. It composes the
// decision engine, the fallback orchestrator, quota accounting, and usage
// recording behind one facade.
type Service struct {
	decider  Decider
	executor Executor
	quota    QuotaManager
	usage    UsageSink
	reader   UsageReader
	health   SystemHealthReader
	registry *providers.Registry
	logger   *zap.Logger
}

// NewService creates the router facade.
func NewService(
	decider Decider,
	executor Executor,
	quota QuotaManager,
	usage UsageSink,
	reader UsageReader,
	health SystemHealthReader,
	registry *providers.Registry,
	logger *zap.Logger,
) *Service {
	return &Service{
		decider:  decider,
		executor: executor,
		quota:    quota,
		usage:    usage,
		reader:   reader,
		health:   health,
		registry: registry,
		logger:   logger,
	}
}

// CompletionInput is the facade-level request for text completion.
type CompletionInput struct {
	Prompt            string
	TaskType          models.TaskType
	Quality           models.QualityLevel
	OrgID             uuid.UUID
	UserID            *uuid.UUID
	MaxTokens         int
	Temperature       float64
	SystemMessage     string
	IsUrgent          bool
	MaxLatencyMs      int
	PreferLowCost     bool
	PreferredProvider models.ProviderID
}

// CompletionResult is the facade-level response for text completion.
type CompletionResult struct {
	Content    string                  `json:"content"`
	Provider   models.ProviderID       `json:"provider"`
	TaskType   models.TaskType         `json:"task_type"`
	Quality    models.QualityLevel     `json:"quality"`
	Usage      CompletionUsage         `json:"usage"`
	Routing    *models.RoutingDecision `json:"routing"`
	LatencyMs  int64                   `json:"latency_ms"`
	Model      string                  `json:"model,omitempty"`
	IsFallback bool                    `json:"is_fallback"`
	Success    bool                    `json:"success"`
	Error      string                  `json:"error,omitempty"`
}

// CompletionUsage is the token and cost accounting of one completion.
type CompletionUsage struct {
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	TotalTokens   int64   `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// ImageInput is the facade-level request for image generation.
type ImageInput struct {
	Prompt     string
	OrgID      uuid.UUID
	UserID     *uuid.UUID
	AsURL      bool
	IsVertical bool
}

// ImageResult is the facade-level response for image generation.
type ImageResult struct {
	Image         string            `json:"image"`
	Provider      models.ProviderID `json:"provider"`
	Format        string            `json:"format"`
	Model         string            `json:"model"`
	EstimatedCost float64           `json:"estimated_cost"`
	LatencyMs     int64             `json:"latency_ms"`
	Success       bool              `json:"success"`
}

// RouteCompletion validates the request, makes a routing decision, executes
// it with fallback, and accounts for usage. Usage recording and quota
// updates never fail the request; their errors are logged and swallowed.
func (s *Service) RouteCompletion(ctx context.Context, in *CompletionInput) (*CompletionResult, error) {
	if err := s.validateCompletion(in); err != nil {
		return nil, err
	}

	if in.Quality == "" {
		in.Quality = in.TaskType.Config().DefaultQuality
	}

	rc := &models.RoutingContext{
		TaskType:          in.TaskType,
		Quality:           in.Quality,
		OrgID:             in.OrgID,
		UserID:            in.UserID,
		IsUrgent:          in.IsUrgent,
		MaxLatencyMs:      in.MaxLatencyMs,
		PreferLowCost:     in.PreferLowCost,
		PreferredProvider: in.PreferredProvider,
	}

	estimatedTokens := estimateTokens(in.Prompt, in.MaxTokens)

	decision, err := s.decider.Decide(ctx, rc, estimatedTokens)
	if err != nil {
		return nil, fmt.Errorf("routing decision failed: %w", err)
	}

	if !decision.QuotaAvailable {
		return nil, services.ErrQuotaExhausted.WithDetail("reason", decision.Reason)
	}

	req := &providers.CompletionRequest{
		Prompt:        in.Prompt,
		Quality:       in.Quality,
		MaxTokens:     in.MaxTokens,
		Temperature:   in.Temperature,
		SystemMessage: in.SystemMessage,
		OrgID:         in.OrgID,
		UserID:        in.UserID,
	}

	response := s.executor.Execute(ctx, req, decision.Provider, decision.FallbackProvider, 0)

	s.recordUsage(in, response)
	if response.TotalTokens > 0 {
		if err := s.quota.ApplyUsage(ctx, in.OrgID, response.Provider.Class(), response.TotalTokens); err != nil {
			s.logger.Error("failed to apply quota usage",
				zap.String("org_id", in.OrgID.String()),
				zap.Error(err))
		}
	}

	result := &CompletionResult{
		Content:  response.Content,
		Provider: response.Provider,
		TaskType: in.TaskType,
		Quality:  in.Quality,
		Usage: CompletionUsage{
			InputTokens:   response.InputTokens,
			OutputTokens:  response.OutputTokens,
			TotalTokens:   response.TotalTokens,
			EstimatedCost: response.EstimatedCost,
		},
		Routing:    decision,
		LatencyMs:  response.LatencyMs,
		Model:      response.Model,
		IsFallback: response.IsFallback,
		Success:    response.Success,
		Error:      response.Error,
	}

	if !response.Success {
		return result, services.ErrAllProvidersFailed.WithDetail("detail", response.Error)
	}
	return result, nil
}

// RouteImage generates an image. Image generation always routes to OpenAI
// and draws a fixed token equivalent from the premium budget.
func (s *Service) RouteImage(ctx context.Context, in *ImageInput) (*ImageResult, error) {
	if in.Prompt == "" {
		return nil, services.ErrEmptyPrompt
	}

	check, err := s.quota.CheckAdmission(ctx, in.OrgID, models.ClassPremium, imageTokenEquivalent)
	if err != nil {
		return nil, fmt.Errorf("quota check failed: %w", err)
	}
	if !check.Allowed {
		return nil, services.ErrQuotaExhausted.WithDetail("reason", check.Reason)
	}

	adapter, err := s.registry.Get(models.ProviderOpenAI)
	if err != nil {
		return nil, services.ErrNoHealthyProvider
	}
	generator, ok := adapter.(providers.ImageGenerator)
	if !ok {
		return nil, services.ErrNoHealthyProvider
	}

	start := time.Now()
	image, err := generator.GenerateImage(ctx, in.Prompt, providers.ImageOptions{
		IsURL:      in.AsURL,
		IsVertical: in.IsVertical,
	})
	latencyMs := time.Since(start).Milliseconds()

	success := err == nil
	record := &models.UsageRecord{
		OrgID:         in.OrgID,
		UserID:        in.UserID,
		Provider:      models.ProviderOpenAI,
		TaskType:      models.TaskImageGeneration,
		Quality:       models.QualityPremium,
		TotalTokens:   imageTokenEquivalent,
		EstimatedCost: imageCost,
		LatencyMs:     latencyMs,
		Success:       success,
	}
	if err != nil {
		record.ErrorMessage = err.Error()
		record.TotalTokens = 0
		record.EstimatedCost = 0
	}
	s.record(record)

	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	if applyErr := s.quota.ApplyUsage(ctx, in.OrgID, models.ClassPremium, imageTokenEquivalent); applyErr != nil {
		s.logger.Error("failed to apply quota usage",
			zap.String("org_id", in.OrgID.String()),
			zap.Error(applyErr))
	}

	format := "base64"
	if in.AsURL {
		format = "url"
	}
	return &ImageResult{
		Image:         image,
		Provider:      models.ProviderOpenAI,
		Format:        format,
		Model:         imageModel,
		EstimatedCost: imageCost,
		LatencyMs:     latencyMs,
		Success:       true,
	}, nil
}

// GetQuotaStatus returns the caller's quota view.
func (s *Service) GetQuotaStatus(ctx context.Context, orgID uuid.UUID) (*models.QuotaStatus, error) {
	return s.quota.GetQuotaStatus(ctx, orgID)
}

// GetUsageStatistics returns the aggregate usage view for a window.
func (s *Service) GetUsageStatistics(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*models.UsageStatistics, error) {
	return s.reader.Statistics(ctx, orgID, start, end, nil)
}

// GetCostBreakdown returns the cost view for a window.
func (s *Service) GetCostBreakdown(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*models.CostBreakdown, error) {
	return s.reader.CostBreakdown(ctx, orgID, start, end)
}

// GetDailySummary returns the rollup for one day.
func (s *Service) GetDailySummary(ctx context.Context, orgID uuid.UUID, date time.Time) (*models.DailySummary, error) {
	return s.reader.DailySummary(ctx, orgID, date)
}

// GetSystemHealth returns the aggregate provider health view.
func (s *Service) GetSystemHealth() models.SystemHealth {
	return s.health.SystemHealth()
}

func (s *Service) validateCompletion(in *CompletionInput) error {
	if in.Prompt == "" {
		return services.ErrEmptyPrompt
	}
	if in.TaskType == "" {
		return services.ErrInvalidTaskType
	}
	if in.Quality != "" && !in.Quality.Valid() {
		return services.ErrInvalidQuality
	}
	if in.PreferredProvider != "" && !in.PreferredProvider.Valid() {
		return services.ErrInvalidProvider
	}
	return nil
}

func (s *Service) recordUsage(in *CompletionInput, response *providers.CompletionResponse) {
	record := &models.UsageRecord{
		OrgID:         in.OrgID,
		UserID:        in.UserID,
		Provider:      response.Provider,
		TaskType:      in.TaskType,
		Quality:       in.Quality,
		InputTokens:   response.InputTokens,
		OutputTokens:  response.OutputTokens,
		TotalTokens:   response.TotalTokens,
		EstimatedCost: response.EstimatedCost,
		LatencyMs:     response.LatencyMs,
		Success:       response.Success,
		ErrorMessage:  response.Error,
	}
	s.record(record)
}

func (s *Service) record(record *models.UsageRecord) {
	if err := s.usage.Record(record); err != nil {
		s.logger.Warn("failed to record usage",
			zap.String("org_id", record.OrgID.String()),
			zap.Error(err))
	}
}

// estimateTokens approximates the request's token demand before execution:
// roughly four characters of prompt per input token plus the requested
// output budget.
func estimateTokens(prompt string, maxTokens int) int64 {
	input := int64((len(prompt) + 3) / 4)
	output := int64(maxTokens)
	if output <= 0 {
		output = 500
	}
	return input + output
}
