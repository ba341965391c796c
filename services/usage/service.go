package usage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/repositories"
	"go.uber.org/zap"
)

// trendDeadbandPercent is the period-over-period change below which the
// cost trend is reported as stable.
const trendDeadbandPercent = 5.0

// topUsersLimit caps the top-users breakdown in statistics.
const topUsersLimit = 10

// Service answers read queries over the usage record history: aggregate
// statistics, cost breakdowns, daily rollups, and retention pruning.
type Service struct {
	repo   repositories.UsageRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new usage query service.
func NewService(repo repositories.UsageRepository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Statistics folds the organization's records in [start, end) into a single
// aggregate breakdown. Zero start defaults to the start of the current
// month, zero end to now.
func (s *Service) Statistics(ctx context.Context, orgID uuid.UUID, start, end time.Time, filter *models.UsageFilter) (*models.UsageStatistics, error) {
	start, end = s.defaultPeriod(start, end)

	records, err := s.repo.ListByOrg(ctx, orgID, start, end, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	stats := &models.UsageStatistics{
		OrgID:       orgID,
		PeriodStart: start,
		PeriodEnd:   end,
		ByProvider:  make(map[models.ProviderID]*models.ProviderUsage),
		ByTaskType:  make(map[models.TaskType]*models.DimensionUsage),
		ByQuality:   make(map[models.QualityLevel]*models.DimensionUsage),
	}

	providerLatency := make(map[models.ProviderID]int64)
	providerErrors := make(map[models.ProviderID]int64)
	userTotals := make(map[uuid.UUID]*models.UserUsage)

	for _, record := range records {
		stats.TotalRequests++
		stats.TotalTokens += record.TotalTokens
		stats.TotalCost += record.EstimatedCost
		if record.Success {
			stats.SuccessfulRequests++
		} else {
			stats.FailedRequests++
		}

		provider := stats.ByProvider[record.Provider]
		if provider == nil {
			provider = &models.ProviderUsage{}
			stats.ByProvider[record.Provider] = provider
		}
		provider.Requests++
		provider.Tokens += record.TotalTokens
		provider.Cost += record.EstimatedCost
		providerLatency[record.Provider] += record.LatencyMs
		if !record.Success {
			providerErrors[record.Provider]++
		}

		task := stats.ByTaskType[record.TaskType]
		if task == nil {
			task = &models.DimensionUsage{}
			stats.ByTaskType[record.TaskType] = task
		}
		task.Requests++
		task.Tokens += record.TotalTokens
		task.Cost += record.EstimatedCost

		quality := stats.ByQuality[record.Quality]
		if quality == nil {
			quality = &models.DimensionUsage{}
			stats.ByQuality[record.Quality] = quality
		}
		quality.Requests++
		quality.Tokens += record.TotalTokens
		quality.Cost += record.EstimatedCost

		if record.UserID != nil {
			user := userTotals[*record.UserID]
			if user == nil {
				user = &models.UserUsage{UserID: *record.UserID}
				userTotals[*record.UserID] = user
			}
			user.Requests++
			user.Tokens += record.TotalTokens
			user.Cost += record.EstimatedCost
		}
	}

	for id, provider := range stats.ByProvider {
		provider.AvgLatencyMs = float64(providerLatency[id]) / float64(provider.Requests)
		provider.ErrorRate = float64(providerErrors[id]) / float64(provider.Requests)
	}

	for _, user := range userTotals {
		stats.TopUsers = append(stats.TopUsers, *user)
	}
	sort.Slice(stats.TopUsers, func(i, j int) bool {
		return stats.TopUsers[i].Tokens > stats.TopUsers[j].Tokens
	})
	if len(stats.TopUsers) > topUsersLimit {
		stats.TopUsers = stats.TopUsers[:topUsersLimit]
	}

	return stats, nil
}

// CostBreakdown returns the cost view of a period: totals by provider and
// task type, a linear monthly projection, and the trend versus the
// immediately preceding period of equal length. Changes within the
// deadband report as stable.
func (s *Service) CostBreakdown(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*models.CostBreakdown, error) {
	start, end = s.defaultPeriod(start, end)

	stats, err := s.Statistics(ctx, orgID, start, end, nil)
	if err != nil {
		return nil, err
	}

	daysInPeriod := end.Sub(start).Hours() / 24
	if daysInPeriod < 1 {
		daysInPeriod = 1
	}
	projected := stats.TotalCost / daysInPeriod * 30

	previousStart := start.Add(-end.Sub(start))
	previousStats, err := s.Statistics(ctx, orgID, previousStart, start, nil)
	if err != nil {
		return nil, err
	}

	changePercent := 0.0
	if previousStats.TotalCost > 0 {
		changePercent = (stats.TotalCost - previousStats.TotalCost) / previousStats.TotalCost * 100
	}

	direction := models.TrendStable
	if math.Abs(changePercent) > trendDeadbandPercent {
		if changePercent > 0 {
			direction = models.TrendUp
		} else {
			direction = models.TrendDown
		}
	}

	breakdown := &models.CostBreakdown{
		Total:                stats.TotalCost,
		ByProvider:           make(map[models.ProviderID]float64),
		ByTaskType:           make(map[models.TaskType]float64),
		ProjectedMonthlyCost: projected,
		Trend: models.CostTrend{
			Direction:  direction,
			Percentage: math.Abs(changePercent),
		},
	}
	for id, provider := range stats.ByProvider {
		breakdown.ByProvider[id] = provider.Cost
	}
	for task, usage := range stats.ByTaskType {
		breakdown.ByTaskType[task] = usage.Cost
	}

	return breakdown, nil
}

// DailySummary rolls up one UTC day for an organization.
func (s *Service) DailySummary(ctx context.Context, orgID uuid.UUID, date time.Time) (*models.DailySummary, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)

	records, err := s.repo.ListByOrg(ctx, orgID, day, next, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	summary := &models.DailySummary{
		Date:       day,
		ByProvider: make(map[models.ProviderID]*models.DimensionUsage),
	}
	for _, record := range records {
		summary.TotalRequests++
		summary.TotalTokens += record.TotalTokens
		summary.TotalCost += record.EstimatedCost

		provider := summary.ByProvider[record.Provider]
		if provider == nil {
			provider = &models.DimensionUsage{}
			summary.ByProvider[record.Provider] = provider
		}
		provider.Requests++
		provider.Tokens += record.TotalTokens
		provider.Cost += record.EstimatedCost
	}

	return summary, nil
}

// Trends returns one DailySummary per day over the trailing window.
func (s *Service) Trends(ctx context.Context, orgID uuid.UUID, days int) ([]*models.DailySummary, error) {
	if days <= 0 {
		days = 30
	}

	now := s.now().UTC()
	trends := make([]*models.DailySummary, 0, days)
	for i := days - 1; i >= 0; i-- {
		summary, err := s.DailySummary(ctx, orgID, now.AddDate(0, 0, -i))
		if err != nil {
			return nil, err
		}
		trends = append(trends, summary)
	}

	return trends, nil
}

// PruneOlderThan deletes records older than the retention cutoff and
// returns how many were removed.
func (s *Service) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)

	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage records: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("pruned usage records",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

func (s *Service) defaultPeriod(start, end time.Time) (time.Time, time.Time) {
	now := s.now().UTC()
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return start, end
}
