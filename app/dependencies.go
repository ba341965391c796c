package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/postpulse/ai-router/auth"
	"github.com/postpulse/ai-router/config"
	"github.com/postpulse/ai-router/middleware"
	"github.com/postpulse/ai-router/providers"
	"github.com/postpulse/ai-router/providers/claude"
	"github.com/postpulse/ai-router/providers/glm"
	"github.com/postpulse/ai-router/providers/mistral"
	"github.com/postpulse/ai-router/providers/openai"
	"github.com/postpulse/ai-router/repositories"
	"github.com/postpulse/ai-router/repositories/postgres"
	"github.com/postpulse/ai-router/services/decision"
	"github.com/postpulse/ai-router/services/fallback"
	"github.com/postpulse/ai-router/services/health"
	"github.com/postpulse/ai-router/services/quota"
	"github.com/postpulse/ai-router/services/router"
	"github.com/postpulse/ai-router/services/usage"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repositories
	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories

	// Providers
	Registry *providers.Registry

	// Services
	HealthMonitor  *health.Monitor
	QuotaService   *quota.Service
	UsageRecorder  *usage.Recorder
	UsageService   *usage.Service
	Metrics        *usage.MetricsCalculator
	Maintenance    *usage.Maintenance
	DecisionEngine *decision.Engine
	Orchestrator   *fallback.Orchestrator
	Router         *router.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.initServices(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection pool and repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.DB()

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Repos = factory.NewRepositories()
	return nil
}

// initProviders registers every configured provider adapter
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()

	register := func(name string, adapter providers.Adapter, apiKey string) error {
		if apiKey == "" {
			d.Logger.Warn("provider not configured, skipping", zap.String("provider", name))
			return nil
		}
		if err := registry.Register(adapter); err != nil {
			return err
		}
		d.Logger.Info("registered provider", zap.String("provider", name))
		return nil
	}

	if err := register("openai", openai.New(providerConfig(cfg.Providers.OpenAI)), cfg.Providers.OpenAI.APIKey); err != nil {
		return err
	}
	if err := register("glm", glm.New(providerConfig(cfg.Providers.GLM)), cfg.Providers.GLM.APIKey); err != nil {
		return err
	}
	if err := register("claude", claude.New(providerConfig(cfg.Providers.Claude)), cfg.Providers.Claude.APIKey); err != nil {
		return err
	}
	if err := register("mistral", mistral.New(providerConfig(cfg.Providers.Mistral)), cfg.Providers.Mistral.APIKey); err != nil {
		return err
	}

	if registry.Count() == 0 {
		d.Logger.Warn("no AI providers configured, routing will fail until one is added")
	}

	d.Registry = registry
	return nil
}

// initServices wires the routing services together
func (d *Dependencies) initServices(cfg *config.Config) {
	d.HealthMonitor = health.NewMonitor(d.Registry, d.Logger, cfg.Health.CheckInterval)

	d.QuotaService = quota.NewService(d.Repos.Quotas, d.Repos.Organizations, d.Logger)

	d.UsageRecorder = usage.NewRecorder(d.Repos.Usage, d.Logger, usage.RecorderConfig{
		BufferSize:  cfg.Usage.BufferSize,
		WorkerCount: cfg.Usage.WorkerCount,
	})
	d.UsageService = usage.NewService(d.Repos.Usage, d.Logger)
	d.Metrics = usage.NewMetricsCalculator(d.Repos.Usage, d.Repos.Metrics, d.Logger)
	d.Maintenance = usage.NewMaintenance(d.UsageService, d.Metrics, d.Logger,
		cfg.Usage.Retention(), usage.DefaultMaintenanceInterval)

	d.DecisionEngine = decision.NewEngine(d.HealthMonitor, d.QuotaService, d.Logger)
	d.Orchestrator = fallback.NewOrchestrator(d.Registry, d.HealthMonitor, d.Logger)

	d.Router = router.NewService(
		d.DecisionEngine,
		d.Orchestrator,
		d.QuotaService,
		d.UsageRecorder,
		d.UsageService,
		d.HealthMonitor,
		d.Registry,
		d.Logger,
	)
}

// initAuth wires the JWT validator and auth middleware
func (d *Dependencies) initAuth(cfg *config.Config) {
	validator := auth.NewValidator(auth.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
	})
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
}

// Start launches the background workers
func (d *Dependencies) Start(ctx context.Context) error {
	d.HealthMonitor.Start(ctx)

	if err := d.UsageRecorder.Start(); err != nil {
		return fmt.Errorf("failed to start usage recorder: %w", err)
	}

	d.Maintenance.Start(ctx)
	return nil
}

// Shutdown stops background workers and closes the database pool
func (d *Dependencies) Shutdown(timeout time.Duration) {
	d.HealthMonitor.Stop()
	d.Maintenance.Stop()

	if err := d.UsageRecorder.Stop(timeout); err != nil {
		d.Logger.Warn("usage recorder did not drain cleanly", zap.Error(err))
	}

	if err := d.RepoFactory.Close(); err != nil {
		d.Logger.Warn("failed to close database", zap.Error(err))
	}

	d.Logger.Info("dependencies shut down")
}

// providerConfig maps one provider's config section to an adapter config
func providerConfig(cfg config.ProviderConfig) providers.Config {
	return providers.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}
}
