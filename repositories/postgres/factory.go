package postgres

import (
	"github.com/postpulse/ai-router/config"
	"github.com/postpulse/ai-router/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	return &RepositoryFactory{db: db, logger: logger}, nil
}

// DB exposes the underlying connection pool for health checks
func (f *RepositoryFactory) DB() *DB {
	return f.db
}

// Close closes the underlying connection pool
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Quotas:        NewQuotaRepository(f.db, f.logger),
		Usage:         NewUsageRepository(f.db, f.logger),
		Metrics:       NewMetricsRepository(f.db, f.logger),
		Organizations: NewOrganizationRepository(f.db, f.logger),
	}
}
