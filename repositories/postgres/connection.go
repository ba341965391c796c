package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/postpulse/ai-router/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Per-organization quota ledger, one row per org
		CREATE TABLE IF NOT EXISTS ai_quotas (
			org_id UUID PRIMARY KEY,
			tier VARCHAR(20) NOT NULL,
			premium_limit BIGINT NOT NULL,
			premium_used BIGINT NOT NULL DEFAULT 0,
			premium_requests BIGINT NOT NULL DEFAULT 0,
			bulk_limit BIGINT NOT NULL,
			bulk_used BIGINT NOT NULL DEFAULT 0,
			bulk_requests BIGINT NOT NULL DEFAULT 0,
			soft_limit_reached BOOLEAN NOT NULL DEFAULT FALSE,
			hard_limit_reached BOOLEAN NOT NULL DEFAULT FALSE,
			last_reset_at TIMESTAMPTZ NOT NULL,
			next_reset_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Append-only usage records
		CREATE TABLE IF NOT EXISTS ai_usage_records (
			id UUID PRIMARY KEY,
			org_id UUID NOT NULL,
			user_id UUID,
			provider VARCHAR(20) NOT NULL,
			task_type VARCHAR(30) NOT NULL,
			quality VARCHAR(20) NOT NULL,
			input_tokens BIGINT NOT NULL DEFAULT 0,
			output_tokens BIGINT NOT NULL DEFAULT 0,
			total_tokens BIGINT NOT NULL DEFAULT 0,
			estimated_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_usage_org_created
			ON ai_usage_records(org_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_usage_provider_created
			ON ai_usage_records(provider, created_at);

		-- Daily per-provider aggregates
		CREATE TABLE IF NOT EXISTS ai_provider_metrics (
			provider VARCHAR(20) NOT NULL,
			date DATE NOT NULL,
			total_requests BIGINT NOT NULL DEFAULT 0,
			successful_requests BIGINT NOT NULL DEFAULT 0,
			failed_requests BIGINT NOT NULL DEFAULT 0,
			avg_latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
			p95_latency_ms BIGINT NOT NULL DEFAULT 0,
			p99_latency_ms BIGINT NOT NULL DEFAULT 0,
			total_tokens BIGINT NOT NULL DEFAULT 0,
			total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			error_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			availability_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (provider, date)
		);

		-- Organizations, source of the subscription tier
		CREATE TABLE IF NOT EXISTS organizations (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			subscription_tier VARCHAR(20) NOT NULL DEFAULT 'FREE',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized")
	return nil
}
