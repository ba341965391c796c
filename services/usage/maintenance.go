package usage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaintenanceInterval between background maintenance rounds.
const DefaultMaintenanceInterval = 24 * time.Hour

// Maintenance runs the periodic housekeeping the usage store needs:
// recomputing the previous day's per-provider metric snapshots and pruning
// records past the retention window. One goroutine, started once at boot.
type Maintenance struct {
	service   *Service
	metrics   *MetricsCalculator
	logger    *zap.Logger
	retention time.Duration
	interval  time.Duration
	now       func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMaintenance creates a maintenance runner. A zero interval selects the
// default daily cadence.
func NewMaintenance(service *Service, metrics *MetricsCalculator, logger *zap.Logger, retention, interval time.Duration) *Maintenance {
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}
	return &Maintenance{
		service:   service,
		metrics:   metrics,
		logger:    logger,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the background runner. The first round runs immediately
// off the caller's goroutine.
func (m *Maintenance) Start(ctx context.Context) {
	go func() {
		defer close(m.done)

		m.RunOnce(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.RunOnce(ctx)
			}
		}
	}()

	m.logger.Info("usage maintenance started",
		zap.Duration("interval", m.interval),
		zap.Duration("retention", m.retention))
}

// Stop halts the background runner and waits for it to exit.
func (m *Maintenance) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// RunOnce performs a single maintenance round: snapshot the previous UTC
// day's metrics, then prune expired records. Failures are logged and the
// round continues; the next tick retries.
func (m *Maintenance) RunOnce(ctx context.Context) {
	previousDay := m.now().UTC().AddDate(0, 0, -1)

	if err := m.metrics.RecomputeAll(ctx, previousDay); err != nil {
		m.logger.Error("failed to recompute daily metrics",
			zap.Time("day", previousDay),
			zap.Error(err))
	}

	if m.retention > 0 {
		if _, err := m.service.PruneOlderThan(ctx, m.retention); err != nil {
			m.logger.Error("failed to prune usage records", zap.Error(err))
		}
	}
}
