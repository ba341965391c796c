package health

import (
	"context"
	"sync"
	"time"

	"github.com/postpulse/ai-router/models"
	"github.com/postpulse/ai-router/providers"
	"go.uber.org/zap"
)

const (
	// DefaultInterval between background health check rounds.
	DefaultInterval = 60 * time.Second

	// DefaultCheckTimeout bounds a single provider probe.
	DefaultCheckTimeout = 5 * time.Second
)

// Monitor tracks the health of every registered provider. The status table
// is written by one background goroutine per interval and read concurrently
// by request-serving paths; reads never trigger a network probe.
//
// A provider with no completed check yet reports unhealthy (fail closed).
type Monitor struct {
	registry     *providers.Registry
	logger       *zap.Logger
	interval     time.Duration
	checkTimeout time.Duration

	mu       sync.RWMutex
	statuses map[models.ProviderID]models.ProviderHealthStatus

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMonitor creates a health monitor over the registry. A zero interval
// selects the default.
func NewMonitor(registry *providers.Registry, logger *zap.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		registry:     registry,
		logger:       logger,
		interval:     interval,
		checkTimeout: DefaultCheckTimeout,
		statuses:     make(map[models.ProviderID]models.ProviderHealthStatus),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs one synchronous check round, then launches the periodic
// background checker.
func (m *Monitor) Start(ctx context.Context) {
	m.CheckAll(ctx)

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckAll(ctx)
			}
		}
	}()

	m.logger.Info("provider health monitoring started",
		zap.Duration("interval", m.interval),
		zap.Int("providers", m.registry.Count()))
}

// Stop halts the background checker and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// CheckAll probes every registered provider and returns the refreshed table.
func (m *Monitor) CheckAll(ctx context.Context) map[models.ProviderID]models.ProviderHealthStatus {
	ids := m.registry.List()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id models.ProviderID) {
			defer wg.Done()
			m.CheckOne(ctx, id)
		}(id)
	}
	wg.Wait()

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[models.ProviderID]models.ProviderHealthStatus, len(m.statuses))
	for id, status := range m.statuses {
		out[id] = status
	}
	return out
}

// CheckOne probes a single provider on demand and records the outcome.
func (m *Monitor) CheckOne(ctx context.Context, id models.ProviderID) models.ProviderHealthStatus {
	status := models.ProviderHealthStatus{
		Provider:    id,
		LastChecked: time.Now().UTC(),
	}

	adapter, err := m.registry.Get(id)
	if err != nil {
		status.LastError = err.Error()
		m.record(status)
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	startTime := time.Now()
	healthy := adapter.IsHealthy(checkCtx)
	status.LatencyMs = time.Since(startTime).Milliseconds()
	status.Healthy = healthy
	if !healthy {
		status.LastError = "health probe failed"
		m.logger.Warn("provider unhealthy",
			zap.String("provider", string(id)),
			zap.Int64("latency_ms", status.LatencyMs))
	}

	m.record(status)
	return status
}

func (m *Monitor) record(status models.ProviderHealthStatus) {
	m.mu.Lock()
	m.statuses[status.Provider] = status
	m.mu.Unlock()
}

// IsHealthy reports the last-known health of a provider. Providers that have
// never completed a check report false.
func (m *Monitor) IsHealthy(id models.ProviderID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[id]
	return ok && status.Healthy
}

// Status returns the cached status for a provider, if any check has run.
func (m *Monitor) Status(id models.ProviderID) (models.ProviderHealthStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[id]
	return status, ok
}

// HealthyProviders returns the providers currently marked healthy, in the
// canonical provider order.
func (m *Monitor) HealthyProviders() []models.ProviderID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var healthy []models.ProviderID
	for _, id := range models.AllProviders {
		if status, ok := m.statuses[id]; ok && status.Healthy {
			healthy = append(healthy, id)
		}
	}
	return healthy
}

// FastestHealthy returns the healthy provider with the lowest measured
// latency, or false when none is healthy.
func (m *Monitor) FastestHealthy() (models.ProviderID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best models.ProviderID
	bestLatency := int64(-1)
	for id, status := range m.statuses {
		if !status.Healthy {
			continue
		}
		if bestLatency < 0 || status.LatencyMs < bestLatency {
			best = id
			bestLatency = status.LatencyMs
		}
	}
	return best, bestLatency >= 0
}

// SystemHealth returns the aggregate view across all registered providers.
func (m *Monitor) SystemHealth() models.SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := models.SystemHealth{TotalCount: m.registry.Count()}
	for _, id := range models.AllProviders {
		status, ok := m.statuses[id]
		if !ok {
			continue
		}
		out.Providers = append(out.Providers, status)
		if status.Healthy {
			out.AvailableCount++
		}
	}
	out.Healthy = out.AvailableCount > 0
	return out
}
