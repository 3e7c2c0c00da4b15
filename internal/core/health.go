package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// cachedHealthState is the explicit cache behind the monitor. The source
// system kept these as module-level variables; here the state is owned and
// lifecycle-managed by the monitor itself.
type cachedHealthState struct {
	available bool
	checkedAt time.Time
}

// HealthMonitorConfig holds configuration for the health monitor.
type HealthMonitorConfig struct {
	// CacheInterval is how long a probe result (success or failure) is reused.
	CacheInterval time.Duration
	// ProbeTimeout bounds the liveness probe itself.
	ProbeTimeout time.Duration
}

// DefaultHealthMonitorConfig returns a HealthMonitorConfig with sensible defaults.
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		CacheInterval: 60 * time.Second,
		ProbeTimeout:  1 * time.Second,
	}
}

// HealthMonitor caches the result of a lightweight store liveness probe so
// hot-path code never pays a full round-trip on every call. Failed probes are
// cached too; a down store is not hammered.
type HealthMonitor struct {
	store  DurableStore
	cfg    HealthMonitorConfig
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state cachedHealthState
}

// HealthMonitorOptions bundles dependencies for NewHealthMonitor.
type HealthMonitorOptions struct {
	Store  DurableStore
	Config HealthMonitorConfig
	Logger *slog.Logger

	// Now is an optional clock override for tests.
	Now func() time.Time
}

// NewHealthMonitor creates a new HealthMonitor.
func NewHealthMonitor(opts HealthMonitorOptions) *HealthMonitor {
	cfg := opts.Config
	if cfg.CacheInterval <= 0 {
		cfg.CacheInterval = DefaultHealthMonitorConfig().CacheInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultHealthMonitorConfig().ProbeTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &HealthMonitor{
		store:  opts.Store,
		cfg:    cfg,
		logger: logger,
		now:    now,
	}
}

var _ HealthChecker = (*HealthMonitor)(nil)

// IsAvailable returns the cached probe result, refreshing it only when the
// cache interval has elapsed. The probe runs under its own short timeout.
func (m *HealthMonitor) IsAvailable(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.state.checkedAt.IsZero() && now.Sub(m.state.checkedAt) < m.cfg.CacheInterval {
		return m.state.available
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	err := m.store.Ping(probeCtx)
	m.state = cachedHealthState{
		available: err == nil,
		checkedAt: now,
	}

	if err != nil {
		m.logger.WarnContext(ctx, "store health probe failed",
			"error", err,
			"cached_until", now.Add(m.cfg.CacheInterval))
	}

	return m.state.available
}
