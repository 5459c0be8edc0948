// Package monitor provides background health monitoring for the credential pool.
package monitor

import (
	"context"
	"time"

	"github.com/firefly-engineering/keypool/internal/health"
	"github.com/firefly-engineering/keypool/internal/logging"
	"github.com/firefly-engineering/keypool/internal/pool"
)

// CheckResult holds the result of a single pool check.
type CheckResult struct {
	Status  health.Status
	Stats   pool.Stats
	Changed bool
}

// Monitor periodically checks pool health and reports transitions.
type Monitor struct {
	interval time.Duration
	stats    func() pool.Stats
	last     health.Status
	onChange func(CheckResult)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithOnChange registers a callback run whenever the pool status changes.
func WithOnChange(fn func(CheckResult)) Option {
	return func(m *Monitor) {
		m.onChange = fn
	}
}

// New creates a new Monitor.
func New(interval time.Duration, stats func() pool.Stats, opts ...Option) *Monitor {
	m := &Monitor{
		interval: interval,
		stats:    stats,
		last:     health.StatusOK,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the monitoring loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting pool monitor", "interval", m.interval)

	// Run an immediate check, then loop on interval.
	m.check()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("pool monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.check()
		}
	}
}

// check samples the pool once.
func (m *Monitor) check() CheckResult {
	st := m.stats()
	status := health.Summarize(st)
	res := CheckResult{
		Status:  status,
		Stats:   st,
		Changed: status != m.last,
	}

	logging.Debug("pool check",
		"status", status,
		"total", st.Total,
		"available", st.Available,
		"unavailable", st.Unavailable)

	if !res.Changed {
		return res
	}
	m.last = status

	switch status {
	case health.StatusEmpty:
		logging.Warn("credential pool is empty; proxy requests will fail until keys are pushed")
	case health.StatusDegraded:
		logging.Warn("all credentials quarantined; next request will reset the pool", "total", st.Total)
	case health.StatusOK:
		logging.Info("credential pool recovered", "available", st.Available, "total", st.Total)
	}

	if m.onChange != nil {
		m.onChange(res)
	}
	return res
}
