package health

import (
	"time"

	"github.com/firefly-engineering/keypool/internal/pool"
)

// Status summarises pool health.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusEmpty    Status = "empty"
)

// Report is the body of the health endpoint.
type Report struct {
	Status    Status     `json:"status"`
	Keys      pool.Stats `json:"keys"`
	Uptime    float64    `json:"uptime"`
	Timestamp time.Time  `json:"timestamp"`
}

// Reporter builds health reports for a running process.
type Reporter struct {
	stats   func() pool.Stats
	started time.Time
	now     func() time.Time
}

// NewReporter creates a Reporter; uptime is measured from this call.
func NewReporter(stats func() pool.Stats) *Reporter {
	return &Reporter{
		stats:   stats,
		started: time.Now(),
		now:     time.Now,
	}
}

// Report returns the current health report.
func (r *Reporter) Report() Report {
	st := r.stats()
	now := r.now()
	return Report{
		Status:    Summarize(st),
		Keys:      st,
		Uptime:    now.Sub(r.started).Seconds(),
		Timestamp: now.UTC(),
	}
}

// Summarize maps pool stats to a Status.
func Summarize(st pool.Stats) Status {
	switch {
	case st.Total == 0:
		return StatusEmpty
	case st.Available == 0:
		return StatusDegraded
	default:
		return StatusOK
	}
}
