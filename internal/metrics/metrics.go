// Package metrics exposes Prometheus collectors for the proxy and the
// credential pool.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firefly-engineering/keypool/internal/pool"
)

const namespace = "keypool"

// Request outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeStreamed      = "streamed"
	OutcomeUpstream      = "upstream_error"
	OutcomeProxyError    = "proxy_error"
	OutcomeNoKeys        = "no_keys"
	OutcomeClientGone    = "client_gone"
	OutcomeStreamAborted = "stream_aborted"
	OutcomeBadRequest    = "bad_request"
)

// Attempt classes.
const (
	AttemptSuccess   = "2xx"
	AttemptRetryable = "retryable"
	AttemptClient    = "4xx"
	AttemptServer    = "5xx"
	AttemptTransport = "transport"
)

// Metrics holds a private registry and the keypool collectors.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the collectors. stats, if non-nil, backs the pool gauges.
func New(stats func() pool.Stats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of proxied requests by outcome.",
			},
			[]string{"outcome"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "attempts_total",
				Help:      "Total number of upstream attempts by result class.",
			},
			[]string{"class"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests, including streamed bodies.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.attempts,
		m.duration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	if stats != nil {
		m.registry.MustRegister(
			poolGauge("total", func(s pool.Stats) int { return s.Total }, stats),
			poolGauge("available", func(s pool.Stats) int { return s.Available }, stats),
			poolGauge("unavailable", func(s pool.Stats) int { return s.Unavailable }, stats),
		)
	}

	return m
}

func poolGauge(state string, pick func(pool.Stats) int, stats func() pool.Stats) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "pool",
			Name:        "credentials",
			Help:        "Number of credentials in the pool by state.",
			ConstLabels: prometheus.Labels{"state": state},
		},
		func() float64 { return float64(pick(stats())) },
	)
}

// ObserveRequest records a finished proxied request.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveAttempt records one upstream attempt.
func (m *Metrics) ObserveAttempt(class string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(class).Inc()
}

// AttemptClass maps an upstream status code to an attempt class.
func AttemptClass(status int) string {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return AttemptRetryable
	case status >= 200 && status < 300:
		return AttemptSuccess
	case status >= 500:
		return AttemptServer
	default:
		return AttemptClient
	}
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
