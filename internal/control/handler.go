// Package control serves the management surface: credential replacement,
// status, health and metrics.
package control

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/firefly-engineering/keypool/internal/health"
	"github.com/firefly-engineering/keypool/internal/metrics"
	"github.com/firefly-engineering/keypool/internal/middleware"
	"github.com/firefly-engineering/keypool/internal/pool"
)

// maxUpdateBytes bounds the update-keys body.
const maxUpdateBytes = 1 << 20

// Pool is the part of the credential pool the control surface needs.
type Pool interface {
	Replace(values []string)
	Stats() pool.Stats
	Snapshot() []pool.Credential
	Values() []string
}

// KeyStore persists the credential list after an update.
type KeyStore interface {
	Save(keys []string) error
}

// Handler serves the control endpoints.
type Handler struct {
	// mu orders replace-then-save so the cache always holds the latest list.
	mu sync.Mutex

	pool    Pool
	store   KeyStore
	health  *health.Reporter
	metrics *metrics.Metrics
	ports   Ports
	logger  *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithStore persists every accepted update.
func WithStore(s KeyStore) Option {
	return func(h *Handler) {
		h.store = s
	}
}

// WithHealth sets the health reporter.
func WithHealth(r *health.Reporter) Option {
	return func(h *Handler) {
		h.health = r
	}
}

// WithMetrics exposes m at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithPorts sets the ports reported by /status.
func WithPorts(proxy, control int) Option {
	return func(h *Handler) {
		h.ports = Ports{Proxy: proxy, Control: control}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler creates a Handler over p.
func NewHandler(p Pool, opts ...Option) *Handler {
	h := &Handler{
		pool:   p,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.health == nil {
		h.health = health.NewReporter(p.Stats)
	}
	return h
}

// NewServeMux registers the control routes and wraps them with CORS,
// logging and recovery middleware.
func NewServeMux(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /update-keys", h.UpdateKeys)
	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", h.metrics.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := middleware.Recover(h.logger, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusInternalServerError, "internal server error")
	}, mux)
	wrapped = middleware.Logging(h.logger, wrapped)
	wrapped = middleware.RequestID(wrapped)

	return middleware.CORS("Content-Type", wrapped)
}

// UpdateKeys replaces the pool with the posted credential list.
func (h *Handler) UpdateKeys(w http.ResponseWriter, r *http.Request) {
	var req UpdateKeysRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	keys, err := normalizeKeys(req.Keys)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.replace(keys)

	writeJSON(w, http.StatusOK, UpdateKeysResponse{
		Success: true,
		Count:   len(keys),
		Stats:   h.pool.Stats(),
	})
}

func (h *Handler) replace(keys []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.pool.Replace(keys)
	h.logger.Info("credentials updated", "count", len(keys))

	if h.store == nil {
		return
	}
	if err := h.store.Save(h.pool.Values()); err != nil {
		h.logger.Warn("failed to persist credentials", "error", err)
	}
}

func normalizeKeys(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, errors.New("keys must be a non-empty array")
	}
	out := make([]string, len(in))
	for i, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, errors.New("keys must not contain empty values")
		}
		out[i] = k
	}
	return out, nil
}

// Status reports pool counts and per-credential state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.pool.Snapshot()
	creds := make([]CredentialStatus, 0, len(snap))
	for _, c := range snap {
		creds = append(creds, toCredentialStatus(c))
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Running:     true,
		Stats:       h.pool.Stats(),
		Ports:       h.ports,
		Credentials: creds,
	})
}

// Health is the liveness probe; it always answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health.Report())
}

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: message})
}
