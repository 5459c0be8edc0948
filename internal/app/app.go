package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/firefly-engineering/keypool/internal/audit"
	"github.com/firefly-engineering/keypool/internal/cache"
	"github.com/firefly-engineering/keypool/internal/config"
	"github.com/firefly-engineering/keypool/internal/control"
	kperrors "github.com/firefly-engineering/keypool/internal/errors"
	"github.com/firefly-engineering/keypool/internal/health"
	"github.com/firefly-engineering/keypool/internal/keysource"
	"github.com/firefly-engineering/keypool/internal/logging"
	"github.com/firefly-engineering/keypool/internal/metrics"
	"github.com/firefly-engineering/keypool/internal/middleware"
	"github.com/firefly-engineering/keypool/internal/monitor"
	"github.com/firefly-engineering/keypool/internal/pool"
	"github.com/firefly-engineering/keypool/internal/proxy"
)

// ShutdownTimeout bounds graceful shutdown of both surfaces.
const ShutdownTimeout = 5 * time.Second

// App holds the daemon dependencies
type App struct {
	Config  *config.Config
	Pool    *pool.Pool
	Cache   *cache.Store
	Audit   *audit.Log
	Metrics *metrics.Metrics
	Health  *health.Reporter
	Logger  *slog.Logger

	router    *proxy.Router
	transport http.RoundTripper

	proxyLn   net.Listener
	controlLn net.Listener
}

// Option is a function that configures the App
type Option func(*App)

// WithLogger sets a custom logger
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithTransport sets the upstream round tripper
func WithTransport(rt http.RoundTripper) Option {
	return func(a *App) {
		a.transport = rt
	}
}

// New builds an App from cfg and seeds its pool.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logging.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}

	store, err := cache.Open(cfg.StateDir, cfg.CacheFile)
	if err != nil {
		return nil, kperrors.CacheError("open", err)
	}
	a.Cache = store

	if cfg.AuditLog != "" {
		al, err := audit.Open(cfg.AuditLog, a.Logger)
		if err != nil {
			return nil, kperrors.ConfigError("failed to open audit log", err)
		}
		a.Audit = al
	}

	a.Pool = pool.New(nil,
		pool.WithFailureThreshold(cfg.FailureThreshold),
		pool.WithObserver(a.observe),
	)
	a.Metrics = metrics.New(a.Pool.Stats)
	a.Health = health.NewReporter(a.Pool.Stats)

	router, err := proxy.New(&proxy.Config{
		UpstreamURL:    cfg.UpstreamURL,
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		Transport:      a.transport,
		Logger:         a.Logger,
		Audit:          a.Audit,
		Metrics:        a.Metrics,
	}, a.Pool)
	if err != nil {
		a.Close()
		return nil, kperrors.ConfigError("invalid proxy configuration", err)
	}
	a.router = router

	a.seed(ctx)
	return a, nil
}

// seed fills the pool from the cache, or from the keys command when the
// cache is empty. Failures leave the pool empty; keys can still be pushed.
func (a *App) seed(ctx context.Context) {
	keys, err := a.Cache.Load()
	switch {
	case errors.Is(err, cache.ErrCorrupt):
		a.Logger.Warn("removing corrupt credential cache", "path", a.Cache.Path(), "error", err)
		if rerr := a.Cache.Remove(); rerr != nil {
			a.Logger.Warn("failed to remove credential cache", "error", rerr)
		}
	case err != nil:
		a.Logger.Warn("ignoring unreadable credential cache", "path", a.Cache.Path(), "error", err)
	}
	if len(keys) > 0 {
		a.Logger.Info("loaded credentials from cache", "count", len(keys), "path", a.Cache.Path())
		a.Pool.Replace(keys)
		return
	}

	if a.Config.KeysCommand == "" {
		a.Logger.Info("no cached credentials; waiting for keys on the control surface")
		return
	}

	keys, err = keysource.Run(ctx, a.Config.KeysCommand)
	if err != nil {
		a.Logger.Warn("keys command failed", "error", err)
		return
	}
	a.Logger.Info("loaded credentials from keys command", "count", len(keys))
	a.Pool.Replace(keys)
	if err := a.Cache.Save(keys); err != nil {
		a.Logger.Warn("failed to persist credentials", "error", err)
	}
}

// Reload re-reads the cache and replaces the pool. An empty cache keeps the
// current credentials.
func (a *App) Reload() (int, error) {
	keys, err := a.Cache.Load()
	if err != nil {
		return 0, kperrors.CacheError("load", err)
	}
	if len(keys) == 0 {
		return 0, kperrors.CacheError("load", errors.New("cache is empty"))
	}
	a.Pool.Replace(keys)
	return len(keys), nil
}

func (a *App) observe(ev pool.Event) {
	switch ev.Type {
	case pool.EventReplaced:
		a.Logger.Info("credential pool replaced", "count", ev.Count)
		a.Audit.Record(audit.Event{Type: audit.EventReplace, Count: ev.Count})
	case pool.EventQuarantined:
		a.Logger.Warn("credential quarantined",
			"credential", pool.Redact(ev.Value),
			"failures", ev.Failures)
		a.Audit.Record(audit.Event{
			Type:       audit.EventQuarantine,
			Credential: pool.Redact(ev.Value),
			Count:      ev.Failures,
		})
	case pool.EventSelfHealed:
		a.Logger.Warn("all credentials were quarantined; pool reset", "count", ev.Count)
		a.Audit.Record(audit.Event{Type: audit.EventSelfHeal, Count: ev.Count})
	}
}

// ProxyHandler returns the API-facing surface.
func (a *App) ProxyHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(a.Health.Report())
	})
	mux.Handle("/v1/", a.router)

	wrapped := middleware.Recover(a.Logger, func(w http.ResponseWriter, r *http.Request) {
		proxy.WriteError(w, http.StatusInternalServerError, proxy.KindProxy, "Internal proxy error")
	}, mux)
	wrapped = middleware.Logging(a.Logger, wrapped)
	wrapped = middleware.RequestID(wrapped)

	return middleware.CORS("Content-Type, Authorization", wrapped)
}

// ControlHandler returns the management surface reporting the given ports.
func (a *App) ControlHandler(proxyPort, controlPort int) http.Handler {
	return control.NewServeMux(control.NewHandler(a.Pool,
		control.WithStore(a.Cache),
		control.WithHealth(a.Health),
		control.WithMetrics(a.Metrics),
		control.WithPorts(proxyPort, controlPort),
		control.WithLogger(a.Logger),
	))
}

// Listen binds both surfaces.
func (a *App) Listen() error {
	pl, err := net.Listen("tcp", a.Config.ProxyListen)
	if err != nil {
		return kperrors.ServeError("proxy", err)
	}
	cl, err := net.Listen("tcp", a.Config.ControlListen)
	if err != nil {
		pl.Close()
		return kperrors.ServeError("control", err)
	}
	a.proxyLn, a.controlLn = pl, cl
	return nil
}

// ProxyAddr returns the bound proxy address after Listen.
func (a *App) ProxyAddr() string {
	if a.proxyLn == nil {
		return ""
	}
	return a.proxyLn.Addr().String()
}

// ControlAddr returns the bound control address after Listen.
func (a *App) ControlAddr() string {
	if a.controlLn == nil {
		return ""
	}
	return a.controlLn.Addr().String()
}

// Run listens and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Listen(); err != nil {
		return err
	}
	return a.Serve(ctx)
}

// Serve serves both surfaces and the pool monitor on the listeners bound by
// Listen. When ctx is cancelled the servers drain for up to ShutdownTimeout.
func (a *App) Serve(ctx context.Context) error {
	if a.proxyLn == nil || a.controlLn == nil {
		return kperrors.ServeError("proxy", errors.New("listeners not bound"))
	}

	proxySrv := &http.Server{
		Handler:           a.ProxyHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	controlSrv := &http.Server{
		Handler:           a.ControlHandler(port(a.proxyLn), port(a.controlLn)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.Logger.Info("serving",
		"proxy", a.ProxyAddr(),
		"control", a.ControlAddr(),
		"upstream", a.Config.UpstreamURL,
		"credentials", a.Pool.Len())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := proxySrv.Serve(a.proxyLn); !errors.Is(err, http.ErrServerClosed) {
			return kperrors.ServeError("proxy", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := controlSrv.Serve(a.controlLn); !errors.Is(err, http.ErrServerClosed) {
			return kperrors.ServeError("control", err)
		}
		return nil
	})
	g.Go(func() error {
		mon := monitor.New(a.Config.MonitorInterval, a.Pool.Stats)
		_ = mon.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		for _, srv := range []*http.Server{proxySrv, controlSrv} {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.Logger.Warn("forcing server close", "error", err)
				_ = srv.Close()
			}
		}
		return nil
	})

	return g.Wait()
}

// Close releases the audit log.
func (a *App) Close() error {
	return a.Audit.Close()
}

func port(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}
