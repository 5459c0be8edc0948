package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/firefly-engineering/keypool/internal/audit"
	"github.com/firefly-engineering/keypool/internal/metrics"
	"github.com/firefly-engineering/keypool/internal/middleware"
	"github.com/firefly-engineering/keypool/internal/pool"
)

// DefaultMaxAttempts caps upstream attempts per inbound request.
const DefaultMaxAttempts = 3

// Selector is the part of the credential pool the router needs.
type Selector interface {
	Select() (pool.Credential, error)
	ReportSuccess(value string)
	ReportFailure(value string)
	Len() int
}

// Config holds router configuration
type Config struct {
	// UpstreamURL is the base URL; the inbound path is appended verbatim.
	UpstreamURL string

	// MaxAttempts caps attempts per request, further capped by pool size.
	MaxAttempts int

	// AttemptTimeout bounds the wait for upstream response headers (0 = none).
	AttemptTimeout time.Duration

	// MaxBodyBytes limits inbound request bodies (0 = unlimited).
	MaxBodyBytes int64

	// Transport overrides the upstream round tripper. AttemptTimeout is
	// ignored when set.
	Transport http.RoundTripper

	Logger  *slog.Logger
	Audit   *audit.Log
	Metrics *metrics.Metrics
}

// Router is an http.Handler forwarding requests upstream with credential
// rotation.
type Router struct {
	config *Config
	pool   Selector
	target *url.URL
	client *http.Client
}

// New creates a router over sel.
func New(cfg *Config, sel Selector) (*Router, error) {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if target.Scheme != "https" && target.Scheme != "http" {
		return nil, fmt.Errorf("upstream URL must use http or https (got %q)", target.Scheme)
	}
	if target.Host == "" {
		return nil, fmt.Errorf("upstream URL must include a host")
	}

	c := *cfg
	if c.MaxAttempts < 1 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	transport := c.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = c.AttemptTimeout
		transport = t
	}

	return &Router{
		config: &c,
		pool:   sel,
		target: target,
		client: &http.Client{Transport: transport},
	}, nil
}

// outcome accumulates what happened to one inbound request.
type outcome struct {
	kind       string
	status     int
	attempts   int
	credential string
}

// ServeHTTP implements http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res := &outcome{kind: metrics.OutcomeProxyError}
	defer func() { rt.finish(r, res, start) }()

	size := rt.pool.Len()
	if size == 0 {
		rt.config.Logger.Warn("no API keys configured", "path", r.URL.Path)
		rt.fail(w, res, metrics.OutcomeNoKeys, http.StatusServiceUnavailable, KindNoKeys, "No API keys configured")
		return
	}

	body, err := rt.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.fail(w, res, metrics.OutcomeBadRequest, http.StatusRequestEntityTooLarge, KindRequestTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		rt.fail(w, res, metrics.OutcomeBadRequest, http.StatusBadRequest, KindInvalidRequest, "Failed to read request body")
		return
	}

	streaming := isStreamRequest(r.URL.Path, body)
	attempts := min(rt.config.MaxAttempts, size)

	var lastErr error
	for i := 0; i < attempts; i++ {
		if r.Context().Err() != nil {
			res.kind = metrics.OutcomeClientGone
			return
		}

		cred, err := rt.pool.Select()
		if err != nil {
			rt.fail(w, res, metrics.OutcomeNoKeys, http.StatusServiceUnavailable, KindNoAvailableKeys, "No available API keys")
			return
		}
		res.attempts++
		res.credential = cred.Value

		req, err := rt.upstreamRequest(r, body, cred.Value, streaming)
		if err != nil {
			rt.fail(w, res, metrics.OutcomeProxyError, http.StatusInternalServerError, KindProxy, err.Error())
			return
		}

		resp, err := rt.client.Do(req)
		if err != nil {
			lastErr = err
			rt.config.Metrics.ObserveAttempt(metrics.AttemptTransport)
			rt.config.Logger.Warn("upstream request failed",
				"attempt", i+1,
				"credential", cred.Redacted(),
				"error", err)
			continue
		}

		class := metrics.AttemptClass(resp.StatusCode)
		rt.config.Metrics.ObserveAttempt(class)

		switch class {
		case metrics.AttemptSuccess:
			rt.pool.ReportSuccess(cred.Value)
			rt.relaySuccess(w, resp, streaming, res)
			return

		case metrics.AttemptRetryable:
			rt.pool.ReportFailure(cred.Value)
			rt.config.Logger.Warn("credential rejected by upstream",
				"status", resp.StatusCode,
				"attempt", i+1,
				"credential", cred.Redacted())
			if i < attempts-1 {
				drain(resp)
				continue
			}
			rt.relay(w, resp, res)
			return

		default:
			rt.relay(w, resp, res)
			return
		}
	}

	msg := "Upstream request failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	if r.Context().Err() != nil {
		res.kind = metrics.OutcomeClientGone
		return
	}
	rt.fail(w, res, metrics.OutcomeProxyError, http.StatusInternalServerError, KindProxy, msg)
}

func (rt *Router) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil, nil
	}
	var src io.Reader = r.Body
	if rt.config.MaxBodyBytes > 0 {
		src = http.MaxBytesReader(w, r.Body, rt.config.MaxBodyBytes)
	}
	return io.ReadAll(src)
}

// upstreamURL joins the target base with the inbound path and query.
func (rt *Router) upstreamURL(in *url.URL) string {
	u := *rt.target
	u.Path = strings.TrimSuffix(rt.target.Path, "/") + in.Path
	u.RawPath = ""
	u.RawQuery = in.RawQuery
	u.Fragment = ""
	return u.String()
}

func (rt *Router) upstreamRequest(r *http.Request, body []byte, credential string, streaming bool) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, rt.upstreamURL(r.URL), rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	req.Header = r.Header.Clone()
	for _, h := range []string{
		"Host",
		"Content-Length",
		"Connection",
		"Proxy-Connection",
		"Proxy-Authenticate",
		"Proxy-Authorization",
		"Keep-Alive",
		"Te",
		"Trailer",
		"Transfer-Encoding",
		"Upgrade",
		"Accept-Encoding",
		middleware.RequestIDHeader,
	} {
		req.Header.Del(h)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	if !streaming && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// relaySuccess relays a 2xx response: piped for event streams, checked and
// re-emitted for JSON, verbatim otherwise.
func (rt *Router) relaySuccess(w http.ResponseWriter, resp *http.Response, streaming bool, res *outcome) {
	defer resp.Body.Close()

	if streaming && isEventStream(resp) {
		res.status = resp.StatusCode
		res.kind = metrics.OutcomeStreamed
		n, err := pipe(resp.Request.Context(), w, resp)
		switch {
		case errors.Is(err, errClientGone):
			res.kind = metrics.OutcomeClientGone
		case err != nil:
			res.kind = metrics.OutcomeStreamAborted
			rt.config.Logger.Warn("upstream stream aborted", "bytes", n, "error", err)
		}
		return
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		rt.fail(w, res, metrics.OutcomeProxyError, http.StatusBadGateway, KindProxy, "Failed to read upstream response")
		return
	}

	ct := resp.Header.Get("Content-Type")
	if len(data) > 0 && isJSON(ct) && !json.Valid(data) {
		rt.config.Logger.Warn("upstream returned malformed JSON", "status", resp.StatusCode)
		rt.fail(w, res, metrics.OutcomeProxyError, http.StatusBadGateway, KindProxy, "Upstream returned malformed JSON")
		return
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	w.Write(data)

	res.status = resp.StatusCode
	res.kind = metrics.OutcomeSuccess
}

// relay copies an upstream error response verbatim. An empty error body is
// replaced by an upstream_error body carrying the same status.
func (rt *Router) relay(w http.ResponseWriter, resp *http.Response, res *outcome) {
	defer resp.Body.Close()

	res.status = resp.StatusCode
	res.kind = metrics.OutcomeUpstream

	data, err := io.ReadAll(resp.Body)
	if err == nil && len(data) == 0 && resp.StatusCode >= http.StatusBadRequest {
		WriteError(w, resp.StatusCode, KindUpstream,
			fmt.Sprintf("Upstream API error (HTTP %d)", resp.StatusCode))
		return
	}

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	w.Write(data)
}

func (rt *Router) fail(w http.ResponseWriter, res *outcome, kind string, status int, errKind, message string) {
	res.kind = kind
	res.status = status
	WriteError(w, status, errKind, message)
}

func (rt *Router) finish(r *http.Request, res *outcome, start time.Time) {
	d := time.Since(start)
	rt.config.Metrics.ObserveRequest(res.kind, d)

	cred := ""
	if res.credential != "" {
		cred = pool.Redact(res.credential)
	}
	reqID := middleware.RequestIDFrom(r.Context())

	rt.config.Logger.Info("proxied request",
		"request_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", res.status,
		"outcome", res.kind,
		"attempts", res.attempts,
		"duration", d.Round(time.Millisecond))

	rt.config.Audit.Record(audit.Event{
		Timestamp:  start,
		Type:       audit.EventRequest,
		RequestID:  reqID,
		Method:     r.Method,
		Path:       r.URL.Path,
		StatusCode: res.status,
		Attempts:   res.attempts,
		Duration:   d,
		Credential: cred,
		Details:    res.kind,
	})
}

var skipResponseHeaders = map[string]bool{
	"Content-Length":    true,
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Trailer":           true,
	"Upgrade":           true,
	"X-Request-Id":      true,
}

// copyHeaders copies upstream response headers, leaving CORS to the proxy's
// own middleware.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		if skipResponseHeaders[k] || strings.HasPrefix(k, "Access-Control-") {
			continue
		}
		dst.Del(k)
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	resp.Body.Close()
}
