package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/firefly-engineering/keypool/internal/config"
)

// Attempt is one request seen by the fake upstream.
type Attempt struct {
	Method     string
	Path       string
	RawQuery   string
	Credential string
	Header     http.Header
	Body       []byte
}

// Responder answers the n-th attempt (0-based).
type Responder func(w http.ResponseWriter, r *http.Request, n int)

// Upstream is a scripted fake of the upstream API.
type Upstream struct {
	*httptest.Server

	mu       sync.Mutex
	attempts []Attempt
	respond  Responder
}

// NewUpstream starts a fake upstream that is closed when the test ends.
func NewUpstream(t testing.TB, respond Responder) *Upstream {
	t.Helper()

	u := &Upstream{respond: respond}
	u.Server = httptest.NewServer(http.HandlerFunc(u.handle))
	t.Cleanup(u.Close)
	return u
}

func (u *Upstream) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	u.mu.Lock()
	n := len(u.attempts)
	u.attempts = append(u.attempts, Attempt{
		Method:     r.Method,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Credential: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		Header:     r.Header.Clone(),
		Body:       body,
	})
	respond := u.respond
	u.mu.Unlock()

	if respond == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	respond(w, r, n)
}

// Attempts returns a copy of the recorded attempts.
func (u *Upstream) Attempts() []Attempt {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Attempt, len(u.attempts))
	copy(out, u.attempts)
	return out
}

// Count returns the number of attempts received.
func (u *Upstream) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.attempts)
}

// Credentials returns the credential used by each attempt, in order.
func (u *Upstream) Credentials() []string {
	var out []string
	for _, a := range u.Attempts() {
		out = append(out, a.Credential)
	}
	return out
}

// RespondStatus answers with code and a raw body.
func RespondStatus(code int, body string) Responder {
	return func(w http.ResponseWriter, r *http.Request, n int) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		io.WriteString(w, body)
	}
}

// RespondJSON answers with code and v encoded as JSON.
func RespondJSON(code int, v any) Responder {
	return func(w http.ResponseWriter, r *http.Request, n int) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(v)
	}
}

// RespondSSE answers 200 with the given chunks as a server-sent event
// stream, flushing after each one.
func RespondSSE(chunks ...string) Responder {
	return func(w http.ResponseWriter, r *http.Request, n int) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		rc := http.NewResponseController(w)
		for _, c := range chunks {
			io.WriteString(w, c)
			rc.Flush()
		}
	}
}

// Sequence uses rs[n] for the n-th attempt and repeats the last one.
func Sequence(rs ...Responder) Responder {
	return func(w http.ResponseWriter, r *http.Request, n int) {
		if n >= len(rs) {
			n = len(rs) - 1
		}
		rs[n](w, r, n)
	}
}

// ByCredential picks a responder by the bearer credential of the attempt.
func ByCredential(m map[string]Responder, fallback Responder) Responder {
	return func(w http.ResponseWriter, r *http.Request, n int) {
		cred := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if rs, ok := m[cred]; ok {
			rs(w, r, n)
			return
		}
		fallback(w, r, n)
	}
}

// Config returns defaults rooted in a temporary state directory, with
// ephemeral listen ports and upstream as the target.
func Config(t testing.TB, upstream string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.StateDir = filepath.Join(t.TempDir(), "state")
	cfg.ProxyListen = "127.0.0.1:0"
	cfg.ControlListen = "127.0.0.1:0"
	if upstream != "" {
		cfg.UpstreamURL = upstream
	}
	return cfg
}
