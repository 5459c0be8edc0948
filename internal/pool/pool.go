package pool

import (
	"errors"
	"sync"
	"time"
)

// DefaultFailureThreshold is the number of consecutive failures after which
// a credential is quarantined.
const DefaultFailureThreshold = 3

// ErrNoCredentials is returned by Select when the pool is empty.
var ErrNoCredentials = errors.New("no credentials configured")

// Credential is a point-in-time copy of one rotation slot.
type Credential struct {
	Value               string
	Available           bool
	ConsecutiveFailures int
	LastUsedAt          time.Time
}

// Redacted returns the credential value masked for logs and status output.
func (c Credential) Redacted() string {
	return Redact(c.Value)
}

// Stats holds aggregate availability counts.
type Stats struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Unavailable int `json:"unavailable"`
}

// slot is the rotation state kept for one credential index.
type slot struct {
	available bool
	failures  int
	lastUsed  time.Time
}

// Pool rotates requests across a set of credentials.
// All methods are safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	values    []string
	slots     []slot
	cursor    int
	threshold int
	observers []func(Event)
	now       func() time.Time
}

// Option configures a Pool.
type Option func(*Pool)

// WithFailureThreshold sets how many consecutive failures quarantine a credential.
func WithFailureThreshold(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.threshold = n
		}
	}
}

// WithObserver registers a callback for pool lifecycle events.
// Observers run after the pool lock has been released.
func WithObserver(fn func(Event)) Option {
	return func(p *Pool) {
		if fn != nil {
			p.observers = append(p.observers, fn)
		}
	}
}

// WithClock overrides the time source used for last-used stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

// New creates a pool seeded with values, all available.
func New(values []string, opts ...Option) *Pool {
	p := &Pool{
		threshold: DefaultFailureThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.values, p.slots = build(values)
	return p
}

func build(values []string) ([]string, []slot) {
	v := make([]string, len(values))
	copy(v, values)
	s := make([]slot, len(values))
	for i := range s {
		s[i].available = true
	}
	return v, s
}

// Select returns the next available credential in round-robin order.
//
// When every credential is quarantined the pool resets all of them to
// available and returns the one at the cursor. An empty pool yields
// ErrNoCredentials.
func (p *Pool) Select() (Credential, error) {
	var events []Event
	defer func() { p.emit(events) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.values)
	if n == 0 {
		return Credential{}, ErrNoCredentials
	}

	for probes := 0; probes < n; probes++ {
		i := p.cursor
		p.cursor = (p.cursor + 1) % n
		if p.slots[i].available {
			return p.take(i), nil
		}
	}

	// Full circle without a hit leaves the cursor where the scan started.
	for i := range p.slots {
		p.slots[i].available = true
		p.slots[i].failures = 0
	}
	events = append(events, Event{Type: EventSelfHealed, Count: n})

	i := p.cursor
	p.cursor = (p.cursor + 1) % n
	return p.take(i), nil
}

// take stamps slot i and returns its copy. Must be called with mu held.
func (p *Pool) take(i int) Credential {
	p.slots[i].lastUsed = p.now()
	return p.credential(i)
}

func (p *Pool) credential(i int) Credential {
	s := p.slots[i]
	return Credential{
		Value:               p.values[i],
		Available:           s.available,
		ConsecutiveFailures: s.failures,
		LastUsedAt:          s.lastUsed,
	}
}

// ReportSuccess clears the failure counter of the first credential matching value.
func (p *Pool) ReportSuccess(value string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i := p.indexOf(value); i >= 0 {
		p.slots[i].failures = 0
	}
}

// ReportFailure counts a credential-attributable failure against the first
// credential matching value, quarantining it once the threshold is reached.
func (p *Pool) ReportFailure(value string) {
	var events []Event
	defer func() { p.emit(events) }()

	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.indexOf(value)
	if i < 0 {
		return
	}
	s := &p.slots[i]
	s.failures++
	if s.available && s.failures >= p.threshold {
		s.available = false
		events = append(events, Event{Type: EventQuarantined, Value: value, Failures: s.failures})
	}
}

// indexOf must be called with mu held.
func (p *Pool) indexOf(value string) int {
	for i, v := range p.values {
		if v == value {
			return i
		}
	}
	return -1
}

// Replace discards the current credentials and installs values, all
// available, with the cursor reset.
func (p *Pool) Replace(values []string) {
	v, s := build(values)

	p.mu.Lock()
	p.values, p.slots = v, s
	p.cursor = 0
	p.mu.Unlock()

	p.emit([]Event{{Type: EventReplaced, Count: len(v)}})
}

// Stats returns aggregate counts.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{Total: len(p.slots)}
	for _, s := range p.slots {
		if s.available {
			st.Available++
		}
	}
	st.Unavailable = st.Total - st.Available
	return st
}

// Snapshot returns a copy of every credential in rotation order.
func (p *Pool) Snapshot() []Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Credential, len(p.values))
	for i := range p.values {
		out[i] = p.credential(i)
	}
	return out
}

// Values returns the credential strings in rotation order.
func (p *Pool) Values() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.values))
	copy(out, p.values)
	return out
}

// Len returns the number of credentials.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.values)
}

func (p *Pool) emit(events []Event) {
	for _, ev := range events {
		for _, fn := range p.observers {
			fn(ev)
		}
	}
}
