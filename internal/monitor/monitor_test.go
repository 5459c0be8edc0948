package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/firefly-engineering/keypool/internal/health"
	"github.com/firefly-engineering/keypool/internal/pool"
)

func TestMonitor_New(t *testing.T) {
	p := pool.New(nil)

	m := New(30*time.Second, p.Stats)
	if m.interval != 30*time.Second {
		t.Errorf("interval = %v, want %v", m.interval, 30*time.Second)
	}
	if m.last != health.StatusOK {
		t.Errorf("initial status = %q, want %q", m.last, health.StatusOK)
	}
	if m.onChange != nil {
		t.Error("onChange should default to nil")
	}
}

func TestMonitor_Transitions(t *testing.T) {
	p := pool.New([]string{"sk-1"}, pool.WithFailureThreshold(1))
	var changes []health.Status
	m := New(time.Second, p.Stats, WithOnChange(func(r CheckResult) {
		changes = append(changes, r.Status)
	}))

	if res := m.check(); res.Changed {
		t.Errorf("healthy pool should not report a change, got %+v", res)
	}

	p.ReportFailure("sk-1")
	if res := m.check(); !res.Changed || res.Status != health.StatusDegraded {
		t.Errorf("expected change to degraded, got %+v", res)
	}
	if res := m.check(); res.Changed {
		t.Error("repeated degraded check should not report a change")
	}

	p.Replace(nil)
	m.check()
	p.Replace([]string{"sk-2"})
	m.check()

	want := []health.Status{health.StatusDegraded, health.StatusEmpty, health.StatusOK}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %q, want %q", i, changes[i], want[i])
		}
	}
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	var mu sync.Mutex
	var seen []health.Status
	m := New(10*time.Millisecond, pool.New(nil).Stats, WithOnChange(func(r CheckResult) {
		mu.Lock()
		seen = append(seen, r.Status)
		mu.Unlock()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := m.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Run() error = %v, want %v", err, context.DeadlineExceeded)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != health.StatusEmpty {
		t.Errorf("expected a single empty transition, got %v", seen)
	}
}
