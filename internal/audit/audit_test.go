package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLog_RecordAndEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	l, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().Truncate(time.Millisecond)
	l.Record(Event{Timestamp: now, Type: EventReplace, Count: 3})
	l.Record(Event{
		Timestamp:  now.Add(time.Second),
		Type:       EventRequest,
		RequestID:  "req-1",
		Method:     "POST",
		Path:       "/v1/chat/completions",
		StatusCode: 200,
		Attempts:   2,
		Credential: "sk-1234567...",
	})
	l.Record(Event{Type: EventQuarantine, Credential: "sk-1234567..."})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	events, err := Events(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != EventReplace || events[0].Count != 3 {
		t.Errorf("events[0] = %+v", events[0])
	}
	if !events[0].Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", events[0].Timestamp, now)
	}
	if events[1].Attempts != 2 || events[1].Path != "/v1/chat/completions" {
		t.Errorf("events[1] = %+v", events[1])
	}
	if events[2].Timestamp.IsZero() {
		t.Error("zero timestamp should be filled in")
	}
}

func TestLog_NilIsNoop(t *testing.T) {
	var l *Log
	l.Record(Event{Type: EventRequest})
	if err := l.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}

func TestLog_RecordAfterClose(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "audit.jsonl"), nil)
	if err != nil {
		t.Fatal(err)
	}
	l.Close()
	l.Record(Event{Type: EventRequest}) // must not panic
}

func TestLog_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	l.maxSize = 200

	for i := 0; i < 20; i++ {
		l.Record(Event{Type: EventRequest, RequestID: fmt.Sprintf("req-%d", i), Path: "/v1/models"})
	}
	l.Close()

	for i := 1; i <= keepFiles; i++ {
		if _, err := os.Stat(fmt.Sprintf("%s.%d", path, i)); err != nil {
			t.Errorf("rotated file .%d missing: %v", i, err)
		}
	}
	if _, err := os.Stat(fmt.Sprintf("%s.%d", path, keepFiles+1)); !os.IsNotExist(err) {
		t.Errorf("only %d rotated files should be kept", keepFiles)
	}
}

func TestEvents_SkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	content := strings.Join([]string{
		`{"type":"request","path":"/v1/models"}`,
		`not json`,
		``,
		`{"type":"self_heal","count":2}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	events, err := Events(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].Type != EventSelfHeal || events[1].Count != 2 {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestEvents_Missing(t *testing.T) {
	events, err := Events(filepath.Join(t.TempDir(), "none.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if events != nil {
		t.Errorf("expected nil events, got %v", events)
	}
}
