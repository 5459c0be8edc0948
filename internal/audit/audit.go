// Package audit records proxied requests and pool lifecycle events as
// JSON Lines, rotating the file once it grows past a size limit.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType classifies an audit entry.
type EventType string

const (
	EventRequest    EventType = "request"
	EventReplace    EventType = "replace"
	EventQuarantine EventType = "quarantine"
	EventSelfHeal   EventType = "self_heal"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp  time.Time     `json:"timestamp"`
	Type       EventType     `json:"type"`
	RequestID  string        `json:"request_id,omitempty"`
	Method     string        `json:"method,omitempty"`
	Path       string        `json:"path,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	Credential string        `json:"credential,omitempty"`
	Count      int           `json:"count,omitempty"`
	Details    string        `json:"details,omitempty"`
}

const (
	defaultMaxSize = 50 * 1024 * 1024 // 50 MiB
	keepFiles      = 3                // keep current + 3 rotated files
)

// Log appends events to a file with size-based rotation.
// A nil *Log discards everything.
type Log struct {
	path    string
	maxSize int64
	file    *os.File
	size    int64
	mu      sync.Mutex
	logger  *slog.Logger
}

// Open opens (or creates) the audit log at path.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return &Log{
		path:    path,
		maxSize: defaultMaxSize,
		file:    f,
		size:    size,
		logger:  logger,
	}, nil
}

// Record appends an event. Write failures are logged and otherwise ignored.
func (l *Log) Record(event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("audit event marshal failed", "error", err)
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}
	n, err := l.file.Write(data)
	if err != nil {
		l.logger.Warn("audit log write failed", "error", err)
		return
	}
	l.size += int64(n)
	if l.maxSize > 0 && l.size >= l.maxSize {
		l.rotate()
	}
}

// rotate must be called with mu held.
func (l *Log) rotate() {
	l.file.Close()

	// Shift existing rotated files: .3 -> deleted, .2 -> .3, .1 -> .2, current -> .1
	for i := keepFiles; i > 0; i-- {
		old := fmt.Sprintf("%s.%d", l.path, i)
		if i == keepFiles {
			os.Remove(old)
		}
		if i > 1 {
			prev := fmt.Sprintf("%s.%d", l.path, i-1)
			os.Rename(prev, old)
		} else {
			os.Rename(l.path, old)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		l.logger.Warn("audit log rotation failed", "error", err)
		l.file = nil
		return
	}
	l.file = f
	l.size = 0
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Events reads all events from the audit log at path in order.
// Malformed lines are skipped.
func Events(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}

	return events, nil
}
