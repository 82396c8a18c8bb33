// Package audit appends driver lifecycle events to a file as
// newline-delimited JSON.
//
// Each run of ghostwire adds entries for every spawn, failed spawn and stop.
// The file is opened for appending and never truncated.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/benaskins/ghostwire/internal/service"
)

// Action describes what happened.
type Action string

const (
	ActionStarted     Action = "driver_started"
	ActionStartFailed Action = "driver_start_failed"
	ActionStopped     Action = "driver_stopped"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Action    Action    `json:"action"`
	Driver    string    `json:"driver,omitempty"`
	URL       string    `json:"url,omitempty"`
	Mode      string    `json:"mode,omitempty"` // "none", "graceful", "forced"
	Error     string    `json:"error,omitempty"`
}

// Logger writes audit entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens an audit log file for appending.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Log writes an audit entry.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// Recorder returns a service.Recorder that logs the lifecycle of the
// driver at the given executable path and URL.
func (l *Logger) Recorder(driver, url string) service.Recorder {
	return &recorder{l: l, driver: driver, url: url}
}

type recorder struct {
	l      *Logger
	driver string
	url    string
}

func (r *recorder) log(action Action, mode string) {
	err := r.l.Log(Entry{Action: action, Driver: r.driver, URL: r.url, Mode: mode})
	if err != nil {
		slog.Warn("audit log write failed", "component", "audit", "path", r.l.path, "error", err)
	}
}

func (r *recorder) ProcessStarted()     { r.log(ActionStarted, "") }
func (r *recorder) ProcessStartFailed() { r.log(ActionStartFailed, "") }

func (r *recorder) ProcessStopped(mode service.StopMode) {
	r.log(ActionStopped, string(mode))
}
