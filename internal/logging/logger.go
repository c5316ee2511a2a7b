package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// RequestLog is one HTTP access log entry.
type RequestLog struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
	TraceID     string    `json:"trace_id,omitempty"`
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	Status      int       `json:"status"`
	DurationMs  int64     `json:"duration_ms"`
	Bytes       int       `json:"bytes"`
	Invalidated []string  `json:"invalidated,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Logger writes access log entries to the console and optionally to a
// JSON lines file.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console io.Writer
}

var defaultLogger = &Logger{enabled: true, console: os.Stdout}

// Default returns the default access logger
func Default() *Logger {
	return defaultLogger
}

// New returns an access logger printing to console; a nil console
// disables console output.
func New(console io.Writer) *Logger {
	return &Logger{enabled: true, console: console}
}

// SetOutput sets the JSON log output file
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetEnabled turns the access log on or off.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// Log writes an access log entry
func (l *Logger) Log(entry *RequestLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if l.console != nil {
		purge := ""
		if n := len(entry.Invalidated); n > 0 {
			purge = fmt.Sprintf(" [purged:%d]", n)
		}
		fmt.Fprintf(l.console, "[request] %s %s %s %d %dms%s\n",
			entry.RequestID, entry.Method, entry.Path, entry.Status, entry.DurationMs, purge)
		if entry.Error != "" {
			fmt.Fprintf(l.console, "[request]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
