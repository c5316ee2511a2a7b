package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetLevelFromString(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"WARN", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"info", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		if ok := SetLevelFromString(tt.in); ok != tt.ok {
			t.Fatalf("SetLevelFromString(%q) = %v", tt.in, ok)
		}
		if got := logLevel.Level(); got != tt.want {
			t.Fatalf("level after %q = %v, want %v", tt.in, got, tt.want)
		}
	}

	SetLevel(slog.LevelWarn)
	if SetLevelFromString("verbose") {
		t.Fatal("unknown level accepted")
	}
	if logLevel.Level() != slog.LevelWarn {
		t.Fatal("unknown level changed the current level")
	}
}

func TestInitStructuredJSONWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitStructuredTo(&buf, "json", "info")
	defer InitStructured("text", "info")

	ctx := WithRequestID(context.Background(), "req-1")
	FromContext(ctx).Info("cache miss", "key", "catalog:product:1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not json: %v (%q)", err, buf.String())
	}
	if line["request_id"] != "req-1" || line["key"] != "catalog:product:1" {
		t.Fatalf("unexpected attrs: %v", line)
	}
}

func TestLogger_ConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	l := New(&console)
	path := filepath.Join(t.TempDir(), "access.log")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}

	l.Log(&RequestLog{
		RequestID:   "r1",
		Method:      "PATCH",
		Path:        "/api/products/3",
		Status:      200,
		DurationMs:  4,
		Invalidated: []string{"catalog:products:", "catalog:product:"},
	})
	l.Close()

	if !strings.Contains(console.String(), "PATCH /api/products/3 200 4ms [purged:2]") {
		t.Fatalf("unexpected console line %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var entry RequestLog
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry.Status != 200 || len(entry.Invalidated) != 2 || entry.Timestamp.IsZero() {
		t.Fatalf("unexpected entry %+v", entry)
	}

	l.SetEnabled(false)
	console.Reset()
	l.Log(&RequestLog{RequestID: "r2"})
	if console.Len() != 0 {
		t.Fatal("disabled logger wrote output")
	}
}
