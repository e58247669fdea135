package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("log line is not JSON: %v\n%s", err, line)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_IdentityFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(ServerIdentity{Mode: "pool", Port: 46000, PID: 1234}, &buf)

	logger.Info("server listening")

	lines := logLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	entry := lines[0]
	if entry["mode"] != "pool" {
		t.Errorf("mode = %v, want pool", entry["mode"])
	}
	if entry["port"] != float64(46000) {
		t.Errorf("port = %v, want 46000", entry["port"])
	}
	if entry["pid"] != float64(1234) {
		t.Errorf("pid = %v, want 1234", entry["pid"])
	}
	if entry["message"] != "server listening" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestLogger_OmitsEmptyIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(ServerIdentity{PID: 99}, &buf)

	logger.Info("hello")

	entry := logLines(t, &buf)[0]
	if _, ok := entry["mode"]; ok {
		t.Error("empty mode was logged")
	}
	if _, ok := entry["port"]; ok {
		t.Error("zero port was logged")
	}
	if entry["pid"] != float64(99) {
		t.Errorf("pid = %v, want 99", entry["pid"])
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(ServerIdentity{PID: 1}, &buf)

	logger.With(zap.String("remote", "10.0.0.1:5555")).Warn("session ended")

	entry := logLines(t, &buf)[0]
	if entry["remote"] != "10.0.0.1:5555" {
		t.Errorf("remote = %v", entry["remote"])
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
}

func TestSugaredLogger_Printf(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(ServerIdentity{PID: 1}, &buf)

	logger.Sugar().Infof("scenario %d of %d", 3, 12)

	entry := logLines(t, &buf)[0]
	if entry["message"] != "scenario 3 of 12" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestNewNop_Discards(t *testing.T) {
	// Must not panic or write anywhere.
	logger := NewNop()
	logger.Info("dropped")
	logger.Sugar().Errorf("dropped %s", "too")
}
