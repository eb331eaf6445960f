package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNewLogger_WritesFoundryLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogger(dir, "INFO")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("hello", "n", 1)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := decodeLines(t, data)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0]["msg"] != "hello" || lines[0]["level"] != "INFO" {
		t.Errorf("unexpected entry: %v", lines[0])
	}
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"DEBUG", 4},
		{"INFO", 3},
		{"warn", 2},
		{"ERROR", 1},
		{"bogus", 3},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger(&buf, tt.level)
			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")

			if got := len(decodeLines(t, buf.Bytes())); got != tt.want {
				t.Errorf("level %s wrote %d entries, want %d", tt.level, got, tt.want)
			}
		})
	}
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, "DEBUG")

	base.WithProject("p1").WithPhase("concept").WithRun("r1").WithAgent("critic").
		Info("agent completed", "score", 7.5)
	base.Info("no context")

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	want := map[string]string{"project_id": "p1", "phase": "concept", "run_id": "r1", "agent": "critic"}
	for k, v := range want {
		if lines[0][k] != v {
			t.Errorf("%s = %v, want %s", k, lines[0][k], v)
		}
	}
	if lines[0]["score"] != 7.5 {
		t.Errorf("score = %v, want 7.5", lines[0]["score"])
	}
	if _, ok := lines[1]["project_id"]; ok {
		t.Error("parent logger picked up child context")
	}
}

func TestWith_IgnoresNonStringKeys(t *testing.T) {
	var buf bytes.Buffer
	NewWriterLogger(&buf, "INFO").With("a", 1, 2, "x", "b").Info("m")

	lines := decodeLines(t, buf.Bytes())
	if lines[0]["a"] != float64(1) {
		t.Errorf("a = %v, want 1", lines[0]["a"])
	}
	if _, ok := lines[0]["x"]; ok {
		t.Error("value of non-string key should not become a key")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug": LevelDebug,
		"INFO":  LevelInfo,
		"Warn":  LevelWarn,
		"error": LevelError,
		"":      LevelInfo,
		"trace": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
	if len(ValidLevels()) != 4 {
		t.Errorf("ValidLevels() = %v", ValidLevels())
	}
}

func TestClose_Idempotent(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), "INFO")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "INFO")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			child := logger.WithAgent("agent")
			for j := 0; j < 10; j++ {
				child.Info("tick", "worker", i, "n", j)
			}
		}(i)
	}
	wg.Wait()
	_ = logger.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := len(decodeLines(t, data)); got != 200 {
		t.Errorf("got %d entries, want 200", got)
	}
}
