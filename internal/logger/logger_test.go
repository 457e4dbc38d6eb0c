package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	config := DefaultConfig()
	config.Level = "chatty"
	if _, err := New(config); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(LogConfig{Level: "warn", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	batchLog := WithComponent(log, "batch")
	batchLog.Info().Msg("filtered out")
	batchLog.Warn().Str("file", "a.pdf").Msg("kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %s", len(lines), data)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "batch" || entry["file"] != "a.pdf" || entry["message"] != "kept" {
		t.Errorf("entry = %v", entry)
	}
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(LogConfig{Level: "info", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatal(err)
	}
	reqLog := WithRequestID(log.Output(&buf), "req-1")
	reqLog.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"request_id":"req-1"`) {
		t.Errorf("output = %s", buf.String())
	}
}
