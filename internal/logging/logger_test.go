package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewFromConfig(dir, "info", "json")
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}

	logger.Info("agent started", FieldParticipantID, "P-001")

	content, err := os.ReadFile(filepath.Join(dir, "socialscope.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(content))
	if line == "" {
		t.Fatal("expected a log line")
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.Split(line, "\n")[0]), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "agent started" || record[FieldParticipantID] != "P-001" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewFromConfig(dir, "warn", "json")
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}

	logger.Info("filtered out")
	logger.Warn("kept")

	content, err := os.ReadFile(filepath.Join(dir, "socialscope.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "filtered out") {
		t.Fatal("info line should be filtered at warn level")
	}
	if !strings.Contains(string(content), "kept") {
		t.Fatal("warn line should be written")
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestComponentLoggerAddsField(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewFromConfig(dir, "info", "json")
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	NewComponentLogger(logger, "syncer").Info("pass complete")

	content, err := os.ReadFile(filepath.Join(dir, "socialscope.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"component":"syncer"`) {
		t.Fatalf("expected component field, got %s", content)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("discarded", Error(os.ErrNotExist))
}
