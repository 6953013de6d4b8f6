package logutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLoggerJSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := newLogger(&buf, loggerConfig{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("bot_start", "mode", "poll")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log entry is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "bot_start" {
		t.Fatalf("msg mismatch: got %v want bot_start", entry["msg"])
	}
	if entry["mode"] != "poll" {
		t.Fatalf("mode mismatch: got %v want poll", entry["mode"])
	}
}

func TestNewLoggerLevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := newLogger(&buf, loggerConfig{Level: "warn", Format: "text"})
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("level filter mismatch: info line present in %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("level filter mismatch: warn line missing in %q", out)
	}
}

func TestNewLoggerRejectsUnknowns(t *testing.T) {
	t.Parallel()

	if _, err := newLogger(&bytes.Buffer{}, loggerConfig{Level: "loud"}); err == nil {
		t.Fatalf("error mismatch: got nil want unknown level error")
	}
	if _, err := newLogger(&bytes.Buffer{}, loggerConfig{Format: "xml"}); err == nil {
		t.Fatalf("error mismatch: got nil want unknown format error")
	}
}
