package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithVideoID(WithComponent(newLogger(&buf, "info"), "transfer"), "vid-1")
	logger.Debug("hidden")
	logger.Info("chunk sent", "index", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "chunk sent" || entry["component"] != "transfer" || entry["video_id"] != "vid-1" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("abcd1234efgh"); got != "abcd...efgh" {
		t.Errorf("SanitizeToken = %q, want abcd...efgh", got)
	}
}
