package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestSetupRenamesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("minerd", "test", Options{Level: slog.LevelDebug, Output: &buf})
	logger.Debug("period created", "period", 3)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing %q in %v", key, line)
		}
	}
	if line["severity"] != "DEBUG" || line["service"] != "minerd" {
		t.Fatalf("unexpected fields %v", line)
	}
}

func TestFileSinkAndLevel(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "minerd.log")
	logger := SetupWithOptions("minerd", "", Options{Level: ParseLevel("warn"), Output: &buf, File: &FileSink{Path: path, MaxSizeMB: 1}})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level")
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn should be written")
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("authorization", "Bearer abc"); got.Value.String() != RedactedValue {
		t.Fatalf("authorization must be redacted, got %v", got)
	}
	if got := MaskField("route", "/v1/claims"); got.Value.String() != "/v1/claims" {
		t.Fatalf("route is allowlisted, got %v", got)
	}
}

func TestSensitiveKeysAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("minerd", "", Options{Output: &buf})
	logger.Info("config loaded", "dsn", "postgres://user:pw@db/idx", "listen", ":8080")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["dsn"] != RedactedValue {
		t.Fatalf("dsn must be redacted, got %v", line["dsn"])
	}
	if line["listen"] != ":8080" {
		t.Fatalf("unexpected listen %v", line["listen"])
	}
}
