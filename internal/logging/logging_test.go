// SPDX-License-Identifier:Apache-2.0

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
		wantErr  bool
	}{
		{level: "debug", expected: slog.LevelDebug},
		{level: "INFO", expected: slog.LevelInfo},
		{level: "", expected: slog.LevelInfo},
		{level: "warning", expected: slog.LevelWarn},
		{level: "error", expected: slog.LevelError},
		{level: "trace", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			l, err := ParseLevel(tc.level)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for level %q", tc.level)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, l)
			}
		})
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "neighbor", "192.168.1.2")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message was not filtered:\n%s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "neighbor=192.168.1.2") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestNewJSONForFiles(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "speaker.log"))
	if err != nil {
		t.Fatalf("failed to create log file: %v", err)
	}
	defer f.Close()

	logger, err := New("info", f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("speaker started", "as", 65000)

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	entry := map[string]any{}
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("expected a json entry, got %q: %v", data, err)
	}
	if entry["msg"] != "speaker started" {
		t.Errorf("unexpected entry %v", entry)
	}
}
