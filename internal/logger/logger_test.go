package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestHandler_Format verifies the line layout and attribute rendering.
func TestHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelDebug))

	log.Info("post stored", "board", 1, "thread", 2)

	line := buf.String()
	if !strings.Contains(line, " [INF] post stored board=1 thread=2\n") {
		t.Errorf("unexpected line: %q", line)
	}
}

// TestHandler_Level verifies records below the minimum level are dropped.
func TestHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelWarn))

	log.Info("dropped")
	log.Debug("dropped")
	log.Warn("kept")

	if strings.Contains(buf.String(), "dropped") {
		t.Errorf("low level record written: %q", buf.String())
	}

	if !strings.Contains(buf.String(), "[WRN] kept") {
		t.Errorf("warn record missing: %q", buf.String())
	}
}

// TestHandler_WithAttrs verifies attributes attached with With appear on every record.
func TestHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo)).With("component", "chain")

	log.Info("block", "number", 7)

	if !strings.Contains(buf.String(), "block component=chain number=7") {
		t.Errorf("unexpected line: %q", buf.String())
	}
}

// TestHandler_WithGroup verifies group-qualified keys.
func TestHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo)).WithGroup("api")

	log.Info("request", "path", "/op")

	if !strings.Contains(buf.String(), "api.path=/op") {
		t.Errorf("unexpected line: %q", buf.String())
	}
}

// TestParseLevel verifies level names.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}

		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
