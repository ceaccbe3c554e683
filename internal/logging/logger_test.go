package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"fennec/internal/services"
)

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("scan complete", String("folder", "/media"), Int("found", 3))

	line := buf.String()
	if !strings.Contains(line, "INFO") {
		t.Fatalf("missing level: %q", line)
	}
	if !strings.Contains(line, "scan complete") {
		t.Fatalf("missing message: %q", line)
	}
	if !strings.Contains(line, "folder=/media") || !strings.Contains(line, "found=3") {
		t.Fatalf("missing attrs: %q", line)
	}
}

func TestConsoleHandlerLiftsComponent(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := NewComponentLogger(slog.New(newConsoleHandler(&buf, levelVar)), "scanner")

	logger.Info("started")

	line := buf.String()
	if !strings.Contains(line, "scanner: started") {
		t.Fatalf("component not lifted into prefix: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not repeat as attr: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("msg", String("path", "/with space/file.mp4"))
	if !strings.Contains(buf.String(), `path="/with space/file.mp4"`) {
		t.Fatalf("value with space not quoted: %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("hidden")
	logger.Warn("visible")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Fatalf("info should be filtered: %q", output)
	}
	if !strings.Contains(output, "visible") {
		t.Fatalf("warn should pass: %q", output)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	base := slog.New(newConsoleHandler(&buf, levelVar))

	ctx := services.WithStage(services.WithJobID(t.Context(), 42), "metadata")
	WithContext(ctx, base).Info("stage started")

	line := buf.String()
	if !strings.Contains(line, "job_id=42") || !strings.Contains(line, "stage=metadata") {
		t.Fatalf("context fields missing: %q", line)
	}
}
