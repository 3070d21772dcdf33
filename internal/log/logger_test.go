package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"ledger/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Component: ComponentApp})
	sub := logger.WithComponent(ComponentWorker)
	sub.Info("hello")

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=worker") {
		t.Errorf("output = %q, want a single worker component", out)
	}
	if sub.Component() != ComponentWorker {
		t.Errorf("Component() = %q", sub.Component())
	}
}

func TestContextLogger(t *testing.T) {
	logger := New(Config{Output: &bytes.Buffer{}, Component: ComponentCLI})
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext() did not return the stored logger")
	}
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("fallback Component() = %q, want unknown", got)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Level: slog.LevelDebug}))

	b := core.NewBucket(core.NewMonthWindow(2025, time.December))
	b.Warnings = []core.Warning{{
		Code:       core.WarnDuplicateOccurrence,
		TemplateID: "rent",
		DateKey:    "2025-12-01",
		EntryIDs:   []string{"a", "b"},
		Message:    "two entries",
	}}
	sl.LogMonthBuilt(context.Background(), b, 3*time.Millisecond)
	sl.LogError(context.Background(), "publish failed", errors.New("boom"), OpPublish, nil)

	out := buf.String()
	for _, want := range []string{
		"month_key=dec-2025",
		"warning_code=duplicate_occurrence",
		"template_id=rent",
		"date_key=2025-12-01",
		"error=boom",
		"operation=publish",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
