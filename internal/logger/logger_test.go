package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(&buf, "info"); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	ctx := context.Background()
	Named("session").Info(ctx, "run finished", Int("cpm", 212), Duration("elapsed", 30*time.Second), Error(errors.New("boom")))

	out := buf.String()
	for _, want := range []string{"run finished", "logger=session", "cpm=212", "elapsed=30s", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q: %s", want, out)
		}
	}
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(&buf, "warn"); err != nil {
		t.Fatalf("init logger: %v", err)
	}
	ctx := context.Background()
	Get().Info(ctx, "hidden")
	Get().Debug(ctx, "hidden too")
	Get().Warn(ctx, "shown", String("k", "v"))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info/debug to be filtered: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("expected warn to be logged: %s", out)
	}
}

func TestSetLevelStringRejectsUnknown(t *testing.T) {
	if err := SetLevelString("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if err := SetLevelString(" WARNING "); err != nil {
		t.Fatalf("expected warning to parse: %v", err)
	}
}
