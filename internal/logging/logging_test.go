package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupConsoleOnly(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger, closeFn := Setup(Options{Level: "warn", Out: &buf})
	defer closeFn()
	logger.Info("hidden")
	slog.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "k=v") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatalf("debug should be enabled by the first handler")
	}
	logger := slog.New(h).With("run_id", "r1")
	logger.Debug("detail")
	logger.Error("boom")
	if !strings.Contains(a.String(), "detail") || !strings.Contains(a.String(), "run_id=r1") {
		t.Fatalf("first handler: %q", a.String())
	}
	if strings.Contains(b.String(), "detail") || !strings.Contains(b.String(), "boom") {
		t.Fatalf("second handler: %q", b.String())
	}
}
