package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrintfBridge(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	Printf(l, slog.LevelWarn)("target %s crashed: %d\n", "tab-1", 3)

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="target tab-1 crashed: 3"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestPrintfNilLogger(t *testing.T) {
	t.Parallel()

	Printf(nil, slog.LevelInfo)("ignored %d", 1)
}

func TestStdBridge(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	Std(l, slog.LevelError).Print("http: TLS handshake error")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("unexpected log line: %s", buf.String())
	}
}
