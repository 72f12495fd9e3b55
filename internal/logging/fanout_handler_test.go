package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, NoopHandler{}).(NoopHandler); !ok {
		t.Error("expected NoopHandler when nothing remains")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Error("expected single handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout to accept debug")
	}
	logger := slog.New(h).With("component", "delivery")
	logger.Debug("frame pulled")
	logger.Info("stream started")

	if strings.Contains(infoBuf.String(), "frame pulled") {
		t.Fatal("info handler received debug record")
	}
	for _, buf := range []*bytes.Buffer{&infoBuf, &debugBuf} {
		if !strings.Contains(buf.String(), "stream started") || !strings.Contains(buf.String(), `"component":"delivery"`) {
			t.Fatalf("missing record in %q", buf.String())
		}
	}
}
