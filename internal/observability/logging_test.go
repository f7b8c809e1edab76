package observability

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/codeworm/internal/events"
)

func TestSetupWritesLogFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logPath := filepath.Join(t.TempDir(), "codeworm.log")
	if err := Setup(false, logPath, events.Disabled()); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	slog.Info("cycle starting", slog.Int("cycle_num", 7))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "cycle starting") || !strings.Contains(string(data), "cycle_num=7") {
		t.Fatalf("log content = %q", data)
	}
}

func TestSetupDebugLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logPath := filepath.Join(t.TempDir(), "codeworm.log")
	if err := Setup(true, logPath, nil); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	slog.Debug("verbose detail")

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), "verbose detail") {
		t.Fatal("debug record suppressed at debug level")
	}
}

func TestFanoutHandlerStillWritesBase(t *testing.T) {
	var buf bytes.Buffer
	h := &fanoutHandler{
		base: slog.NewTextHandler(&buf, nil),
		pub:  events.Disabled(),
	}
	logger := slog.New(h)
	logger.Info("documentation committed", slog.String("commit", "abcd1234"))

	if !strings.Contains(buf.String(), "documentation committed") {
		t.Fatalf("base handler output = %q", buf.String())
	}

	// WithAttrs and WithGroup must preserve the fan-out wrapper.
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(*fanoutHandler); !ok {
		t.Fatal("WithAttrs dropped the wrapper")
	}
	if _, ok := h.WithGroup("g").(*fanoutHandler); !ok {
		t.Fatal("WithGroup dropped the wrapper")
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("Enabled should defer to base handler")
	}
}
