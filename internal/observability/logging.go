// Package observability configures the process-wide logger: a text
// handler for the console and log file, with records mirrored to the
// events publisher for remote observers.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/codeworm/internal/events"
)

// Setup installs the default logger. When logPath is non-empty the log
// is also appended there so the dead-man's switch can tail it. The
// publisher may be nil or disabled.
func Setup(debug bool, logPath string, pub *events.Publisher) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		w = io.MultiWriter(os.Stderr, f)
	}

	var handler slog.Handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if pub != nil {
		handler = &fanoutHandler{base: handler, pub: pub}
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// fanoutHandler forwards every record to the events publisher after the
// base handler has written it. Publishing is best effort.
type fanoutHandler struct {
	base slog.Handler
	pub  *events.Publisher
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.base.Handle(ctx, record)

	fields := map[string]any{
		"level":     record.Level.String(),
		"msg":       record.Message,
		"timestamp": record.Time.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	record.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.String()
		return true
	})
	h.pub.PublishLog(fields)

	return err
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanoutHandler{base: h.base.WithAttrs(attrs), pub: h.pub}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	return &fanoutHandler{base: h.base.WithGroup(name), pub: h.pub}
}
