// Package notify delivers operator alerts. The webhook notifier POSTs
// JSON to a configured URL; without one, alerts only reach the log.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/config"
)

// Notifier sends operator-facing alerts. Implementations must be safe
// to call from the supervisor loop and must not block for long.
type Notifier interface {
	Alert(ctx context.Context, title, details string) error
	Error(ctx context.Context, err error, component string) error
}

// New picks the implementation for the configuration: webhook when a
// URL is set, otherwise log-only.
func New(cfg config.NotifyConfig) Notifier {
	if cfg.Enabled && cfg.WebhookURL != "" {
		return &WebhookNotifier{
			url:    cfg.WebhookURL,
			client: &http.Client{Timeout: 10 * time.Second},
		}
	}
	return LogNotifier{}
}

// LogNotifier writes alerts to the structured log only.
type LogNotifier struct{}

func (LogNotifier) Alert(_ context.Context, title, details string) error {
	slog.Warn("alert", slog.String("title", title), slog.String("details", details))
	return nil
}

func (LogNotifier) Error(_ context.Context, err error, component string) error {
	slog.Error("alert",
		slog.String("component", component),
		slog.String("error", err.Error()))
	return nil
}

// WebhookNotifier POSTs alerts as JSON.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	Title     string `json:"title"`
	Details   string `json:"details,omitempty"`
	Component string `json:"component,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (n *WebhookNotifier) Alert(ctx context.Context, title, details string) error {
	return n.send(ctx, webhookPayload{
		Title:     title,
		Details:   details,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (n *WebhookNotifier) Error(ctx context.Context, err error, component string) error {
	return n.send(ctx, webhookPayload{
		Title:     fmt.Sprintf("Error in %s", component),
		Details:   err.Error(),
		Component: component,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (n *WebhookNotifier) send(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned %d", resp.StatusCode)
	}
	slog.Debug("alert delivered", slog.String("title", payload.Title))
	return nil
}
