package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"git.home.luguber.info/inful/codeworm/internal/config"
)

func TestNewPicksImplementation(t *testing.T) {
	if _, ok := New(config.NotifyConfig{}).(LogNotifier); !ok {
		t.Fatal("disabled config should yield log notifier")
	}
	if _, ok := New(config.NotifyConfig{Enabled: true}).(LogNotifier); !ok {
		t.Fatal("enabled without URL should yield log notifier")
	}
	cfg := config.NotifyConfig{Enabled: true, WebhookURL: "http://example.invalid/hook"}
	if _, ok := New(cfg).(*WebhookNotifier); !ok {
		t.Fatal("webhook config should yield webhook notifier")
	}
}

func TestWebhookAlertPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{Enabled: true, WebhookURL: srv.URL})
	if err := n.Alert(context.Background(), "Ollama unavailable", "4 consecutive failures"); err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if got.Title != "Ollama unavailable" || got.Details != "4 consecutive failures" {
		t.Fatalf("payload = %+v", got)
	}
	if got.Timestamp == "" {
		t.Fatal("timestamp missing")
	}
}

func TestWebhookErrorIncludesComponent(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{Enabled: true, WebhookURL: srv.URL})
	if err := n.Error(context.Background(), errors.New("push failed"), "git.push"); err != nil {
		t.Fatalf("Error: %v", err)
	}
	if got.Component != "git.push" || got.Details != "push failed" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestWebhookReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := New(config.NotifyConfig{Enabled: true, WebhookURL: srv.URL})
	if err := n.Alert(context.Background(), "t", "d"); err == nil {
		t.Fatal("5xx response should surface as error")
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := LogNotifier{}
	if err := n.Alert(context.Background(), "t", "d"); err != nil {
		t.Fatal(err)
	}
	if err := n.Error(context.Background(), errors.New("x"), "daemon"); err != nil {
		t.Fatal(err)
	}
}
