// Package events publishes daemon activity over NATS so dashboards and
// other observers can follow along. Publishing is best effort: a missing
// or flapping broker never affects the documentation cycle.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects carrying the three activity streams.
const (
	SubjectLogs   = "codeworm:logs"
	SubjectEvents = "codeworm:events"
	SubjectStats  = "codeworm:stats"
)

// Publisher fans daemon activity out to NATS. Safe for concurrent use.
// The zero-value-disabled form is obtained from Disabled().
type Publisher struct {
	url     string
	enabled bool

	mu   sync.Mutex
	conn *nats.Conn
}

// NewPublisher connects to NATS lazily on first publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, enabled: true}
}

// Disabled returns a publisher that drops everything.
func Disabled() *Publisher {
	return &Publisher{}
}

func (p *Publisher) connect() *nats.Conn {
	if p.conn != nil && p.conn.IsConnected() {
		return p.conn
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	conn, err := nats.Connect(p.url,
		nats.Timeout(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		slog.Debug("nats connect failed", slog.String("error", err.Error()))
		return nil
	}
	p.conn = conn
	return conn
}

func (p *Publisher) publish(subject string, payload any) {
	if p == nil || !p.enabled {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	conn := p.connect()
	if conn == nil {
		return
	}
	if err := conn.Publish(subject, data); err != nil {
		slog.Debug("nats publish failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}

// PublishLog forwards one structured log record.
func (p *Publisher) PublishLog(record map[string]any) {
	p.publish(SubjectLogs, record)
}

// PublishEvent emits a typed lifecycle event.
func (p *Publisher) PublishEvent(eventType string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	p.publish(SubjectEvents, map[string]any{
		"type":      eventType,
		"timestamp": time.Now().Format(time.RFC3339),
		"data":      data,
	})
}

// PublishStats emits a stats snapshot.
func (p *Publisher) PublishStats(stats map[string]any) {
	payload := map[string]any{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range stats {
		payload[k] = v
	}
	p.publish(SubjectStats, payload)
}

// Close drains the connection if one was established.
func (p *Publisher) Close() {
	if p == nil || !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}
