// Package llm talks to a local Ollama instance: health probing, prewarm,
// generation with OOM recovery, and the prompt templates per flavor.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/config"
)

// Error kinds the supervisor distinguishes.
var (
	ErrConnection = errors.New("ollama connection failed")
	ErrTimeout    = errors.New("ollama request timed out")
	ErrModelOOM   = errors.New("ollama model out of memory")
)

// Result is one completed generation.
type Result struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalDuration    time.Duration
	TokensPerSecond  float64
}

// TotalTokens is prompt plus completion.
func (r *Result) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// ModelInfo is one entry from the model listing.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Client is an Ollama HTTP client. Safe for use from the single
// supervisor task; no internal locking.
type Client struct {
	cfg        config.OllamaConfig
	baseURL    string
	httpClient *http.Client

	// sleep is swapped in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration)
}

// NewClient builds a client; no connection is made until the first call.
func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		cfg:     cfg,
		baseURL: cfg.BaseURL(),
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Close releases idle transport connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// HealthCheck reports whether Ollama is reachable. Never returns an error.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

type generateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	System    string         `json:"system,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	TotalDuration   int64  `json:"total_duration"` // nanoseconds
}

// Prewarm loads the model and keeps it resident. Idempotent.
func (c *Client) Prewarm(ctx context.Context) error {
	_, err := c.post(ctx, generateRequest{
		Model:     c.cfg.Model,
		Prompt:    "",
		Stream:    false,
		KeepAlive: c.cfg.KeepAlive,
		Options:   map[string]any{"num_ctx": c.cfg.NumCtx},
	})
	if err != nil {
		return fmt.Errorf("prewarm %s: %w", c.cfg.Model, err)
	}
	slog.Info("model prewarmed",
		slog.String("model", c.cfg.Model),
		slog.Int("num_ctx", c.cfg.NumCtx))
	return nil
}

// Generate runs one completion. Fails with ErrConnection, ErrTimeout or
// ErrModelOOM wrapped in context.
func (c *Client) Generate(ctx context.Context, prompt, system string) (*Result, error) {
	return c.generateOpts(ctx, prompt, system, c.cfg.NumCtx)
}

func (c *Client) generateOpts(ctx context.Context, prompt, system string, numCtx int) (*Result, error) {
	start := time.Now()
	data, err := c.post(ctx, generateRequest{
		Model:  c.cfg.Model,
		Prompt: prompt,
		System: system,
		Stream: false,
		Options: map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.NumPredict,
			"num_ctx":     numCtx,
		},
	})
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode generate response: %w", err)
	}

	duration := time.Duration(resp.TotalDuration)
	if duration == 0 {
		duration = time.Since(start)
	}
	tokensPerSec := 0.0
	if duration > 0 && resp.EvalCount > 0 {
		tokensPerSec = float64(resp.EvalCount) / duration.Seconds()
	}
	return &Result{
		Text:             resp.Response,
		Model:            resp.Model,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalDuration:    duration,
		TokensPerSecond:  tokensPerSec,
	}, nil
}

// GenerateWithRetry retries transient failures: OOM triggers an unload,
// a 5 second pause and a reload with a reduced context window; timeouts
// and connection errors back off linearly.
func (c *Client) GenerateWithRetry(ctx context.Context, prompt, system string, maxRetries int, retryDelay time.Duration) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err := c.Generate(ctx, prompt, system)
		if err == nil {
			return result, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, ErrModelOOM):
			slog.Warn("model OOM detected", slog.Int("attempt", attempt+1))
			if recErr := c.recoverFromOOM(ctx); recErr != nil {
				lastErr = recErr
			}
		case errors.Is(err, ErrTimeout), errors.Is(err, ErrConnection):
			if attempt < maxRetries-1 {
				c.sleep(ctx, time.Duration(attempt+1)*retryDelay)
			}
		default:
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("generation failed after %d attempts: %w", maxRetries, lastErr)
}

// recoverFromOOM unloads the model, waits, and reloads it with a context
// window capped at 8192.
func (c *Client) recoverFromOOM(ctx context.Context) error {
	slog.Info("attempting OOM recovery")

	if _, err := c.post(ctx, generateRequest{
		Model:     c.cfg.Model,
		KeepAlive: "0",
	}); err != nil {
		return fmt.Errorf("unload model: %w", err)
	}

	c.sleep(ctx, 5*time.Second)

	reducedCtx := min(c.cfg.NumCtx, 8192)
	if _, err := c.post(ctx, generateRequest{
		Model:     c.cfg.Model,
		Prompt:    "",
		KeepAlive: c.cfg.KeepAlive,
		Options:   map[string]any{"num_ctx": reducedCtx},
	}); err != nil {
		return fmt.Errorf("reload model: %w", err)
	}
	slog.Info("OOM recovery complete", slog.Int("num_ctx", reducedCtx))
	return nil
}

// ListModels returns the models Ollama has pulled. Errors degrade to an
// empty list.
func (c *Client) ListModels(ctx context.Context) []ModelInfo {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var payload struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil
	}
	return payload.Models
}

// post sends one generate-family request and classifies transport and
// server errors into the three error kinds.
func (c *Client) post(ctx context.Context, body generateRequest) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, c.baseURL)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err, c.baseURL)
	}
	if resp.StatusCode != http.StatusOK {
		text := strings.ToLower(string(data))
		if strings.Contains(text, "out of memory") || strings.Contains(text, "cuda") {
			return nil, fmt.Errorf("%w: %s", ErrModelOOM, strings.TrimSpace(string(data)))
		}
		return nil, fmt.Errorf("generate returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func classifyTransportError(err error, baseURL string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w at %s: %v", ErrConnection, baseURL, err)
}
