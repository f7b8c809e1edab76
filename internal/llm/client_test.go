package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/config"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default().Ollama
	c := NewClient(cfg)
	c.baseURL = srv.URL
	c.sleep = func(context.Context, time.Duration) {}
	return c, srv
}

func generateOK(text string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "qwen2.5:7b",
			"response":          text,
			"prompt_eval_count": 120,
			"eval_count":        80,
			"total_duration":    int64(2 * time.Second),
		})
	})
}

func TestHealthCheck(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	if !c.HealthCheck(context.Background()) {
		t.Fatal("healthy server reported unreachable")
	}

	down := NewClient(config.Default().Ollama)
	down.baseURL = "http://127.0.0.1:1"
	if down.HealthCheck(context.Background()) {
		t.Fatal("unreachable server reported healthy")
	}
}

func TestGenerateParsesResult(t *testing.T) {
	c, _ := testClient(t, generateOK("The function retries with backoff."))
	res, err := c.Generate(context.Background(), "prompt", "system")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "The function retries with backoff." {
		t.Fatalf("text = %q", res.Text)
	}
	if res.TotalTokens() != 200 {
		t.Fatalf("total tokens = %d, want 200", res.TotalTokens())
	}
	if res.TokensPerSecond < 39 || res.TokensPerSecond > 41 {
		t.Fatalf("tokens/sec = %g, want ~40", res.TokensPerSecond)
	}
}

func TestGenerateClassifiesOOM(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "CUDA error: out of memory", http.StatusInternalServerError)
	}))
	_, err := c.Generate(context.Background(), "p", "s")
	if !errors.Is(err, ErrModelOOM) {
		t.Fatalf("err = %v, want ErrModelOOM", err)
	}
}

func TestGenerateClassifiesConnection(t *testing.T) {
	c := NewClient(config.Default().Ollama)
	c.baseURL = "http://127.0.0.1:1"
	_, err := c.Generate(context.Background(), "p", "s")
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

func TestGenerateWithRetryRecoversFromOOM(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		// Unload and reload requests during recovery always succeed.
		if req.KeepAlive == "0" || (req.Prompt == "" && req.System == "") {
			_ = json.NewEncoder(w).Encode(map[string]any{"response": ""})
			return
		}
		if calls.Add(1) == 1 {
			http.Error(w, "out of memory", http.StatusInternalServerError)
			return
		}
		generateOK("recovered").ServeHTTP(w, r)
	})
	c, _ := testClient(t, handler)

	res, err := c.GenerateWithRetry(context.Background(), "real prompt", "sys", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateWithRetry: %v", err)
	}
	if res.Text != "recovered" {
		t.Fatalf("text = %q", res.Text)
	}
	if calls.Load() != 2 {
		t.Fatalf("generation attempts = %d, want 2", calls.Load())
	}
}

func TestGenerateWithRetryBacksOffLinearly(t *testing.T) {
	c := NewClient(config.Default().Ollama)
	c.baseURL = "http://127.0.0.1:1"

	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) {
		delays = append(delays, d)
	}

	_, err := c.GenerateWithRetry(context.Background(), "p", "s", 3, time.Second)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want wrapped ErrConnection", err)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestGenerateWithRetryStopsOnPermanentError(t *testing.T) {
	var calls atomic.Int32
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	_, err := c.GenerateWithRetry(context.Background(), "p", "s", 5, time.Millisecond)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on permanent error)", calls.Load())
	}
}

func TestListModels(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "qwen2.5:7b", "size": 4_700_000_000},
				{"name": "llama3.2:3b", "size": 2_000_000_000},
			},
		})
	}))
	models := c.ListModels(context.Background())
	if len(models) != 2 || models[0].Name != "qwen2.5:7b" {
		t.Fatalf("models = %+v", models)
	}

	down := NewClient(config.Default().Ollama)
	down.baseURL = "http://127.0.0.1:1"
	if got := down.ListModels(context.Background()); got != nil {
		t.Fatalf("unreachable server returned %v", got)
	}
}
