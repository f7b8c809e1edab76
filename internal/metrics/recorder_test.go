package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prom.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
	metric:
		for _, m := range fam.GetMetric() {
			for k, v := range labels {
				if !hasLabel(m, k, v) {
					continue metric
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, key, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == key && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.IncCycle(OutcomeSuccess)
	rec.IncCycle(OutcomeSuccess)
	rec.IncCycle(OutcomeFailed)
	rec.IncPush(true)
	rec.IncPush(false)
	rec.SetConsecutiveFailures(3)
	rec.SetOllamaUp(true)
	rec.ObserveCycleDuration(42 * time.Second)
	rec.ObserveGeneration("function_doc", 30*time.Second, 800)

	if got := counterValue(t, reg, "codeworm_cycles_total", map[string]string{"outcome": "success"}); got != 2 {
		t.Fatalf("success cycles = %g, want 2", got)
	}
	if got := counterValue(t, reg, "codeworm_cycles_total", map[string]string{"outcome": "failed"}); got != 1 {
		t.Fatalf("failed cycles = %g, want 1", got)
	}
	if got := counterValue(t, reg, "codeworm_pushes_total", map[string]string{"result": "failure"}); got != 1 {
		t.Fatalf("failed pushes = %g, want 1", got)
	}
	if got := counterValue(t, reg, "codeworm_consecutive_failures", nil); got != 3 {
		t.Fatalf("consecutive failures gauge = %g, want 3", got)
	}
	if got := counterValue(t, reg, "codeworm_ollama_up", nil); got != 1 {
		t.Fatalf("ollama up gauge = %g, want 1", got)
	}
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NoopRecorder{}
	rec.IncCycle(OutcomeSkipped)
	rec.ObserveCycleDuration(time.Second)
	rec.ObserveGeneration("til", time.Second, 100)
	rec.IncPush(true)
	rec.SetConsecutiveFailures(0)
	rec.SetOllamaUp(false)
}
