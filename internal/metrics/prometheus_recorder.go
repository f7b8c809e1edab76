package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	cycles              *prom.CounterVec
	cycleDuration       prom.Histogram
	generationDuration  *prom.HistogramVec
	generationTokens    *prom.HistogramVec
	pushes              *prom.CounterVec
	consecutiveFailures prom.Gauge
	ollamaUp            prom.Gauge
}

// NewPrometheusRecorder constructs and registers the daemon metrics.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		cycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "codeworm",
			Name:      "cycles_total",
			Help:      "Documentation cycles by outcome",
		}, []string{"outcome"}),
		cycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "codeworm",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of full documentation cycles",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		generationDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "codeworm",
			Name:      "generation_duration_seconds",
			Help:      "LLM generation time by documentation flavor",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"doc_type"}),
		generationTokens: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "codeworm",
			Name:      "generation_tokens",
			Help:      "Tokens consumed per generation by flavor",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000},
		}, []string{"doc_type"}),
		pushes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "codeworm",
			Name:      "pushes_total",
			Help:      "Devlog pushes by result",
		}, []string{"result"}),
		consecutiveFailures: prom.NewGauge(prom.GaugeOpts{
			Namespace: "codeworm",
			Name:      "consecutive_failures",
			Help:      "Current consecutive cycle failure streak",
		}),
		ollamaUp: prom.NewGauge(prom.GaugeOpts{
			Namespace: "codeworm",
			Name:      "ollama_up",
			Help:      "Whether the last Ollama health check succeeded",
		}),
	}
	reg.MustRegister(pr.cycles, pr.cycleDuration, pr.generationDuration,
		pr.generationTokens, pr.pushes, pr.consecutiveFailures, pr.ollamaUp)
	return pr
}

func (p *PrometheusRecorder) IncCycle(outcome CycleOutcome) {
	p.cycles.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	p.cycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveGeneration(docType string, d time.Duration, tokens int) {
	p.generationDuration.WithLabelValues(docType).Observe(d.Seconds())
	p.generationTokens.WithLabelValues(docType).Observe(float64(tokens))
}

func (p *PrometheusRecorder) IncPush(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	p.pushes.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) SetConsecutiveFailures(n int) {
	p.consecutiveFailures.Set(float64(n))
}

func (p *PrometheusRecorder) SetOllamaUp(up bool) {
	if up {
		p.ollamaUp.Set(1)
	} else {
		p.ollamaUp.Set(0)
	}
}
