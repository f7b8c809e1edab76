// Package metrics exposes daemon counters through an injectable
// Recorder so the supervisor stays testable without a registry.
package metrics

import "time"

// CycleOutcome labels the result of one documentation cycle.
type CycleOutcome string

const (
	OutcomeSuccess CycleOutcome = "success"
	OutcomeFailed  CycleOutcome = "failed"
	OutcomeSkipped CycleOutcome = "skipped"
)

// Recorder defines the observability hooks the supervisor calls.
// NoopRecorder is used when metrics are not configured.
type Recorder interface {
	IncCycle(outcome CycleOutcome)
	ObserveCycleDuration(d time.Duration)
	ObserveGeneration(docType string, d time.Duration, tokens int)
	IncPush(success bool)
	SetConsecutiveFailures(n int)
	SetOllamaUp(up bool)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncCycle(CycleOutcome)                        {}
func (NoopRecorder) ObserveCycleDuration(time.Duration)           {}
func (NoopRecorder) ObserveGeneration(string, time.Duration, int) {}
func (NoopRecorder) IncPush(bool)                                 {}
func (NoopRecorder) SetConsecutiveFailures(int)                   {}
func (NoopRecorder) SetOllamaUp(bool)                             {}
