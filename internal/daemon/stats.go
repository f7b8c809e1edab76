package daemon

import (
	"math"
	"sync"
	"time"
)

// CycleStats tracks cycle outcomes for monitoring and backoff. Safe for
// concurrent use; the dead-man's switch reads while cycles write.
type CycleStats struct {
	mu sync.Mutex

	totalCycles               int
	successfulCycles          int
	failedCycles              int
	skippedCycles             int
	consecutiveFailures       int
	consecutiveOllamaFailures int
	consecutivePushFailures   int
	lastSuccess               time.Time
	lastFailure               time.Time
	lastFailureReason         string
	reposExhausted            map[string]struct{}
}

func NewCycleStats() *CycleStats {
	return &CycleStats{reposExhausted: map[string]struct{}{}}
}

// RecordSuccess ends a cycle well: failure streaks and the exhausted
// set reset so the next cycle starts fresh.
func (s *CycleStats) RecordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCycles++
	s.successfulCycles++
	s.consecutiveFailures = 0
	s.consecutiveOllamaFailures = 0
	s.lastSuccess = time.Now()
	s.reposExhausted = map[string]struct{}{}
}

func (s *CycleStats) RecordFailure(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCycles++
	s.failedCycles++
	s.consecutiveFailures++
	s.lastFailure = time.Now()
	s.lastFailureReason = reason
}

func (s *CycleStats) RecordSkip(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCycles++
	s.skippedCycles++
	s.lastFailureReason = reason
}

func (s *CycleStats) RecordOllamaFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveOllamaFailures++
}

func (s *CycleStats) RecordOllamaRecovery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveOllamaFailures = 0
}

func (s *CycleStats) RecordPushFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutivePushFailures++
	return s.consecutivePushFailures
}

func (s *CycleStats) RecordPushSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutivePushFailures = 0
}

func (s *CycleStats) RecordRepoExhausted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reposExhausted[name] = struct{}{}
}

func (s *CycleStats) RepoExhausted(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reposExhausted[name]
	return ok
}

func (s *CycleStats) ExhaustedRepos() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.reposExhausted))
	for name := range s.reposExhausted {
		out = append(out, name)
	}
	return out
}

func (s *CycleStats) ClearExhausted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reposExhausted = map[string]struct{}{}
}

// Backoff returns how long to wait before the next cycle: nothing for
// the first failure, then doubling from 30s capped at 5 minutes.
func (s *CycleStats) Backoff() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consecutiveFailures <= 1 {
		return 0
	}
	seconds := math.Min(300, 30*math.Pow(2, float64(s.consecutiveFailures-1)))
	return time.Duration(seconds) * time.Second
}

// OllamaWait returns how long to wait between Ollama health probes:
// 10s initially, doubling up to 5 minutes.
func (s *CycleStats) OllamaWait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consecutiveOllamaFailures <= 1 {
		return 10 * time.Second
	}
	seconds := math.Min(300, 10*math.Pow(2, float64(s.consecutiveOllamaFailures-1)))
	return time.Duration(seconds) * time.Second
}

func (s *CycleStats) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successRateLocked()
}

func (s *CycleStats) successRateLocked() float64 {
	if s.totalCycles == 0 {
		return 0
	}
	return float64(s.successfulCycles) / float64(s.totalCycles) * 100
}

func (s *CycleStats) TotalCycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCycles
}

func (s *CycleStats) SuccessfulCycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successfulCycles
}

func (s *CycleStats) SkippedCycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skippedCycles
}

func (s *CycleStats) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveFailures
}

func (s *CycleStats) ConsecutiveOllamaFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveOllamaFailures
}

func (s *CycleStats) LastFailureReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFailureReason
}

func (s *CycleStats) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// Snapshot renders the stats for event publication and logs.
func (s *CycleStats) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := map[string]any{
		"total_cycles":         s.totalCycles,
		"successful_cycles":    s.successfulCycles,
		"failed_cycles":        s.failedCycles,
		"skipped_cycles":       s.skippedCycles,
		"success_rate":         math.Round(s.successRateLocked()*10) / 10,
		"consecutive_failures": s.consecutiveFailures,
	}
	if !s.lastSuccess.IsZero() {
		snap["last_success"] = s.lastSuccess.Format(time.RFC3339)
	}
	return snap
}
