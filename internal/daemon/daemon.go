// Package daemon is the supervisor: it wires the analyzer, memory, LLM,
// devlog and scheduler together and keeps the documentation loop alive
// through Ollama outages, push failures and its own mistakes.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/analysis"
	"git.home.luguber.info/inful/codeworm/internal/config"
	"git.home.luguber.info/inful/codeworm/internal/devlog"
	"git.home.luguber.info/inful/codeworm/internal/events"
	"git.home.luguber.info/inful/codeworm/internal/llm"
	"git.home.luguber.info/inful/codeworm/internal/logfields"
	"git.home.luguber.info/inful/codeworm/internal/memory"
	"git.home.luguber.info/inful/codeworm/internal/metrics"
	"git.home.luguber.info/inful/codeworm/internal/notify"
	"git.home.luguber.info/inful/codeworm/internal/schedule"
	"git.home.luguber.info/inful/codeworm/internal/targets"
)

// ErrInterrupted reports a SIGINT-driven shutdown; main maps it to
// exit code 130.
var ErrInterrupted = errors.New("interrupted")

const (
	cycleTimeout  = 30 * time.Minute
	pushRetries   = 3
	pushDelay     = 5 * time.Second
	llmMaxRetries = 3
	llmRetryDelay = 5 * time.Second
)

// Daemon coordinates all components for 24/7 operation.
type Daemon struct {
	cfg    *config.Config
	dryRun bool

	stats     *CycleStats
	store     *memory.Store
	devlog    *devlog.Repository
	analyzer  *analysis.Analyzer
	router    *targets.Router
	scheduler *schedule.Scheduler
	client    *llm.Client
	notifier  notify.Notifier
	publisher *events.Publisher
	recorder  metrics.Recorder
	rng       *rand.Rand

	running   atomic.Bool
	stopCh    chan struct{}
	startTime time.Time
	logPath   string
}

// Option adjusts daemon construction, mostly for tests.
type Option func(*Daemon)

// WithRecorder injects a metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(d *Daemon) { d.recorder = rec }
}

// WithPublisher injects an events publisher.
func WithPublisher(pub *events.Publisher) Option {
	return func(d *Daemon) { d.publisher = pub }
}

// WithRand seeds the daemon's randomness deterministically.
func WithRand(rng *rand.Rand) Option {
	return func(d *Daemon) { d.rng = rng }
}

// WithLogPath points the dead-man's switch at the log file actually
// being written.
func WithLogPath(path string) Option {
	return func(d *Daemon) { d.logPath = path }
}

// New assembles a daemon from configuration. The memory store is opened
// immediately; everything else connects lazily.
func New(cfg *config.Config, dryRun bool, opts ...Option) (*Daemon, error) {
	store, err := memory.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(os.Getpid())))
	analyzer := analysis.New(cfg.Analyzer, rng)

	d := &Daemon{
		cfg:       cfg,
		dryRun:    dryRun,
		stats:     NewCycleStats(),
		store:     store,
		devlog:    devlog.New(cfg.Devlog),
		analyzer:  analyzer,
		router:    targets.NewRouter(analyzer),
		client:    llm.NewClient(cfg.Ollama),
		notifier:  notify.New(cfg.Notify),
		publisher: events.Disabled(),
		recorder:  metrics.NoopRecorder{},
		rng:       rng,
		stopCh:    make(chan struct{}),
		startTime: time.Now(),
		logPath:   filepath.Join(cfg.DataDir, "codeworm.log"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run starts the daemon and blocks until a shutdown signal arrives.
func (d *Daemon) Run(ctx context.Context) error {
	d.running.Store(true)
	defer d.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	slog.Info("daemon starting",
		slog.Bool("dry_run", d.dryRun),
		slog.Int("repos", len(d.cfg.EnabledRepos())),
		slog.String("devlog", d.cfg.Devlog.RepoPath),
		slog.Bool("debug", d.cfg.Debug))

	if !d.dryRun {
		if err := d.devlog.EnsureDirectoryStructure(); err != nil {
			return fmt.Errorf("prepare devlog: %w", err)
		}
	}

	if stats, err := d.store.GetStats(ctx); err == nil {
		slog.Info("memory loaded",
			slog.Int("total_documented", stats.Total),
			slog.Int("last_7_days", stats.Last7Days))
	}

	slog.Info("waiting for ollama", slog.String("url", d.cfg.Ollama.BaseURL()))
	if !d.waitForOllama(ctx) {
		slog.Info("shutdown during ollama wait")
		return nil
	}
	if err := d.client.Prewarm(ctx); err != nil {
		slog.Warn("prewarm failed", logfields.Error(err))
	}
	slog.Info("llm initialized", slog.String("model", d.cfg.Ollama.Model))

	if d.cfg.Schedule.Enabled {
		trigger, err := schedule.NewTrigger(d.cfg.Schedule, d.rng)
		if err != nil {
			return fmt.Errorf("build trigger: %w", err)
		}
		d.scheduler, err = schedule.NewScheduler(d.cfg.Schedule, trigger, d.onFire)
		if err != nil {
			return fmt.Errorf("build scheduler: %w", err)
		}
		d.scheduler.Start()
		d.emitNextCycle()
	} else {
		slog.Warn("schedule disabled, daemon will idle")
	}

	watcher, err := NewConfigWatcher(d.cfg.Path())
	if err != nil {
		slog.Warn("config watcher unavailable", logfields.Error(err))
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	go d.deadMansSwitch(ctx)

	interrupted := false
	for d.running.Load() {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				slog.Info("reload signal received")
			default:
				slog.Info("shutdown signal received", slog.String("signal", sig.String()))
				if sig == syscall.SIGINT {
					interrupted = true
				}
				d.Stop()
			}
		case <-ctx.Done():
			d.Stop()
		case <-d.stopCh:
		}
	}

	slog.Info("daemon stopped", slog.Any("stats", d.stats.Snapshot()))
	if interrupted {
		return ErrInterrupted
	}
	return nil
}

// Stop requests shutdown. Safe to call more than once.
func (d *Daemon) Stop() {
	if d.running.CompareAndSwap(true, false) {
		close(d.stopCh)
		if d.scheduler != nil {
			_ = d.scheduler.Stop()
		}
	}
}

// Close releases the LLM, publisher and memory store. Run calls it on
// exit; one-shot callers should defer it.
func (d *Daemon) Close() {
	d.client.Close()
	d.publisher.Close()
	if err := d.store.Close(); err != nil {
		slog.Warn("memory close failed", logfields.Error(err))
	}
}

// onFire runs in a gocron worker each time the schedule fires.
func (d *Daemon) onFire() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cycle panicked", slog.Any("panic", r))
			d.stats.RecordFailure(fmt.Sprintf("panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()
	d.RunCycle(ctx)
	d.emitNextCycle()
}

func (d *Daemon) emitNextCycle() {
	if d.scheduler == nil {
		return
	}
	if next, ok := d.scheduler.NextRun(); ok {
		slog.Info("next scheduled run", slog.Time("time", next))
		d.publisher.PublishEvent("next_cycle", map[string]any{"time": next.Format(time.RFC3339)})
	}
}

// waitForOllama blocks until Ollama answers a health check, backing off
// exponentially. Returns false when shutdown interrupts the wait.
func (d *Daemon) waitForOllama(ctx context.Context) bool {
	for d.running.Load() {
		if d.client.HealthCheck(ctx) {
			if n := d.stats.ConsecutiveOllamaFailures(); n > 0 {
				slog.Info("ollama recovered", slog.Int("after_failures", n))
			}
			d.stats.RecordOllamaRecovery()
			d.recorder.SetOllamaUp(true)
			return true
		}

		wait := d.stats.OllamaWait()
		d.stats.RecordOllamaFailure()
		d.recorder.SetOllamaUp(false)

		slog.Warn("ollama unavailable, waiting",
			slog.String("url", d.cfg.Ollama.BaseURL()),
			slog.Duration("retry_in", wait),
			slog.Int("consecutive_failures", d.stats.ConsecutiveOllamaFailures()))

		if d.stats.ConsecutiveOllamaFailures() == d.cfg.Notify.AlertAfterFailures {
			_ = d.notifier.Alert(ctx,
				fmt.Sprintf("Ollama unavailable, %d consecutive failures", d.stats.ConsecutiveOllamaFailures()),
				fmt.Sprintf("Retrying every %s. Daemon is paused until Ollama recovers.", wait))
		}

		// Poll once per second so shutdown is never delayed by a
		// long backoff window.
		deadline := time.Now().Add(wait)
		for time.Now().Before(deadline) && d.running.Load() {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(time.Second):
			}
		}
	}
	return false
}

func (d *Daemon) ensureOllamaReady(ctx context.Context) bool {
	if d.client.HealthCheck(ctx) {
		d.recorder.SetOllamaUp(true)
		return true
	}
	return d.waitForOllama(ctx)
}

// RunOnce executes a single cycle outside the schedule.
func (d *Daemon) RunOnce(ctx context.Context, dryRun bool) (bool, error) {
	d.dryRun = dryRun
	d.running.Store(true)

	if !dryRun {
		if err := d.devlog.EnsureDirectoryStructure(); err != nil {
			return false, fmt.Errorf("prepare devlog: %w", err)
		}
	}
	if !d.ensureOllamaReady(ctx) {
		return false, fmt.Errorf("ollama not available at %s", d.cfg.Ollama.BaseURL())
	}
	if err := d.client.Prewarm(ctx); err != nil {
		slog.Warn("prewarm failed", logfields.Error(err))
	}
	return d.RunCycle(ctx), nil
}
