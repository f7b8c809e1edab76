package schedule

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/codeworm/internal/config"
)

// Scheduler executes the trigger's fire times through gocron. The day's
// remaining times are registered as one-time jobs; a daily job shortly
// after midnight regenerates them. Singleton mode coalesces fires that
// land while a cycle is still running.
type Scheduler struct {
	cfg       config.ScheduleConfig
	trigger   *Trigger
	scheduler gocron.Scheduler
	onFire    func()

	mu      sync.Mutex
	fireJob gocron.Job
}

// NewScheduler wires a trigger to gocron. onFire runs in a gocron worker;
// it must do its own panic containment.
func NewScheduler(cfg config.ScheduleConfig, trigger *Trigger, onFire func()) (*Scheduler, error) {
	gs, err := gocron.NewScheduler(gocron.WithLocation(trigger.loc))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Scheduler{cfg: cfg, trigger: trigger, scheduler: gs, onFire: onFire}

	_, err = gs.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 1, 0))),
		gocron.NewTask(s.refresh),
		gocron.WithName("regenerate-daily-schedule"),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule daily regeneration: %w", err)
	}
	return s, nil
}

// Start installs today's remaining fire times and begins execution.
func (s *Scheduler) Start() {
	s.refresh()
	s.scheduler.Start()
}

// Stop shuts the scheduler down without waiting for running jobs.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// NextRun reports the next pending fire time, if any.
func (s *Scheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fireJob == nil {
		return time.Time{}, false
	}
	next, err := s.fireJob.NextRun()
	if err != nil || next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// refresh replaces the one-time fire job with the trigger's current view
// of the day. Falls through to the next day's first fire when today is
// already spent.
func (s *Scheduler) refresh() {
	now := time.Now()
	times := s.trigger.Upcoming(now)
	if len(times) == 0 {
		if next, ok := s.trigger.NextFireTime(now); ok {
			times = []time.Time{next}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fireJob != nil {
		_ = s.scheduler.RemoveJob(s.fireJob.ID())
		s.fireJob = nil
	}
	if len(times) == 0 {
		slog.Warn("no fire times generated for the day")
		return
	}

	job, err := s.scheduler.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTimes(times...)),
		gocron.NewTask(s.onFire),
		gocron.WithName("documentation-cycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		slog.Error("failed to schedule fire times", slog.String("error", err.Error()))
		return
	}
	s.fireJob = job
	slog.Info("daily schedule installed",
		slog.Int("fires", len(times)),
		slog.Time("first", times[0]),
		slog.Time("last", times[len(times)-1]))
}
