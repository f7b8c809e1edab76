package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/codeworm/internal/config"
	"git.home.luguber.info/inful/codeworm/internal/daemon"
	"git.home.luguber.info/inful/codeworm/internal/events"
	"git.home.luguber.info/inful/codeworm/internal/metrics"
	"git.home.luguber.info/inful/codeworm/internal/observability"
)

// RunCmd starts the daemon and blocks until shutdown.
type RunCmd struct {
	Devlog string   `help:"Path to the devlog repository (overrides config)"`
	Repo   []string `help:"Add a source repo as name=path (repeatable)"`
	DryRun bool     `help:"Generate but never commit"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig(r.overrides()...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	publisher := events.Disabled()
	if cfg.Events.Enabled {
		publisher = events.NewPublisher(cfg.Events.NATSURL)
	}
	logPath := filepath.Join(cfg.DataDir, "codeworm.log")
	if err := observability.Setup(cfg.Debug, logPath, publisher); err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	opts := []daemon.Option{daemon.WithPublisher(publisher), daemon.WithLogPath(logPath)}
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		opts = append(opts, daemon.WithRecorder(metrics.NewPrometheusRecorder(reg)))
		srv := metrics.NewServer(cfg.Metrics.Listen, reg)
		srv.Start()
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				slog.Warn("metrics shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	d, err := daemon.New(cfg, r.DryRun, opts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	return d.Run(context.Background())
}

func (r *RunCmd) overrides() []config.Override {
	var overrides []config.Override
	if r.Devlog != "" {
		overrides = append(overrides, func(cfg *config.Config) {
			cfg.Devlog.RepoPath = r.Devlog
		})
	}
	if repos := parseRepoFlags(r.Repo); len(repos) > 0 {
		overrides = append(overrides, func(cfg *config.Config) {
			cfg.Repos = append(cfg.Repos, repos...)
		})
	}
	return overrides
}
