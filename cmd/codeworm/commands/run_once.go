package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/codeworm/internal/config"
	"git.home.luguber.info/inful/codeworm/internal/daemon"
)

// RunOnceCmd executes one cycle immediately, outside the schedule.
type RunOnceCmd struct {
	Devlog string   `help:"Path to the devlog repository (overrides config)"`
	Repo   []string `help:"Add a source repo as name=path (repeatable)"`
	DryRun bool     `help:"Generate but never commit"`
}

func (r *RunOnceCmd) Run(_ *Global, root *CLI) error {
	var overrides []config.Override
	if r.Devlog != "" {
		overrides = append(overrides, func(cfg *config.Config) { cfg.Devlog.RepoPath = r.Devlog })
	}
	if repos := parseRepoFlags(r.Repo); len(repos) > 0 {
		overrides = append(overrides, func(cfg *config.Config) { cfg.Repos = append(cfg.Repos, repos...) })
	}

	cfg, err := root.loadConfig(overrides...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	d, err := daemon.New(cfg, r.DryRun)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	documented, err := d.RunOnce(context.Background(), r.DryRun)
	if err != nil {
		return err
	}
	if !documented {
		return fmt.Errorf("no documentation produced")
	}
	return nil
}
