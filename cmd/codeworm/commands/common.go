package commands

import (
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/codeworm/internal/config"
	"git.home.luguber.info/inful/codeworm/internal/model"
)

// Global is passed to every subcommand.
type Global struct{}

// CLI is the root command definition.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"codeworm.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run             RunCmd             `cmd:"" help:"Run the documentation daemon"`
	RunOnce         RunOnceCmd         `cmd:"" name:"run-once" help:"Execute a single documentation cycle and exit"`
	Analyze         AnalyzeCmd         `cmd:"" help:"Analyze a repository and list documentation candidates"`
	SchedulePreview SchedulePreviewCmd `cmd:"" name:"schedule-preview" help:"Preview upcoming scheduled commit times"`
	Stats           StatsCmd           `cmd:"" help:"Show documentation statistics"`
	Init            InitCmd            `cmd:"" help:"Initialize a new devlog repository"`
	VersionCmd      VersionCmd         `cmd:"" name:"version" help:"Show version information"`
}

// AfterApply runs after flag parsing; sets up logging once. The run
// commands replace this with the full observability stack after the
// config is loaded.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig layers file, environment and CLI flags.
func (c *CLI) loadConfig(overrides ...config.Override) (*config.Config, error) {
	if c.Verbose {
		overrides = append(overrides, func(cfg *config.Config) { cfg.Debug = true })
	}
	return config.Load(c.Config, overrides...)
}

// parseRepoFlags converts name=path pairs into repo entries.
func parseRepoFlags(pairs []string) []model.RepoEntry {
	var repos []model.RepoEntry
	for _, pair := range pairs {
		name, path, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		repos = append(repos, model.RepoEntry{
			Name:    strings.TrimSpace(name),
			Path:    strings.TrimSpace(path),
			Weight:  5,
			Enabled: true,
		})
	}
	return repos
}
