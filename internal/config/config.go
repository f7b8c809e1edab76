// Package config loads daemon configuration from layered sources.
// Precedence, highest to lowest: explicit overrides, CODEWORM_* environment
// variables, the YAML config file, built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

// DevlogConfig describes the output git repository.
type DevlogConfig struct {
	RepoPath string `yaml:"repo_path"`
	Remote   string `yaml:"remote"`
	Branch   string `yaml:"branch"`
}

// OllamaConfig describes the LLM endpoint and generation parameters.
type OllamaConfig struct {
	Host        string  `yaml:"host"`
	Port        int     `yaml:"port"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	NumCtx      int     `yaml:"num_ctx"`
	NumPredict  int     `yaml:"num_predict"`
	KeepAlive   string  `yaml:"keep_alive"`
}

// BaseURL constructs the Ollama API base URL.
func (o OllamaConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", o.Host, o.Port)
}

// ScheduleConfig drives the human-like trigger.
type ScheduleConfig struct {
	Enabled          bool    `yaml:"enabled"`
	MinCommitsPerDay int     `yaml:"min_commits_per_day"`
	MaxCommitsPerDay int     `yaml:"max_commits_per_day"`
	Timezone         string  `yaml:"timezone"`
	PreferHours      []int   `yaml:"prefer_hours"`
	AvoidHours       []int   `yaml:"avoid_hours"`
	WeekendReduction float64 `yaml:"weekend_reduction"`
	MinGapMinutes    int     `yaml:"min_gap_minutes"`
}

// AnalyzerConfig bounds candidate selection.
type AnalyzerConfig struct {
	MinComplexity   int      `yaml:"min_complexity"`
	MinLines        int      `yaml:"min_lines"`
	MaxLines        int      `yaml:"max_lines"`
	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

// DocumentationConfig holds flavor weights and the redocumentation cooldown.
type DocumentationConfig struct {
	TypeWeights         map[string]int `yaml:"type_weights"`
	RedocumentAfterDays int            `yaml:"redocument_after_days"`
}

// NotifyConfig configures the alert notifier.
type NotifyConfig struct {
	Enabled            bool   `yaml:"enabled"`
	WebhookURL         string `yaml:"webhook_url"`
	AlertAfterFailures int    `yaml:"alert_after_failures"`
	AlertOnPushFailure bool   `yaml:"alert_on_push_failure"`
}

// EventsConfig configures the NATS pub/sub fan-out.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Config is the root configuration for the daemon.
type Config struct {
	Debug         bool                `yaml:"debug"`
	DataDir       string              `yaml:"data_dir"`
	Devlog        DevlogConfig        `yaml:"devlog"`
	Ollama        OllamaConfig        `yaml:"ollama"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Analyzer      AnalyzerConfig      `yaml:"analyzer"`
	Repos         []model.RepoEntry   `yaml:"repos"`
	Documentation DocumentationConfig `yaml:"documentation"`
	Notify        NotifyConfig        `yaml:"notify"`
	Events        EventsConfig        `yaml:"events"`
	Metrics       MetricsConfig       `yaml:"metrics"`

	path string
}

// Path is the config file this was loaded from; empty for defaults.
func (c *Config) Path() string {
	return c.path
}

// DBPath is where the memory store lives.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "state.db")
}

// EnabledRepos returns the repos eligible for scanning, in configured order.
func (c *Config) EnabledRepos() []model.RepoEntry {
	out := make([]model.RepoEntry, 0, len(c.Repos))
	for _, r := range c.Repos {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Default returns the built-in defaults, before any file or env layering.
func Default() *Config {
	return &Config{
		DataDir: "data",
		Devlog:  DevlogConfig{Branch: "main"},
		Ollama: OllamaConfig{
			Host:        "localhost",
			Port:        11434,
			Model:       "qwen2.5:7b",
			Temperature: 0.3,
			NumCtx:      16384,
			NumPredict:  4096,
			KeepAlive:   "-1",
		},
		Schedule: ScheduleConfig{
			Enabled:          true,
			MinCommitsPerDay: 12,
			MaxCommitsPerDay: 18,
			Timezone:         "America/Los_Angeles",
			PreferHours:      []int{9, 10, 11, 14, 15, 16, 20, 21, 22},
			AvoidHours:       []int{3, 4, 5, 6, 7},
			WeekendReduction: 0.7,
			MinGapMinutes:    30,
		},
		Analyzer: AnalyzerConfig{
			MinComplexity: 3,
			MinLines:      15,
			MaxLines:      150,
			IncludePatterns: []string{
				"**/*.py", "**/*.ts", "**/*.tsx", "**/*.js", "**/*.go", "**/*.rs",
			},
			ExcludePatterns: []string{
				"**/test_*.py",
				"**/*_test.py",
				"**/*_test.go",
				"**/*.spec.ts",
				"**/*.test.ts",
				"**/*.test.js",
				"**/tests/**",
				"**/test/**",
				"**/__tests__/**",
				"**/node_modules/**",
				"**/venv/**",
				"**/.venv/**",
				"**/__pycache__/**",
				"**/dist/**",
				"**/build/**",
				"**/.git/**",
				"**/vendor/**",
				"**/target/**",
			},
		},
		Documentation: DocumentationConfig{
			TypeWeights:         map[string]int{string(model.DocFunction): 10},
			RedocumentAfterDays: 90,
		},
		Notify: NotifyConfig{
			AlertAfterFailures: 4,
			AlertOnPushFailure: true,
		},
		Events:  EventsConfig{NATSURL: "nats://127.0.0.1:4222"},
		Metrics: MetricsConfig{Listen: "127.0.0.1:9154"},
	}
}

// Override is an explicit programmatic override applied after env layering.
type Override func(*Config)

// Load reads the YAML config file (if it exists), applies environment
// overrides and then any explicit overrides, and validates the result.
func Load(path string, overrides ...Override) (*Config, error) {
	// .env files never override the process environment.
	_ = godotenv.Load()

	cfg := Default()
	cfg.path = path

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	for _, o := range overrides {
		o(cfg)
	}

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandPaths(cfg *Config) {
	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.Devlog.RepoPath = expandPath(cfg.Devlog.RepoPath)
	for i := range cfg.Repos {
		cfg.Repos[i].Path = expandPath(cfg.Repos[i].Path)
	}
}

// expandPath expands ~ and $VARS in a filesystem path.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return os.ExpandEnv(p)
}

// Validate checks invariants the rest of the daemon relies on.
func (c *Config) Validate() error {
	if c.Devlog.RepoPath == "" {
		return fmt.Errorf("devlog.repo_path is required")
	}
	if c.Schedule.MinCommitsPerDay < 1 || c.Schedule.MinCommitsPerDay > 50 {
		return fmt.Errorf("schedule.min_commits_per_day must be in 1..50, got %d", c.Schedule.MinCommitsPerDay)
	}
	if c.Schedule.MaxCommitsPerDay < c.Schedule.MinCommitsPerDay || c.Schedule.MaxCommitsPerDay > 50 {
		return fmt.Errorf("schedule.max_commits_per_day must be in %d..50, got %d",
			c.Schedule.MinCommitsPerDay, c.Schedule.MaxCommitsPerDay)
	}
	if c.Schedule.WeekendReduction < 0 || c.Schedule.WeekendReduction > 1 {
		return fmt.Errorf("schedule.weekend_reduction must be in 0..1, got %g", c.Schedule.WeekendReduction)
	}
	if c.Schedule.MinGapMinutes < 0 {
		return fmt.Errorf("schedule.min_gap_minutes cannot be negative")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone %q: %w", c.Schedule.Timezone, err)
	}
	for _, h := range c.Schedule.PreferHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("schedule.prefer_hours entry %d out of range", h)
		}
	}
	for _, h := range c.Schedule.AvoidHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("schedule.avoid_hours entry %d out of range", h)
		}
	}
	for _, r := range c.Repos {
		if r.Name == "" {
			return fmt.Errorf("repo entry without a name")
		}
		if r.Weight < 1 || r.Weight > 10 {
			return fmt.Errorf("repo %s: weight must be in 1..10, got %d", r.Name, r.Weight)
		}
		if r.Enabled {
			info, err := os.Stat(r.Path)
			if err != nil {
				return fmt.Errorf("repo %s: path %s: %w", r.Name, r.Path, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("repo %s: path %s is not a directory", r.Name, r.Path)
			}
		}
	}
	for ts := range c.Documentation.TypeWeights {
		if _, ok := model.ParseDocType(ts); !ok {
			return fmt.Errorf("documentation.type_weights: unknown doc type %q", ts)
		}
	}
	if c.Documentation.RedocumentAfterDays < 0 {
		return fmt.Errorf("documentation.redocument_after_days cannot be negative")
	}
	return nil
}
