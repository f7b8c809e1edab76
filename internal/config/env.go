package config

import (
	"os"
	"strconv"
)

// applyEnv overlays CODEWORM_* environment variables onto cfg. Only the
// knobs an operator plausibly flips per-host are exposed; structural
// configuration (repos, patterns, weights) stays in the YAML file.
func applyEnv(cfg *Config) {
	envBool("CODEWORM_DEBUG", &cfg.Debug)
	envString("CODEWORM_DATA_DIR", &cfg.DataDir)

	envString("CODEWORM_DEVLOG_REPO_PATH", &cfg.Devlog.RepoPath)
	envString("CODEWORM_DEVLOG_REMOTE", &cfg.Devlog.Remote)
	envString("CODEWORM_DEVLOG_BRANCH", &cfg.Devlog.Branch)

	envString("CODEWORM_OLLAMA_HOST", &cfg.Ollama.Host)
	envInt("CODEWORM_OLLAMA_PORT", &cfg.Ollama.Port)
	envString("CODEWORM_OLLAMA_MODEL", &cfg.Ollama.Model)

	envBool("CODEWORM_SCHEDULE_ENABLED", &cfg.Schedule.Enabled)
	envString("CODEWORM_TIMEZONE", &cfg.Schedule.Timezone)

	envBool("CODEWORM_EVENTS_ENABLED", &cfg.Events.Enabled)
	envString("CODEWORM_NATS_URL", &cfg.Events.NATSURL)

	envBool("CODEWORM_NOTIFY_ENABLED", &cfg.Notify.Enabled)
	envString("CODEWORM_NOTIFY_WEBHOOK_URL", &cfg.Notify.WebhookURL)

	envBool("CODEWORM_METRICS_ENABLED", &cfg.Metrics.Enabled)
	envString("CODEWORM_METRICS_LISTEN", &cfg.Metrics.Listen)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
