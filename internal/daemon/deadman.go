package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	deadManCheckInterval  = 5 * time.Minute
	deadManAlertThreshold = 45 * time.Minute
	deadManLogTailLines   = 20
)

// deadMansSwitch alerts once when no commit has landed for too long,
// and re-arms after the next success. Runs until shutdown.
func (d *Daemon) deadMansSwitch(ctx context.Context) {
	alerted := false

	ticker := time.NewTicker(deadManCheckInterval)
	defer ticker.Stop()

	// First check only after a full interval; startup is not silence.
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
		}

		reference := d.stats.LastSuccess()
		if reference.IsZero() {
			reference = d.startTime
		}
		age := time.Since(reference)

		switch {
		case age > deadManAlertThreshold && !alerted:
			slog.Warn("dead man's switch triggered",
				slog.Float64("minutes_since_last_commit", age.Minutes()))
			_ = d.notifier.Alert(ctx,
				fmt.Sprintf("No commits in %d minutes", int(age.Minutes())),
				d.tailLog(deadManLogTailLines))
			alerted = true
		case age <= deadManAlertThreshold && alerted:
			alerted = false
		}
	}
}

// tailLog returns the last readable lines of the log file for alert
// context. JSON records are skipped; only the text lines are useful to
// a human on a phone.
func (d *Daemon) tailLog(lines int) string {
	data, err := os.ReadFile(d.logPath)
	if err != nil {
		return "(log unavailable)"
	}
	var readable []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" && !strings.HasPrefix(line, "{") {
			readable = append(readable, line)
		}
	}
	if len(readable) > lines {
		readable = readable[len(readable)-lines:]
	}
	if len(readable) == 0 {
		return "(log unavailable)"
	}
	return strings.Join(readable, "\n")
}
