package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/devlog"
	"git.home.luguber.info/inful/codeworm/internal/docmd"
	"git.home.luguber.info/inful/codeworm/internal/llm"
	"git.home.luguber.info/inful/codeworm/internal/logfields"
	"git.home.luguber.info/inful/codeworm/internal/metrics"
	"git.home.luguber.info/inful/codeworm/internal/model"
	"git.home.luguber.info/inful/codeworm/internal/scanner"
	"git.home.luguber.info/inful/codeworm/internal/targets"
)

const targetsPerQuery = 30

// RunCycle executes one documentation cycle: pick a flavor, find a
// target the memory allows, generate, validate, commit, push. Returns
// true when a document was committed (or would have been, in dry-run).
func (d *Daemon) RunCycle(ctx context.Context) bool {
	if backoff := d.stats.Backoff(); backoff > 0 {
		slog.Info("backing off",
			slog.Duration("wait", backoff),
			slog.Int("consecutive_failures", d.stats.ConsecutiveFailures()))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
	}

	start := time.Now()
	cycleNum := d.stats.TotalCycles() + 1
	// Reseed per cycle so a cycle's candidate set is reproducible.
	d.analyzer.Reseed(uint64(cycleNum))
	slog.Info("cycle starting", logfields.Cycle(cycleNum))
	d.publisher.PublishEvent("cycle_starting", map[string]any{"cycle_num": cycleNum})

	if !d.ensureOllamaReady(ctx) {
		return false
	}

	target := d.findTarget(ctx)
	if target == nil {
		d.stats.RecordSkip("no_candidates")
		d.recorder.IncCycle(metrics.OutcomeSkipped)
		slog.Warn("cycle skipped, no candidates",
			slog.Any("repos_exhausted", d.stats.ExhaustedRepos()))
		if d.stats.SkippedCycles() >= d.cfg.Notify.AlertAfterFailures {
			_ = d.notifier.Alert(ctx,
				fmt.Sprintf("%d cycles skipped, no candidates found", d.stats.SkippedCycles()),
				fmt.Sprintf("Repos exhausted: %v", d.stats.ExhaustedRepos()))
		}
		d.stats.ClearExhausted()
		return false
	}

	d.publisher.PublishEvent("analyzing", map[string]any{
		"target":   target.Snippet.DisplayName(),
		"doc_type": string(target.DocType),
		"repo":     target.Snippet.Repo,
	})

	ok := d.documentTarget(ctx, target)
	d.recorder.ObserveCycleDuration(time.Since(start))
	if ok {
		d.stats.RecordSuccess()
		d.recorder.IncCycle(metrics.OutcomeSuccess)
		d.recorder.SetConsecutiveFailures(0)
		d.logCycleStats()
		d.emitStats(ctx)
	} else {
		d.stats.RecordFailure("documentation_failed")
		d.recorder.IncCycle(metrics.OutcomeFailed)
		d.recorder.SetConsecutiveFailures(d.stats.ConsecutiveFailures())
		if d.stats.ConsecutiveFailures() >= d.cfg.Notify.AlertAfterFailures {
			_ = d.notifier.Alert(ctx,
				fmt.Sprintf("%d consecutive documentation failures", d.stats.ConsecutiveFailures()),
				d.stats.LastFailureReason())
		}
	}
	return ok
}

// findTarget walks flavors (weighted pick first, then the rest) and
// repos in weighted order until the memory store approves a target.
func (d *Daemon) findTarget(ctx context.Context) *model.DocumentationTarget {
	weights := d.cfg.Documentation.TypeWeights
	redocDays := d.cfg.Documentation.RedocumentAfterDays
	repos := scanner.NewWeightedRepoSelector(d.cfg.EnabledRepos(), d.rng).Order()

	selected := targets.SelectDocType(weights, d.rng)
	tried := map[model.DocType]struct{}{}
	visited := map[string]struct{}{}

	order := []model.DocType{selected}
	order = append(order, targets.DispatchableTypes(weights)...)

	for _, docType := range order {
		if _, seen := tried[docType]; seen {
			continue
		}
		if docType.IsSummary() {
			continue
		}
		tried[docType] = struct{}{}

		for _, repo := range repos {
			if d.stats.RepoExhausted(repo.Name) {
				continue
			}
			visited[repo.Name] = struct{}{}
			for _, target := range d.router.FindTargets(docType, repo, targetsPerQuery) {
				eligible, err := d.store.ShouldDocument(ctx, target.Snippet, docType, redocDays)
				if err != nil {
					slog.Warn("memory check failed", logfields.Error(err))
					continue
				}
				if eligible {
					slog.Debug("target found",
						logfields.DocType(string(docType)),
						logfields.Target(target.Snippet.DisplayName()),
						logfields.Repository(repo.Name))
					return target
				}
			}
		}
	}

	// Every flavor came up empty: every candidate each visited repo
	// produced was memory-blocked or nonexistent.
	for name := range visited {
		d.stats.RecordRepoExhausted(name)
	}
	return nil
}

// documentTarget generates prose for a target and commits it.
func (d *Daemon) documentTarget(ctx context.Context, target *model.DocumentationTarget) bool {
	snip := target.Snippet
	slog.Info("documenting",
		logfields.Target(snip.DisplayName()),
		logfields.DocType(string(target.DocType)),
		logfields.Repository(snip.Repo),
		logfields.Score(snip.InterestScore),
		slog.Bool("dry_run", d.dryRun))

	d.publisher.PublishEvent("generating", map[string]any{
		"target":   snip.DisplayName(),
		"doc_type": string(target.DocType),
		"repo":     snip.Repo,
		"language": string(snip.Language),
	})

	system, user := llm.BuildTargetPrompt(target)
	genStart := time.Now()
	result, err := d.client.GenerateWithRetry(ctx, user, system, llmMaxRetries, llmRetryDelay)
	if err != nil {
		slog.Error("llm error",
			logfields.Target(snip.DisplayName()),
			logfields.Error(err))
		return false
	}
	d.recorder.ObserveGeneration(string(target.DocType), time.Since(genStart), result.TotalTokens())

	commitMsg := d.commitMessage(ctx, result.Text, snip, target.DocType)

	if d.dryRun {
		slog.Info("dry run complete",
			logfields.Target(snip.DisplayName()),
			logfields.Tokens(result.TotalTokens()),
			slog.String("would_commit", commitMsg))
		return true
	}

	doc := &docmd.Document{
		Target:      target,
		Body:        result.Text,
		Model:       result.Model,
		TokensUsed:  result.TotalTokens(),
		GeneratedAt: time.Now(),
	}
	content := doc.Render()
	if err := docmd.Validate(content); err != nil {
		slog.Error("generated document rejected",
			logfields.Target(snip.DisplayName()),
			logfields.Error(err))
		return false
	}

	relPath, err := d.devlog.WriteSnippet(content, docmd.Filename(snip), snip.Language)
	if err != nil {
		slog.Error("snippet write failed", logfields.Error(err))
		return false
	}
	commit, err := d.devlog.Commit(commitMsg, relPath)
	if err != nil {
		slog.Error("commit failed", logfields.Error(err))
		return false
	}

	if _, err := d.store.RecordDocumentation(ctx, snip, relPath, commit.Hash, target.DocType); err != nil {
		slog.Warn("memory record failed", logfields.Error(err))
	}

	slog.Info("documentation committed",
		logfields.Target(snip.DisplayName()),
		logfields.DocType(string(target.DocType)),
		logfields.Commit(commit.Hash),
		logfields.Tokens(result.TotalTokens()))

	d.publisher.PublishEvent("documentation_committed", map[string]any{
		"target":         snip.DisplayName(),
		"doc_type":       string(target.DocType),
		"commit":         commit.Hash,
		"tokens":         result.TotalTokens(),
		"repo":           snip.Repo,
		"language":       string(snip.Language),
		"commit_message": commitMsg,
	})

	d.pushDevlog(ctx)
	return true
}

// pushDevlog pushes if a remote is configured. A failed push never
// fails the cycle; the commit is safe locally and the next push will
// carry it.
func (d *Daemon) pushDevlog(ctx context.Context) {
	if d.cfg.Devlog.Remote == "" {
		return
	}
	err := d.devlog.Push(pushRetries, pushDelay)
	if err == nil {
		d.stats.RecordPushSuccess()
		d.recorder.IncPush(true)
		return
	}

	failures := d.stats.RecordPushFailure()
	d.recorder.IncPush(false)
	slog.Warn("push failed", logfields.Error(err))

	if !d.cfg.Notify.AlertOnPushFailure {
		return
	}
	switch {
	case isSecretBlocked(err):
		_ = d.notifier.Alert(ctx,
			"Push blocked, secret scanning violation",
			truncate(err.Error(), 300)+"\nManual intervention required.")
	case failures >= d.cfg.Notify.AlertAfterFailures:
		_ = d.notifier.Error(ctx, err, "git.push")
	}
}

func isSecretBlocked(err error) bool {
	return errors.Is(err, devlog.ErrSecretBlocked)
}

// commitMessage asks the model for a commit line; anything unusable
// falls back to a deterministic message.
func (d *Daemon) commitMessage(ctx context.Context, documentation string, snip *model.CodeSnippet, docType model.DocType) string {
	system, user := llm.BuildCommitMessagePrompt(documentation, snip)
	result, err := d.client.Generate(ctx, user, system)
	if err != nil {
		return llm.FallbackCommitMessage(snip, docType)
	}
	msg := sanitizeCommitMessage(result.Text)
	if msg == "" {
		return llm.FallbackCommitMessage(snip, docType)
	}
	return msg
}

// sanitizeCommitMessage reduces model output to one clean line under 72
// chars that starts with a capitalized word. Empty means unusable.
func sanitizeCommitMessage(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.Trim(line, "\"'`")
	if line == "" || line[0] < 'A' || line[0] > 'Z' {
		return ""
	}
	return truncate(line, 72)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (d *Daemon) logCycleStats() {
	if n := d.stats.SuccessfulCycles(); n > 0 && n%10 == 0 {
		slog.Info("cycle stats", slog.Any("stats", d.stats.Snapshot()))
	}
}

func (d *Daemon) emitStats(ctx context.Context) {
	snap := d.stats.Snapshot()
	if dbStats, err := d.store.GetStats(ctx); err == nil {
		snap["total_documented"] = dbStats.Total
		snap["last_7_days"] = dbStats.Last7Days
	}
	d.publisher.PublishStats(snap)
}
