// Package devlog manages the output git repository: directory layout,
// snippet writes, commits and pushes with transient-failure retry.
package devlog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	cwconfig "git.home.luguber.info/inful/codeworm/internal/config"
	"git.home.luguber.info/inful/codeworm/internal/logfields"
	"git.home.luguber.info/inful/codeworm/internal/model"
)

var (
	ErrNothingToCommit = errors.New("nothing to commit")
	ErrConflict        = errors.New("push rejected, remote has diverged")
	ErrSecretBlocked   = errors.New("push blocked by secret scanning")
)

// transientPatterns are error substrings worth retrying a push for.
var transientPatterns = []string{
	"connection reset",
	"connection refused",
	"connection timed out",
	"network unreachable",
	"could not resolve host",
	"ssl",
	"temporary failure",
}

const (
	authorName  = "codeworm"
	authorEmail = "codeworm@localhost"
)

// CommitResult describes one completed commit.
type CommitResult struct {
	Hash        string
	Message     string
	CommittedAt time.Time
	Branch      string
}

// CommitInfo is one entry of the recent-commit listing.
type CommitInfo struct {
	Hash    string
	Message string
	Author  string
	Date    time.Time
}

// Repository wraps the devlog working copy. Opened lazily; a missing
// directory is created and initialized.
type Repository struct {
	path      string
	remoteURL string
	branch    string

	repo  *git.Repository
	sleep func(time.Duration)
}

// New builds a repository handle without touching the filesystem.
func New(cfg cwconfig.DevlogConfig) *Repository {
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	return &Repository{
		path:      cfg.RepoPath,
		remoteURL: cfg.Remote,
		branch:    branch,
		sleep:     time.Sleep,
	}
}

// Path returns the working copy root.
func (r *Repository) Path() string {
	return r.path
}

func (r *Repository) open() (*git.Repository, error) {
	if r.repo != nil {
		return r.repo, nil
	}
	if err := os.MkdirAll(r.path, 0o755); err != nil {
		return nil, fmt.Errorf("create devlog dir: %w", err)
	}
	repo, err := git.PlainOpen(r.path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInitWithOptions(r.path, &git.PlainInitOptions{
			InitOptions: git.InitOptions{DefaultBranch: plumbing.ReferenceName("refs/heads/" + r.branch)},
		})
		if err == nil {
			slog.Info("initialized devlog repository", slog.String("path", r.path))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open devlog repository: %w", err)
	}
	r.repo = repo
	return repo, nil
}

// EnsureDirectoryStructure creates the devlog layout with .gitkeep
// placeholders so empty directories survive a clone.
func (r *Repository) EnsureDirectoryStructure() error {
	dirs := []string{
		"analysis/weekly",
		"analysis/monthly",
		"patterns",
		"stats",
	}
	for _, lang := range model.Languages() {
		dirs = append(dirs, filepath.Join("snippets", string(lang)))
	}

	for _, dir := range dirs {
		full := filepath.Join(r.path, dir)
		if err := os.MkdirAll(full, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		keep := filepath.Join(full, ".gitkeep")
		if _, err := os.Stat(keep); os.IsNotExist(err) {
			if err := os.WriteFile(keep, nil, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", keep, err)
			}
		}
	}
	return nil
}

// WriteSnippet writes a document under snippets/<language>/ and returns
// its path relative to the repository root.
func (r *Repository) WriteSnippet(content, filename string, language model.Language) (string, error) {
	dir := filepath.Join(r.path, "snippets", string(language))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snippet dir: %w", err)
	}
	full := filepath.Join(dir, filename)
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write snippet: %w", err)
	}
	rel, err := filepath.Rel(r.path, full)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Commit stages the given repo-relative paths (or everything when none
// are given) and commits. ErrNothingToCommit when the tree is clean.
func (r *Repository) Commit(message string, files ...string) (*CommitResult, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}

	if len(files) == 0 {
		if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
			return nil, fmt.Errorf("stage all: %w", err)
		}
	} else {
		for _, f := range files {
			if _, err := wt.Add(f); err != nil {
				return nil, fmt.Errorf("stage %s: %w", f, err)
			}
		}
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		return nil, ErrNothingToCommit
	}

	now := time.Now()
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: authorName, Email: authorEmail, When: now},
	})
	if err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &CommitResult{
		Hash:        hash.String()[:8],
		Message:     message,
		CommittedAt: now,
		Branch:      r.branch,
	}, nil
}

// Push sends the branch to the configured remote, retrying transient
// failures with linear backoff. Conflicts and secret-scanning blocks
// surface as typed errors and are never retried.
func (r *Repository) Push(maxRetries int, retryDelay time.Duration) error {
	if r.remoteURL == "" {
		slog.Debug("no remote configured, skipping push")
		return nil
	}
	repo, err := r.open()
	if err != nil {
		return err
	}
	if _, err := repo.Remote("origin"); err != nil {
		if _, err := repo.CreateRemote(&config.RemoteConfig{
			Name: "origin",
			URLs: []string{r.remoteURL},
		}); err != nil {
			return fmt.Errorf("create remote: %w", err)
		}
		slog.Info("created remote", slog.String("url", r.remoteURL))
	}

	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", r.branch, r.branch))
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := repo.Push(&git.PushOptions{
			RemoteName: "origin",
			RefSpecs:   []config.RefSpec{refSpec},
		})
		if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
			slog.Info("push successful", slog.String("branch", r.branch))
			return nil
		}
		lastErr = err

		if classified := classifyPushError(err); classified != nil {
			return classified
		}
		if !isTransient(err) {
			return fmt.Errorf("push failed: %w", err)
		}
		slog.Warn("push retry",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", maxRetries),
			logfields.Error(err))
		r.sleep(time.Duration(attempt+1) * retryDelay)
	}
	return fmt.Errorf("push failed after %d retries: %w", maxRetries, lastErr)
}

func classifyPushError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "gh013") || strings.Contains(msg, "secret") {
		return fmt.Errorf("%w: %v", ErrSecretBlocked, err)
	}
	if strings.Contains(msg, "non-fast-forward") || strings.Contains(msg, "conflict") || strings.Contains(msg, "rejected") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return nil
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Pull rebases local work on top of the remote branch. Conflicts
// surface as ErrConflict; other failures are logged and swallowed.
func (r *Repository) Pull() error {
	if r.remoteURL == "" {
		return nil
	}
	repo, err := r.open()
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	err = wt.Pull(&git.PullOptions{RemoteName: "origin"})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "conflict") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	slog.Warn("pull failed", logfields.Error(err))
	return nil
}

// RecentCommits lists the newest commits, newest first.
func (r *Repository) RecentCommits(count int) ([]CommitInfo, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	defer iter.Close()

	var commits []CommitInfo
	for len(commits) < count {
		c, err := iter.Next()
		if err != nil {
			break
		}
		commits = append(commits, CommitInfo{
			Hash:    c.Hash.String()[:8],
			Message: strings.TrimSpace(c.Message),
			Author:  c.Author.Name,
			Date:    c.Author.When,
		})
	}
	return commits, nil
}
