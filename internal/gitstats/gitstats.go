// Package gitstats derives per-file churn, recency and authorship metrics
// from a repository's history.
package gitstats

import (
	"errors"
	"io"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// maxHistoryDepth bounds the log walk per file.
const maxHistoryDepth = 100

// FileStats is the history-derived profile of one file. The zero value
// (no history, DaysSinceModified 999) is what callers get for files
// outside version control.
type FileStats struct {
	CommitCount30d int
	CommitCount90d int
	LastModified   time.Time
	UniqueAuthors  int
}

// DaysSinceModified returns whole days since the last commit touching the
// file, or 999 when the file has no history.
func (s FileStats) DaysSinceModified() int {
	if s.LastModified.IsZero() {
		return 999
	}
	return int(time.Since(s.LastModified).Hours() / 24)
}

// IsHot reports frequent recent modification.
func (s FileStats) IsHot() bool {
	return s.CommitCount30d >= 3
}

// IsNew reports a recently introduced file with little history.
func (s FileStats) IsNew() bool {
	return s.CommitCount90d <= 2 && !s.LastModified.IsZero() && s.DaysSinceModified() <= 14
}

// Collector reads history from one repository. A nil Collector (or one
// opened on a non-repo directory) yields zero stats for every file.
type Collector struct {
	repo *git.Repository
	root string
}

// Open opens the repository containing repoPath. A missing .git is not an
// error; the collector simply degrades to zero stats.
func Open(repoPath string) *Collector {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return &Collector{}
	}
	return &Collector{repo: repo, root: repoPath}
}

// ForFile collects stats for one file. Any history error degrades to
// zero stats rather than failing the caller.
func (c *Collector) ForFile(path string) FileStats {
	if c == nil || c.repo == nil {
		return FileStats{}
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	iter, err := c.repo.Log(&git.LogOptions{FileName: &rel})
	if err != nil {
		return FileStats{}
	}
	defer iter.Close()

	now := time.Now()
	cutoff30 := now.AddDate(0, 0, -30)
	cutoff90 := now.AddDate(0, 0, -90)

	var stats FileStats
	authors := make(map[string]struct{})
	seen := 0
	err = iter.ForEach(func(commit *object.Commit) error {
		seen++
		when := commit.Committer.When
		if stats.LastModified.IsZero() {
			stats.LastModified = when
		}
		if when.After(cutoff30) {
			stats.CommitCount30d++
		}
		if when.After(cutoff90) {
			stats.CommitCount90d++
		}
		authors[commit.Author.Email] = struct{}{}
		if seen >= maxHistoryDepth {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return FileStats{}
	}
	stats.UniqueAuthors = len(authors)
	return stats
}
