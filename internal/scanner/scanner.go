// Package scanner walks a source repository and emits the files eligible
// for analysis, filtered by glob patterns, gitignore rules and a binary
// heuristic.
package scanner

import (
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

const (
	maxFileSize      = 1 << 20 // 1 MiB
	binaryCheckBytes = 8192
)

// builtinIgnores are applied on top of the repo's .gitignore.
var builtinIgnores = []string{
	".git/",
	"__pycache__/",
	"*.pyc",
	"node_modules/",
	".venv/",
	"venv/",
	".env",
	"*.egg-info/",
	"target/",
}

// ScannedFile is one file that passed every filter.
type ScannedFile struct {
	Path         string
	RelativePath string
	Language     model.Language
	RepoName     string
	SizeBytes    int64
}

// Scanner filters candidate files by include/exclude globs.
// It holds no per-repo state and is safe to reuse across repos.
type Scanner struct {
	includePatterns []string
	excludePatterns []string
}

// New builds a scanner; empty pattern lists fall back to the analyzer
// config defaults supplied by the caller.
func New(includePatterns, excludePatterns []string) *Scanner {
	return &Scanner{
		includePatterns: includePatterns,
		excludePatterns: excludePatterns,
	}
}

// ScanRepo walks repoPath and returns every eligible source file.
// Unreadable files and directories are skipped, never surfaced as errors.
func (s *Scanner) ScanRepo(repoPath, repoName string) []ScannedFile {
	if _, err := os.Stat(repoPath); err != nil {
		return nil
	}
	ignorer := loadIgnorer(repoPath)

	var out []ScannedFile
	_ = filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil || rel == "." {
			return nil
		}
		parts := strings.Split(rel, string(filepath.Separator))

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || ignorer.Match(parts, true) {
				return fs.SkipDir
			}
			return nil
		}

		relSlash := filepath.ToSlash(rel)
		if !matchAny(s.includePatterns, relSlash) {
			return nil
		}
		if matchAny(s.excludePatterns, relSlash) {
			return nil
		}
		if ignorer.Match(parts, false) {
			return nil
		}
		lang, ok := model.LanguageForPath(path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() == 0 || info.Size() > maxFileSize {
			return nil
		}
		if isBinary(path) {
			return nil
		}
		out = append(out, ScannedFile{
			Path:         path,
			RelativePath: relSlash,
			Language:     lang,
			RepoName:     repoName,
			SizeBytes:    info.Size(),
		})
		return nil
	})
	return out
}

func matchAny(patterns []string, relPath string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// loadIgnorer combines the repo's .gitignore with the built-in ignore list.
func loadIgnorer(repoPath string) gitignore.Matcher {
	var patterns []gitignore.Pattern
	if data, err := os.ReadFile(filepath.Join(repoPath, ".gitignore")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			patterns = append(patterns, gitignore.ParsePattern(line, nil))
		}
	}
	for _, line := range builtinIgnores {
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns)
}

// isBinary applies the NUL-byte plus printable-ratio heuristic to the
// first 8 KiB. Unreadable files count as binary so they get skipped.
func isBinary(path string) bool {
	f, err := os.Open(path) // #nosec G304 -- path comes from the walk
	if err != nil {
		return true
	}
	defer f.Close()

	buf := make([]byte, binaryCheckBytes)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return true
	}
	chunk := buf[:n]
	if len(chunk) == 0 {
		return false
	}
	printable := 0
	for _, b := range chunk {
		if b == 0 {
			return true
		}
		if (b >= 32 && b <= 126) || b == '\t' || b == '\n' || b == '\r' {
			printable++
		}
	}
	return float64(printable)/float64(len(chunk)) < 0.7
}

// WeightedRepoSelector picks among enabled repos by configured weight.
type WeightedRepoSelector struct {
	repos   []model.RepoEntry
	weights []int
	total   int
	rng     *rand.Rand
}

// NewWeightedRepoSelector filters to enabled repos and precomputes weights.
func NewWeightedRepoSelector(repos []model.RepoEntry, rng *rand.Rand) *WeightedRepoSelector {
	sel := &WeightedRepoSelector{rng: rng}
	for _, r := range repos {
		if !r.Enabled {
			continue
		}
		sel.repos = append(sel.repos, r)
		sel.weights = append(sel.weights, r.Weight)
		sel.total += r.Weight
	}
	return sel
}

// Select returns one repo by weighted random choice, or false when no
// repo is enabled.
func (s *WeightedRepoSelector) Select() (model.RepoEntry, bool) {
	if s.total == 0 {
		return model.RepoEntry{}, false
	}
	n := s.rng.IntN(s.total)
	for i, w := range s.weights {
		n -= w
		if n < 0 {
			return s.repos[i], true
		}
	}
	return s.repos[len(s.repos)-1], true
}

// Order returns every enabled repo exactly once, drawn by weight without
// replacement, so heavier repos tend to come first.
func (s *WeightedRepoSelector) Order() []model.RepoEntry {
	repos := append([]model.RepoEntry(nil), s.repos...)
	weights := append([]int(nil), s.weights...)
	total := s.total

	out := make([]model.RepoEntry, 0, len(repos))
	for total > 0 {
		n := s.rng.IntN(total)
		for i, w := range weights {
			n -= w
			if n < 0 {
				out = append(out, repos[i])
				total -= w
				repos = append(repos[:i], repos[i+1:]...)
				weights = append(weights[:i], weights[i+1:]...)
				break
			}
		}
	}
	return out
}
