package analysis

import (
	"math/rand/v2"
	"os"
	"sort"

	"git.home.luguber.info/inful/codeworm/internal/config"
	"git.home.luguber.info/inful/codeworm/internal/gitstats"
	"git.home.luguber.info/inful/codeworm/internal/model"
	"git.home.luguber.info/inful/codeworm/internal/scanner"
	"git.home.luguber.info/inful/codeworm/internal/scoring"
)

// skipNames are boilerplate entry points never worth documenting.
var skipNames = map[string]struct{}{
	"__init__": {}, "__str__": {}, "__repr__": {},
	"main": {}, "setUp": {}, "tearDown": {},
}

// Candidate is one scored documentation candidate.
type Candidate struct {
	Snippet  *model.CodeSnippet
	Function *ParsedFunction
	Metrics  scoring.Metrics
	GitStats gitstats.FileStats
	Score    scoring.Score
	File     scanner.ScannedFile
}

// WorthDocumenting applies the structural thresholds; the memory check is
// layered on by the caller.
func (c *Candidate) WorthDocumenting() bool {
	return scoring.WorthDocumenting(c.Score, c.Snippet.LineCount())
}

// Analyzer combines scanning, extraction, metrics and scoring. The RNG
// drives the probabilistic skip of single-underscore helpers; the
// supervisor reseeds it each cycle so one cycle's candidate set is
// reproducible.
type Analyzer struct {
	settings config.AnalyzerConfig
	scanner  *scanner.Scanner
	scorer   scoring.Scorer
	rng      *rand.Rand

	collectors map[string]*gitstats.Collector
}

// New builds an analyzer for the given settings.
func New(settings config.AnalyzerConfig, rng *rand.Rand) *Analyzer {
	return &Analyzer{
		settings:   settings,
		scanner:    scanner.New(settings.IncludePatterns, settings.ExcludePatterns),
		rng:        rng,
		collectors: make(map[string]*gitstats.Collector),
	}
}

// Reseed replaces the RNG stream, making the next scan deterministic for
// a given seed.
func (a *Analyzer) Reseed(seed uint64) {
	a.rng = rand.New(rand.NewPCG(seed, seed))
}

func (a *Analyzer) collector(repoPath string) *gitstats.Collector {
	c, ok := a.collectors[repoPath]
	if !ok {
		c = gitstats.Open(repoPath)
		a.collectors[repoPath] = c
	}
	return c
}

// AnalyzeFile extracts and scores every function in one scanned file.
// Unreadable or unparseable files yield no candidates.
func (a *Analyzer) AnalyzeFile(repo model.RepoEntry, file scanner.ScannedFile) []Candidate {
	data, err := os.ReadFile(file.Path) // #nosec G304 -- path comes from the scanner
	if err != nil {
		return nil
	}
	source := string(data)
	stats := a.collector(repo.Path).ForFile(file.Path)

	var out []Candidate
	for _, fn := range ExtractFunctions(source, file.Language) {
		fn := fn
		if a.shouldSkip(&fn) {
			continue
		}
		metrics := MeasureFunction(&fn, file.Language)
		if a.settings.MinComplexity > 0 && metrics.Cyclomatic < a.settings.MinComplexity {
			continue
		}
		score := a.scorer.Score(metrics, stats, fn.Decorators, fn.IsAsync, fn.Source)

		snippet := &model.CodeSnippet{
			Repo:          file.RepoName,
			FilePath:      file.Path,
			FunctionName:  fn.Name,
			ClassName:     fn.ClassName,
			Language:      file.Language,
			Source:        fn.Source,
			StartLine:     fn.StartLine,
			EndLine:       fn.EndLine,
			Complexity:    metrics.Cyclomatic,
			NestingDepth:  metrics.MaxNestingDepth,
			ParamCount:    metrics.ParameterCount,
			InterestScore: score.Total,
		}
		out = append(out, Candidate{
			Snippet:  snippet,
			Function: &fn,
			Metrics:  metrics,
			GitStats: stats,
			Score:    score,
			File:     file,
		})
	}
	return out
}

// FindCandidates scans one repo and returns worth-documenting candidates,
// best first, at most limit.
func (a *Analyzer) FindCandidates(repo model.RepoEntry, limit int) []Candidate {
	var candidates []Candidate
	for _, file := range a.scanner.ScanRepo(repo.Path, repo.Name) {
		for _, c := range a.AnalyzeFile(repo, file) {
			if c.WorthDocumenting() {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) >= limit*3 {
			break
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score.Total > candidates[j].Score.Total
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// ScanRepo exposes the raw file walk for the file/module/pattern finders.
func (a *Analyzer) ScanRepo(repo model.RepoEntry) []scanner.ScannedFile {
	return a.scanner.ScanRepo(repo.Path, repo.Name)
}

// Collector exposes per-repo git history for the evolution finder.
func (a *Analyzer) Collector(repo model.RepoEntry) *gitstats.Collector {
	return a.collector(repo.Path)
}

// shouldSkip drops boilerplate names, dunder-adjacent helpers (70% of the
// time) and functions outside the configured line bounds.
func (a *Analyzer) shouldSkip(fn *ParsedFunction) bool {
	if len(fn.Name) > 1 && fn.Name[0] == '_' && fn.Name[1] != '_' {
		if a.rng.Float64() > 0.3 {
			return true
		}
	}
	if _, ok := skipNames[fn.Name]; ok {
		return true
	}
	lineCount := fn.EndLine - fn.StartLine + 1
	if a.settings.MinLines > 0 && lineCount < a.settings.MinLines {
		return true
	}
	if a.settings.MaxLines > 0 && lineCount > a.settings.MaxLines {
		return true
	}
	return false
}
