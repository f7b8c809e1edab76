// Package targets turns repositories into ranked documentation targets,
// one finder per flavor, with a router dispatching flavors to finders.
package targets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/codeworm/internal/analysis"
	"git.home.luguber.info/inful/codeworm/internal/model"
)

const (
	snippetCap = 4000
	contextCap = 6000
)

func capString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sortAndLimit(targets []*model.DocumentationTarget, limit int) []*model.DocumentationTarget {
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Snippet.InterestScore > targets[j].Snippet.InterestScore
	})
	if len(targets) > limit {
		targets = targets[:limit]
	}
	return targets
}

// FindFunctionTargets wraps the analyzer's ranked candidates as targets,
// re-tagged with the requested flavor. function_doc, security_review,
// performance_analysis and til all share this path.
func FindFunctionTargets(a *analysis.Analyzer, repo model.RepoEntry, docType model.DocType, limit int) []*model.DocumentationTarget {
	var targets []*model.DocumentationTarget
	for _, c := range a.FindCandidates(repo, limit) {
		snippet := *c.Snippet
		snippet.DocType = docType
		meta := map[string]string{
			"relative_path": c.File.RelativePath,
			"rating":        c.Score.Rating(),
		}
		if len(c.Function.Decorators) > 0 {
			meta["decorators"] = strings.Join(c.Function.Decorators, ", ")
		}
		if c.Function.IsAsync {
			meta["is_async"] = "true"
		}
		targets = append(targets, &model.DocumentationTarget{
			Snippet:       &snippet,
			DocType:       docType,
			SourceContext: snippet.Source,
			Metadata:      meta,
		})
	}
	return targets
}

// FindFileTargets scores whole files on length, function count, size and
// import fan-out.
func FindFileTargets(a *analysis.Analyzer, repo model.RepoEntry, limit int) []*model.DocumentationTarget {
	var targets []*model.DocumentationTarget
	for _, file := range a.ScanRepo(repo) {
		data, err := os.ReadFile(file.Path)
		if err != nil {
			continue
		}
		source := string(data)
		lineCount := strings.Count(source, "\n") + 1
		if lineCount < 20 {
			continue
		}
		funcCount := len(analysis.ExtractFunctions(source, file.Language))
		imports := analysis.CountImports(source, file.Language)

		score := minf(float64(lineCount)/200, 1)*30 +
			minf(float64(funcCount)/8, 1)*30 +
			minf(float64(file.SizeBytes)/5000, 1)*20 +
			minf(float64(imports)/10, 1)*20
		if score > 100 {
			score = 100
		}
		if score < 20 {
			continue
		}

		targets = append(targets, &model.DocumentationTarget{
			Snippet: &model.CodeSnippet{
				Repo:          file.RepoName,
				FilePath:      file.Path,
				Language:      file.Language,
				Source:        capString(source, snippetCap),
				StartLine:     1,
				EndLine:       lineCount,
				InterestScore: score,
				DocType:       model.DocFile,
			},
			DocType:       model.DocFile,
			SourceContext: capString(source, contextCap),
			Metadata: map[string]string{
				"line_count":     fmt.Sprint(lineCount),
				"function_count": fmt.Sprint(funcCount),
				"relative_path":  file.RelativePath,
			},
		})
		if len(targets) >= limit*2 {
			break
		}
	}
	return sortAndLimit(targets, limit)
}

// FindClassTargets scores class declarations of at least 15 lines.
func FindClassTargets(a *analysis.Analyzer, repo model.RepoEntry, limit int) []*model.DocumentationTarget {
	var targets []*model.DocumentationTarget
scan:
	for _, file := range a.ScanRepo(repo) {
		data, err := os.ReadFile(file.Path)
		if err != nil {
			continue
		}
		for _, cls := range analysis.ExtractClasses(string(data), file.Language) {
			lineCount := cls.EndLine - cls.StartLine + 1
			if lineCount < 15 {
				continue
			}
			score := minf(float64(len(cls.Methods))/6, 1)*35 +
				minf(float64(lineCount)/100, 1)*25 +
				minf(float64(len(cls.Decorators)*5), 15) + 15
			if cls.Docstring != "" {
				score += 10
			}
			if score > 100 {
				score = 100
			}

			targets = append(targets, &model.DocumentationTarget{
				Snippet: &model.CodeSnippet{
					Repo:          file.RepoName,
					FilePath:      file.Path,
					ClassName:     cls.Name,
					Language:      file.Language,
					Source:        capString(cls.Source, snippetCap),
					StartLine:     cls.StartLine,
					EndLine:       cls.EndLine,
					InterestScore: score,
					DocType:       model.DocClass,
				},
				DocType:       model.DocClass,
				SourceContext: capString(cls.Source, contextCap),
				Metadata: map[string]string{
					"method_count":  fmt.Sprint(len(cls.Methods)),
					"method_names":  strings.Join(cls.Methods, ", "),
					"has_docstring": fmt.Sprint(cls.Docstring != ""),
					"relative_path": file.RelativePath,
				},
			})
			if len(targets) >= limit*2 {
				break scan
			}
		}
	}
	return sortAndLimit(targets, limit)
}

var moduleSkipDirs = map[string]struct{}{
	"node_modules": {}, ".git": {}, "venv": {}, ".venv": {}, "__pycache__": {},
	"dist": {}, "build": {}, "vendor": {}, "target": {}, ".tox": {}, ".mypy_cache": {},
}

// FindModuleTargets documents Python packages (__init__.py) and TypeScript
// modules (index.ts) with at least two sibling sources.
func FindModuleTargets(repo model.RepoEntry, limit int) []*model.DocumentationTarget {
	var targets []*model.DocumentationTarget
	targets = append(targets, findPackages(repo, "__init__.py", []string{".py"}, model.LangPython, limit)...)
	if len(targets) < limit {
		targets = append(targets, findPackages(repo, "index.ts", []string{".ts", ".tsx"}, model.LangTypeScript, limit-len(targets))...)
	}
	return sortAndLimit(targets, limit)
}

func findPackages(repo model.RepoEntry, indexName string, exts []string, lang model.Language, limit int) []*model.DocumentationTarget {
	var targets []*model.DocumentationTarget
	_ = filepath.WalkDir(repo.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if len(targets) >= limit {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if _, skip := moduleSkipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != indexName {
			return nil
		}
		pkgDir := filepath.Dir(path)
		relDir, relErr := filepath.Rel(repo.Path, pkgDir)
		if relErr != nil {
			return nil
		}

		var siblings []string
		entries, dirErr := os.ReadDir(pkgDir)
		if dirErr != nil {
			return nil
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			for _, ext := range exts {
				if strings.HasSuffix(e.Name(), ext) {
					siblings = append(siblings, e.Name())
					break
				}
			}
		}
		if len(siblings) < 2 {
			return nil
		}
		sort.Strings(siblings)

		indexContent := ""
		if data, readErr := os.ReadFile(path); readErr == nil {
			indexContent = string(data)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Package: %s\nFiles (%d):\n", filepath.ToSlash(relDir), len(siblings))
		for _, name := range siblings {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
		if strings.TrimSpace(indexContent) != "" {
			fmt.Fprintf(&b, "\n%s:\n%s", indexName, capString(indexContent, 2000))
		}
		context := b.String()

		score := minf(float64(len(siblings))/8, 1)*40 +
			minf(float64(len(indexContent))/500, 1)*30 + 30
		if score > 100 {
			score = 100
		}

		targets = append(targets, &model.DocumentationTarget{
			Snippet: &model.CodeSnippet{
				Repo:          repo.Name,
				FilePath:      pkgDir,
				Language:      lang,
				Source:        capString(context, snippetCap),
				StartLine:     1,
				EndLine:       1,
				InterestScore: score,
				DocType:       model.DocModule,
			},
			DocType:       model.DocModule,
			SourceContext: capString(context, contextCap),
			Metadata: map[string]string{
				"package_path": filepath.ToSlash(relDir),
				"file_count":   fmt.Sprint(len(siblings)),
			},
		})
		return nil
	})
	return targets
}

// FindEvolutionTargets turns recent per-file diffs into targets.
func FindEvolutionTargets(a *analysis.Analyzer, repo model.RepoEntry, limit int) []*model.DocumentationTarget {
	var targets []*model.DocumentationTarget
	for _, change := range a.Collector(repo).RecentChanges(20) {
		lang, ok := model.LanguageForPath(change.RelPath)
		if !ok {
			continue
		}
		if len(change.DiffText) < 20 {
			continue
		}
		score := minf(float64(len(change.DiffText))/1000, 1)*40 + 30 +
			minf(float64(change.AddedLines)/20, 1)*20
		if change.IsNewFile {
			score += 10
		}
		if score > 100 {
			score = 100
		}

		changeType := "modified"
		if change.IsNewFile {
			changeType = "new file"
		}
		context := fmt.Sprintf("File: %s\nChange type: %s\n\nDiff:\n%s",
			change.RelPath, changeType, capString(change.DiffText, 5000))

		targets = append(targets, &model.DocumentationTarget{
			Snippet: &model.CodeSnippet{
				Repo:          repo.Name,
				FilePath:      filepath.Join(repo.Path, filepath.FromSlash(change.RelPath)),
				Language:      lang,
				Source:        capString(change.DiffText, snippetCap),
				StartLine:     1,
				EndLine:       1,
				InterestScore: score,
				DocType:       model.DocEvolution,
			},
			DocType:       model.DocEvolution,
			SourceContext: capString(context, contextCap),
			Metadata: map[string]string{
				"is_new_file":   fmt.Sprint(change.IsNewFile),
				"relative_path": change.RelPath,
			},
		})
		if len(targets) >= limit {
			break
		}
	}
	return sortAndLimit(targets, limit)
}

// patternSignatures are textual indicators of well-known design patterns.
var patternSignatures = []struct {
	name        string
	description string
	indicators  []string
}{
	{"singleton", "Singleton pattern", []string{"_instance", "__new__", "getInstance"}},
	{"factory", "Factory pattern", []string{"create_", "make_", "build_", "factory"}},
	{"observer", "Observer/Event pattern", []string{"subscribe", "notify", "on_event", "emit", "listener", "addEventListener"}},
	{"decorator_pattern", "Decorator pattern", []string{"wrapper", "wraps", "functools.wraps", "@wraps"}},
	{"strategy", "Strategy pattern", []string{"Strategy", "execute", "set_strategy", "algorithm"}},
	{"middleware", "Middleware/Pipeline pattern", []string{"middleware", "next()", "dispatch", "use("}},
	{"repository_pattern", "Repository pattern", []string{"Repository", "get_by_id", "find_all", "save(", "delete("}},
}

// FindPatternTargets flags files carrying at least two indicators of a
// known design pattern.
func FindPatternTargets(a *analysis.Analyzer, repo model.RepoEntry, limit int) []*model.DocumentationTarget {
	var targets []*model.DocumentationTarget
	for _, file := range a.ScanRepo(repo) {
		data, err := os.ReadFile(file.Path)
		if err != nil {
			continue
		}
		source := string(data)
		for _, sig := range patternSignatures {
			matches := 0
			for _, indicator := range sig.indicators {
				if strings.Contains(source, indicator) {
					matches++
				}
			}
			if matches < 2 {
				continue
			}
			score := minf(float64(matches)*15+30, 100)

			targets = append(targets, &model.DocumentationTarget{
				Snippet: &model.CodeSnippet{
					Repo:          file.RepoName,
					FilePath:      file.Path,
					FunctionName:  sig.name,
					Language:      file.Language,
					Source:        capString(source, snippetCap),
					StartLine:     1,
					EndLine:       strings.Count(source, "\n") + 1,
					InterestScore: score,
					DocType:       model.DocPattern,
				},
				DocType:       model.DocPattern,
				SourceContext: capString(source, contextCap),
				Metadata: map[string]string{
					"pattern":             sig.name,
					"pattern_description": sig.description,
					"indicator_matches":   fmt.Sprint(matches),
					"relative_path":       file.RelativePath,
				},
			})
		}
		if len(targets) >= limit*2 {
			break
		}
	}
	return sortAndLimit(targets, limit)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
