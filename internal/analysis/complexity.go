package analysis

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/codeworm/internal/model"
	"git.home.luguber.info/inful/codeworm/internal/scoring"
)

var branchKeywords = map[model.Language]*regexp.Regexp{
	model.LangPython:     regexp.MustCompile(`\b(if|elif|for|while|except|case|and|or)\b`),
	model.LangGo:         regexp.MustCompile(`\b(if|for|case|select)\b|&&|\|\|`),
	model.LangRust:       regexp.MustCompile(`\b(if|for|while|match)\b|&&|\|\||=>`),
	model.LangJavaScript: regexp.MustCompile(`\b(if|for|while|case|catch)\b|&&|\|\||\?`),
	model.LangTypeScript: regexp.MustCompile(`\b(if|for|while|case|catch)\b|&&|\|\||\?`),
	model.LangTSX:        regexp.MustCompile(`\b(if|for|while|case|catch)\b|&&|\|\||\?`),
}

var commentPrefixes = map[model.Language]string{
	model.LangPython:     "#",
	model.LangGo:         "//",
	model.LangRust:       "//",
	model.LangJavaScript: "//",
	model.LangTypeScript: "//",
	model.LangTSX:        "//",
}

// MeasureFunction computes structural metrics for one extracted function.
func MeasureFunction(fn *ParsedFunction, lang model.Language) scoring.Metrics {
	lines := strings.Split(fn.Source, "\n")
	return scoring.Metrics{
		Cyclomatic:      cyclomatic(fn.Source, lang),
		NLOC:            countNLOC(lines, lang),
		MaxNestingDepth: maxNesting(lines, lang),
		ParameterCount:  countParams(fn.Source),
	}
}

// cyclomatic is 1 plus the number of branching tokens in the body.
func cyclomatic(source string, lang model.Language) int {
	re, ok := branchKeywords[lang]
	if !ok {
		return 1
	}
	return 1 + len(re.FindAllStringIndex(source, -1))
}

// countNLOC counts lines that are neither blank nor comment-only.
func countNLOC(lines []string, lang model.Language) int {
	prefix := commentPrefixes[lang]
	n := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if prefix != "" && strings.HasPrefix(trimmed, prefix) {
			continue
		}
		n++
	}
	return n
}

// maxNesting measures depth by indentation for Python and by brace depth
// for the other languages, relative to the function's own level.
func maxNesting(lines []string, lang model.Language) int {
	if len(lines) == 0 {
		return 0
	}
	if lang == model.LangPython {
		base := indentWidth(lines[0])
		unit := 4
		maxDepth := 0
		for _, line := range lines[1:] {
			if isBlank(line) {
				continue
			}
			depth := (indentWidth(line) - base) / unit
			// The body itself sits one level in.
			depth--
			if depth > maxDepth {
				maxDepth = depth
			}
		}
		return maxDepth
	}

	depth, maxDepth := 0, 0
	for _, line := range lines {
		for _, r := range line {
			switch r {
			case '{':
				depth++
				if depth-1 > maxDepth {
					maxDepth = depth - 1
				}
			case '}':
				depth--
			}
		}
	}
	return maxDepth
}

// countParams counts comma-separated parameters in the first paren group
// of the signature. Nested parens (tuples, generics, defaults) are kept
// together by tracking depth.
func countParams(source string) int {
	open := strings.IndexByte(source, '(')
	if open == -1 {
		return 0
	}
	depth := 0
	end := -1
	for i := open; i < len(source); i++ {
		switch source[i] {
		case '(', '[', '<':
			depth++
		case ')', ']', '>':
			depth--
			if depth == 0 && source[i] == ')' {
				end = i
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 || end == open+1 {
		return 0
	}
	inner := source[open+1 : end]
	if strings.TrimSpace(inner) == "" {
		return 0
	}
	// Count top-level commas only.
	depth = 0
	params := 1
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				params++
			}
		}
	}
	return params
}
