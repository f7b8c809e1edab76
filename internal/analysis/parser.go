// Package analysis extracts functions and classes from source text and
// computes structural metrics for them. Extraction is line-oriented and
// heuristic: indentation blocks for Python, brace counting for the rest.
package analysis

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

// ParsedFunction is one extracted function or method.
type ParsedFunction struct {
	Name       string
	ClassName  string
	Source     string
	StartLine  int // 1-based, inclusive
	EndLine    int
	Decorators []string
	IsAsync    bool
	Docstring  string
}

// ParsedClass is one extracted class declaration.
type ParsedClass struct {
	Name       string
	Source     string
	StartLine  int
	EndLine    int
	Methods    []string
	Decorators []string
	Docstring  string
}

var (
	pyDefRe    = regexp.MustCompile(`^(\s*)(async\s+)?def\s+(\w+)\s*\(`)
	pyClassRe  = regexp.MustCompile(`^(\s*)class\s+(\w+)`)
	goFuncRe   = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?(\w+)\s*\(`)
	jsFuncRe   = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(async\s+)?function\s*\*?\s*(\w+)\s*\(`)
	jsArrowRe  = regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=\s*(async\s*)?\(`)
	jsMethodRe = regexp.MustCompile(`^\s+(?:static\s+)?(async\s+)?(\w+)\s*\([^;{]*\)\s*(?::[^;{]*)?\{`)
	jsClassRe  = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+(\w+)`)
	rustFnRe   = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(async\s+)?fn\s+(\w+)`)
	rustTypeRe = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:struct|enum|trait)\s+(\w+)`)
)

// ExtractFunctions returns every function found in source.
func ExtractFunctions(source string, lang model.Language) []ParsedFunction {
	lines := strings.Split(source, "\n")
	if lang == model.LangPython {
		return extractPythonFunctions(lines)
	}
	return extractBraceFunctions(lines, lang)
}

// ExtractClasses returns every class-like declaration found in source.
func ExtractClasses(source string, lang model.Language) []ParsedClass {
	lines := strings.Split(source, "\n")
	if lang == model.LangPython {
		return extractPythonClasses(lines)
	}
	return extractBraceClasses(lines, lang)
}

func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += 4
		default:
			return w
		}
	}
	return w
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// pythonBlockEnd returns the last line index (inclusive) of the indented
// block opened at start.
func pythonBlockEnd(lines []string, start, baseIndent int) int {
	end := start
	for i := start + 1; i < len(lines); i++ {
		if isBlank(lines[i]) {
			continue
		}
		if indentWidth(lines[i]) <= baseIndent {
			break
		}
		end = i
	}
	return end
}

// precedingDecorators collects contiguous @-lines above line i at the same
// indent level.
func precedingDecorators(lines []string, i, indent int) []string {
	var decos []string
	for j := i - 1; j >= 0; j-- {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" {
			break
		}
		if !strings.HasPrefix(trimmed, "@") || indentWidth(lines[j]) != indent {
			break
		}
		decos = append([]string{trimmed}, decos...)
	}
	return decos
}

func pythonDocstring(lines []string, start, end int) string {
	for i := start + 1; i <= end && i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''") {
			return strings.Trim(trimmed, `"'`)
		}
		return ""
	}
	return ""
}

func extractPythonFunctions(lines []string) []ParsedFunction {
	var out []ParsedFunction
	type classFrame struct {
		indent int
		name   string
	}
	var classStack []classFrame

	for i, line := range lines {
		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			for len(classStack) > 0 && classStack[len(classStack)-1].indent >= indent {
				classStack = classStack[:len(classStack)-1]
			}
			classStack = append(classStack, classFrame{indent: indent, name: m[2]})
			continue
		}
		m := pyDefRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(m[1])
		for len(classStack) > 0 && classStack[len(classStack)-1].indent >= indent {
			classStack = classStack[:len(classStack)-1]
		}
		className := ""
		if len(classStack) > 0 {
			className = classStack[len(classStack)-1].name
		}
		end := pythonBlockEnd(lines, i, indent)
		out = append(out, ParsedFunction{
			Name:       m[3],
			ClassName:  className,
			Source:     strings.Join(lines[i:end+1], "\n"),
			StartLine:  i + 1,
			EndLine:    end + 1,
			Decorators: precedingDecorators(lines, i, indent),
			IsAsync:    strings.TrimSpace(m[2]) == "async",
			Docstring:  pythonDocstring(lines, i, end),
		})
	}
	return out
}

func extractPythonClasses(lines []string) []ParsedClass {
	var out []ParsedClass
	for i, line := range lines {
		m := pyClassRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(m[1])
		end := pythonBlockEnd(lines, i, indent)
		var methods []string
		for j := i + 1; j <= end; j++ {
			if dm := pyDefRe.FindStringSubmatch(lines[j]); dm != nil {
				methods = append(methods, dm[3])
			}
		}
		out = append(out, ParsedClass{
			Name:       m[2],
			Source:     strings.Join(lines[i:end+1], "\n"),
			StartLine:  i + 1,
			EndLine:    end + 1,
			Methods:    methods,
			Decorators: precedingDecorators(lines, i, indent),
			Docstring:  pythonDocstring(lines, i, end),
		})
	}
	return out
}

// braceBlockEnd finds the line (inclusive) where the brace opened at or
// after start closes. Returns start if no opening brace is found nearby.
func braceBlockEnd(lines []string, start int) int {
	// The signature may span a few lines before the opening brace.
	open := -1
	for i := start; i < len(lines) && i <= start+5; i++ {
		if strings.Contains(lines[i], "{") {
			open = i
			break
		}
	}
	if open == -1 {
		return start
	}
	depth := 0
	for i := open; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		if depth <= 0 {
			return i
		}
	}
	return len(lines) - 1
}

func matchBraceFunction(line string, lang model.Language, inClass bool) (name string, isAsync bool, ok bool) {
	switch lang {
	case model.LangGo:
		if m := goFuncRe.FindStringSubmatch(line); m != nil {
			return m[1], false, true
		}
	case model.LangRust:
		if m := rustFnRe.FindStringSubmatch(line); m != nil {
			return m[2], strings.TrimSpace(m[1]) == "async", true
		}
	case model.LangJavaScript, model.LangTypeScript, model.LangTSX:
		if m := jsFuncRe.FindStringSubmatch(line); m != nil {
			return m[2], strings.TrimSpace(m[1]) == "async", true
		}
		if m := jsArrowRe.FindStringSubmatch(line); m != nil {
			return m[1], strings.TrimSpace(m[2]) == "async", true
		}
		if inClass {
			if m := jsMethodRe.FindStringSubmatch(line); m != nil {
				name := m[2]
				switch name {
				case "if", "for", "while", "switch", "catch", "return":
					return "", false, false
				}
				return name, strings.TrimSpace(m[1]) == "async", true
			}
		}
	}
	return "", false, false
}

func extractBraceFunctions(lines []string, lang model.Language) []ParsedFunction {
	var out []ParsedFunction
	currentClass := ""
	classEnd := -1

	for i := 0; i < len(lines); i++ {
		if i > classEnd {
			currentClass = ""
		}
		if isJSFamily(lang) {
			if m := jsClassRe.FindStringSubmatch(lines[i]); m != nil {
				currentClass = m[1]
				classEnd = braceBlockEnd(lines, i)
				continue
			}
		}
		name, isAsync, ok := matchBraceFunction(lines[i], lang, currentClass != "")
		if !ok {
			continue
		}
		end := braceBlockEnd(lines, i)
		out = append(out, ParsedFunction{
			Name:      name,
			ClassName: currentClass,
			Source:    strings.Join(lines[i:end+1], "\n"),
			StartLine: i + 1,
			EndLine:   end + 1,
			IsAsync:   isAsync,
		})
		if currentClass != "" && end < classEnd {
			i = end
		} else if currentClass == "" {
			i = end
		}
	}
	return out
}

func extractBraceClasses(lines []string, lang model.Language) []ParsedClass {
	var out []ParsedClass
	for i := 0; i < len(lines); i++ {
		var name string
		switch {
		case isJSFamily(lang):
			if m := jsClassRe.FindStringSubmatch(lines[i]); m != nil {
				name = m[1]
			}
		case lang == model.LangRust:
			if m := rustTypeRe.FindStringSubmatch(lines[i]); m != nil {
				name = m[1]
			}
		}
		if name == "" {
			continue
		}
		end := braceBlockEnd(lines, i)
		var methods []string
		for j := i + 1; j < end; j++ {
			if mn, _, ok := matchBraceFunction(lines[j], lang, true); ok {
				methods = append(methods, mn)
			}
		}
		out = append(out, ParsedClass{
			Name:      name,
			Source:    strings.Join(lines[i:end+1], "\n"),
			StartLine: i + 1,
			EndLine:   end + 1,
			Methods:   methods,
		})
		i = end
	}
	return out
}

func isJSFamily(lang model.Language) bool {
	return lang == model.LangJavaScript || lang == model.LangTypeScript || lang == model.LangTSX
}

var importRes = map[model.Language]*regexp.Regexp{
	model.LangPython:     regexp.MustCompile(`^\s*(import\s+\w|from\s+\S+\s+import)`),
	model.LangGo:         regexp.MustCompile(`^\s*(import\s|\t"|\t\w+\s+")`),
	model.LangRust:       regexp.MustCompile(`^\s*use\s+`),
	model.LangJavaScript: regexp.MustCompile(`^\s*(import\s|const\s+.*=\s*require\()`),
	model.LangTypeScript: regexp.MustCompile(`^\s*(import\s|const\s+.*=\s*require\()`),
	model.LangTSX:        regexp.MustCompile(`^\s*(import\s|const\s+.*=\s*require\()`),
}

// CountImports counts import statements, a rough proxy for how connected
// a file is.
func CountImports(source string, lang model.Language) int {
	re, ok := importRes[lang]
	if !ok {
		return 0
	}
	n := 0
	for _, line := range strings.Split(source, "\n") {
		if re.MatchString(line) {
			n++
		}
	}
	return n
}
