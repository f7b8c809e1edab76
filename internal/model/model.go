// Package model holds the shared domain types: languages, documentation
// flavors, repository entries, code snippets and persisted records.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Language identifies a supported source language.
type Language string

const (
	LangPython     Language = "python"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJavaScript Language = "javascript"
	LangGo         Language = "go"
	LangRust       Language = "rust"
)

var languageExtensions = map[string]Language{
	".py":  LangPython,
	".ts":  LangTypeScript,
	".tsx": LangTSX,
	".js":  LangJavaScript,
	".jsx": LangJavaScript,
	".go":  LangGo,
	".rs":  LangRust,
}

// LanguageForExtension maps a file extension (with leading dot) to a language.
func LanguageForExtension(ext string) (Language, bool) {
	l, ok := languageExtensions[strings.ToLower(ext)]
	return l, ok
}

// LanguageForPath maps a file path to a language via its extension.
func LanguageForPath(path string) (Language, bool) {
	return LanguageForExtension(filepath.Ext(path))
}

// Languages returns all supported languages in stable order.
func Languages() []Language {
	return []Language{LangPython, LangTypeScript, LangTSX, LangJavaScript, LangGo, LangRust}
}

// DocType is a documentation flavor.
type DocType string

const (
	DocFunction       DocType = "function_doc"
	DocSecurityReview DocType = "security_review"
	DocPerformance    DocType = "performance_analysis"
	DocTIL            DocType = "til"
	DocFile           DocType = "file_doc"
	DocClass          DocType = "class_doc"
	DocModule         DocType = "module_doc"
	DocEvolution      DocType = "code_evolution"
	DocPattern        DocType = "pattern_analysis"

	// Recognized but never dispatched by the supervisor.
	DocWeeklySummary  DocType = "weekly_summary"
	DocMonthlySummary DocType = "monthly_summary"
)

var docTypes = map[DocType]struct{}{
	DocFunction: {}, DocSecurityReview: {}, DocPerformance: {}, DocTIL: {},
	DocFile: {}, DocClass: {}, DocModule: {}, DocEvolution: {}, DocPattern: {},
	DocWeeklySummary: {}, DocMonthlySummary: {},
}

// ParseDocType validates a doc type string.
func ParseDocType(s string) (DocType, bool) {
	dt := DocType(s)
	_, ok := docTypes[dt]
	return dt, ok
}

// IsSummary reports whether the flavor is a periodic summary, which the
// supervisor filters out at dispatch.
func (d DocType) IsSummary() bool {
	return d == DocWeeklySummary || d == DocMonthlySummary
}

// RepoEntry is one watched source repository.
type RepoEntry struct {
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Weight  int    `yaml:"weight"`
	Enabled bool   `yaml:"enabled"`
}

// CodeSnippet is a candidate unit of documentation.
type CodeSnippet struct {
	Repo          string
	FilePath      string
	FunctionName  string
	ClassName     string
	Language      Language
	Source        string
	StartLine     int
	EndLine       int
	Complexity    int
	NestingDepth  int
	ParamCount    int
	InterestScore float64
	DocType       DocType
}

// DisplayName names the snippet for logs and filenames.
func (s *CodeSnippet) DisplayName() string {
	switch {
	case s.FunctionName != "" && s.ClassName != "":
		return fmt.Sprintf("%s.%s", s.ClassName, s.FunctionName)
	case s.FunctionName != "":
		return s.FunctionName
	case s.ClassName != "":
		return s.ClassName
	default:
		return filepath.Base(s.FilePath)
	}
}

// LineCount is the inclusive line span of the snippet.
func (s *CodeSnippet) LineCount() int {
	if s.EndLine < s.StartLine {
		return 0
	}
	return s.EndLine - s.StartLine + 1
}

// DocumentationTarget wraps a snippet chosen for a flavor, with optional
// wider context and finder metadata.
type DocumentationTarget struct {
	Snippet       *CodeSnippet
	DocType       DocType
	SourceContext string
	Metadata      map[string]string
}

// Context returns the text handed to the prompt builder, preferring the
// wider source context when a finder provided one.
func (t *DocumentationTarget) Context() string {
	if t.SourceContext != "" {
		return t.SourceContext
	}
	return t.Snippet.Source
}

// DocumentedRecord is the persisted memory of one produced document.
type DocumentedRecord struct {
	ID           string
	SourceRepo   string
	SourceFile   string
	FunctionName string
	ClassName    string
	CodeHash     string
	DocumentedAt time.Time
	SnippetPath  string
	GitCommit    string
	DocType      DocType
}

// DisplayName names the documented entity for logs.
func (r *DocumentedRecord) DisplayName() string {
	switch {
	case r.FunctionName != "" && r.ClassName != "":
		return fmt.Sprintf("%s.%s", r.ClassName, r.FunctionName)
	case r.FunctionName != "":
		return r.FunctionName
	case r.ClassName != "":
		return r.ClassName
	default:
		return filepath.Base(r.SourceFile)
	}
}
