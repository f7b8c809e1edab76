package llm

import (
	"fmt"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

// Caps on text interpolated into a prompt, keeping the fill inside the
// model's context window.
const (
	sourceFillLimit     = 5000
	commitExcerptLimit  = 500
	commitSystemMessage = "You generate natural, human sounding git commit messages. Be concise and specific."
)

const defaultSystemPrompt = `You are a technical documentation writer analyzing code snippets.

Your task is to write clear, concise documentation that explains:
- What the code does (the "what")
- Why it matters or when to use it (the "why")
- Any notable patterns, trade-offs, or gotchas

Rules:
1. Only reference code that exists in the provided snippet
2. Do not invent or assume external functionality
3. Be specific - mention actual variable/function names
4. Keep explanations under 200 words
5. Use markdown formatting
6. Focus on practical understanding, not line-by-line description`

const defaultDocumentationTemplate = `Analyze and document this {language} code:

` + "```{language}\n{source}\n```" + `

Context:
- Function/Class: {name}
- File: {file_path}
- Repository: {repo}
- Complexity: {complexity} (cyclomatic)
- Lines: {line_count}

Write technical documentation (100-200 words) covering:
1. Purpose and behavior
2. Key implementation details
3. When/why to use this code
4. Any patterns or gotchas worth noting`

const commitMessageTemplate = `Based on this documentation snippet, generate a natural-sounding git commit message.

Documentation:
{documentation}

Code context:
- Function: {name}
- Language: {language}
- Repository: {repo}

Generate a commit message that:
- Starts with a verb (Document, Add, Analyze, etc)
- Is under 72 characters
- Sounds natural, not robotic
- Mentions the function/concept name

Return ONLY the commit message, nothing else.`

const securityReviewSystemPrompt = `You are a security analyst reviewing code for vulnerabilities.

Analyze the code for:
- Injection vulnerabilities (SQL, command, XSS)
- Authentication and authorization issues
- Hardcoded secrets or credentials
- Race conditions and TOCTOU bugs
- Input validation gaps
- Insecure deserialization
- Error handling that leaks information

Rules:
1. Only reference code in the provided snippet
2. Be specific about line numbers and variable names
3. Rate severity: Critical, High, Medium, Low, Info
4. Suggest concrete fixes
5. Keep under 200 words
6. Use markdown formatting`

const securityReviewTemplate = `Review this {language} code for security issues:

` + "```{language}\n{source}\n```" + `

Context:
- Function/Class: {name}
- File: {file_path}
- Repository: {repo}

Write a security review (100-200 words) covering:
1. Any vulnerabilities found (with severity)
2. Attack vectors if applicable
3. Recommended fixes
4. Overall security posture`

const performanceAnalysisSystemPrompt = `You are a performance engineer analyzing code efficiency.

Analyze the code for:
- Time complexity (Big O notation)
- Space complexity and memory allocation
- Unnecessary iterations or redundant operations
- Blocking calls in async contexts
- N+1 query patterns
- Missing caching opportunities
- Resource leaks (unclosed connections, file handles)

Rules:
1. Only reference code in the provided snippet
2. Be specific about which operations are costly
3. Suggest concrete optimizations
4. Keep under 200 words
5. Use markdown formatting`

const performanceAnalysisTemplate = `Analyze this {language} code for performance:

` + "```{language}\n{source}\n```" + `

Context:
- Function/Class: {name}
- File: {file_path}
- Complexity: {complexity} (cyclomatic)
- Lines: {line_count}

Write a performance analysis (100-200 words) covering:
1. Time and space complexity
2. Bottlenecks or inefficiencies
3. Optimization opportunities
4. Resource usage concerns`

const tilSystemPrompt = `You write short, focused "Today I Learned" entries about interesting code techniques.

Style:
- Casual and conversational
- Focus on ONE interesting thing
- Explain why it's clever or useful
- Make it memorable and shareable

Rules:
1. Only reference code in the provided snippet
2. Pick the single most interesting aspect
3. Keep it under 100 words
4. Use markdown formatting
5. Start with "TIL:" or a similar hook`

const tilTemplate = `Write a TIL (Today I Learned) entry about this {language} code:

` + "```{language}\n{source}\n```" + `

Context:
- Function/Class: {name}
- Repository: {repo}

Write a short TIL entry (50-100 words) about the most interesting technique or pattern in this code.`

const fileDocSystemPrompt = `You document source files at a high level, explaining their purpose and architecture.

Focus on:
- What this file is responsible for
- Key exports and public API
- How it fits into the larger project
- Design decisions and patterns used
- Dependencies and relationships

Rules:
1. Only reference code in the provided content
2. Focus on the "big picture" not individual functions
3. Keep under 200 words
4. Use markdown formatting`

const fileDocTemplate = `Document this {language} source file:

{source}

Context:
- File: {file_path}
- Repository: {repo}
- Lines: {line_count}

Write file-level documentation (100-200 words) covering:
1. File purpose and responsibility
2. Key exports or public interface
3. How it fits in the project
4. Notable design decisions`

const classDocSystemPrompt = `You document classes, explaining their design, responsibility, and interface.

Focus on:
- Single Responsibility: what this class owns
- Public interface and method signatures
- Design patterns used (factory, observer, strategy, etc.)
- Relationship to other classes
- State management approach

Rules:
1. Only reference code in the provided snippet
2. Focus on the class as a whole, not individual methods
3. Keep under 200 words
4. Use markdown formatting`

const classDocTemplate = `Document this {language} class:

` + "```{language}\n{source}\n```" + `

Context:
- Class: {name}
- File: {file_path}
- Repository: {repo}

Write class documentation (100-200 words) covering:
1. Class responsibility and purpose
2. Public interface (key methods)
3. Design patterns used
4. How it fits in the architecture`

const moduleDocSystemPrompt = `You document packages/modules, explaining how they organize code.

Focus on:
- Package purpose and scope
- How files within relate to each other
- Public API surface
- Dependency direction
- When a developer would interact with this package

Rules:
1. Only reference content in the provided listing
2. Explain the organizational structure
3. Keep under 200 words
4. Use markdown formatting`

const moduleDocTemplate = `Document this package/module structure:

{source}

Context:
- Repository: {repo}

Write module-level documentation (100-200 words) covering:
1. Package purpose and scope
2. How the files relate to each other
3. Public API surface
4. When a developer would use this module`

const codeEvolutionSystemPrompt = `You analyze code changes, explaining what changed and why.

Focus on:
- What was changed (added, modified, removed)
- Why this change was likely made
- Impact on behavior or API
- Whether this is a bug fix, feature, or refactor
- Any risks introduced by the change

Rules:
1. Only reference the diff provided
2. Be specific about what lines changed
3. Keep under 200 words
4. Use markdown formatting`

const codeEvolutionTemplate = `Analyze this code change:

{source}

Context:
- Repository: {repo}

Write a change analysis (100-200 words) covering:
1. What was changed
2. Why it was likely changed
3. Impact on behavior
4. Any risks or concerns`

const patternAnalysisSystemPrompt = `You identify and explain design patterns found in code.

Focus on:
- Which design pattern is being used
- How it's implemented in this specific code
- Benefits of using this pattern here
- Any deviations from the canonical pattern
- When this pattern is and isn't appropriate

Rules:
1. Only reference code in the provided snippet
2. Be specific about the pattern implementation
3. Keep under 200 words
4. Use markdown formatting`

const patternAnalysisTemplate = `Analyze the design pattern in this {language} code:

` + "```{language}\n{source}\n```" + `

Context:
- File: {file_path}
- Repository: {repo}
- Detected pattern: {name}

Write a pattern analysis (100-200 words) covering:
1. Which pattern is used and how
2. Benefits of this pattern here
3. Any deviations from the standard pattern
4. When this pattern is appropriate`

type promptPair struct {
	system   string
	template string
}

var docTypePrompts = map[model.DocType]promptPair{
	model.DocFunction:       {defaultSystemPrompt, defaultDocumentationTemplate},
	model.DocSecurityReview: {securityReviewSystemPrompt, securityReviewTemplate},
	model.DocPerformance:    {performanceAnalysisSystemPrompt, performanceAnalysisTemplate},
	model.DocTIL:            {tilSystemPrompt, tilTemplate},
	model.DocFile:           {fileDocSystemPrompt, fileDocTemplate},
	model.DocClass:          {classDocSystemPrompt, classDocTemplate},
	model.DocModule:         {moduleDocSystemPrompt, moduleDocTemplate},
	model.DocEvolution:      {codeEvolutionSystemPrompt, codeEvolutionTemplate},
	model.DocPattern:        {patternAnalysisSystemPrompt, patternAnalysisTemplate},
}

// languageHints steers each flavor toward idioms of the snippet's
// language. Appended to the system prompt.
var languageHints = map[model.Language]string{
	model.LangPython:     "Focus on Pythonic patterns, type hints, decorators, and context managers",
	model.LangTypeScript: "Note TypeScript-specific types, generics, and async patterns",
	model.LangTSX:        "Cover React component patterns, hooks usage, and prop types",
	model.LangJavaScript: "Highlight async/await patterns, closures, and module patterns",
	model.LangGo:         "Emphasize Go idioms like error handling, goroutines, and interfaces",
	model.LangRust:       "Focus on ownership, borrowing, lifetimes, and Result/Option patterns",
}

// BuildTargetPrompt renders the (system, user) pair for a target's
// flavor. Unknown flavors fall back to plain function documentation.
func BuildTargetPrompt(target *model.DocumentationTarget) (string, string) {
	pair, ok := docTypePrompts[target.DocType]
	if !ok {
		pair = promptPair{defaultSystemPrompt, defaultDocumentationTemplate}
	}

	system := pair.system
	if hint := languageHints[target.Snippet.Language]; hint != "" {
		system += "\n\nLanguage-specific guidance: " + hint
	}

	source := target.Context()
	if len(source) > sourceFillLimit {
		source = source[:sourceFillLimit]
	}

	user := fillTemplate(pair.template, map[string]string{
		"language":   string(target.Snippet.Language),
		"source":     source,
		"name":       target.Snippet.DisplayName(),
		"file_path":  target.Snippet.FilePath,
		"repo":       target.Snippet.Repo,
		"complexity": strconv.Itoa(target.Snippet.Complexity),
		"line_count": strconv.Itoa(target.Snippet.LineCount()),
	})
	if decorators := target.Metadata["decorators"]; decorators != "" {
		user += "\n\nDecorators present: " + decorators
	}
	if target.Metadata["is_async"] == "true" {
		user += "\n\nThis is an async function."
	}
	return system, user
}

// BuildCommitMessagePrompt asks the model for a one-line commit message
// over an excerpt of the generated documentation.
func BuildCommitMessagePrompt(documentation string, snippet *model.CodeSnippet) (string, string) {
	if len(documentation) > commitExcerptLimit {
		documentation = documentation[:commitExcerptLimit]
	}
	user := fillTemplate(commitMessageTemplate, map[string]string{
		"documentation": documentation,
		"name":          snippet.DisplayName(),
		"language":      string(snippet.Language),
		"repo":          snippet.Repo,
	})
	return commitSystemMessage, user
}

// FallbackCommitMessage is used when commit-message generation itself
// fails or produces something unusable.
func FallbackCommitMessage(snippet *model.CodeSnippet, docType model.DocType) string {
	verb := "Document"
	switch docType {
	case model.DocSecurityReview:
		verb = "Review"
	case model.DocPerformance, model.DocPattern, model.DocEvolution:
		verb = "Analyze"
	case model.DocTIL:
		verb = "Note"
	}
	return fmt.Sprintf("%s %s from %s", verb, snippet.DisplayName(), snippet.Repo)
}

func fillTemplate(template string, fields map[string]string) string {
	pairs := make([]string, 0, len(fields)*2)
	for key, value := range fields {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
