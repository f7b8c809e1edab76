package llm

import (
	"strings"
	"testing"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

func testTarget(docType model.DocType) *model.DocumentationTarget {
	return &model.DocumentationTarget{
		Snippet: &model.CodeSnippet{
			Repo:         "billing",
			FilePath:     "src/invoices.py",
			FunctionName: "settle",
			ClassName:    "Invoice",
			Language:     model.LangPython,
			Source:       "def settle(self):\n    pass\n",
			StartLine:    10,
			EndLine:      11,
			Complexity:   4,
			DocType:      docType,
		},
		DocType: docType,
	}
}

func TestBuildTargetPromptFillsFields(t *testing.T) {
	system, user := BuildTargetPrompt(testTarget(model.DocFunction))

	if !strings.Contains(system, "technical documentation writer") {
		t.Fatal("wrong system prompt for function_doc")
	}
	if !strings.Contains(system, "Pythonic patterns") {
		t.Fatal("language hint not appended to system prompt")
	}
	for _, want := range []string{"Invoice.settle", "src/invoices.py", "billing", "```python", "def settle"} {
		if !strings.Contains(user, want) {
			t.Fatalf("user prompt missing %q:\n%s", want, user)
		}
	}
	if strings.Contains(user, "{") {
		t.Fatalf("unfilled placeholder in user prompt:\n%s", user)
	}
}

func TestBuildTargetPromptPerFlavor(t *testing.T) {
	cases := []struct {
		docType    model.DocType
		systemWord string
	}{
		{model.DocSecurityReview, "security analyst"},
		{model.DocPerformance, "performance engineer"},
		{model.DocTIL, "Today I Learned"},
		{model.DocFile, "source files at a high level"},
		{model.DocClass, "document classes"},
		{model.DocModule, "packages/modules"},
		{model.DocEvolution, "code changes"},
		{model.DocPattern, "design patterns"},
	}
	for _, tc := range cases {
		system, user := BuildTargetPrompt(testTarget(tc.docType))
		if !strings.Contains(system, tc.systemWord) {
			t.Fatalf("%s: system prompt missing %q", tc.docType, tc.systemWord)
		}
		if user == "" {
			t.Fatalf("%s: empty user prompt", tc.docType)
		}
	}
}

func TestBuildTargetPromptAppendsFunctionNotes(t *testing.T) {
	target := testTarget(model.DocFunction)
	target.Metadata = map[string]string{
		"decorators": "@cached, @retry",
		"is_async":   "true",
	}
	_, user := BuildTargetPrompt(target)
	if !strings.Contains(user, "Decorators present: @cached, @retry") {
		t.Fatal("decorator note missing")
	}
	if !strings.Contains(user, "This is an async function.") {
		t.Fatal("async note missing")
	}

	_, plain := BuildTargetPrompt(testTarget(model.DocFunction))
	if strings.Contains(plain, "Decorators present") || strings.Contains(plain, "async function") {
		t.Fatal("notes appended without metadata")
	}
}

func TestBuildTargetPromptUnknownFlavorFallsBack(t *testing.T) {
	system, _ := BuildTargetPrompt(testTarget(model.DocType("mystery")))
	if !strings.Contains(system, "technical documentation writer") {
		t.Fatal("unknown flavor did not fall back to default prompts")
	}
}

func TestBuildTargetPromptPrefersSourceContext(t *testing.T) {
	target := testTarget(model.DocFile)
	target.SourceContext = "FILE OVERVIEW CONTENT"
	_, user := BuildTargetPrompt(target)
	if !strings.Contains(user, "FILE OVERVIEW CONTENT") {
		t.Fatal("source context not used")
	}
}

func TestBuildTargetPromptTruncatesLongSource(t *testing.T) {
	target := testTarget(model.DocFunction)
	target.Snippet.Source = strings.Repeat("x", sourceFillLimit) + "BEYOND-THE-CAP"
	_, user := BuildTargetPrompt(target)
	if strings.Contains(user, "BEYOND-THE-CAP") {
		t.Fatal("source not truncated before template fill")
	}
	if !strings.Contains(user, strings.Repeat("x", 64)) {
		t.Fatal("truncated source missing from user prompt")
	}
}

func TestBuildCommitMessagePrompt(t *testing.T) {
	doc := strings.Repeat("d", commitExcerptLimit) + "BEYOND-THE-CAP"
	system, user := BuildCommitMessagePrompt(doc, testTarget(model.DocFunction).Snippet)
	if !strings.Contains(system, "commit messages") {
		t.Fatalf("system = %q", system)
	}
	if strings.Contains(user, "BEYOND-THE-CAP") {
		t.Fatal("documentation excerpt not truncated")
	}
	if !strings.Contains(user, "Invoice.settle") {
		t.Fatal("entity name missing from commit prompt")
	}
}

func TestFallbackCommitMessage(t *testing.T) {
	snip := testTarget(model.DocFunction).Snippet
	cases := map[model.DocType]string{
		model.DocFunction:       "Document Invoice.settle from billing",
		model.DocSecurityReview: "Review Invoice.settle from billing",
		model.DocPerformance:    "Analyze Invoice.settle from billing",
		model.DocTIL:            "Note Invoice.settle from billing",
	}
	for docType, want := range cases {
		if got := FallbackCommitMessage(snip, docType); got != want {
			t.Fatalf("%s: got %q, want %q", docType, got, want)
		}
	}
}
