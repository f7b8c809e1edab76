package docmd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

func testDocument(docType model.DocType) *Document {
	return &Document{
		Target: &model.DocumentationTarget{
			Snippet: &model.CodeSnippet{
				Repo:         "billing",
				FilePath:     "src/invoices.py",
				FunctionName: "settle",
				ClassName:    "Invoice",
				Language:     model.LangPython,
				Source:       "def settle(self):\n    return True\n",
				StartLine:    10,
				EndLine:      11,
				DocType:      docType,
			},
			DocType: docType,
		},
		Body:        "Settles an invoice by marking it paid.",
		Model:       "qwen2.5:7b",
		TokensUsed:  200,
		GeneratedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderFunctionDoc(t *testing.T) {
	out := testDocument(model.DocFunction).Render()

	for _, want := range []string{
		"# Invoice.settle",
		"`src/invoices.py` (lines 10-11)",
		"```python",
		"def settle",
		"## Documentation",
		"Settles an invoice",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered document missing %q:\n%s", want, out)
		}
	}
	if err := Validate(out); err != nil {
		t.Fatalf("rendered document failed validation: %v", err)
	}
}

func TestRenderModuleDocOmitsCodeFence(t *testing.T) {
	doc := testDocument(model.DocModule)
	out := doc.Render()
	if strings.Contains(out, "```python") {
		t.Fatal("module doc should not fence the context as code")
	}
	if !strings.Contains(out, "## Module Overview") {
		t.Fatalf("wrong section heading:\n%s", out)
	}
}

func TestRenderSectionPerFlavor(t *testing.T) {
	cases := map[model.DocType]string{
		model.DocSecurityReview: "## Security Review",
		model.DocPerformance:    "## Performance Analysis",
		model.DocTIL:            "## TIL",
		model.DocPattern:        "## Pattern Analysis",
		model.DocEvolution:      "## Change Analysis",
	}
	for docType, heading := range cases {
		if out := testDocument(docType).Render(); !strings.Contains(out, heading) {
			t.Fatalf("%s: missing %q", docType, heading)
		}
	}
}

func TestFilename(t *testing.T) {
	snip := testDocument(model.DocFunction).Target.Snippet
	name := Filename(snip)
	if !strings.HasPrefix(name, "invoice-settle-") || !strings.HasSuffix(name, ".md") {
		t.Fatalf("filename = %q", name)
	}
	// Same source hashes identically; changed source does not.
	if Filename(snip) != name {
		t.Fatal("filename not deterministic")
	}
	snip.Source += "\n# changed"
	if Filename(snip) == name {
		t.Fatal("filename ignores source changes")
	}
}

func TestFilenameSanitizesName(t *testing.T) {
	snip := &model.CodeSnippet{FunctionName: "Weird  Name!!", Source: "x"}
	name := Filename(snip)
	if strings.ContainsAny(name, " !") {
		t.Fatalf("unsanitized filename %q", name)
	}
	if !strings.HasPrefix(name, "weird-name-") {
		t.Fatalf("filename = %q", name)
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr error
	}{
		{"no heading", "just some text without a heading", ErrNoHeading},
		{"empty body", "# Title Only\n", ErrEmptyBody},
		{"blank", "", ErrNoHeading},
	}
	for _, tc := range cases {
		if err := Validate(tc.content); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
	if err := Validate("# Title\n\nReal prose body.\n"); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
}
