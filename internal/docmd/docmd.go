// Package docmd assembles generated prose and the source snippet into
// the markdown file committed to the devlog, and validates the result
// before it is allowed near git.
package docmd

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

var (
	ErrNoHeading = errors.New("document has no heading")
	ErrEmptyBody = errors.New("document body is empty")
)

// sectionTitles maps each flavor to its prose section heading.
var sectionTitles = map[model.DocType]string{
	model.DocFunction:       "Documentation",
	model.DocSecurityReview: "Security Review",
	model.DocPerformance:    "Performance Analysis",
	model.DocTIL:            "TIL",
	model.DocFile:           "File Overview",
	model.DocClass:          "Class Documentation",
	model.DocModule:         "Module Overview",
	model.DocEvolution:      "Change Analysis",
	model.DocPattern:        "Pattern Analysis",
}

// Document is one assembled devlog entry.
type Document struct {
	Target      *model.DocumentationTarget
	Body        string
	Model       string
	TokensUsed  int
	GeneratedAt time.Time
}

// Render produces the full markdown file: title, metadata, the snippet
// for code flavors, and the generated prose.
func (d *Document) Render() string {
	snip := d.Target.Snippet

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", snip.DisplayName())

	fmt.Fprintf(&b, "- **Repository**: %s\n", snip.Repo)
	fmt.Fprintf(&b, "- **File**: `%s`", snip.FilePath)
	if snip.StartLine > 0 {
		fmt.Fprintf(&b, " (lines %d-%d)", snip.StartLine, snip.EndLine)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- **Language**: %s\n", snip.Language)
	fmt.Fprintf(&b, "- **Type**: %s\n", d.Target.DocType)
	fmt.Fprintf(&b, "- **Generated**: %s by %s\n\n", d.GeneratedAt.Format("2006-01-02"), d.Model)

	// Module and evolution contexts are listings or diffs, not code
	// worth fencing with a language tag.
	if includesSource(d.Target.DocType) && snip.Source != "" {
		fmt.Fprintf(&b, "```%s\n%s", snip.Language, snip.Source)
		if !strings.HasSuffix(snip.Source, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n\n")
	}

	section := sectionTitles[d.Target.DocType]
	if section == "" {
		section = "Documentation"
	}
	fmt.Fprintf(&b, "## %s\n\n", section)
	b.WriteString(strings.TrimSpace(d.Body))
	b.WriteString("\n")
	return b.String()
}

func includesSource(docType model.DocType) bool {
	switch docType {
	case model.DocModule, model.DocEvolution, model.DocFile:
		return false
	}
	return true
}

var slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// Filename derives the devlog filename from the entity name and a short
// hash of the source, so re-documentation of changed code never collides.
func Filename(snippet *model.CodeSnippet) string {
	slug := strings.ToLower(snippet.DisplayName())
	slug = slugCleanRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "snippet"
	}
	sum := sha256.Sum256([]byte(snippet.Source))
	return fmt.Sprintf("%s-%s.md", slug, hex.EncodeToString(sum[:])[:8])
}

// Validate parses the rendered markdown and rejects documents without a
// heading or without any prose under it. Guards against the model
// returning an apology or an empty string.
func Validate(content string) error {
	source := []byte(content)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	hasHeading := false
	bodyText := 0
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			hasHeading = true
		case *gmast.Paragraph:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				bodyText += len(strings.TrimSpace(string(seg.Value(source))))
			}
		case *gmast.ListItem, *gmast.FencedCodeBlock:
			bodyText++
		}
		return gmast.WalkContinue, nil
	})

	if !hasHeading {
		return ErrNoHeading
	}
	if bodyText == 0 {
		return ErrEmptyBody
	}
	return nil
}
