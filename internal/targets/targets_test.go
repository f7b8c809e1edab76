package targets

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/codeworm/internal/analysis"
	"git.home.luguber.info/inful/codeworm/internal/config"
	"git.home.luguber.info/inful/codeworm/internal/model"
)

func newAnalyzer() *analysis.Analyzer {
	settings := config.AnalyzerConfig{
		MinLines:        5,
		MaxLines:        200,
		IncludePatterns: []string{"**/*.py", "**/*.ts"},
	}
	return analysis.New(settings, rand.New(rand.NewPCG(3, 3)))
}

func fixtureRepo(t *testing.T, files map[string]string) model.RepoEntry {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return model.RepoEntry{Name: "fixture", Path: dir, Weight: 5, Enabled: true}
}

const richFile = `import os
import sys
import json

def load(path, strict, retries, default, log):
    if not os.path.exists(path):
        if strict:
            raise FileNotFoundError(path)
        return default
    attempt = 0
    while attempt < retries:
        try:
            with open(path) as f:
                return json.load(f)
        except ValueError:
            attempt += 1
            if log:
                log.warning(path)
    return default

def store(path, data, indent, atomic):
    tmp = path + ".tmp"
    with open(tmp, "w") as f:
        json.dump(data, f, indent=indent)
    if atomic:
        os.replace(tmp, path)
    else:
        os.rename(tmp, path)

def merge(a, b, prefer_left):
    out = dict(b)
    for key, value in a.items():
        if prefer_left or key not in out:
            out[key] = value
    return out
`

func TestFindFileTargets(t *testing.T) {
	repo := fixtureRepo(t, map[string]string{"store.py": richFile})
	got := FindFileTargets(newAnalyzer(), repo, 10)
	if len(got) != 1 {
		t.Fatalf("targets = %d, want 1", len(got))
	}
	tgt := got[0]
	if tgt.DocType != model.DocFile {
		t.Fatalf("doc type = %s", tgt.DocType)
	}
	if tgt.Snippet.InterestScore < 20 || tgt.Snippet.InterestScore > 100 {
		t.Fatalf("score = %g out of range", tgt.Snippet.InterestScore)
	}
	if tgt.Metadata["function_count"] != "3" {
		t.Fatalf("function_count = %s, want 3", tgt.Metadata["function_count"])
	}
}

func TestFindFileTargetsSkipsShortFiles(t *testing.T) {
	repo := fixtureRepo(t, map[string]string{"short.py": "x = 1\ny = 2\n"})
	if got := FindFileTargets(newAnalyzer(), repo, 10); len(got) != 0 {
		t.Fatalf("short file produced %d targets", len(got))
	}
}

const classFile = `class OrderBook:
    """Tracks open orders"""

    def add(self, order):
        self.orders.append(order)

    def remove(self, order_id):
        self.orders = [o for o in self.orders if o.id != order_id]

    def find(self, order_id):
        for o in self.orders:
            if o.id == order_id:
                return o
        return None

    def clear(self):
        self.orders = []
`

func TestFindClassTargets(t *testing.T) {
	repo := fixtureRepo(t, map[string]string{"book.py": classFile})
	got := FindClassTargets(newAnalyzer(), repo, 10)
	if len(got) != 1 {
		t.Fatalf("targets = %d, want 1", len(got))
	}
	tgt := got[0]
	if tgt.Snippet.ClassName != "OrderBook" {
		t.Fatalf("class = %s", tgt.Snippet.ClassName)
	}
	if tgt.Metadata["method_count"] != "4" {
		t.Fatalf("method_count = %s, want 4", tgt.Metadata["method_count"])
	}
	if tgt.Metadata["has_docstring"] != "true" {
		t.Fatalf("has_docstring = %s", tgt.Metadata["has_docstring"])
	}
}

func TestFindModuleTargets(t *testing.T) {
	repo := fixtureRepo(t, map[string]string{
		"pkg/__init__.py":  "from .a import run\nfrom .b import stop\n",
		"pkg/a.py":         "def run(): pass\n",
		"pkg/b.py":         "def stop(): pass\n",
		"solo/__init__.py": "",
	})
	got := FindModuleTargets(repo, 10)
	if len(got) != 1 {
		t.Fatalf("targets = %d, want 1 (solo package must be skipped)", len(got))
	}
	tgt := got[0]
	if tgt.Metadata["package_path"] != "pkg" {
		t.Fatalf("package_path = %s", tgt.Metadata["package_path"])
	}
	if !strings.Contains(tgt.SourceContext, "__init__.py:") {
		t.Fatal("context missing init content section")
	}
}

func TestFindPatternTargets(t *testing.T) {
	observer := `class Bus:
    def subscribe(self, topic, fn):
        self.listeners.setdefault(topic, []).append(fn)

    def notify(self, topic, payload):
        for listener in self.listeners.get(topic, []):
            listener(payload)

    def emit(self, topic, payload):
        self.notify(topic, payload)
`
	repo := fixtureRepo(t, map[string]string{"bus.py": observer})
	got := FindPatternTargets(newAnalyzer(), repo, 10)
	if len(got) == 0 {
		t.Fatal("observer pattern not detected")
	}
	found := false
	for _, tgt := range got {
		if tgt.Metadata["pattern"] == "observer" {
			found = true
			if tgt.Snippet.FunctionName != "observer" {
				t.Fatalf("snippet name = %s", tgt.Snippet.FunctionName)
			}
		}
	}
	if !found {
		t.Fatalf("observer missing from %d targets", len(got))
	}
}

func TestRouterRetagsPerspectives(t *testing.T) {
	repo := fixtureRepo(t, map[string]string{"store.py": richFile})
	router := NewRouter(newAnalyzer())

	got := router.FindTargets(model.DocSecurityReview, repo, 10)
	if len(got) == 0 {
		t.Fatal("no security review targets")
	}
	for _, tgt := range got {
		if tgt.DocType != model.DocSecurityReview || tgt.Snippet.DocType != model.DocSecurityReview {
			t.Fatalf("target not re-tagged: %s / %s", tgt.DocType, tgt.Snippet.DocType)
		}
	}
}

func TestRouterFiltersSummaries(t *testing.T) {
	repo := fixtureRepo(t, map[string]string{"store.py": richFile})
	router := NewRouter(newAnalyzer())
	if got := router.FindTargets(model.DocWeeklySummary, repo, 10); len(got) != 0 {
		t.Fatalf("weekly_summary dispatched %d targets", len(got))
	}
}

func TestSelectDocType(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	weights := map[string]int{
		"function_doc":   8,
		"til":            2,
		"weekly_summary": 50,
		"bogus":          50,
	}
	counts := map[model.DocType]int{}
	for range 500 {
		counts[SelectDocType(weights, rng)]++
	}
	if counts[model.DocWeeklySummary] != 0 {
		t.Fatal("summary flavor selected")
	}
	if counts[model.DocFunction] == 0 || counts[model.DocTIL] == 0 {
		t.Fatalf("selection starved a flavor: %v", counts)
	}
	if counts[model.DocFunction] <= counts[model.DocTIL] {
		t.Fatalf("weights ignored: %v", counts)
	}
}

func TestSelectDocTypeEmptyFallsBack(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	if got := SelectDocType(nil, rng); got != model.DocFunction {
		t.Fatalf("fallback = %s, want function_doc", got)
	}
	if got := SelectDocType(map[string]int{"weekly_summary": 9}, rng); got != model.DocFunction {
		t.Fatalf("summary-only fallback = %s", got)
	}
}
