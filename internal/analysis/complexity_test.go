package analysis

import (
	"testing"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

func TestMeasurePythonFunction(t *testing.T) {
	fn := &ParsedFunction{
		Name: "walk",
		Source: `def walk(root, depth, visit):
    # recursive descent
    if depth <= 0:
        return
    for child in root.children:
        if child.visible and child.ready:
            visit(child)
            walk(child, depth - 1, visit)`,
	}
	m := MeasureFunction(fn, model.LangPython)
	if m.ParameterCount != 3 {
		t.Fatalf("params = %d, want 3", m.ParameterCount)
	}
	// 1 + if, for, if, and
	if m.Cyclomatic != 5 {
		t.Fatalf("cyclomatic = %d, want 5", m.Cyclomatic)
	}
	// Comment line excluded.
	if m.NLOC != 7 {
		t.Fatalf("nloc = %d, want 7", m.NLOC)
	}
	if m.MaxNestingDepth != 2 {
		t.Fatalf("nesting = %d, want 2", m.MaxNestingDepth)
	}
}

func TestMeasureGoFunction(t *testing.T) {
	fn := &ParsedFunction{
		Name: "retry",
		Source: `func retry(op func() error, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}`,
	}
	m := MeasureFunction(fn, model.LangGo)
	if m.ParameterCount != 2 {
		t.Fatalf("params = %d, want 2", m.ParameterCount)
	}
	// 1 + for + if
	if m.Cyclomatic != 3 {
		t.Fatalf("cyclomatic = %d, want 3", m.Cyclomatic)
	}
	if m.MaxNestingDepth != 2 {
		t.Fatalf("nesting = %d, want 2", m.MaxNestingDepth)
	}
}

func TestCountParamsEdgeCases(t *testing.T) {
	cases := []struct {
		sig  string
		want int
	}{
		{"def f():", 0},
		{"def f(a):", 1},
		{"def f(a, b=(1, 2), *args):", 3},
		{"func g(m map[string]int, fn func(a, b int)) {", 2},
	}
	for _, tc := range cases {
		if got := countParams(tc.sig); got != tc.want {
			t.Errorf("countParams(%q) = %d, want %d", tc.sig, got, tc.want)
		}
	}
}
