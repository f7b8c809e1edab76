package analysis

import (
	"testing"

	"git.home.luguber.info/inful/codeworm/internal/model"
)

const pySource = `import os
from pathlib import Path


@lru_cache
def top_level(a, b=3):
    """Top level helper"""
    if a:
        for i in range(b):
            yield i
    return None


class Widget:
    """A widget"""

    @property
    def name(self):
        return self._name

    async def refresh(self, force, timeout=10):
        if force:
            await self._reload()
        return self._name
`

func TestExtractPythonFunctions(t *testing.T) {
	fns := ExtractFunctions(pySource, model.LangPython)
	if len(fns) != 3 {
		t.Fatalf("extracted %d functions, want 3", len(fns))
	}
	byName := map[string]ParsedFunction{}
	for _, fn := range fns {
		byName[fn.Name] = fn
	}

	top := byName["top_level"]
	if top.ClassName != "" {
		t.Fatalf("top_level class = %q, want empty", top.ClassName)
	}
	if len(top.Decorators) != 1 || top.Decorators[0] != "@lru_cache" {
		t.Fatalf("top_level decorators = %v", top.Decorators)
	}
	if top.Docstring != "Top level helper" {
		t.Fatalf("top_level docstring = %q", top.Docstring)
	}
	if top.StartLine != 6 {
		t.Fatalf("top_level start = %d, want 6", top.StartLine)
	}

	name := byName["name"]
	if name.ClassName != "Widget" {
		t.Fatalf("name class = %q, want Widget", name.ClassName)
	}
	if len(name.Decorators) != 1 || name.Decorators[0] != "@property" {
		t.Fatalf("name decorators = %v", name.Decorators)
	}

	refresh := byName["refresh"]
	if !refresh.IsAsync {
		t.Fatal("refresh not detected as async")
	}
}

func TestExtractPythonClasses(t *testing.T) {
	classes := ExtractClasses(pySource, model.LangPython)
	if len(classes) != 1 {
		t.Fatalf("extracted %d classes, want 1", len(classes))
	}
	w := classes[0]
	if w.Name != "Widget" || w.Docstring != "A widget" {
		t.Fatalf("class = %+v", w)
	}
	if len(w.Methods) != 2 {
		t.Fatalf("methods = %v, want 2", w.Methods)
	}
}

const goSource = `package demo

import "fmt"

func Greet(name string, times int) string {
	out := ""
	for i := 0; i < times; i++ {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("hello %s", name)
	}
	return out
}

func (s *Server) Close() error {
	return s.conn.Close()
}
`

func TestExtractGoFunctions(t *testing.T) {
	fns := ExtractFunctions(goSource, model.LangGo)
	if len(fns) != 2 {
		t.Fatalf("extracted %d functions, want 2", len(fns))
	}
	if fns[0].Name != "Greet" {
		t.Fatalf("first = %s, want Greet", fns[0].Name)
	}
	if fns[0].StartLine != 5 || fns[0].EndLine != 14 {
		t.Fatalf("Greet span = %d..%d", fns[0].StartLine, fns[0].EndLine)
	}
	if fns[1].Name != "Close" {
		t.Fatalf("second = %s, want Close", fns[1].Name)
	}
}

const tsSource = `import { api } from "./api";

export class Store {
	async load(id: string): Promise<void> {
		const data = await api.fetch(id);
		this.cache.set(id, data);
	}
}

export async function sync(items: string[]) {
	for (const item of items) {
		await api.push(item);
	}
}

export const pick = (xs: number[]) => {
	return xs[0];
};
`

func TestExtractTypeScriptFunctions(t *testing.T) {
	fns := ExtractFunctions(tsSource, model.LangTypeScript)
	byName := map[string]ParsedFunction{}
	for _, fn := range fns {
		byName[fn.Name] = fn
	}
	load, ok := byName["load"]
	if !ok {
		t.Fatalf("method load not extracted: %v", fns)
	}
	if load.ClassName != "Store" || !load.IsAsync {
		t.Fatalf("load = %+v", load)
	}
	if fn, ok := byName["sync"]; !ok || !fn.IsAsync {
		t.Fatalf("sync = %+v ok=%v", fn, ok)
	}
	if _, ok := byName["pick"]; !ok {
		t.Fatal("arrow function pick not extracted")
	}
}

func TestExtractRustFunctions(t *testing.T) {
	src := "pub async fn fetch(url: &str) -> Result<String, Error> {\n    let body = client.get(url).await?;\n    Ok(body)\n}\n"
	fns := ExtractFunctions(src, model.LangRust)
	if len(fns) != 1 || fns[0].Name != "fetch" || !fns[0].IsAsync {
		t.Fatalf("fns = %+v", fns)
	}
}

func TestCountImports(t *testing.T) {
	if got := CountImports(pySource, model.LangPython); got != 2 {
		t.Fatalf("python imports = %d, want 2", got)
	}
	if got := CountImports(tsSource, model.LangTypeScript); got != 1 {
		t.Fatalf("ts imports = %d, want 1", got)
	}
}
