package meta

import (
	"testing"
)

const goSource = `package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Server wraps the router.
type Server struct {
	router chi.Router
}

// Handler is anything that serves requests.
type Handler interface {
	Serve(w http.ResponseWriter, r *http.Request)
}

const MaxConns = 128

// New builds a server.
func New() *Server {
	return &Server{router: chi.NewRouter()}
}

func (s *Server) run() error {
	return http.ListenAndServe(":8080", s.router)
}
`

func TestExtractCodeGo(t *testing.T) {
	m := ExtractCode(goSource, "server.go", "go")

	if len(m.Functions) != 2 {
		t.Errorf("expected 2 functions, got %v", m.Functions)
	}
	if len(m.Classes) != 1 || m.Classes[0] != "Server" {
		t.Errorf("expected struct Server, got %v", m.Classes)
	}
	if len(m.Interfaces) != 1 || m.Interfaces[0] != "Handler" {
		t.Errorf("expected interface Handler, got %v", m.Interfaces)
	}
	if len(m.Constants) != 1 || m.Constants[0] != "MaxConns" {
		t.Errorf("expected constant MaxConns, got %v", m.Constants)
	}

	// Exported surface: capitalized top-level names only.
	wantExports := map[string]bool{"Server": true, "Handler": true, "MaxConns": true, "New": true}
	for _, e := range m.Exports {
		if !wantExports[e] {
			t.Errorf("unexpected export %q", e)
		}
	}
	if len(m.Exports) != len(wantExports) {
		t.Errorf("expected %d exports, got %v", len(wantExports), m.Exports)
	}

	if len(m.Frameworks) != 1 || m.Frameworks[0] != "chi" {
		t.Errorf("expected chi framework tag, got %v", m.Frameworks)
	}
	if m.HasTests {
		t.Error("no test signals in source")
	}
	if !m.HasTypeAnnotations {
		t.Error("go is statically typed")
	}
	if m.CommentRatio <= 0 {
		t.Errorf("expected positive comment ratio, got %f", m.CommentRatio)
	}
}

func TestExtractCodePythonExports(t *testing.T) {
	src := `"""Module doc."""
__all__ = ["load", "save"]

import json

def load(path):
    return json.load(open(path))

def save(path, data):
    json.dump(data, open(path, "w"))

def _internal():
    pass
`
	m := ExtractCode(src, "io.py", "python")

	if len(m.Exports) != 2 || m.Exports[0] != "load" || m.Exports[1] != "save" {
		t.Errorf("expected __all__ exports [load save], got %v", m.Exports)
	}
	if len(m.Functions) != 3 {
		t.Errorf("expected 3 functions, got %v", m.Functions)
	}
	if len(m.Imports) != 1 || m.Imports[0] != "json" {
		t.Errorf("expected import json, got %v", m.Imports)
	}
}

func TestHasTests(t *testing.T) {
	if !hasTests("", "store_test.go") {
		t.Error("expected _test.go filename signal")
	}
	if !hasTests("func TestFoo(t *testing.T) {}", "helpers.go") {
		t.Error("expected Go test content signal")
	}
	if !hasTests("describe('thing', () => {})", "thing.js") {
		t.Error("expected describe() signal")
	}
	if hasTests("plain code", "main.go") {
		t.Error("expected no signal")
	}
}

const markdownDoc = `# Getting Started

Welcome to the project. See [the guide](docs/guide.md) and
[upstream](https://example.com/docs).

## Install

` + "```bash\nmake install\n```" + `

| Option | Default |
|--------|---------|
| debug  | false   |

![diagram](assets/arch.png)
`

func TestExtractDoc(t *testing.T) {
	m := ExtractDoc(markdownDoc)

	if m.Title != "Getting Started" {
		t.Errorf("expected title from first H1, got %q", m.Title)
	}
	if m.SectionCount != 2 || len(m.Headings) != 2 {
		t.Errorf("expected 2 headings, got %v", m.Headings)
	}
	if m.Headings[1].Text != "Install" || m.Headings[1].Level != 2 {
		t.Errorf("unexpected second heading: %+v", m.Headings[1])
	}
	if !m.HasCode || len(m.CodeLanguages) != 1 || m.CodeLanguages[0] != "bash" {
		t.Errorf("expected bash fence, got %v", m.CodeLanguages)
	}
	if !m.HasTables {
		t.Error("expected table detected")
	}
	if !m.HasImages {
		t.Error("expected image detected")
	}
	if m.InternalLinks != 1 {
		t.Errorf("expected 1 internal link, got %d", m.InternalLinks)
	}
	if m.ExternalLinks != 1 {
		t.Errorf("expected 1 external link, got %d", m.ExternalLinks)
	}
	if m.WordCount == 0 {
		t.Error("expected non-zero word count")
	}
}
