package depgraph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"golang.org/x/tools/go/packages"
)

// ErrNotIndexed is returned for lookups of files the build never visited.
// Callers must only query files known to be in the project.
var ErrNotIndexed = errors.New("file not indexed in dependency graph")

// Graph maps each project file to the project-local files its imports
// resolve to. External modules and the standard library are excluded. The
// graph is built once per run and never refreshed as the oracle edits files:
// a stale edge only biases scheduling, it cannot corrupt results.
type Graph struct {
	deps map[string][]string
}

// Build loads the module rooted at dir and derives file-level edges from the
// package import graph: a file depends on every file of each in-module
// package its own package imports. Test packages are excluded.
func Build(ctx context.Context, dir string) (*Graph, error) {
	env := append(os.Environ(), "GOWORK=off", "GOFLAGS=")
	cfg := &packages.Config{
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedImports | packages.NeedModule | packages.NeedDeps,
		Dir:     dir,
		Env:     env,
		Context: ctx,
		Tests:   false,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("package load for dependency graph: %w", err)
	}

	deps := make(map[string][]string)
	for _, p := range pkgs {
		if !inModule(p) {
			continue
		}
		var imported []string
		for _, imp := range p.Imports {
			if !inModule(imp) {
				continue
			}
			imported = append(imported, imp.GoFiles...)
		}
		sort.Strings(imported)
		for _, f := range p.GoFiles {
			deps[f] = imported
		}
	}
	return &Graph{deps: deps}, nil
}

// NewFromMap builds a graph from an explicit adjacency map. Used by tests
// and by callers that resolve dependencies themselves.
func NewFromMap(deps map[string][]string) *Graph {
	copied := make(map[string][]string, len(deps))
	for file, imports := range deps {
		dup := make([]string, len(imports))
		copy(dup, imports)
		sort.Strings(dup)
		copied[file] = dup
	}
	return &Graph{deps: copied}
}

// Get returns the direct local dependencies of file. Lookups of unknown
// files fail with ErrNotIndexed.
func (g *Graph) Get(file string) ([]string, error) {
	deps, ok := g.deps[file]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, file)
	}
	return deps, nil
}

// Files returns every indexed file in lexicographic order.
func (g *Graph) Files() []string {
	files := make([]string, 0, len(g.deps))
	for f := range g.deps {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Len reports the number of indexed files.
func (g *Graph) Len() int {
	return len(g.deps)
}

func inModule(p *packages.Package) bool {
	return p.Module != nil && p.Module.Main
}
