package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"
)

// TypeCheckSource surfaces compiler and type errors via go/packages. Every
// query performs a fresh load so re-checks observe the oracle's edits.
type TypeCheckSource struct {
	dir string
}

// NewTypeCheckSource creates a type-check source rooted at the module dir.
func NewTypeCheckSource(dir string) *TypeCheckSource {
	return &TypeCheckSource{dir: dir}
}

func (s *TypeCheckSource) Name() string { return "typecheck" }

// Query loads the module and collects load, parse, and type errors. When the
// scope names a file, findings are filtered to that file.
func (s *TypeCheckSource) Query(ctx context.Context, scope Scope) ([]Diagnostic, error) {
	env := append(os.Environ(), "GOWORK=off", "GOFLAGS=")
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedImports | packages.NeedDeps,
		Dir:     s.dir,
		Env:     env,
		Context: ctx,
		Tests:   false,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, fmt.Errorf("package load: %w", err)
	}

	var diags []Diagnostic
	seen := make(map[string]bool)
	packages.Visit(pkgs, nil, func(p *packages.Package) {
		if p.Module == nil || !p.Module.Main {
			return
		}
		for _, perr := range p.Errors {
			d := s.toDiagnostic(perr)
			if scope.File != "" && d.File != scope.File {
				continue
			}
			key := d.String()
			if seen[key] {
				// The same load error can surface on every importer of a
				// broken package.
				continue
			}
			seen[key] = true
			diags = append(diags, d)
		}
	})
	return diags, nil
}

func (s *TypeCheckSource) toDiagnostic(perr packages.Error) Diagnostic {
	file, line, col := splitPos(perr.Pos)
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(s.dir, file)
	}
	return Diagnostic{
		Origin:   "typecheck",
		File:     file,
		Line:     line,
		Col:      col,
		Message:  perr.Msg,
		Severity: SeverityError,
	}
}

// splitPos splits a "file:line:col" position string. Missing parts come back
// zero; Windows drive letters are preserved.
func splitPos(pos string) (file string, line, col int) {
	if pos == "" || pos == "-" {
		return "", 0, 0
	}
	rest := pos
	if len(rest) >= 2 && rest[1] == ':' {
		// drive letter prefix
		rest = rest[2:]
		file = pos[:2]
	}
	parts := strings.Split(rest, ":")
	file += parts[0]
	if len(parts) > 1 {
		line, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		col, _ = strconv.Atoi(parts[2])
	}
	return file, line, col
}
