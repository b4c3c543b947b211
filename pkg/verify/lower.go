package verify

import (
	"bytes"
	"fmt"
	"go/parser"
	"go/printer"
	"go/token"
)

// Lowerer produces the canonical lowered form of a file: deterministic,
// comment-stripped, and free of behavior-affecting transformation. Equality
// of two lowerings is the sole behavior-preservation test, no stronger and
// no weaker.
type Lowerer interface {
	Lower(path string) (string, error)
}

// GoLowerer lowers Go source by parsing without comments and reprinting with
// a fixed printer configuration. Formatting, comment, and annotation-only
// edits lower identically; any change to executable structure does not.
type GoLowerer struct{}

func (GoLowerer) Lower(path string) (string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
	if err != nil {
		return "", fmt.Errorf("lowering %s: %w", path, err)
	}
	var buf bytes.Buffer
	cfg := printer.Config{Mode: printer.TabIndent, Tabwidth: 8}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return "", fmt.Errorf("printing lowered form of %s: %w", path, err)
	}
	return buf.String(), nil
}
