package diagnostics

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// LintSource runs an external lint command and parses its line-oriented
// output. The default command is `go vet ./...`; anything emitting
// file:line:col: message (or file:line: message) lines works.
type LintSource struct {
	dir     string
	command []string
}

// NewLintSource creates a lint source. command must be non-empty; the first
// element is the binary, the rest its arguments.
func NewLintSource(dir string, command []string) *LintSource {
	return &LintSource{dir: dir, command: command}
}

func (s *LintSource) Name() string { return "lint" }

// Query runs the lint command and parses its combined output. A non-zero
// exit with parseable findings is the normal "lint found problems" case, not
// an error; a non-zero exit with no findings is surfaced as a failure.
func (s *LintSource) Query(ctx context.Context, scope Scope) ([]Diagnostic, error) {
	if len(s.command) == 0 {
		return nil, fmt.Errorf("no lint command configured")
	}
	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Dir = s.dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	diags := s.parse(out.String())
	if runErr != nil && len(diags) == 0 && out.Len() > 0 {
		return nil, fmt.Errorf("lint command %q failed: %w\n%s", strings.Join(s.command, " "), runErr, out.String())
	}

	if scope.File == "" {
		return diags, nil
	}
	filtered := diags[:0]
	for _, d := range diags {
		if d.File == scope.File {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

func (s *LintSource) parse(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "exit status") {
			continue
		}
		d, ok := s.parseLine(line)
		if !ok {
			continue
		}
		diags = append(diags, d)
	}
	return diags
}

// parseLine parses "file:line[:col]: message". Lines that do not match are
// ignored rather than guessed at.
func (s *LintSource) parseLine(line string) (Diagnostic, bool) {
	file, lineNo, col := splitPos(positionPart(line))
	msg := messagePart(line)
	if file == "" || lineNo == 0 || msg == "" {
		return Diagnostic{}, false
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(s.dir, file)
	}
	return Diagnostic{
		Origin:   "lint",
		File:     file,
		Line:     lineNo,
		Col:      col,
		Message:  msg,
		Severity: SeverityError,
	}, true
}

// positionPart returns the leading file:line[:col] portion of a finding.
func positionPart(line string) string {
	colons := 0
	for i := 0; i < len(line); i++ {
		if line[i] != ':' {
			continue
		}
		colons++
		if colons < 2 {
			continue
		}
		// position ends at the first colon followed by a space, or at the
		// third colon overall
		if i+1 < len(line) && line[i+1] == ' ' {
			return line[:i]
		}
		if colons == 3 {
			return line[:i]
		}
	}
	return ""
}

func messagePart(line string) string {
	pos := positionPart(line)
	if pos == "" || len(line) <= len(pos)+1 {
		return ""
	}
	return strings.TrimSpace(line[len(pos)+1:])
}
