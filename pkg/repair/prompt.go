package repair

import (
	"fmt"
	"os"
	"strings"

	"github.com/clemens-mw/agentic-typer/pkg/diagnostics"
)

// iterationCap derives the bounded-iteration budget from the scope's initial
// error count. Small scopes get 5 rounds; larger scopes earn proportionally
// more: ceil(count * 5 / 100).
func iterationCap(count int) int {
	if count < 100 {
		return 5
	}
	return (count*5 + 99) / 100
}

// contextRadius shrinks the per-diagnostic source window as the error count
// grows, keeping the instruction within the oracle's input limits.
func contextRadius(count int) int {
	switch {
	case count < 10:
		return 3
	case count < 50:
		return 2
	default:
		return 1
	}
}

const suppressionRules = `If a diagnostic cannot be fixed without changing runtime behavior, suppress it
instead with a single-line directive immediately above the offending code:
  //nolint:all // BUG: <why the flagged code is a real bug>
for genuine bugs you must not fix here, or
  //nolint:all // accepted: <short technical reason>
for valid code the checker cannot type. Every suppression must carry one of
the two labels; never leave one unexplained.`

// buildInstruction renders one oracle turn: queued correction directives
// first (they refer to the conversation's own recent edits), then the
// phase-appropriate task, then the diagnostics with surrounding source.
func buildInstruction(scope diagnostics.Scope, diags []diagnostics.Diagnostic, directives []string) string {
	var sb strings.Builder

	for _, d := range directives {
		sb.WriteString(d)
		sb.WriteString("\n\n")
	}

	switch {
	case scope.File != "":
		fmt.Fprintf(&sb, "Fix every reported diagnostic in %s.\n", scope.File)
	default:
		sb.WriteString("Fix every reported diagnostic across the project.\n")
	}
	if scope.Phase == diagnostics.PhaseFullCoverage {
		sb.WriteString("This is the full-coverage pass: eliminate loosely-typed and untyped constructs the linter flags.\n")
	}
	sb.WriteString(`You must not change any execution-observable behavior: no logic edits, no
dead-code removal, no reordering of statements with side effects. Type
annotations, declarations, and comments are fine.
`)
	sb.WriteString(suppressionRules)
	sb.WriteString("\n\nDiagnostics:\n\n")

	radius := contextRadius(len(diags))
	for _, d := range diags {
		sb.WriteString(d.String())
		sb.WriteString("\n")
		sb.WriteString(sourceContext(d, radius))
		sb.WriteString("\n")
	}
	return sb.String()
}

// sourceContext returns the diagnostic's line with radius lines around it,
// numbered, with a marker on the offending line. Unreadable files degrade to
// no context rather than failing the turn.
func sourceContext(d diagnostics.Diagnostic, radius int) string {
	data, err := os.ReadFile(d.File)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	if d.Line < 1 || d.Line > len(lines) {
		return ""
	}

	start := d.Line - radius
	if start < 1 {
		start = 1
	}
	end := d.Line + radius
	if end > len(lines) {
		end = len(lines)
	}

	var sb strings.Builder
	for n := start; n <= end; n++ {
		marker := "  "
		if n == d.Line {
			marker = "> "
		}
		fmt.Fprintf(&sb, "%s%4d | %s\n", marker, n, lines[n-1])
	}
	return sb.String()
}

// continueInstruction resumes a rate-limited conversation.
const continueInstruction = "continue"
