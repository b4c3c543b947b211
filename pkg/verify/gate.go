package verify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/clemens-mw/agentic-typer/pkg/logging"
)

// Gate observes every oracle-performed edit and checks that the file's
// canonical lowered form is unchanged. One gate serves one repair scope; the
// snapshot table behind it is shared across the whole run.
type Gate struct {
	table *SnapshotTable
	lower Lowerer
	log   *logging.Logger

	mu         sync.Mutex
	violations int
	pending    []string
}

// NewGate wires a gate to the run's snapshot table.
func NewGate(table *SnapshotTable, lower Lowerer, log *logging.Logger) *Gate {
	return &Gate{table: table, lower: lower, log: log}
}

// PreEdit captures the file's original lowered form if no snapshot exists
// yet. Idempotent. A lowering fault (the file may be momentarily unparsable
// mid-edit) is logged and the file exempted rather than crashing the run.
func (g *Gate) PreEdit(file string) error {
	if g.table.Observed(file) {
		return nil
	}
	lowered, err := g.lower.Lower(file)
	if err != nil {
		g.log.Logf("pre-edit lowering failed, skipping verification for %s: %v", file, err)
		g.table.MarkSkipped(file)
		return nil
	}
	g.table.Store(file, lowered)
	return nil
}

// PostEdit recomputes the lowered form and compares it against the pre-run
// snapshot. On mismatch it records a violation and queues a correction
// directive for the oracle's next turn. A missing snapshot aborts: the gate
// cannot have a post-edit observation without a pre-edit one.
func (g *Gate) PostEdit(file string) error {
	before, skipped, err := g.table.Get(file)
	if err != nil {
		return err
	}
	if skipped {
		return nil
	}
	after, err := g.lower.Lower(file)
	if err != nil {
		g.log.Logf("post-edit lowering failed, skipping observation for %s: %v", file, err)
		return nil
	}
	if after == before {
		return nil
	}

	diff := renderDiff(before, after)
	g.log.Logf("behavior violation in %s:\n%s", file, diff)

	g.mu.Lock()
	g.violations++
	g.pending = append(g.pending, correctionDirective(file, diff))
	g.mu.Unlock()
	return nil
}

// Violations returns how many behavioral mismatches this gate observed.
func (g *Gate) Violations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.violations
}

// Pending reports how many correction directives await delivery.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// DrainDirectives returns and clears the queued correction directives. The
// controller prepends them to the very next oracle turn in the same
// conversation; a fresh request could not refer to "your last edit".
func (g *Gate) DrainDirectives() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.pending
	g.pending = nil
	return out
}

func correctionDirective(file, diff string) string {
	return fmt.Sprintf(`BEHAVIOR VIOLATION: your edit changed the observable behavior of %s.
The comment-stripped compiled form now differs from the original:

%s
Revert the behavioral change in this file. Keep fixes that do not alter
behavior (type annotations, declarations, comments); undo everything else.`, file, diff)
}

// renderDiff produces a plain line diff of the two lowered forms, trimming
// unchanged runs to two lines of context on each side.
func renderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lineIndex := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineIndex)

	var sb strings.Builder
	for i, d := range diffs {
		lines := strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n")
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			writePrefixed(&sb, "-", lines)
		case diffmatchpatch.DiffInsert:
			writePrefixed(&sb, "+", lines)
		case diffmatchpatch.DiffEqual:
			writePrefixed(&sb, " ", trimContext(lines, i == 0, i == len(diffs)-1))
		}
	}
	return sb.String()
}

func writePrefixed(sb *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		sb.WriteString(prefix)
		sb.WriteString(" ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}

// trimContext keeps the two lines adjacent to a change and elides the rest.
func trimContext(lines []string, first, last bool) []string {
	const keep = 2
	if len(lines) <= keep*2+1 {
		return lines
	}
	var out []string
	if !first {
		out = append(out, lines[:keep]...)
	}
	out = append(out, "...")
	if !last {
		out = append(out, lines[len(lines)-keep:]...)
	}
	return out
}
