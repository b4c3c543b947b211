package repair

import (
	"context"
	"fmt"

	"github.com/clemens-mw/agentic-typer/pkg/config"
	"github.com/clemens-mw/agentic-typer/pkg/console"
	"github.com/clemens-mw/agentic-typer/pkg/depgraph"
	"github.com/clemens-mw/agentic-typer/pkg/diagnostics"
	"github.com/clemens-mw/agentic-typer/pkg/logging"
	"github.com/clemens-mw/agentic-typer/pkg/oracle"
	"github.com/clemens-mw/agentic-typer/pkg/schedule"
	"github.com/clemens-mw/agentic-typer/pkg/verify"
	"github.com/clemens-mw/agentic-typer/pkg/workspace"
)

// Runner drives a whole repair run: discover files, build the dependency
// graph, run the baseline phase, then optionally the full-coverage phase.
type Runner struct {
	cfg     *config.Config
	oracle  oracle.Oracle
	agg     *diagnostics.Aggregator
	lower   verify.Lowerer
	log     *logging.Logger
	console *console.Printer
	dir     string
}

// NewRunner assembles a runner over the project at dir.
func NewRunner(dir string, cfg *config.Config, orc oracle.Oracle, agg *diagnostics.Aggregator,
	lower verify.Lowerer, log *logging.Logger, printer *console.Printer) *Runner {
	return &Runner{
		cfg:     cfg,
		oracle:  orc,
		agg:     agg,
		lower:   lower,
		log:     log,
		console: printer,
		dir:     dir,
	}
}

// Run executes the configured phases and prints a run summary. The returned
// error is run-fatal (quota exhaustion or infrastructure failure); ordinary
// unrepaired files are reported in the summary instead.
func (r *Runner) Run(ctx context.Context) error {
	r.console.Heading("agentic-typer: repairing %s", r.dir)
	r.log.Log("repair run started in " + r.dir)

	files, err := workspace.Discover(r.dir, r.cfg.SkipTestFiles)
	if err != nil {
		return fmt.Errorf("file discovery: %w", err)
	}
	if len(files) == 0 {
		r.console.Plain("no repairable files found")
		return nil
	}
	r.console.Step("discovered %d file(s)", len(files))

	graph, err := depgraph.Build(ctx, r.dir)
	if err != nil {
		return fmt.Errorf("dependency graph: %w", err)
	}
	r.log.Logf("dependency graph indexed %d files", graph.Len())

	// The snapshot table spans the entire run so a file edited in both
	// phases is always compared against its original form.
	table := verify.NewSnapshotTable()
	orch := NewOrchestrator(r.oracle, r.agg, table, r.lower, r.log, r.console, r.dir, r.cfg.OracleRetries)

	total := &Stats{}
	phases := []struct {
		phase   diagnostics.Phase
		workers int
		enabled bool
	}{
		{diagnostics.PhaseBaseline, r.cfg.BaselineWorkers, true},
		{diagnostics.PhaseFullCoverage, r.cfg.FullCoverageWorkers, r.cfg.FullCoverage},
	}
	for _, ph := range phases {
		if !ph.enabled {
			continue
		}
		needing, err := r.filesNeedingRepair(ctx, files, ph.phase)
		if err != nil {
			return err
		}
		r.console.Heading("%s phase: %d file(s) need repair", ph.phase, len(needing))
		if r.cfg.DryRun {
			r.printDryRun(needing, graph)
			continue
		}
		stats, err := orch.RunPhase(ctx, ph.phase, needing, graph, ph.workers)
		if stats != nil {
			total.Merge(stats)
		}
		if err != nil {
			r.printSummary(total)
			return err
		}
	}

	r.printSummary(total)
	return nil
}

// filesNeedingRepair narrows the discovered list to files with at least one
// diagnostic, sizing the phase before any oracle work starts.
func (r *Runner) filesNeedingRepair(ctx context.Context, files []string, phase diagnostics.Phase) ([]string, error) {
	diags, err := r.agg.Errors(ctx, diagnostics.Scope{Dir: r.dir, Phase: phase})
	if err != nil {
		return nil, err
	}
	inProject := make(map[string]bool, len(files))
	for _, f := range files {
		inProject[f] = true
	}
	seen := make(map[string]bool)
	var needing []string
	for _, d := range diags {
		if !inProject[d.File] || seen[d.File] {
			continue
		}
		seen[d.File] = true
		needing = append(needing, d.File)
	}
	return needing, nil
}

// printDryRun lists the schedule order without invoking the oracle.
func (r *Runner) printDryRun(files []string, graph *depgraph.Graph) {
	sched := schedule.New(files, graph)
	order := 0
	for sched.HasUnprocessed() {
		file, err := sched.Shift()
		if err != nil {
			break
		}
		order++
		r.console.Plain("%3d. %s", order, file)
		sched.MarkProcessed(file)
	}
}

func (r *Runner) printSummary(s *Stats) {
	r.console.Heading("run summary")
	r.console.Plain("  files repaired:   %d", s.FilesRepaired)
	r.console.Plain("  files failed:     %d", s.FilesFailed)
	r.console.Plain("  files suppressed: %d", s.FilesSuppressed)
	r.console.Plain("  iterations:       %d", s.Iterations)
	r.console.Plain("  oracle turns:     %d", s.Turns)
	r.console.Plain("  cost units:       %.4f", s.CostUnits)
	r.console.Plain("  behavior flags:   %d", s.Violations)
	if s.Remaining > 0 {
		r.console.Warn("  diagnostics left: %d (see %s)", s.Remaining, r.log.Path())
	}
	r.log.Logf("run summary: repaired=%d failed=%d suppressed=%d iterations=%d turns=%d cost=%.4f violations=%d remaining=%d",
		s.FilesRepaired, s.FilesFailed, s.FilesSuppressed, s.Iterations, s.Turns, s.CostUnits, s.Violations, s.Remaining)
}
