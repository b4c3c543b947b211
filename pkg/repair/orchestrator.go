package repair

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/clemens-mw/agentic-typer/pkg/console"
	"github.com/clemens-mw/agentic-typer/pkg/depgraph"
	"github.com/clemens-mw/agentic-typer/pkg/diagnostics"
	"github.com/clemens-mw/agentic-typer/pkg/logging"
	"github.com/clemens-mw/agentic-typer/pkg/oracle"
	"github.com/clemens-mw/agentic-typer/pkg/schedule"
	"github.com/clemens-mw/agentic-typer/pkg/verify"
)

// Stats aggregates scope results across a phase.
type Stats struct {
	FilesRepaired   int
	FilesFailed     int
	FilesSuppressed int
	Iterations      int
	Turns           int
	CostUnits       float64
	Violations      int
	Remaining       int
}

func (s *Stats) add(r *ScopeResult) {
	switch {
	case r.Suppressed:
		s.FilesSuppressed++
	case r.Repaired:
		s.FilesRepaired++
	default:
		s.FilesFailed++
	}
	s.Iterations += r.Iterations
	s.Turns += r.Turns
	s.CostUnits += r.CostUnits
	s.Violations += r.Violations
	s.Remaining += r.Remaining
}

// Merge folds other into s.
func (s *Stats) Merge(other *Stats) {
	s.FilesRepaired += other.FilesRepaired
	s.FilesFailed += other.FilesFailed
	s.FilesSuppressed += other.FilesSuppressed
	s.Iterations += other.Iterations
	s.Turns += other.Turns
	s.CostUnits += other.CostUnits
	s.Violations += other.Violations
	s.Remaining += other.Remaining
}

// Orchestrator runs one repair controller per file, pulling files from a
// dependency-aware schedule with a phase-dependent worker count.
type Orchestrator struct {
	oracle  oracle.Oracle
	agg     *diagnostics.Aggregator
	table   *verify.SnapshotTable
	lower   verify.Lowerer
	log     *logging.Logger
	console *console.Printer
	dir     string
	retries int
}

// NewOrchestrator wires the per-file driver. The snapshot table is shared
// across all workers so a file's original form survives being touched from
// any scope.
func NewOrchestrator(orc oracle.Oracle, agg *diagnostics.Aggregator, table *verify.SnapshotTable,
	lower verify.Lowerer, log *logging.Logger, printer *console.Printer, dir string, retries int) *Orchestrator {
	return &Orchestrator{
		oracle:  orc,
		agg:     agg,
		table:   table,
		lower:   lower,
		log:     log,
		console: printer,
		dir:     dir,
		retries: retries,
	}
}

// RunPhase repairs files concurrently (workers bound depends on the phase),
// then runs one whole-project cleanup scope if diagnostics remain anywhere.
// Workers steal: each claims its next file from the schedule only after
// finishing the current one. A fatal oracle error stops new claims but does
// not interrupt an invocation already in flight.
func (o *Orchestrator) RunPhase(ctx context.Context, phase diagnostics.Phase, files []string,
	graph *depgraph.Graph, workers int) (*Stats, error) {

	sched := schedule.New(files, graph)
	stats := &Stats{}
	var mu sync.Mutex

	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				file, err := sched.Shift()
				if errors.Is(err, schedule.ErrExhausted) {
					return nil
				}
				if err != nil {
					return err
				}

				// gctx governs claiming only. The controller runs on the
				// caller's context so a sibling's fatal error cannot kill a
				// live oracle subprocess mid-edit.
				scope := diagnostics.Scope{Dir: o.dir, File: file, Phase: phase}
				result, runErr := o.newController().Run(ctx, scope)
				sched.MarkProcessed(file)
				if result != nil {
					mu.Lock()
					stats.add(result)
					mu.Unlock()
				}
				if runErr != nil {
					return runErr
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	cleanupStats, err := o.cleanup(ctx, phase)
	if cleanupStats != nil {
		stats.Merge(cleanupStats)
	}
	return stats, err
}

// cleanup runs the single whole-project scope that mops up cross-file
// diagnostics the per-file passes could not see together. The controller
// itself answers "is anything left" via its initial check.
func (o *Orchestrator) cleanup(ctx context.Context, phase diagnostics.Phase) (*Stats, error) {
	scope := diagnostics.Scope{Dir: o.dir, Phase: phase}
	o.log.LogProcessStep("project cleanup scope")
	result, err := o.newController().Run(ctx, scope)
	stats := &Stats{}
	if result != nil && result.Iterations > 0 {
		stats.add(result)
	} else if result != nil {
		// Nothing left to clean; count only remaining diagnostics, if any.
		stats.Remaining = result.Remaining
	}
	return stats, err
}

// newController builds a per-scope controller with a dedicated gate. Gates
// are scope-local because their correction directives belong to one
// conversation; the snapshot table behind them is run-global.
func (o *Orchestrator) newController() *Controller {
	gate := verify.NewGate(o.table, o.lower, o.log)
	return NewController(o.oracle, o.agg, gate, o.log, o.console, o.dir, o.retries)
}
