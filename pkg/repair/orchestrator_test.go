package repair

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemens-mw/agentic-typer/pkg/console"
	"github.com/clemens-mw/agentic-typer/pkg/depgraph"
	"github.com/clemens-mw/agentic-typer/pkg/diagnostics"
	"github.com/clemens-mw/agentic-typer/pkg/logging"
	"github.com/clemens-mw/agentic-typer/pkg/oracle"
	"github.com/clemens-mw/agentic-typer/pkg/verify"
)

// scopedSource keys queued responses by scope file ("" is the project
// scope) and records the order scopes were first queried in. Exhausted
// queues repeat their final entry.
type scopedSource struct {
	mu     sync.Mutex
	queues map[string][][]diagnostics.Diagnostic
	order  []string
}

func (s *scopedSource) Name() string { return "typecheck" }

func (s *scopedSource) Query(ctx context.Context, scope diagnostics.Scope) ([]diagnostics.Diagnostic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scope.File
	if !s.queried(key) {
		s.order = append(s.order, key)
	}
	q := s.queues[key]
	if len(q) == 0 {
		return nil, nil
	}
	head := q[0]
	if len(q) > 1 {
		s.queues[key] = q[1:]
	}
	return head, nil
}

func (s *scopedSource) queried(key string) bool {
	for _, k := range s.order {
		if k == key {
			return true
		}
	}
	return false
}

func (s *scopedSource) queryOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func newTestOrchestrator(t *testing.T, orc oracle.Oracle, src diagnostics.Source) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	log := logging.New(dir)
	t.Cleanup(func() { log.Close() })
	return NewOrchestrator(orc, diagnostics.NewAggregator(src, nil),
		verify.NewSnapshotTable(), verify.GoLowerer{}, log, console.NewWriter(&bytes.Buffer{}), dir, 1)
}

func TestRunPhaseRepairsInDependencyOrder(t *testing.T) {
	a := filepath.Join("/p", "a.go")
	b := filepath.Join("/p", "b.go")
	c := filepath.Join("/p", "c.go")
	graph := depgraph.NewFromMap(map[string][]string{
		a: nil,
		b: {a},
		c: {b},
	})

	// a starts clean, b has two errors, c (which depends on b) has one.
	src := &scopedSource{queues: map[string][][]diagnostics.Diagnostic{
		a: {nil},
		b: {manyDiags(b, 2), nil},
		c: {manyDiags(c, 1), nil},
	}}
	orc := &scriptedOracle{}
	orch := newTestOrchestrator(t, orc, src)

	stats, err := orch.RunPhase(context.Background(), diagnostics.PhaseBaseline, []string{c, b, a}, graph, 1)
	require.NoError(t, err)

	// Dependencies first, then the whole-project cleanup scope.
	assert.Equal(t, []string{a, b, c, ""}, src.queryOrder())
	assert.Equal(t, 3, stats.FilesRepaired)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 2, stats.Iterations)
	assert.Equal(t, 2, orc.callCount(), "one invocation per dirty file, none for clean scopes")
	assert.Equal(t, 0, stats.Remaining)
}

func TestRunPhaseCleanupMopsUpCrossFileDiagnostics(t *testing.T) {
	a := filepath.Join("/p", "a.go")
	graph := depgraph.NewFromMap(map[string][]string{a: nil})

	// The per-file scope comes out clean but a cross-file diagnostic
	// surfaces at project scope; the cleanup pass handles it.
	src := &scopedSource{queues: map[string][][]diagnostics.Diagnostic{
		a:  {manyDiags(a, 1), nil},
		"": {manyDiags(a, 1), nil},
	}}
	orc := &scriptedOracle{}
	orch := newTestOrchestrator(t, orc, src)

	stats, err := orch.RunPhase(context.Background(), diagnostics.PhaseBaseline, []string{a}, graph, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, orc.callCount())
	assert.Equal(t, 2, stats.FilesRepaired, "the cleanup scope counts as a repaired scope")
	assert.Equal(t, 0, stats.Remaining)
}

func TestRunPhaseFatalErrorStopsScheduling(t *testing.T) {
	a := filepath.Join("/p", "a.go")
	b := filepath.Join("/p", "b.go")
	graph := depgraph.NewFromMap(map[string][]string{a: nil, b: nil})

	src := &scopedSource{queues: map[string][][]diagnostics.Diagnostic{
		a: {manyDiags(a, 1)},
		b: {manyDiags(b, 1)},
	}}
	orc := &scriptedOracle{script: []func(string, oracle.InvokeOptions) (*oracle.Result, error){
		failWith(&oracle.QuotaExhaustedError{Reason: "spent"}),
	}}
	orch := newTestOrchestrator(t, orc, src)

	stats, err := orch.RunPhase(context.Background(), diagnostics.PhaseBaseline, []string{a, b}, graph, 1)
	require.Error(t, err)
	assert.True(t, oracle.IsQuotaExhausted(err))
	assert.Equal(t, []string{a}, src.queryOrder(), "no further scope is claimed and cleanup never runs")
	assert.Equal(t, 1, stats.FilesFailed)
}

// pairedFatalOracle fails the scope for fatalFile with a quota error, but
// only once the other scope's invocation is in flight; that invocation then
// watches whether its context gets cancelled.
type pairedFatalOracle struct {
	fatalFile   string
	peerStarted chan struct{}

	mu          sync.Mutex
	interrupted bool
}

func (o *pairedFatalOracle) Invoke(ctx context.Context, instruction string, opts oracle.InvokeOptions) (*oracle.Result, error) {
	if strings.Contains(instruction, o.fatalFile) {
		<-o.peerStarted
		return nil, &oracle.QuotaExhaustedError{Reason: "spent"}
	}
	close(o.peerStarted)
	select {
	case <-ctx.Done():
		o.mu.Lock()
		o.interrupted = true
		o.mu.Unlock()
	case <-time.After(100 * time.Millisecond):
	}
	return &oracle.Result{}, nil
}

func TestRunPhaseFatalDoesNotInterruptInFlightInvocation(t *testing.T) {
	a := filepath.Join("/p", "a.go")
	b := filepath.Join("/p", "b.go")

	src := &scopedSource{queues: map[string][][]diagnostics.Diagnostic{
		a: {manyDiags(a, 1)},
		b: {manyDiags(b, 1), nil},
	}}
	orc := &pairedFatalOracle{fatalFile: a, peerStarted: make(chan struct{})}
	orch := newTestOrchestrator(t, orc, src)

	_, err := orch.RunPhase(context.Background(), diagnostics.PhaseBaseline, []string{a, b},
		depgraph.NewFromMap(map[string][]string{a: nil, b: nil}), 2)
	require.Error(t, err)
	assert.True(t, oracle.IsQuotaExhausted(err))

	orc.mu.Lock()
	defer orc.mu.Unlock()
	assert.False(t, orc.interrupted, "a sibling's fatal error must not cancel an invocation already in flight")
}

func TestRunPhaseWorkersShareScheduleWithoutDuplicates(t *testing.T) {
	files := make([]string, 6)
	queues := make(map[string][][]diagnostics.Diagnostic, len(files)+1)
	for i := range files {
		files[i] = filepath.Join("/p", string(rune('a'+i))+".go")
		queues[files[i]] = [][]diagnostics.Diagnostic{manyDiags(files[i], 1), nil}
	}
	queues[""] = [][]diagnostics.Diagnostic{nil}

	src := &scopedSource{queues: queues}
	orc := &scriptedOracle{}
	orch := newTestOrchestrator(t, orc, src)

	stats, err := orch.RunPhase(context.Background(), diagnostics.PhaseBaseline, files, depgraph.NewFromMap(nil), 4)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.FilesRepaired)
	assert.Equal(t, 6, orc.callCount(), "each file is claimed exactly once")
}

func TestStatsMergeAndAdd(t *testing.T) {
	s := &Stats{}
	s.add(&ScopeResult{Repaired: true, Iterations: 2, Turns: 4, CostUnits: 0.1})
	s.add(&ScopeResult{Suppressed: true, Iterations: 1})
	s.add(&ScopeResult{Remaining: 3, Iterations: 5, Violations: 1})

	assert.Equal(t, 1, s.FilesRepaired)
	assert.Equal(t, 1, s.FilesSuppressed)
	assert.Equal(t, 1, s.FilesFailed)
	assert.Equal(t, 8, s.Iterations)
	assert.Equal(t, 3, s.Remaining)

	total := &Stats{FilesRepaired: 2, CostUnits: 0.5}
	total.Merge(s)
	assert.Equal(t, 3, total.FilesRepaired)
	assert.InDelta(t, 0.6, total.CostUnits, 1e-9)
	assert.Equal(t, 1, total.Violations)
}

func TestRunPhaseContextCancellation(t *testing.T) {
	a := filepath.Join("/p", "a.go")
	src := &scopedSource{queues: map[string][][]diagnostics.Diagnostic{
		a: {manyDiags(a, 1)},
	}}
	orc := &scriptedOracle{script: []func(string, oracle.InvokeOptions) (*oracle.Result, error){
		func(string, oracle.InvokeOptions) (*oracle.Result, error) {
			time.Sleep(10 * time.Millisecond)
			return &oracle.Result{}, nil
		},
	}}
	orch := newTestOrchestrator(t, orc, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := orch.RunPhase(ctx, diagnostics.PhaseBaseline, []string{a}, depgraph.NewFromMap(nil), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

var _ diagnostics.Source = (*scopedSource)(nil)
