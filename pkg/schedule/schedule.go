package schedule

import (
	"errors"
	"sort"
	"sync"

	"github.com/clemens-mw/agentic-typer/pkg/depgraph"
)

// ErrExhausted is returned by Shift once no unprocessed files remain.
var ErrExhausted = errors.New("no unprocessed files remain")

// Schedule partitions a fixed file list into three states: unprocessed,
// in progress, and done (removal from both sets). A file occupies exactly
// one state at any instant, and every transition is atomic with respect to
// concurrent workers, so each file is claimed by exactly one worker.
type Schedule struct {
	mu          sync.Mutex
	graph       *depgraph.Graph
	unprocessed map[string]bool
	inProgress  map[string]bool
}

// New builds a schedule over files, using graph to bias selection toward
// files whose dependencies are already done.
func New(files []string, graph *depgraph.Graph) *Schedule {
	unprocessed := make(map[string]bool, len(files))
	for _, f := range files {
		unprocessed[f] = true
	}
	return &Schedule{
		graph:       graph,
		unprocessed: unprocessed,
		inProgress:  make(map[string]bool),
	}
}

// Shift claims the unprocessed file with the fewest unresolved dependencies
// and moves it to in-progress. A dependency counts as unresolved while it is
// still unprocessed or in progress. Ties break lexicographically by path so
// runs are reproducible; cyclic import groups degrade to that order among
// themselves without ever deadlocking the scheduler.
func (s *Schedule) Shift() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.unprocessed) == 0 {
		return "", ErrExhausted
	}

	candidates := make([]string, 0, len(s.unprocessed))
	for f := range s.unprocessed {
		candidates = append(candidates, f)
	}
	sort.Strings(candidates)

	best := candidates[0]
	bestCount := s.unresolvedCount(best)
	for _, f := range candidates[1:] {
		if count := s.unresolvedCount(f); count < bestCount {
			best, bestCount = f, count
		}
	}

	delete(s.unprocessed, best)
	s.inProgress[best] = true
	return best, nil
}

// MarkProcessed moves a file to done regardless of its current state.
func (s *Schedule) MarkProcessed(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unprocessed, file)
	delete(s.inProgress, file)
}

// HasUnprocessed reports whether any file is still waiting to be claimed.
func (s *Schedule) HasUnprocessed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unprocessed) > 0
}

// unresolvedCount counts dependencies of file still unprocessed or in
// progress. Files absent from the graph count as having no dependencies.
func (s *Schedule) unresolvedCount(file string) int {
	deps, err := s.graph.Get(file)
	if err != nil {
		return 0
	}
	count := 0
	for _, dep := range deps {
		if s.unprocessed[dep] || s.inProgress[dep] {
			count++
		}
	}
	return count
}
