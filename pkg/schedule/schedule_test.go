package schedule

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clemens-mw/agentic-typer/pkg/depgraph"
)

func TestShiftPrefersFewestUnresolvedDependencies(t *testing.T) {
	// c imports b imports a: repair order must be a, b, c.
	graph := depgraph.NewFromMap(map[string][]string{
		"a.go": {},
		"b.go": {"a.go"},
		"c.go": {"b.go"},
	})
	sched := New([]string{"c.go", "a.go", "b.go"}, graph)

	first, err := sched.Shift()
	require.NoError(t, err)
	assert.Equal(t, "a.go", first)
	sched.MarkProcessed(first)

	second, err := sched.Shift()
	require.NoError(t, err)
	assert.Equal(t, "b.go", second)
	sched.MarkProcessed(second)

	third, err := sched.Shift()
	require.NoError(t, err)
	assert.Equal(t, "c.go", third)
}

func TestShiftCountsInProgressAsUnresolved(t *testing.T) {
	graph := depgraph.NewFromMap(map[string][]string{
		"a.go": {},
		"b.go": {"a.go"},
		"c.go": {},
	})
	sched := New([]string{"a.go", "b.go", "c.go"}, graph)

	first, err := sched.Shift()
	require.NoError(t, err)
	assert.Equal(t, "a.go", first)

	// a.go is still in progress, so b.go has one unresolved dependency and
	// c.go must win.
	second, err := sched.Shift()
	require.NoError(t, err)
	assert.Equal(t, "c.go", second)
}

func TestShiftTieBreaksLexicographically(t *testing.T) {
	graph := depgraph.NewFromMap(map[string][]string{
		"z.go": {},
		"m.go": {},
		"a.go": {},
	})
	sched := New([]string{"z.go", "m.go", "a.go"}, graph)

	for _, want := range []string{"a.go", "m.go", "z.go"} {
		got, err := sched.Shift()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		sched.MarkProcessed(got)
	}
}

func TestShiftExhaustion(t *testing.T) {
	files := []string{"a.go", "b.go", "c.go", "d.go"}
	sched := New(files, depgraph.NewFromMap(map[string][]string{}))

	seen := make(map[string]bool)
	for range files {
		f, err := sched.Shift()
		require.NoError(t, err)
		assert.False(t, seen[f], "file %s returned twice", f)
		seen[f] = true
	}
	assert.Len(t, seen, len(files))

	_, err := sched.Shift()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCyclicImportsDoNotDeadlock(t *testing.T) {
	graph := depgraph.NewFromMap(map[string][]string{
		"a.go": {"b.go"},
		"b.go": {"a.go"},
	})
	sched := New([]string{"a.go", "b.go"}, graph)

	first, err := sched.Shift()
	require.NoError(t, err)
	assert.Equal(t, "a.go", first) // both have 1 unresolved dep, lexicographic wins
	sched.MarkProcessed(first)

	second, err := sched.Shift()
	require.NoError(t, err)
	assert.Equal(t, "b.go", second)
}

func TestHasUnprocessed(t *testing.T) {
	sched := New([]string{"a.go"}, depgraph.NewFromMap(map[string][]string{}))
	assert.True(t, sched.HasUnprocessed())

	f, err := sched.Shift()
	require.NoError(t, err)
	assert.False(t, sched.HasUnprocessed())
	sched.MarkProcessed(f)
	assert.False(t, sched.HasUnprocessed())
}

func TestConcurrentShiftClaimsEachFileOnce(t *testing.T) {
	var files []string
	adjacency := make(map[string][]string)
	for _, name := range []string{"a.go", "b.go", "c.go", "d.go", "e.go", "f.go", "g.go", "h.go"} {
		files = append(files, name)
		adjacency[name] = nil
	}
	sched := New(files, depgraph.NewFromMap(adjacency))

	var mu sync.Mutex
	claimed := make(map[string]int)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				f, err := sched.Shift()
				if err != nil {
					return
				}
				mu.Lock()
				claimed[f]++
				mu.Unlock()
				sched.MarkProcessed(f)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, len(files))
	for f, n := range claimed {
		assert.Equal(t, 1, n, "file %s claimed %d times", f, n)
	}
}
