package verify

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSnapshotMissing reports a post-edit observation for a file that was
// never observed pre-edit. That is a programming-invariant violation, not a
// recoverable condition: continuing would compare against nothing.
var ErrSnapshotMissing = errors.New("no pre-edit snapshot for file")

// SnapshotTable maps file paths to their canonical lowered form as of the
// start of the run. It is owned by the run value and passed explicitly to
// every gate, so concurrent or sequential runs never leak state into each
// other. Entries are created lazily and never overwritten: the snapshot
// always reflects the original state, not the state before the most recent
// edit. A file whose pre-edit lowering failed is recorded as skipped so
// later observations know to stand down rather than abort.
type SnapshotTable struct {
	mu    sync.Mutex
	forms map[string]string
	skip  map[string]bool
}

// NewSnapshotTable creates an empty table for one run.
func NewSnapshotTable() *SnapshotTable {
	return &SnapshotTable{
		forms: make(map[string]string),
		skip:  make(map[string]bool),
	}
}

// Store records the original lowered form for file. Idempotent: later calls
// for the same file are no-ops.
func (t *SnapshotTable) Store(file, lowered string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.forms[file]; ok {
		return
	}
	delete(t.skip, file)
	t.forms[file] = lowered
}

// MarkSkipped records that the pre-edit observation for file failed and the
// file is exempt from verification for the rest of the run.
func (t *SnapshotTable) MarkSkipped(file string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.forms[file]; ok {
		return
	}
	t.skip[file] = true
}

// Observed reports whether file has been seen pre-edit at all.
func (t *SnapshotTable) Observed(file string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.skip[file] || hasKey(t.forms, file)
}

// Get returns the stored lowering. skipped is true when the pre-edit
// observation failed; ErrSnapshotMissing when the file was never observed.
func (t *SnapshotTable) Get(file string) (lowered string, skipped bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.skip[file] {
		return "", true, nil
	}
	if form, ok := t.forms[file]; ok {
		return form, false, nil
	}
	return "", false, fmt.Errorf("%w: %s", ErrSnapshotMissing, file)
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}
