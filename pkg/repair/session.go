package repair

import "github.com/clemens-mw/agentic-typer/pkg/diagnostics"

// Session carries the mutable state of one repair scope. The oracle session
// handle is an explicit optional token, not hidden client state: empty means
// the next invocation starts a fresh conversation.
type Session struct {
	Handle     string
	Iterations int
	CostUnits  float64
	Turns      int
	Diags      []diagnostics.Diagnostic
}

// recordResult folds one oracle turn into the session counters.
func (s *Session) recordResult(handle string, cost float64, turns int) {
	s.Iterations++
	s.Handle = handle
	s.CostUnits += cost
	s.Turns += turns
}

// recycleHandle discards the conversation after every fifth iteration so
// context growth and per-turn cost stay bounded.
func (s *Session) recycleHandle() {
	if s.Iterations > 0 && s.Iterations%5 == 0 {
		s.Handle = ""
	}
}
