package diagnostics

import (
	"context"
	"fmt"
)

// Severity levels as reported by the underlying checkers.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Phase identifies which repair pass is running. The baseline phase only
// consults the type checker; lint findings about loose constructs are only
// meaningful once the type-check baseline is clean.
type Phase int

const (
	PhaseBaseline Phase = iota
	PhaseFullCoverage
)

func (p Phase) String() string {
	if p == PhaseFullCoverage {
		return "full-coverage"
	}
	return "baseline"
}

// Diagnostic is a single structured finding from a checker. Line and Col are
// 1-based. Code is checker-specific and may be empty.
type Diagnostic struct {
	Origin      string
	File        string
	Line        int
	Col         int
	Message     string
	Code        string
	Severity    string
	Unnecessary bool
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: [%s] %s", d.File, d.Line, d.Col, d.Origin, d.Message)
}

// Scope is the unit of repair work: the whole project, or one file of it.
type Scope struct {
	Dir   string
	File  string // absolute path; empty means whole project
	Phase Phase
}

func (s Scope) String() string {
	if s.File == "" {
		return "project"
	}
	return s.File
}

// Source produces diagnostics for a scope.
type Source interface {
	Name() string
	Query(ctx context.Context, scope Scope) ([]Diagnostic, error)
}

// Aggregator merges the type checker's and the linter's findings into one
// list. The two diagnostic namespaces are disjoint, so no cross-source
// deduplication happens.
type Aggregator struct {
	typeCheck Source
	lint      Source
}

// NewAggregator builds an aggregator. lint may be nil when the project has
// no lint source configured.
func NewAggregator(typeCheck, lint Source) *Aggregator {
	return &Aggregator{typeCheck: typeCheck, lint: lint}
}

// Errors returns every error-severity diagnostic for the scope. Findings the
// checker marks as merely unnecessary are dropped; the repair loop must never
// iterate on those. An empty result is the success condition for the scope.
func (a *Aggregator) Errors(ctx context.Context, scope Scope) ([]Diagnostic, error) {
	diags, err := a.typeCheck.Query(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("type check failed for %s: %w", scope, err)
	}
	if a.lint != nil && scope.Phase == PhaseFullCoverage {
		lintDiags, err := a.lint.Query(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("lint failed for %s: %w", scope, err)
		}
		diags = append(diags, lintDiags...)
	}
	out := diags[:0]
	for _, d := range diags {
		if d.Severity != SeverityError || d.Unnecessary {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
