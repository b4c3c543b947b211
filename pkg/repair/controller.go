package repair

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clemens-mw/agentic-typer/pkg/console"
	"github.com/clemens-mw/agentic-typer/pkg/diagnostics"
	"github.com/clemens-mw/agentic-typer/pkg/logging"
	"github.com/clemens-mw/agentic-typer/pkg/oracle"
	"github.com/clemens-mw/agentic-typer/pkg/verify"
)

// ScopeResult reports the outcome of one repair scope.
type ScopeResult struct {
	Scope      diagnostics.Scope
	Repaired   bool
	Suppressed bool
	Remaining  int
	Iterations int
	CostUnits  float64
	Turns      int
	Violations int
}

// Controller runs bounded rounds of {invoke oracle, re-check diagnostics}
// for a single scope. Iterations are strictly sequential: each re-check
// happens only after its invocation resolves.
type Controller struct {
	oracle  oracle.Oracle
	agg     *diagnostics.Aggregator
	gate    *verify.Gate
	log     *logging.Logger
	console *console.Printer
	dir     string
	retries int
	// sleep is replaceable so tests do not wait out rate-limit backoffs.
	sleep func(time.Duration)
}

// NewController wires a controller for one scope. The gate must be dedicated
// to this controller; its correction directives feed this conversation only.
func NewController(orc oracle.Oracle, agg *diagnostics.Aggregator, gate *verify.Gate,
	log *logging.Logger, printer *console.Printer, dir string, retries int) *Controller {
	return &Controller{
		oracle:  orc,
		agg:     agg,
		gate:    gate,
		log:     log,
		console: printer,
		dir:     dir,
		retries: retries,
		sleep:   time.Sleep,
	}
}

// Run drives the scope to zero diagnostics or to its iteration cap. A cap
// reached with diagnostics remaining is a reported, non-fatal failure (the
// returned error stays nil); only run-fatal conditions surface as errors.
func (c *Controller) Run(ctx context.Context, scope diagnostics.Scope) (*ScopeResult, error) {
	diags, err := c.agg.Errors(ctx, scope)
	if err != nil {
		return nil, err
	}
	result := &ScopeResult{Scope: scope}
	if len(diags) == 0 {
		result.Repaired = true
		return result, nil
	}

	limit := iterationCap(len(diags))
	sess := &Session{Diags: diags}
	c.log.Logf("scope %s: %d initial diagnostics, iteration cap %d", scope, len(diags), limit)

	for sess.Iterations < limit {
		directives := c.gate.DrainDirectives()
		if len(directives) > 0 {
			c.console.Warn("✘ %s: %d behavior correction(s) queued for the oracle", scope, len(directives))
			for _, d := range directives {
				c.console.Diff(d)
			}
		}
		instruction := buildInstruction(scope, sess.Diags, directives)
		res, err := c.invoke(ctx, instruction, sess)
		if err != nil {
			if oracle.IsInputTooLarge(err) && scope.File != "" {
				return c.suppressScope(scope, sess, result)
			}
			// Quota exhaustion and infrastructure faults are fatal to the
			// run and propagate immediately.
			c.finish(result, sess)
			return result, err
		}
		sess.recordResult(res.SessionHandle, res.CostUnits, res.Turns)

		diags, err = c.agg.Errors(ctx, scope)
		if err != nil {
			c.finish(result, sess)
			return result, err
		}
		sess.Diags = diags
		if len(diags) == 0 {
			c.finish(result, sess)
			result.Repaired = true
			c.console.Success("✔ %s clean after %d iteration(s)", scope, sess.Iterations)
			return result, nil
		}
		c.log.Logf("scope %s: %d diagnostics remain after iteration %d", scope, len(diags), sess.Iterations)
		// A queued correction refers to this conversation's own edits and
		// must reach the same conversation, so the recycle waits for it.
		if c.gate.Pending() == 0 {
			sess.recycleHandle()
		}
	}

	c.finish(result, sess)
	result.Remaining = len(sess.Diags)
	c.log.LogScopeResult(scope.String(), result.Remaining, "iteration cap reached")
	c.console.Warn("✘ %s: %d diagnostic(s) remain after %d iterations", scope, result.Remaining, sess.Iterations)
	return result, nil
}

// invoke performs one oracle turn with bounded same-session retries for
// transient capacity errors. A rate-limited conversation resumes with a bare
// continue instruction rather than repeating the full prompt.
func (c *Controller) invoke(ctx context.Context, instruction string, sess *Session) (*oracle.Result, error) {
	opts := oracle.InvokeOptions{
		WorkingDir:   c.dir,
		AllowEdits:   true,
		ResumeHandle: sess.Handle,
		OnPreEdit:    c.gate.PreEdit,
		OnPostEdit:   c.gate.PostEdit,
	}
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		res, err := c.oracle.Invoke(ctx, instruction, opts)
		if err == nil {
			return res, nil
		}
		if !oracle.IsRateLimited(err) {
			return nil, err
		}
		lastErr = err
		var rl *oracle.RateLimitedError
		wait := time.Duration(5*(attempt+1)) * time.Second
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			wait = rl.RetryAfter
		}
		c.log.Logf("oracle rate limited, waiting %s before continuing (attempt %d/%d)", wait, attempt+1, c.retries+1)
		c.sleep(wait)
		if sess.Handle != "" {
			// Resume the interrupted conversation instead of repeating the
			// full prompt; the oracle already has the task in context.
			instruction = continueInstruction
		}
		opts.ResumeHandle = sess.Handle
	}
	return nil, fmt.Errorf("oracle still rate limited after %d attempts: %w", c.retries+1, lastErr)
}

// suppressScope is the input-too-large fallback for single-file scopes: no
// oracle retry, just a mechanical file-level suppression so the run keeps
// moving.
func (c *Controller) suppressScope(scope diagnostics.Scope, sess *Session, result *ScopeResult) (*ScopeResult, error) {
	c.log.Logf("scope %s exceeds oracle input limits, falling back to suppression", scope)
	if err := suppressFile(scope.File); err != nil {
		c.finish(result, sess)
		return result, err
	}
	c.finish(result, sess)
	result.Suppressed = true
	c.console.Warn("✘ %s suppressed: too large for the oracle", scope)
	return result, nil
}

func (c *Controller) finish(result *ScopeResult, sess *Session) {
	result.Iterations = sess.Iterations
	result.CostUnits = sess.CostUnits
	result.Turns = sess.Turns
	result.Violations = c.gate.Violations()
}
