package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EditHook is invoked by the oracle runtime around every file-modifying
// action it takes. A returned error aborts the invocation.
type EditHook func(path string) error

// InvokeOptions configures a single oracle turn.
type InvokeOptions struct {
	WorkingDir string
	AllowEdits bool
	// ResumeHandle continues the prior conversation when non-empty. An empty
	// handle starts a fresh conversation.
	ResumeHandle string
	OnPreEdit    EditHook
	OnPostEdit   EditHook
}

// Result summarizes one completed oracle turn.
type Result struct {
	Text          string
	SessionHandle string
	CostUnits     float64
	Turns         int
}

// Oracle is the external agent that performs actual file edits in response
// to natural-language instructions. Implementations may return
// RateLimitedError, QuotaExhaustedError, or InputTooLargeError; anything
// else is an infrastructure failure.
type Oracle interface {
	Invoke(ctx context.Context, instruction string, opts InvokeOptions) (*Result, error)
}

// RateLimitedError signals a transient capacity limit. Retryable by
// resuming the same session with a continue instruction.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("oracle rate limited, retry after %s", e.RetryAfter)
	}
	return "oracle rate limited"
}

// QuotaExhaustedError signals that the oracle's session or spending quota is
// gone. Fatal to the whole run, not just the current scope.
type QuotaExhaustedError struct {
	Reason string
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("oracle quota exhausted: %s", e.Reason)
}

// InputTooLargeError signals that the instruction exceeded the oracle's
// input limits. On a single-file scope the caller falls back to suppression
// instead of retrying.
type InputTooLargeError struct {
	Reason string
}

func (e *InputTooLargeError) Error() string {
	return fmt.Sprintf("oracle input too large: %s", e.Reason)
}

// IsRateLimited reports whether err is a rate-limit condition.
func IsRateLimited(err error) bool {
	var target *RateLimitedError
	return errors.As(err, &target)
}

// IsQuotaExhausted reports whether err is a fatal quota condition.
func IsQuotaExhausted(err error) bool {
	var target *QuotaExhaustedError
	return errors.As(err, &target)
}

// IsInputTooLarge reports whether err is an input-size-limit condition.
func IsInputTooLarge(err error) bool {
	var target *InputTooLargeError
	return errors.As(err, &target)
}
