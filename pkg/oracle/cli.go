package oracle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/clemens-mw/agentic-typer/pkg/logging"
)

// CLI drives a headless coding agent as a subprocess. The instruction goes
// to the agent's stdin; the agent reports its activity as a stream of JSON
// events on stdout, one object per line:
//
//	{"type":"tool_use","id":"t1","name":"edit_file","input":{...}}
//	{"type":"tool_result","tool_use_id":"t1"}
//	{"type":"result","subtype":"success","result":"...","session_id":"...",
//	 "total_cost_usd":0.03,"num_turns":4}
//
// Edit hooks fire on the tool_use (pre) and matching tool_result (post)
// events, which is the only window in which the agent runtime lets us
// observe an edit.
type CLI struct {
	command []string
	log     *logging.Logger
}

// NewCLI creates an adapter running command for every invocation.
func NewCLI(command []string, log *logging.Logger) *CLI {
	return &CLI{command: command, log: log}
}

type agentEvent struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	ToolUseID string          `json:"tool_use_id"`
	Result    string          `json:"result"`
	SessionID string          `json:"session_id"`
	CostUSD   float64         `json:"total_cost_usd"`
	NumTurns  int             `json:"num_turns"`
	Message   string          `json:"message"`
}

// Invoke runs one agent turn and returns its result summary. Capacity
// conditions reported by the agent map onto the package error taxonomy.
func (c *CLI) Invoke(ctx context.Context, instruction string, opts InvokeOptions) (*Result, error) {
	args := append([]string(nil), c.command[1:]...)
	if opts.ResumeHandle != "" {
		args = append(args, "--resume", opts.ResumeHandle)
	}
	if !opts.AllowEdits {
		args = append(args, "--read-only")
	}

	cmd := exec.CommandContext(ctx, c.command[0], args...)
	cmd.Dir = opts.WorkingDir
	cmd.Stdin = strings.NewReader(instruction)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("oracle stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting oracle %q: %w", c.command[0], err)
	}

	result, streamErr := c.consumeStream(stdout, opts)
	waitErr := cmd.Wait()

	if streamErr != nil {
		return nil, streamErr
	}
	if result == nil {
		err := classifyFailure(stderr.String())
		if err != nil {
			return nil, err
		}
		if waitErr != nil {
			return nil, fmt.Errorf("oracle exited without a result: %w\n%s", waitErr, stderr.String())
		}
		return nil, fmt.Errorf("oracle produced no result event")
	}
	return result, nil
}

// consumeStream walks the event stream, firing edit hooks and collecting the
// final result. Pre-edit hooks fire on tool_use, post-edit hooks on the
// matching tool_result, matched by tool-use id.
func (c *CLI) consumeStream(stdout io.Reader, opts InvokeOptions) (*Result, error) {
	pendingEdits := make(map[string]string)
	var result *Result

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev agentEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			c.log.Logf("skipping malformed oracle event: %v", err)
			continue
		}

		switch ev.Type {
		case "tool_use":
			if !isEditTool(ev.Name) {
				continue
			}
			path, err := filePathFromToolInput(ev.Name, ev.Input)
			if err != nil {
				return nil, err
			}
			pendingEdits[ev.ID] = path
			if opts.OnPreEdit != nil {
				if err := opts.OnPreEdit(path); err != nil {
					return nil, err
				}
			}
		case "tool_result":
			path, ok := pendingEdits[ev.ToolUseID]
			if !ok {
				continue
			}
			delete(pendingEdits, ev.ToolUseID)
			if opts.OnPostEdit != nil {
				if err := opts.OnPostEdit(path); err != nil {
					return nil, err
				}
			}
		case "result":
			if ev.Subtype != "success" {
				return nil, resultError(ev)
			}
			result = &Result{
				Text:          ev.Result,
				SessionHandle: ev.SessionID,
				CostUnits:     ev.CostUSD,
				Turns:         ev.NumTurns,
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading oracle stream: %w", err)
	}
	return result, nil
}

// resultError maps an error result event onto the package taxonomy.
func resultError(ev agentEvent) error {
	msg := ev.Message
	if msg == "" {
		msg = ev.Subtype
	}
	switch ev.Subtype {
	case "error_rate_limited":
		return &RateLimitedError{RetryAfter: 30 * time.Second}
	case "error_quota_exceeded", "error_session_limit":
		return &QuotaExhaustedError{Reason: msg}
	case "error_input_too_large":
		return &InputTooLargeError{Reason: msg}
	default:
		return fmt.Errorf("oracle reported failure: %s", msg)
	}
}

// classifyFailure inspects stderr from an agent that died without a result
// event. Pattern matching here is a fallback for agents that print capacity
// errors instead of emitting them as events.
func classifyFailure(stderr string) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return &RateLimitedError{}
	case strings.Contains(lower, "quota") || strings.Contains(lower, "session limit"):
		return &QuotaExhaustedError{Reason: strings.TrimSpace(stderr)}
	case strings.Contains(lower, "too large") || strings.Contains(lower, "too long") ||
		strings.Contains(lower, "context length"):
		return &InputTooLargeError{Reason: strings.TrimSpace(stderr)}
	}
	return nil
}
