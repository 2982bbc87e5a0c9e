// Package hooks runs operator-supplied commands around statement
// execution. Hooks act as external guardrails: a before hook can reject
// or rewrite a statement, an after hook can reject or rewrite result
// rows before they reach the agent.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"time"

	"github.com/rs/zerolog"
)

// Config is the hook runner's own config type.
type Config struct {
	DefaultTimeout  time.Duration
	BeforeStatement []HookEntry
	AfterStatement  []HookEntry
}

// HookEntry defines a single command-based hook. Pattern is matched
// against the SQL text; only matching statements invoke the command.
type HookEntry struct {
	Pattern string
	Command string
	Args    []string
	Timeout time.Duration // 0 means use DefaultTimeout
}

// StatementPayload is the JSON document written to a hook's stdin. Rows
// is only populated for after hooks.
type StatementPayload struct {
	SQL     string          `json:"sql"`
	Kind    string          `json:"kind"`
	Columns []string        `json:"columns,omitempty"`
	Rows    json.RawMessage `json:"rows,omitempty"`
}

// BeforeStatementResult is the JSON response from a before_statement hook.
type BeforeStatementResult struct {
	Accept       bool   `json:"accept"`
	ModifiedSQL  string `json:"modified_sql,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RejectionError means a hook examined the statement or its result and
// said no. It is a deliberate guardrail verdict, distinct from a hook
// that crashed or timed out.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string { return e.Message }

// AfterStatementResult is the JSON response from an after_statement hook.
type AfterStatementResult struct {
	Accept       bool            `json:"accept"`
	ModifiedRows json.RawMessage `json:"modified_rows,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

type compiledHook struct {
	pattern *regexp.Regexp
	command string
	args    []string
	timeout time.Duration
}

// Runner executes command-based hooks.
type Runner struct {
	beforeStatement []compiledHook
	afterStatement  []compiledHook
	defaultTimeout  time.Duration
	logger          zerolog.Logger
}

// NewRunner creates a new Runner. Panics on invalid regex or invalid config.
func NewRunner(config Config, logger zerolog.Logger) *Runner {
	if config.DefaultTimeout == 0 && (len(config.BeforeStatement) > 0 || len(config.AfterStatement) > 0) {
		panic("hooks: default_hook_timeout_seconds must be > 0 when hooks are configured")
	}

	compile := func(entries []HookEntry) []compiledHook {
		compiled := make([]compiledHook, len(entries))
		for i, e := range entries {
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				panic(fmt.Sprintf("hooks: invalid regex pattern %q: %v", e.Pattern, err))
			}
			timeout := e.Timeout
			if timeout == 0 {
				timeout = config.DefaultTimeout
			}
			compiled[i] = compiledHook{
				pattern: re,
				command: e.Command,
				args:    e.Args,
				timeout: timeout,
			}
		}
		return compiled
	}

	return &Runner{
		beforeStatement: compile(config.BeforeStatement),
		afterStatement:  compile(config.AfterStatement),
		defaultTimeout:  config.DefaultTimeout,
		logger:          logger,
	}
}

// HasAfterStatementHooks returns true if any after hooks are configured.
func (r *Runner) HasAfterStatementHooks() bool {
	return len(r.afterStatement) > 0
}

// RunBeforeStatement runs matching before hooks as a middleware chain and
// returns the (possibly rewritten) SQL.
func (r *Runner) RunBeforeStatement(ctx context.Context, sql, kind string) (string, error) {
	current := sql
	for _, hook := range r.beforeStatement {
		if !hook.pattern.MatchString(current) {
			continue
		}
		payload, err := json.Marshal(StatementPayload{SQL: current, Kind: kind})
		if err != nil {
			return "", fmt.Errorf("before_statement hook payload error: %w", err)
		}
		output, err := r.executeHook(ctx, hook, payload)
		if err != nil {
			return "", fmt.Errorf("before_statement hook error: %w", err)
		}

		var result BeforeStatementResult
		if err := json.Unmarshal(output, &result); err != nil {
			return "", fmt.Errorf("before_statement hook returned unparseable response (command: %s): %w", hook.command, err)
		}

		if !result.Accept {
			errMsg := "statement rejected by hook"
			if result.ErrorMessage != "" {
				errMsg = result.ErrorMessage
			}
			return "", &RejectionError{Message: errMsg}
		}
		if result.ModifiedSQL != "" {
			current = result.ModifiedSQL
		}
	}
	return current, nil
}

// RunAfterStatement runs matching after hooks as a middleware chain over
// the result rows. Matching is on the SQL text, not the result, so hooks
// fire deterministically regardless of what the statement returned.
func (r *Runner) RunAfterStatement(ctx context.Context, sql, kind string, columns []string, rowsJSON []byte) ([]byte, error) {
	current := rowsJSON
	for _, hook := range r.afterStatement {
		if !hook.pattern.MatchString(sql) {
			continue
		}
		payload, err := json.Marshal(StatementPayload{SQL: sql, Kind: kind, Columns: columns, Rows: current})
		if err != nil {
			return nil, fmt.Errorf("after_statement hook payload error: %w", err)
		}
		output, err := r.executeHook(ctx, hook, payload)
		if err != nil {
			return nil, fmt.Errorf("after_statement hook error: %w", err)
		}

		var result AfterStatementResult
		if err := json.Unmarshal(output, &result); err != nil {
			return nil, fmt.Errorf("after_statement hook returned unparseable response (command: %s): %w", hook.command, err)
		}

		if !result.Accept {
			errMsg := "result rejected by hook"
			if result.ErrorMessage != "" {
				errMsg = result.ErrorMessage
			}
			return nil, &RejectionError{Message: errMsg}
		}
		if len(result.ModifiedRows) > 0 {
			current = result.ModifiedRows
		}
	}
	return current, nil
}

func (r *Runner) executeHook(ctx context.Context, hook compiledHook, input []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, hook.timeout)
	defer cancel()

	// Command and args are passed separately — no shell interpretation.
	// exec.Command(name, args...) executes the binary directly.
	cmd := exec.CommandContext(ctx, hook.command, hook.args...)
	cmd.Stdin = bytes.NewReader(input)

	// Capture stderr separately for logging. Stdout is the JSON response.
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		// Log stderr for debugging — stderr may contain diagnostic info from the hook.
		if stderr.Len() > 0 {
			r.logger.Warn().Str("command", hook.command).Str("stderr", stderr.String()).Msg("hook stderr output")
		}
		// Hooks are guardrails — any failure stops the pipeline.
		// This covers: non-zero exit code, crash, timeout (context deadline exceeded).
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("hook timed out: %s", hook.command)
		}
		return nil, fmt.Errorf("hook failed (command: %s): %w", hook.command, err)
	}
	// Log stderr even on success — hooks may emit warnings or debug info.
	if stderr.Len() > 0 {
		r.logger.Debug().Str("command", hook.command).Str("stderr", stderr.String()).Msg("hook stderr output")
	}
	return output, nil
}
