package sfmcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sfmcp/snowflake-mcp/internal/classify"
	"github.com/sfmcp/snowflake-mcp/internal/hooks"
	"github.com/sfmcp/snowflake-mcp/internal/policy"
	"github.com/sfmcp/snowflake-mcp/internal/session"
)

// Query executes the full statement pipeline and returns only QueryOutput.
// All errors (permission denials, Snowflake errors, connection failures,
// Go errors) are converted to output.Error. The error message is then
// evaluated against error_prompts patterns — any matching prompt messages
// are appended. Callers only check output.Error, never a Go error.
func (p *SnowflakeMcp) Query(ctx context.Context, input QueryInput) *QueryOutput {
	return p.run(ctx, input.SQL, classify.Classify(input.SQL))
}

// run is the shared pipeline behind every tool. Raw SQL arrives with the
// classifier's verdict; SQL generated by the object and semantic builders
// arrives with its kind known by construction, so grammar coverage gaps
// for newer syntax cannot misroute it to unknown. Builders that embed raw
// clause text classify those fragments before settling on a kind (see
// semanticQueryKind).
func (p *SnowflakeMcp) run(ctx context.Context, sql string, kind classify.Kind) *QueryOutput {
	startTime := time.Now()

	// 1. Acquire semaphore (respects context cancellation to prevent deadlock)
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return p.handleError(fmt.Errorf("failed to acquire query slot: all %d slots are in use, context cancelled while waiting: %w", cap(p.semaphore), ctx.Err()))
	}
	defer func() { <-p.semaphore }()

	// 2. Check SQL length before any parsing
	if len(sql) > p.config.Query.MaxSQLLength {
		return p.handleError(fmt.Errorf("SQL statement too long: %d bytes exceeds maximum of %d bytes", len(sql), p.config.Query.MaxSQLLength))
	}

	// 3. Gate. Denials never reach the backend.
	decision := policy.Authorize(p.policy, kind)
	p.sink.Classified(kind, decision.Allowed)
	if !decision.Allowed {
		p.sink.Denied(kind, decision.Reason)
		out := p.handleError(&permissionDeniedError{reason: decision.Reason})
		out.Kind = string(kind)
		return out
	}

	// 3a. Before hooks. A hook rewrite invalidates the kind established
	// above, so the modified statement is reclassified and gated again.
	if p.hooks != nil {
		modified, err := p.hooks.RunBeforeStatement(ctx, sql, string(kind))
		if err != nil {
			out := p.handleError(err)
			out.Kind = string(kind)
			return out
		}
		if modified != sql {
			sql = modified
			kind = classify.Classify(sql)
			decision = policy.Authorize(p.policy, kind)
			p.sink.Classified(kind, decision.Allowed)
			if !decision.Allowed {
				p.sink.Denied(kind, decision.Reason)
				out := p.handleError(&permissionDeniedError{reason: decision.Reason})
				out.Kind = string(kind)
				return out
			}
		}
	}

	// 4. Determine timeout
	queryCtx, cancel := context.WithTimeout(ctx, p.timeoutMgr.Resolve(sql, kind))
	defer cancel()

	// 5. Execute (session layer handles retry and re-auth)
	result, err := p.exec.Execute(queryCtx, sql)
	if err != nil {
		out := p.handleError(err)
		out.Kind = string(kind)
		return out
	}

	output := &QueryOutput{
		Columns: result.Columns,
		Rows:    result.Rows,
		Kind:    string(kind),
	}

	// 6. After hooks may rewrite or reject the rows. Sanitization runs
	// afterwards so its guarantees also cover hook-modified rows.
	if p.hooks != nil && p.hooks.HasAfterStatementHooks() {
		rowsJSON, err := json.Marshal(output.Rows)
		if err != nil {
			return p.handleError(err)
		}
		modified, err := p.hooks.RunAfterStatement(ctx, sql, string(kind), output.Columns, rowsJSON)
		if err != nil {
			out := p.handleError(err)
			out.Kind = string(kind)
			return out
		}
		var rows [][]any
		if err := json.Unmarshal(modified, &rows); err != nil {
			out := p.handleError(fmt.Errorf("after_statement hook returned malformed rows: %w", err))
			out.Kind = string(kind)
			return out
		}
		output.Rows = rows
	}

	// 7. Apply sanitization (recursive into VARIANT maps/arrays)
	output.Rows = p.sanitizer.SanitizeRows(output.Rows)

	// 8. Apply max result length truncation
	p.truncateIfNeeded(output)

	// 9. Log successful execution
	logEvent := p.logger.Info().
		Str("sql", truncateForLog(sql, 200)).
		Str("kind", string(kind)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", len(output.Rows))
	if p.sanitizer.HasRules() {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("statement executed")

	return output
}

// permissionDeniedError marks a gate denial so the tool surface can map
// it onto a 403.
type permissionDeniedError struct {
	reason string
}

func (e *permissionDeniedError) Error() string {
	return "permission denied: " + e.reason
}

// statusFor maps an error onto the HTTP-style status carried on tool
// errors. Policy and hook denials read as 403, Snowflake and connection
// failures as 500, anything else as a rejected request.
func statusFor(err error) int {
	var denied *permissionDeniedError
	var rejected *hooks.RejectionError
	if errors.As(err, &denied) || errors.As(err, &rejected) {
		return 403
	}
	var backend *session.BackendError
	var conn *session.ConnectionError
	if errors.As(err, &backend) || errors.As(err, &conn) {
		return 500
	}
	return 400
}

// handleError converts any error into a QueryOutput with error message.
// The error message is evaluated against error_prompts — matching prompt
// messages are appended.
func (p *SnowflakeMcp) handleError(err error) *QueryOutput {
	errMsg := err.Error()
	prompt := p.errPrompts.Match(errMsg)
	patterns := p.errPrompts.MatchedPatterns(errMsg)

	logEvent := p.logger.Error().Err(err)
	if len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("statement error")

	if prompt != "" {
		errMsg = errMsg + "\n\n" + prompt
	}
	return &QueryOutput{Error: errMsg, StatusCode: statusFor(err)}
}

// truncateIfNeeded truncates output rows if they exceed MaxResultLength
// (in characters).
func (p *SnowflakeMcp) truncateIfNeeded(output *QueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= p.config.Query.MaxResultLength {
		return
	}
	runes := []rune(jsonStr)
	truncated := string(runes[:p.config.Query.MaxResultLength])
	output.Rows = nil
	output.Error = truncated + "...[truncated] Result is too long! Add limits in your query!"
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
