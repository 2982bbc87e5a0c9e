package session

import "fmt"

// ConnectionError means the gateway could not reach Snowflake after
// exhausting its retry budget. The statement may be resubmitted as-is.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// BackendError is a definitive rejection from Snowflake itself: SQL
// compilation errors, missing objects, insufficient privileges. Never
// retried — the statement would fail identically on resubmission.
type BackendError struct {
	Code    int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("snowflake error %d: %s", e.Code, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Err }
