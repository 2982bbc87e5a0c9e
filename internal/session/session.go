// Package session owns the connection to Snowflake: opening it, running
// statements over it, retrying transient failures with bounded exponential
// backoff, and transparently re-authenticating once when the backend
// reports an expired session.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/snowflakedb/gosnowflake"

	"github.com/sfmcp/snowflake-mcp/internal/audit"
	"github.com/sfmcp/snowflake-mcp/internal/auth"
)

// Session-expiry error codes from the backend. These trigger one
// re-resolution and reconnect per request, never a plain retry.
const (
	errSessionExpired = 390112
	errTokenExpired   = 390114
)

// Config tunes retry behavior and session parameters.
type Config struct {
	// MaxRetries bounds transient-failure retries per request. The first
	// attempt is not a retry.
	MaxRetries int
	// InitialBackoff is the delay before the first retry; subsequent
	// delays grow exponentially up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// QueryTag is set as the QUERY_TAG session parameter so gateway
	// statements are attributable in Snowflake's query history.
	QueryTag string
}

// DefaultConfig returns the retry tuning used when the operator does not
// override it.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		QueryTag:       "snowflake-mcp",
	}
}

// Result is the materialized outcome of one statement.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Resolver produces a fresh authentication profile. Called once at startup
// and again when the backend reports session expiry.
type Resolver func() (*auth.Profile, error)

type openFunc func(p *auth.Profile, queryTag string) (*sql.DB, error)

type runFunc func(ctx context.Context, db *sql.DB, query string) (*Result, error)

// Manager serializes access to the live connection. Statements share one
// *sql.DB; reconnects swap it atomically so in-flight requests finish on
// the session they started with.
type Manager struct {
	resolve Resolver
	cfg     Config
	log     zerolog.Logger
	sink    audit.Sink

	open openFunc
	run  runFunc

	mu sync.RWMutex
	db *sql.DB
}

// Options configures NewManager.
type Options struct {
	Resolve Resolver
	Config  Config
	Logger  zerolog.Logger
	Sink    audit.Sink
}

// NewManager creates a Manager. Panics if Resolve is nil: a manager
// without a credential source is a programming error, not a runtime
// condition.
func NewManager(opts Options) *Manager {
	if opts.Resolve == nil {
		panic("session: Options.Resolve is required")
	}
	if opts.Sink == nil {
		opts.Sink = audit.NopSink{}
	}
	cfg := opts.Config
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig().MaxBackoff
	}
	return &Manager{
		resolve: opts.Resolve,
		cfg:     cfg,
		log:     opts.Logger,
		sink:    opts.Sink,
		open:    openSnowflake,
		run:     runQuery,
	}
}

// Connect resolves credentials and opens the initial session. Idempotent;
// a second call replaces the session.
func (m *Manager) Connect() error {
	return m.reconnect()
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// Execute runs one statement and materializes its result.
//
// Transient failures (network, pool) retry with exponential backoff up to
// Config.MaxRetries. Backend errors never retry. A session-expiry error
// triggers exactly one credential re-resolution and reconnect for this
// request; a second expiry surfaces as a BackendError.
func (m *Manager) Execute(ctx context.Context, query string) (*Result, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}

	reauthed := false
	retries := 0

	op := func() (*Result, error) {
		res, err := m.run(ctx, m.currentDB(), query)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		var sfErr *gosnowflake.SnowflakeError
		if errors.As(err, &sfErr) {
			if sessionExpired(sfErr.Number) && !reauthed {
				reauthed = true
				m.log.Warn().Int("code", sfErr.Number).Msg("session expired, re-authenticating")
				if rerr := m.reconnect(); rerr != nil {
					return nil, backoff.Permanent(rerr)
				}
				return nil, err
			}
			return nil, backoff.Permanent(&BackendError{
				Code:    sfErr.Number,
				Message: sfErr.Message,
				Err:     err,
			})
		}

		return nil, err
	}

	notify := func(err error, wait time.Duration) {
		retries++
		m.log.Warn().
			Err(err).
			Dur("wait", wait).
			Int("retry", retries).
			Msg("statement attempt failed, retrying")
	}

	res, err := backoff.RetryNotifyWithData(op, m.newBackoff(ctx), notify)
	if retries > 0 {
		m.sink.Retried(retries)
	}
	if err != nil {
		var backendErr *BackendError
		if errors.As(err, &backendErr) {
			return nil, backendErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &ConnectionError{Attempts: retries + 1, Err: err}
	}
	return res, nil
}

func (m *Manager) newBackoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = m.cfg.InitialBackoff
	exp.MaxInterval = m.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(m.cfg.MaxRetries)), ctx)
}

func (m *Manager) currentDB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *Manager) ensureOpen() error {
	if m.currentDB() != nil {
		return nil
	}
	return m.reconnect()
}

// reconnect resolves a fresh profile and swaps in a new session. The old
// session is closed after the swap so readers never observe a nil db.
func (m *Manager) reconnect() error {
	profile, err := m.resolve()
	if err != nil {
		return err
	}
	db, err := m.open(profile, m.cfg.QueryTag)
	if err != nil {
		return &ConnectionError{Attempts: 1, Err: err}
	}

	m.mu.Lock()
	old := m.db
	m.db = db
	m.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

func sessionExpired(code int) bool {
	return code == errSessionExpired || code == errTokenExpired
}

func openSnowflake(p *auth.Profile, queryTag string) (*sql.DB, error) {
	cfg := p.DriverConfig()
	if queryTag != "" {
		cfg.Params["QUERY_TAG"] = &queryTag
	}
	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("building DSN: %w", err)
	}
	return sql.Open("snowflake", dsn)
}

// runQuery executes one statement and drains its rows. Snowflake returns a
// result set for DML and DDL too (row counts, status lines), so everything
// goes through Query rather than Exec.
func runQuery(ctx context.Context, db *sql.DB, query string) (*Result, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = convertValue(v)
		}
		res.Rows = append(res.Rows, values)
	}
	return res, rows.Err()
}

// convertValue normalizes driver values for JSON-friendly output.
func convertValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return v
	}
}
