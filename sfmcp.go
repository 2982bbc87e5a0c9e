package sfmcp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sfmcp/snowflake-mcp/internal/audit"
	"github.com/sfmcp/snowflake-mcp/internal/auth"
	"github.com/sfmcp/snowflake-mcp/internal/classify"
	"github.com/sfmcp/snowflake-mcp/internal/errprompt"
	"github.com/sfmcp/snowflake-mcp/internal/hooks"
	"github.com/sfmcp/snowflake-mcp/internal/policy"
	"github.com/sfmcp/snowflake-mcp/internal/sanitize"
	"github.com/sfmcp/snowflake-mcp/internal/session"
	"github.com/sfmcp/snowflake-mcp/internal/timeout"
)

// StatementExecutor runs one statement against Snowflake. *session.Manager
// is the production implementation; tests substitute fakes.
type StatementExecutor interface {
	Execute(ctx context.Context, sql string) (*session.Result, error)
}

// SnowflakeMcp is the core engine behind every tool: classification,
// permission gating, timeout resolution, execution, sanitization. All
// exported methods are safe for concurrent use from multiple goroutines.
type SnowflakeMcp struct {
	config     Config
	policy     *policy.Policy
	exec       StatementExecutor
	semaphore  chan struct{}
	sanitizer  *sanitize.Sanitizer
	errPrompts *errprompt.Matcher
	timeoutMgr *timeout.Manager
	hooks      *hooks.Runner
	sink       audit.Sink
	logger     zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	exec     StatementExecutor
	sink     audit.Sink
	hooksCfg *HooksConfig
}

// WithExecutor substitutes the statement executor. Library mode and tests
// use this; CLI mode lets New build the session manager itself.
func WithExecutor(exec StatementExecutor) Option {
	return func(o *options) {
		o.exec = exec
	}
}

// WithAuditSink substitutes the audit sink.
func WithAuditSink(sink audit.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithStatementHooks enables external command hooks around statement
// execution. Panics on invalid hook config.
func WithStatementHooks(cfg HooksConfig) Option {
	return func(o *options) {
		o.hooksCfg = &cfg
	}
}

// Secrets carries credential material that never lives in config files.
// It is consumed at connect time and on credential re-resolution; which
// fields are required depends on the authentication method that wins
// resolution.
type Secrets struct {
	Password             string
	Token                string
	PrivateKeyPEM        []byte
	PrivateKeyPassphrase string
}

// New creates a SnowflakeMcp engine. conn and secrets are resolved into an
// authentication profile at connect time and again on session expiry.
// policyYAML is the raw statement-permission policy; a malformed policy is
// a startup error, never a partially applied one.
// Panics on invalid config. Returns error for malformed policy, bad rule
// regexes, and connection failures.
func New(conn ConnectionConfig, secrets Secrets, policyYAML []byte, config Config, logger zerolog.Logger, opts ...Option) (*SnowflakeMcp, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	pol, err := policy.Parse(policyYAML)
	if err != nil {
		return nil, err
	}

	// --- Config validation (panics on invalid config) ---

	if config.Query.DefaultTimeoutSeconds <= 0 {
		panic("sfmcp: query.default_timeout_seconds must be > 0")
	}

	// Apply defaults for zero values
	if config.Query.MaxConcurrent == 0 {
		config.Query.MaxConcurrent = 10
	}
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MaxConcurrent < 0 {
		panic("sfmcp: query.max_concurrent must be > 0")
	}
	if config.Query.MaxSQLLength < 0 {
		panic("sfmcp: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("sfmcp: query.max_result_length must be > 0")
	}
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("sfmcp: timeout_rule with pattern %q has timeout_seconds <= 0", rule.Pattern))
		}
	}
	kindTimeouts := make(map[classify.Kind]time.Duration, len(config.Query.KindTimeoutSeconds))
	for name, secs := range config.Query.KindTimeoutSeconds {
		kind, ok := classify.KindFromString(name)
		if !ok {
			panic(fmt.Sprintf("sfmcp: kind_timeout_seconds has unknown statement kind %q", name))
		}
		if secs <= 0 {
			panic(fmt.Sprintf("sfmcp: kind_timeout_seconds[%q] must be > 0", name))
		}
		kindTimeouts[kind] = time.Duration(secs) * time.Second
	}
	if config.Retry.MaxRetries < 0 {
		panic("sfmcp: retry.max_retries must be >= 0")
	}

	// --- Initialize internal components ---

	san, err := sanitize.NewSanitizer(mapSanitizationRules(config.Sanitization))
	if err != nil {
		return nil, err
	}
	promptRules := errprompt.DefaultRules()
	promptRules = append(promptRules, mapErrorPromptRules(config.ErrorPrompts)...)
	matcher, err := errprompt.NewMatcher(promptRules)
	if err != nil {
		return nil, err
	}

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
		KindTimeouts:   kindTimeouts,
	})

	sink := o.sink
	if sink == nil {
		sink = &audit.LogSink{Logger: logger}
	}

	var hookRunner *hooks.Runner
	if o.hooksCfg != nil && (len(o.hooksCfg.BeforeStatement) > 0 || len(o.hooksCfg.AfterStatement) > 0) {
		hookRunner = hooks.NewRunner(hooks.Config{
			DefaultTimeout:  time.Duration(o.hooksCfg.DefaultTimeoutSeconds) * time.Second,
			BeforeStatement: mapHookRules(o.hooksCfg.BeforeStatement),
			AfterStatement:  mapHookRules(o.hooksCfg.AfterStatement),
		}, logger)
	}

	exec := o.exec
	if exec == nil {
		inputs := auth.Inputs{
			Account:              conn.Account,
			User:                 conn.User,
			Authenticator:        conn.Authenticator,
			Host:                 conn.Host,
			Database:             conn.Database,
			Schema:               conn.Schema,
			Warehouse:            conn.Warehouse,
			Role:                 conn.Role,
			PrivateKeyPath:       conn.PrivateKeyPath,
			Password:             secrets.Password,
			Token:                secrets.Token,
			PrivateKey:           secrets.PrivateKeyPEM,
			PrivateKeyPassphrase: secrets.PrivateKeyPassphrase,
		}
		sessionCfg := session.DefaultConfig()
		if config.Retry.MaxRetries > 0 {
			sessionCfg.MaxRetries = config.Retry.MaxRetries
		}
		if config.Retry.InitialBackoffMillis > 0 {
			sessionCfg.InitialBackoff = time.Duration(config.Retry.InitialBackoffMillis) * time.Millisecond
		}
		if config.Retry.MaxBackoffMillis > 0 {
			sessionCfg.MaxBackoff = time.Duration(config.Retry.MaxBackoffMillis) * time.Millisecond
		}
		if config.QueryTag != "" {
			sessionCfg.QueryTag = config.QueryTag
		}
		mgr := session.NewManager(session.Options{
			Resolve: func() (*auth.Profile, error) { return auth.Resolve(inputs) },
			Config:  sessionCfg,
			Logger:  logger,
			Sink:    sink,
		})
		if err := mgr.Connect(); err != nil {
			return nil, err
		}
		exec = mgr
	}

	return &SnowflakeMcp{
		config:     config,
		policy:     pol,
		exec:       exec,
		semaphore:  make(chan struct{}, config.Query.MaxConcurrent),
		sanitizer:  san,
		errPrompts: matcher,
		timeoutMgr: tmgr,
		hooks:      hookRunner,
		sink:       sink,
		logger:     logger,
	}, nil
}

// Close releases the underlying session if the engine owns one.
func (p *SnowflakeMcp) Close(ctx context.Context) {
	if c, ok := p.exec.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}

// mapSanitizationRules converts sfmcp SanitizationRules to internal sanitize.Rules.
func mapSanitizationRules(rules []SanitizationRule) []sanitize.Rule {
	result := make([]sanitize.Rule, len(rules))
	for i, r := range rules {
		result[i] = sanitize.Rule{
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		}
	}
	return result
}

// mapHookRules converts sfmcp HookRules to internal hooks.HookEntries.
func mapHookRules(rules []HookRule) []hooks.HookEntry {
	result := make([]hooks.HookEntry, len(rules))
	for i, r := range rules {
		result[i] = hooks.HookEntry{
			Pattern: r.Pattern,
			Command: r.Command,
			Args:    r.Args,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	return result
}

// mapErrorPromptRules converts sfmcp ErrorPromptRules to internal errprompt.Rules.
func mapErrorPromptRules(rules []ErrorPromptRule) []errprompt.Rule {
	result := make([]errprompt.Rule, len(rules))
	for i, r := range rules {
		result[i] = errprompt.Rule{
			Pattern: r.Pattern,
			Message: r.Message,
		}
	}
	return result
}
