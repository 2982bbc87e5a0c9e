package sfmcp

// Config is the base configuration used by library mode via New().
type Config struct {
	Query        QueryConfig        `json:"query"`
	Retry        RetryConfig        `json:"retry"`
	ErrorPrompts []ErrorPromptRule  `json:"error_prompts"`
	Sanitization []SanitizationRule `json:"sanitization"`
	// QueryTag is stamped on every session so gateway statements show up
	// attributably in Snowflake's query history.
	QueryTag string `json:"query_tag"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	// PolicyPath points at the YAML statement-permission policy. Required:
	// the server refuses to start without an explicit policy.
	PolicyPath  string         `json:"policy_path"`
	Server      ServerSettings `json:"server"`
	Logging     LoggingConfig  `json:"logging"`
	ServerHooks HooksConfig    `json:"server_hooks"`
}

// HooksConfig configures external command hooks around statement
// execution. Hooks are operator guardrails: before hooks can reject or
// rewrite a statement, after hooks can reject or rewrite result rows.
type HooksConfig struct {
	// DefaultTimeoutSeconds applies to hooks without their own timeout.
	// Required (> 0) when any hooks are configured.
	DefaultTimeoutSeconds int        `json:"default_timeout_seconds"`
	BeforeStatement       []HookRule `json:"before_statement"`
	AfterStatement        []HookRule `json:"after_statement"`
}

// HookRule defines a single command hook. Pattern is matched against the
// SQL text.
type HookRule struct {
	Pattern        string   `json:"pattern"`
	Command        string   `json:"command"`
	Args           []string `json:"args"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// ConnectionConfig holds Snowflake connection parameters used by CLI mode.
// Secrets (password, token, key passphrase) never live in the config file;
// they come from flags, environment, or an interactive prompt.
type ConnectionConfig struct {
	Account        string `json:"account"`
	User           string `json:"user"`
	Authenticator  string `json:"authenticator"`
	Host           string `json:"host"`
	Database       string `json:"database"`
	Schema         string `json:"schema"`
	Warehouse      string `json:"warehouse"`
	Role           string `json:"role"`
	PrivateKeyPath string `json:"private_key_path"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds int `json:"default_timeout_seconds"`
	// MaxConcurrent bounds in-flight statements across all tools.
	MaxConcurrent   int           `json:"max_concurrent"`
	MaxSQLLength    int           `json:"max_sql_length"`
	MaxResultLength int           `json:"max_result_length"`
	TimeoutRules    []TimeoutRule `json:"timeout_rules"`
	// KindTimeoutSeconds overrides the default timeout per statement kind
	// when no regex rule matched, keyed by kind name ("copy", "create", …).
	KindTimeoutSeconds map[string]int `json:"kind_timeout_seconds"`
}

// RetryConfig tunes transient-failure retries on the Snowflake session.
type RetryConfig struct {
	MaxRetries           int `json:"max_retries"`
	InitialBackoffMillis int `json:"initial_backoff_millis"`
	MaxBackoffMillis     int `json:"max_backoff_millis"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ErrorPromptRule maps an error message pattern to a guidance message.
type ErrorPromptRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// SanitizationRule defines a regex-based field sanitization rule.
type SanitizationRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}
