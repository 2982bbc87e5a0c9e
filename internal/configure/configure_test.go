package configure

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sfmcp "github.com/sfmcp/snowflake-mcp"
)

// Prompt order (one answer line per prompt, editors consume extra lines):
//
//	0-8   connection: account, user, authenticator, database, schema,
//	      warehouse, role, private_key_path, host
//	9     policy_path
//	10-12 server: port, health_check_enabled, health_check_path
//	13-15 logging: level, format, output
//	16-19 query: default_timeout_seconds, max_concurrent, max_sql_length,
//	      max_result_length
//	20-22 retry: max_retries, initial_backoff_millis, max_backoff_millis
//	23    query_tag
//	24    server_hooks.default_timeout_seconds
//	25-30 editors: timeout rules, kind timeouts, error prompts,
//	      sanitization, before hooks, after hooks
//	31    (only when the policy file is missing) write starter policy?
const (
	promptAccount     = 0
	promptPolicyPath  = 9
	promptServerPort  = 10
	promptLogLevel    = 13
	editorTimeouts    = 25
	editorKinds       = 26
	editorErrPrompts  = 27
	editorBeforeHooks = 29
)

func baseAnswers(policyPath string) []string {
	a := make([]string, 31)
	a[promptAccount] = "myorg-myaccount"
	a[promptAccount+1] = "svc_mcp"
	a[promptPolicyPath] = policyPath
	return a
}

// insertAt splices extra answer lines in before index idx.
func insertAt(answers []string, idx int, lines ...string) []string {
	out := make([]string, 0, len(answers)+len(lines))
	out = append(out, answers[:idx]...)
	out = append(out, lines...)
	out = append(out, answers[idx:]...)
	return out
}

func runWizard(t *testing.T, configPath string, answers []string) (*sfmcp.ServerConfig, string) {
	t.Helper()
	input := strings.NewReader(strings.Join(answers, "\n") + "\n")
	var output bytes.Buffer
	if err := run(configPath, input, &output); err != nil {
		t.Fatalf("unexpected error: %v\noutput:\n%s", err, output.String())
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	var cfg sfmcp.ServerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid JSON: %v", err)
	}
	return &cfg, output.String()
}

func TestConfigureNewConfigDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	policyPath := filepath.Join(dir, "permissions.yaml")

	answers := baseAnswers(policyPath)
	answers = append(answers, "n") // skip starter policy

	cfg, output := runWizard(t, configPath, answers)

	if !strings.Contains(output, "default") {
		t.Fatalf("expected 'default' value labels for a new config:\n%s", output)
	}
	if cfg.Connection.Account != "myorg-myaccount" {
		t.Fatalf("account = %q", cfg.Connection.Account)
	}
	if cfg.Connection.User != "svc_mcp" {
		t.Fatalf("user = %q", cfg.Connection.User)
	}
	if cfg.PolicyPath != policyPath {
		t.Fatalf("policy_path = %q", cfg.PolicyPath)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Fatalf("logging = %+v, want defaults", cfg.Logging)
	}
	if cfg.Query.DefaultTimeoutSeconds != 30 || cfg.Query.MaxConcurrent != 10 {
		t.Fatalf("query = %+v, want defaults", cfg.Query)
	}
	if cfg.Query.MaxSQLLength != 100000 || cfg.Query.MaxResultLength != 100000 {
		t.Fatalf("query lengths = %+v, want defaults", cfg.Query)
	}
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.InitialBackoffMillis != 250 || cfg.Retry.MaxBackoffMillis != 5000 {
		t.Fatalf("retry = %+v, want defaults", cfg.Retry)
	}
	if cfg.QueryTag != "snowflake-mcp" {
		t.Fatalf("query_tag = %q, want default", cfg.QueryTag)
	}

	// Starter policy was declined.
	if _, err := os.Stat(policyPath); !os.IsNotExist(err) {
		t.Fatal("expected no policy file to be written")
	}
}

func TestConfigureWritesStarterPolicy(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	policyPath := filepath.Join(dir, "permissions.yaml")

	answers := baseAnswers(policyPath)
	answers = append(answers, "y")

	_, output := runWizard(t, configPath, answers)

	if !strings.Contains(output, "Starter policy saved") {
		t.Fatalf("expected starter policy confirmation:\n%s", output)
	}
	data, err := os.ReadFile(policyPath)
	if err != nil {
		t.Fatalf("expected starter policy file: %v", err)
	}
	if !strings.Contains(string(data), "- select: true") {
		t.Fatalf("starter policy missing select permission:\n%s", data)
	}
	if !strings.Contains(string(data), "sql_statement_permissions:") {
		t.Fatalf("starter policy missing permissions key:\n%s", data)
	}
}

func TestConfigureExistingConfigPreserved(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	policyPath := filepath.Join(dir, "permissions.yaml")
	if err := os.WriteFile(policyPath, []byte(starterPolicy), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	existing := sfmcp.ServerConfig{
		Config: sfmcp.Config{
			Query:    sfmcp.QueryConfig{DefaultTimeoutSeconds: 45, MaxConcurrent: 3, MaxSQLLength: 5000, MaxResultLength: 5000},
			Retry:    sfmcp.RetryConfig{MaxRetries: 7, InitialBackoffMillis: 100, MaxBackoffMillis: 2000},
			QueryTag: "custom-tag",
		},
		Connection: sfmcp.ConnectionConfig{Account: "prod-account", User: "prod_user", Warehouse: "prod_wh"},
		PolicyPath: policyPath,
		Server:     sfmcp.ServerSettings{Port: 9999},
		Logging:    sfmcp.LoggingConfig{Level: "warn", Format: "text", Output: "stdout"},
	}
	data, _ := json.MarshalIndent(existing, "", "  ")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// All-empty answers keep every existing value. The policy file exists,
	// so there is no starter prompt.
	answers := make([]string, 31)
	cfg, output := runWizard(t, configPath, answers)

	if !strings.Contains(output, "current") {
		t.Fatalf("expected 'current' value labels for an existing config:\n%s", output)
	}
	if cfg.Connection.Account != "prod-account" || cfg.Connection.Warehouse != "prod_wh" {
		t.Fatalf("connection not preserved: %+v", cfg.Connection)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("port = %d, want preserved 9999", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("logging.level = %q, want preserved warn", cfg.Logging.Level)
	}
	if cfg.Query.DefaultTimeoutSeconds != 45 || cfg.Retry.MaxRetries != 7 {
		t.Fatalf("query/retry not preserved: %+v %+v", cfg.Query, cfg.Retry)
	}
	if cfg.QueryTag != "custom-tag" {
		t.Fatalf("query_tag = %q, want preserved", cfg.QueryTag)
	}
}

func TestConfigureInvalidIntRetries(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	policyPath := filepath.Join(dir, "permissions.yaml")

	answers := baseAnswers(policyPath)
	// server.port: two bad answers, then a good one.
	answers[promptServerPort] = "abc"
	answers = insertAt(answers, promptServerPort+1, "0", "7070")
	answers = append(answers, "n")

	cfg, output := runWizard(t, configPath, answers)

	if !strings.Contains(output, "Invalid integer") {
		t.Fatalf("expected invalid integer message:\n%s", output)
	}
	if !strings.Contains(output, "must be > 0") {
		t.Fatalf("expected positivity message:\n%s", output)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("port = %d, want 7070", cfg.Server.Port)
	}
}

func TestConfigureEnumRetries(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	policyPath := filepath.Join(dir, "permissions.yaml")

	answers := baseAnswers(policyPath)
	answers[promptLogLevel] = "verbose"
	answers = insertAt(answers, promptLogLevel+1, "debug")
	answers = append(answers, "n")

	cfg, output := runWizard(t, configPath, answers)

	if !strings.Contains(output, "must be one of") {
		t.Fatalf("expected enum rejection message:\n%s", output)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q, want debug", cfg.Logging.Level)
	}
}

func TestConfigureAddTimeoutRule(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	policyPath := filepath.Join(dir, "permissions.yaml")

	answers := baseAnswers(policyPath)
	answers[editorTimeouts] = "a"
	answers = insertAt(answers, editorTimeouts+1, "^COPY", "600", "c")
	answers = append(answers, "n")

	cfg, _ := runWizard(t, configPath, answers)

	if len(cfg.Query.TimeoutRules) != 1 {
		t.Fatalf("timeout rules = %+v, want 1 entry", cfg.Query.TimeoutRules)
	}
	rule := cfg.Query.TimeoutRules[0]
	if rule.Pattern != "^COPY" || rule.TimeoutSeconds != 600 {
		t.Fatalf("rule = %+v", rule)
	}
}

func TestConfigureKindTimeoutValidation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	policyPath := filepath.Join(dir, "permissions.yaml")

	answers := baseAnswers(policyPath)
	answers[editorKinds] = "a"
	// "vacuum" is not a statement kind; the wizard re-prompts.
	answers = insertAt(answers, editorKinds+1, "vacuum", "copy", "900", "c")
	answers = append(answers, "n")

	cfg, output := runWizard(t, configPath, answers)

	if !strings.Contains(output, "Unknown statement kind") {
		t.Fatalf("expected unknown kind message:\n%s", output)
	}
	if cfg.Query.KindTimeoutSeconds["copy"] != 900 {
		t.Fatalf("kind timeouts = %+v, want copy=900", cfg.Query.KindTimeoutSeconds)
	}
}

func TestConfigureAddHookEntry(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	policyPath := filepath.Join(dir, "permissions.yaml")

	answers := baseAnswers(policyPath)
	answers[editorBeforeHooks] = "a"
	answers = insertAt(answers, editorBeforeHooks+1,
		"(?i)^delete", "/usr/local/bin/review", "--strict, --json", "10", "c")
	answers = append(answers, "n")

	cfg, _ := runWizard(t, configPath, answers)

	if len(cfg.ServerHooks.BeforeStatement) != 1 {
		t.Fatalf("before hooks = %+v, want 1 entry", cfg.ServerHooks.BeforeStatement)
	}
	hook := cfg.ServerHooks.BeforeStatement[0]
	if hook.Pattern != "(?i)^delete" || hook.Command != "/usr/local/bin/review" {
		t.Fatalf("hook = %+v", hook)
	}
	if len(hook.Args) != 2 || hook.Args[0] != "--strict" || hook.Args[1] != "--json" {
		t.Fatalf("hook args = %v", hook.Args)
	}
	if hook.TimeoutSeconds != 10 {
		t.Fatalf("hook timeout = %d", hook.TimeoutSeconds)
	}
}

func TestConfigureRemoveErrorPrompt(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")
	policyPath := filepath.Join(dir, "permissions.yaml")
	if err := os.WriteFile(policyPath, []byte(starterPolicy), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	existing := sfmcp.ServerConfig{
		Config: sfmcp.Config{
			Query: sfmcp.QueryConfig{DefaultTimeoutSeconds: 30, MaxConcurrent: 10, MaxSQLLength: 1000, MaxResultLength: 1000},
			Retry: sfmcp.RetryConfig{MaxRetries: 3, InitialBackoffMillis: 250, MaxBackoffMillis: 5000},
			ErrorPrompts: []sfmcp.ErrorPromptRule{
				{Pattern: "first", Message: "first message"},
				{Pattern: "second", Message: "second message"},
			},
		},
		Connection: sfmcp.ConnectionConfig{Account: "a", User: "u"},
		PolicyPath: policyPath,
		Server:     sfmcp.ServerSettings{Port: 8080},
		Logging:    sfmcp.LoggingConfig{Level: "info", Format: "json", Output: "stderr"},
	}
	data, _ := json.MarshalIndent(existing, "", "  ")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	answers := make([]string, 31)
	answers[editorErrPrompts] = "r"
	answers = insertAt(answers, editorErrPrompts+1, "0", "c")

	cfg, _ := runWizard(t, configPath, answers)

	if len(cfg.ErrorPrompts) != 1 {
		t.Fatalf("error prompts = %+v, want 1 entry", cfg.ErrorPrompts)
	}
	if cfg.ErrorPrompts[0].Pattern != "second" {
		t.Fatalf("remaining prompt = %+v, want the second entry", cfg.ErrorPrompts[0])
	}
}
