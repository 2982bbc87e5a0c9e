// Package configure implements the interactive configuration wizard
// behind `gosfmcp configure`.
package configure

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	sfmcp "github.com/sfmcp/snowflake-mcp"
	"github.com/sfmcp/snowflake-mcp/internal/classify"
)

// starterPolicy is the read-only policy the wizard offers to write when
// the configured policy file does not exist yet.
const starterPolicy = `# Statement permissions for gosfmcp. Unlisted kinds are denied.
sql_statement_permissions:
  - select: true
  - show: true
  - describe: true
  - explain: true
  - use: true
`

// Run runs the interactive configuration wizard.
// Reads existing config (if any), prompts for each field,
// writes updated config to the given path.
func Run(configPath string) error {
	return run(configPath, os.Stdin, os.Stderr)
}

func run(configPath string, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	cfg, isNew := loadExisting(configPath)
	if isNew {
		applyDefaults(cfg)
	}

	p := &prompter{
		scanner: scanner,
		output:  output,
		isNew:   isNew,
	}

	fmt.Fprintf(output, "gosfmcp configuration wizard\n")
	fmt.Fprintf(output, "Config file: %s\n\n", configPath)
	fmt.Fprintf(output, "Secrets (password, token, key passphrase) are never stored here;\n")
	fmt.Fprintf(output, "provide them via SNOWFLAKE_* environment variables or the serve prompt.\n\n")

	// Connection
	fmt.Fprintf(output, "=== Connection ===\n")
	cfg.Connection.Account = p.promptStringWithHint("connection.account", cfg.Connection.Account, "required, e.g. myorg-myaccount")
	cfg.Connection.User = p.promptStringWithHint("connection.user", cfg.Connection.User, "required")
	cfg.Connection.Authenticator = p.promptStringWithHint("connection.authenticator", cfg.Connection.Authenticator,
		"empty, snowflake, externalbrowser, oauth, username_password_mfa, snowflake_jwt, or an Okta URL")
	cfg.Connection.Database = p.promptString("connection.database", cfg.Connection.Database)
	cfg.Connection.Schema = p.promptString("connection.schema", cfg.Connection.Schema)
	cfg.Connection.Warehouse = p.promptString("connection.warehouse", cfg.Connection.Warehouse)
	cfg.Connection.Role = p.promptString("connection.role", cfg.Connection.Role)
	cfg.Connection.PrivateKeyPath = p.promptStringWithHint("connection.private_key_path", cfg.Connection.PrivateKeyPath, "PEM file for key-pair auth, empty to skip")
	cfg.Connection.Host = p.promptStringWithHint("connection.host", cfg.Connection.Host, "empty = derived from account")

	// Policy
	fmt.Fprintf(output, "\n=== Statement Permissions ===\n")
	cfg.PolicyPath = p.promptStringWithHint("policy_path", cfg.PolicyPath, "required, YAML policy file")

	// Server
	fmt.Fprintf(output, "\n=== Server ===\n")
	cfg.Server.Port = p.promptPositiveInt("server.port", cfg.Server.Port, "must be > 0")
	cfg.Server.HealthCheckEnabled = p.promptBool("server.health_check_enabled", cfg.Server.HealthCheckEnabled)
	cfg.Server.HealthCheckPath = p.promptStringWithHint("server.health_check_path", cfg.Server.HealthCheckPath, "e.g. /healthz, required when health_check_enabled is true")

	// Logging
	fmt.Fprintf(output, "\n=== Logging ===\n")
	cfg.Logging.Level = p.promptEnum("logging.level", cfg.Logging.Level, logLevels)
	cfg.Logging.Format = p.promptEnum("logging.format", cfg.Logging.Format, logFormats)
	cfg.Logging.Output = p.promptStringWithHint("logging.output", cfg.Logging.Output, "stdout, stderr, or file path")

	// Query
	fmt.Fprintf(output, "\n=== Query ===\n")
	cfg.Query.DefaultTimeoutSeconds = p.promptPositiveInt("query.default_timeout_seconds", cfg.Query.DefaultTimeoutSeconds, "seconds, must be > 0")
	cfg.Query.MaxConcurrent = p.promptPositiveInt("query.max_concurrent", cfg.Query.MaxConcurrent, "must be > 0")
	cfg.Query.MaxSQLLength = p.promptPositiveInt("query.max_sql_length", cfg.Query.MaxSQLLength, "bytes, must be > 0")
	cfg.Query.MaxResultLength = p.promptPositiveInt("query.max_result_length", cfg.Query.MaxResultLength, "characters, must be > 0")

	// Retry
	fmt.Fprintf(output, "\n=== Retry ===\n")
	cfg.Retry.MaxRetries = p.promptNonNegativeInt("retry.max_retries", cfg.Retry.MaxRetries, "must be >= 0")
	cfg.Retry.InitialBackoffMillis = p.promptPositiveInt("retry.initial_backoff_millis", cfg.Retry.InitialBackoffMillis, "milliseconds, must be > 0")
	cfg.Retry.MaxBackoffMillis = p.promptPositiveInt("retry.max_backoff_millis", cfg.Retry.MaxBackoffMillis, "milliseconds, must be > 0")

	// General
	fmt.Fprintf(output, "\n=== General ===\n")
	cfg.QueryTag = p.promptStringWithHint("query_tag", cfg.QueryTag, "stamped on every session for query history attribution")
	cfg.ServerHooks.DefaultTimeoutSeconds = p.promptNonNegativeInt("server_hooks.default_timeout_seconds", cfg.ServerHooks.DefaultTimeoutSeconds, "seconds, must be > 0 when hooks are configured")

	// Array fields
	fmt.Fprintf(output, "\n=== Timeout Rules ===\n")
	cfg.Query.TimeoutRules = p.promptTimeoutRules(cfg.Query.TimeoutRules)

	fmt.Fprintf(output, "\n=== Per-Kind Timeouts ===\n")
	cfg.Query.KindTimeoutSeconds = p.promptKindTimeouts(cfg.Query.KindTimeoutSeconds)

	fmt.Fprintf(output, "\n=== Error Prompts ===\n")
	cfg.ErrorPrompts = p.promptErrorPrompts(cfg.ErrorPrompts)

	fmt.Fprintf(output, "\n=== Sanitization Rules ===\n")
	cfg.Sanitization = p.promptSanitizationRules(cfg.Sanitization)

	fmt.Fprintf(output, "\n=== Server Hooks: Before Statement ===\n")
	cfg.ServerHooks.BeforeStatement = p.promptHookEntries("server_hooks.before_statement", cfg.ServerHooks.BeforeStatement)

	fmt.Fprintf(output, "\n=== Server Hooks: After Statement ===\n")
	cfg.ServerHooks.AfterStatement = p.promptHookEntries("server_hooks.after_statement", cfg.ServerHooks.AfterStatement)

	// Write config
	if err := writeConfig(configPath, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(output, "\nConfiguration saved to %s\n", configPath)

	// Offer a starter policy when the configured file doesn't exist yet.
	if cfg.PolicyPath != "" {
		if _, err := os.Stat(cfg.PolicyPath); os.IsNotExist(err) {
			if p.promptBool(fmt.Sprintf("Policy file %s does not exist. Write a read-only starter policy", cfg.PolicyPath), true) {
				if err := writeStarterPolicy(cfg.PolicyPath); err != nil {
					return fmt.Errorf("failed to write starter policy: %w", err)
				}
				fmt.Fprintf(output, "Starter policy saved to %s\n", cfg.PolicyPath)
			}
		}
	}
	return nil
}

func loadExisting(configPath string) (*sfmcp.ServerConfig, bool) {
	cfg := &sfmcp.ServerConfig{}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, true
	}
	// Ignore unmarshal errors — start with whatever was parseable.
	_ = json.Unmarshal(data, cfg)
	return cfg, false
}

// applyDefaults sets sensible default values for a new configuration.
func applyDefaults(cfg *sfmcp.ServerConfig) {
	cfg.PolicyPath = ".gosfmcp/permissions.yaml"
	cfg.Server.Port = 8080
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"
	cfg.Query.DefaultTimeoutSeconds = 30
	cfg.Query.MaxConcurrent = 10
	cfg.Query.MaxSQLLength = 100000
	cfg.Query.MaxResultLength = 100000
	cfg.Retry.MaxRetries = 3
	cfg.Retry.InitialBackoffMillis = 250
	cfg.Retry.MaxBackoffMillis = 5000
	cfg.QueryTag = "snowflake-mcp"
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

func writeConfig(configPath string, cfg *sfmcp.ServerConfig) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Append trailing newline.
	data = append(data, '\n')

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", configPath, err)
	}

	return nil
}

func writeStarterPolicy(policyPath string) error {
	dir := filepath.Dir(policyPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return os.WriteFile(policyPath, []byte(starterPolicy), 0644)
}

// prompter handles reading user input and displaying prompts.
type prompter struct {
	scanner *bufio.Scanner
	output  io.Writer
	isNew   bool
}

func (p *prompter) readLine() string {
	if p.scanner.Scan() {
		return strings.TrimSpace(p.scanner.Text())
	}
	return ""
}

func (p *prompter) valueLabel() string {
	if p.isNew {
		return "default"
	}
	return "current"
}

func (p *prompter) promptString(field string, current string) string {
	fmt.Fprintf(p.output, "%s (%s: %q): ", field, p.valueLabel(), current)
	input := p.readLine()
	if input == "" {
		return current
	}
	return input
}

func (p *prompter) promptStringWithHint(field string, current string, hint string) string {
	fmt.Fprintf(p.output, "%s [%s] (%s: %q): ", field, hint, p.valueLabel(), current)
	input := p.readLine()
	if input == "" {
		return current
	}
	return input
}

func (p *prompter) promptPositiveInt(field string, current int, hint string) int {
	for {
		fmt.Fprintf(p.output, "%s [%s] (%s: %d): ", field, hint, p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		val, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintf(p.output, "  Invalid integer %q, try again.\n", input)
			continue
		}
		if val <= 0 {
			fmt.Fprintf(p.output, "  Value must be > 0, try again.\n")
			continue
		}
		return val
	}
}

func (p *prompter) promptNonNegativeInt(field string, current int, hint string) int {
	for {
		fmt.Fprintf(p.output, "%s [%s] (%s: %d): ", field, hint, p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		val, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintf(p.output, "  Invalid integer %q, try again.\n", input)
			continue
		}
		if val < 0 {
			fmt.Fprintf(p.output, "  Value must be >= 0, try again.\n")
			continue
		}
		return val
	}
}

func (p *prompter) promptBool(field string, current bool) bool {
	for {
		fmt.Fprintf(p.output, "%s (%s: %v): ", field, p.valueLabel(), current)
		input := p.readLine()
		if input == "" {
			return current
		}
		switch strings.ToLower(input) {
		case "true", "t", "yes", "y", "1":
			return true
		case "false", "f", "no", "n", "0":
			return false
		default:
			fmt.Fprintf(p.output, "  Invalid value %q, use true/false/yes/no, try again.\n", input)
		}
	}
}

func (p *prompter) promptEnum(field string, current string, allowed []string) string {
	for {
		fmt.Fprintf(p.output, "%s (%s: %q, options: %s): ", field, p.valueLabel(), current, strings.Join(allowed, ", "))
		input := p.readLine()
		if input == "" {
			return current
		}
		for _, v := range allowed {
			if input == v {
				return input
			}
		}
		fmt.Fprintf(p.output, "  Invalid value %q, must be one of: %s\n", input, strings.Join(allowed, ", "))
	}
}

// Array field editors

func (p *prompter) promptTimeoutRules(current []sfmcp.TimeoutRule) []sfmcp.TimeoutRule {
	rules := current
	for {
		p.displayTimeoutRules(rules)
		fmt.Fprintf(p.output, "[a]dd, [r]emove, [c]ontinue? ")
		choice := strings.ToLower(p.readLine())
		switch choice {
		case "a":
			pattern := p.promptNewRegexField("pattern")
			timeout := p.promptNewPositiveIntField("timeout_seconds")
			rules = append(rules, sfmcp.TimeoutRule{
				Pattern:        pattern,
				TimeoutSeconds: timeout,
			})
		case "r":
			rules = removeByIndex(p, "timeout rule", rules)
		case "c", "":
			return rules
		default:
			fmt.Fprintf(p.output, "  Unknown choice, try again.\n")
		}
	}
}

func (p *prompter) displayTimeoutRules(rules []sfmcp.TimeoutRule) {
	if len(rules) == 0 {
		fmt.Fprintf(p.output, "  (no entries)\n")
		return
	}
	for i, r := range rules {
		fmt.Fprintf(p.output, "  [%d] pattern=%q timeout_seconds=%d\n", i, r.Pattern, r.TimeoutSeconds)
	}
}

func (p *prompter) promptKindTimeouts(current map[string]int) map[string]int {
	timeouts := current
	for {
		p.displayKindTimeouts(timeouts)
		fmt.Fprintf(p.output, "[a]dd, [r]emove, [c]ontinue? ")
		choice := strings.ToLower(p.readLine())
		switch choice {
		case "a":
			kind := p.promptNewKindField()
			seconds := p.promptNewPositiveIntField("timeout_seconds")
			if timeouts == nil {
				timeouts = make(map[string]int)
			}
			timeouts[kind] = seconds
		case "r":
			fmt.Fprintf(p.output, "  Kind to remove: ")
			kind := p.readLine()
			if _, ok := timeouts[kind]; !ok {
				fmt.Fprintf(p.output, "  No timeout configured for kind %q.\n", kind)
				continue
			}
			delete(timeouts, kind)
		case "c", "":
			return timeouts
		default:
			fmt.Fprintf(p.output, "  Unknown choice, try again.\n")
		}
	}
}

func (p *prompter) displayKindTimeouts(timeouts map[string]int) {
	if len(timeouts) == 0 {
		fmt.Fprintf(p.output, "  (no entries)\n")
		return
	}
	for _, kind := range classify.Kinds {
		if secs, ok := timeouts[string(kind)]; ok {
			fmt.Fprintf(p.output, "  kind=%q timeout_seconds=%d\n", kind, secs)
		}
	}
}

func (p *prompter) promptErrorPrompts(current []sfmcp.ErrorPromptRule) []sfmcp.ErrorPromptRule {
	rules := current
	for {
		p.displayErrorPrompts(rules)
		fmt.Fprintf(p.output, "[a]dd, [r]emove, [c]ontinue? ")
		choice := strings.ToLower(p.readLine())
		switch choice {
		case "a":
			pattern := p.promptNewRegexField("pattern")
			message := p.promptNewField("message")
			rules = append(rules, sfmcp.ErrorPromptRule{
				Pattern: pattern,
				Message: message,
			})
		case "r":
			rules = removeByIndex(p, "error prompt", rules)
		case "c", "":
			return rules
		default:
			fmt.Fprintf(p.output, "  Unknown choice, try again.\n")
		}
	}
}

func (p *prompter) displayErrorPrompts(rules []sfmcp.ErrorPromptRule) {
	if len(rules) == 0 {
		fmt.Fprintf(p.output, "  (no entries)\n")
		return
	}
	for i, r := range rules {
		fmt.Fprintf(p.output, "  [%d] pattern=%q message=%q\n", i, r.Pattern, r.Message)
	}
}

func (p *prompter) promptSanitizationRules(current []sfmcp.SanitizationRule) []sfmcp.SanitizationRule {
	rules := current
	for {
		p.displaySanitizationRules(rules)
		fmt.Fprintf(p.output, "[a]dd, [r]emove, [c]ontinue? ")
		choice := strings.ToLower(p.readLine())
		switch choice {
		case "a":
			pattern := p.promptNewRegexField("pattern")
			replacement := p.promptNewField("replacement")
			description := p.promptNewField("description")
			rules = append(rules, sfmcp.SanitizationRule{
				Pattern:     pattern,
				Replacement: replacement,
				Description: description,
			})
		case "r":
			rules = removeByIndex(p, "sanitization rule", rules)
		case "c", "":
			return rules
		default:
			fmt.Fprintf(p.output, "  Unknown choice, try again.\n")
		}
	}
}

func (p *prompter) displaySanitizationRules(rules []sfmcp.SanitizationRule) {
	if len(rules) == 0 {
		fmt.Fprintf(p.output, "  (no entries)\n")
		return
	}
	for i, r := range rules {
		fmt.Fprintf(p.output, "  [%d] pattern=%q replacement=%q description=%q\n", i, r.Pattern, r.Replacement, r.Description)
	}
}

func (p *prompter) promptHookEntries(label string, current []sfmcp.HookRule) []sfmcp.HookRule {
	entries := current
	for {
		p.displayHookEntries(entries)
		fmt.Fprintf(p.output, "[a]dd, [r]emove, [c]ontinue? ")
		choice := strings.ToLower(p.readLine())
		switch choice {
		case "a":
			pattern := p.promptNewRegexField("pattern")
			command := p.promptNewField("command")
			argsStr := p.promptNewField("args (comma-separated)")
			var args []string
			if argsStr != "" {
				for _, a := range strings.Split(argsStr, ",") {
					args = append(args, strings.TrimSpace(a))
				}
			}
			timeout := p.promptNewNonNegativeIntField("timeout_seconds")
			entries = append(entries, sfmcp.HookRule{
				Pattern:        pattern,
				Command:        command,
				Args:           args,
				TimeoutSeconds: timeout,
			})
		case "r":
			entries = removeByIndex(p, label, entries)
		case "c", "":
			return entries
		default:
			fmt.Fprintf(p.output, "  Unknown choice, try again.\n")
		}
	}
}

func (p *prompter) displayHookEntries(entries []sfmcp.HookRule) {
	if len(entries) == 0 {
		fmt.Fprintf(p.output, "  (no entries)\n")
		return
	}
	for i, e := range entries {
		fmt.Fprintf(p.output, "  [%d] pattern=%q command=%q args=%v timeout_seconds=%d\n",
			i, e.Pattern, e.Command, e.Args, e.TimeoutSeconds)
	}
}

func (p *prompter) promptNewField(name string) string {
	fmt.Fprintf(p.output, "  %s: ", name)
	return p.readLine()
}

func (p *prompter) promptNewRegexField(name string) string {
	for {
		fmt.Fprintf(p.output, "  %s (regex): ", name)
		input := p.readLine()
		if input == "" {
			return ""
		}
		if _, err := regexp.Compile(input); err != nil {
			fmt.Fprintf(p.output, "  Invalid regex %q: %v, try again.\n", input, err)
			continue
		}
		return input
	}
}

func (p *prompter) promptNewKindField() string {
	for {
		fmt.Fprintf(p.output, "  kind (e.g. select, copy, merge): ")
		input := p.readLine()
		if _, ok := classify.KindFromString(input); !ok {
			fmt.Fprintf(p.output, "  Unknown statement kind %q, try again.\n", input)
			continue
		}
		return input
	}
}

func (p *prompter) promptNewPositiveIntField(name string) int {
	for {
		fmt.Fprintf(p.output, "  %s (must be > 0): ", name)
		input := p.readLine()
		if input == "" {
			fmt.Fprintf(p.output, "  Value is required and must be > 0, try again.\n")
			continue
		}
		val, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintf(p.output, "  Invalid integer %q, try again.\n", input)
			continue
		}
		if val <= 0 {
			fmt.Fprintf(p.output, "  Value must be > 0, try again.\n")
			continue
		}
		return val
	}
}

func (p *prompter) promptNewNonNegativeIntField(name string) int {
	for {
		fmt.Fprintf(p.output, "  %s (must be >= 0): ", name)
		input := p.readLine()
		if input == "" {
			return 0
		}
		val, err := strconv.Atoi(input)
		if err != nil {
			fmt.Fprintf(p.output, "  Invalid integer %q, try again.\n", input)
			continue
		}
		if val < 0 {
			fmt.Fprintf(p.output, "  Value must be >= 0, try again.\n")
			continue
		}
		return val
	}
}

// removeByIndex is a generic helper for removing an element by index from a slice.
// It uses type parameters to work with any slice type.
func removeByIndex[T any](p *prompter, label string, items []T) []T {
	if len(items) == 0 {
		fmt.Fprintf(p.output, "  No %s entries to remove.\n", label)
		return items
	}
	fmt.Fprintf(p.output, "  Index to remove: ")
	input := p.readLine()
	idx, err := strconv.Atoi(input)
	if err != nil || idx < 0 || idx >= len(items) {
		fmt.Fprintf(p.output, "  Invalid index.\n")
		return items
	}
	return append(items[:idx], items[idx+1:]...)
}
