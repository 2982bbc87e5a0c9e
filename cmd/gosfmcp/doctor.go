package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"

	sfmcp "github.com/sfmcp/snowflake-mcp"
	"github.com/sfmcp/snowflake-mcp/internal/audit"
	"github.com/sfmcp/snowflake-mcp/internal/auth"
	"github.com/sfmcp/snowflake-mcp/internal/classify"
	"github.com/sfmcp/snowflake-mcp/internal/meta"
	"github.com/sfmcp/snowflake-mcp/internal/policy"
	"github.com/sfmcp/snowflake-mcp/internal/session"

	"github.com/rs/zerolog"
)

func runDoctor() error {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (overrides SFMCP_CONFIG_PATH)")
	live := fs.Bool("live", false, "Open a live Snowflake connection to verify credentials")
	fs.Parse(os.Args[2:])

	path := *configPath
	if path == "" {
		path = os.Getenv("SFMCP_CONFIG_PATH")
	}
	if path == "" {
		path = ".gosfmcp/config.json"
	}

	useColor := isTTY(os.Stderr.Fd())
	return doctor(os.Stderr, useColor, path, secretsFromEnv(), *live)
}

func doctor(w io.Writer, useColor bool, configPath string, secrets sfmcp.Secrets, live bool) error {
	printBanner(w, useColor)
	fmt.Fprintf(w, "gosfmcp %s\n\n", meta.Version)

	// Load and validate config
	config, ok := doctorValidateConfig(w, useColor, configPath, secrets, live)
	if !ok {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Fix the issues above and run 'gosfmcp doctor' again.")
		return nil
	}

	// Print agent connection snippets
	fmt.Fprintln(w)
	printAgentSnippets(w, useColor, config)
	return nil
}

// doctorValidateConfig loads and validates the config file, printing check results.
// Returns the parsed config and true if all checks passed.
func doctorValidateConfig(w io.Writer, useColor bool, configPath string, secrets sfmcp.Secrets, live bool) (*sfmcp.ServerConfig, bool) {
	allPassed := true

	// Check 1: Config file exists and is valid JSON
	data, err := os.ReadFile(configPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file readable (%s)", configPath))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, fmt.Sprintf("Config file readable (%s)", configPath))

	var config sfmcp.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Config file is valid JSON: %v", err))
		allPassed = false
		return nil, allPassed
	}
	printCheck(w, useColor, true, "Config file is valid JSON")

	// Check 2: connection.account and connection.user are set
	applyConnectionOverrides(&config.Connection, "", "", "")
	if config.Connection.Account == "" {
		printCheck(w, useColor, false, "connection.account is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.account is set (%s)", config.Connection.Account))
	}
	if config.Connection.User == "" {
		printCheck(w, useColor, false, "connection.user is set")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("connection.user is set (%s)", config.Connection.User))
	}

	// Check 3: server.port > 0
	if config.Server.Port <= 0 {
		printCheck(w, useColor, false, "server.port is > 0")
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("server.port is > 0 (%d)", config.Server.Port))
	}

	// Check 4: Health check path set when enabled
	if config.Server.HealthCheckEnabled {
		if config.Server.HealthCheckPath == "" {
			printCheck(w, useColor, false, "health_check_path is set (required when health_check_enabled)")
			allPassed = false
		} else {
			printCheck(w, useColor, true, fmt.Sprintf("health_check_path is set (%s)", config.Server.HealthCheckPath))
		}
	}

	// Check 5: Statement-permission policy loads
	if !doctorValidatePolicy(w, useColor, config.PolicyPath) {
		allPassed = false
	}

	// Check 6: Regex patterns compile
	regexOK := true

	for i, rule := range config.ErrorPrompts {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("error_prompts[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Sanitization {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("sanitization[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, rule := range config.Query.TimeoutRules {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("timeout_rules[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, hook := range config.ServerHooks.BeforeStatement {
		if _, err := regexp.Compile(hook.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("server_hooks.before_statement[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	for i, hook := range config.ServerHooks.AfterStatement {
		if _, err := regexp.Compile(hook.Pattern); err != nil {
			printCheck(w, useColor, false, fmt.Sprintf("server_hooks.after_statement[%d] regex compiles: %v", i, err))
			regexOK = false
			allPassed = false
		}
	}

	if regexOK {
		printCheck(w, useColor, true, "All regex patterns compile")
	}

	// Check 7: kind_timeout_seconds names known statement kinds
	kindsOK := true
	for name := range config.Query.KindTimeoutSeconds {
		if _, ok := classify.KindFromString(name); !ok {
			printCheck(w, useColor, false, fmt.Sprintf("kind_timeout_seconds names a known statement kind (%q)", name))
			kindsOK = false
			allPassed = false
		}
	}
	if kindsOK && len(config.Query.KindTimeoutSeconds) > 0 {
		printCheck(w, useColor, true, "kind_timeout_seconds names known statement kinds")
	}

	// Check 8: Credentials resolve to an authentication method
	profile, err := auth.Resolve(authInputs(config.Connection, secrets))
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Credentials resolve: %v", err))
		allPassed = false
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Credentials resolve (method: %s)", profile.Method))

		// Check 9 (optional): Live connection
		if live {
			if !doctorLiveCheck(w, useColor, config.Connection, secrets) {
				allPassed = false
			}
		}
	}

	return &config, allPassed
}

// doctorValidatePolicy loads and parses the statement-permission policy,
// printing check results.
func doctorValidatePolicy(w io.Writer, useColor bool, policyPath string) bool {
	if policyPath == "" {
		printCheck(w, useColor, false, "policy_path is set (the server refuses to start without a policy)")
		return false
	}
	printCheck(w, useColor, true, fmt.Sprintf("policy_path is set (%s)", policyPath))

	pol, err := policy.Load(policyPath)
	if err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Policy file loads: %v", err))
		return false
	}
	if pol.AllowAll() {
		printCheck(w, useColor, true, "Policy file loads (all statement kinds allowed)")
	} else {
		printCheck(w, useColor, true, fmt.Sprintf("Policy file loads (%d statement kinds configured, the rest denied)", len(pol.Entries())))
	}
	return true
}

// doctorLiveCheck opens a real Snowflake session and closes it again.
func doctorLiveCheck(w io.Writer, useColor bool, conn sfmcp.ConnectionConfig, secrets sfmcp.Secrets) bool {
	in := authInputs(conn, secrets)
	mgr := session.NewManager(session.Options{
		Resolve: func() (*auth.Profile, error) { return auth.Resolve(in) },
		Config:  session.DefaultConfig(),
		Logger:  zerolog.Nop(),
		Sink:    audit.NopSink{},
	})
	if err := mgr.Connect(); err != nil {
		printCheck(w, useColor, false, fmt.Sprintf("Live connection to Snowflake: %v", err))
		return false
	}
	defer mgr.Close()
	printCheck(w, useColor, true, "Live connection to Snowflake")
	return true
}

// authInputs maps connection config plus secrets into resolver inputs.
func authInputs(conn sfmcp.ConnectionConfig, secrets sfmcp.Secrets) auth.Inputs {
	return auth.Inputs{
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
}

// printCheck prints a colored ✓ or ✗ check line.
func printCheck(w io.Writer, useColor bool, pass bool, msg string) {
	if pass {
		if useColor {
			fmt.Fprintf(w, "  \033[32m✓\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✓ %s\n", msg)
		}
	} else {
		if useColor {
			fmt.Fprintf(w, "  \033[31m✗\033[0m %s\n", msg)
		} else {
			fmt.Fprintf(w, "  ✗ %s\n", msg)
		}
	}
}

// printAgentSnippets prints MCP connection config snippets for various AI agents.
func printAgentSnippets(w io.Writer, useColor bool, config *sfmcp.ServerConfig) {
	port := config.Server.Port
	url := fmt.Sprintf("http://localhost:%d/mcp", port)

	heading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "\033[1;36m%s\033[0m\n", title)
		} else {
			fmt.Fprintln(w, title)
		}
	}

	subheading := func(title string) {
		if useColor {
			fmt.Fprintf(w, "  \033[1m%s\033[0m\n", title)
		} else {
			fmt.Fprintf(w, "  %s\n", title)
		}
	}

	heading("Agent Connection Snippets")
	fmt.Fprintln(w)

	// Claude Code
	subheading("Claude Code")
	fmt.Fprintf(w, "  Run this command to add the server:\n\n")
	fmt.Fprintf(w, "    claude mcp add --transport http snowflake %s\n\n", url)
	fmt.Fprintf(w, "  Or add to .mcp.json (project scope):\n\n")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "snowflake": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Copilot CLI
	subheading("Copilot CLI (~/.copilot/mcp-config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "snowflake": {
        "type": "http",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Gemini CLI
	subheading("Gemini CLI (~/.gemini/settings.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "snowflake": {
        "httpUrl": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// OpenCode
	subheading("OpenCode (opencode.json)")
	fmt.Fprintf(w, `  {
    "mcp": {
      "snowflake": {
        "type": "remote",
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Cursor
	subheading("Cursor (.cursor/mcp.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "snowflake": {
        "url": "%s"
      }
    }
  }
`, url)
	fmt.Fprintln(w)

	// Windsurf
	subheading("Windsurf (~/.codeium/windsurf/mcp_config.json)")
	fmt.Fprintf(w, `  {
    "mcpServers": {
      "snowflake": {
        "serverUrl": "%s"
      }
    }
  }
`, url)
}
