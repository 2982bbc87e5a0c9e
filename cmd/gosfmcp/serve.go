package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	sfmcp "github.com/sfmcp/snowflake-mcp"
	"github.com/sfmcp/snowflake-mcp/internal/meta"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

func runServe() error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (overrides SFMCP_CONFIG_PATH)")
	transport := fs.String("transport", "http", "MCP transport: http or stdio")
	account := fs.String("account", "", "Snowflake account (overrides config and SNOWFLAKE_ACCOUNT)")
	user := fs.String("user", "", "Snowflake user (overrides config and SNOWFLAKE_USER)")
	authenticator := fs.String("authenticator", "", "Authenticator (overrides config and SNOWFLAKE_AUTHENTICATOR)")
	fs.Parse(os.Args[2:])

	ctx := context.Background()

	// 1. Load ServerConfig
	serverConfig, err := loadServerConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *transport != "http" && *transport != "stdio" {
		return fmt.Errorf("unknown transport %q: must be http or stdio", *transport)
	}
	if *transport == "http" && serverConfig.Server.Port <= 0 {
		panic("gosfmcp: server.port must be > 0")
	}
	if serverConfig.PolicyPath == "" {
		return fmt.Errorf("policy_path must be set: the server refuses to start without an explicit statement-permission policy")
	}

	// 2. Resolve connection inputs: flags > environment > config file.
	// Secrets never live in the config file.
	applyConnectionOverrides(&serverConfig.Connection, *account, *user, *authenticator)
	secrets := secretsFromEnv()
	if needsPasswordPrompt(serverConfig.Connection, secrets) && isTTY(os.Stdin.Fd()) {
		if serverConfig.Connection.User == "" {
			serverConfig.Connection.User = promptInput("Username: ")
		}
		secrets.Password = promptPassword("Password: ")
	}

	// 3. Setup logger. On stdio the protocol owns stdout, so logs are
	// forced to stderr unless the config points at a file.
	loggingConfig := serverConfig.Logging
	if *transport == "stdio" && loggingConfig.Output == "stdout" {
		loggingConfig.Output = "stderr"
	}
	logger := setupLogger(loggingConfig)

	// 4. Load the statement-permission policy
	policyYAML, err := os.ReadFile(serverConfig.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", serverConfig.PolicyPath, err)
	}

	// 5. Create SnowflakeMcp instance (connects and verifies the session)
	var opts []sfmcp.Option
	if len(serverConfig.ServerHooks.BeforeStatement) > 0 || len(serverConfig.ServerHooks.AfterStatement) > 0 {
		opts = append(opts, sfmcp.WithStatementHooks(serverConfig.ServerHooks))
	}
	sfMcp, err := sfmcp.New(serverConfig.Connection, secrets, policyYAML, serverConfig.Config, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SnowflakeMcp: %w", err)
	}
	defer sfMcp.Close(ctx)
	logger.Info().Str("account", serverConfig.Connection.Account).Msg("Snowflake session established")

	// 6. Create MCP server with initialize lifecycle logging
	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		clientName := req.Params.ClientInfo.Name
		clientVersion := req.Params.ClientInfo.Version
		logger.Info().
			Str("client_name", clientName).
			Str("client_version", clientVersion).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("gosfmcp", meta.Version,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)

	sfmcp.RegisterMCPTools(mcpServer, sfMcp)

	if *transport == "stdio" {
		logger.Info().Msg("starting gosfmcp server on stdio")
		return server.ServeStdio(mcpServer)
	}

	// 7. Start HTTP server with optional health check
	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	mux := http.NewServeMux()

	// Health check endpoint (process liveness only, not Snowflake connectivity)
	if serverConfig.Server.HealthCheckEnabled {
		if serverConfig.Server.HealthCheckPath == "" {
			panic("gosfmcp: health_check_path must be set when health_check_enabled is true")
		}
		mux.HandleFunc(serverConfig.Server.HealthCheckPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Create StreamableHTTPServer with custom http.Server
	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Manually register the MCP handler — Start() does NOT register
	// when a custom *http.Server is provided via WithStreamableHTTPServer.
	mux.Handle("/mcp", streamableServer)

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting gosfmcp server")
	return streamableServer.Start(addr)
}

// loadServerConfig reads the config file. The path is resolved as
// flag > SFMCP_CONFIG_PATH > default.
func loadServerConfig(flagPath string) (*sfmcp.ServerConfig, error) {
	configPath := flagPath
	if configPath == "" {
		configPath = os.Getenv("SFMCP_CONFIG_PATH")
	}
	if configPath == "" {
		configPath = ".gosfmcp/config.json"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config sfmcp.ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// applyConnectionOverrides layers environment variables over the config
// file, then flags over both.
func applyConnectionOverrides(conn *sfmcp.ConnectionConfig, account, user, authenticator string) {
	if v := os.Getenv("SNOWFLAKE_ACCOUNT"); v != "" {
		conn.Account = v
	}
	if v := os.Getenv("SNOWFLAKE_USER"); v != "" {
		conn.User = v
	}
	if v := os.Getenv("SNOWFLAKE_AUTHENTICATOR"); v != "" {
		conn.Authenticator = v
	}
	if v := os.Getenv("SNOWFLAKE_PRIVATE_KEY_PATH"); v != "" {
		conn.PrivateKeyPath = v
	}
	if account != "" {
		conn.Account = account
	}
	if user != "" {
		conn.User = user
	}
	if authenticator != "" {
		conn.Authenticator = authenticator
	}
}

// secretsFromEnv gathers credential material from the environment.
func secretsFromEnv() sfmcp.Secrets {
	s := sfmcp.Secrets{
		Password:             os.Getenv("SNOWFLAKE_PASSWORD"),
		Token:                os.Getenv("SNOWFLAKE_TOKEN"),
		PrivateKeyPassphrase: os.Getenv("SNOWFLAKE_PRIVATE_KEY_PASSPHRASE"),
	}
	if pem := os.Getenv("SNOWFLAKE_PRIVATE_KEY"); pem != "" {
		s.PrivateKeyPEM = []byte(pem)
	}
	return s
}

// needsPasswordPrompt reports whether the resolved inputs would fail with a
// missing credential and an interactive prompt could still fix that. Only
// password-style authenticators are promptable; browser, OAuth, and key-pair
// flows never are.
func needsPasswordPrompt(conn sfmcp.ConnectionConfig, secrets sfmcp.Secrets) bool {
	switch strings.ToLower(conn.Authenticator) {
	case "", "snowflake", "username_password_mfa":
	default:
		return false
	}
	return secrets.Password == "" && secrets.Token == "" &&
		len(secrets.PrivateKeyPEM) == 0 && conn.PrivateKeyPath == ""
}

func setupLogger(config sfmcp.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
