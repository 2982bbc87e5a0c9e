package main

import (
	"flag"
	"os"

	"github.com/sfmcp/snowflake-mcp/internal/configure"
)

func runConfigure() error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (overrides SFMCP_CONFIG_PATH)")
	fs.Parse(os.Args[2:])

	path := *configPath
	if path == "" {
		path = os.Getenv("SFMCP_CONFIG_PATH")
	}
	if path == "" {
		path = ".gosfmcp/config.json"
	}

	return configure.Run(path)
}
