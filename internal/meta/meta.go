// Package meta holds build metadata shared across the CLI commands.
package meta

// Version is the gosfmcp release version.
const Version = "1.0.0"
