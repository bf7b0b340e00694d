package cmd

import (
	"os"
	"path/filepath"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// rootCmd is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mcp-proxy-studio",
	Short: "Supervise and inspect mcp-proxy flows",
	Long: `mcp-proxy-studio runs and supervises mcp-proxy/mcpo gateway
processes on behalf of one or more "flows" — each flow bridges a
single upstream MCP server (stdio, SSE, or streamable HTTP) onto a
shared per-port gateway.

Run 'mcp-proxy-studio serve' to start the supervisor, then use
'create', 'start', 'stop', 'list', 'get', 'test' and 'events' from
another terminal (or 'shell' for an interactive REPL) to manage flows.`,
	SilenceUsage: true,
}

func SetVersion(v string) {
	rootCmd.Version = v
}

func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcp-proxy-studio version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

// defaultEndpoint resolves the control API endpoint: the
// MCP_PROXY_STUDIO_ENDPOINT environment variable, falling back to
// apiclient.DefaultEndpoint.
func defaultEndpoint() string {
	if v := os.Getenv(apiclient.EndpointEnvVar); v != "" {
		return v
	}
	return apiclient.DefaultEndpoint
}

// defaultDataDir resolves the data directory: $MCP_PROXY_STUDIO_DATA_DIR,
// falling back to ~/.local/share/mcp-proxy-studio.
func defaultDataDir() string {
	if v := os.Getenv("MCP_PROXY_STUDIO_DATA_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mcp-proxy-studio"
	}
	return filepath.Join(home, ".local", "share", "mcp-proxy-studio")
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
