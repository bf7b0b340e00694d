package cmd

import (
	"context"
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveDataDir holds the flow store and generated runtime config files.
var serveDataDir string

// serveListenAddr is the control API's bind address.
var serveListenAddr string

// serveCmd starts the supervisor process: the flow store, the port
// supervisor, and the HTTP control API other commands talk to.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the flow supervisor and its HTTP control API.",
	Long: `Starts the supervisor process: it opens the flow store, listens
for start/stop requests on the control API, and spawns mcp-proxy /
mcpo child processes on demand for each active flow.

Use 'mcp-proxy-studio create/start/stop/list' from another terminal,
or the interactive shell, to talk to the running supervisor.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, false, serveDataDir, serveListenAddr)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable verbose logging")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", defaultDataDir(), "Directory for the flow store and generated runtime config")
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", ":8080", "Control API listen address")
}
