package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"

	"github.com/spf13/cobra"
)

// versionCheckTimeout bounds how long version waits for a reachable supervisor.
const versionCheckTimeout = 3 * time.Second

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version and the supervisor's reachability",
		Long: `Displays the mcp-proxy-studio CLI version and, if a supervisor
is reachable at --endpoint, confirms it is responding.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mcp-proxy-studio version %s\n", rootCmd.Version)

			ctx, cancel := context.WithTimeout(context.Background(), versionCheckTimeout)
			defer cancel()

			client := apiclient.New(endpoint)
			if err := client.Ping(ctx); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nSupervisor: (not reachable at %s)\n", endpoint)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSupervisor: running at %s\n", endpoint)
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
	return cmd
}
