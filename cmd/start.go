package cmd

import (
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"

	"github.com/spf13/cobra"
)

var startEndpoint string

// startCmd attaches a flow (and its dependency chain) to its port.
var startCmd = &cobra.Command{
	Use:   "start <name-or-id>",
	Short: "Start (attach) a flow",
	Long: `Attaches a flow to its port, spawning the gateway child process
if it isn't already running. If the flow depends on other flows, each
upstream dependency is attached first, in dependency order.

Starting a flow that is already attached is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&startEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
}

func runStart(cmd *cobra.Command, args []string) error {
	client := apiclient.New(startEndpoint)
	ctx := cmd.Context()

	f, err := client.GetFlow(ctx, args[0])
	if err != nil {
		return fmt.Errorf("start flow: %w", err)
	}
	if err := client.StartFlow(ctx, f.ID); err != nil {
		return fmt.Errorf("start flow: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Started flow %q\n", f.Name)
	return nil
}
