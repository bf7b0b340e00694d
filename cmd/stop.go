package cmd

import (
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"

	"github.com/spf13/cobra"
)

var stopEndpoint string

// stopCmd detaches a flow from its port.
var stopCmd = &cobra.Command{
	Use:   "stop <name-or-id>",
	Short: "Stop (detach) a flow",
	Long: `Detaches a flow from its port. If it was the last flow attached
to that port, the gateway child process is terminated; otherwise the
child is restarted with the remaining flows' configuration.

Any upstream flows this flow depends on are left running.`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
	stopCmd.Flags().StringVar(&stopEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
}

func runStop(cmd *cobra.Command, args []string) error {
	client := apiclient.New(stopEndpoint)
	ctx := cmd.Context()

	f, err := client.GetFlow(ctx, args[0])
	if err != nil {
		return fmt.Errorf("stop flow: %w", err)
	}
	if err := client.StopFlow(ctx, f.ID); err != nil {
		return fmt.Errorf("stop flow: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stopped flow %q\n", f.Name)
	return nil
}
