package cmd

import (
	"fmt"
	"strings"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"

	"github.com/spf13/cobra"
)

var testEndpoint string

// testCmd dry-runs the gateway binary a flow would use, without
// attaching it to a port or spawning a long-lived child.
var testCmd = &cobra.Command{
	Use:   "test <name-or-id>",
	Short: "Dry-run a flow's gateway binary",
	Long: `Verifies that the gateway binary a flow's port role would use
(mcp-proxy or mcpo) is executable, and prints the argv that would be
used to spawn it — without attaching the flow to a port.`,
	Args: cobra.ExactArgs(1),
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().StringVar(&testEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
}

func runTest(cmd *cobra.Command, args []string) error {
	client := apiclient.New(testEndpoint)
	ctx := cmd.Context()

	f, err := client.GetFlow(ctx, args[0])
	if err != nil {
		return fmt.Errorf("test flow: %w", err)
	}

	result, err := client.TestFlow(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("test flow: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Binary OK for flow %q (would bind port %d)\n", f.Name, result.Port)
	fmt.Fprintf(out, "argv: %s\n", strings.Join(result.Argv, " "))
	return nil
}
