package cmd

import (
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"

	"github.com/spf13/cobra"
)

var deleteEndpoint string

// deleteCmd removes a flow record, detaching it first if attached.
var deleteCmd = &cobra.Command{
	Use:   "delete <name-or-id>",
	Short: "Delete a flow",
	Long: `Removes a flow's record. If the flow is currently attached to a
port it is detached first, the same way stop would, before the record
is deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringVar(&deleteEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
}

func runDelete(cmd *cobra.Command, args []string) error {
	client := apiclient.New(deleteEndpoint)
	ctx := cmd.Context()

	f, err := client.GetFlow(ctx, args[0])
	if err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}
	if err := client.DeleteFlow(ctx, f.ID); err != nil {
		return fmt.Errorf("delete flow: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted flow %q\n", f.Name)
	return nil
}
