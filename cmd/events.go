package cmd

import (
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/events"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var eventsEndpoint string

// eventsCmd tails the supervisor's event stream until interrupted.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail the supervisor's event stream",
	Long: `Streams flow lifecycle events (flow_started, flow_exited, and
the log lines a flow's gateway process emits) from the control API's
Server-Sent Events endpoint until interrupted with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringVar(&eventsEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
}

func runEvents(cmd *cobra.Command, args []string) error {
	client := apiclient.New(eventsEndpoint)
	out := cmd.OutOrStdout()

	return client.Events(cmd.Context(), func(evt events.Event) {
		switch evt.Type {
		case events.EventFlowStarted:
			fmt.Fprintf(out, "%s %s\n", text.Colors{text.FgGreen, text.Bold}.Sprint("[started]"), string(evt.Payload))
		case events.EventFlowExited:
			fmt.Fprintf(out, "%s %s\n", text.Colors{text.FgRed, text.Bold}.Sprint("[exited]"), string(evt.Payload))
		default:
			fmt.Fprintf(out, "%s %s\n", text.Colors{text.FgHiBlack}.Sprint("["+string(evt.Type)+"]"), string(evt.Payload))
		}
	})
}
