package cmd

import (
	"fmt"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/inspector"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var inspectorEndpoint string

// inspectorReadyTimeout bounds how long `inspector start` waits for the
// inspector's URL to become available before giving up and reporting
// it as running-but-not-ready.
const inspectorReadyTimeout = 15 * time.Second

var inspectorCmd = &cobra.Command{
	Use:   "inspector",
	Short: "Manage the MCP Inspector debugging UI",
	Long: `The inspector is a single, process-wide developer UI unrelated to
flow serving. Only one instance runs at a time; starting a new one
stops whatever was already running.`,
}

var inspectorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the MCP inspector",
	Args:  cobra.NoArgs,
	RunE:  runInspectorStart,
}

var inspectorStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the MCP inspector",
	Args:  cobra.NoArgs,
	RunE:  runInspectorStop,
}

var inspectorStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show whether the MCP inspector is running",
	Args:  cobra.NoArgs,
	RunE:  runInspectorState,
}

func init() {
	rootCmd.AddCommand(inspectorCmd)
	inspectorCmd.PersistentFlags().StringVar(&inspectorEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
	inspectorCmd.AddCommand(inspectorStartCmd, inspectorStopCmd, inspectorStateCmd)
}

func runInspectorStart(cmd *cobra.Command, args []string) error {
	client := apiclient.New(inspectorEndpoint)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if _, err := client.InspectorStart(ctx); err != nil {
		return fmt.Errorf("start inspector: %w", err)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for inspector to come up..."
	s.Start()

	deadline := time.Now().Add(inspectorReadyTimeout)
	var state *inspector.State
	for time.Now().Before(deadline) {
		st, err := client.InspectorState(ctx)
		if err != nil {
			s.Stop()
			return fmt.Errorf("poll inspector state: %w", err)
		}
		if st.URL != "" {
			state = st
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	s.Stop()

	if state == nil {
		fmt.Fprintln(out, text.FgYellow.Sprint("Inspector started but did not report ready in time; check its logs."))
		return nil
	}
	fmt.Fprintf(out, "%s %s\n", text.FgGreen.Sprint("Inspector ready:"), state.URL)
	return nil
}

func runInspectorStop(cmd *cobra.Command, args []string) error {
	client := apiclient.New(inspectorEndpoint)
	if _, err := client.InspectorStop(cmd.Context()); err != nil {
		return fmt.Errorf("stop inspector: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Inspector stopped.")
	return nil
}

func runInspectorState(cmd *cobra.Command, args []string) error {
	client := apiclient.New(inspectorEndpoint)
	st, err := client.InspectorState(cmd.Context())
	if err != nil {
		return fmt.Errorf("get inspector state: %w", err)
	}

	out := cmd.OutOrStdout()
	if !st.Running {
		fmt.Fprintln(out, "Inspector is not running.")
		return nil
	}
	fmt.Fprintf(out, "Inspector running (pid %d)", st.PID)
	if st.URL != "" {
		fmt.Fprintf(out, ", url %s", st.URL)
	}
	fmt.Fprintln(out)
	return nil
}
