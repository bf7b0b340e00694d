package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	getEndpoint     string
	getOutputFormat string
	getShowLogs     bool
)

// getCmd shows one flow's full record and live state.
var getCmd = &cobra.Command{
	Use:   "get <name-or-id>",
	Short: "Show one flow's details",
	Long: `Shows a single flow's full record (source/target endpoints,
transport, auto-start) plus its live runtime state.

Use --logs to also print its recent buffered output lines.`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)

	getCmd.Flags().StringVar(&getEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
	getCmd.Flags().StringVarP(&getOutputFormat, "output", "o", "table", "Output format: table, json, or yaml")
	getCmd.Flags().BoolVar(&getShowLogs, "logs", false, "Also print the flow's recent log lines")
}

func runGet(cmd *cobra.Command, args []string) error {
	client := apiclient.New(getEndpoint)
	ctx := cmd.Context()

	f, err := client.GetFlow(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get flow: %w", err)
	}

	switch getOutputFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	case "yaml":
		yamlData, err := yaml.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshal flow as yaml: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(yamlData)
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("Name:"), f.Name)
	fmt.Fprintf(out, "%s %s\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("Route:"), f.RouteOrName())
	if f.Description != "" {
		fmt.Fprintf(out, "%s %s\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("Description:"), f.Description)
	}
	fmt.Fprintf(out, "%s %s -> %s\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("Endpoints:"), f.SourceType, f.TargetType)
	fmt.Fprintf(out, "%s %s\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("Transport:"), f.Transport)
	running := text.FgRed.Sprint("no")
	if f.Running {
		running = text.FgGreen.Sprint("yes")
	}
	fmt.Fprintf(out, "%s %s\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("Running:"), running)
	if f.Running {
		fmt.Fprintf(out, "%s %d\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("Port:"), f.Port)
		fmt.Fprintf(out, "%s %d\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("PID:"), f.PID)
	}
	if f.ExitCode != nil {
		fmt.Fprintf(out, "%s %d\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("Last exit code:"), *f.ExitCode)
	}

	if getShowLogs {
		lines, err := client.Logs(ctx, f.ID)
		if err != nil {
			return fmt.Errorf("get logs: %w", err)
		}
		fmt.Fprintf(out, "\n%s\n", text.Colors{text.FgHiBlue, text.Bold}.Sprint("Logs:"))
		for _, line := range lines {
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
