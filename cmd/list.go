package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	pkgstrings "github.com/lucasiscovici/mcp-proxy-studio/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	listEndpoint     string
	listOutputFormat string
)

// listCmd lists every registered flow with its live runtime state.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List flows",
	Long: `Lists every flow registered with the supervisor, along with
whether it is currently running, which port it is attached to, and
its process ID.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
	listCmd.Flags().StringVarP(&listOutputFormat, "output", "o", "table", "Output format: table, json, or yaml")
}

func runList(cmd *cobra.Command, args []string) error {
	client := apiclient.New(listEndpoint)
	flows, err := client.ListFlows(cmd.Context())
	if err != nil {
		return fmt.Errorf("list flows: %w", err)
	}

	switch listOutputFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(flows)
	case "yaml":
		yamlData, err := yaml.Marshal(flows)
		if err != nil {
			return fmt.Errorf("marshal flows as yaml: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(yamlData)
		return err
	}

	if len(flows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), text.Colors{text.FgHiYellow, text.Bold}.Sprint("No flows found"))
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("NAME"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("ROUTE"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("DESCRIPTION"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("SOURCE"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("TARGET"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("RUNNING"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("PORT"),
		text.Colors{text.FgHiBlue, text.Bold}.Sprint("PID"),
	})

	for _, f := range flows {
		running := text.FgRed.Sprint("no")
		if f.Running {
			running = text.FgGreen.Sprint("yes")
		}
		t.AppendRow(table.Row{
			text.Colors{text.FgHiCyan, text.Bold}.Sprint(f.Name),
			f.RouteOrName(),
			pkgstrings.TruncateDescription(f.Description, pkgstrings.DefaultDescriptionMaxLen),
			f.SourceType,
			f.TargetType,
			running,
			f.Port,
			f.PID,
		})
	}
	t.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s %s %d %s\n",
		text.Colors{text.FgHiMagenta, text.Bold}.Sprint("\U0001F4CB"),
		text.FgHiBlue.Sprint("Total:"),
		len(flows),
		text.FgHiBlue.Sprint("flows"))
	return nil
}
