package cmd

import (
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"

	"github.com/spf13/cobra"
)

var (
	updateEndpoint       string
	updateName           string
	updateRoute          string
	updateDescription    string
	updateSourceType     string
	updateTargetType     string
	updateSSEURL         string
	updateOpenAPIBaseURL string
	updateOpenAPISpecURL string
	updateCommand        string
	updateArgs           []string
	updateAutoStart      bool
	updateStateless      bool
)

// updateCmd replaces a flow's fields, capturing sse_url/command history
// the same way the supervisor's UpdateFlow does.
var updateCmd = &cobra.Command{
	Use:   "update <name-or-id>",
	Short: "Update a flow",
	Long: `Replaces a flow's fields. Only flags explicitly given on the
command line are changed; every other field keeps its current value.

Example:
  mcp-proxy-studio update weather --sse-url https://new-upstream.example.com/sse`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().StringVar(&updateEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
	updateCmd.Flags().StringVar(&updateName, "name", "", "Flow name")
	updateCmd.Flags().StringVar(&updateRoute, "route", "", "URL path segment this flow is reachable under")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "Human-readable description")
	updateCmd.Flags().StringVar(&updateSourceType, "source-type", "", "Source endpoint type: stdio, sse, streamable_http, openapi")
	updateCmd.Flags().StringVar(&updateTargetType, "target-type", "", "Target transport: sse, streamable_http")
	updateCmd.Flags().StringVar(&updateSSEURL, "sse-url", "", "Upstream SSE/streamable-http URL")
	updateCmd.Flags().StringVar(&updateOpenAPIBaseURL, "openapi-base-url", "", "Upstream API base URL")
	updateCmd.Flags().StringVar(&updateOpenAPISpecURL, "openapi-spec-url", "", "OpenAPI spec URL")
	updateCmd.Flags().StringVar(&updateCommand, "command", "", "Command to launch")
	updateCmd.Flags().StringSliceVar(&updateArgs, "arg", nil, "Command argument (repeatable)")
	updateCmd.Flags().BoolVar(&updateAutoStart, "auto-start", false, "Attach this flow on supervisor startup")
	updateCmd.Flags().BoolVar(&updateStateless, "stateless", false, "Mark this flow's upstream session as stateless")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	client := apiclient.New(updateEndpoint)
	ctx := cmd.Context()

	existing, err := client.GetFlow(ctx, args[0])
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}

	f := existing.Flow
	flags := cmd.Flags()
	if flags.Changed("name") {
		f.Name = updateName
	}
	if flags.Changed("route") {
		f.Route = updateRoute
	}
	if flags.Changed("description") {
		f.Description = updateDescription
	}
	if flags.Changed("source-type") {
		f.SourceType = flow.EndpointType(updateSourceType)
	}
	if flags.Changed("target-type") {
		f.TargetType = flow.EndpointType(updateTargetType)
	}
	if flags.Changed("sse-url") {
		f.SSEURL = updateSSEURL
	}
	if flags.Changed("openapi-base-url") {
		f.OpenAPIBaseURL = updateOpenAPIBaseURL
	}
	if flags.Changed("openapi-spec-url") {
		f.OpenAPISpecURL = updateOpenAPISpecURL
	}
	if flags.Changed("command") {
		f.Command = updateCommand
	}
	if flags.Changed("arg") {
		f.Args = updateArgs
	}
	if flags.Changed("auto-start") {
		f.AutoStart = updateAutoStart
	}
	if flags.Changed("stateless") {
		f.Stateless = updateStateless
	}

	updated, err := client.UpdateFlow(ctx, existing.ID, f)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated flow %q (id: %s)\n", updated.Name, updated.ID)
	return nil
}
