package cmd

import (
	"fmt"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"

	"github.com/spf13/cobra"
)

var (
	createEndpoint       string
	createName           string
	createRoute          string
	createDescription    string
	createSourceType     string
	createTargetType     string
	createSSEURL         string
	createOpenAPIBaseURL string
	createOpenAPISpecURL string
	createCommand        string
	createArgs           []string
	createAutoStart      bool
	createStateless      bool
)

// createCmd registers a new flow with the supervisor.
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a flow",
	Long: `Registers a new flow with the supervisor.

A flow bridges one source endpoint (stdio command, SSE URL, streamable
HTTP URL, or an OpenAPI spec) onto one target transport (sse or
streamable_http). --route defaults to --name when omitted.

Examples:
  mcp-proxy-studio create --name weather --source-type stdio --command "uvx weather-mcp" --target-type sse
  mcp-proxy-studio create --name github --source-type sse --sse-url https://mcp.example.com/sse --target-type streamable_http`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().StringVar(&createEndpoint, "endpoint", defaultEndpoint(), "Supervisor control API endpoint")
	createCmd.Flags().StringVar(&createName, "name", "", "Flow name (required)")
	createCmd.Flags().StringVar(&createRoute, "route", "", "URL path segment this flow is reachable under (defaults to --name)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Human-readable description")
	createCmd.Flags().StringVar(&createSourceType, "source-type", "", "Source endpoint type: stdio, sse, streamable_http, openapi (required)")
	createCmd.Flags().StringVar(&createTargetType, "target-type", "", "Target transport: sse, streamable_http (required)")
	createCmd.Flags().StringVar(&createSSEURL, "sse-url", "", "Upstream SSE/streamable-http URL (for source-type sse/streamable_http)")
	createCmd.Flags().StringVar(&createOpenAPIBaseURL, "openapi-base-url", "", "Upstream API base URL (for source-type openapi)")
	createCmd.Flags().StringVar(&createOpenAPISpecURL, "openapi-spec-url", "", "OpenAPI spec URL (for source-type openapi)")
	createCmd.Flags().StringVar(&createCommand, "command", "", "Command to launch (for source-type stdio)")
	createCmd.Flags().StringSliceVar(&createArgs, "arg", nil, "Command argument (repeatable)")
	createCmd.Flags().BoolVar(&createAutoStart, "auto-start", false, "Attach this flow on supervisor startup")
	createCmd.Flags().BoolVar(&createStateless, "stateless", false, "Mark this flow's upstream session as stateless")

	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("source-type")
	_ = createCmd.MarkFlagRequired("target-type")
}

func runCreate(cmd *cobra.Command, args []string) error {
	f := flow.Flow{
		Name:           createName,
		Route:          createRoute,
		Description:    createDescription,
		SourceType:     flow.EndpointType(createSourceType),
		TargetType:     flow.EndpointType(createTargetType),
		SSEURL:         createSSEURL,
		OpenAPIBaseURL: createOpenAPIBaseURL,
		OpenAPISpecURL: createOpenAPISpecURL,
		Command:        createCommand,
		Args:           createArgs,
		AutoStart:      createAutoStart,
		Stateless:      createStateless,
	}

	client := apiclient.New(createEndpoint)
	created, err := client.CreateFlow(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("create flow: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created flow %q (id: %s)\n", created.Name, created.ID)
	return nil
}
