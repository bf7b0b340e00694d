package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"

	"github.com/stretchr/testify/require"
)

func TestRunTest_ReportsArgv(t *testing.T) {
	srv := newTestSupervisorServer(t)
	client := apiclient.New(srv.URL)
	_, err := client.CreateFlow(context.Background(), flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	testEndpoint = srv.URL
	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	require.NoError(t, runTest(testCmd, []string{"echo"}))
	require.Contains(t, buf.String(), "Binary OK for flow \"echo\"")
	require.Contains(t, buf.String(), "argv:")
}
