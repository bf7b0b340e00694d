package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"

	"github.com/stretchr/testify/require"
)

func TestRunDelete_RemovesFlow(t *testing.T) {
	srv := newTestSupervisorServer(t)
	client := apiclient.New(srv.URL)
	created, err := client.CreateFlow(context.Background(), flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	deleteEndpoint = srv.URL

	var buf bytes.Buffer
	deleteCmd.SetOut(&buf)
	require.NoError(t, runDelete(deleteCmd, []string{"echo"}))
	require.Contains(t, buf.String(), "Deleted flow \"echo\"")

	_, err = client.GetFlow(context.Background(), created.ID)
	require.Error(t, err)
}

func TestRunDelete_UnknownFlow(t *testing.T) {
	srv := newTestSupervisorServer(t)
	deleteEndpoint = srv.URL

	var buf bytes.Buffer
	deleteCmd.SetOut(&buf)
	require.Error(t, runDelete(deleteCmd, []string{"missing"}))
}
