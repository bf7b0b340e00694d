package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"

	"github.com/stretchr/testify/require"
)

func TestDispatchShellLine_ListAndStartStop(t *testing.T) {
	srv := newTestSupervisorServer(t)
	client := apiclient.New(srv.URL)
	ctx := context.Background()

	_, err := client.CreateFlow(ctx, flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dispatchShellLine(ctx, &buf, client, "list"))
	require.Contains(t, buf.String(), "echo")

	require.NoError(t, dispatchShellLine(ctx, &buf, client, "start echo"))
	require.NoError(t, dispatchShellLine(ctx, &buf, client, "stop echo"))

	err = dispatchShellLine(ctx, &buf, client, "stop echo")
	require.Error(t, err)
}

func TestDispatchShellLine_UnknownCommand(t *testing.T) {
	srv := newTestSupervisorServer(t)
	client := apiclient.New(srv.URL)

	err := dispatchShellLine(context.Background(), &bytes.Buffer{}, client, "frobnicate")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown command")
}

func TestDispatchShellLine_Test(t *testing.T) {
	srv := newTestSupervisorServer(t)
	client := apiclient.New(srv.URL)
	ctx := context.Background()

	_, err := client.CreateFlow(ctx, flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dispatchShellLine(ctx, &buf, client, "test echo"))
	require.Contains(t, buf.String(), "argv=")
}

func TestDispatchShellLine_Get(t *testing.T) {
	srv := newTestSupervisorServer(t)
	client := apiclient.New(srv.URL)
	ctx := context.Background()

	created, err := client.CreateFlow(ctx, flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dispatchShellLine(ctx, &buf, client, "get echo"))
	require.Contains(t, buf.String(), created.ID)
}

func TestDispatchShellLine_Events(t *testing.T) {
	srv := newTestSupervisorServer(t)
	client := apiclient.New(srv.URL)
	ctx := context.Background()

	created, err := client.CreateFlow(ctx, flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	origDuration := shellEventsListenDuration
	shellEventsListenDuration = 500 * time.Millisecond
	defer func() { shellEventsListenDuration = origDuration }()

	done := make(chan error, 1)
	var buf bytes.Buffer
	go func() { done <- dispatchShellLine(ctx, &buf, client, "events") }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.StartFlow(ctx, created.ID))

	require.NoError(t, <-done)
	require.Contains(t, buf.String(), "flow_started")
}

func TestShellVerbs_IncludesList(t *testing.T) {
	var encoded bytes.Buffer
	require.NoError(t, json.NewEncoder(&encoded).Encode(shellVerbs))
	require.True(t, strings.Contains(encoded.String(), "list"))
}
