package cmd

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/apiclient"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/events"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"

	"github.com/stretchr/testify/require"
)

func TestClientEvents_ReceivesFlowStarted(t *testing.T) {
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

	streamCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	received := make(chan events.Event, 1)
	go func() {
		_ = client.Events(streamCtx, func(evt events.Event) {
			select {
			case received <- evt:
			default:
			}
		})
	}()

	// Give the SSE subscription time to establish before the flow starts.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.StartFlow(ctx, created.ID))

	select {
	case evt := <-received:
		require.Equal(t, events.EventFlowStarted, evt.Type)
		var payload events.FlowStartedPayload
		require.NoError(t, json.Unmarshal(evt.Payload, &payload))
		require.Equal(t, created.ID, payload.FlowID)
	case <-streamCtx.Done():
		t.Fatal("did not receive a flow_started event in time")
	}
}
