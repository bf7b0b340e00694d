package apiclient

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/controlapi"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/portsupervisor"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/procexec"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	store, err := flow.NewStore(filepath.Join(t.TempDir(), "flows.json"))
	require.NoError(t, err)

	orig := portsupervisor.SpawnFunc
	portsupervisor.SpawnFunc = func(ctx context.Context, name string, argv []string, env []string, dir string, sink procexec.LineSink) (*procexec.Process, error) {
		return procexec.Spawn(ctx, "sleep", []string{"5"}, nil, "", sink)
	}
	t.Cleanup(func() { portsupervisor.SpawnFunc = orig })

	sup := supervisor.New(supervisor.Config{
		Store:       store,
		Settings:    settings.NewProvider(),
		RuntimeDir:  t.TempDir(),
		ProxyBinary: "true",
		OpenAPIBin:  "true",
	})
	srv := httptest.NewServer(controlapi.New(sup))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestClient_CreateListGetFlow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, err := c.CreateFlow(ctx, flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	flows, err := c.ListFlows(ctx)
	require.NoError(t, err)
	require.Len(t, flows, 1)

	found, err := c.GetFlow(ctx, "echo")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestClient_GetFlow_NotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.GetFlow(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestClient_StartStopFlow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, err := c.CreateFlow(ctx, flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	require.NoError(t, c.StartFlow(ctx, created.ID))
	require.NoError(t, c.StopFlow(ctx, created.ID))

	err = c.StopFlow(ctx, created.ID)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)
}

func TestClient_InspectorState(t *testing.T) {
	c := newTestClient(t)
	st, err := c.InspectorState(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Running)
}
