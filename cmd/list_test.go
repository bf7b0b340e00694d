package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/controlapi"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/portsupervisor"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/procexec"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/supervisor"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestSupervisorServer(t *testing.T) *httptest.Server {
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
	return srv
}

func TestRunList_JSONOutput_Empty(t *testing.T) {
	srv := newTestSupervisorServer(t)
	listEndpoint = srv.URL
	listOutputFormat = "json"

	var buf bytes.Buffer
	listCmd.SetOut(&buf)
	require.NoError(t, runList(listCmd, nil))

	var flows []supervisor.FlowState
	require.NoError(t, json.Unmarshal(buf.Bytes(), &flows))
	require.Empty(t, flows)
}

func TestRunList_JSONOutput_WithFlow(t *testing.T) {
	srv := newTestSupervisorServer(t)
	listEndpoint = srv.URL
	listOutputFormat = "json"

	// Create through the real command plumbing rather than raw HTTP,
	// keeping this test focused on list's output formatting.
	createEndpoint = srv.URL
	createName = "echo"
	createSourceType = string(flow.EndpointStdio)
	createTargetType = string(flow.EndpointSSE)
	createCommand = "/bin/echo"
	var createBuf bytes.Buffer
	createCmd.SetOut(&createBuf)
	require.NoError(t, runCreate(createCmd, nil))

	var listBuf bytes.Buffer
	listCmd.SetOut(&listBuf)
	require.NoError(t, runList(listCmd, nil))

	var flows []supervisor.FlowState
	require.NoError(t, json.Unmarshal(listBuf.Bytes(), &flows))
	require.Len(t, flows, 1)
	require.Equal(t, "echo", flows[0].Name)
}

func TestRunList_TableOutput_TruncatesLongDescription(t *testing.T) {
	srv := newTestSupervisorServer(t)
	listEndpoint = srv.URL
	listOutputFormat = "table"

	createEndpoint = srv.URL
	createName = "echo"
	createSourceType = string(flow.EndpointStdio)
	createTargetType = string(flow.EndpointSSE)
	createCommand = "/bin/echo"
	createDescription = "this description is deliberately longer than the sixty character truncation limit so it must be cut off with an ellipsis"
	t.Cleanup(func() { createDescription = "" })
	var createBuf bytes.Buffer
	createCmd.SetOut(&createBuf)
	require.NoError(t, runCreate(createCmd, nil))

	var listBuf bytes.Buffer
	listCmd.SetOut(&listBuf)
	require.NoError(t, runList(listCmd, nil))
	require.Contains(t, listBuf.String(), "...")
	require.NotContains(t, listBuf.String(), createDescription)
}

func TestRunList_YAMLOutput_WithFlow(t *testing.T) {
	srv := newTestSupervisorServer(t)
	listEndpoint = srv.URL
	listOutputFormat = "yaml"

	createEndpoint = srv.URL
	createName = "echo"
	createSourceType = string(flow.EndpointStdio)
	createTargetType = string(flow.EndpointSSE)
	createCommand = "/bin/echo"
	var createBuf bytes.Buffer
	createCmd.SetOut(&createBuf)
	require.NoError(t, runCreate(createCmd, nil))

	var listBuf bytes.Buffer
	listCmd.SetOut(&listBuf)
	require.NoError(t, runList(listCmd, nil))

	var flows []supervisor.FlowState
	require.NoError(t, yaml.Unmarshal(listBuf.Bytes(), &flows))
	require.Len(t, flows, 1)
	require.Equal(t, "echo", flows[0].Name)
}
