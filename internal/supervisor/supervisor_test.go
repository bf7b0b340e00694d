package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/portsupervisor"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/procexec"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	store, err := flow.NewStore(filepath.Join(t.TempDir(), "flows.json"))
	require.NoError(t, err)

	return New(Config{
		Store:       store,
		Settings:    settings.NewProvider(),
		RuntimeDir:  t.TempDir(),
		ProxyBinary: "true",
		OpenAPIBin:  "true",
	})
}

// fakeSpawn substitutes a real, short-lived "sleep" process for every
// gateway child so tests never need the actual mcp-proxy/mcpo binaries.
func useFakeSpawn(t *testing.T) {
	t.Helper()
	orig := portsupervisor.SpawnFunc
	portsupervisor.SpawnFunc = func(ctx context.Context, name string, argv []string, env []string, dir string, sink procexec.LineSink) (*procexec.Process, error) {
		return procexec.Spawn(ctx, "sleep", []string{"5"}, nil, "", sink)
	}
	t.Cleanup(func() { portsupervisor.SpawnFunc = orig })
}

func TestCreateFlow_RejectsInvalidRecord(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.CreateFlow(flow.Flow{Name: "bad", SourceType: flow.EndpointStdio})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCreateFlow_PersistsValidRecord(t *testing.T) {
	s := newTestSupervisor(t)
	f, err := s.CreateFlow(flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
		Args:       []string{"hi"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)

	flows, err := s.ListFlows()
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "echo", flows[0].Name)
	assert.False(t, flows[0].Running)
}

func TestUpdateFlow_NotFound(t *testing.T) {
	s := newTestSupervisor(t)
	_, err := s.UpdateFlow("missing", flow.Flow{Name: "x", SourceType: flow.EndpointStdio, TargetType: flow.EndpointSSE, Command: "/bin/echo"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStartFlow_AttachesToPortAndListShowsRunning(t *testing.T) {
	useFakeSpawn(t)
	s := newTestSupervisor(t)

	f, err := s.CreateFlow(flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	require.NoError(t, s.StartFlow(context.Background(), f.ID))

	flows, err := s.ListFlows()
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.True(t, flows[0].Running)
	assert.Equal(t, 8002, flows[0].Port)
}

func TestStopFlow_AlreadyStopped(t *testing.T) {
	useFakeSpawn(t)
	s := newTestSupervisor(t)

	f, err := s.CreateFlow(flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	err = s.StopFlow(context.Background(), f.ID)
	assert.True(t, errors.Is(err, ErrAlreadyStopped))
}

func TestStartThenStopFlow_RoundTrips(t *testing.T) {
	useFakeSpawn(t)
	s := newTestSupervisor(t)

	f, err := s.CreateFlow(flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	require.NoError(t, s.StartFlow(context.Background(), f.ID))
	require.NoError(t, s.StopFlow(context.Background(), f.ID))

	err = s.StopFlow(context.Background(), f.ID)
	assert.True(t, errors.Is(err, ErrAlreadyStopped))
}

func TestDeleteFlow_DetachesAndRemoves(t *testing.T) {
	useFakeSpawn(t)
	s := newTestSupervisor(t)

	f, err := s.CreateFlow(flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)
	require.NoError(t, s.StartFlow(context.Background(), f.ID))

	require.NoError(t, s.DeleteFlow(context.Background(), f.ID))

	_, err = s.store.Get(f.ID)
	assert.Error(t, err)

	err = s.DeleteFlow(context.Background(), f.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTestFlow_BinaryMissing(t *testing.T) {
	s := newTestSupervisor(t)
	s.proxyBin = "/no/such/binary-xyz"

	f, err := s.CreateFlow(flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	_, err = s.TestFlow(context.Background(), f.ID)
	assert.True(t, errors.Is(err, ErrBinaryMissing))
}

func TestTestFlow_AcceptsAnyExitCode(t *testing.T) {
	s := newTestSupervisor(t)
	orig := execCommandContext
	execCommandContext = func(ctx context.Context, name string, arg ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}
	t.Cleanup(func() { execCommandContext = orig })

	f, err := s.CreateFlow(flow.Flow{
		Name:       "echo",
		SourceType: flow.EndpointStdio,
		TargetType: flow.EndpointSSE,
		Command:    "/bin/echo",
	})
	require.NoError(t, err)

	result, err := s.TestFlow(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, 8002, result.Port)
	assert.Contains(t, result.Argv, "-config")
}
