package portsupervisor

import (
	"context"
	"testing"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/configbuilder"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/events"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/procexec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpawn stands in for procexec.Spawn so tests never shell out to a
// real gateway binary. It records every argv it was asked to launch and
// produces a Process that stays alive until stopped.
type fakeSpawn struct {
	calls [][]string
	procs []*procexec.Process
}

func (f *fakeSpawn) spawn(ctx context.Context, name string, argv []string, env []string, dir string, sink procexec.LineSink) (*procexec.Process, error) {
	full := append([]string{name}, argv...)
	f.calls = append(f.calls, full)
	p, err := procexec.Spawn(ctx, "sleep", []string{"5"}, nil, "", sink)
	if err == nil {
		f.procs = append(f.procs, p)
	}
	return p, err
}

func buildFuncFor(t *testing.T, binary string) BuildFunc {
	t.Helper()
	return func(ctx context.Context, memberIDs []string) (*configbuilder.Result, error) {
		return &configbuilder.Result{Argv: []string{binary, "-config", "ignored"}}, nil
	}
}

func TestAttach_TransitionsIdleToRunning(t *testing.T) {
	fs := &fakeSpawn{}
	orig := SpawnFunc
	SpawnFunc = fs.spawn
	defer func() { SpawnFunc = orig }()

	broadcaster := events.New()
	p := New(8002, flow.PortRoleSSE, buildFuncFor(t, "true"), broadcaster, nil, nil)
	assert.Equal(t, StateIdle, p.State())

	err := p.Attach(context.Background(), "flow-1")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, p.State())
	assert.ElementsMatch(t, []string{"flow-1"}, p.Members())
	require.Len(t, fs.calls, 1)

	p.Terminate(context.Background())
}

func TestDetach_LastMemberTerminates(t *testing.T) {
	fs := &fakeSpawn{}
	orig := SpawnFunc
	SpawnFunc = fs.spawn
	defer func() { SpawnFunc = orig }()

	p := New(8002, flow.PortRoleSSE, buildFuncFor(t, "true"), nil, nil, nil)
	require.NoError(t, p.Attach(context.Background(), "flow-1"))
	require.NoError(t, p.Detach(context.Background(), "flow-1"))

	assert.Equal(t, StateIdle, p.State())
	assert.Empty(t, p.Members())
}

func TestDetach_RemainingMemberTriggersRestart(t *testing.T) {
	fs := &fakeSpawn{}
	orig := SpawnFunc
	SpawnFunc = fs.spawn
	defer func() { SpawnFunc = orig }()

	p := New(8002, flow.PortRoleSSE, buildFuncFor(t, "true"), nil, nil, nil)
	require.NoError(t, p.Attach(context.Background(), "flow-1"))
	require.NoError(t, p.Attach(context.Background(), "flow-2"))
	require.Len(t, fs.calls, 2, "second attach should have restarted the child")

	require.NoError(t, p.Detach(context.Background(), "flow-1"))
	assert.Equal(t, StateRunning, p.State())
	assert.ElementsMatch(t, []string{"flow-2"}, p.Members())
	require.Len(t, fs.calls, 3, "detach with remaining members restarts again")

	p.Terminate(context.Background())
}

func TestAttach_SpawnFailureLeavesPortIdle(t *testing.T) {
	orig := SpawnFunc
	SpawnFunc = func(ctx context.Context, name string, argv []string, env []string, dir string, sink procexec.LineSink) (*procexec.Process, error) {
		return procexec.Spawn(ctx, "/no/such/binary-xyz", nil, nil, "", sink)
	}
	defer func() { SpawnFunc = orig }()

	p := New(8002, flow.PortRoleSSE, buildFuncFor(t, "/no/such/binary-xyz"), nil, nil, nil)
	err := p.Attach(context.Background(), "flow-1")
	require.Error(t, err)

	var spawnErr *SpawnError
	assert.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, StateIdle, p.State())
}

func TestTerminate_BroadcastsFlowExited(t *testing.T) {
	fs := &fakeSpawn{}
	orig := SpawnFunc
	SpawnFunc = fs.spawn
	defer func() { SpawnFunc = orig }()

	broadcaster := events.New()
	id, ch := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(id)

	p := New(8001, flow.PortRoleStream, buildFuncFor(t, "true"), broadcaster, nil, nil)
	require.NoError(t, p.Attach(context.Background(), "flow-1"))

	// drain the flow_started event from Attach
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flow_started event")
	}

	require.NoError(t, p.Terminate(context.Background()))

	select {
	case evt := <-ch:
		assert.Equal(t, events.EventFlowExited, evt.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flow_exited event")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "crashed", StateCrashed.String())
}
