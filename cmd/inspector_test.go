package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/inspector"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/procexec"

	"github.com/stretchr/testify/require"
)

func TestRunInspectorStartStopState(t *testing.T) {
	srv := newTestSupervisorServer(t)
	inspectorEndpoint = srv.URL

	origSpawn := inspector.SpawnFunc
	inspector.SpawnFunc = func(ctx context.Context, name string, argv []string, env []string, dir string, sink procexec.LineSink) (*procexec.Process, error) {
		go sink("inspector is up", false)
		return procexec.Spawn(ctx, "sleep", []string{"5"}, nil, "", sink)
	}
	t.Cleanup(func() { inspector.SpawnFunc = origSpawn })

	var startOut bytes.Buffer
	inspectorStartCmd.SetOut(&startOut)
	require.NoError(t, runInspectorStart(inspectorStartCmd, nil))
	require.Contains(t, startOut.String(), "Inspector ready:")

	var stateOut bytes.Buffer
	inspectorStateCmd.SetOut(&stateOut)
	require.NoError(t, runInspectorState(inspectorStateCmd, nil))
	require.Contains(t, stateOut.String(), "Inspector running")

	var stopOut bytes.Buffer
	inspectorStopCmd.SetOut(&stopOut)
	require.NoError(t, runInspectorStop(inspectorStopCmd, nil))
	require.Contains(t, stopOut.String(), "Inspector stopped.")

	var finalState bytes.Buffer
	inspectorStateCmd.SetOut(&finalState)
	require.NoError(t, runInspectorState(inspectorStateCmd, nil))
	require.Contains(t, finalState.String(), "not running")
}
