// Package openapihelper manages the per-flow OpenAPI-to-MCP bridge
// process (`npx -y @ivotoby/openapi-mcp-server`) that a flow whose
// source is an OpenAPI spec needs in front of it before it can be
// wired into a gateway config (spec.md §4.3).
package openapihelper

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/events"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/procexec"
	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
	"golang.org/x/sync/singleflight"
)

const (
	openapihelperSubsystem = "OpenAPIHelper"
	helperBinary           = "npx"

	portOpenPollInterval = 100 * time.Millisecond
	portOpenTimeout      = 5 * time.Second
	postReadySettle      = 2500 * time.Millisecond
)

// NotReadyError reports that a helper's port never opened or the
// binary could not be found (spec.md §7, "binary-missing"/"readiness-timeout").
type NotReadyError struct {
	FlowID string
	Reason string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("openapihelper: flow %s: %s", e.FlowID, e.Reason)
}

type helper struct {
	proc *procexec.Process
	port int
}

// Registry owns one helper process per flow ID. ensure calls for the
// same flow collapse via singleflight so two concurrent config builds
// don't race to spawn duplicate helpers.
type Registry struct {
	mu      sync.Mutex
	helpers map[string]*helper

	group       singleflight.Group
	broadcaster *events.Broadcaster
}

// New creates an empty registry. broadcaster may be nil in tests.
func New(broadcaster *events.Broadcaster) *Registry {
	return &Registry{
		helpers:     make(map[string]*helper),
		broadcaster: broadcaster,
	}
}

// Ensure returns the MCP URL for flow f's OpenAPI bridge, starting a
// helper process if one isn't already running for it (spec.md §4.3).
func (r *Registry) Ensure(ctx context.Context, f flow.Flow) (string, error) {
	v, err, _ := r.group.Do(f.ID, func() (interface{}, error) {
		return r.ensureLocked(ctx, f)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Registry) ensureLocked(ctx context.Context, f flow.Flow) (string, error) {
	r.mu.Lock()
	existing, ok := r.helpers[f.ID]
	r.mu.Unlock()

	if ok {
		if err := procexec.WaitTCPOpen(ctx, "127.0.0.1:"+strconv.Itoa(existing.port)); err == nil {
			return helperURL(existing.port), nil
		}
		r.Stop(f.ID)
	}

	port, err := freeEphemeralPort()
	if err != nil {
		return "", fmt.Errorf("openapihelper: allocate port: %w", err)
	}

	argv := []string{
		"-y", "@ivotoby/openapi-mcp-server",
		"--api-base-url", f.OpenAPIBaseURL,
		"--openapi-spec", f.OpenAPISpecURL,
		"--transport", "http",
		"--port", strconv.Itoa(port),
	}

	sink := func(line string, isStderr bool) {
		if r.broadcaster != nil {
			r.broadcaster.Broadcast(events.EventLog, events.LogPayload{Subsystem: openapihelperSubsystem, Line: line})
		}
	}

	proc, err := procexec.Spawn(ctx, helperBinary, argv, nil, "", sink)
	if err != nil {
		return "", &NotReadyError{FlowID: f.ID, Reason: fmt.Sprintf("binary not found or failed to start: %v", err)}
	}

	deadline := time.Now().Add(portOpenTimeout)
	for {
		conn, dialErr := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), portOpenPollInterval)
		if dialErr == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			proc.Stop()
			return "", &NotReadyError{FlowID: f.ID, Reason: "port never opened within 5s"}
		}
		select {
		case <-ctx.Done():
			proc.Stop()
			return "", ctx.Err()
		case <-time.After(portOpenPollInterval):
		}
	}

	// Give the helper time to finish its MCP handshake init before any
	// client dials it.
	time.Sleep(postReadySettle)

	r.mu.Lock()
	r.helpers[f.ID] = &helper{proc: proc, port: port}
	r.mu.Unlock()

	logging.Info(openapihelperSubsystem, "started helper for flow %s on port %d", f.ID, port)
	return helperURL(port), nil
}

// Stop terminates the helper for flowID, if any. Idempotent.
func (r *Registry) Stop(flowID string) {
	r.mu.Lock()
	h, ok := r.helpers[flowID]
	if ok {
		delete(r.helpers, flowID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := h.proc.Stop(); err != nil {
		logging.Warn(openapihelperSubsystem, "stop helper for flow %s: %v", flowID, err)
	}
}

func helperURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/mcp", port)
}

func freeEphemeralPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}
