// Package inspector manages the single, process-wide MCP Inspector
// child process (spec.md §4.6): a developer-facing debugging UI that is
// optional, started on demand, and unrelated to flow serving.
package inspector

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/procexec"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
)

const inspectorSubsystem = "Inspector"

// Binary is the inspector launch command. Tests replace SpawnFunc
// rather than this constant.
const Binary = "npx -y @modelcontextprotocol/inspector"

// readyPollInterval/readyTimeout bound how long WaitReady waits for a
// "proxy server listening"/"inspector is up" log line before giving up
// and returning an error. Start itself does not wait.
const (
	readyPollInterval = 200 * time.Millisecond
	readyTimeout      = 15 * time.Second
)

// SpawnFunc starts the inspector child. A package variable so tests can
// substitute a fake without a real npx/npm toolchain.
var SpawnFunc = procexec.Spawn

// State is the JSON-friendly snapshot returned by State and by Start/Stop.
type State struct {
	Running bool     `json:"running"`
	Cmd     []string `json:"cmd,omitempty"`
	URL     string   `json:"url,omitempty"`
	Port    int      `json:"port"`
	PID     int      `json:"pid,omitempty"`
}

// Manager supervises the single inspector instance. Only one can run at
// a time: starting a new one stops whatever was already running, the
// same "last start wins" behavior as the original manager.
type Manager struct {
	mu       sync.Mutex
	proc     *procexec.Process
	cmd      []string
	url      string
	ready    bool
	settings *settings.Provider
}

// New creates an idle Manager reading ports/public-host from provider.
func New(provider *settings.Provider) *Manager {
	return &Manager{settings: provider}
}

// Start stops any existing inspector process, generates a fresh 64-hex
// auth token, and launches a new one. It returns once the child has
// been spawned; readiness (URL becoming non-empty in State) happens
// asynchronously as its logs are observed.
func (m *Manager) Start(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	s := m.settings.Get()
	token, err := generateToken()
	if err != nil {
		return State{}, fmt.Errorf("inspector: generate token: %w", err)
	}

	env := []string{
		"MCP_PROXY_AUTH_TOKEN=" + token,
		"MCP_AUTO_OPEN_ENABLED=false",
		"CLIENT_PORT=" + strconv.Itoa(s.InspectorClientPort),
		"SERVER_PORT=" + strconv.Itoa(s.InspectorServerPort),
		"HOST=" + s.Host,
	}

	publicHost := s.InspectorPublicHost
	if publicHost == "" {
		publicHost = "localhost"
	}
	url := fmt.Sprintf("http://%s:%d/?MCP_PROXY_AUTH_TOKEN=%s", publicHost, s.InspectorClientPort, token)
	if s.InspectorServerPort != settings.DefaultInspectorWellKnownServerPort {
		url += "&MCP_PROXY_PORT=" + strconv.Itoa(s.InspectorServerPort)
	}

	cmd := strings.Fields(Binary)
	m.cmd = cmd
	m.url = url
	m.ready = false

	logging.Info(inspectorSubsystem, "starting inspector url=%s cmd=%s", url, strings.Join(cmd, " "))

	sink := func(line string, isStderr bool) {
		m.observeLine(line)
	}

	proc, err := SpawnFunc(ctx, cmd[0], cmd[1:], env, "", sink)
	if err != nil {
		m.cmd, m.url = nil, ""
		return State{}, fmt.Errorf("inspector: spawn %s: %w", cmd[0], err)
	}
	m.proc = proc

	return m.stateLocked(), nil
}

// observeLine marks the inspector ready once its own startup log line
// is seen, the same case-insensitive substring match the original
// manager used.
func (m *Manager) observeLine(line string) {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "proxy server listening") || strings.Contains(lower, "inspector is up") {
		m.mu.Lock()
		m.ready = true
		m.mu.Unlock()
	}
}

// Stop idempotently terminates the inspector process, if any.
func (m *Manager) Stop() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	return m.stateLocked()
}

func (m *Manager) stopLocked() {
	if m.proc == nil {
		return
	}
	if err := m.proc.Stop(); err != nil {
		logging.Warn(inspectorSubsystem, "stop: %v", err)
	}
	m.proc = nil
	m.cmd = nil
	m.url = ""
	m.ready = false
}

// State returns the current run/ready state. URL is only populated once
// the readiness log line has been observed.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	s := m.settings.Get()
	st := State{Port: s.InspectorClientPort}
	if m.proc != nil {
		select {
		case <-m.proc.Exited():
			st.Running = false
		default:
			st.Running = true
			st.PID = m.proc.PID()
		}
	}
	st.Cmd = m.cmd
	if m.ready {
		st.URL = m.url
	}
	return st
}

// WaitReady blocks until either the ready log line is observed or ctx
// is cancelled/times out, whichever comes first, for callers that want a
// synchronous "did it come up" answer rather than polling State
// themselves. The control API does not call it; it returns after Start.
func (m *Manager) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	deadline := time.Now().Add(readyTimeout)
	for {
		m.mu.Lock()
		ready := m.ready
		m.mu.Unlock()
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("inspector: not ready within %s", readyTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
