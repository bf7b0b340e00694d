// Package supervisor is the top-level façade: it owns the flow store,
// the settings provider, the event broadcaster, one port supervisor per
// well-known gateway port, the OpenAPI helper registry, the dependency
// resolver, and the inspector manager. Its mutex guards the store read
// and dependency resolution of StartFlow and the ports/attached maps;
// port Attach/Detach run outside it and are serialized per port.
// CreateFlow and UpdateFlow do not take it and rely on the flow store's
// own locking.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/configbuilder"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/dependency"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/events"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/inspector"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/openapihelper"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/portsupervisor"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
)

const supervisorSubsystem = "Supervisor"

// execCommandContext is mockable for tests, the same idiom used by
// internal/procexec for anything that shells out.
var execCommandContext = exec.CommandContext

// Config wires every collaborator the supervisor composes. Mirrors the
// teacher orchestrator's Config/New composition pattern.
type Config struct {
	Store       *flow.Store
	Settings    *settings.Provider
	RuntimeDir  string
	ProxyBinary string // e.g. "mcp-proxy"
	OpenAPIBin  string // space-split, e.g. "uvx mcpo"
}

// Supervisor is the single source of truth for flow lifecycle.
type Supervisor struct {
	mu sync.Mutex

	store      *flow.Store
	settingsP  *settings.Provider
	runtimeDir string
	proxyBin   string
	openAPIBin string

	broadcaster *events.Broadcaster
	helpers     *openapihelper.Registry
	resolver    *dependency.Resolver
	inspector   *inspector.Manager

	ports    map[int]*portsupervisor.Port
	attached map[string]int // flow ID -> port number, only while attached
}

// New composes a Supervisor from cfg.
func New(cfg Config) *Supervisor {
	broadcaster := events.New()
	s := &Supervisor{
		store:       cfg.Store,
		settingsP:   cfg.Settings,
		runtimeDir:  cfg.RuntimeDir,
		proxyBin:    cfg.ProxyBinary,
		openAPIBin:  cfg.OpenAPIBin,
		broadcaster: broadcaster,
		helpers:     openapihelper.New(broadcaster),
		resolver:    dependency.New(cfg.Store),
		inspector:   inspector.New(cfg.Settings),
		ports:       make(map[int]*portsupervisor.Port),
		attached:    make(map[string]int),
	}
	return s
}

// Broadcaster exposes the event stream for the control API's SSE endpoint.
func (s *Supervisor) Broadcaster() *events.Broadcaster { return s.broadcaster }

// Inspector exposes the inspector manager for the control API.
func (s *Supervisor) Inspector() *inspector.Manager { return s.inspector }

// FlowState is a flow record plus its live runtime state and recent logs,
// the shape list_flows returns per spec.md §6.
type FlowState struct {
	flow.Flow
	Running   bool       `json:"running"`
	PID       int        `json:"pid,omitempty"`
	Port      int        `json:"port,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	LastEvent string     `json:"last_event,omitempty"`
	Logs      []string   `json:"logs"`
}

// ListFlows returns every flow record decorated with live state.
func (s *Supervisor) ListFlows() ([]FlowState, error) {
	flows, err := s.store.List()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FlowState, 0, len(flows))
	for _, f := range flows {
		out = append(out, s.stateForLocked(f))
	}
	return out, nil
}

func (s *Supervisor) stateForLocked(f flow.Flow) FlowState {
	st := FlowState{Flow: f}
	portNum, attached := s.attached[f.ID]
	if !attached {
		return st
	}
	port, ok := s.ports[portNum]
	if !ok {
		return st
	}
	st.Port = portNum
	st.Running = port.State() == portsupervisor.StateRunning
	st.LastEvent = port.LastEvent()
	st.Logs = port.Lines()

	if st.Running {
		st.PID = port.PID()
		if startedAt := port.StartedAt(); !startedAt.IsZero() {
			st.StartedAt = &startedAt
		}
	}
	if code, crashed := port.ExitCode(); crashed {
		st.ExitCode = &code
	}
	return st
}

// PortStatus summarizes one well-known gateway port for GET /api/status.
type PortStatus struct {
	Port    int           `json:"port"`
	Role    flow.PortRole `json:"role"`
	State   string        `json:"state"`
	Members int           `json:"members"`
}

// Status summarizes the supervisor as a whole, the payload for GET
// /api/status (spec.md §6's external interface list).
type Status struct {
	FlowCount    int          `json:"flow_count"`
	RunningCount int          `json:"running_count"`
	Ports        []PortStatus `json:"ports"`
}

// Status reports flow and port counts across the whole supervisor.
func (s *Supervisor) Status() (Status, error) {
	flows, err := s.store.List()
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	running := 0
	for _, f := range flows {
		if s.stateForLocked(f).Running {
			running++
		}
	}

	ports := make([]PortStatus, 0, len(s.ports))
	for num, p := range s.ports {
		ports = append(ports, PortStatus{
			Port:    num,
			Role:    p.Role,
			State:   p.State().String(),
			Members: len(p.Members()),
		})
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })

	return Status{FlowCount: len(flows), RunningCount: running, Ports: ports}, nil
}

// CreateFlow validates and persists a new flow record.
func (s *Supervisor) CreateFlow(f flow.Flow) (flow.Flow, error) {
	f.ApplyDefaults()
	f.DeriveTransports()
	if err := f.Validate(); err != nil {
		return flow.Flow{}, &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	return s.store.Create(f)
}

// UpdateFlow validates updated and replaces the stored record, capturing
// previous sse_url/transport and command/server_transport pairs.
func (s *Supervisor) UpdateFlow(id string, updated flow.Flow) (flow.Flow, error) {
	existing, err := s.store.Get(id)
	if err != nil {
		return flow.Flow{}, notFoundErr(err)
	}

	updated.ID = id
	updated.ApplyDefaults()
	updated.DeriveTransports()
	if err := updated.Validate(); err != nil {
		return flow.Flow{}, &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	flow.CapturePrevious(&existing, &updated)

	return s.store.Update(updated)
}

// DeleteFlow detaches the flow from its port (if attached), removes its
// deprecated per-flow config file best-effort, and deletes the record.
func (s *Supervisor) DeleteFlow(ctx context.Context, id string) error {
	s.mu.Lock()
	portNum, attached := s.attached[id]
	s.mu.Unlock()

	if attached {
		if port, ok := s.ports[portNum]; ok {
			if err := port.Detach(ctx, id); err != nil {
				logging.Warn(supervisorSubsystem, "detach on delete for flow %s: %v", id, err)
			}
		}
		s.mu.Lock()
		delete(s.attached, id)
		s.mu.Unlock()
	}

	perFlowConfig := filepath.Join(s.runtimeDir, id+".config.json")
	if err := os.Remove(perFlowConfig); err != nil && !os.IsNotExist(err) {
		logging.Warn(supervisorSubsystem, "best-effort remove of %s: %v", perFlowConfig, err)
	}

	if err := s.store.Delete(id); err != nil {
		return notFoundErr(err)
	}
	return nil
}

// StartFlow resolves the flow's dependency chain and attaches every
// member of that chain to its port, upstream-first, so a flow that
// depends on another local flow never races its own activation
// (spec.md §4.5, scenario 3). The supervisor-wide mutex only guards the
// store read, the dependency resolution, and the ports/attached map
// mutations — port.Attach runs unlocked, since it can hold the port's
// own mutex for the duration of a readiness probe (spec.md §5: probes
// run outside the supervisor-wide lock, serialized per port instead).
func (s *Supervisor) StartFlow(ctx context.Context, id string) error {
	s.mu.Lock()
	f, err := s.store.Get(id)
	if err != nil {
		s.mu.Unlock()
		return notFoundErr(err)
	}

	chain, err := s.resolver.ResolveChain(f, s.settingsP.Get())
	if err != nil {
		s.mu.Unlock()
		return &Error{Kind: KindValidation, Message: "dependency resolution failed", Err: err}
	}
	s.mu.Unlock()

	for _, cf := range chain {
		portNum := s.portNumberFor(cf)

		s.mu.Lock()
		port := s.getOrCreatePortLocked(portNum, cf.Role())
		s.mu.Unlock()

		if err := port.Attach(ctx, cf.ID); err != nil {
			if _, ok := err.(*portsupervisor.SpawnError); ok {
				return &Error{Kind: KindBinaryMissing, Message: err.Error(), Err: err}
			}
			return &Error{Kind: KindReadinessTimeout, Message: err.Error(), Err: err}
		}

		s.mu.Lock()
		s.attached[cf.ID] = portNum
		s.mu.Unlock()
	}
	return nil
}

// StopFlow detaches id from its port, leaving any upstream dependency
// flows that were activated alongside it running (spec.md §4.5,
// scenario 3: "stop of B leaves A running"). As in StartFlow, the
// supervisor-wide mutex only guards the attached/ports map accesses;
// port.Detach itself runs unlocked.
func (s *Supervisor) StopFlow(ctx context.Context, id string) error {
	s.mu.Lock()
	portNum, attached := s.attached[id]
	if !attached {
		s.mu.Unlock()
		return &Error{Kind: KindAlreadyStopped, Message: fmt.Sprintf("flow %s is not attached to any port", id)}
	}

	port, ok := s.ports[portNum]
	if !ok {
		delete(s.attached, id)
		s.mu.Unlock()
		return &Error{Kind: KindAlreadyStopped, Message: fmt.Sprintf("flow %s is not attached to any port", id)}
	}
	s.mu.Unlock()

	if err := port.Detach(ctx, id); err != nil {
		return &Error{Kind: KindReadinessTimeout, Message: err.Error(), Err: err}
	}

	s.mu.Lock()
	delete(s.attached, id)
	s.mu.Unlock()
	return nil
}

// TestResult reports the argv and port a start_flow would use, without
// actually starting anything.
type TestResult struct {
	Port int      `json:"port"`
	Argv []string `json:"argv"`
}

// TestFlow verifies the gateway binary for id's role is executable by
// invoking it with --version (any exit code is accepted), then reports
// the argv/port a real start would use.
func (s *Supervisor) TestFlow(ctx context.Context, id string) (TestResult, error) {
	f, err := s.store.Get(id)
	if err != nil {
		return TestResult{}, notFoundErr(err)
	}

	role := f.Role()
	portNum := s.portNumberForRole(role)
	binaryTokens := s.binaryTokensForRole(role)

	cmd := execCommandContext(ctx, binaryTokens[0], append(binaryTokens[1:], "--version")...)
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.Error); ok {
			return TestResult{}, &Error{Kind: KindBinaryMissing, Message: binaryTokens[0] + " not found", Err: err}
		}
		// Any other exit status is accepted per spec.md §6.
	}

	argv := s.wouldBeArgv(role, portNum, binaryTokens)
	return TestResult{Port: portNum, Argv: argv}, nil
}

func (s *Supervisor) wouldBeArgv(role flow.PortRole, portNum int, binaryTokens []string) []string {
	if role == flow.PortRoleOpenAPI {
		path := filepath.Join(s.runtimeDir, fmt.Sprintf("port-%d-openapi.config.json", portNum))
		argv := append([]string{}, binaryTokens...)
		return append(argv, "--port", strconv.Itoa(portNum), "--config", path, "--hot-reload")
	}
	path := filepath.Join(s.runtimeDir, fmt.Sprintf("port-%d.config.json", portNum))
	return []string{binaryTokens[0], "-config", path}
}

// Logs returns the last <=200 output lines of the child currently
// serving id, or nil if it is not attached to a running port.
func (s *Supervisor) Logs(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	portNum, attached := s.attached[id]
	if !attached {
		return nil
	}
	p, ok := s.ports[portNum]
	if !ok {
		return nil
	}
	return p.Lines()
}

func (s *Supervisor) getOrCreatePortLocked(number int, role flow.PortRole) *portsupervisor.Port {
	if p, ok := s.ports[number]; ok {
		return p
	}
	p := portsupervisor.New(number, role, s.buildFuncFor(number, role), s.broadcaster, s.helpers, nil)
	s.ports[number] = p
	return p
}

func (s *Supervisor) buildFuncFor(portNum int, role flow.PortRole) portsupervisor.BuildFunc {
	return func(ctx context.Context, memberIDs []string) (*configbuilder.Result, error) {
		flows := make([]flow.Flow, 0, len(memberIDs))
		for _, id := range memberIDs {
			f, err := s.store.Get(id)
			if err != nil {
				continue
			}
			flows = append(flows, f)
		}

		in := configbuilder.Input{
			Flows:          flows,
			Port:           portNum,
			Settings:       s.settingsP.Get(),
			Role:           role,
			RuntimeDir:     s.runtimeDir,
			ProxyBinary:    s.proxyBin,
			OpenAPIBinary:  s.openAPIBin,
			ResolveOpenAPI: s.helpers.Ensure,
		}
		return configbuilder.Build(ctx, in)
	}
}

func (s *Supervisor) portNumberFor(f flow.Flow) int {
	return s.portNumberForRole(f.Role())
}

func (s *Supervisor) portNumberForRole(role flow.PortRole) int {
	snap := s.settingsP.Get()
	switch role {
	case flow.PortRoleOpenAPI:
		return snap.OpenAPIPort
	case flow.PortRoleStream:
		return snap.StreamPort
	default:
		return snap.SSEPort
	}
}

func (s *Supervisor) binaryTokensForRole(role flow.PortRole) []string {
	if role == flow.PortRoleOpenAPI {
		return strings.Fields(s.openAPIBin)
	}
	return []string{s.proxyBin}
}

func notFoundErr(err error) error {
	return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
}
