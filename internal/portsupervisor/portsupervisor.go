// Package portsupervisor implements the per-port state machine of
// spec.md §4.4: one logical gateway child process per well-known port,
// with flow membership, restart-on-change, and readiness broadcasting.
package portsupervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/configbuilder"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/events"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/openapihelper"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/procexec"
	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
)

// State is one of the five per-port lifecycle states of spec.md §4.4.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// BuildFunc produces the gateway config/argv for this port given the
// current member flow IDs. Supplied by internal/supervisor, which owns
// the flow store and settings this port supervisor doesn't need to
// know about.
type BuildFunc func(ctx context.Context, memberIDs []string) (*configbuilder.Result, error)

// SpawnFunc starts the gateway child process. A package variable so
// tests can substitute a fake without a real mcp-proxy/mcpo binary.
var SpawnFunc = procexec.Spawn

// StateChangeCallback is notified on every state transition, outside
// any lock (spec.md §5: log pumps, broadcasters run outside the
// supervisor-wide mutex).
type StateChangeCallback func(port int, old, new State)

// Port owns at most one child process for a single well-known gateway
// port (sse_port, stream_port, or openapi_port) and the set of flows
// currently attached to it. All mutation happens serialized under mu,
// matching the "restarts are serialized" ordering guarantee of §5.
type Port struct {
	Number int
	Role   flow.PortRole

	mu        sync.Mutex
	members   map[string]struct{}
	state     State
	proc      *procexec.Process
	exitCode  int
	startedAt time.Time
	lastEvent string

	build       BuildFunc
	broadcaster *events.Broadcaster
	helpers     *openapihelper.Registry
	onState     StateChangeCallback
}

// New creates a port supervisor. broadcaster and helpers may be nil in
// tests; onState may be nil if nobody needs transition notifications.
func New(number int, role flow.PortRole, build BuildFunc, broadcaster *events.Broadcaster, helpers *openapihelper.Registry, onState StateChangeCallback) *Port {
	return &Port{
		Number:      number,
		Role:        role,
		members:     make(map[string]struct{}),
		state:       StateIdle,
		build:       build,
		broadcaster: broadcaster,
		helpers:     helpers,
		onState:     onState,
	}
}

// State returns the port's current lifecycle state.
func (p *Port) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Lines returns the current child's buffered output, or nil if no child
// is running.
func (p *Port) Lines() []string {
	p.mu.Lock()
	proc := p.proc
	p.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.Lines()
}

// PID returns the running child's process ID, or 0 if no child is
// currently running.
func (p *Port) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.proc == nil {
		return 0
	}
	return p.proc.PID()
}

// StartedAt returns when the currently running child was spawned, or the
// zero Time if no child is running.
func (p *Port) StartedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.proc == nil {
		return time.Time{}
	}
	return p.startedAt
}

// ExitCode reports the last child's exit code and whether it crashed
// (exited on its own rather than via a requested Terminate/restart).
func (p *Port) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.state == StateCrashed
}

// LastEvent reports the most recent lifecycle transition this port made
// ("starting", "started", "stopping", "stopped", "crashed"), or "" if
// the port has never left idle.
func (p *Port) LastEvent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastEvent
}

// Members returns a snapshot of currently attached flow IDs.
func (p *Port) Members() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.members))
	for id := range p.members {
		out = append(out, id)
	}
	return out
}

// Attach adds flowID to this port's membership and restarts the child
// so the new config takes effect (spec.md §4.4, "attach").
func (p *Port) Attach(ctx context.Context, flowID string) error {
	p.mu.Lock()
	if _, already := p.members[flowID]; already {
		p.mu.Unlock()
		return nil
	}
	p.members[flowID] = struct{}{}
	p.mu.Unlock()
	return p.restart(ctx)
}

// Detach removes flowID from membership. If no members remain the
// child is terminated outright; otherwise it is restarted without that
// flow's entry (spec.md §4.4, "detach").
func (p *Port) Detach(ctx context.Context, flowID string) error {
	p.mu.Lock()
	delete(p.members, flowID)
	empty := len(p.members) == 0
	p.mu.Unlock()

	if empty {
		return p.Terminate(ctx)
	}
	return p.restart(ctx)
}

// restart terminates any existing child, and — unless membership is now
// empty — builds fresh config/argv and spawns a replacement. Spawn
// failure (binary not found) raises a user-visible error and leaves the
// port idle rather than crashed, per spec.md §4.4.
func (p *Port) restart(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.terminateLocked(); err != nil {
		logging.Warn("PortSupervisor", "port %d: terminate before restart: %v", p.Number, err)
	}

	memberIDs := make([]string, 0, len(p.members))
	for id := range p.members {
		memberIDs = append(memberIDs, id)
	}
	if len(memberIDs) == 0 {
		p.setStateLocked(StateIdle)
		return nil
	}

	p.setStateLocked(StateStarting)

	result, err := p.build(ctx, memberIDs)
	if err != nil {
		p.setStateLocked(StateIdle)
		return fmt.Errorf("portsupervisor: port %d: build config: %w", p.Number, err)
	}

	sink := func(line string, isStderr bool) {
		if p.broadcaster != nil {
			p.broadcaster.Broadcast(events.EventLog, events.LogPayload{
				Port:      p.Number,
				Subsystem: "PortSupervisor",
				Line:      line,
			})
		}
	}

	proc, err := SpawnFunc(ctx, result.Argv[0], result.Argv[1:], nil, "", sink)
	if err != nil {
		p.setStateLocked(StateIdle)
		return &SpawnError{Port: p.Number, Err: err}
	}

	p.proc = proc
	p.startedAt = time.Now()
	p.setStateLocked(StateRunning)

	if p.broadcaster != nil {
		for _, id := range memberIDs {
			p.broadcaster.Broadcast(events.EventFlowStarted, events.FlowStartedPayload{FlowID: id, Port: p.Number})
		}
	}

	go p.watchForCrash(proc)
	return nil
}

// watchForCrash observes a spontaneous child exit (not one caused by
// Terminate/restart, which already moved the state away from Running),
// records its exit code, marks the port Crashed, and broadcasts
// flow_exited for every member.
func (p *Port) watchForCrash(proc *procexec.Process) {
	<-proc.Exited()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.proc != proc || p.state != StateRunning {
		return
	}
	p.exitCode = 0
	if werr := proc.Wait(); werr != nil {
		p.exitCode = 1
	}
	p.setStateLocked(StateCrashed)
	if p.broadcaster != nil {
		for id := range p.members {
			p.broadcaster.Broadcast(events.EventFlowExited, events.FlowExitedPayload{
				FlowID:   id,
				Port:     p.Number,
				ExitCode: p.exitCode,
			})
		}
	}
	logging.Warn("PortSupervisor", "port %d child exited unexpectedly", p.Number)
}

// Terminate stops the current child (SIGTERM/5s/SIGKILL), best-effort
// stops every member's OpenAPI helper, and leaves the port Idle.
func (p *Port) Terminate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminateLocked()
}

func (p *Port) terminateLocked() error {
	if p.proc == nil {
		return nil
	}

	p.setStateLocked(StateStopping)
	err := p.proc.Stop()
	p.exitCode = 0
	if werr := p.proc.Wait(); werr != nil {
		p.exitCode = 1
	}

	if p.broadcaster != nil {
		for id := range p.members {
			p.broadcaster.Broadcast(events.EventFlowExited, events.FlowExitedPayload{
				FlowID:   id,
				Port:     p.Number,
				ExitCode: p.exitCode,
			})
		}
	}

	if p.helpers != nil {
		for id := range p.members {
			p.helpers.Stop(id)
		}
	}

	p.proc = nil
	p.setStateLocked(StateIdle)
	return err
}

func (p *Port) setStateLocked(newState State) {
	old := p.state
	p.state = newState
	if old == newState {
		return
	}
	switch newState {
	case StateStarting:
		p.lastEvent = "starting"
	case StateRunning:
		p.lastEvent = "started"
	case StateStopping:
		p.lastEvent = "stopping"
	case StateIdle:
		p.lastEvent = "stopped"
	case StateCrashed:
		p.lastEvent = "crashed"
	}
	if p.onState != nil {
		cb, num := p.onState, p.Number
		go cb(num, old, newState)
	}
}

// SpawnError reports that the gateway binary for this port could not be
// started (spec.md §7, "binary-missing").
type SpawnError struct {
	Port int
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("portsupervisor: port %d: spawn failed: %v", e.Port, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
