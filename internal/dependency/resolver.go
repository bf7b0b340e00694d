// Package dependency inspects a flow's upstream URL to determine
// whether it actually targets another flow exposed by this same
// supervisor, so the port supervisor can activate the upstream flow
// first (spec.md §4.5).
package dependency

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
)

// Store is the subset of flow.Store the resolver needs. Kept as an
// interface so tests can substitute a fake without touching disk.
type Store interface {
	FindByRouteAndTarget(route string, targetType flow.EndpointType) (flow.Flow, bool, error)
}

// Resolver inspects a flow's sse_url and, if it resolves to another
// flow's own exposed endpoint, returns that upstream flow.
type Resolver struct {
	store Store
}

// New creates a Resolver backed by store.
func New(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve implements the exact rule of spec.md §4.5. It returns
// (nil, nil) when f has no in-supervisor dependency.
func (r *Resolver) Resolve(f flow.Flow, s settings.Snapshot) (*flow.Flow, error) {
	if f.SourceType == flow.EndpointStdio || f.SSEURL == "" {
		return nil, nil
	}

	u, err := url.Parse(f.SSEURL)
	if err != nil {
		return nil, nil
	}

	host := u.Hostname()
	if !isLocalHost(host, s) {
		return nil, nil
	}

	port := u.Port()
	if port == "" {
		return nil, nil
	}
	if port == fmt.Sprintf("%d", s.OpenAPIPort) {
		return nil, nil
	}

	segments := nonEmptySegments(u.Path)
	if len(segments) < 2 {
		return nil, nil
	}

	route := segments[0]
	endpoint := segments[1]
	targetType := flow.EndpointSSE
	if endpoint == "mcp" {
		targetType = flow.EndpointStreamableHTTP
	}

	upstream, ok, err := r.store.FindByRouteAndTarget(route, targetType)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &upstream, nil
}

// ResolveChain walks Resolve repeatedly to build the full activation
// order for f: its transitive upstream dependencies, furthest upstream
// first and nearest last, followed by f itself. A visited-set guards against cycles, since
// "depth is not bounded at the protocol level" (spec.md §4.5) — nothing
// stops two flows from pointing at each other. A cycle is not an error:
// descent just stops at the already-visited flow and the chain built so
// far is returned, the same silent `return` _start_with_dependencies
// uses on a repeat ID.
func (r *Resolver) ResolveChain(f flow.Flow, s settings.Snapshot) ([]flow.Flow, error) {
	visited := map[string]bool{f.ID: true}
	var chain []flow.Flow

	current := f
	for {
		upstream, err := r.Resolve(current, s)
		if err != nil {
			return nil, err
		}
		if upstream == nil {
			break
		}
		if visited[upstream.ID] {
			break
		}
		visited[upstream.ID] = true
		chain = append([]flow.Flow{*upstream}, chain...)
		current = *upstream
	}

	return append(chain, f), nil
}

func isLocalHost(host string, s settings.Snapshot) bool {
	switch host {
	case "127.0.0.1", "localhost", "0.0.0.0":
		return true
	}
	if s.Host != "" && host == s.Host {
		return true
	}
	if s.InspectorPublicHost != "" && host == s.InspectorPublicHost {
		return true
	}
	return false
}

func nonEmptySegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
