package dependency

import (
	"testing"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	byRoute map[string]flow.Flow
}

func (s *fakeStore) FindByRouteAndTarget(route string, targetType flow.EndpointType) (flow.Flow, bool, error) {
	f, ok := s.byRoute[route]
	if ok && f.TargetType != targetType {
		return flow.Flow{}, false, nil
	}
	return f, ok, nil
}

func TestResolve_NoDependencyForStdioSource(t *testing.T) {
	r := New(&fakeStore{})
	f := flow.Flow{SourceType: flow.EndpointStdio}
	upstream, err := r.Resolve(f, settings.Load())
	require.NoError(t, err)
	assert.Nil(t, upstream)
}

func TestResolve_MatchesLocalUpstreamByRoute(t *testing.T) {
	s := settings.Load()
	store := &fakeStore{byRoute: map[string]flow.Flow{
		"weather": {ID: "upstream-1", Route: "weather", TargetType: flow.EndpointSSE},
	}}
	r := New(store)

	f := flow.Flow{
		ID:         "f1",
		SourceType: flow.EndpointSSE,
		SSEURL:     "http://localhost:8002/weather/sse",
	}
	upstream, err := r.Resolve(f, s)
	require.NoError(t, err)
	require.NotNil(t, upstream)
	assert.Equal(t, "upstream-1", upstream.ID)
}

func TestResolve_MCPEndpointRequiresStreamableTarget(t *testing.T) {
	s := settings.Load()
	store := &fakeStore{byRoute: map[string]flow.Flow{
		"weather": {ID: "upstream-1", Route: "weather", TargetType: flow.EndpointStreamableHTTP},
	}}
	r := New(store)

	f := flow.Flow{SourceType: flow.EndpointSSE, SSEURL: "http://localhost:8001/weather/mcp"}
	upstream, err := r.Resolve(f, s)
	require.NoError(t, err)
	require.NotNil(t, upstream)
	assert.Equal(t, "upstream-1", upstream.ID)
}

func TestResolve_NoMatchForRemoteHost(t *testing.T) {
	r := New(&fakeStore{byRoute: map[string]flow.Flow{"weather": {ID: "x"}}})
	f := flow.Flow{SourceType: flow.EndpointSSE, SSEURL: "http://example.com:8002/weather/sse"}
	upstream, err := r.Resolve(f, settings.Load())
	require.NoError(t, err)
	assert.Nil(t, upstream)
}

func TestResolve_NoMatchForOpenAPIPort(t *testing.T) {
	s := settings.Load()
	store := &fakeStore{byRoute: map[string]flow.Flow{"weather": {ID: "x", Route: "weather"}}}
	r := New(store)

	f := flow.Flow{SourceType: flow.EndpointSSE, SSEURL: "http://localhost:8003/weather/sse"}
	upstream, err := r.Resolve(f, s)
	require.NoError(t, err)
	assert.Nil(t, upstream, "the OpenAPI port is never treated as an in-supervisor dependency target")
}

func TestResolveChain_BreaksCycleWithoutError(t *testing.T) {
	s := settings.Load()
	store := &fakeStore{byRoute: map[string]flow.Flow{
		"a": {ID: "a", Route: "a", TargetType: flow.EndpointSSE, SourceType: flow.EndpointSSE, SSEURL: "http://localhost:8002/b/sse"},
		"b": {ID: "b", Route: "b", TargetType: flow.EndpointSSE, SourceType: flow.EndpointSSE, SSEURL: "http://localhost:8002/a/sse"},
	}}
	r := New(store)

	chain, err := r.ResolveChain(store.byRoute["a"], s)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "b", chain[0].ID)
	assert.Equal(t, "a", chain[1].ID)
}

func TestResolveChain_OrdersUpstreamFirst(t *testing.T) {
	s := settings.Load()
	store := &fakeStore{byRoute: map[string]flow.Flow{
		"base": {ID: "base", Route: "base", TargetType: flow.EndpointSSE},
	}}
	r := New(store)

	dependent := flow.Flow{ID: "dependent", Route: "dependent", SourceType: flow.EndpointSSE, SSEURL: "http://localhost:8002/base/sse"}
	chain, err := r.ResolveChain(dependent, s)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "base", chain[0].ID)
	assert.Equal(t, "dependent", chain[1].ID)
}
