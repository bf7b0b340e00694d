// Package configbuilder assembles the on-disk JSON config and argv for
// a gateway child process from the set of flows attached to its port.
// It is a pure function of its inputs except for the OpenAPI port's
// readiness probing, which genuinely needs to reach the network (spec
// §4.2) before a flow can be safely included.
package configbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/procexec"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/settings"
	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
)

const configbuilderSubsystem = "ConfigBuilder"

// ResolveOpenAPIUpstream obtains the MCP URL for a flow whose source is
// an OpenAPI spec, spawning/reusing a helper process as needed (§4.3).
// Implemented by internal/openapihelper; injected here to avoid an
// import cycle (the helper registry only needs flow.Flow, not this
// package).
type ResolveOpenAPIUpstream func(ctx context.Context, f flow.Flow) (string, error)

// Input describes everything needed to build one port's config.
type Input struct {
	Flows      []flow.Flow
	Port       int
	Settings   settings.Snapshot
	Role       flow.PortRole
	RuntimeDir string

	ProxyBinary   string // e.g. "mcp-proxy"
	OpenAPIBinary string // space-split, e.g. "uvx mcpo"

	ResolveOpenAPI ResolveOpenAPIUpstream
}

// Result is the built config's location and the argv to launch the
// gateway with it.
type Result struct {
	ConfigPath string
	Argv       []string
	Warnings   []string
}

// Build produces the config document and argv for the given port. The
// document shape depends on in.Role: the OpenAPI port gets the mcpo
// shape (object-map headers, two-stage readiness gating); every other
// port gets the mcp-proxy shape (list-of-maps headers).
func Build(ctx context.Context, in Input) (*Result, error) {
	if in.Role == flow.PortRoleOpenAPI {
		return buildOpenAPI(ctx, in)
	}
	return buildProxy(ctx, in)
}

func buildProxy(ctx context.Context, in Input) (*Result, error) {
	servers := make(map[string]interface{})
	var warnings []string

	for _, f := range in.Flows {
		key := nextServerKey(servers, serverKeyBase(f))

		var entry map[string]interface{}
		if f.UsesStdioEntry() {
			command, args, env, rerr := renderStdioEntry(f, in.Port, in.Settings)
			if rerr != nil {
				return nil, rerr
			}
			entry = map[string]interface{}{
				"command": command,
				"args":    toInterfaceSlice(args),
				"env":     env,
			}
		} else {
			upstream := f.SSEURL
			if f.SourceType == flow.EndpointOpenAPI {
				if in.ResolveOpenAPI == nil {
					return nil, fmt.Errorf("configbuilder: no OpenAPI resolver configured for flow %s", f.ID)
				}
				resolved, err := in.ResolveOpenAPI(ctx, f)
				if err != nil {
					warnings = append(warnings, fmt.Sprintf("flow %s: openapi helper unavailable: %v", f.ID, err))
					logging.Warn(configbuilderSubsystem, "skipping flow %s: openapi helper unavailable: %v", f.ID, err)
					continue
				}
				upstream = resolved
			}

			transportType := "sse"
			if f.SourceType == flow.EndpointStreamableHTTP || f.SourceType == flow.EndpointOpenAPI {
				transportType = "streamable-http"
			}

			entry = map[string]interface{}{
				"url":           upstream,
				"headers":       headersAsList(f.Headers),
				"transportType": transportType,
			}
		}

		servers[key] = stripEmpty(entry)
	}

	proxyType := "sse"
	if in.Port == in.Settings.StreamPort {
		proxyType = "streamable-http"
	}

	doc := map[string]interface{}{
		"mcpProxy": map[string]interface{}{
			"baseURL": fmt.Sprintf("http://%s:%d", in.Settings.Host, in.Port),
			"addr":    fmt.Sprintf(":%d", in.Port),
			"name":    fmt.Sprintf("mcp-proxy-%s", proxyType),
			"version": "1.0.0",
			"type":    proxyType,
			"options": map[string]interface{}{"panicIfInvalid": false, "logEnabled": true},
		},
		"mcpServers": servers,
	}

	configPath := filepath.Join(in.RuntimeDir, fmt.Sprintf("port-%d.config.json", in.Port))
	if err := writeJSON(configPath, doc); err != nil {
		return nil, err
	}

	return &Result{
		ConfigPath: configPath,
		Argv:       []string{in.ProxyBinary, "-config", configPath},
		Warnings:   warnings,
	}, nil
}

// openAPICandidate is one flow's probe outcome, computed concurrently
// with its siblings and then folded into the document in in.Flows order
// so server key assignment (nextServerKey) stays deterministic.
type openAPICandidate struct {
	entry    map[string]interface{}
	warnings []string
	omit     bool
}

func buildOpenAPI(ctx context.Context, in Input) (*Result, error) {
	candidates := make([]openAPICandidate, len(in.Flows))

	// Each flow's TCP+HTTP readiness probe runs in its own goroutine
	// instead of serially, since a single unready upstream can otherwise
	// cost the full probe budget per flow (spec §4.2/§5).
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range in.Flows {
		i, f := i, f
		g.Go(func() error {
			if f.SourceType == flow.EndpointStdio {
				command, args, env, rerr := renderStdioEntry(f, in.Port, in.Settings)
				if rerr != nil {
					return rerr
				}
				candidates[i] = openAPICandidate{entry: map[string]interface{}{
					"command": command,
					"args":    toInterfaceSlice(args),
					"env":     env,
				}}
				return nil
			}

			upstream := rewriteLoopbackHost(f.SSEURL, in.Settings.InspectorPublicHost)

			if addr := hostPort(upstream); addr != "" {
				if err := procexec.WaitTCPOpen(gctx, addr); err != nil {
					candidates[i].warnings = append(candidates[i].warnings, fmt.Sprintf("flow %s: upstream port not ready: %v", f.ID, err))
					logging.Warn(configbuilderSubsystem, "upstream port not ready for flow %s: %v", f.ID, err)
				}
			}
			if err := procexec.WaitHTTPReady(gctx, upstream); err != nil {
				candidates[i].omit = true
				candidates[i].warnings = append(candidates[i].warnings, fmt.Sprintf("flow %s: upstream not ready, omitted: %v", f.ID, err))
				logging.Warn(configbuilderSubsystem, "omitting flow %s: %v", f.ID, err)
				return nil
			}

			transportType := "sse"
			if f.SourceType == flow.EndpointStreamableHTTP {
				transportType = "streamable-http"
			}

			candidates[i].entry = map[string]interface{}{
				"type":    transportType,
				"url":     upstream,
				"headers": headersAsMap(f.Headers),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	servers := make(map[string]interface{})
	var warnings []string
	for i, f := range in.Flows {
		c := candidates[i]
		warnings = append(warnings, c.warnings...)
		if c.omit {
			continue
		}
		key := nextServerKey(servers, serverKeyBase(f))
		servers[key] = stripEmpty(c.entry)
	}

	doc := map[string]interface{}{"mcpServers": servers}

	configPath := filepath.Join(in.RuntimeDir, fmt.Sprintf("port-%d-openapi.config.json", in.Port))
	if err := writeJSON(configPath, doc); err != nil {
		return nil, err
	}

	argv := append(strings.Fields(in.OpenAPIBinary), "--port", strconv.Itoa(in.Port), "--config", configPath, "--hot-reload")

	return &Result{ConfigPath: configPath, Argv: argv, Warnings: warnings}, nil
}

func serverKeyBase(f flow.Flow) string {
	if f.Route != "" {
		return f.Route
	}
	if f.Name != "" {
		return f.Name
	}
	return "default"
}

func nextServerKey(servers map[string]interface{}, base string) string {
	key := base
	for i := 1; ; i++ {
		if _, exists := servers[key]; !exists {
			return key
		}
		key = fmt.Sprintf("%s-%d", base, i)
	}
}

func toInterfaceSlice(args []string) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func headersAsList(headers []flow.Header) interface{} {
	if len(headers) == 0 {
		return nil
	}
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		out[i] = map[string]interface{}{h.Key: h.Value}
	}
	return out
}

func headersAsMap(headers []flow.Header) interface{} {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(headers))
	for _, h := range headers {
		out[h.Key] = h.Value
	}
	return out
}

// stripEmpty removes keys whose value is nil, an empty map, or an empty
// slice, matching the original's `{k: v for k, v in ... if v not in
// (None, {}, [])}` filter.
func stripEmpty(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if isEmptyValue(v) {
			continue
		}
		out[k] = v
	}
	return out
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return false
	case map[string]interface{}:
		return len(val) == 0
	case map[string]string:
		return len(val) == 0
	case []interface{}:
		return len(val) == 0
	case []string:
		return len(val) == 0
	default:
		return false
	}
}

// rewriteLoopbackHost rewrites a 0.0.0.0/localhost hostname to
// publicHost (falling back to host.docker.internal), preserving the
// original port (spec §4.2).
func rewriteLoopbackHost(rawURL, publicHost string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Hostname() != "0.0.0.0" && u.Hostname() != "localhost" {
		return rawURL
	}

	override := publicHost
	if override == "" {
		override = "host.docker.internal"
	}
	if port := u.Port(); port != "" {
		u.Host = override + ":" + port
	} else {
		u.Host = override
	}
	return u.String()
}

func hostPort(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

func writeJSON(path string, doc interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("configbuilder: create runtime dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("configbuilder: encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("configbuilder: write config: %w", err)
	}
	return nil
}
