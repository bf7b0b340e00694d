// Package flow defines the operator-declared Flow record and the
// invariants enforced on it at write time (spec §3).
package flow

import (
	"fmt"
	"time"
)

// EndpointType identifies one side of a flow (source or target).
type EndpointType string

const (
	EndpointStdio          EndpointType = "stdio"
	EndpointSSE            EndpointType = "sse"
	EndpointStreamableHTTP EndpointType = "streamable_http"
	EndpointOpenAPI        EndpointType = "openapi"
)

// Transport is the wire transport a gateway exposes or dials.
type Transport string

const (
	TransportSSE            Transport = "sse"
	TransportStreamableHTTP Transport = "streamable-http"
)

// Header is an ordered key/value pair forwarded upstream. Kept as a
// struct slice (not a map) so insertion order survives a round trip,
// matching the original implementation's Header model.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PreviousConfig snapshots fields captured when their sibling changes.
// It exists purely for round-tripping; the core never reads it back.
type PreviousConfig struct {
	SSEURL          string `json:"sse_url,omitempty"`
	Transport       string `json:"transport,omitempty"`
	Command         string `json:"command,omitempty"`
	ServerTransport string `json:"server_transport,omitempty"`
}

// Flow is the operator-declared unit the supervisor activates.
type Flow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Route       string `json:"route"`
	Description string `json:"description,omitempty"`

	SourceType EndpointType `json:"source_type"`
	TargetType EndpointType `json:"target_type"`

	SSEURL         string `json:"sse_url,omitempty"`
	OpenAPIBaseURL string `json:"openapi_base_url,omitempty"`
	OpenAPISpecURL string `json:"openapi_spec_url,omitempty"`

	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	Headers      []Header `json:"headers,omitempty"`
	AllowOrigins []string `json:"allow_origins,omitempty"`

	AutoStart bool `json:"auto_start"`
	Stateless bool `json:"stateless"`

	// Transport/ServerTransport are derived, not operator-set; see
	// DeriveTransports. They are still persisted so a reader of the
	// JSON file doesn't need to re-derive them.
	Transport       Transport `json:"transport"`
	ServerTransport Transport `json:"server_transport"`

	Previous PreviousConfig `json:"previous"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RouteOrName returns Route, defaulting to Name per invariant 7.
func (f *Flow) RouteOrName() string {
	if f.Route != "" {
		return f.Route
	}
	return f.Name
}

// ApplyDefaults fills Route (invariant 7) before validation/derivation.
func (f *Flow) ApplyDefaults() {
	if f.Route == "" {
		f.Route = f.Name
	}
}

// DeriveTransports computes Transport and ServerTransport from
// SourceType/TargetType per spec invariant 6. Must run after
// ApplyDefaults and before persisting.
func (f *Flow) DeriveTransports() {
	if f.SourceType == EndpointStreamableHTTP || f.SourceType == EndpointOpenAPI {
		f.Transport = TransportStreamableHTTP
	} else {
		f.Transport = TransportSSE
	}

	if f.TargetType == EndpointStreamableHTTP ||
		(f.TargetType == EndpointStdio && f.SourceType == EndpointStreamableHTTP) {
		f.ServerTransport = TransportStreamableHTTP
	} else {
		f.ServerTransport = TransportSSE
	}
}

// CapturePrevious snapshots fields of `existing` into `updated.Previous`
// per field pair, (sse_url, transport) and (command, server_transport):
// when either field of a pair changes, both of its old values are
// snapshotted together.
func CapturePrevious(existing, updated *Flow) {
	prev := existing.Previous
	if existing.SSEURL != updated.SSEURL || existing.Transport != updated.Transport {
		prev.SSEURL = existing.SSEURL
		prev.Transport = string(existing.Transport)
	}
	if existing.Command != updated.Command || existing.ServerTransport != updated.ServerTransport {
		prev.Command = existing.Command
		prev.ServerTransport = string(existing.ServerTransport)
	}
	updated.Previous = prev
}

// ValidationError reports a broken write-time invariant (spec §3, §7).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("flow validation: %s: %s", e.Field, e.Message)
}

// Validate enforces the six write-time invariants of spec §3. Call after
// ApplyDefaults/DeriveTransports so Route/Transport are already filled in.
func (f *Flow) Validate() error {
	if f.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if f.Route == "" {
		return &ValidationError{Field: "route", Message: "must not be empty"}
	}

	// 1. openapi source requires streamable_http target.
	if f.SourceType == EndpointOpenAPI && f.TargetType != EndpointStreamableHTTP {
		return &ValidationError{Field: "target_type", Message: "an openapi source must target streamable_http"}
	}

	// 2/3. stdio on either end requires a command.
	if f.SourceType == EndpointStdio && f.Command == "" {
		return &ValidationError{Field: "command", Message: "required when source_type is stdio"}
	}
	if f.TargetType == EndpointStdio && f.Command == "" {
		return &ValidationError{Field: "command", Message: "required when target_type is stdio"}
	}

	// 4. remote sse/streamable_http source requires sse_url.
	if (f.SourceType == EndpointSSE || f.SourceType == EndpointStreamableHTTP) && f.SSEURL == "" {
		return &ValidationError{Field: "sse_url", Message: "required for a remote sse/streamable_http source"}
	}

	// 5. openapi source requires both URLs.
	if f.SourceType == EndpointOpenAPI {
		if f.OpenAPIBaseURL == "" {
			return &ValidationError{Field: "openapi_base_url", Message: "required when source_type is openapi"}
		}
		if f.OpenAPISpecURL == "" {
			return &ValidationError{Field: "openapi_spec_url", Message: "required when source_type is openapi"}
		}
	}

	return nil
}

// PortRole identifies which well-known gateway port a flow attaches to,
// per the target_type mapping of spec §4.4.
type PortRole string

const (
	PortRoleOpenAPI PortRole = "openapi"
	PortRoleStream  PortRole = "stream"
	PortRoleSSE     PortRole = "sse"
)

// Role returns the port role this flow's target_type maps to.
func (f *Flow) Role() PortRole {
	switch f.TargetType {
	case EndpointOpenAPI:
		return PortRoleOpenAPI
	case EndpointStreamableHTTP:
		return PortRoleStream
	default:
		return PortRoleSSE
	}
}

// UsesStdioEntry reports whether the gateway config entry for this flow
// is a stdio command entry rather than a URL entry.
func (f *Flow) UsesStdioEntry() bool {
	return f.SourceType == EndpointStdio || f.TargetType == EndpointStdio
}
