// Package apiclient is a thin HTTP client for the control API exposed
// by a running supervisor process. cmd/ uses it exclusively instead of
// importing internal/supervisor directly, so every CLI command works
// the same whether the supervisor runs locally or on a remote host.
package apiclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/lucasiscovici/mcp-proxy-studio/internal/events"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/flow"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/inspector"
	"github.com/lucasiscovici/mcp-proxy-studio/internal/supervisor"
)

// DefaultEndpoint is used when no --endpoint flag or environment
// variable override is supplied.
const DefaultEndpoint = "http://127.0.0.1:8080"

// EndpointEnvVar overrides DefaultEndpoint when set.
const EndpointEnvVar = "MCP_PROXY_STUDIO_ENDPOINT"

// Client talks to a supervisor's control API over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

// New builds a client against the given endpoint (e.g. "http://host:8080").
// The underlying http.Client has no fixed Timeout: request deadlines are
// the caller's responsibility via ctx, since Events streams indefinitely.
func New(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{},
	}
}

// Ping checks whether a supervisor is reachable at the client's endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListFlows(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: connect to %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if jsonErr := json.NewDecoder(resp.Body).Decode(&apiErr); jsonErr == nil && apiErr.Error != "" {
			return &APIError{Status: resp.StatusCode, Kind: apiErr.Kind, Message: apiErr.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

// APIError is returned for any non-2xx control API response.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
	}
	return e.Message
}

// ListFlows returns every flow with its live runtime state.
func (c *Client) ListFlows(ctx context.Context) ([]supervisor.FlowState, error) {
	var flows []supervisor.FlowState
	err := c.do(ctx, http.MethodGet, "/api/flows", nil, &flows)
	return flows, err
}

// GetFlow finds a flow by ID or name among ListFlows' results.
func (c *Client) GetFlow(ctx context.Context, idOrName string) (*supervisor.FlowState, error) {
	flows, err := c.ListFlows(ctx)
	if err != nil {
		return nil, err
	}
	for i := range flows {
		if flows[i].ID == idOrName || flows[i].Name == idOrName {
			return &flows[i], nil
		}
	}
	return nil, &APIError{Status: http.StatusNotFound, Kind: "not-found", Message: fmt.Sprintf("flow %q not found", idOrName)}
}

// CreateFlow registers a new flow.
func (c *Client) CreateFlow(ctx context.Context, f flow.Flow) (*flow.Flow, error) {
	var created flow.Flow
	err := c.do(ctx, http.MethodPost, "/api/flows", f, &created)
	return &created, err
}

// UpdateFlow replaces an existing flow's fields.
func (c *Client) UpdateFlow(ctx context.Context, id string, f flow.Flow) (*flow.Flow, error) {
	var updated flow.Flow
	err := c.do(ctx, http.MethodPut, "/api/flows/"+id, f, &updated)
	return &updated, err
}

// DeleteFlow removes a flow, detaching it first if running.
func (c *Client) DeleteFlow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/flows/"+id, nil, nil)
}

// StartFlow attaches a flow (and its dependency chain) to its port.
func (c *Client) StartFlow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/flows/"+id+"/start", nil, nil)
}

// StopFlow detaches a flow from its port.
func (c *Client) StopFlow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/flows/"+id+"/stop", nil, nil)
}

// TestFlow dry-runs the gateway binary a flow would use.
func (c *Client) TestFlow(ctx context.Context, id string) (*supervisor.TestResult, error) {
	var result supervisor.TestResult
	err := c.do(ctx, http.MethodPost, "/api/flows/"+id+"/test", nil, &result)
	return &result, err
}

// Logs returns the flow's buffered recent output lines.
func (c *Client) Logs(ctx context.Context, id string) ([]string, error) {
	var lines []string
	err := c.do(ctx, http.MethodGet, "/api/flows/"+id+"/logs", nil, &lines)
	return lines, err
}

// InspectorStart launches the MCP inspector, returning its connect URL.
func (c *Client) InspectorStart(ctx context.Context) (*inspector.State, error) {
	var st inspector.State
	err := c.do(ctx, http.MethodPost, "/api/inspector/start", nil, &st)
	return &st, err
}

// InspectorStop stops the MCP inspector if running.
func (c *Client) InspectorStop(ctx context.Context) (*inspector.State, error) {
	var st inspector.State
	err := c.do(ctx, http.MethodPost, "/api/inspector/stop", nil, &st)
	return &st, err
}

// InspectorState reports whether the inspector is running.
func (c *Client) InspectorState(ctx context.Context) (*inspector.State, error) {
	var st inspector.State
	err := c.do(ctx, http.MethodGet, "/api/inspector/state", nil, &st)
	return &st, err
}

// Events streams the control API's SSE feed, invoking onEvent for each
// decoded event until ctx is cancelled or the connection drops.
func (c *Client) Events(ctx context.Context, onEvent func(events.Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/events", nil)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: connect to %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var evt events.Event
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			continue
		}
		onEvent(evt)
	}
	return scanner.Err()
}
