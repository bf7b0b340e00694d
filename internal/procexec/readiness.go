package procexec

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// TCP connect polling and HTTP GET probing parameters (spec.md §5,
// "Suspension / blocking points").
const (
	tcpProbeInterval  = 200 * time.Millisecond
	tcpProbeDeadline  = 10 * time.Second
	httpProbeTimeout  = 2 * time.Second
	httpProbeInterval = 500 * time.Millisecond
	httpProbeDeadline = 12 * time.Second
)

// WaitTCPOpen polls addr (host:port) until a TCP connection succeeds or
// tcpProbeDeadline elapses.
func WaitTCPOpen(ctx context.Context, addr string) error {
	deadline := time.Now().Add(tcpProbeDeadline)
	for {
		conn, err := net.DialTimeout("tcp", addr, tcpProbeInterval)
		if err == nil {
			conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("procexec: %s did not open within %s", addr, tcpProbeDeadline)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tcpProbeInterval):
		}
	}
}

// WaitHTTPReady polls url with GET requests until any response other
// than a 404 is observed, or httpProbeDeadline elapses. A connection
// error is treated as not-yet-ready and retried.
func WaitHTTPReady(ctx context.Context, url string) error {
	client := &http.Client{Timeout: httpProbeTimeout}
	deadline := time.Now().Add(httpProbeDeadline)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err == nil {
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode != http.StatusNotFound {
					return nil
				}
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("procexec: %s did not become ready within %s", url, httpProbeDeadline)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(httpProbeInterval):
		}
	}
}

// WaitUpstreamReady runs the two-stage readiness check of spec.md §4.2:
// a TCP connect poll followed by an HTTP GET poll against the same
// host. The config builder calls WaitTCPOpen and WaitHTTPReady
// separately rather than through this helper.
func WaitUpstreamReady(ctx context.Context, addr, url string) error {
	if err := WaitTCPOpen(ctx, addr); err != nil {
		return err
	}
	return WaitHTTPReady(ctx, url)
}
