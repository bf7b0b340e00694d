package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/lucasiscovici/mcp-proxy-studio/pkg/logging"
)

// shutdownGracePeriod bounds how long the HTTP server is given to drain
// in-flight requests once a shutdown signal arrives.
const shutdownGracePeriod = 5 * time.Second

// runSupervisor starts the control API's HTTP listener, preferring a
// systemd-activated socket when one is available, and blocks until
// SIGINT/SIGTERM triggers a graceful shutdown.
func runSupervisor(ctx context.Context, services *Services, listenAddr string) error {
	logging.Info("CLI", "--- Starting control API ---")

	listener, err := supervisorListener(listenAddr)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: services.ControlAPI}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if services.FlowStore != nil {
		go func() {
			if err := services.FlowStore.Watch(watchCtx, func() {
				logging.Warn("CLI", "flows.json was modified outside the supervisor; restart to pick up the change")
			}); err != nil {
				logging.Warn("CLI", "flow store watch: %v", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	logging.Info("CLI", "Control API listening on %s. Press Ctrl+C to stop.", listener.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logging.Info("CLI", "--- Shutting down ---")
	case <-ctx.Done():
		logging.Info("CLI", "--- Shutting down ---")
	case err := <-serveErr:
		if err != nil {
			logging.Error("CLI", err, "control API server failed")
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warn("CLI", "control API shutdown: %v", err)
	}

	return nil
}

// supervisorListener returns a systemd-activated listener when one has
// been passed down (LISTEN_FDS), falling back to a plain net.Listen on
// addr otherwise.
func supervisorListener(addr string) (net.Listener, error) {
	listenersWithNames, err := activation.ListenersWithNames()
	if err != nil {
		logging.Warn("CLI", "checking for systemd socket activation: %v", err)
	} else {
		for name, listeners := range listenersWithNames {
			for i, l := range listeners {
				logging.Info("CLI", "using systemd-activated listener %d for %s", i, name)
				return l, nil
			}
		}
	}

	return net.Listen("tcp", addr)
}
