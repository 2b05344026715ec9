package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

const (
	metricsPath              = "/metrics"
	metricsReadHeaderTimeout = 5 * time.Second
	metricsIdleTimeout       = 60 * time.Second
)

type metricsServer struct {
	listener net.Listener
	server   *http.Server
	done     chan error
}

// startMetricsServer binds addr before returning so bind errors surface to
// the caller.
func startMetricsServer(addr string, handler http.Handler) (*metricsServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, handler)

	ms := &metricsServer{
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
			IdleTimeout:       metricsIdleTimeout,
		},
		done: make(chan error, 1),
	}

	go func() {
		serveErr := ms.server.Serve(listener)
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}

		ms.done <- serveErr
	}()

	return ms, nil
}

// Addr returns the bound address.
func (ms *metricsServer) Addr() string {
	return ms.listener.Addr().String()
}

// Shutdown stops the server and waits for Serve to return.
func (ms *metricsServer) Shutdown(ctx context.Context) error {
	err := ms.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return <-ms.done
}
