// Package app provides application lifecycle management for the POI sync API
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rovits/poi-sync-service/internal/config"
)

// sweepInterval is how often process-local caches and counters drop expired
// entries
const sweepInterval = time.Minute

// POISyncApp encapsulates all components needed to run the API server
// It provides lifecycle management and graceful shutdown capabilities
type POISyncApp struct {
	config     *config.Config
	components *Components
	httpServer *http.Server
	sweepers   []func()

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the application components (HTTP server and background sync)
// This method blocks until the HTTP server stops or encounters an error
func (app *POISyncApp) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(listener)
}

// Serve is Start on an existing listener
func (app *POISyncApp) Serve(listener net.Listener) error {
	go func() {
		if err := app.components.Coordinator.Start(app.ctx); err != nil {
			slog.Error("Sync coordinator failed", "error", err)
		}
	}()
	if len(app.sweepers) > 0 {
		go app.runSweepers(app.ctx)
	}

	slog.Info("Server listening", "address", listener.Addr().String())
	if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout. The
// schedule stops first, then the HTTP server drains, then running jobs and
// detached writes finish before storage is released.
func (app *POISyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if err := app.components.Coordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := app.httpServer.Shutdown(shutdownCtx)

	drained := make(chan struct{})
	go func() {
		app.components.Coordinator.Wait()
		app.components.Resolver.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		slog.Warn("Timed out waiting for sync jobs and pending writes")
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// runSweepers periodically drops expired entries from process-local state
func (app *POISyncApp) runSweepers(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sweep := range app.sweepers {
				sweep()
			}
		}
	}
}

// GetConfig returns the application configuration
func (app *POISyncApp) GetConfig() *config.Config {
	return app.config
}

// GetComponents returns the wired components
func (app *POISyncApp) GetComponents() *Components {
	return app.components
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *POISyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
