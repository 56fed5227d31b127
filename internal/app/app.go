// Package app assembles the GitOps backend and runs its HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/heda-org/heda-gitops/internal/config"
	"github.com/heda-org/heda-gitops/internal/logger"
)

// GitOpsApp is a built server: configuration, the experiment, onboarding and
// merge services, and the HTTP server routing to them.
type GitOpsApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// ctx outlives single requests and is cancelled by Stop
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start serves until Stop is called or the listener fails. A clean Stop
// returns nil.
func (app *GitOpsApp) Start() error {
	logger.Infof("Serving organization %s on %s (auth: %s, auto-merge: %t)",
		app.config.GitHub.Org, app.httpServer.Addr, app.config.Auth.Mode, app.components.Merge != nil)

	err := app.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("HTTP server failed: %w", err)
}

// Stop stops accepting requests and waits up to timeout for in-flight ones.
// A publish still cloning or pushing at the deadline is cut off, leaving at
// most an orphaned remote branch.
func (app *GitOpsApp) Stop(timeout time.Duration) error {
	logger.Infof("Draining requests (timeout %s)", timeout)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := app.httpServer.Shutdown(ctx)
	if app.cancelFunc != nil {
		app.cancelFunc()
	}
	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}

	logger.Info("Server stopped")
	return nil
}

// GetConfig returns the configuration the server was built from
func (app *GitOpsApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the underlying server
func (app *GitOpsApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the services the server was built with
func (app *GitOpsApp) Components() *AppComponents {
	return app.components
}
