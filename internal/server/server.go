// Package server runs one inference service: it loads the model in the
// background while already answering HTTP, and shuts down gracefully.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Brownie44l1/spine-api/internal/middleware"
	"github.com/Brownie44l1/spine-api/internal/model"
	"github.com/Brownie44l1/spine-api/internal/reporting"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 10 * time.Second

// Routes is implemented by the service handlers.
type Routes interface {
	Register(mux *http.ServeMux)
}

// Options configures Run.
type Options struct {
	Addr string
	// Listener, when set, is used instead of listening on Addr.
	Listener        net.Listener
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	Handle   *model.Handle
	Load     model.LoadOptions
	Reporter *reporting.Reporter
}

// Handler wraps the routes with request logging and CORS.
func Handler(routes Routes, corsOrigins []string, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	routes.Register(mux)
	return middleware.Logging(log, middleware.CORS(corsOrigins, mux))
}

// Run serves until ctx is cancelled or the listener fails. A model that
// cannot be loaded is logged and reported but does not stop the server: the
// service keeps answering health checks and rejects predictions.
func Run(ctx context.Context, opts Options, routes Routes, log logrus.FieldLogger) error {
	ln := opts.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", opts.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", opts.Addr, err)
		}
	}
	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	srv := &http.Server{
		Handler:           Handler(routes, opts.CORSOrigins, log),
		ReadHeaderTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := model.LoadInto(opts.Handle, opts.Load, log.WithField("component", "loader"))
		if err != nil && !errors.Is(err, model.ErrArtifactMissing) {
			opts.Reporter.Capture(err, map[string]string{"stage": "load"})
		}
		return nil
	})

	g.Go(func() error {
		log.Infof("Server listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info("HTTP server stopped")
		return nil
	})

	err := g.Wait()
	if cerr := opts.Handle.Close(); cerr != nil {
		log.Warnf("Failed to release model: %v", cerr)
	}
	opts.Reporter.Flush()
	return err
}
