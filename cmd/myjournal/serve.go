// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/myjournal/myjournal/internal/config"
	"github.com/myjournal/myjournal/internal/logging"
	"github.com/myjournal/myjournal/internal/observability"
	"github.com/myjournal/myjournal/internal/web"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

var errNotServing = errors.New("http listener not serving")

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the journal HTTP server",
		Long: `Start the HTTP server. Configuration comes from built-in defaults, the
--config file, $DATABASE_URL and flags, in increasing precedence.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, deps)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return oops.With("operation", "validate configuration").Wrap(err)
	}

	logger := logging.Setup("myjournal", version, cfg.LogFormat, deps.LogWriter)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	logger.Info("starting server",
		"listen", cfg.Listen,
		"store", cfg.Store.Backend,
		"sessions", cfg.Session.Backend,
		"kdf", cfg.KDF.Params().String(),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var serving atomic.Bool
	obsServer := deps.ObservabilityServerFactory(cfg.MetricsAddr, logger)
	metrics := obsServer.Metrics()

	c, err := buildComponents(ctx, cfg, logger, metrics, deps)
	if err != nil {
		return err
	}
	defer c.Close()
	obsServer.AddCheck(observability.Check{Name: "http", Probe: func(context.Context) error {
		if !serving.Load() {
			return errNotServing
		}
		return nil
	}})
	obsServer.AddCheck(c.readinessChecks()...)

	srv, err := web.New(web.Config{
		Sessions:     c.sessionAuth,
		Credentials:  c.credAuth,
		Journal:      c.journal,
		Accounts:     c.accounts,
		Recorder:     metrics,
		Logger:       logger,
		SecureCookie: cfg.Session.SecureCookie,
	})
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.MetricsAddr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability", logger)
		defer stopObservability(obsServer, logger)
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	listener, err := deps.ListenerFactory("tcp", cfg.Listen)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Listen).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	c.janitor.Start(ctx)
	defer c.janitor.Stop()

	serving.Store(true)
	addr := listener.Addr().String()
	logger.Info("server ready", "addr", addr)
	cmd.Println("Listening on " + addr)
	deps.OnReady(addr)

	var runErr error
	select {
	case err := <-serveErr:
		if err != nil {
			runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	serving.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

func stopObservability(s ObservabilityServer, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server fails.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
