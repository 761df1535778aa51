package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/handshake/internal/app"
	"github.com/rpggio/handshake/internal/config"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/mcp"
	"github.com/rpggio/handshake/internal/reconcile"
	"github.com/rpggio/handshake/internal/transport"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MCP endpoint, or the MCP stdio transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger, closeLog := newLogger(cfg)
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			a := app.New(rt.repos, rt.dispatcher, workspace.RetryPolicy{
				Attempts: cfg.Provisioning.Attempts,
				Backoff:  cfg.Provisioning.Backoff,
			}, logger)

			if cfg.Reconcile.Interval > 0 {
				sweeper := reconcile.NewSweeper(rt.repos.Contracts, a.Provisioner, a.Contracts, cfg.Reconcile.BatchSize, logger)
				go func() {
					if err := sweeper.Run(ctx, cfg.Reconcile.Interval); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("reconcile loop stopped", "error", err)
					}
				}()
			}

			mcpServer := mcp.NewServer(mcp.Config{
				Services:      a.MCPServices(),
				Resolver:      transport.NewJWTResolver(cfg.Auth.JWTSecret),
				AuthEnabled:   cfg.Auth.Enabled,
				TransportMode: cfg.Transport.Mode,
				DefaultActor:  cfg.Transport.MCPActor,
				Version:       version,
				Logger:        logger,
			})

			if cfg.Transport.Mode == "stdio" {
				return runStdio(ctx, logger, mcpServer)
			}
			return runHTTP(ctx, logger, cfg, rt, a, mcpServer)
		},
	}
}

func runStdio(ctx context.Context, logger *slog.Logger, server *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")
	// Run returns when stdin closes or ctx is cancelled.
	if err := server.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTP(ctx context.Context, logger *slog.Logger, cfg config.Config, rt *backend, a *app.App, mcpServer *sdkmcp.Server) error {
	var resolver transport.ActorResolver = transport.NewJWTResolver(cfg.Auth.JWTSecret)
	if !cfg.Auth.Enabled {
		logger.Warn("auth disabled: bearer tokens are taken as actor IDs")
		resolver = transport.StaticResolver{}
	}

	tcfg := transport.Config{
		Services: a.HTTPServices(),
		Resolver: resolver,
		MCP:      mcp.NewHTTPHandler(mcpServer, cfg.Server.MCPSessionTimeout),
		Ready:    rt.Ready,
		Logger:   logger,
	}
	if rt.pusher != nil {
		tcfg.Events = rt.pusher
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           transport.NewServer(tcfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr, "db", cfg.DB.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}
