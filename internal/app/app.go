// Package app provides the top-level application lifecycle management for
// the auction engine. It wires together all dependencies (stores, cache,
// services, scheduler, and HTTP/WebSocket server) and runs until the
// context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/proxybid/auctionengine/internal/config"
	"github.com/proxybid/auctionengine/internal/scheduler"
	"github.com/proxybid/auctionengine/internal/server"
	"github.com/proxybid/auctionengine/internal/server/handler"
	"github.com/proxybid/auctionengine/internal/server/ws"

	"golang.org/x/sync/errgroup"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the HTTP/WebSocket server, the
// WebSocket hub's fan-out loop, and the lifecycle scheduler, and blocks
// until the context is cancelled or one of them fails. On return it runs
// all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	hub := ws.NewHub(deps.SignalBus, a.logger)

	auctionHandler := handler.NewAuctionHandler(deps.Lifecycle, deps.AuctionStore, deps.BidStore, a.logger)
	bidHandler := handler.NewBidHandler(deps.Bidding, deps.Retraction, a.logger)
	healthHandler := handler.NewHealthHandler(a.logger)

	srv := server.NewServer(server.Config{
		Port:                 a.cfg.Server.Port,
		CORSOrigins:          a.cfg.Server.CORSOrigins,
		RateLimiter:          deps.RateLimiter,
		MaxRequestsPerMinute: a.cfg.RateLimit.MaxRequestsPerMinute,
	}, server.Handlers{
		Health:   healthHandler,
		Auctions: auctionHandler,
		Bids:     bidHandler,
	}, hub, a.logger)

	sched := scheduler.New(
		deps.Lifecycle,
		deps.Notifier,
		a.logger,
		time.Duration(a.cfg.Scheduler.IntervalMs)*time.Millisecond,
		time.Duration(a.cfg.Scheduler.GracePeriodMs)*time.Millisecond,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		return sched.RunFailSafe(gctx, 5*time.Minute)
	})

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("app: run: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
