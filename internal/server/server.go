package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/proxybid/auctionengine/internal/domain"
	"github.com/proxybid/auctionengine/internal/server/handler"
	"github.com/proxybid/auctionengine/internal/server/middleware"
	"github.com/proxybid/auctionengine/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// RateLimiter, when non-nil, is applied to every route via
	// middleware.RateLimit. Nil disables rate limiting entirely.
	RateLimiter          domain.RateLimiter
	MaxRequestsPerMinute int
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health   *handler.HealthHandler
	Auctions *handler.AuctionHandler
	Bids     *handler.BidHandler
}

// Server is the HTTP + WebSocket API server for the auction engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting) and attaches the
// WebSocket hub. Authentication is out of scope (specification §1
// Non-goals); callers that need it should front this server with a gateway.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Auction endpoints.
	mux.HandleFunc("POST /auctions", handlers.Auctions.CreateAuction)
	mux.HandleFunc("GET /auctions", handlers.Auctions.ListAuctions)
	mux.HandleFunc("GET /auctions/{id}", handlers.Auctions.GetAuction)
	mux.HandleFunc("PUT /auctions/{id}", handlers.Auctions.UpdateAuction)
	mux.HandleFunc("DELETE /auctions/{id}", handlers.Auctions.CancelAuction)
	mux.HandleFunc("POST /auctions/{id}/start", handlers.Auctions.StartAuction)
	mux.HandleFunc("POST /auctions/{id}/end", handlers.Auctions.EndAuction)
	mux.HandleFunc("POST /auctions/{id}/select-winner", handlers.Auctions.SelectWinner)
	mux.HandleFunc("GET /auctions/{id}/bids", handlers.Auctions.ListAuctionBids)
	mux.HandleFunc("GET /auctions/{id}/winning-bid", handlers.Auctions.WinningBid)

	// Bid endpoints.
	mux.HandleFunc("POST /bids", handlers.Bids.PlaceBid)
	mux.HandleFunc("POST /bids/{id}/retract", handlers.Bids.RetractBid)
	mux.HandleFunc("GET /bids/{id}/can-retract", handlers.Bids.CanRetract)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	if cfg.RateLimiter != nil && cfg.MaxRequestsPerMinute > 0 {
		h = middleware.RateLimit(cfg.RateLimiter, cfg.MaxRequestsPerMinute, time.Minute)(h)
	}

	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
