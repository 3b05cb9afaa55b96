// Package server assembles the HTTP API: routes, middleware chain, and the
// WebSocket hub endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexustrade/perpsim/internal/server/handler"
	"github.com/nexustrade/perpsim/internal/server/middleware"
	"github.com/nexustrade/perpsim/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Market     *handler.MarketHandler
	Simulation *handler.SimulationHandler
	Auth       *handler.AuthHandler
	Account    *handler.AccountHandler
}

// Server is the HTTP + WebSocket API server for the trading simulator.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. Market data, the
// simulation facade, and auth endpoints are public; account endpoints
// (balance, transfers, persisted trades) require a bearer token.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, verifier middleware.TokenVerifier, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check and metrics (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth endpoints.
	mux.HandleFunc("POST /api/auth/register", handlers.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", handlers.Auth.Login)

	// Market data.
	mux.HandleFunc("GET /api/snapshot", handlers.Market.GetSnapshot)
	mux.HandleFunc("GET /api/candles", handlers.Market.GetCandles)
	mux.HandleFunc("GET /api/orderbook", handlers.Market.GetOrderBook)
	mux.HandleFunc("GET /api/price", handlers.Market.GetPrice)

	// Simulation facade: session, positions, orders, history.
	mux.HandleFunc("POST /api/session/connect", handlers.Simulation.Connect)
	mux.HandleFunc("DELETE /api/session", handlers.Simulation.Disconnect)
	mux.HandleFunc("GET /api/session", handlers.Simulation.GetSession)
	mux.HandleFunc("GET /api/positions", handlers.Simulation.ListPositions)
	mux.HandleFunc("POST /api/positions", handlers.Simulation.ExecuteTrade)
	mux.HandleFunc("DELETE /api/positions/{id}", handlers.Simulation.ClosePosition)
	mux.HandleFunc("GET /api/orders", handlers.Simulation.ListOrders)
	mux.HandleFunc("DELETE /api/orders/{id}", handlers.Simulation.CancelOrder)
	mux.HandleFunc("GET /api/history", handlers.Simulation.GetHistory)

	// Account endpoints, behind bearer-token auth.
	authed := middleware.Auth(verifier)
	mux.Handle("GET /api/me", authed(http.HandlerFunc(handlers.Account.GetMe)))
	mux.Handle("POST /api/deposit", authed(http.HandlerFunc(handlers.Account.RequestDeposit)))
	mux.Handle("GET /api/deposit", authed(http.HandlerFunc(handlers.Account.ListDeposits)))
	mux.Handle("POST /api/withdraw", authed(http.HandlerFunc(handlers.Account.RequestWithdrawal)))
	mux.Handle("GET /api/withdraw", authed(http.HandlerFunc(handlers.Account.ListWithdrawals)))
	mux.Handle("POST /api/trade", authed(http.HandlerFunc(handlers.Account.OpenTrade)))
	mux.Handle("GET /api/trade", authed(http.HandlerFunc(handlers.Account.ListTrades)))
	mux.Handle("POST /api/trade/{id}/close", authed(http.HandlerFunc(handlers.Account.CloseTrade)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
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
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
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
