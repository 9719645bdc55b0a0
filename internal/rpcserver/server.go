// Package rpcserver exposes a ledger over Solana-compatible JSON-RPC and
// WebSocket endpoints.
//
// Routes:
//
//	POST /         JSON-RPC 2.0, single or batch
//	GET  /ws       logsSubscribe / logsUnsubscribe
//	GET  /healthz  liveness with the current slot
//	GET  /metrics  Prometheus
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"escrow-lab/internal/observability"
	"escrow-lab/internal/svm"
)

// Server serves one ledger.
type Server struct {
	ledger     *svm.SVM
	limiter    Limiter
	maxAirdrop uint64
	logger     *zap.Logger

	methods  map[string]methodFunc
	upgrader websocket.Upgrader

	connsMu sync.Mutex
	conns   map[*wsConn]struct{}
}

// Options contains configuration for creating a Server.
type Options struct {
	Ledger             *svm.SVM
	Limiter            Limiter // optional: nil disables airdrop rate limiting
	MaxAirdropLamports uint64  // 0 means unlimited
	Logger             *zap.Logger
}

// New creates a server for opts.Ledger.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ledger:     opts.Ledger,
		limiter:    opts.Limiter,
		maxAirdrop: opts.MaxAirdropLamports,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*wsConn]struct{}),
	}
	s.methods = s.registerMethods()
	return s
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Use(Recoverer(s.logger))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", observability.Handler())
	r.Post("/", s.serveRPC)
	r.Get("/ws", s.serveWS)

	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"slot":   s.ledger.Slot(),
	})
}

// HTTPConfig holds listener timeouts.
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully: the listener stops first, then open WebSocket connections are
// closed.
func (s *Server) ListenAndServe(ctx context.Context, addr string, cfg HTTPConfig) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("rpc server starting", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("rpc server: %w", err)
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	s.logger.Info("stopping rpc server", zap.Duration("timeout", timeout))
	httpServer.SetKeepAlivesEnabled(false)
	err := httpServer.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("rpc server shutdown: %w", err)
	}
	s.logger.Info("rpc server stopped")
	return nil
}

// Close closes every open WebSocket connection and its subscriptions.
func (s *Server) Close() {
	s.connsMu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (s *Server) trackConn(c *wsConn, open bool) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if open {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}
