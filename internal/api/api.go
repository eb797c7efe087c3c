// Package api is the generic CORS-wrapped HTTP transport wrapper used
// to serve the optional control API (spec §4.14) locally. It only
// owns listening, shutdown, and cross-origin headers; route handlers
// live in internal/controlapi.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tunnelkit/tunnelkit/internal/errs"
)

const opStart errs.Op = "api.Server.Start"

// Config configures the server. AllowedOriginSuffix lets an embedder
// allow a specific external origin (e.g. ".example.com") in addition
// to localhost, which is always allowed.
type Config struct {
	Port                int
	IsDev               bool
	AllowedOriginSuffix string
}

// Server binds one listener and serves a CORS-wrapped handler on it.
type Server struct {
	cfg     Config
	handler http.Handler

	mu   sync.Mutex
	addr string
}

func New(cfg Config, mux *http.ServeMux) *Server {
	return &Server{cfg: cfg, handler: corsMiddleware(cfg, mux)}
}

// Handler returns the CORS-wrapped handler directly, for tests that
// drive it via httptest without binding a real port.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the address actually bound by Start, valid once
// listening has begun. Empty beforehand.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds cfg.Port (or a dev-mode substitute when the configured
// port is privileged) and serves until ctx is cancelled, at which
// point it shuts down gracefully within 5s.
func (s *Server) Start(ctx context.Context) error {
	port := s.cfg.Port
	if s.cfg.IsDev && port != 0 && port < 1024 {
		slog.Info("api: dev mode, redirecting privileged port", "from", port, "to", 8080)
		port = 8080
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errs.E(opStart, errs.KindNetwork, err, fmt.Sprintf("could not bind port %d", port))
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	srv := &http.Server{Handler: s.handler}

	go func() {
		<-ctx.Done()
		slog.Info("api: shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	slog.Info("api: starting server", "addr", s.addr, "isDev", s.cfg.IsDev)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errs.E(opStart, errs.KindNetwork, err, fmt.Sprintf("server failed on %s", s.addr))
	}
	return nil
}

func corsMiddleware(cfg Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigin(cfg, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigin(cfg Config, origin string) bool {
	if origin == "" {
		return false
	}
	if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
		return true
	}
	return cfg.AllowedOriginSuffix != "" && strings.HasSuffix(origin, cfg.AllowedOriginSuffix)
}
