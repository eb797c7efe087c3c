// Package agent owns process lifecycle: fanning a fixed set of
// long-running services out across goroutines and waiting for all of
// them to unwind cleanly on shutdown.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "net/http/pprof"

	"golang.org/x/sync/errgroup"

	"github.com/tunnelkit/tunnelkit/internal/client"
)

// Service is one independently-started, independently-stopped piece
// of the agent process. Start must block until ctx is cancelled, then
// return promptly.
type Service interface {
	Start(ctx context.Context) error
}

// Agent fans services out over goroutines and waits for every one of
// them to return before Start itself returns.
type Agent struct {
	services []Service
}

func New(services []Service) *Agent {
	return &Agent{services: services}
}

// Start runs every service concurrently and blocks until ctx is
// cancelled and all services have unwound. A service returning an
// error is logged but does not cancel its siblings; only ctx does.
func (a *Agent) Start(ctx context.Context) {
	slog.Info("agent: starting services", "count", len(a.services))

	var g errgroup.Group
	for _, svc := range a.services {
		svc := svc
		g.Go(func() error {
			if err := svc.Start(ctx); err != nil {
				slog.Error("agent: service failed to start", "err", err)
			}
			return nil
		})
	}

	<-ctx.Done()
	slog.Info("agent: shutdown signal received, waiting for services")
	g.Wait()
}

// ClientService owns the Client Facade's connect/disconnect lifecycle
// as a Service: Connect on Start, Disconnect once ctx is cancelled.
type ClientService struct {
	Client *client.Client
}

func (s *ClientService) Start(ctx context.Context) error {
	if err := s.Client.Connect(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	slog.Info("agent: disconnecting client")
	disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Client.Disconnect(disconnectCtx)
}

// ProfilerService exposes net/http/pprof on a loopback-only address,
// meant to be reached over an SSH tunnel rather than exposed directly.
type ProfilerService struct {
	Port int
}

func (p *ProfilerService) Start(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", p.Port)
	srv := &http.Server{Addr: addr}
	slog.Info("agent: pprof listening (SSH tunnel required)", "addr", addr)
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// HealthHandler reports process-level health, independent of the
// control API's /healthz which also reports tunnel state.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
