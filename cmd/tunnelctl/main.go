package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"flag"

	"github.com/tunnelkit/tunnelkit/internal/agent"
	"github.com/tunnelkit/tunnelkit/internal/api"
	"github.com/tunnelkit/tunnelkit/internal/client"
	"github.com/tunnelkit/tunnelkit/internal/config"
	"github.com/tunnelkit/tunnelkit/internal/controlapi"
	"github.com/tunnelkit/tunnelkit/internal/logger"
	"github.com/tunnelkit/tunnelkit/internal/model"
	"github.com/tunnelkit/tunnelkit/internal/probe"
	"github.com/tunnelkit/tunnelkit/internal/supervisor"
	"github.com/tunnelkit/tunnelkit/internal/values"
)

func main() {
	devMode := flag.Bool("dev", false, "Run in development mode (verbose text logging)")
	flag.Parse()

	logger.Init(*devMode)
	cfg := config.Load(*devMode)

	srv, err := buildServerSpec(cfg)
	if err != nil {
		slog.Error("tunnelctl: invalid server configuration", "err", err)
		os.Exit(1)
	}

	c := client.New(client.Options{
		Server:             srv,
		Logging:            model.LoggingSpec{Level: "info"},
		BinaryPath:         cfg.FrpcBinary,
		MaxTunnels:         cfg.MaxTunnels,
		TunnelReadyTimeout: cfg.TunnelReadyTimeout,
		Supervisor: supervisor.Options{
			StartupTimeout:  cfg.StartupTimeout,
			MinStartupWait:  cfg.MinStartupWait,
			GracefulTimeout: cfg.GracefulTimeout,
			RingBufferSize:  cfg.RingBufferSize,
		},
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", agent.HealthHandler)
	controlapi.New(c).Routes(mux)

	apiSvc := api.New(api.Config{
		Port:  cfg.APIPort,
		IsDev: cfg.IsDev,
	}, mux)

	a := agent.New([]agent.Service{
		&agent.ClientService{Client: c},
		apiSvc,
		&probe.Ticker{Host: cfg.ServerHost},
		&agent.ProfilerService{Port: cfg.PprofPort},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Start(ctx)
	slog.Info("tunnelctl: shutdown complete")
}

func buildServerSpec(cfg *config.Config) (model.ServerSpec, error) {
	host, err := values.DomainOf(cfg.ServerHost)
	if err != nil {
		return model.ServerSpec{}, err
	}
	port, err := values.PortOf(cfg.ServerPort)
	if err != nil {
		return model.ServerSpec{}, err
	}

	var token *values.Token
	if cfg.ServerToken != "" {
		t, err := values.TokenOf(cfg.ServerToken)
		if err != nil {
			return model.ServerSpec{}, err
		}
		token = &t
	}

	return model.ServerSpecOf(host, port, token, cfg.ServerTLS, cfg.MaxPool)
}
