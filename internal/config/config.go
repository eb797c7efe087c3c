// Package config loads the control plane's environment-driven settings.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything main.go needs to wire up a Client.
type Config struct {
	// FrpcBinary is the dedicated override variable for the Binary
	// Locator (spec §4.4 item 2). Empty means "search the usual places".
	FrpcBinary string

	ServerHost  string
	ServerPort  int
	ServerToken string
	ServerTLS   bool
	MaxPool     int

	MaxTunnels int

	StartupTimeout  time.Duration
	GracefulTimeout time.Duration
	MinStartupWait  time.Duration
	RingBufferSize  int

	TunnelReadyTimeout time.Duration

	APIPort   int
	PprofPort int

	DataDir string
	IsDev   bool
}

// Load reads environment variables (optionally layered on top of a
// .env file) and returns a Config. devMode is passed in from main so
// that flag parsing stays in main.
func Load(devMode bool) *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config: no .env file found, relying on system env vars")
	}

	cfg := &Config{
		IsDev:           devMode,
		FrpcBinary:      getEnv("FRPC_BINARY", ""),
		ServerHost:      getEnv("TUNNEL_SERVER_HOST", "127.0.0.1"),
		ServerPort:      getEnvAsInt("TUNNEL_SERVER_PORT", 7000),
		ServerToken:     getEnv("TUNNEL_SERVER_TOKEN", ""),
		ServerTLS:       getEnvAsBool("TUNNEL_SERVER_TLS", false),
		MaxPool:         getEnvAsInt("TUNNEL_MAX_POOL", 1),
		MaxTunnels:      getEnvAsInt("TUNNEL_MAX_TUNNELS", 10),
		StartupTimeout:  getEnvAsDuration("TUNNEL_STARTUP_TIMEOUT_MS", 10*time.Second),
		GracefulTimeout: getEnvAsDuration("TUNNEL_GRACEFUL_TIMEOUT_MS", 5*time.Second),
		MinStartupWait:  getEnvAsDuration("TUNNEL_MIN_STARTUP_WAIT_MS", 500*time.Millisecond),
		RingBufferSize:  getEnvAsInt("TUNNEL_RING_BUFFER_SIZE", 65536),

		TunnelReadyTimeout: getEnvAsDuration("TUNNEL_READY_TIMEOUT_MS", 15*time.Second),

		APIPort:   getEnvAsInt("TUNNEL_API_PORT", 7080),
		PprofPort: getEnvAsInt("TUNNEL_PPROF_PORT", 6060),

		DataDir: getEnv("TUNNEL_DATA_DIR", "./data"),
	}

	if cfg.MaxTunnels > 100 {
		slog.Warn("config: TUNNEL_MAX_TUNNELS exceeds the hard cap, clamping",
			"requested", cfg.MaxTunnels, "cap", 100)
		cfg.MaxTunnels = 100
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("config: invalid integer env var, using default",
			"key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func getEnvAsBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("config: invalid boolean env var, using default",
			"key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

// getEnvAsDuration reads a millisecond integer env var into a
// time.Duration. Using milliseconds (not a Go duration string) keeps
// the env var interface simple for operators and scripts.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	ms := getEnvAsInt(key, -1)
	if ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
