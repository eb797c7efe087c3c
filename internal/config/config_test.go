// Whitebox test (package config, not config_test) because we need to test
// the unexported env-parsing helpers directly.
package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name     string
		envKey   string
		setValue string
		setIt    bool
		fallback int
		want     int
	}{
		{
			name:     "valid integer env var",
			envKey:   "TEST_PORT",
			setValue: "9090",
			setIt:    true,
			fallback: 8080,
			want:     9090,
		},
		{
			name:     "empty string falls back",
			envKey:   "TEST_EMPTY",
			setValue: "",
			setIt:    true,
			fallback: 8080,
			want:     8080,
		},
		{
			name:     "non-integer falls back",
			envKey:   "TEST_BAD",
			setValue: "not-a-number",
			setIt:    true,
			fallback: 7000,
			want:     7000,
		},
		{
			name:     "unset variable falls back",
			envKey:   "TEST_UNSET_XYZ",
			setIt:    false,
			fallback: 5000,
			want:     5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setIt {
				t.Setenv(tt.envKey, tt.setValue) // t.Setenv restores automatically
			} else {
				os.Unsetenv(tt.envKey)
			}

			got := getEnvAsInt(tt.envKey, tt.fallback)
			if got != tt.want {
				t.Errorf("getEnvAsInt(%q) = %d, want %d", tt.envKey, got, tt.want)
			}
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name     string
		setValue string
		setIt    bool
		fallback bool
		want     bool
	}{
		{name: "true", setValue: "true", setIt: true, fallback: false, want: true},
		{name: "false", setValue: "false", setIt: true, fallback: true, want: false},
		{name: "garbage falls back", setValue: "maybe", setIt: true, fallback: true, want: true},
		{name: "unset falls back", setIt: false, fallback: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "TEST_BOOL_XYZ"
			if tt.setIt {
				t.Setenv(key, tt.setValue)
			} else {
				os.Unsetenv(key)
			}
			if got := getEnvAsBool(key, tt.fallback); got != tt.want {
				t.Errorf("getEnvAsBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	const key = "TEST_DURATION_MS"
	t.Setenv(key, "1500")
	got := getEnvAsDuration(key, 9*time.Second)
	if got != 1500*time.Millisecond {
		t.Errorf("getEnvAsDuration() = %v, want %v", got, 1500*time.Millisecond)
	}

	os.Unsetenv(key)
	got = getEnvAsDuration(key, 9*time.Second)
	if got != 9*time.Second {
		t.Errorf("getEnvAsDuration() fallback = %v, want %v", got, 9*time.Second)
	}
}

func TestLoad_ClampsMaxTunnels(t *testing.T) {
	t.Setenv("TUNNEL_MAX_TUNNELS", "500")
	cfg := Load(true)
	if cfg.MaxTunnels != 100 {
		t.Errorf("Load() MaxTunnels = %d, want clamped to 100", cfg.MaxTunnels)
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("TUNNEL_SERVER_HOST")
	os.Unsetenv("TUNNEL_SERVER_PORT")
	cfg := Load(true)
	if cfg.ServerPort != 7000 {
		t.Errorf("Load() ServerPort = %d, want 7000", cfg.ServerPort)
	}
	if cfg.StartupTimeout != 10*time.Second {
		t.Errorf("Load() StartupTimeout = %v, want 10s", cfg.StartupTimeout)
	}
}
