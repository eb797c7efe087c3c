// Package identity persists a process-local instance id used to
// disambiguate descriptive TunnelIDs on collision (spec §3, TunnelID).
package identity

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultPath returns the lock file path for the given data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "instance-id.lock")
}

// LoadOrCreate reads the instance id from path, generating and
// persisting a new one on first run. The path is injected (unlike an
// earlier draft of this logic, which hardcoded it based on a dev flag)
// so tests can point it at a temp directory.
func LoadOrCreate(path string) string {
	if content, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(content))
	}

	id := "inst-" + uuid.New().String()
	slog.Info("identity: generated new instance id", "id", id)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("identity: could not create directory, id will not persist",
			"dir", filepath.Dir(path), "err", err)
		return id
	}
	if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
		slog.Warn("identity: could not save instance id to disk", "path", path, "err", err)
	}
	return id
}

// Short returns the last dash-separated segment of an instance id, cut
// to at most 8 characters, suitable as a short collision-breaking
// suffix on a descriptive TunnelID.
func Short(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) == 0 {
		return id
	}
	last := parts[len(parts)-1]
	if len(last) > 8 {
		return last[:8]
	}
	return last
}
