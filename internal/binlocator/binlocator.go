// Package binlocator finds the frpc executable on the host (spec §4.4).
// It never executes the binary to decide where it lives; an optional,
// best-effort version check comes after a binary has already been
// found.
package binlocator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/blang/semver"

	"github.com/tunnelkit/tunnelkit/internal/errs"
)

const (
	opLocate           errs.Op = "binlocator.Locate"
	opEnsureExecutable errs.Op = "binlocator.EnsureExecutable"
)

// processRunner is the narrow subset of executil.Runner this package
// needs: a single setup command (chmod +x) run against a binary that
// Locate already found but that isn't marked executable yet. Satisfied
// by executil.Real in production; executil.Mock also satisfies it.
type processRunner interface {
	Run(name string, args ...string) error
}

// EnvOverride is the environment variable that, if set, is tried
// before the host's PATH search.
const EnvOverride = "FRPC_BINARY"

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "frpc.exe"
	}
	return "frpc"
}

// commonRoots mirrors spec §4.4's fixed list of install roots, in
// order. ~/.local/bin is expanded at call time since os/exec can't
// expand "~" itself.
func commonRoots() []string {
	home, _ := os.UserHomeDir()
	roots := []string{"/usr/local/bin", "/usr/bin", "/opt/frp"}
	if home != "" {
		roots = append(roots, filepath.Join(home, ".local", "bin"))
	}
	roots = append(roots, "./bin")
	return roots
}

// Binary is the result of a successful Locate.
type Binary struct {
	Path    string
	Version *semver.Version
}

// Locate resolves the frpc executable per spec §4.4's order:
// explicit path, FRPC_BINARY override, PATH search, then the fixed
// install roots. Returns errs.KindBinaryNotFound listing every
// location tried when none is executable.
func Locate(explicitPath string) (Binary, error) {
	var tried []string

	if explicitPath != "" {
		tried = append(tried, explicitPath)
		if isExecutable(explicitPath) {
			return found(explicitPath), nil
		}
	}

	if override := os.Getenv(EnvOverride); override != "" {
		tried = append(tried, override)
		if isExecutable(override) {
			return found(override), nil
		}
	}

	name := binaryName()
	if p, err := exec.LookPath(name); err == nil {
		tried = append(tried, "$PATH/"+name)
		return found(p), nil
	}
	tried = append(tried, "$PATH/"+name)

	for _, root := range commonRoots() {
		candidate := filepath.Join(root, name)
		tried = append(tried, candidate)
		if isExecutable(candidate) {
			return found(candidate), nil
		}
	}

	return Binary{}, errs.E(opLocate, errs.KindBinaryNotFound,
		fmt.Sprintf("frpc not found, searched: %s", strings.Join(tried, ", ")))
}

// EnsureExecutable chmods path +x via runner when it isn't already
// executable. A located binary is occasionally not marked executable
// yet (e.g. just extracted from an archive); this is a best-effort
// setup step, not a Locate precondition — callers should log a
// failure here as a warning, not abort.
func EnsureExecutable(runner processRunner, path string) error {
	if isExecutable(path) {
		return nil
	}
	if err := runner.Run("chmod", "+x", path); err != nil {
		return errs.E(opEnsureExecutable, errs.KindIO, err, "could not chmod +x "+path)
	}
	return nil
}

func found(path string) Binary {
	b := Binary{Path: path}
	if v, err := probeVersion(path); err == nil {
		b.Version = v
	}
	return b
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}

// probeVersion runs "<path> --version" and parses the output with
// semver. It never fails Locate: an unparsable or missing version
// output simply leaves Binary.Version nil.
func probeVersion(path string) (*semver.Version, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	raw := strings.TrimSpace(out.String())
	raw = strings.TrimPrefix(raw, "v")
	// frpc prints lines like "frpc version 0.61.0"; keep only the
	// last whitespace-separated token.
	if fields := strings.Fields(raw); len(fields) > 0 {
		raw = fields[len(fields)-1]
	}

	v, err := semver.Make(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
