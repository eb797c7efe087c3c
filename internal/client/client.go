// Package client is the public facade (spec §4.7, component H): the
// operations a caller embeds the control plane through. It owns a
// registry, a supervisor, and the binary/config-path bookkeeping that
// ties them together, and is the one place that holds both mutexes'
// worth of state in its head at once.
package client

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tunnelkit/tunnelkit/internal/binlocator"
	"github.com/tunnelkit/tunnelkit/internal/errs"
	"github.com/tunnelkit/tunnelkit/internal/model"
	"github.com/tunnelkit/tunnelkit/internal/platform/executil"
	"github.com/tunnelkit/tunnelkit/internal/probe"
	"github.com/tunnelkit/tunnelkit/internal/registry"
	"github.com/tunnelkit/tunnelkit/internal/supervisor"
	"github.com/tunnelkit/tunnelkit/internal/tomlemit"
	"github.com/tunnelkit/tunnelkit/internal/values"
)

const (
	opConnect     errs.Op = "client.Connect"
	opDisconnect  errs.Op = "client.Disconnect"
	opExposeHTTP  errs.Op = "client.ExposeHTTP"
	opExposeTCP   errs.Op = "client.ExposeTCP"
	opCloseTunnel errs.Op = "client.CloseTunnel"

	defaultTunnelReadyTimeout = 5 * time.Second
)

// Options configures a Client. Server and Logging feed the rendered
// configuration file; BinaryPath, if non-empty, is tried before
// binlocator's environment and PATH search.
type Options struct {
	Server             model.ServerSpec
	Logging            model.LoggingSpec
	BinaryPath         string
	MaxTunnels         int
	TunnelReadyTimeout time.Duration
	Supervisor         supervisor.Options
}

func (o Options) withDefaults() Options {
	if o.TunnelReadyTimeout == 0 {
		o.TunnelReadyTimeout = defaultTunnelReadyTimeout
	}
	return o
}

// Client is the control plane entry point. All public methods are
// safe for concurrent use.
type Client struct {
	opts       Options
	registry   *registry.Registry
	supervisor *supervisor.Supervisor

	mu         sync.Mutex
	binary     binlocator.Binary
	configPath string
	connected  bool
	degraded   bool
}

// New returns a disconnected Client.
func New(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		opts:       opts,
		registry:   registry.New(opts.MaxTunnels),
		supervisor: supervisor.New(opts.Supervisor),
	}
}

// Connect locates the frpc binary, renders the (possibly tunnel-less)
// configuration, and starts the supervisor. Idempotent once connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	if c.degraded {
		c.mu.Unlock()
		return errs.E(opConnect, errs.KindDegraded, "client is degraded; Disconnect before reconnecting")
	}
	c.mu.Unlock()

	bin, err := binlocator.Locate(c.opts.BinaryPath)
	if err != nil {
		return errs.E(opConnect, err)
	}
	if err := binlocator.EnsureExecutable(executil.Real{}, bin.Path); err != nil {
		slog.Warn("client: could not ensure frpc binary is executable", "path", bin.Path, "err", err)
	}

	if err := probe.Check(ctx, c.opts.Server.Host().String()); err != nil {
		slog.Warn("client: server reachability pre-flight failed, proceeding anyway", "host", c.opts.Server.Host().String(), "err", err)
	}

	path, err := c.writeConfig(c.projectConfiguration())
	if err != nil {
		return errs.E(opConnect, errs.KindIO, err, "could not write frpc configuration")
	}

	if err := c.supervisor.Start(ctx, bin.Path, path); err != nil {
		os.Remove(path)
		return errs.E(opConnect, err)
	}

	c.mu.Lock()
	c.binary = bin
	c.configPath = path
	c.connected = true
	c.mu.Unlock()

	slog.Info("client: connected", "server", c.opts.Server.Host().String(), "binary", bin.Path)
	return nil
}

// Disconnect closes every tunnel best-effort, stops the supervisor,
// and removes the rendered config file. Idempotent.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	configPath := c.configPath
	c.mu.Unlock()

	var closeErrs []error
	for _, tun := range c.registry.List() {
		if err := c.forceCloseInRegistry(tun.Spec().ID()); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}

	if err := c.supervisor.Stop(ctx); err != nil {
		closeErrs = append(closeErrs, err)
	}
	if configPath != "" {
		if err := os.Remove(configPath); err != nil && !os.IsNotExist(err) {
			closeErrs = append(closeErrs, err)
		}
	}

	c.mu.Lock()
	c.connected = false
	c.degraded = false
	c.configPath = ""
	c.mu.Unlock()

	if len(closeErrs) > 0 {
		return errs.E(opDisconnect, errs.KindCleanup, errors.Join(closeErrs...),
			"one or more tunnels failed to close cleanly")
	}
	return nil
}

// ExposeHTTP builds, admits, and activates an HTTP tunnel.
func (c *Client) ExposeHTTP(ctx context.Context, localPort values.Port, path values.Path, customDomains []values.Domain, opts model.HTTPSpecOptions) (model.Tunnel, error) {
	spec, err := model.HTTPSpecOf(values.NewRandomTunnelID(), localPort, path, customDomains, opts)
	if err != nil {
		return model.Tunnel{}, errs.E(opExposeHTTP, err)
	}
	tun := model.NewTunnel(model.SpecFromHTTP(spec), time.Now())
	return c.admitAndApply(ctx, opExposeHTTP, tun)
}

// ExposeTCP builds, admits, and activates a TCP tunnel. remotePort may
// be nil to let the server assign one.
func (c *Client) ExposeTCP(ctx context.Context, localPort values.Port, remotePort *values.Port) (model.Tunnel, error) {
	spec, err := model.TCPSpecOf(values.NewRandomTunnelID(), localPort, remotePort)
	if err != nil {
		return model.Tunnel{}, errs.E(opExposeTCP, err)
	}
	tun := model.NewTunnel(model.SpecFromTCP(spec), time.Now())
	return c.admitAndApply(ctx, opExposeTCP, tun)
}

// ListTunnels returns a point-in-time snapshot; mutating the result
// has no effect on the client.
func (c *Client) ListTunnels() []model.Tunnel {
	return c.registry.List()
}

// CloseTunnel transitions id to Closed, removes it from the registry,
// and restarts the supervisor with the remaining tunnels. The
// supervisor keeps running even if this was the last tunnel.
func (c *Client) CloseTunnel(ctx context.Context, id values.TunnelID) error {
	if err := c.forceCloseInRegistry(id); err != nil {
		return errs.E(opCloseTunnel, err)
	}

	newPath, err := c.writeConfig(c.projectConfiguration())
	if err != nil {
		return errs.E(opCloseTunnel, errs.KindIO, err, "could not write frpc configuration")
	}

	c.mu.Lock()
	bin := c.binary
	oldPath := c.configPath
	c.mu.Unlock()

	if err := c.supervisor.Restart(ctx, bin.Path, newPath); err != nil {
		os.Remove(newPath)
		return errs.E(opCloseTunnel, err)
	}

	os.Remove(oldPath)
	c.mu.Lock()
	c.configPath = newPath
	c.mu.Unlock()
	return nil
}

// admitAndApply inserts tun, re-renders the configuration, and
// restarts the supervisor within tunnel_ready_timeout. A restart
// failure rolls back to the previously applied configuration; if the
// rollback itself fails, the client becomes degraded (spec §4.7).
func (c *Client) admitAndApply(ctx context.Context, op errs.Op, tun model.Tunnel) (model.Tunnel, error) {
	c.mu.Lock()
	degraded := c.degraded
	c.mu.Unlock()
	if degraded {
		return model.Tunnel{}, errs.E(op, errs.KindDegraded, "client is degraded; Disconnect before exposing tunnels")
	}

	id := tun.Spec().ID()
	if err := c.registry.Insert(tun); err != nil {
		return model.Tunnel{}, errs.E(op, err)
	}

	newPath, err := c.writeConfig(c.projectConfiguration())
	if err != nil {
		c.registry.Remove(id)
		return model.Tunnel{}, errs.E(op, errs.KindIO, err, "could not write frpc configuration")
	}

	c.mu.Lock()
	bin := c.binary
	oldPath := c.configPath
	c.mu.Unlock()

	c.registry.Transition(id, values.StatusConnecting, time.Now())

	readyCtx, cancel := context.WithTimeout(ctx, c.opts.TunnelReadyTimeout)
	defer cancel()
	restartErr := c.supervisor.Restart(readyCtx, bin.Path, newPath)

	if restartErr != nil && errs.KindOf(restartErr) == errs.KindStartupTimeout {
		os.Remove(oldPath)
		c.mu.Lock()
		c.configPath = newPath
		c.mu.Unlock()
		current, _ := c.registry.Get(id)
		return current, errs.E(op, errs.KindStartupTimeout,
			"tunnel left Connecting: tunnel_ready_timeout elapsed")
	}

	if restartErr != nil {
		c.registry.Remove(id)
		os.Remove(newPath)
		return model.Tunnel{}, c.rollback(ctx, op, restartErr, bin.Path)
	}

	os.Remove(oldPath)
	c.mu.Lock()
	c.configPath = newPath
	c.mu.Unlock()

	updated, err := c.registry.Transition(id, values.StatusConnected, time.Now())
	if err != nil {
		return model.Tunnel{}, errs.E(op, err)
	}
	return updated, nil
}

// rollback re-renders the configuration from whatever remains in the
// registry (the failed tunnel has already been removed by the caller)
// and tries to get the supervisor back to that known-good state. If
// it can't, the client is marked degraded: further Expose calls fail
// fast until a Disconnect/Connect cycle.
func (c *Client) rollback(ctx context.Context, op errs.Op, cause error, binaryPath string) error {
	rollbackPath, err := c.writeConfig(c.projectConfiguration())
	if err == nil {
		if err2 := c.supervisor.Restart(ctx, binaryPath, rollbackPath); err2 == nil {
			c.mu.Lock()
			c.configPath = rollbackPath
			c.mu.Unlock()
			return errs.E(op, cause)
		}
		os.Remove(rollbackPath)
	}

	c.mu.Lock()
	c.degraded = true
	c.mu.Unlock()
	slog.Error("client: rollback failed, entering degraded mode", "cause", cause)
	return errs.E(op, errs.KindDegraded, cause, "rollback failed; client is now degraded")
}

// forceCloseInRegistry drives id through whatever transitions the
// state machine requires to reach Closed from its current state, then
// removes it. A tunnel not present is treated as already closed.
func (c *Client) forceCloseInRegistry(id values.TunnelID) error {
	current, ok := c.registry.Get(id)
	if !ok {
		return nil
	}
	for _, to := range closePath(current.Status()) {
		var err error
		if to == values.StatusError {
			_, err = c.registry.Fail(id, errs.E(errs.KindCancelled, "closed by caller"), time.Now())
		} else {
			_, err = c.registry.Transition(id, to, time.Now())
		}
		if err != nil {
			return err
		}
	}
	_, err := c.registry.Remove(id)
	return err
}

// closePath lists the transitions needed to reach Closed from status,
// given the table in spec §4.6 (Closed is reachable only from
// Disconnected or Error).
func closePath(status values.TunnelStatus) []values.TunnelStatus {
	switch status {
	case values.StatusConnected:
		return []values.TunnelStatus{values.StatusDisconnected, values.StatusClosed}
	case values.StatusDisconnected, values.StatusError:
		return []values.TunnelStatus{values.StatusClosed}
	case values.StatusPending, values.StatusConnecting:
		return []values.TunnelStatus{values.StatusError, values.StatusClosed}
	default:
		return nil
	}
}

// projectConfiguration builds the pure Configuration snapshot the
// emitter renders from whatever is currently in the registry.
func (c *Client) projectConfiguration() model.Configuration {
	cfg := model.NewConfiguration(c.opts.Server, c.opts.Logging)
	for _, tun := range c.registry.List() {
		var err error
		cfg, err = cfg.AddTunnel(tun, 0)
		if err != nil {
			// The registry already enforced admission; a conflict here
			// would mean the two components disagree and is a bug, not
			// a recoverable runtime condition.
			panic("client: registry tunnel rejected by configuration projection: " + err.Error())
		}
	}
	return cfg
}

// writeConfig renders cfg and writes it to a fresh temp file with the
// permissions spec §6 requires (0600, OS temp dir, .toml suffix).
func (c *Client) writeConfig(cfg model.Configuration) (string, error) {
	body, err := tomlemit.Emit(cfg)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "tunnelkit-*.toml")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.Chmod(0o600); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if _, err := f.Write(body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Degraded reports whether the client is in degraded mode (spec
// §4.7): only Disconnect is meaningful until a fresh Connect.
func (c *Client) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}
