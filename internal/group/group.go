// Package group implements scoped-acquisition tunnel sets (spec
// §4.8, component I): a Group guarantees every tunnel it opened is
// closed on exit, and a TemporaryTunnel additionally owns and tears
// down the underlying client — the one-shot form a short-lived CLI
// invocation wants.
package group

import (
	"context"
	"errors"
	"sync"

	"github.com/tunnelkit/tunnelkit/internal/client"
	"github.com/tunnelkit/tunnelkit/internal/errs"
	"github.com/tunnelkit/tunnelkit/internal/model"
	"github.com/tunnelkit/tunnelkit/internal/values"
)

const (
	opExpose errs.Op = "group.Expose"
	opClose  errs.Op = "group.Close"
)

// Order controls the sequence Close tears tunnels down in.
type Order int

const (
	// OrderLIFO closes the most recently opened tunnel first — the
	// default, matching how a defer stack unwinds.
	OrderLIFO Order = iota
	OrderFIFO
)

// Group is a scoped set of tunnels opened through a shared Client. It
// does not own the Client — the caller is still responsible for
// Connect/Disconnect.
type Group struct {
	mu         sync.Mutex
	client     *client.Client
	order      Order
	maxTunnels int
	ids        []values.TunnelID
}

// New returns an empty Group bound to c. maxTunnels <= 0 means
// unbounded (subject to the client's own cap).
func New(c *client.Client, maxTunnels int, order Order) *Group {
	return &Group{client: c, maxTunnels: maxTunnels, order: order}
}

// ExposeHTTP opens an HTTP tunnel through the group's client and
// tracks it for Close.
func (g *Group) ExposeHTTP(ctx context.Context, localPort values.Port, path values.Path, customDomains []values.Domain, opts model.HTTPSpecOptions) (model.Tunnel, error) {
	if err := g.checkCapacity(); err != nil {
		return model.Tunnel{}, err
	}
	tun, err := g.client.ExposeHTTP(ctx, localPort, path, customDomains, opts)
	if err != nil {
		return model.Tunnel{}, errs.E(opExpose, err)
	}
	g.track(tun.Spec().ID())
	return tun, nil
}

// ExposeTCP opens a TCP tunnel through the group's client and tracks
// it for Close.
func (g *Group) ExposeTCP(ctx context.Context, localPort values.Port, remotePort *values.Port) (model.Tunnel, error) {
	if err := g.checkCapacity(); err != nil {
		return model.Tunnel{}, err
	}
	tun, err := g.client.ExposeTCP(ctx, localPort, remotePort)
	if err != nil {
		return model.Tunnel{}, errs.E(opExpose, err)
	}
	g.track(tun.Spec().ID())
	return tun, nil
}

func (g *Group) checkCapacity() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.maxTunnels > 0 && len(g.ids) >= g.maxTunnels {
		return errs.E(opExpose, errs.KindCapacity, "group max_tunnels reached")
	}
	return nil
}

func (g *Group) track(id values.TunnelID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ids = append(g.ids, id)
}

// Len reports how many tunnels are currently tracked by the group.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ids)
}

// Close tears down every tunnel the group opened, in the group's
// Order, continuing past individual failures. All accumulated errors
// are joined and returned as a single errs.KindCleanup error; a
// Group with no tunnels returns nil.
func (g *Group) Close(ctx context.Context) error {
	g.mu.Lock()
	ids := make([]values.TunnelID, len(g.ids))
	copy(ids, g.ids)
	g.ids = nil
	order := g.order
	g.mu.Unlock()

	if order == OrderLIFO {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}

	var closeErrs []error
	for _, id := range ids {
		if err := g.client.CloseTunnel(ctx, id); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}

	if len(closeErrs) > 0 {
		return errs.E(opClose, errs.KindCleanup, errors.Join(closeErrs...),
			"one or more tunnels in the group failed to close cleanly")
	}
	return nil
}

// TemporaryTunnel is a single-tunnel scoped form that also owns the
// underlying Client: Close tears down the tunnel and then disconnects
// the client entirely. Useful for one-shot command-line usage where
// no other caller shares the client.
type TemporaryTunnel struct {
	client *client.Client
	tun    model.Tunnel
}

// ExposeTemporaryHTTP connects a fresh client built from opts and
// opens a single HTTP tunnel on it.
func ExposeTemporaryHTTP(ctx context.Context, opts client.Options, localPort values.Port, path values.Path, customDomains []values.Domain, httpOpts model.HTTPSpecOptions) (*TemporaryTunnel, error) {
	c := client.New(opts)
	if err := c.Connect(ctx); err != nil {
		return nil, errs.E(opExpose, err)
	}
	tun, err := c.ExposeHTTP(ctx, localPort, path, customDomains, httpOpts)
	if err != nil {
		c.Disconnect(ctx)
		return nil, errs.E(opExpose, err)
	}
	return &TemporaryTunnel{client: c, tun: tun}, nil
}

// ExposeTemporaryTCP connects a fresh client built from opts and opens
// a single TCP tunnel on it.
func ExposeTemporaryTCP(ctx context.Context, opts client.Options, localPort values.Port, remotePort *values.Port) (*TemporaryTunnel, error) {
	c := client.New(opts)
	if err := c.Connect(ctx); err != nil {
		return nil, errs.E(opExpose, err)
	}
	tun, err := c.ExposeTCP(ctx, localPort, remotePort)
	if err != nil {
		c.Disconnect(ctx)
		return nil, errs.E(opExpose, err)
	}
	return &TemporaryTunnel{client: c, tun: tun}, nil
}

// Tunnel returns the tunnel's last known snapshot — the value
// returned by the Expose call that created it, not a live read.
func (t *TemporaryTunnel) Tunnel() model.Tunnel { return t.tun }

// Close closes the tunnel and disconnects the owned client, joining
// any failures from both steps.
func (t *TemporaryTunnel) Close(ctx context.Context) error {
	var closeErrs []error
	if err := t.client.CloseTunnel(ctx, t.tun.Spec().ID()); err != nil {
		closeErrs = append(closeErrs, err)
	}
	if err := t.client.Disconnect(ctx); err != nil {
		closeErrs = append(closeErrs, err)
	}
	if len(closeErrs) > 0 {
		return errs.E(opClose, errs.KindCleanup, errors.Join(closeErrs...),
			"temporary tunnel teardown failed")
	}
	return nil
}
