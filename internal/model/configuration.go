package model

import (
	"github.com/tunnelkit/tunnelkit/internal/errs"
	"github.com/tunnelkit/tunnelkit/internal/values"
)

const (
	opServerSpecOf errs.Op = "model.ServerSpecOf"
	opAddTunnel    errs.Op = "model.Configuration.AddTunnel"
	opRemoveTunnel errs.Op = "model.Configuration.RemoveTunnel"

	defaultServerPort = 7000
	maxTunnelsHardCap = 100
)

// LoggingSpec mirrors the frpc [log] section (§4.3).
type LoggingSpec struct {
	Level     string
	File      string
	MaxSizeMB int
	Backups   int
}

// ServerSpec is the validated frps endpoint the agent dials.
type ServerSpec struct {
	host    values.Domain
	port    values.Port
	token   *values.Token
	tls     bool
	maxPool int
}

// ServerSpecOf validates its arguments. port defaults to 7000 when
// zero is passed for "unset"; maxPool must be >= 1.
func ServerSpecOf(host values.Domain, port values.Port, token *values.Token, tls bool, maxPool int) (ServerSpec, error) {
	if maxPool < 1 {
		return ServerSpec{}, errs.E(opServerSpecOf, errs.KindValidation,
			"max_pool must be >= 1")
	}
	if port.Int() == 0 {
		p, _ := values.PortOf(defaultServerPort)
		port = p
	}
	return ServerSpec{host: host, port: port, token: token, tls: tls, maxPool: maxPool}, nil
}

func (s ServerSpec) Host() values.Domain { return s.host }
func (s ServerSpec) Port() values.Port   { return s.port }
func (s ServerSpec) TLS() bool           { return s.tls }
func (s ServerSpec) MaxPool() int        { return s.maxPool }

// Token returns the configured auth token and true, or the zero Token
// and false if the server requires none.
func (s ServerSpec) Token() (values.Token, bool) {
	if s.token == nil {
		return values.Token{}, false
	}
	return *s.token, true
}

// Configuration is the full, immutable snapshot the TOML emitter
// renders: a server endpoint, an ordered list of tunnels, and the
// logging block. Every mutating method (WithServer, AddTunnel,
// RemoveTunnel) returns a new Configuration; the receiver is never
// modified (spec §4.2).
type Configuration struct {
	server  ServerSpec
	tunnels []Tunnel
	logging LoggingSpec
}

// NewConfiguration returns a Configuration with no tunnels yet.
func NewConfiguration(server ServerSpec, logging LoggingSpec) Configuration {
	return Configuration{server: server, logging: logging}
}

func (c Configuration) Server() ServerSpec   { return c.server }
func (c Configuration) Logging() LoggingSpec { return c.logging }

// Tunnels returns the tunnels in insertion order. The returned slice
// is a copy; callers may not mutate c through it.
func (c Configuration) Tunnels() []Tunnel {
	out := make([]Tunnel, len(c.tunnels))
	copy(out, c.tunnels)
	return out
}

// WithServer returns a copy of c with its server endpoint replaced.
// Existing tunnels and their admission state are untouched.
func (c Configuration) WithServer(server ServerSpec) Configuration {
	cp := c
	cp.server = server
	return cp
}

// AddTunnel runs the admission checks of §3/§4.6 and, if they pass,
// returns a copy of c with t appended. maxTunnels caps the list at a
// value <= 100 (the hard ceiling); pass 0 to use the hard ceiling
// itself.
//
// Checks, in order: id uniqueness, capacity, then kind-specific
// conflicts — HTTP tunnels conflict on exact (domain, path) or
// prefix-boundary overlap (§4.6's location overlap rule) across any
// shared custom domain; TCP tunnels conflict on a shared explicit
// remote port.
func (c Configuration) AddTunnel(t Tunnel, maxTunnels int) (Configuration, error) {
	limit := maxTunnelsHardCap
	if maxTunnels > 0 && maxTunnels < limit {
		limit = maxTunnels
	}

	newID := t.Spec().ID()
	for _, existing := range c.tunnels {
		if existing.Spec().ID() == newID {
			return Configuration{}, errs.E(opAddTunnel, errs.KindConflict,
				"tunnel id \""+newID.String()+"\" already exists")
		}
	}
	if len(c.tunnels) >= limit {
		return Configuration{}, errs.E(opAddTunnel, errs.KindCapacity,
			"max_tunnels reached")
	}

	if httpSpec, ok := t.Spec().AsHTTP(); ok {
		for _, existing := range c.tunnels {
			existingHTTP, ok := existing.Spec().AsHTTP()
			if !ok {
				continue
			}
			if conflict := httpConflict(httpSpec, existingHTTP); conflict {
				return Configuration{}, errs.E(opAddTunnel, errs.KindConflict,
					"location overlaps an existing tunnel on a shared domain")
			}
		}
	}

	if tcpSpec, ok := t.Spec().AsTCP(); ok {
		if remotePort, has := tcpSpec.RemotePort(); has {
			for _, existing := range c.tunnels {
				existingTCP, ok := existing.Spec().AsTCP()
				if !ok {
					continue
				}
				existingRemote, has2 := existingTCP.RemotePort()
				if has2 && existingRemote == remotePort {
					return Configuration{}, errs.E(opAddTunnel, errs.KindConflict,
						"remote_port already claimed by another tunnel")
				}
			}
		}
	}

	cp := c
	cp.tunnels = make([]Tunnel, len(c.tunnels)+1)
	copy(cp.tunnels, c.tunnels)
	cp.tunnels[len(c.tunnels)] = t
	return cp, nil
}

// RemoveTunnel returns a copy of c with the tunnel matching id
// removed. It fails with KindInvalidState if no such tunnel exists.
func (c Configuration) RemoveTunnel(id values.TunnelID) (Configuration, error) {
	idx := -1
	for i, existing := range c.tunnels {
		if existing.Spec().ID() == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Configuration{}, errs.E(opRemoveTunnel, errs.KindInvalidState,
			"no tunnel with id \""+id.String()+"\"")
	}
	cp := c
	cp.tunnels = make([]Tunnel, 0, len(c.tunnels)-1)
	cp.tunnels = append(cp.tunnels, c.tunnels[:idx]...)
	cp.tunnels = append(cp.tunnels, c.tunnels[idx+1:]...)
	return cp, nil
}

// httpConflict reports whether a and b cannot coexist: same domain
// and identical path, or same domain and one path is a prefix
// boundary of the other (§4.6).
func httpConflict(a, b HTTPSpec) bool {
	if !sharesDomain(a, b) {
		return false
	}
	if a.Path().String() == b.Path().String() {
		return true
	}
	return a.Path().IsPrefixBoundaryOf(b.Path()) || b.Path().IsPrefixBoundaryOf(a.Path())
}

func sharesDomain(a, b HTTPSpec) bool {
	for _, da := range a.CustomDomains() {
		for _, db := range b.CustomDomains() {
			if da.String() == db.String() {
				return true
			}
		}
	}
	return false
}
