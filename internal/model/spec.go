// Package model holds the immutable configuration model: tunnel
// specs, the Tunnel value, ServerSpec, and the Configuration snapshot
// that the TOML emitter renders (spec §3, §4.2).
package model

import (
	"regexp"
	"strings"

	"github.com/tunnelkit/tunnelkit/internal/errs"
	"github.com/tunnelkit/tunnelkit/internal/values"
)

const (
	opHTTPSpecOf errs.Op = "model.HTTPSpecOf"
	opTCPSpecOf  errs.Op = "model.TCPSpecOf"
)

var headerNameCharset = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// BasicAuth is a validated HTTP basic-auth credential pair.
type BasicAuth struct {
	User string
	Pass string
}

// BasicAuthOf parses a "user:pass" string. Both sides must be
// non-empty and there must be exactly one colon.
func BasicAuthOf(raw string) (BasicAuth, error) {
	const op errs.Op = "model.BasicAuthOf"
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return BasicAuth{}, errs.E(op, errs.KindValidation,
			"basic auth must contain exactly one ':'")
	}
	user, pass := parts[0], parts[1]
	if user == "" || pass == "" {
		return BasicAuth{}, errs.E(op, errs.KindValidation,
			"basic auth user and pass must both be non-empty")
	}
	return BasicAuth{User: user, Pass: pass}, nil
}

// HTTPSpecOptions holds the optional fields of an HTTP tunnel spec.
// HTTPSpecOf stores the options exactly as given: a zero-value
// HTTPSpecOptions has StripPath and Websocket both false. Use
// DefaultHTTPSpecOptions to start from the defaults (both true).
type HTTPSpecOptions struct {
	StripPath         bool
	Websocket         bool
	Compression       bool
	Encryption        bool
	SetHeaders        map[string]string
	RemoveHeaders     map[string]struct{}
	HostHeaderRewrite string
	BasicAuth         *BasicAuth
}

// DefaultHTTPSpecOptions returns the spec-mandated defaults:
// strip_path=true, websocket=true, everything else off/empty.
func DefaultHTTPSpecOptions() HTTPSpecOptions {
	return HTTPSpecOptions{
		StripPath: true,
		Websocket: true,
	}
}

// HTTPSpec is the validated description of one HTTP tunnel.
type HTTPSpec struct {
	id            values.TunnelID
	localPort     values.Port
	path          values.Path
	customDomains []values.Domain
	opts          HTTPSpecOptions
}

// HTTPSpecOf validates its arguments and returns an HTTPSpec.
//
// custom_domains must be non-empty; header names must match
// [A-Za-z0-9_-]+; a non-nil BasicAuth must already have been validated
// by BasicAuthOf (this function does not re-derive it from a raw
// string, to keep the smart-constructor boundary at one place).
func HTTPSpecOf(id values.TunnelID, localPort values.Port, path values.Path, customDomains []values.Domain, opts HTTPSpecOptions) (HTTPSpec, error) {
	if len(customDomains) == 0 {
		return HTTPSpec{}, errs.E(opHTTPSpecOf, errs.KindValidation,
			"custom_domains must be non-empty")
	}
	for name := range opts.SetHeaders {
		if !headerNameCharset.MatchString(name) {
			return HTTPSpec{}, errs.E(opHTTPSpecOf, errs.KindValidation,
				"set_headers name \""+name+"\" must match [A-Za-z0-9_-]+")
		}
	}
	for name := range opts.RemoveHeaders {
		if !headerNameCharset.MatchString(name) {
			return HTTPSpec{}, errs.E(opHTTPSpecOf, errs.KindValidation,
				"remove_headers name \""+name+"\" must match [A-Za-z0-9_-]+")
		}
	}

	domains := make([]values.Domain, len(customDomains))
	copy(domains, customDomains)

	return HTTPSpec{
		id:            id,
		localPort:     localPort,
		path:          path,
		customDomains: domains,
		opts:          opts,
	}, nil
}

func (s HTTPSpec) ID() values.TunnelID     { return s.id }
func (s HTTPSpec) Kind() values.TunnelKind { return values.TunnelKindHTTP }
func (s HTTPSpec) LocalPort() values.Port  { return s.localPort }
func (s HTTPSpec) Path() values.Path       { return s.path }
func (s HTTPSpec) CustomDomains() []values.Domain {
	out := make([]values.Domain, len(s.customDomains))
	copy(out, s.customDomains)
	return out
}
func (s HTTPSpec) Options() HTTPSpecOptions { return s.opts }

// URL returns the externally reachable URL for the tunnel's first
// custom domain, e.g. "https://example.com/myapp/". The scheme is
// always https: the agent's public listener is conventionally TLS
// terminated regardless of the proxy-level Encryption option, which
// only controls encryption of the tunnel segment back to frps.
func (s HTTPSpec) URL() string {
	if len(s.customDomains) == 0 {
		return ""
	}
	return "https://" + s.customDomains[0].String() + s.path.WithLeadingSlash() + "/"
}

// TCPSpec is the validated description of one TCP tunnel.
type TCPSpec struct {
	id         values.TunnelID
	localPort  values.Port
	remotePort *values.Port
}

// TCPSpecOf validates its arguments and returns a TCPSpec. remotePort
// may be nil; the server then assigns one (surfaced once Connected).
func TCPSpecOf(id values.TunnelID, localPort values.Port, remotePort *values.Port) (TCPSpec, error) {
	return TCPSpec{id: id, localPort: localPort, remotePort: remotePort}, nil
}

func (s TCPSpec) ID() values.TunnelID     { return s.id }
func (s TCPSpec) Kind() values.TunnelKind { return values.TunnelKindTCP }
func (s TCPSpec) LocalPort() values.Port  { return s.localPort }

// RemotePort returns the configured remote port and true, or the zero
// Port and false if unset (server-assigned).
func (s TCPSpec) RemotePort() (values.Port, bool) {
	if s.remotePort == nil {
		return values.Port{}, false
	}
	return *s.remotePort, true
}

// TunnelSpec is the tagged union over HTTP and TCP specs (spec §4.9,
// "dynamic dispatch across tunnel kinds" redesigned as a variant).
type TunnelSpec struct {
	http *HTTPSpec
	tcp  *TCPSpec
}

// SpecFromHTTP wraps an HTTPSpec as a TunnelSpec.
func SpecFromHTTP(s HTTPSpec) TunnelSpec { return TunnelSpec{http: &s} }

// SpecFromTCP wraps a TCPSpec as a TunnelSpec.
func SpecFromTCP(s TCPSpec) TunnelSpec { return TunnelSpec{tcp: &s} }

func (s TunnelSpec) Kind() values.TunnelKind {
	if s.http != nil {
		return values.TunnelKindHTTP
	}
	return values.TunnelKindTCP
}

func (s TunnelSpec) ID() values.TunnelID {
	if s.http != nil {
		return s.http.ID()
	}
	return s.tcp.ID()
}

func (s TunnelSpec) LocalPort() values.Port {
	if s.http != nil {
		return s.http.LocalPort()
	}
	return s.tcp.LocalPort()
}

// AsHTTP returns the wrapped HTTPSpec and true, or the zero value and
// false if this TunnelSpec wraps a TCPSpec instead.
func (s TunnelSpec) AsHTTP() (HTTPSpec, bool) {
	if s.http == nil {
		return HTTPSpec{}, false
	}
	return *s.http, true
}

// AsTCP returns the wrapped TCPSpec and true, or the zero value and
// false if this TunnelSpec wraps an HTTPSpec instead.
func (s TunnelSpec) AsTCP() (TCPSpec, bool) {
	if s.tcp == nil {
		return TCPSpec{}, false
	}
	return *s.tcp, true
}
