// Package tomlemit renders a model.Configuration into the frpc TOML
// configuration file frpc itself reads at startup (spec §4.3, §6).
// Emission goes through a struct-tagged document and
// github.com/pelletier/go-toml/v2's marshaler rather than ad-hoc string
// concatenation, so escaping of quotes and backslashes is always
// correct and field order is fixed by the struct's declaration order.
package tomlemit

import (
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/tunnelkit/tunnelkit/internal/errs"
	"github.com/tunnelkit/tunnelkit/internal/model"
)

const (
	opEmit  errs.Op = "tomlemit.Emit"
	opParse errs.Op = "tomlemit.Parse"
)

const defaultLocalIP = "127.0.0.1"

// document is the top-level shape of an frpc TOML file. Field order
// here is the emission order: server fields, then the optional blocks,
// then the proxies list-of-tables (§6).
type document struct {
	ServerAddr string          `toml:"serverAddr"`
	ServerPort int             `toml:"serverPort"`
	Auth       *authBlock      `toml:"auth,omitempty"`
	TLS        *tlsBlock       `toml:"tls,omitempty"`
	Transport  *transportBlock `toml:"transport,omitempty"`
	Log        *logBlock       `toml:"log,omitempty"`
	Proxies    []proxyEntry    `toml:"proxies"`
}

type authBlock struct {
	Method string `toml:"method"`
	Token  string `toml:"token"`
}

type tlsBlock struct {
	Enable bool `toml:"enable"`
}

type transportBlock struct {
	PoolCount int `toml:"poolCount"`
}

type logBlock struct {
	Level   string `toml:"level,omitempty"`
	To      string `toml:"to,omitempty"`
	MaxDays int    `toml:"maxDays,omitempty"`
}

type requestHeaders struct {
	Set    map[string]string `toml:"set,omitempty"`
	Remove []string          `toml:"remove,omitempty"`
}

// proxyEntry covers both tunnel kinds; fields that don't apply to a
// given kind are left at their zero value and omitted via omitempty,
// except Name/Type/LocalIP/LocalPort which are always present.
type proxyEntry struct {
	Name      string `toml:"name"`
	Type      string `toml:"type"`
	LocalIP   string `toml:"localIP"`
	LocalPort int    `toml:"localPort"`

	CustomDomains     []string        `toml:"customDomains,omitempty"`
	Locations         []string        `toml:"locations,omitempty"`
	UseCompression    *bool           `toml:"useCompression,omitempty"`
	UseEncryption     *bool           `toml:"useEncryption,omitempty"`
	Websocket         *bool           `toml:"websocket,omitempty"`
	HTTPUser          string          `toml:"httpUser,omitempty"`
	HTTPPwd           string          `toml:"httpPwd,omitempty"`
	HostHeaderRewrite string          `toml:"hostHeaderRewrite,omitempty"`
	RequestHeaders    *requestHeaders `toml:"requestHeaders,omitempty"`

	RemotePort int `toml:"remotePort,omitempty"`
}

// Emit renders cfg deterministically: two structurally equal
// configurations always produce byte-identical output, because every
// list here is already in the caller-controlled insertion order and
// every map is sorted by the marshaler before encoding.
func Emit(cfg model.Configuration) ([]byte, error) {
	doc := document{
		ServerAddr: cfg.Server().Host().String(),
		ServerPort: cfg.Server().Port().Int(),
		Transport:  &transportBlock{PoolCount: cfg.Server().MaxPool()},
	}

	if token, ok := cfg.Server().Token(); ok {
		doc.Auth = &authBlock{Method: "token", Token: token.Reveal()}
	}
	if cfg.Server().TLS() {
		doc.TLS = &tlsBlock{Enable: true}
	}

	logging := cfg.Logging()
	if logging.Level != "" || logging.File != "" || logging.Backups != 0 {
		doc.Log = &logBlock{Level: logging.Level, To: logging.File, MaxDays: logging.Backups}
	}

	for _, tun := range cfg.Tunnels() {
		entry, err := proxyEntryOf(tun)
		if err != nil {
			return nil, err
		}
		doc.Proxies = append(doc.Proxies, entry)
	}
	if doc.Proxies == nil {
		doc.Proxies = []proxyEntry{}
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, errs.E(opEmit, errs.KindIO, err, "toml marshal failed")
	}
	return out, nil
}

func proxyEntryOf(tun model.Tunnel) (proxyEntry, error) {
	spec := tun.Spec()
	entry := proxyEntry{
		Name:      spec.ID().String(),
		LocalIP:   defaultLocalIP,
		LocalPort: spec.LocalPort().Int(),
	}

	if httpSpec, ok := spec.AsHTTP(); ok {
		entry.Type = "http"

		domains := httpSpec.CustomDomains()
		entry.CustomDomains = make([]string, len(domains))
		for i, d := range domains {
			entry.CustomDomains[i] = d.String()
		}
		entry.Locations = []string{httpSpec.Path().WithLeadingSlash()}

		opts := httpSpec.Options()
		compression, encryption := opts.Compression, opts.Encryption
		entry.UseCompression = &compression
		entry.UseEncryption = &encryption
		if opts.Websocket {
			ws := true
			entry.Websocket = &ws
		}
		if opts.BasicAuth != nil {
			entry.HTTPUser = opts.BasicAuth.User
			entry.HTTPPwd = opts.BasicAuth.Pass
		}
		entry.HostHeaderRewrite = opts.HostHeaderRewrite

		if len(opts.SetHeaders) > 0 || len(opts.RemoveHeaders) > 0 {
			rh := &requestHeaders{}
			if len(opts.SetHeaders) > 0 {
				rh.Set = opts.SetHeaders
			}
			if len(opts.RemoveHeaders) > 0 {
				remove := make([]string, 0, len(opts.RemoveHeaders))
				for name := range opts.RemoveHeaders {
					remove = append(remove, name)
				}
				sort.Strings(remove)
				rh.Remove = remove
			}
			entry.RequestHeaders = rh
		}
		return entry, nil
	}

	if tcpSpec, ok := spec.AsTCP(); ok {
		entry.Type = "tcp"
		if remotePort, ok := tcpSpec.RemotePort(); ok {
			entry.RemotePort = remotePort.Int()
		}
		return entry, nil
	}

	return proxyEntry{}, errs.E(opEmit, errs.KindOther, "tunnel spec is neither http nor tcp")
}

// Projection is the structural subset of a proxy entry that the
// end-to-end properties in spec §8 compare against: type, localPort,
// customDomains, locations, and any set options — not the full wire
// shape, so unrelated field additions don't break round-trip tests.
type Projection struct {
	Type          string
	LocalPort     int
	CustomDomains []string
	Locations     []string
	Options       map[string]bool
}

// Parse decodes emitted bytes back into a slice of Projections, one
// per proxy, in file order. It exists for round-trip property tests
// (spec §8) and is not used by any production code path.
func Parse(data []byte) ([]Projection, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errs.E(opParse, errs.KindIO, err, "toml unmarshal failed")
	}

	out := make([]Projection, len(doc.Proxies))
	for i, p := range doc.Proxies {
		proj := Projection{
			Type:          p.Type,
			LocalPort:     p.LocalPort,
			CustomDomains: p.CustomDomains,
			Locations:     p.Locations,
			Options:       map[string]bool{},
		}
		if p.UseCompression != nil {
			proj.Options["useCompression"] = *p.UseCompression
		}
		if p.UseEncryption != nil {
			proj.Options["useEncryption"] = *p.UseEncryption
		}
		if p.Websocket != nil {
			proj.Options["websocket"] = *p.Websocket
		}
		out[i] = proj
	}
	return out, nil
}
