package tomlemit

import (
	"bytes"
	"testing"
	"time"

	"github.com/tunnelkit/tunnelkit/internal/model"
	"github.com/tunnelkit/tunnelkit/internal/values"
)

func mustPort(t *testing.T, n int) values.Port {
	t.Helper()
	p, err := values.PortOf(n)
	if err != nil {
		t.Fatalf("PortOf(%d): %v", n, err)
	}
	return p
}

func mustDomain(t *testing.T, s string) values.Domain {
	t.Helper()
	d, err := values.DomainOf(s)
	if err != nil {
		t.Fatalf("DomainOf(%q): %v", s, err)
	}
	return d
}

func mustPath(t *testing.T, s string) values.Path {
	t.Helper()
	p, err := values.PathOf(s)
	if err != nil {
		t.Fatalf("PathOf(%q): %v", s, err)
	}
	return p
}

func mustID(t *testing.T, s string) values.TunnelID {
	t.Helper()
	id, err := values.TunnelIDOf(s)
	if err != nil {
		t.Fatalf("TunnelIDOf(%q): %v", s, err)
	}
	return id
}

func exampleConfig(t *testing.T) model.Configuration {
	t.Helper()
	host := mustDomain(t, "tunnel.example.com")
	port := mustPort(t, 7000)
	token, err := values.TokenOf("s3cret-abcdefgh")
	if err != nil {
		t.Fatalf("TokenOf: %v", err)
	}
	server, err := model.ServerSpecOf(host, port, &token, false, 5)
	if err != nil {
		t.Fatalf("ServerSpecOf: %v", err)
	}

	cfg := model.NewConfiguration(server, model.LoggingSpec{Level: "info"})

	httpSpec, err := model.HTTPSpecOf(
		mustID(t, "web"),
		mustPort(t, 3000),
		mustPath(t, "myapp"),
		[]values.Domain{mustDomain(t, "example.com")},
		model.DefaultHTTPSpecOptions(),
	)
	if err != nil {
		t.Fatalf("HTTPSpecOf: %v", err)
	}
	cfg, err = cfg.AddTunnel(model.NewTunnel(model.SpecFromHTTP(httpSpec), time.Unix(0, 0)), 0)
	if err != nil {
		t.Fatalf("AddTunnel: %v", err)
	}
	return cfg
}

func TestEmit_HTTPTunnelFields(t *testing.T) {
	cfg := exampleConfig(t)

	out, err := Emit(cfg)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	projections, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(projections) != 1 {
		t.Fatalf("expected 1 proxy, got %d", len(projections))
	}

	p := projections[0]
	if p.Type != "http" {
		t.Errorf("Type = %q, want http", p.Type)
	}
	if p.LocalPort != 3000 {
		t.Errorf("LocalPort = %d, want 3000", p.LocalPort)
	}
	if len(p.CustomDomains) != 1 || p.CustomDomains[0] != "example.com" {
		t.Errorf("CustomDomains = %v", p.CustomDomains)
	}
	if len(p.Locations) != 1 || p.Locations[0] != "/myapp" {
		t.Errorf("Locations = %v", p.Locations)
	}
	if !p.Options["websocket"] {
		t.Error("websocket should be true by default")
	}
}

func TestEmit_Idempotent(t *testing.T) {
	cfg := exampleConfig(t)

	a, err := Emit(cfg)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	b, err := Emit(cfg)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("emitting the same configuration twice produced different output")
	}
}

func TestEmit_TCPTunnelOmitsRemotePortWhenUnset(t *testing.T) {
	host := mustDomain(t, "tunnel.example.com")
	server, err := model.ServerSpecOf(host, mustPort(t, 7000), nil, false, 1)
	if err != nil {
		t.Fatalf("ServerSpecOf: %v", err)
	}
	cfg := model.NewConfiguration(server, model.LoggingSpec{})

	tcpSpec, err := model.TCPSpecOf(mustID(t, "ssh"), mustPort(t, 22), nil)
	if err != nil {
		t.Fatalf("TCPSpecOf: %v", err)
	}
	cfg, err = cfg.AddTunnel(model.NewTunnel(model.SpecFromTCP(tcpSpec), time.Unix(0, 0)), 0)
	if err != nil {
		t.Fatalf("AddTunnel: %v", err)
	}

	out, err := Emit(cfg)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if bytes.Contains(out, []byte("remotePort")) {
		t.Errorf("remotePort should be omitted when unset, got:\n%s", out)
	}
	if !bytes.Contains(out, []byte(`type = 'tcp'`)) {
		t.Errorf("expected tcp proxy entry, got:\n%s", out)
	}
}

func TestEmit_NoAuthBlockWhenTokenUnset(t *testing.T) {
	host := mustDomain(t, "tunnel.example.com")
	server, err := model.ServerSpecOf(host, mustPort(t, 7000), nil, false, 1)
	if err != nil {
		t.Fatalf("ServerSpecOf: %v", err)
	}
	cfg := model.NewConfiguration(server, model.LoggingSpec{})

	out, err := Emit(cfg)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if bytes.Contains(out, []byte("[auth]")) {
		t.Errorf("expected no [auth] block, got:\n%s", out)
	}
}

func TestEmit_OrderingMatchesInsertionOrder(t *testing.T) {
	host := mustDomain(t, "tunnel.example.com")
	server, err := model.ServerSpecOf(host, mustPort(t, 7000), nil, false, 1)
	if err != nil {
		t.Fatalf("ServerSpecOf: %v", err)
	}
	cfg := model.NewConfiguration(server, model.LoggingSpec{})

	ids := []string{"a", "b", "c"}
	for i, id := range ids {
		spec, err := model.HTTPSpecOf(
			mustID(t, id),
			mustPort(t, 3000+i),
			mustPath(t, "app"+id),
			[]values.Domain{mustDomain(t, id+".example.com")},
			model.DefaultHTTPSpecOptions(),
		)
		if err != nil {
			t.Fatalf("HTTPSpecOf(%q): %v", id, err)
		}
		cfg, err = cfg.AddTunnel(model.NewTunnel(model.SpecFromHTTP(spec), time.Unix(0, 0)), 0)
		if err != nil {
			t.Fatalf("AddTunnel(%q): %v", id, err)
		}
	}

	out, err := Emit(cfg)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var lastIdx int = -1
	for _, id := range ids {
		idx := bytes.Index(out, []byte(`name = '`+id+`'`))
		if idx == -1 {
			t.Fatalf("proxy %q missing from output:\n%s", id, out)
		}
		if idx < lastIdx {
			t.Errorf("proxy %q appears out of insertion order", id)
		}
		lastIdx = idx
	}
}
