package values

import (
	"testing"

	"github.com/tunnelkit/tunnelkit/internal/errs"
)

func TestPortOf_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		wantErr bool
	}{
		{name: "zero rejected", n: 0, wantErr: true},
		{name: "min accepted", n: 1, wantErr: false},
		{name: "max accepted", n: 65535, wantErr: false},
		{name: "over max rejected", n: 65536, wantErr: true},
		{name: "privileged accepted but flagged", n: 80, wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PortOf(tt.n)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("PortOf(%d) expected error, got nil", tt.n)
				}
				if errs.KindOf(err) != errs.KindValidation {
					t.Errorf("PortOf(%d) kind = %v, want KindValidation", tt.n, errs.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("PortOf(%d) unexpected error: %v", tt.n, err)
			}
			if p.Int() != tt.n {
				t.Errorf("PortOf(%d).Int() = %d", tt.n, p.Int())
			}
		})
	}
}

func TestPort_Privileged(t *testing.T) {
	p, _ := PortOf(80)
	if !p.Privileged() {
		t.Error("port 80 should be privileged")
	}
	p, _ = PortOf(8080)
	if p.Privileged() {
		t.Error("port 8080 should not be privileged")
	}
}

func TestPathOf(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "simple", in: "myapp", wantErr: false},
		{name: "nested", in: "api/v1", wantErr: false},
		{name: "leading slash rejected", in: "/api", wantErr: true},
		{name: "empty rejected", in: "", wantErr: true},
		{name: "bad char rejected", in: "my app", wantErr: true},
		{name: "too long rejected", in: string(make([]byte, 101)), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// string(make([]byte, 101)) is all NUL bytes, which also fails
			// the charset check — that's fine, we only assert wantErr.
			_, err := PathOf(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("PathOf(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestPath_IsPrefixBoundaryOf(t *testing.T) {
	a, _ := PathOf("api")
	b, _ := PathOf("api/v1")
	c, _ := PathOf("apix")

	if !a.IsPrefixBoundaryOf(b) {
		t.Error("api should be a prefix-boundary of api/v1")
	}
	if a.IsPrefixBoundaryOf(c) {
		t.Error("api should NOT be a prefix-boundary of apix (no '/' boundary)")
	}
	if b.IsPrefixBoundaryOf(a) {
		t.Error("api/v1 should not be a prefix-boundary of its own prefix api")
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "simple", in: "example.com", wantErr: false},
		{name: "subdomain", in: "a.b.example.com", wantErr: false},
		{name: "no dot rejected", in: "localhost", wantErr: true},
		{name: "empty label rejected", in: "example..com", wantErr: true},
		{name: "bad char rejected", in: "exa_mple.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DomainOf(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("DomainOf(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestTokenOf_AndMasked(t *testing.T) {
	if _, err := TokenOf("short"); err == nil {
		t.Error("TokenOf(\"short\") should fail, below 8 chars")
	}
	tok, err := TokenOf("s3cret-abcdefgh")
	if err != nil {
		t.Fatalf("TokenOf unexpected error: %v", err)
	}
	if tok.Reveal() != "s3cret-abcdefgh" {
		t.Errorf("Reveal() = %q", tok.Reveal())
	}
	masked := tok.Masked()
	if masked == tok.Reveal() {
		t.Error("Masked() must not equal the raw token")
	}
	if len(masked) >= len(tok.Reveal()) {
		t.Errorf("Masked() %q should be shorter than raw token", masked)
	}
}

func TestTunnelIDOf_RejectsEmpty(t *testing.T) {
	if _, err := TunnelIDOf(""); err == nil {
		t.Error("TunnelIDOf(\"\") should fail")
	}
}

func TestNewDescriptiveTunnelID(t *testing.T) {
	port, _ := PortOf(3000)
	id := NewDescriptiveTunnelID(TunnelKindHTTP, port, "myapp", "")
	if id.String() != "http-3000-myapp" {
		t.Errorf("NewDescriptiveTunnelID() = %q", id.String())
	}
	withSuffix := NewDescriptiveTunnelID(TunnelKindHTTP, port, "myapp", "ab12")
	if withSuffix.String() != "http-3000-myapp-ab12" {
		t.Errorf("NewDescriptiveTunnelID() with suffix = %q", withSuffix.String())
	}
}

func TestTunnelStatus_Terminal(t *testing.T) {
	if !StatusClosed.Terminal() {
		t.Error("StatusClosed should be terminal")
	}
	if StatusConnected.Terminal() {
		t.Error("StatusConnected should not be terminal")
	}
}
