// Package probe performs a best-effort reachability check against the
// configured frps host before the supervisor is asked to start it
// (spec §4.13): ICMP first, falling back to a raw TCP dial when ICMP
// is unavailable, e.g. inside an unprivileged container without
// CAP_NET_RAW. A failure here is never fatal — the supervisor's
// fatal-pattern detection on the agent's own stdout/stderr remains the
// authoritative signal of a bad connection.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/miekg/dns"
	probing "github.com/prometheus-community/pro-bing"
)

var defaultWarn = slog.Warn

const (
	dnsTimeout      = 2 * time.Second
	icmpCount       = 3
	icmpTimeout     = 2 * time.Second
	tcpTimeout      = 2 * time.Second
	tcpFallbackPort = "80"

	defaultTickerInterval = 30 * time.Second
)

// Check resolves host (via the system resolver, using miekg/dns
// directly rather than net's cgo-dependent resolver) and then reports
// whether it answers ICMP echo requests; if ICMP can't be sent
// (permission denied, sandboxed network namespace) it falls back to a
// plain TCP dial on port 80, which only proves the host resolves and
// accepts connections, not that frps itself is reachable on its
// configured port — the supervisor still owns that determination.
func Check(ctx context.Context, host string) error {
	target := host
	if resolved, err := resolveHost(host); err == nil {
		target = resolved
	}

	icmpErr := checkICMP(target)
	if icmpErr == nil {
		return nil
	}
	if tcpErr := checkTCP(ctx, target); tcpErr != nil {
		return fmt.Errorf("icmp probe failed (%v), tcp fallback also failed: %w", icmpErr, tcpErr)
	}
	return nil
}

// resolveHost returns host unchanged if it is already an IP literal,
// otherwise queries the system's configured resolvers directly via an
// A-record lookup. Any failure here (missing resolv.conf, no reply)
// falls through to checkICMP/checkTCP resolving host themselves.
func resolveHost(host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}

	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return "", fmt.Errorf("no system resolver available: %w", err)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)

	client := dns.Client{Timeout: dnsTimeout}
	for _, server := range conf.Servers {
		resp, _, err := client.Exchange(m, net.JoinHostPort(server, conf.Port))
		if err != nil || resp == nil {
			continue
		}
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				return a.A.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no A record found for %s", host)
}

func checkICMP(host string) error {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return err
	}
	pinger.Count = icmpCount
	pinger.Timeout = icmpTimeout
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		return err
	}
	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("no ICMP replies from %s", host)
	}
	return nil
}

func checkTCP(ctx context.Context, host string) error {
	d := net.Dialer{Timeout: tcpTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, tcpFallbackPort))
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

// Ticker re-checks host on a fixed interval until ctx is cancelled,
// downgrading every failure to a warning log. It implements the same
// Start(ctx) error shape the agent's service fan-out expects.
type Ticker struct {
	Host     string
	Interval time.Duration

	// Warn receives a formatted message on each failed check. Tests can
	// override it; production code leaves it nil and gets slog.Warn.
	Warn func(msg string, args ...any)
}

func (t *Ticker) Start(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = defaultTickerInterval
	}
	warn := t.Warn
	if warn == nil {
		warn = defaultWarn
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := Check(ctx, t.Host); err != nil {
				warn("probe: host unreachable", "host", t.Host, "err", err)
			}
		}
	}
}
