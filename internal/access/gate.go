// Package access decides which remote addresses may open the device channel.
package access

import (
	"log/slog"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/koltyakov/posbridge/internal/domain"
	"github.com/koltyakov/posbridge/internal/netutil"
)

// Loopback addresses are always allowed, regardless of configuration.
var loopback = []netip.Addr{
	netip.MustParseAddr("127.0.0.1"),
	netip.IPv6Loopback(),
}

// Gate is an immutable allowlist of remote IPs. It is safe for concurrent use.
type Gate struct {
	allowed  map[netip.Addr]struct{}
	listed   []string
	log      *slog.Logger
	observer func(domain.AccessEvent)
}

// Option customizes a [Gate].
type Option func(*Gate)

// WithObserver registers fn to receive every decision. fn must not block.
func WithObserver(fn func(domain.AccessEvent)) Option {
	return func(g *Gate) { g.observer = fn }
}

// NewGate builds a gate from configured addresses. Entries that do not
// parse as IPs are skipped; config validation rejects them earlier.
func NewGate(origins []string, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		allowed: make(map[netip.Addr]struct{}, len(origins)+len(loopback)),
		log:     logger,
	}
	for _, addr := range loopback {
		g.allowed[addr] = struct{}{}
	}
	for _, raw := range origins {
		addr, ok := netutil.ParseRemoteIP(raw)
		if !ok {
			continue
		}
		g.allowed[addr] = struct{}{}
	}
	g.listed = make([]string, 0, len(g.allowed))
	for addr := range g.allowed {
		g.listed = append(g.listed, addr.String())
	}
	sort.Strings(g.listed)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allow reports whether remoteAddress (bare IP or host:port) is loopback or
// one of the configured origins.
func (g *Gate) Allow(remoteAddress string) bool {
	addr, ok := netutil.ParseRemoteIP(remoteAddress)
	allow := ok
	if ok {
		_, allow = g.allowed[addr]
	}

	host := netutil.RemoteHost(remoteAddress)
	if g.log != nil {
		if allow {
			g.log.Debug("access granted", "remote", host)
		} else {
			g.log.Warn("access denied", "remote", host, "allowed", strings.Join(g.listed, ","))
		}
	}
	if g.observer != nil {
		g.observer(domain.AccessEvent{
			RemoteIP:  host,
			Allowed:   allow,
			CreatedAt: time.Now().UTC(),
		})
	}
	return allow
}

// Allowed returns the effective allowlist, loopback included, sorted.
func (g *Gate) Allowed() []string {
	out := make([]string, len(g.listed))
	copy(out, g.listed)
	return out
}
