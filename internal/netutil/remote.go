// Package netutil provides shared remote address normalization helpers.
package netutil

import (
	"net"
	"net/netip"
	"strings"
)

// ParseRemoteIP extracts the IP from a remote address in either "host:port"
// or bare form. IPv4-mapped IPv6 addresses are unmapped and zones dropped so
// values compare by address only.
func ParseRemoteIP(raw string) (netip.Addr, bool) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return netip.Addr{}, false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap().WithZone(""), true
}

// RemoteHost returns the printable IP of a remote address, or the trimmed
// input when it does not parse.
func RemoteHost(raw string) string {
	if addr, ok := ParseRemoteIP(raw); ok {
		return addr.String()
	}
	return strings.TrimSpace(raw)
}
