package infra

import (
	"net/netip"
	"strings"
)

// NormalizeUserIP prepares a client address for the x-user-ip header.
// IPv4-mapped IPv6 is unwrapped. Loopback, private and malformed
// addresses are dropped so the header is omitted.
func NormalizeUserIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	// first hop of an X-Forwarded-For list
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		raw = ap.Addr().String()
	}

	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return "", false
	}
	addr = addr.Unmap().WithZone("")

	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast() {
		return "", false
	}
	return addr.String(), true
}
