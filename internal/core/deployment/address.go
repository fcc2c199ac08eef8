package deployment

import (
	"net/netip"
	"strings"
)

// =============================================================================
// Address Selection
// =============================================================================

// SelectAddress picks the reachable address of a container endpoint.
//
// A non-empty IPv6 address is preferred over IPv4. Any CIDR prefix length is
// stripped. Returns ErrNoAddress when neither family yields a usable value.
//
// Examples:
//
//	SelectAddress("10.0.0.5/24", "")           // Returns: "10.0.0.5"
//	SelectAddress("10.0.0.5/24", "fd00::2/64") // Returns: "fd00::2"
func SelectAddress(ipv4, ipv6 string) (string, error) {
	for _, candidate := range []string{ipv6, ipv4} {
		if ip, ok := normalizeAddress(candidate); ok {
			return ip, nil
		}
	}
	return "", ErrNoAddress
}

// StripPrefixLength removes a trailing "/N" from an address.
func StripPrefixLength(address string) string {
	if i := strings.IndexByte(address, '/'); i >= 0 {
		return address[:i]
	}
	return address
}

func normalizeAddress(address string) (string, bool) {
	ip := strings.TrimSpace(StripPrefixLength(strings.TrimSpace(address)))
	if ip == "" {
		return "", false
	}
	if _, err := netip.ParseAddr(ip); err != nil {
		return "", false
	}
	return ip, true
}
