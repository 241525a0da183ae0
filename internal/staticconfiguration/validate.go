// SPDX-License-Identifier:Apache-2.0

package staticconfiguration

import (
	"net/netip"
)

// ValidateBindAddress returns ip unchanged if it is an IPv4 or IPv6
// literal usable as the control channel bind address. Zoned IPv6
// literals are rejected.
func ValidateBindAddress(ip string) (string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || addr.Zone() != "" {
		return "", configurationErrorf("invalid RPC ip address: %q", ip)
	}
	return ip, nil
}
