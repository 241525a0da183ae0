// SPDX-License-Identifier:Apache-2.0

package conversion

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/pkg/errors"
)

const (
	EVPNEthernetAutoDiscovery = "eth_ad"
	EVPNMacIPAdvertisement    = "mac_ip_adv"
	EVPNMulticastEthernetTag  = "multicast_etag"
	EVPNEthernetSegment       = "eth_seg"
	EVPNIPPrefix              = "ip_prefix"

	TunnelTypeVXLAN = "vxlan"
	TunnelTypeNVGRE = "nvgre"
	TunnelTypeMPLS  = "mpls"
)

type PrefixParams struct {
	Prefix    string `json:"prefix"`
	NextHop   string `json:"next_hop,omitempty"`
	RouteDist string `json:"route_dist,omitempty"`
	// Family is derived from the prefix.
	Family string `json:"-"`
}

// Key identifies the route in its table.
func (p PrefixParams) Key() string {
	return p.RouteDist + "|" + p.Prefix
}

type EVPNPrefixParams struct {
	RouteType     string `json:"route_type"`
	RouteDist     string `json:"route_dist"`
	ESI           uint64 `json:"esi,omitempty"`
	EthernetTagID uint32 `json:"ethernet_tag_id,omitempty"`
	MacAddr       string `json:"mac_addr,omitempty"`
	IPAddr        string `json:"ip_addr,omitempty"`
	IPPrefix      string `json:"ip_prefix,omitempty"`
	GWIPAddr      string `json:"gw_ip_addr,omitempty"`
	VNI           uint32 `json:"vni,omitempty"`
	NextHop       string `json:"next_hop,omitempty"`
	TunnelType    string `json:"tunnel_type,omitempty"`
}

// Key identifies the EVPN route by its NLRI fields.
func (e EVPNPrefixParams) Key() string {
	return strings.Join([]string{
		e.RouteDist,
		e.RouteType,
		fmt.Sprint(e.ESI),
		fmt.Sprint(e.EthernetTagID),
		e.MacAddr,
		e.IPAddr,
		e.IPPrefix,
	}, "|")
}

// ToPrefix converts unicast or VPN prefix route settings into validated
// params. The prefix is returned in its canonical, masked form.
func ToPrefix(fields static.Fields) (PrefixParams, error) {
	var res PrefixParams
	if err := decode(fields, &res); err != nil {
		return PrefixParams{}, errors.Wrap(err, "invalid route")
	}

	prefix, err := netip.ParsePrefix(res.Prefix)
	if err != nil {
		return PrefixParams{}, errors.Wrapf(err, "invalid route prefix %q", res.Prefix)
	}
	res.Prefix = prefix.Masked().String()
	res.Family = familyForAddr(prefix.Addr())

	if res.NextHop != "" && !isValidIP(res.NextHop) {
		return PrefixParams{}, errors.Errorf("invalid route %s: invalid next_hop %q", res.Prefix, res.NextHop)
	}
	if res.RouteDist != "" {
		if err := validateRouteDist(res.RouteDist); err != nil {
			return PrefixParams{}, errors.Wrapf(err, "invalid route %s", res.Prefix)
		}
	}
	return res, nil
}

// ToEVPNPrefix converts EVPN route settings into validated params.
func ToEVPNPrefix(fields static.Fields) (EVPNPrefixParams, error) {
	var res EVPNPrefixParams
	if err := decode(fields, &res); err != nil {
		return EVPNPrefixParams{}, errors.Wrap(err, "invalid evpn route")
	}
	if err := validateEVPNPrefix(&res); err != nil {
		return EVPNPrefixParams{}, errors.Wrapf(err, "invalid evpn route %s", res.RouteType)
	}
	return res, nil
}

func validateEVPNPrefix(e *EVPNPrefixParams) error {
	if err := validateRouteDist(e.RouteDist); err != nil {
		return err
	}

	switch e.RouteType {
	case EVPNEthernetAutoDiscovery:
	case EVPNMacIPAdvertisement:
		mac, err := net.ParseMAC(e.MacAddr)
		if err != nil {
			return fmt.Errorf("invalid mac_addr %q", e.MacAddr)
		}
		e.MacAddr = mac.String()
		if e.IPAddr != "" && !isValidIP(e.IPAddr) {
			return fmt.Errorf("invalid ip_addr %q", e.IPAddr)
		}
	case EVPNMulticastEthernetTag, EVPNEthernetSegment:
		if !isValidIP(e.IPAddr) {
			return fmt.Errorf("invalid ip_addr %q", e.IPAddr)
		}
	case EVPNIPPrefix:
		prefix, err := netip.ParsePrefix(e.IPPrefix)
		if err != nil {
			return fmt.Errorf("invalid ip_prefix %q", e.IPPrefix)
		}
		e.IPPrefix = prefix.Masked().String()
		if e.GWIPAddr != "" && !isValidIP(e.GWIPAddr) {
			return fmt.Errorf("invalid gw_ip_addr %q", e.GWIPAddr)
		}
	default:
		return fmt.Errorf("unsupported route_type %q", e.RouteType)
	}

	if e.NextHop != "" && !isValidIP(e.NextHop) {
		return fmt.Errorf("invalid next_hop %q", e.NextHop)
	}
	switch e.TunnelType {
	case "", TunnelTypeVXLAN, TunnelTypeNVGRE, TunnelTypeMPLS:
	default:
		return fmt.Errorf("unsupported tunnel_type %q", e.TunnelType)
	}
	if e.VNI != 0 && e.TunnelType == TunnelTypeMPLS {
		return fmt.Errorf("vni is not valid with tunnel_type %s", e.TunnelType)
	}
	return nil
}
