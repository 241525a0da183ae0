// SPDX-License-Identifier:Apache-2.0

package conversion

import (
	"fmt"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/pkg/errors"
)

const (
	ConnectModeActive  = "active"
	ConnectModePassive = "passive"
	ConnectModeBoth    = "both"

	DefaultNeighborPort = 179
	maxPasswordLength   = 80
)

type NeighborParams struct {
	Address                string  `json:"address"`
	RemoteAS               uint32  `json:"remote_as"`
	RemotePort             int     `json:"remote_port,omitempty"`
	LocalAddress           string  `json:"local_address,omitempty"`
	LocalAS                uint32  `json:"local_as,omitempty"`
	EnableIPv4             bool    `json:"enable_ipv4"`
	EnableIPv6             bool    `json:"enable_ipv6,omitempty"`
	EnableEVPN             bool    `json:"enable_evpn,omitempty"`
	NextHop                string  `json:"next_hop,omitempty"`
	Password               string  `json:"password,omitempty"`
	MultiExitDisc          *uint32 `json:"multi_exit_disc,omitempty"`
	IsRouteServerClient    bool    `json:"is_route_server_client,omitempty"`
	IsRouteReflectorClient bool    `json:"is_route_reflector_client,omitempty"`
	IsNextHopSelf          bool    `json:"is_next_hop_self,omitempty"`
	ConnectMode            string  `json:"connect_mode,omitempty"`
}

// ToNeighbor converts the neighbor settings into validated params.
func ToNeighbor(fields static.Fields) (NeighborParams, error) {
	res := NeighborParams{
		RemotePort:  DefaultNeighborPort,
		EnableIPv4:  true,
		ConnectMode: ConnectModeBoth,
	}
	if err := decode(fields, &res); err != nil {
		return NeighborParams{}, errors.Wrap(err, "invalid neighbor")
	}
	if err := validateNeighbor(res); err != nil {
		return NeighborParams{}, errors.Wrapf(err, "invalid neighbor %s", res.Address)
	}
	return res, nil
}

func validateNeighbor(n NeighborParams) error {
	if !isValidIP(n.Address) {
		return fmt.Errorf("invalid address %q", n.Address)
	}
	if n.RemoteAS == 0 {
		return fmt.Errorf("remote_as is required")
	}
	if n.RemotePort < 1 || n.RemotePort > 65535 {
		return fmt.Errorf("invalid remote_port %d", n.RemotePort)
	}
	if n.LocalAddress != "" && !isValidIP(n.LocalAddress) {
		return fmt.Errorf("invalid local_address %q", n.LocalAddress)
	}
	if n.NextHop != "" && !isValidIP(n.NextHop) {
		return fmt.Errorf("invalid next_hop %q", n.NextHop)
	}
	if len(n.Password) > maxPasswordLength {
		return fmt.Errorf("password longer than %d characters", maxPasswordLength)
	}
	switch n.ConnectMode {
	case ConnectModeActive, ConnectModePassive, ConnectModeBoth:
	default:
		return fmt.Errorf("invalid connect_mode %q", n.ConnectMode)
	}
	return nil
}
