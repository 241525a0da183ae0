// SPDX-License-Identifier:Apache-2.0

package bootstrap

import "github.com/openperouter/bgpspeaker/api/static"

type RouteClass int

const (
	InvalidRoute RouteClass = iota
	PrefixRoute
	EVPNRoute
)

func (c RouteClass) String() string {
	switch c {
	case PrefixRoute:
		return "prefix"
	case EVPNRoute:
		return "evpn"
	}
	return "invalid"
}

// ClassifyRoute tells how a route entry is applied. The prefix key is
// checked first, so an entry carrying both prefix and route_type is a
// prefix route.
func ClassifyRoute(fields static.Fields) RouteClass {
	switch {
	case fields.Has("prefix"):
		return PrefixRoute
	case fields.Has("route_type"):
		return EVPNRoute
	}
	return InvalidRoute
}
