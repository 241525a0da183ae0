// SPDX-License-Identifier:Apache-2.0

package speaker

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sort"
	"sync"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/openperouter/bgpspeaker/internal/conversion"
)

const (
	DefaultServerPort           = 179
	DefaultRefreshStalePathTime = 0
	DefaultRefreshMaxEORTime    = 0

	// Labels 0-15 are reserved, labels are 20 bits wide.
	minLabel = 16
	maxLabel = 1<<20 - 1
)

// DefaultLabelRange is the MPLS label range used for VPN routes.
var DefaultLabelRange = LabelRange{100, 100000}

type LabelRange [2]uint32

// Settings are the speaker wide settings the engine is created with.
type Settings struct {
	ASNumber             uint32
	RouterID             string
	ServerPort           int
	RefreshStalePathTime int
	RefreshMaxEORTime    int
	LabelRange           LabelRange
}

// RuntimeConfigurationError is returned when a single neighbor, VRF or
// route is rejected.
type RuntimeConfigurationError struct {
	Kind string
	Err  error
}

func (e *RuntimeConfigurationError) Error() string {
	return fmt.Sprintf("runtime configuration error for %s: %v", e.Kind, e.Err)
}

func (e *RuntimeConfigurationError) Unwrap() error {
	return e.Err
}

// Engine is the speaker engine the configuration is applied to.
type Engine interface {
	AddNeighbor(ctx context.Context, fields static.Fields) error
	AddVRF(ctx context.Context, fields static.Fields) error
	AddPrefix(ctx context.Context, fields static.Fields) error
	AddEVPNPrefix(ctx context.Context, fields static.Fields) error

	Neighbors() []conversion.NeighborParams
	VRFs() []conversion.VRFParams
	Routes() []Route
}

// Factory creates the engine from the resolved settings.
type Factory func(settings Settings, logger *slog.Logger) (Engine, error)

var _ Factory = New

// Route is a view of an installed prefix or EVPN route.
type Route struct {
	Family    string `json:"family"`
	RouteDist string `json:"route_dist,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	RouteType string `json:"route_type,omitempty"`
	NextHop   string `json:"next_hop,omitempty"`
	Label     uint32 `json:"label,omitempty"`
}

type prefixEntry struct {
	params conversion.PrefixParams
	label  uint32
}

type evpnEntry struct {
	params conversion.EVPNPrefixParams
	label  uint32
}

// Speaker is an in memory engine holding the speaker configuration
// tables. Entries are keyed, adding an existing key replaces it.
type Speaker struct {
	settings Settings
	logger   *slog.Logger

	mu        sync.RWMutex
	neighbors map[string]conversion.NeighborParams
	vrfs      map[string]conversion.VRFParams
	prefixes  map[string]prefixEntry
	evpn      map[string]evpnEntry
	nextLabel uint32
}

// New validates the settings and creates the speaker.
func New(settings Settings, logger *slog.Logger) (Engine, error) {
	routerID, err := netip.ParseAddr(settings.RouterID)
	if err != nil || !routerID.Is4() {
		return nil, fmt.Errorf("invalid router id %q: must be an ipv4 address", settings.RouterID)
	}
	if settings.ASNumber == 0 {
		return nil, fmt.Errorf("invalid as number 0")
	}
	if settings.ServerPort < 0 || settings.ServerPort > 65535 {
		return nil, fmt.Errorf("invalid server port %d", settings.ServerPort)
	}
	if settings.RefreshStalePathTime < 0 || settings.RefreshMaxEORTime < 0 {
		return nil, fmt.Errorf("refresh times must not be negative")
	}
	if settings.LabelRange[0] < minLabel || settings.LabelRange[1] > maxLabel ||
		settings.LabelRange[0] > settings.LabelRange[1] {
		return nil, fmt.Errorf("invalid label range %v", settings.LabelRange)
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("speaker created",
		"as", settings.ASNumber,
		"routerID", settings.RouterID,
		"port", settings.ServerPort,
		"labelRange", settings.LabelRange)

	return &Speaker{
		settings:  settings,
		logger:    logger,
		neighbors: map[string]conversion.NeighborParams{},
		vrfs:      map[string]conversion.VRFParams{},
		prefixes:  map[string]prefixEntry{},
		evpn:      map[string]evpnEntry{},
		nextLabel: settings.LabelRange[0],
	}, nil
}

func (s *Speaker) Settings() Settings {
	return s.settings
}

func (s *Speaker) AddNeighbor(ctx context.Context, fields static.Fields) error {
	n, err := conversion.ToNeighbor(fields)
	if err != nil {
		return &RuntimeConfigurationError{Kind: "neighbor", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.neighbors[n.Address] = n
	s.logger.DebugContext(ctx, "neighbor added", "address", n.Address, "remoteAS", n.RemoteAS)
	return nil
}

func (s *Speaker) AddVRF(ctx context.Context, fields static.Fields) error {
	v, err := conversion.ToVRF(fields)
	if err != nil {
		return &RuntimeConfigurationError{Kind: "vrf", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vrfs[v.Key()] = v
	s.logger.DebugContext(ctx, "vrf added", "routeDist", v.RouteDist, "family", v.RouteFamily)
	return nil
}

func (s *Speaker) AddPrefix(ctx context.Context, fields static.Fields) error {
	p, err := conversion.ToPrefix(fields)
	if err != nil {
		return &RuntimeConfigurationError{Kind: "route", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := prefixEntry{params: p}
	if p.RouteDist != "" {
		if _, ok := s.vrfs[p.RouteDist+"/"+p.Family]; !ok {
			return &RuntimeConfigurationError{
				Kind: "route",
				Err:  fmt.Errorf("no %s vrf with route distinguisher %s for prefix %s", p.Family, p.RouteDist, p.Prefix),
			}
		}
		label, err := s.labelFor(s.prefixes[p.Key()].label)
		if err != nil {
			return &RuntimeConfigurationError{Kind: "route", Err: fmt.Errorf("prefix %s: %w", p.Prefix, err)}
		}
		entry.label = label
	}
	s.prefixes[p.Key()] = entry
	s.logger.DebugContext(ctx, "prefix added", "prefix", p.Prefix, "routeDist", p.RouteDist, "label", entry.label)
	return nil
}

func (s *Speaker) AddEVPNPrefix(ctx context.Context, fields static.Fields) error {
	e, err := conversion.ToEVPNPrefix(fields)
	if err != nil {
		return &RuntimeConfigurationError{Kind: "evpn route", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vrfs[e.RouteDist+"/"+conversion.RouteFamilyEVPN]; !ok {
		return &RuntimeConfigurationError{
			Kind: "evpn route",
			Err:  fmt.Errorf("no evpn vrf with route distinguisher %s", e.RouteDist),
		}
	}
	entry := evpnEntry{params: e}
	if e.TunnelType == "" || e.TunnelType == conversion.TunnelTypeMPLS {
		label, err := s.labelFor(s.evpn[e.Key()].label)
		if err != nil {
			return &RuntimeConfigurationError{Kind: "evpn route", Err: err}
		}
		entry.label = label
	}
	s.evpn[e.Key()] = entry
	s.logger.DebugContext(ctx, "evpn route added", "routeType", e.RouteType, "routeDist", e.RouteDist, "label", entry.label)
	return nil
}

// labelFor returns the label already allocated to a route, or a new one
// from the label range. Must be called with the lock held.
func (s *Speaker) labelFor(current uint32) (uint32, error) {
	if current != 0 {
		return current, nil
	}
	if s.nextLabel > s.settings.LabelRange[1] {
		return 0, fmt.Errorf("label range %v exhausted", s.settings.LabelRange)
	}
	label := s.nextLabel
	s.nextLabel++
	return label, nil
}

func (s *Speaker) Neighbors() []conversion.NeighborParams {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]conversion.NeighborParams, 0, len(s.neighbors))
	for _, n := range s.neighbors {
		res = append(res, n)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Address < res[j].Address })
	return res
}

func (s *Speaker) VRFs() []conversion.VRFParams {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]conversion.VRFParams, 0, len(s.vrfs))
	for _, v := range s.vrfs {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Key() < res[j].Key() })
	return res
}

func (s *Speaker) Routes() []Route {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Route, 0, len(s.prefixes)+len(s.evpn))
	for _, p := range s.prefixes {
		res = append(res, Route{
			Family:    p.params.Family,
			RouteDist: p.params.RouteDist,
			Prefix:    p.params.Prefix,
			NextHop:   p.params.NextHop,
			Label:     p.label,
		})
	}
	for _, e := range s.evpn {
		prefix := e.params.IPPrefix
		if prefix == "" {
			prefix = e.params.MacAddr
		}
		res = append(res, Route{
			Family:    conversion.RouteFamilyEVPN,
			RouteDist: e.params.RouteDist,
			Prefix:    prefix,
			RouteType: e.params.RouteType,
			NextHop:   e.params.NextHop,
			Label:     e.label,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Family != res[j].Family {
			return res[i].Family < res[j].Family
		}
		if res[i].RouteDist != res[j].RouteDist {
			return res[i].RouteDist < res[j].RouteDist
		}
		if res[i].RouteType != res[j].RouteType {
			return res[i].RouteType < res[j].RouteType
		}
		return res[i].Prefix < res[j].Prefix
	})
	return res
}
