// SPDX-License-Identifier:Apache-2.0

package conversion

import (
	"fmt"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/pkg/errors"
)

type VRFParams struct {
	RouteDist     string   `json:"route_dist"`
	ImportRTs     []string `json:"import_rts"`
	ExportRTs     []string `json:"export_rts"`
	RouteFamily   string   `json:"route_family,omitempty"`
	SiteOfOrigins []string `json:"site_of_origins,omitempty"`
	MultiExitDisc *uint32  `json:"multi_exit_disc,omitempty"`
}

// Key identifies the VRF table: one table per route distinguisher and family.
func (v VRFParams) Key() string {
	return v.RouteDist + "/" + v.RouteFamily
}

// ToVRF converts the VRF settings into validated params.
func ToVRF(fields static.Fields) (VRFParams, error) {
	res := VRFParams{RouteFamily: RouteFamilyIPv4}
	if err := decode(fields, &res); err != nil {
		return VRFParams{}, errors.Wrap(err, "invalid vrf")
	}
	res.RouteFamily = normalizeFamily(res.RouteFamily)
	if err := validateVRF(res); err != nil {
		return VRFParams{}, errors.Wrapf(err, "invalid vrf %s", res.RouteDist)
	}
	return res, nil
}

func validateVRF(v VRFParams) error {
	if err := validateRouteDist(v.RouteDist); err != nil {
		return err
	}
	if len(v.ImportRTs) == 0 {
		return fmt.Errorf("import_rts is required")
	}
	if len(v.ExportRTs) == 0 {
		return fmt.Errorf("export_rts is required")
	}
	for _, rts := range [][]string{v.ImportRTs, v.ExportRTs, v.SiteOfOrigins} {
		for _, rt := range rts {
			if err := validateRouteDist(rt); err != nil {
				return fmt.Errorf("invalid route target: %w", err)
			}
		}
	}
	switch v.RouteFamily {
	case RouteFamilyIPv4, RouteFamilyIPv6, RouteFamilyEVPN:
	default:
		return fmt.Errorf("unsupported route_family %q", v.RouteFamily)
	}
	return nil
}
