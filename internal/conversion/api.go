// SPDX-License-Identifier:Apache-2.0

package conversion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/pkg/errors"
)

const (
	RouteFamilyIPv4 = "ipv4"
	RouteFamilyIPv6 = "ipv6"
	RouteFamilyEVPN = "evpn"
)

var routeDistRegexp *regexp.Regexp

func init() {
	routeDistRegexp = regexp.MustCompile(`^([^:]+):(\d+)$`)
}

// decode maps the opaque fields onto the typed params. Keys that do not
// belong to the params are rejected.
func decode(fields static.Fields, out any) error {
	if fields == nil {
		return errors.New("no settings provided")
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	return nil
}

func isValidIP(ip string) bool {
	_, err := netip.ParseAddr(ip)
	return err == nil
}

// validateRouteDist validates a route distinguisher or route target in
// the "ASN:nn" or "IPv4:nn" form.
func validateRouteDist(rd string) error {
	m := routeDistRegexp.FindStringSubmatch(rd)
	if m == nil {
		return fmt.Errorf("invalid route distinguisher %q", rd)
	}
	admin, assigned := m[1], m[2]

	if addr, err := netip.ParseAddr(admin); err == nil {
		if !addr.Is4() {
			return fmt.Errorf("invalid route distinguisher %q: administrator must be an ipv4 address", rd)
		}
		if _, err := strconv.ParseUint(assigned, 10, 16); err != nil {
			return fmt.Errorf("invalid route distinguisher %q: assigned number out of range", rd)
		}
		return nil
	}

	asn, err := strconv.ParseUint(admin, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid route distinguisher %q: administrator must be an AS number or ipv4 address", rd)
	}
	bits := 32
	if asn > 0xffff {
		bits = 16
	}
	if _, err := strconv.ParseUint(assigned, 10, bits); err != nil {
		return fmt.Errorf("invalid route distinguisher %q: assigned number out of range", rd)
	}
	return nil
}

func familyForAddr(addr netip.Addr) string {
	if addr.Is4() {
		return RouteFamilyIPv4
	}
	return RouteFamilyIPv6
}

func normalizeFamily(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}
