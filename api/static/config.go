// SPDX-License-Identifier:Apache-2.0

package static

// Fields is an opaque mapping of settings forwarded verbatim to the
// speaker engine or the admin shell.
type Fields map[string]any

// Has tells whether the given key was authored, regardless of its value.
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Top level section names, matched exactly.
const (
	LoggingSection = "LOGGING"
	BGPSection     = "BGP"
	SSHSection     = "SSH"
)

// Document is the declarative configuration of the speaker. Every
// section is optional, a missing section disables the matching subsystem.
type Document struct {
	Logging Fields       `json:"LOGGING,omitempty"`
	BGP     *BGPSettings `json:"BGP,omitempty"`
	SSH     Fields       `json:"SSH,omitempty"`
}

func (d *Document) HasLogging() bool {
	return d != nil && d.Logging != nil
}

func (d *Document) HasBGP() bool {
	return d != nil && d.BGP != nil
}

func (d *Document) HasSSH() bool {
	return d != nil && d.SSH != nil
}

// BGPSettings is the BGP section of the document. Pointer fields are
// nil when not authored.
type BGPSettings struct {
	ASNumber             *uint32    `json:"as_number,omitempty"`
	RouterID             *string    `json:"router_id,omitempty"`
	ServerPort           *int       `json:"server_port,omitempty"`
	RefreshStalePathTime *int       `json:"refresh_stalepath_time,omitempty"`
	RefreshMaxEORTime    *int       `json:"refresh_max_eor_time,omitempty"`
	LabelRange           *[2]uint32 `json:"label_range,omitempty"`

	Neighbors []Fields `json:"neighbors,omitempty"`
	VRFs      []Fields `json:"vrfs,omitempty"`
	Routes    []Fields `json:"routes,omitempty"`
}
