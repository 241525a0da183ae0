// SPDX-License-Identifier:Apache-2.0

package adminshell

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/openperouter/bgpspeaker/api/static"
)

const (
	DefaultHost     = "localhost"
	DefaultPort     = 4990
	DefaultUsername = "admin"
)

// Settings configures the admin shell, decoded from the SSH section.
type Settings struct {
	Host     string `json:"ssh_host,omitempty"`
	Port     int    `json:"ssh_port,omitempty"`
	HostKey  string `json:"ssh_hostkey,omitempty"`
	Username string `json:"ssh_username,omitempty"`
	Password string `json:"ssh_password,omitempty"`
}

// SettingsFromFields decodes the SSH section, applying defaults to the
// keys that were not authored.
func SettingsFromFields(fields static.Fields) (Settings, error) {
	res := Settings{}
	data, err := json.Marshal(fields)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to encode ssh settings: %w", err)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return Settings{}, fmt.Errorf("invalid ssh settings: %w", err)
	}

	if res.Host == "" {
		res.Host = DefaultHost
	}
	if res.Port == 0 {
		res.Port = DefaultPort
	}
	if res.Username == "" {
		res.Username = DefaultUsername
	}
	if res.Port < 0 || res.Port > 65535 {
		return Settings{}, fmt.Errorf("invalid ssh_port %d", res.Port)
	}
	if res.Password == "" {
		return Settings{}, fmt.Errorf("ssh_password is required")
	}
	return res, nil
}

func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
