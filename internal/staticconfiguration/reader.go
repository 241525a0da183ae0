// SPDX-License-Identifier:Apache-2.0

package staticconfiguration

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openperouter/bgpspeaker/api/static"
	"sigs.k8s.io/yaml"
)

// ConfigurationError is returned when the configuration file or a
// process level setting cannot be used. It is fatal to startup.
type ConfigurationError struct {
	message string
}

func (e *ConfigurationError) Error() string {
	return e.message
}

func configurationErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{message: fmt.Sprintf(format, args...)}
}

// FileExists checks if a regular file exists at the given path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// LoadConfig reads the speaker configuration document from a YAML file.
// Either the whole document is returned or a ConfigurationError.
func LoadConfig(path string) (*static.Document, error) {
	if path == "" || !FileExists(path) {
		return nil, configurationErrorf("invalid configuration file: %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configurationErrorf("failed to read configuration file %s: %v", path, err)
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, configurationErrorf("failed to parse configuration file %s: %v", path, err)
	}

	// Section names are matched exactly, the json decoder alone would
	// accept any casing.
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(jsonData, &sections); err != nil {
		return nil, configurationErrorf("failed to parse configuration file %s: %v", path, err)
	}

	var doc static.Document
	for name, raw := range sections {
		var target any
		switch name {
		case static.LoggingSection:
			target = &doc.Logging
		case static.BGPSection:
			target = &doc.BGP
		case static.SSHSection:
			target = &doc.SSH
		default:
			return nil, configurationErrorf("unknown section %q in configuration file %s, expected one of %s, %s, %s",
				name, path, static.LoggingSection, static.BGPSection, static.SSHSection)
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, configurationErrorf("failed to parse section %s of configuration file %s: %v", name, path, err)
		}
	}

	return &doc, nil
}
