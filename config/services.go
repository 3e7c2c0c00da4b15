package config

import (
	"errors"
	"fmt"
	"strings"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeDrainer runs the queue drain runner.
	ServiceModeDrainer ServiceMode = "drainer"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeDrainer,
	}
}

// ParseServices parses a comma-delimited string of service names and returns
// the enabled services. It validates that all service names are valid and
// returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	valid := make(map[ServiceMode]bool, len(ValidServiceModes()))
	for _, mode := range ValidServiceModes() {
		valid[mode] = true
	}

	for _, raw := range strings.Split(servicesStr, ",") {
		name := ServiceMode(strings.ToLower(strings.TrimSpace(raw)))
		if name == "" {
			continue
		}
		if !valid[name] {
			return nil, fmt.Errorf("invalid service mode: %q (valid: %v)", name, ValidServiceModes())
		}
		services[name] = true
	}

	if len(services) == 0 {
		return services, errors.New("at least one service must be specified")
	}

	return services, nil
}
