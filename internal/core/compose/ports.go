package compose

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Service Port Extraction
// =============================================================================

// DefaultServicePort is assumed when a service declares no usable port.
const DefaultServicePort = 8000

// ServicePort extracts the container-side port of a service definition.
//
// Precedence:
//  1. ports entries in "host:container" short syntax (container side)
//  2. bare "port" short syntax
//  3. long-syntax mapping target
//  4. first expose entry
//  5. default 8000
func ServicePort(svc *yaml.Node) int {
	if ports := resolve(mapValue(svc, "ports")); ports != nil && ports.Kind == yaml.SequenceNode {
		for _, entry := range ports.Content {
			entry = resolve(entry)
			switch entry.Kind {
			case yaml.ScalarNode:
				if port, ok := parseShortPort(entry.Value); ok {
					return port
				}
			case yaml.MappingNode:
				if target := resolve(mapValue(entry, "target")); target != nil {
					if port, err := strconv.Atoi(target.Value); err == nil {
						return port
					}
				}
			}
		}
	}

	if expose := resolve(mapValue(svc, "expose")); expose != nil &&
		expose.Kind == yaml.SequenceNode && len(expose.Content) > 0 {
		if port, err := strconv.Atoi(resolve(expose.Content[0]).Value); err == nil {
			return port
		}
	}

	return DefaultServicePort
}

// parseShortPort handles "8080:80" and bare "80" short syntax. The container
// side of a two-part mapping is the second component.
func parseShortPort(spec string) (int, bool) {
	parts := strings.Split(spec, ":")
	var candidate string
	switch {
	case len(parts) >= 2:
		candidate = parts[1]
	case len(parts) == 1:
		candidate = parts[0]
	}
	// Strip protocol suffix like "80/tcp".
	candidate, _, _ = strings.Cut(candidate, "/")
	port, err := strconv.Atoi(candidate)
	if err != nil {
		return 0, false
	}
	return port, true
}
