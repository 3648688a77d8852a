package compose

import "gopkg.in/yaml.v3"

// =============================================================================
// Deployment Suitability Validation
// =============================================================================

// ValidateForDeployment checks that the stack can actually be routed: the
// main service must be buildable or pullable, and must declare a port the
// proxy can forward to. Structural validity is already guaranteed by Parse.
func ValidateForDeployment(p *Project) error {
	main := p.MainService()

	if mapValue(main.Node, "build") == nil && mapValue(main.Node, "image") == nil {
		return NewParseError("services."+main.Name,
			"main service '"+main.Name+"' must have either 'build' or 'image' defined",
			ErrNoImageOrBuild)
	}

	if !declaresPort(main.Node) {
		return NewParseError("services."+main.Name,
			"main service '"+main.Name+"' must expose at least one port",
			ErrNoPorts)
	}

	return nil
}

func declaresPort(svc *yaml.Node) bool {
	if ports := resolve(mapValue(svc, "ports")); ports != nil && len(ports.Content) > 0 {
		return true
	}
	if expose := resolve(mapValue(svc, "expose")); expose != nil && len(expose.Content) > 0 {
		return true
	}
	return false
}
