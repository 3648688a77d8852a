package traefik

// =============================================================================
// Traefik Label Generation Types
// =============================================================================

// LabelParams contains parameters for generating Traefik labels.
type LabelParams struct {
	// AppName is the application name. Hyphens are replaced so the derived
	// router/service/middleware identifiers are valid.
	AppName string

	// Route is the public path prefix for routing (e.g., "/myapp").
	Route string

	// Port is the container port to route traffic to.
	Port int

	// Priority is the router priority (see RoutePriority).
	Priority int

	// EnableHTTPS routes through the websecure entrypoint with TLS.
	EnableHTTPS bool
}
