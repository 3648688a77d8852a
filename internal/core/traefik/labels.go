package traefik

import (
	"fmt"
	"strings"
)

// =============================================================================
// Traefik Label Generation Functions
// =============================================================================

// GenerateLabels generates Traefik reverse proxy labels for an application.
//
// The generated labels configure Traefik to route path-prefixed HTTP(S)
// traffic to the container:
//   - Enables Traefik for the container
//   - Creates a router with a PathPrefix rule for the public route
//   - Sets the router priority (see RoutePriority)
//   - Configures the service loadbalancer port
//   - Adds a stripprefix middleware so the app sees root-relative paths
//   - With HTTPS enabled, routes via websecure and adds a cert resolver
//
// Identifiers are derived from the application name with hyphens replaced by
// underscores, since hyphens are not valid in every position Traefik uses
// these names.
//
// Example:
//
//	labels := GenerateLabels(LabelParams{
//	    AppName:  "my-app",
//	    Route:    "/myapp",
//	    Port:     8000,
//	    Priority: 116,
//	})
//	// Returns:
//	// {
//	//   "traefik.enable": "true",
//	//   "traefik.http.routers.my_app.rule": "PathPrefix(`/myapp`)",
//	//   "traefik.http.routers.my_app.entrypoints": "web",
//	//   "traefik.http.routers.my_app.priority": "116",
//	//   "traefik.http.services.my_app.loadbalancer.server.port": "8000",
//	//   "traefik.http.middlewares.my_app_stripprefix.stripprefix.prefixes": "/myapp",
//	//   "traefik.http.routers.my_app.middlewares": "my_app_stripprefix",
//	// }
func GenerateLabels(params LabelParams) map[string]string {
	name := strings.ReplaceAll(params.AppName, "-", "_")

	entrypoint := "web"
	if params.EnableHTTPS {
		entrypoint = "websecure"
	}

	labels := map[string]string{
		// Enable Traefik for this container
		"traefik.enable": "true",

		// HTTP router
		fmt.Sprintf("traefik.http.routers.%s.rule", name):        fmt.Sprintf("PathPrefix(`%s`)", params.Route),
		fmt.Sprintf("traefik.http.routers.%s.entrypoints", name): entrypoint,
		fmt.Sprintf("traefik.http.routers.%s.priority", name):    fmt.Sprintf("%d", params.Priority),

		// Service (loadbalancer port)
		fmt.Sprintf("traefik.http.services.%s.loadbalancer.server.port", name): fmt.Sprintf("%d", params.Port),

		// Strip the public prefix before forwarding to the app
		fmt.Sprintf("traefik.http.middlewares.%s_stripprefix.stripprefix.prefixes", name): params.Route,
		fmt.Sprintf("traefik.http.routers.%s.middlewares", name):                          fmt.Sprintf("%s_stripprefix", name),
	}

	// TLS termination via the websecure entrypoint
	if params.EnableHTTPS {
		labels[fmt.Sprintf("traefik.http.routers.%s.tls.certresolver", name)] = "letsencrypt"
	}

	return labels
}
