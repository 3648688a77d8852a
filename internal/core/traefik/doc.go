// Package traefik provides pure functions for generating Traefik reverse
// proxy labels.
//
// The shared Traefik instance derives its live routing table from labels on
// containers, so every deployment path (single container or compose stack)
// attaches the same deterministic label set. All functions are pure: no I/O,
// no side effects.
//
// # Functions
//
//   - GenerateLabels: label set for path-prefix routing with prefix stripping
//   - RoutePriority: router priority so deeper/longer routes outrank prefixes
//
// # Usage
//
//	labels := traefik.GenerateLabels(traefik.LabelParams{
//	    AppName:  app.Name,
//	    Route:    app.Route,
//	    Port:     app.InternalPort,
//	    Priority: traefik.RoutePriority(app.Route),
//	})
//	for k, v := range labels {
//	    spec.Labels[k] = v
//	}
package traefik
