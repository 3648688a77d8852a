package traefik

import "strings"

// RoutePriority computes the router priority for a public route.
//
// Formula: 100 + 10*(number of path segments) + (character length of the
// route), where segments are counted on the route trimmed of leading and
// trailing slashes. Deeper or longer routes always outrank a shorter prefix
// that could also match them: /test2 beats /test, /a/b beats /a.
func RoutePriority(route string) int {
	segments := len(strings.Split(strings.Trim(route, "/"), "/"))
	return 100 + segments*10 + len(route)
}
