package deployment

import "sort"

// =============================================================================
// Internal Port Selection
// =============================================================================

// DefaultInternalPort is assumed when an image exposes no TCP ports.
const DefaultInternalPort = 8000

// SelectInternalPort picks the container port Traefik should forward to,
// given the TCP ports an image exposes.
//
// Selection order:
//  1. 8000 if the image exposes it
//  2. otherwise the lowest exposed port
//  3. otherwise the default 8000
func SelectInternalPort(exposed []int) int {
	if len(exposed) == 0 {
		return DefaultInternalPort
	}
	lowest := exposed[0]
	for _, p := range exposed {
		if p == DefaultInternalPort {
			return DefaultInternalPort
		}
		if p < lowest {
			lowest = p
		}
	}
	return lowest
}

// SortPorts returns a sorted copy of the port list. Used to make exposed
// port reporting deterministic.
func SortPorts(ports []int) []int {
	out := make([]int, len(ports))
	copy(out, ports)
	sort.Ints(out)
	return out
}
