package deploy

import (
	"sort"
	"time"

	"github.com/lancereinsmith/milkcrate/internal/core/deployment"
	"github.com/lancereinsmith/milkcrate/internal/core/domain"
	"github.com/lancereinsmith/milkcrate/internal/core/traefik"
	"github.com/lancereinsmith/milkcrate/internal/shell/docker"
)

// =============================================================================
// Hardened Container Profile
// =============================================================================

// Every application container runs under the same resource and security
// profile. Applications that need more than this are outside what a shared
// host can safely run.
const (
	memoryLimitBytes = 512 * 1024 * 1024
	cpuQuotaMicros   = 50000
	cpuPeriodMicros  = 100000
	pidsLimit        = 100

	logMaxSize  = "10m"
	logMaxFiles = "3"
)

// stopTimeout bounds graceful container stops before a kill.
var stopTimeout = 10 * time.Second

// containerSpec builds the full container specification for a Dockerfile
// deployment: conventional name, routing labels, volume binds, and the
// hardened profile.
func (d *Deployer) containerSpec(req Request, imageTag, network string, port int) docker.ContainerSpec {
	return docker.ContainerSpec{
		Name:     deployment.ContainerName(req.Name),
		Image:    imageTag,
		Labels:   d.routingLabels(req.Name, req.Route, port),
		Volumes:  volumeMounts(req.VolumeMounts),
		Networks: []string{network},

		User:            "nobody:nogroup",
		CapDrop:         []string{"ALL"},
		CapAdd:          []string{"NET_BIND_SERVICE"},
		NoNewPrivileges: true,
		Tmpfs:           map[string]string{"/tmp": "rw,noexec,nosuid,size=100m"},

		Memory:     memoryLimitBytes,
		MemorySwap: memoryLimitBytes,
		CPUPeriod:  cpuPeriodMicros,
		CPUQuota:   cpuQuotaMicros,
		PidsLimit:  pidsLimit,

		LogDriver:  "json-file",
		LogOptions: map[string]string{"max-size": logMaxSize, "max-file": logMaxFiles},

		RestartPolicy: "unless-stopped",
	}
}

// routingLabels combines the generated Traefik labels with the management
// labels this system uses to find its own containers.
func (d *Deployer) routingLabels(name, route string, port int) map[string]string {
	labels := traefik.GenerateLabels(traefik.LabelParams{
		AppName:     name,
		Route:       route,
		Port:        port,
		Priority:    traefik.RoutePriority(route),
		EnableHTTPS: d.enableHTTPS,
	})
	labels[docker.LabelManaged] = "true"
	labels[docker.LabelApp] = name
	return labels
}

// volumeMounts converts the persisted mount map into engine mounts, ordered
// by volume name so the container spec is deterministic.
func volumeMounts(mounts map[string]domain.VolumeMountSpec) []docker.VolumeMount {
	if len(mounts) == 0 {
		return nil
	}

	sources := make([]string, 0, len(mounts))
	for source := range mounts {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	result := make([]docker.VolumeMount, 0, len(sources))
	for _, source := range sources {
		m := mounts[source]
		result = append(result, docker.VolumeMount{
			Source:   source,
			Target:   m.Bind,
			ReadOnly: m.Mode == "ro",
		})
	}
	return result
}
