// Package domain contains the core value types for milkcrate.
package domain

import "time"

// =============================================================================
// Deployment Kind
// =============================================================================

// DeploymentKind identifies how an application bundle is deployed.
type DeploymentKind string

const (
	// KindDockerfile is a single-container deployment built from a Dockerfile.
	KindDockerfile DeploymentKind = "dockerfile"
	// KindCompose is a multi-service deployment driven by a compose file.
	KindCompose DeploymentKind = "compose"
)

// =============================================================================
// App - Persisted Application Record
// =============================================================================

// App is the persisted record of a deployed application.
//
// ContainerID always refers to the engine resource this system most recently
// created for the application: the container itself for a Dockerfile
// deployment, or the main service's container for a compose stack. Stale
// handles are replaced in place on update, never accumulated.
type App struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	ContainerID  string                     `json:"container_id"`
	ImageTag     string                     `json:"image_tag"`
	Route        string                     `json:"route"` // unique across all apps
	InternalPort int                        `json:"internal_port"`
	Status       string                     `json:"status"`
	Kind         DeploymentKind             `json:"deployment_kind"`
	ComposeFile  string                     `json:"compose_file,omitempty"` // compose only
	MainService  string                     `json:"main_service,omitempty"` // compose only
	VolumeMounts map[string]VolumeMountSpec `json:"volume_mounts,omitempty"`
	Public       bool                       `json:"public"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// VolumeMountSpec describes one engine-volume bind into a container.
type VolumeMountSpec struct {
	Bind string `json:"bind"` // container path
	Mode string `json:"mode"` // "rw" or "ro"
}

// =============================================================================
// Volume Files
// =============================================================================

// VolumeFile describes a single file inside an engine volume. It is only
// produced by querying the engine through a helper container and is never
// cached beyond the call that produced it.
type VolumeFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}
