// Package docker provides a Docker client for image builds, container
// lifecycle management, and volume plumbing.
package docker

import (
	"context"
	"io"
	"time"
)

// =============================================================================
// Container Types
// =============================================================================

// ContainerSpec defines the specification for creating a container.
// The security fields map directly onto the engine's HostConfig so a
// hardened profile can be expressed without touching SDK types.
type ContainerSpec struct {
	Name       string
	Image      string
	Command    []string
	Entrypoint []string
	Env        map[string]string
	Labels     map[string]string
	Volumes    []VolumeMount
	Networks   []string
	WorkingDir string

	// Security hardening
	User            string
	CapDrop         []string
	CapAdd          []string
	SecurityOpt     []string
	Tmpfs           map[string]string // target path -> mount options
	ReadOnlyRootfs  bool
	NoNewPrivileges bool

	// Resource limits
	Memory     int64 // bytes
	MemorySwap int64 // bytes, -1 for unlimited
	CPUPeriod  int64 // microseconds
	CPUQuota   int64 // microseconds per period
	PidsLimit  int64

	// Logging driver
	LogDriver  string
	LogOptions map[string]string

	RestartPolicy string // "no", "always", "on-failure", "unless-stopped"
}

// VolumeMount defines a volume mount.
type VolumeMount struct {
	Source   string // Volume name or host path
	Target   string // Container path
	ReadOnly bool
}

// =============================================================================
// Container Info
// =============================================================================

// ContainerInfo contains inspection data for a container.
type ContainerInfo struct {
	ID           string
	Name         string
	Image        string
	State        string // "running", "exited", "created", ...
	Health       string // "healthy", "unhealthy", "starting", ""
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	Labels       map[string]string
	ExitCode     int
	RestartCount int
	Error        string // engine-reported error for the container, if any
}

// =============================================================================
// Options
// =============================================================================

// RemoveOptions defines options for removing containers.
type RemoveOptions struct {
	Force         bool
	RemoveVolumes bool
}

// BuildOptions defines options for building images.
type BuildOptions struct {
	Tag        string
	Dockerfile string // relative to the context root, default "Dockerfile"
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the Docker engine operations the deployment and status
// layers depend on. Narrow by intent: fakes in tests implement this.
type Client interface {
	// Image operations
	BuildImage(ctx context.Context, contextDir string, opts BuildOptions) error
	ImageExposedPorts(ctx context.Context, image string) ([]int, error)
	RemoveImage(ctx context.Context, image string, force bool) error

	// Container operations
	CreateContainer(ctx context.Context, spec ContainerSpec) (containerID string, err error)
	StartContainer(ctx context.Context, containerID string) error
	StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error
	RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error
	InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error)
	ContainerByName(ctx context.Context, name string) (*ContainerInfo, error)
	WaitContainer(ctx context.Context, containerID string) (exitCode int64, err error)
	ContainerLogs(ctx context.Context, containerID string) (string, error)
	CopyToContainer(ctx context.Context, containerID, destPath string, archive io.Reader) error

	// Network operations
	EnsureNetwork(ctx context.Context, name string) error

	// Volume operations
	CreateVolume(ctx context.Context, name string, labels map[string]string) error
	RemoveVolume(ctx context.Context, name string, force bool) error
	VolumeExists(ctx context.Context, name string) (bool, error)

	// Health operations
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

const (
	LabelManaged = "milkcrate.managed"
	LabelApp     = "milkcrate.app"
)
