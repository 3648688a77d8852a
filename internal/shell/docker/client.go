package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerClient implements the Client interface using the Docker SDK.
type DockerClient struct {
	cli *client.Client
}

// NewDockerClient creates a new Docker client. If host is empty the default
// Docker host from the environment is used.
func NewDockerClient(host string) (*DockerClient, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewDockerClient", "", "", "failed to create client", ErrConnectionFailed)
	}
	return &DockerClient{cli: cli}, nil
}

// Ping checks if the Docker daemon is reachable.
func (d *DockerClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Image Operations
// =============================================================================

// BuildImage builds an image from a directory containing a Dockerfile.
// The directory is tarred as the build context and the daemon's JSON message
// stream is drained to surface build failures.
func (d *DockerClient) BuildImage(ctx context.Context, contextDir string, opts BuildOptions) error {
	buildCtx, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return NewDockerError("BuildImage", "image", opts.Tag, "failed to create build context", err)
	}
	defer buildCtx.Close()

	dockerfile := opts.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	resp, err := d.cli.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:        []string{opts.Tag},
		Dockerfile:  dockerfile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return NewDockerError("BuildImage", "image", opts.Tag, err.Error(), ErrBuildFailed)
	}
	defer resp.Body.Close()

	// Build errors arrive inside the message stream, not as transport errors.
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		if jerr, ok := err.(*jsonmessage.JSONError); ok {
			return NewDockerError("BuildImage", "image", opts.Tag, jerr.Message, ErrBuildFailed)
		}
		return NewDockerError("BuildImage", "image", opts.Tag, err.Error(), ErrBuildFailed)
	}

	return nil
}

// ImageExposedPorts returns the TCP ports an image declares via EXPOSE,
// sorted by the caller if ordering matters.
func (d *DockerClient) ImageExposedPorts(ctx context.Context, imageName string) ([]int, error) {
	resp, _, err := d.cli.ImageInspectWithRaw(ctx, imageName)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewDockerError("ImageExposedPorts", "image", imageName, "image not found", ErrImageNotFound)
		}
		return nil, NewDockerError("ImageExposedPorts", "image", imageName, err.Error(), err)
	}

	return exposedTCPPorts(resp.Config.ExposedPorts), nil
}

// exposedTCPPorts extracts the TCP port numbers from an image config's
// exposed-port set. The keys are "port/proto" strings, e.g. "8000/tcp".
func exposedTCPPorts(exposed map[string]struct{}) []int {
	var ports []int
	for p := range exposed {
		port := nat.Port(p)
		if port.Proto() != "tcp" {
			continue
		}
		ports = append(ports, port.Int())
	}
	return ports
}

// RemoveImage removes an image.
func (d *DockerClient) RemoveImage(ctx context.Context, imageName string, force bool) error {
	_, err := d.cli.ImageRemove(ctx, imageName, image.RemoveOptions{Force: force, PruneChildren: true})
	if err != nil {
		if client.IsErrNotFound(err) {
			return NewDockerError("RemoveImage", "image", imageName, "image not found", ErrImageNotFound)
		}
		return NewDockerError("RemoveImage", "image", imageName, err.Error(), err)
	}
	return nil
}

// =============================================================================
// Container Operations
// =============================================================================

// CreateContainer creates a new container from the given spec.
func (d *DockerClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	config := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Command,
		Entrypoint: spec.Entrypoint,
		WorkingDir: spec.WorkingDir,
		User:       spec.User,
		Labels:     spec.Labels,
	}
	for k, v := range spec.Env {
		config.Env = append(config.Env, fmt.Sprintf("%s=%s", k, v))
	}

	hostConfig := &container.HostConfig{
		CapDrop:        spec.CapDrop,
		CapAdd:         spec.CapAdd,
		SecurityOpt:    spec.SecurityOpt,
		Tmpfs:          spec.Tmpfs,
		ReadonlyRootfs: spec.ReadOnlyRootfs,
	}
	if spec.NoNewPrivileges {
		hostConfig.SecurityOpt = append(hostConfig.SecurityOpt, "no-new-privileges:true")
	}

	hostConfig.Memory = spec.Memory
	hostConfig.MemorySwap = spec.MemorySwap
	hostConfig.CPUPeriod = spec.CPUPeriod
	hostConfig.CPUQuota = spec.CPUQuota
	if spec.PidsLimit > 0 {
		limit := spec.PidsLimit
		hostConfig.PidsLimit = &limit
	}

	if spec.LogDriver != "" {
		hostConfig.LogConfig = container.LogConfig{
			Type:   spec.LogDriver,
			Config: spec.LogOptions,
		}
	}

	if spec.RestartPolicy != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(spec.RestartPolicy),
		}
	}

	for _, v := range spec.Volumes {
		mountType := mount.TypeVolume
		if strings.HasPrefix(v.Source, "/") {
			mountType = mount.TypeBind
		}
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:     mountType,
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	var networkConfig *network.NetworkingConfig
	if len(spec.Networks) > 0 {
		networkConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{},
		}
		for _, n := range spec.Networks {
			networkConfig.EndpointsConfig[n] = &network.EndpointSettings{}
		}
	}

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, spec.Name)
	if err != nil {
		if strings.Contains(err.Error(), "Conflict") {
			return "", NewDockerError("CreateContainer", "container", spec.Name, "container already exists", ErrContainerAlreadyExists)
		}
		return "", NewDockerError("CreateContainer", "container", spec.Name, err.Error(), err)
	}
	return resp.ID, nil
}

// StartContainer starts a created or stopped container.
func (d *DockerClient) StartContainer(ctx context.Context, containerID string) error {
	if err := d.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return NewDockerError("StartContainer", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return NewDockerError("StartContainer", "container", containerID, err.Error(), err)
	}
	return nil
}

// StopContainer stops a running container.
func (d *DockerClient) StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error {
	stopOptions := container.StopOptions{}
	if timeout != nil {
		seconds := int(timeout.Seconds())
		stopOptions.Timeout = &seconds
	}

	if err := d.cli.ContainerStop(ctx, containerID, stopOptions); err != nil {
		if client.IsErrNotFound(err) {
			return NewDockerError("StopContainer", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return NewDockerError("StopContainer", "container", containerID, err.Error(), err)
	}
	return nil
}

// RemoveContainer removes a container.
func (d *DockerClient) RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error {
	removeOpts := container.RemoveOptions{
		Force:         opts.Force,
		RemoveVolumes: opts.RemoveVolumes,
	}
	if err := d.cli.ContainerRemove(ctx, containerID, removeOpts); err != nil {
		if client.IsErrNotFound(err) {
			return NewDockerError("RemoveContainer", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return NewDockerError("RemoveContainer", "container", containerID, err.Error(), err)
	}
	return nil
}

// InspectContainer returns detailed information about a container.
func (d *DockerClient) InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error) {
	resp, err := d.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewDockerError("InspectContainer", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return nil, NewDockerError("InspectContainer", "container", containerID, err.Error(), err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, resp.Created)

	var startedAt, finishedAt *time.Time
	if resp.State.StartedAt != "" && resp.State.StartedAt != "0001-01-01T00:00:00Z" {
		t, _ := time.Parse(time.RFC3339Nano, resp.State.StartedAt)
		startedAt = &t
	}
	if resp.State.FinishedAt != "" && resp.State.FinishedAt != "0001-01-01T00:00:00Z" {
		t, _ := time.Parse(time.RFC3339Nano, resp.State.FinishedAt)
		finishedAt = &t
	}

	health := ""
	if resp.State.Health != nil {
		health = resp.State.Health.Status
	}

	return &ContainerInfo{
		ID:           resp.ID,
		Name:         strings.TrimPrefix(resp.Name, "/"),
		Image:        resp.Config.Image,
		State:        resp.State.Status,
		Health:       health,
		CreatedAt:    createdAt,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Labels:       resp.Config.Labels,
		ExitCode:     resp.State.ExitCode,
		RestartCount: resp.RestartCount,
		Error:        resp.State.Error,
	}, nil
}

// ContainerByName finds a container by its exact name, including stopped
// ones. Returns ErrContainerNotFound when no container matches.
func (d *DockerClient) ContainerByName(ctx context.Context, name string) (*ContainerInfo, error) {
	// Inspect accepts names as well as IDs.
	info, err := d.InspectContainer(ctx, name)
	if err != nil {
		return nil, err
	}
	if info.Name != name {
		return nil, NewDockerError("ContainerByName", "container", name, "container not found", ErrContainerNotFound)
	}
	return info, nil
}

// WaitContainer blocks until the container stops and returns its exit code.
func (d *DockerClient) WaitContainer(ctx context.Context, containerID string) (int64, error) {
	statusCh, errCh := d.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, NewDockerError("WaitContainer", "container", containerID, err.Error(), err)
	case status := <-statusCh:
		if status.Error != nil {
			return status.StatusCode, NewDockerError("WaitContainer", "container", containerID, status.Error.Message, nil)
		}
		return status.StatusCode, nil
	case <-ctx.Done():
		return -1, NewDockerError("WaitContainer", "container", containerID, ctx.Err().Error(), ctx.Err())
	}
}

// ContainerLogs captures the full stdout and stderr of a container as text.
func (d *DockerClient) ContainerLogs(ctx context.Context, containerID string) (string, error) {
	reader, err := d.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", NewDockerError("ContainerLogs", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return "", NewDockerError("ContainerLogs", "container", containerID, err.Error(), err)
	}
	defer reader.Close()

	// The log stream is multiplexed; demux stdout and stderr together.
	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return "", NewDockerError("ContainerLogs", "container", containerID, err.Error(), err)
	}
	return buf.String(), nil
}

// CopyToContainer streams a tar archive into a path inside a container.
func (d *DockerClient) CopyToContainer(ctx context.Context, containerID, destPath string, tarStream io.Reader) error {
	err := d.cli.CopyToContainer(ctx, containerID, destPath, tarStream, container.CopyToContainerOptions{})
	if err != nil {
		if client.IsErrNotFound(err) {
			return NewDockerError("CopyToContainer", "container", containerID, "container not found", ErrContainerNotFound)
		}
		return NewDockerError("CopyToContainer", "container", containerID, err.Error(), err)
	}
	return nil
}

// =============================================================================
// Network Operations
// =============================================================================

// EnsureNetwork creates a bridge network if it does not already exist.
func (d *DockerClient) EnsureNetwork(ctx context.Context, name string) error {
	_, err := d.cli.NetworkInspect(ctx, name, network.InspectOptions{})
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return NewDockerError("EnsureNetwork", "network", name, err.Error(), err)
	}

	_, err = d.cli.NetworkCreate(ctx, name, network.CreateOptions{Driver: "bridge"})
	if err != nil {
		// Lost a create race; the network exists now, which is what we want.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return NewDockerError("EnsureNetwork", "network", name, err.Error(), err)
	}
	return nil
}

// =============================================================================
// Volume Operations
// =============================================================================

// CreateVolume creates a named local volume.
func (d *DockerClient) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	_, err := d.cli.VolumeCreate(ctx, volume.CreateOptions{
		Name:   name,
		Driver: "local",
		Labels: labels,
	})
	if err != nil {
		return NewDockerError("CreateVolume", "volume", name, err.Error(), err)
	}
	return nil
}

// RemoveVolume removes a named volume.
func (d *DockerClient) RemoveVolume(ctx context.Context, name string, force bool) error {
	if err := d.cli.VolumeRemove(ctx, name, force); err != nil {
		if client.IsErrNotFound(err) {
			return NewDockerError("RemoveVolume", "volume", name, "volume not found", ErrVolumeNotFound)
		}
		if strings.Contains(err.Error(), "in use") {
			return NewDockerError("RemoveVolume", "volume", name, "volume is in use", ErrVolumeInUse)
		}
		return NewDockerError("RemoveVolume", "volume", name, err.Error(), err)
	}
	return nil
}

// VolumeExists reports whether a named volume exists.
func (d *DockerClient) VolumeExists(ctx context.Context, name string) (bool, error) {
	_, err := d.cli.VolumeInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, NewDockerError("VolumeExists", "volume", name, err.Error(), err)
	}
	return true, nil
}
