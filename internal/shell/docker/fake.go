package docker

import (
	"context"
	"io"
	"time"
)

// =============================================================================
// Fake Client (for tests)
// =============================================================================

// FakeClient is a configurable in-memory Client used by tests in the
// packages that consume the docker layer. Unset hooks succeed with zero
// values.
type FakeClient struct {
	BuildImageFn        func(ctx context.Context, contextDir string, opts BuildOptions) error
	ImageExposedPortsFn func(ctx context.Context, image string) ([]int, error)
	RemoveImageFn       func(ctx context.Context, image string, force bool) error

	CreateContainerFn  func(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainerFn   func(ctx context.Context, containerID string) error
	StopContainerFn    func(ctx context.Context, containerID string, timeout *time.Duration) error
	RemoveContainerFn  func(ctx context.Context, containerID string, opts RemoveOptions) error
	InspectContainerFn func(ctx context.Context, containerID string) (*ContainerInfo, error)
	ContainerByNameFn  func(ctx context.Context, name string) (*ContainerInfo, error)
	WaitContainerFn    func(ctx context.Context, containerID string) (int64, error)
	ContainerLogsFn    func(ctx context.Context, containerID string) (string, error)
	CopyToContainerFn  func(ctx context.Context, containerID, destPath string, archive io.Reader) error

	EnsureNetworkFn func(ctx context.Context, name string) error

	CreateVolumeFn func(ctx context.Context, name string, labels map[string]string) error
	RemoveVolumeFn func(ctx context.Context, name string, force bool) error
	VolumeExistsFn func(ctx context.Context, name string) (bool, error)

	PingFn func(ctx context.Context) error
}

var _ Client = (*FakeClient)(nil)

func (f *FakeClient) BuildImage(ctx context.Context, contextDir string, opts BuildOptions) error {
	if f.BuildImageFn != nil {
		return f.BuildImageFn(ctx, contextDir, opts)
	}
	return nil
}

func (f *FakeClient) ImageExposedPorts(ctx context.Context, image string) ([]int, error) {
	if f.ImageExposedPortsFn != nil {
		return f.ImageExposedPortsFn(ctx, image)
	}
	return nil, nil
}

func (f *FakeClient) RemoveImage(ctx context.Context, image string, force bool) error {
	if f.RemoveImageFn != nil {
		return f.RemoveImageFn(ctx, image, force)
	}
	return nil
}

func (f *FakeClient) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	if f.CreateContainerFn != nil {
		return f.CreateContainerFn(ctx, spec)
	}
	return "fake-container", nil
}

func (f *FakeClient) StartContainer(ctx context.Context, containerID string) error {
	if f.StartContainerFn != nil {
		return f.StartContainerFn(ctx, containerID)
	}
	return nil
}

func (f *FakeClient) StopContainer(ctx context.Context, containerID string, timeout *time.Duration) error {
	if f.StopContainerFn != nil {
		return f.StopContainerFn(ctx, containerID, timeout)
	}
	return nil
}

func (f *FakeClient) RemoveContainer(ctx context.Context, containerID string, opts RemoveOptions) error {
	if f.RemoveContainerFn != nil {
		return f.RemoveContainerFn(ctx, containerID, opts)
	}
	return nil
}

func (f *FakeClient) InspectContainer(ctx context.Context, containerID string) (*ContainerInfo, error) {
	if f.InspectContainerFn != nil {
		return f.InspectContainerFn(ctx, containerID)
	}
	return &ContainerInfo{ID: containerID, State: "running"}, nil
}

func (f *FakeClient) ContainerByName(ctx context.Context, name string) (*ContainerInfo, error) {
	if f.ContainerByNameFn != nil {
		return f.ContainerByNameFn(ctx, name)
	}
	return nil, NewDockerError("ContainerByName", "container", name, "container not found", ErrContainerNotFound)
}

func (f *FakeClient) WaitContainer(ctx context.Context, containerID string) (int64, error) {
	if f.WaitContainerFn != nil {
		return f.WaitContainerFn(ctx, containerID)
	}
	return 0, nil
}

func (f *FakeClient) ContainerLogs(ctx context.Context, containerID string) (string, error) {
	if f.ContainerLogsFn != nil {
		return f.ContainerLogsFn(ctx, containerID)
	}
	return "", nil
}

func (f *FakeClient) CopyToContainer(ctx context.Context, containerID, destPath string, archive io.Reader) error {
	if f.CopyToContainerFn != nil {
		return f.CopyToContainerFn(ctx, containerID, destPath, archive)
	}
	return nil
}

func (f *FakeClient) EnsureNetwork(ctx context.Context, name string) error {
	if f.EnsureNetworkFn != nil {
		return f.EnsureNetworkFn(ctx, name)
	}
	return nil
}

func (f *FakeClient) CreateVolume(ctx context.Context, name string, labels map[string]string) error {
	if f.CreateVolumeFn != nil {
		return f.CreateVolumeFn(ctx, name, labels)
	}
	return nil
}

func (f *FakeClient) RemoveVolume(ctx context.Context, name string, force bool) error {
	if f.RemoveVolumeFn != nil {
		return f.RemoveVolumeFn(ctx, name, force)
	}
	return nil
}

func (f *FakeClient) VolumeExists(ctx context.Context, name string) (bool, error) {
	if f.VolumeExistsFn != nil {
		return f.VolumeExistsFn(ctx, name)
	}
	return false, nil
}

func (f *FakeClient) Ping(ctx context.Context) error {
	if f.PingFn != nil {
		return f.PingFn(ctx)
	}
	return nil
}

func (f *FakeClient) Close() error { return nil }
