// Package volume manages engine volumes and file transfer into them.
//
// The engine API cannot write files into a volume directly, so transfers go
// through short-lived helper containers that mount the volume: an upload
// helper sleeps briefly while a tar stream is copied in, a listing helper
// runs find and exits. Helpers are always torn down, and teardown failures
// never mask the primary result.
package volume

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lancereinsmith/milkcrate/internal/core/deployment"
	"github.com/lancereinsmith/milkcrate/internal/core/domain"
	"github.com/lancereinsmith/milkcrate/internal/shell/docker"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrVolumeExists   = errors.New("volume already exists")
	ErrVolumeNotFound = errors.New("volume not found")
	ErrUnsafeArchive  = errors.New("archive contains unsafe paths")
	ErrListFailed     = errors.New("listing volume files failed")
)

// helperImage is the image used for ephemeral volume helpers.
const helperImage = "alpine:latest"

// uploadHold keeps the upload helper alive long enough for the archive copy.
const uploadHold = "5"

// listWaitTimeout bounds how long a listing helper may run.
const listWaitTimeout = 10 * time.Second

// =============================================================================
// Volume Manager
// =============================================================================

// Manager performs volume lifecycle and file operations.
type Manager struct {
	docker docker.Client
	logger *slog.Logger
}

// NewManager creates a volume manager.
func NewManager(d docker.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{docker: d, logger: logger}
}

// Create creates a managed volume for the given user-facing name and returns
// the engine volume name. An optional description is stored as a label.
func (m *Manager) Create(ctx context.Context, name, description string) (string, error) {
	volumeName := deployment.VolumeName(name)

	exists, err := m.docker.VolumeExists(ctx, volumeName)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s", ErrVolumeExists, volumeName)
	}

	labels := map[string]string{
		docker.LabelManaged:     "true",
		"milkcrate.volume_name": name,
	}
	if description != "" {
		labels["milkcrate.description"] = description
	}
	if err := m.docker.CreateVolume(ctx, volumeName, labels); err != nil {
		return "", err
	}

	m.logger.Info("volume created", "volume", volumeName)
	return volumeName, nil
}

// Delete removes a volume. Volumes still mounted by a container are refused
// by the engine; that error is passed through.
func (m *Manager) Delete(ctx context.Context, volumeName string) error {
	if err := m.docker.RemoveVolume(ctx, volumeName, false); err != nil {
		if errors.Is(err, docker.ErrVolumeNotFound) {
			return fmt.Errorf("%w: %s", ErrVolumeNotFound, volumeName)
		}
		return err
	}
	m.logger.Info("volume deleted", "volume", volumeName)
	return nil
}

// UploadFile copies a single local file into a volume at destPath ("/" for
// the volume root).
func (m *Manager) UploadFile(ctx context.Context, volumeName, filePath, destPath string) error {
	if err := m.requireVolume(ctx, volumeName); err != nil {
		return err
	}

	stream, err := tarFile(filePath)
	if err != nil {
		return err
	}

	return m.uploadStream(ctx, volumeName, destPath, stream)
}

// UploadArchive expands a zip archive and copies its contents into a volume
// at destPath. Returns the number of files transferred. Archives with
// traversal or absolute entries are rejected before anything is expanded.
func (m *Manager) UploadArchive(ctx context.Context, volumeName, zipPath, destPath string) (int, error) {
	if err := m.requireVolume(ctx, volumeName); err != nil {
		return 0, err
	}

	tempDir, err := os.MkdirTemp("", "milkcrate-vol-*")
	if err != nil {
		return 0, fmt.Errorf("create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	fileCount, err := expandZip(zipPath, tempDir)
	if err != nil {
		return 0, err
	}

	stream, err := tarDirContents(tempDir)
	if err != nil {
		return 0, err
	}

	if err := m.uploadStream(ctx, volumeName, destPath, stream); err != nil {
		return 0, err
	}
	return fileCount, nil
}

// ListFiles lists the files in a volume under path ("/" for the root).
func (m *Manager) ListFiles(ctx context.Context, volumeName, path string) ([]domain.VolumeFile, error) {
	if err := m.requireVolume(ctx, volumeName); err != nil {
		return nil, err
	}
	if path == "" {
		path = "/"
	}

	spec := docker.ContainerSpec{
		Name:    helperName("list"),
		Image:   helperImage,
		Command: []string{"find", "/volume" + path, "-type", "f", "-exec", "stat", "-c", "%n|%s", "{}", ";"},
		Volumes: []docker.VolumeMount{{Source: volumeName, Target: "/volume", ReadOnly: true}},
	}

	containerID, err := m.docker.CreateContainer(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer m.teardown(containerID)

	if err := m.docker.StartContainer(ctx, containerID); err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, listWaitTimeout)
	defer cancel()
	exitCode, err := m.docker.WaitContainer(waitCtx, containerID)
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("%w: helper exited with code %d", ErrListFailed, exitCode)
	}

	logs, err := m.docker.ContainerLogs(ctx, containerID)
	if err != nil {
		return nil, err
	}

	return parseFileList(logs), nil
}

// Size returns the total size in bytes of all files in a volume.
func (m *Manager) Size(ctx context.Context, volumeName string) (int64, error) {
	files, err := m.ListFiles(ctx, volumeName, "/")
	if err != nil {
		return 0, err
	}

	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (m *Manager) requireVolume(ctx context.Context, volumeName string) error {
	exists, err := m.docker.VolumeExists(ctx, volumeName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrVolumeNotFound, volumeName)
	}
	return nil
}

// uploadStream runs the upload helper: create, start, copy the archive into
// /volume<destPath>, tear down.
func (m *Manager) uploadStream(ctx context.Context, volumeName, destPath string, stream io.Reader) error {
	if destPath == "" {
		destPath = "/"
	}

	spec := docker.ContainerSpec{
		Name:    helperName("upload"),
		Image:   helperImage,
		Command: []string{"sleep", uploadHold},
		Volumes: []docker.VolumeMount{{Source: volumeName, Target: "/volume", ReadOnly: false}},
	}

	containerID, err := m.docker.CreateContainer(ctx, spec)
	if err != nil {
		return err
	}
	defer m.teardown(containerID)

	if err := m.docker.StartContainer(ctx, containerID); err != nil {
		return err
	}

	return m.docker.CopyToContainer(ctx, containerID, "/volume"+destPath, stream)
}

// teardown force-removes a helper container on a fresh context so cleanup
// still runs when the caller's context is already done.
func (m *Manager) teardown(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopTimeout := 1 * time.Second
	if err := m.docker.StopContainer(ctx, containerID, &stopTimeout); err != nil {
		m.logger.Debug("helper stop failed", "container_id", containerID, "error", err)
	}
	if err := m.docker.RemoveContainer(ctx, containerID, docker.RemoveOptions{Force: true}); err != nil {
		m.logger.Warn("helper removal failed", "container_id", containerID, "error", err)
	}
}

func helperName(kind string) string {
	return fmt.Sprintf("milkcrate-vol-%s-%s", kind, uuid.NewString()[:8])
}

// expandZip extracts a zip into destDir after validating every entry name,
// and returns the number of extracted files.
func expandZip(zipPath, destDir string) (int, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if filepath.IsAbs(f.Name) || strings.Contains(f.Name, "..") {
			return 0, fmt.Errorf("%w: %q", ErrUnsafeArchive, f.Name)
		}
	}

	count := 0
	for _, f := range r.File {
		dest := filepath.Join(destDir, f.Name)

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return 0, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return 0, err
		}

		src, err := f.Open()
		if err != nil {
			return 0, fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			src.Close()
			return 0, err
		}
		_, err = io.Copy(out, src)
		src.Close()
		out.Close()
		if err != nil {
			return 0, fmt.Errorf("write zip entry %s: %w", f.Name, err)
		}
		count++
	}
	return count, nil
}

// parseFileList parses "path|size" lines emitted by the listing helper.
func parseFileList(logs string) []domain.VolumeFile {
	files := make([]domain.VolumeFile, 0)
	for _, line := range strings.Split(strings.TrimSpace(logs), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		path, sizeStr, ok := strings.Cut(line, "|")
		if !ok {
			continue
		}
		size, err := strconv.ParseInt(strings.TrimSpace(sizeStr), 10, 64)
		if err != nil {
			continue
		}

		// Paths inside the helper are rooted at the mount point.
		path = strings.Replace(path, "/volume", "", 1)
		files = append(files, domain.VolumeFile{
			Name: filepath.Base(path),
			Path: path,
			Size: size,
		})
	}
	return files
}
