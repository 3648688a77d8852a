// Package bundle handles uploaded application bundles: safe zip extraction
// and detection of the deployment kind from the extracted files.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lancereinsmith/milkcrate/internal/core/domain"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrUnsafePath   = errors.New("archive entry escapes extraction directory")
	ErrNoDeployable = errors.New("bundle must contain a Dockerfile or a compose file at its root")
	ErrNotZip       = errors.New("file is not a valid zip archive")
	ErrEmptyArchive = errors.New("archive contains no files")
)

// composeFilenames are the compose file names recognized at the bundle root,
// checked in this order.
var composeFilenames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// =============================================================================
// Upload Validation
// =============================================================================

// AllowedFilename reports whether an uploaded filename is acceptable.
// Only .zip uploads are supported.
func AllowedFilename(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".zip")
}

// =============================================================================
// Extraction
// =============================================================================

// ExtractZip extracts a zip archive into destDir.
//
// Every entry name is validated before anything is written: absolute paths
// and traversal outside destDir abort the extraction with nothing extracted.
// After extraction the bundle root must contain a Dockerfile or a compose
// file, otherwise the extraction fails.
func ExtractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if errors.Is(err, zip.ErrInsecurePath) {
		r.Close()
		return fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotZip, err)
	}
	defer r.Close()

	if len(r.File) == 0 {
		return ErrEmptyArchive
	}

	// Validate all entries first so a hostile archive never partially lands.
	for _, f := range r.File {
		if err := validateEntryName(destDir, f.Name); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}

	for _, f := range r.File {
		if err := extractEntry(destDir, f); err != nil {
			return err
		}
	}

	if _, err := DetectKind(destDir); err != nil {
		return err
	}
	return nil
}

func validateEntryName(destDir, name string) error {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	dest := filepath.Join(destDir, name)
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return nil
}

func extractEntry(destDir string, f *zip.File) error {
	dest := filepath.Join(destDir, f.Name)

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	return nil
}

// =============================================================================
// Kind Detection
// =============================================================================

// Detection is the result of inspecting an extracted bundle.
type Detection struct {
	Kind        domain.DeploymentKind
	ComposeFile string // set for compose bundles, relative to the bundle root
}

// DetectKind inspects an extracted bundle directory and decides how it
// deploys. A compose file wins over a Dockerfile when both are present.
func DetectKind(dir string) (Detection, error) {
	for _, name := range composeFilenames {
		if fileExists(filepath.Join(dir, name)) {
			return Detection{Kind: domain.KindCompose, ComposeFile: name}, nil
		}
	}
	if fileExists(filepath.Join(dir, "Dockerfile")) {
		return Detection{Kind: domain.KindDockerfile}, nil
	}
	return Detection{}, ErrNoDeployable
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
