package bundle

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lancereinsmith/milkcrate/internal/core/domain"
)

// writeZip builds a zip at path with the given name -> content entries.
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

// =============================================================================
// AllowedFilename Tests
// =============================================================================

func TestAllowedFilename(t *testing.T) {
	assert.True(t, AllowedFilename("app.zip"))
	assert.True(t, AllowedFilename("APP.ZIP"))
	assert.False(t, AllowedFilename("app.tar.gz"))
	assert.False(t, AllowedFilename("app"))
	assert.False(t, AllowedFilename("zip"))
}

// =============================================================================
// ExtractZip Tests
// =============================================================================

func TestExtractZip_DockerfileBundle(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "app.zip")
	writeZip(t, zipPath, map[string]string{
		"Dockerfile":     "FROM alpine\n",
		"main.py":        "print('hi')\n",
		"static/app.css": "body {}\n",
	})

	dest := filepath.Join(dir, "extracted")
	require.NoError(t, ExtractZip(zipPath, dest))

	assert.FileExists(t, filepath.Join(dest, "Dockerfile"))
	assert.FileExists(t, filepath.Join(dest, "static", "app.css"))
}

func TestExtractZip_ComposeBundle(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "app.zip")
	writeZip(t, zipPath, map[string]string{
		"docker-compose.yml": "services:\n  web:\n    image: nginx\n",
	})

	dest := filepath.Join(dir, "extracted")
	require.NoError(t, ExtractZip(zipPath, dest))
	assert.FileExists(t, filepath.Join(dest, "docker-compose.yml"))
}

func TestExtractZip_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZip(t, zipPath, map[string]string{
		"Dockerfile":    "FROM alpine\n",
		"../escape.txt": "oops",
	})

	dest := filepath.Join(dir, "extracted")
	err := ExtractZip(zipPath, dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsafePath)

	// Validation happens before extraction, so nothing landed.
	assert.NoFileExists(t, filepath.Join(dest, "Dockerfile"))
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestExtractZip_RejectsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZip(t, zipPath, map[string]string{
		"/etc/passwd": "root",
	})

	err := ExtractZip(zipPath, filepath.Join(dir, "extracted"))
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestExtractZip_NoDeployableFile(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "plain.zip")
	writeZip(t, zipPath, map[string]string{
		"readme.txt": "just text",
	})

	err := ExtractZip(zipPath, filepath.Join(dir, "extracted"))
	assert.ErrorIs(t, err, ErrNoDeployable)
}

func TestExtractZip_NotAZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notzip.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	err := ExtractZip(path, filepath.Join(dir, "extracted"))
	assert.ErrorIs(t, err, ErrNotZip)
}

// =============================================================================
// DetectKind Tests
// =============================================================================

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name            string
		files           []string
		expectedKind    domain.DeploymentKind
		expectedCompose string
		expectErr       error
	}{
		{"dockerfile only", []string{"Dockerfile"}, domain.KindDockerfile, "", nil},
		{"compose yml", []string{"docker-compose.yml"}, domain.KindCompose, "docker-compose.yml", nil},
		{"compose yaml", []string{"docker-compose.yaml"}, domain.KindCompose, "docker-compose.yaml", nil},
		{"short compose", []string{"compose.yml"}, domain.KindCompose, "compose.yml", nil},
		{"compose wins over dockerfile", []string{"Dockerfile", "docker-compose.yml"}, domain.KindCompose, "docker-compose.yml", nil},
		{"neither", []string{"app.py"}, "", "", ErrNoDeployable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644))
			}

			det, err := DetectKind(dir)
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedKind, det.Kind)
			assert.Equal(t, tt.expectedCompose, det.ComposeFile)
		})
	}
}

func TestDetectKind_IgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	// A directory named Dockerfile is not a deployable bundle.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Dockerfile"), 0o755))

	_, err := DetectKind(dir)
	assert.ErrorIs(t, err, ErrNoDeployable)
}
