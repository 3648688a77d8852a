// Package api provides the HTTP handlers for the milkcrate API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lancereinsmith/milkcrate/internal/core/compose"
	"github.com/lancereinsmith/milkcrate/internal/core/domain"
	"github.com/lancereinsmith/milkcrate/internal/shell/bundle"
	"github.com/lancereinsmith/milkcrate/internal/shell/composecli"
	"github.com/lancereinsmith/milkcrate/internal/shell/deploy"
	"github.com/lancereinsmith/milkcrate/internal/shell/docker"
	"github.com/lancereinsmith/milkcrate/internal/shell/status"
	"github.com/lancereinsmith/milkcrate/internal/shell/store"
	"github.com/lancereinsmith/milkcrate/internal/shell/volume"
)

// maxUploadBytes bounds the multipart memory buffer; larger bundle parts
// spill to disk.
const maxUploadBytes = 32 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store    store.Store
	docker   docker.Client
	deployer *deploy.Deployer
	status   *status.Manager
	volumes  *volume.Manager
	logger   *slog.Logger
	dataDir  string
}

// NewHandler creates an API handler. dataDir is the base directory where
// extracted application bundles live.
func NewHandler(
	s store.Store,
	d docker.Client,
	deployer *deploy.Deployer,
	statusMgr *status.Manager,
	volumes *volume.Manager,
	logger *slog.Logger,
	dataDir string,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if dataDir == "" {
		dataDir = "/var/lib/milkcrate/bundles"
	}
	return &Handler{
		store:    s,
		docker:   d,
		deployer: deployer,
		status:   statusMgr,
		volumes:  volumes,
		logger:   logger,
		dataDir:  dataDir,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/apps", func(r chi.Router) {
			r.Post("/", h.handleDeploy)
			r.Get("/", h.handleListApps)
			r.Get("/public", h.handleListPublicApps)
			r.Get("/{id}", h.handleGetApp)
			r.Put("/{id}", h.handleUpdate)
			r.Delete("/{id}", h.handleDeleteApp)
			r.Get("/{id}/status", h.handleAppStatus)
			r.Post("/{id}/public", h.handleSetPublic)
		})

		r.Route("/volumes", func(r chi.Router) {
			r.Post("/", h.handleCreateVolume)
			r.Delete("/{name}", h.handleDeleteVolume)
			r.Get("/{name}/files", h.handleListFiles)
			r.Post("/{name}/files", h.handleUploadFile)
			r.Post("/{name}/archive", h.handleUploadArchive)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.docker.Ping(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Engine: err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Engine: "ok"})
}

// =============================================================================
// Application Handlers
// =============================================================================

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
		return
	}

	name := r.FormValue("name")
	route := r.FormValue("route")
	if name == "" || route == "" {
		h.writeError(w, http.StatusBadRequest, "name and route are required", "validation_error")
		return
	}

	mounts, err := parseVolumeMounts(r.FormValue("volume_mounts"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid volume_mounts", "validation_error")
		return
	}

	bundleDir, err := h.extractBundle(r, name)
	if err != nil {
		h.writeBundleError(w, err)
		return
	}

	res, err := h.deployer.Deploy(r.Context(), deploy.Request{
		BundleDir:    bundleDir,
		Name:         name,
		Route:        route,
		Network:      r.FormValue("network"),
		Public:       r.FormValue("public") == "true",
		VolumeMounts: mounts,
	})
	if err != nil {
		h.writeDeployError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, appToResponse(res.App))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	app, err := h.store.GetApp(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "application not found", "app_not_found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to get application", "internal_error")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
		return
	}

	bundleDir, err := h.extractBundle(r, app.Name)
	if err != nil {
		h.writeBundleError(w, err)
		return
	}

	res, err := h.deployer.Update(r.Context(), id, deploy.Request{
		BundleDir: bundleDir,
		Network:   r.FormValue("network"),
	})
	if err != nil {
		h.writeDeployError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, appToResponse(res.App))
}

func (h *Handler) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := h.store.ListApps(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list applications", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, appListResponse(apps))
}

func (h *Handler) handleListPublicApps(w http.ResponseWriter, r *http.Request) {
	apps, err := h.store.ListPublicApps(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list applications", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, appListResponse(apps))
}

func (h *Handler) handleGetApp(w http.ResponseWriter, r *http.Request) {
	app, err := h.store.GetApp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "application not found", "app_not_found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to get application", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, appToResponse(app))
}

func (h *Handler) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	app, getErr := h.store.GetApp(r.Context(), id)

	if err := h.deployer.Delete(r.Context(), id); err != nil {
		if errors.Is(err, deploy.ErrAppNotFound) {
			h.writeError(w, http.StatusNotFound, "application not found", "app_not_found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to delete application", "internal_error")
		return
	}

	// Remove the extracted bundle alongside the record.
	if getErr == nil {
		_ = os.RemoveAll(filepath.Join(h.dataDir, app.Name))
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAppStatus recomputes the composite status from the engine and, when
// applicable, the health probe. The snapshot is returned as-is and the
// persisted status is refreshed in passing.
func (h *Handler) handleAppStatus(w http.ResponseWriter, r *http.Request) {
	app, err := h.store.GetApp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "application not found", "app_not_found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to get application", "internal_error")
		return
	}

	snap := h.status.Snapshot(r.Context(), app.ContainerID, app.Name, app.Route, app.InternalPort)

	if string(snap.Status) != app.Status {
		if err := h.store.UpdateAppStatus(r.Context(), app.ID, snap.Status); err != nil {
			h.logger.Warn("status persist failed", "app", app.Name, "error", err)
		}
	}

	h.writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleSetPublic(w http.ResponseWriter, r *http.Request) {
	var req SetPublicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.store.SetAppPublic(r.Context(), id, req.Public); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "application not found", "app_not_found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to update application", "internal_error")
		return
	}

	app, err := h.store.GetApp(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to get application", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, appToResponse(app))
}

// =============================================================================
// Volume Handlers
// =============================================================================

func (h *Handler) handleCreateVolume(w http.ResponseWriter, r *http.Request) {
	var req CreateVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required", "validation_error")
		return
	}

	volumeName, err := h.volumes.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, volume.ErrVolumeExists) {
			h.writeError(w, http.StatusConflict, "volume already exists", "volume_exists")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to create volume", "engine_error")
		return
	}

	h.writeJSON(w, http.StatusCreated, VolumeResponse{Name: req.Name, VolumeName: volumeName})
}

func (h *Handler) handleDeleteVolume(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.volumes.Delete(r.Context(), name); err != nil {
		if errors.Is(err, volume.ErrVolumeNotFound) {
			h.writeError(w, http.StatusNotFound, "volume not found", "volume_not_found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to delete volume", "engine_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	path := r.URL.Query().Get("path")
	files, err := h.volumes.ListFiles(r.Context(), name, path)
	if err != nil {
		if errors.Is(err, volume.ErrVolumeNotFound) {
			h.writeError(w, http.StatusNotFound, "volume not found", "volume_not_found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to list files", "engine_error")
		return
	}

	var total int64
	for _, f := range files {
		total += f.Size
	}
	h.writeJSON(w, http.StatusOK, FileListResponse{Files: files, TotalSizeBytes: total})
}

func (h *Handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
		return
	}

	localPath, cleanup, err := h.saveUpload(r, "file", "")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file is required", "validation_error")
		return
	}
	defer cleanup()

	dest := r.FormValue("dest")
	if dest == "" {
		dest = "/"
	}

	if err := h.volumes.UploadFile(r.Context(), name, localPath, dest); err != nil {
		if errors.Is(err, volume.ErrVolumeNotFound) {
			h.writeError(w, http.StatusNotFound, "volume not found", "volume_not_found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "failed to upload file", "engine_error")
		return
	}

	h.writeJSON(w, http.StatusOK, UploadResponse{FileCount: 1})
}

func (h *Handler) handleUploadArchive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", "validation_error")
		return
	}

	localPath, cleanup, err := h.saveUpload(r, "archive", ".zip")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "a .zip archive is required", "validation_error")
		return
	}
	defer cleanup()

	dest := r.FormValue("dest")
	if dest == "" {
		dest = "/"
	}

	count, err := h.volumes.UploadArchive(r.Context(), name, localPath, dest)
	if err != nil {
		switch {
		case errors.Is(err, volume.ErrVolumeNotFound):
			h.writeError(w, http.StatusNotFound, "volume not found", "volume_not_found")
		case errors.Is(err, volume.ErrUnsafeArchive):
			h.writeError(w, http.StatusBadRequest, "archive contains unsafe paths", "validation_error")
		default:
			h.writeError(w, http.StatusInternalServerError, "failed to upload archive", "engine_error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, UploadResponse{FileCount: count})
}

// =============================================================================
// Upload Plumbing
// =============================================================================

// extractBundle saves the uploaded zip and extracts it into the app's bundle
// directory, replacing any previous bundle for the same name.
func (h *Handler) extractBundle(r *http.Request, appName string) (string, error) {
	zipPath, cleanup, err := h.saveUpload(r, "bundle", ".zip")
	if err != nil {
		return "", err
	}
	defer cleanup()

	dest := filepath.Join(h.dataDir, appName)
	if err := os.RemoveAll(dest); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	if err := bundle.ExtractZip(zipPath, dest); err != nil {
		_ = os.RemoveAll(dest)
		return "", err
	}
	return dest, nil
}

// saveUpload writes one multipart file part to a temp file and returns its
// path with a cleanup func. wantExt, when non-empty, restricts the uploaded
// filename's extension.
func (h *Handler) saveUpload(r *http.Request, field, wantExt string) (string, func(), error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	if wantExt != "" && !strings.EqualFold(filepath.Ext(header.Filename), wantExt) {
		return "", nil, bundle.ErrNotZip
	}

	tempDir, err := os.MkdirTemp("", "milkcrate-upload-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tempDir) }

	localPath := filepath.Join(tempDir, filepath.Base(header.Filename))
	if err := copyUpload(localPath, file); err != nil {
		cleanup()
		return "", nil, err
	}
	return localPath, cleanup, nil
}

func copyUpload(dest string, src multipart.File) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}

// =============================================================================
// Response Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *Handler) writeBundleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bundle.ErrNotZip):
		h.writeError(w, http.StatusBadRequest, "a .zip bundle is required", "validation_error")
	case errors.Is(err, bundle.ErrUnsafePath):
		h.writeError(w, http.StatusBadRequest, "bundle contains unsafe paths", "validation_error")
	case errors.Is(err, bundle.ErrNoDeployable):
		h.writeError(w, http.StatusBadRequest, "bundle has no Dockerfile or compose file", "validation_error")
	case errors.Is(err, bundle.ErrEmptyArchive):
		h.writeError(w, http.StatusBadRequest, "bundle archive is empty", "validation_error")
	default:
		h.writeError(w, http.StatusBadRequest, "bundle is required", "validation_error")
	}
}

func (h *Handler) writeDeployError(w http.ResponseWriter, err error) {
	var parseErr *compose.ParseError

	switch {
	case errors.Is(err, deploy.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
	case errors.As(err, &parseErr):
		h.writeError(w, http.StatusBadRequest, parseErr.Message, "validation_error")
	case errors.Is(err, deploy.ErrNameTaken), errors.Is(err, deploy.ErrRouteTaken):
		h.writeError(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, deploy.ErrAppNotFound):
		h.writeError(w, http.StatusNotFound, "application not found", "app_not_found")
	case errors.Is(err, composecli.ErrTimeout):
		h.writeError(w, http.StatusGatewayTimeout, "stack operation timed out", "engine_timeout")
	default:
		h.logger.Error("deployment failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "deployment failed", "engine_error")
	}
}

func appToResponse(app *domain.App) AppResponse {
	return AppResponse{
		ID:           app.ID,
		Name:         app.Name,
		Route:        app.Route,
		ContainerID:  app.ContainerID,
		ImageTag:     app.ImageTag,
		InternalPort: app.InternalPort,
		Status:       app.Status,
		Kind:         string(app.Kind),
		ComposeFile:  app.ComposeFile,
		MainService:  app.MainService,
		VolumeMounts: app.VolumeMounts,
		Public:       app.Public,
		CreatedAt:    app.CreatedAt,
		UpdatedAt:    app.UpdatedAt,
	}
}

func appListResponse(apps []domain.App) AppListResponse {
	resp := AppListResponse{Apps: make([]AppResponse, 0, len(apps)), Total: len(apps)}
	for i := range apps {
		resp.Apps = append(resp.Apps, appToResponse(&apps[i]))
	}
	return resp
}

func parseVolumeMounts(raw string) (map[string]domain.VolumeMountSpec, error) {
	if raw == "" {
		return nil, nil
	}
	var mounts map[string]domain.VolumeMountSpec
	if err := json.Unmarshal([]byte(raw), &mounts); err != nil {
		return nil, err
	}
	return mounts, nil
}
