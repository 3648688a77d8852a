package api

import (
	"time"

	"github.com/lancereinsmith/milkcrate/internal/core/domain"
)

// =============================================================================
// Request Types
// =============================================================================

// CreateVolumeRequest is the request body for creating a volume.
type CreateVolumeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SetPublicRequest is the request body for toggling an app's public flag.
type SetPublicRequest struct {
	Public bool `json:"public"`
}

// =============================================================================
// Response Types
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
}

// AppResponse is the response for application operations.
type AppResponse struct {
	ID           string                            `json:"id"`
	Name         string                            `json:"name"`
	Route        string                            `json:"route"`
	ContainerID  string                            `json:"container_id,omitempty"`
	ImageTag     string                            `json:"image_tag,omitempty"`
	InternalPort int                               `json:"internal_port"`
	Status       string                            `json:"status"`
	Kind         string                            `json:"deployment_kind"`
	ComposeFile  string                            `json:"compose_file,omitempty"`
	MainService  string                            `json:"main_service,omitempty"`
	VolumeMounts map[string]domain.VolumeMountSpec `json:"volume_mounts,omitempty"`
	Public       bool                              `json:"public"`
	CreatedAt    time.Time                         `json:"created_at"`
	UpdatedAt    time.Time                         `json:"updated_at"`
}

// AppListResponse is the response for listing applications.
type AppListResponse struct {
	Apps  []AppResponse `json:"apps"`
	Total int           `json:"total"`
}

// VolumeResponse is the response for volume creation.
type VolumeResponse struct {
	Name       string `json:"name"`
	VolumeName string `json:"volume_name"`
}

// FileListResponse is the response for listing volume files.
type FileListResponse struct {
	Files          []domain.VolumeFile `json:"files"`
	TotalSizeBytes int64               `json:"total_size_bytes"`
}

// UploadResponse is the response for volume file uploads.
type UploadResponse struct {
	FileCount int `json:"file_count"`
}
