package store

import (
	"context"

	"github.com/lancereinsmith/milkcrate/internal/core/domain"
	"github.com/lancereinsmith/milkcrate/internal/core/status"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for deployed applications.
type Store interface {
	// Lookups
	GetApp(ctx context.Context, id string) (*domain.App, error)
	GetAppByName(ctx context.Context, name string) (*domain.App, error)
	GetAppByContainerID(ctx context.Context, containerID string) (*domain.App, error)
	GetAppByRoute(ctx context.Context, route string) (*domain.App, error)
	ListApps(ctx context.Context) ([]domain.App, error)
	ListPublicApps(ctx context.Context) ([]domain.App, error)

	// Mutations
	InsertApp(ctx context.Context, app *domain.App) error
	UpdateApp(ctx context.Context, app *domain.App) error
	UpdateAppContainerInfo(ctx context.Context, id, containerID, imageTag string) error
	UpdateAppStatus(ctx context.Context, id string, st status.Status) error
	SetAppPublic(ctx context.Context, id string, public bool) error
	DeleteApp(ctx context.Context, id string) error

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}
