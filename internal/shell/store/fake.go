package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/lancereinsmith/milkcrate/internal/core/domain"
	"github.com/lancereinsmith/milkcrate/internal/core/status"
)

// =============================================================================
// Fake Store (for tests)
// =============================================================================

// FakeStore is an in-memory Store used by tests in the packages that consume
// the persistence layer. It enforces the same name and route uniqueness as
// the SQLite implementation.
type FakeStore struct {
	mu   sync.Mutex
	apps map[string]*domain.App
}

var _ Store = (*FakeStore)(nil)

// NewFakeStore creates an empty in-memory store.
func NewFakeStore() *FakeStore {
	return &FakeStore{apps: make(map[string]*domain.App)}
}

func (s *FakeStore) GetApp(ctx context.Context, id string) (*domain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app, ok := s.apps[id]; ok {
		copied := *app
		return &copied, nil
	}
	return nil, fmt.Errorf("%w: app %s", ErrNotFound, id)
}

func (s *FakeStore) GetAppByName(ctx context.Context, name string) (*domain.App, error) {
	return s.findBy(func(a *domain.App) bool { return a.Name == name })
}

func (s *FakeStore) GetAppByContainerID(ctx context.Context, containerID string) (*domain.App, error) {
	return s.findBy(func(a *domain.App) bool { return a.ContainerID == containerID })
}

func (s *FakeStore) GetAppByRoute(ctx context.Context, route string) (*domain.App, error) {
	return s.findBy(func(a *domain.App) bool { return a.Route == route })
}

func (s *FakeStore) findBy(match func(*domain.App) bool) (*domain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.apps {
		if match(app) {
			copied := *app
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FakeStore) ListApps(ctx context.Context) ([]domain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.App, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, *app)
	}
	return out, nil
}

func (s *FakeStore) ListPublicApps(ctx context.Context) ([]domain.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.App, 0)
	for _, app := range s.apps {
		if app.Public {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (s *FakeStore) InsertApp(ctx context.Context, app *domain.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.apps {
		if existing.Name == app.Name {
			return fmt.Errorf("%w: %s", ErrDuplicateName, app.Name)
		}
		if existing.Route == app.Route {
			return fmt.Errorf("%w: %s", ErrDuplicateRoute, app.Route)
		}
	}
	copied := *app
	s.apps[app.ID] = &copied
	return nil
}

func (s *FakeStore) UpdateApp(ctx context.Context, app *domain.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; !ok {
		return fmt.Errorf("%w: app %s", ErrNotFound, app.ID)
	}
	copied := *app
	s.apps[app.ID] = &copied
	return nil
}

func (s *FakeStore) UpdateAppContainerInfo(ctx context.Context, id, containerID, imageTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return fmt.Errorf("%w: app %s", ErrNotFound, id)
	}
	app.ContainerID = containerID
	app.ImageTag = imageTag
	return nil
}

func (s *FakeStore) UpdateAppStatus(ctx context.Context, id string, st status.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return fmt.Errorf("%w: app %s", ErrNotFound, id)
	}
	app.Status = string(st)
	return nil
}

func (s *FakeStore) SetAppPublic(ctx context.Context, id string, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return fmt.Errorf("%w: app %s", ErrNotFound, id)
	}
	app.Public = public
	return nil
}

func (s *FakeStore) DeleteApp(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return fmt.Errorf("%w: app %s", ErrNotFound, id)
	}
	delete(s.apps, id)
	return nil
}

func (s *FakeStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *FakeStore) Close() error { return nil }
