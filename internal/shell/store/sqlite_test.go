package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lancereinsmith/milkcrate/internal/core/domain"
	"github.com/lancereinsmith/milkcrate/internal/core/status"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testApp(name, route string) *domain.App {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.App{
		ID:           uuid.NewString(),
		Name:         name,
		ContainerID:  "container-" + name,
		ImageTag:     "milkcrate-" + name + ":20240101-120000",
		Route:        route,
		InternalPort: 8000,
		Status:       "running",
		Kind:         domain.KindDockerfile,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// =============================================================================
// Insert / Get Tests
// =============================================================================

func TestInsertAndGetApp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	app := testApp("myapp", "/myapp")
	app.VolumeMounts = map[string]domain.VolumeMountSpec{
		"milkcrate-vol-myapp": {Bind: "/data", Mode: "rw"},
	}
	require.NoError(t, s.InsertApp(ctx, app))

	got, err := s.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.Name, got.Name)
	assert.Equal(t, app.ContainerID, got.ContainerID)
	assert.Equal(t, app.Route, got.Route)
	assert.Equal(t, domain.KindDockerfile, got.Kind)
	assert.Equal(t, "rw", got.VolumeMounts["milkcrate-vol-myapp"].Mode)
	assert.Equal(t, app.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestGetApp_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetApp(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAppByLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	app := testApp("myapp", "/myapp")
	require.NoError(t, s.InsertApp(ctx, app))

	byName, err := s.GetAppByName(ctx, "myapp")
	require.NoError(t, err)
	assert.Equal(t, app.ID, byName.ID)

	byContainer, err := s.GetAppByContainerID(ctx, app.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, byContainer.ID)

	byRoute, err := s.GetAppByRoute(ctx, "/myapp")
	require.NoError(t, err)
	assert.Equal(t, app.ID, byRoute.ID)
}

func TestInsertApp_DuplicateRoute(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertApp(ctx, testApp("first", "/shared")))

	err := s.InsertApp(ctx, testApp("second", "/shared"))
	assert.ErrorIs(t, err, ErrDuplicateRoute)
}

func TestInsertApp_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertApp(ctx, testApp("same", "/one")))

	err := s.InsertApp(ctx, testApp("same", "/two"))
	assert.ErrorIs(t, err, ErrDuplicateName)
}

// =============================================================================
// List Tests
// =============================================================================

func TestListApps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testApp("alpha", "/alpha")
	b := testApp("beta", "/beta")
	b.Public = true
	require.NoError(t, s.InsertApp(ctx, a))
	require.NoError(t, s.InsertApp(ctx, b))

	all, err := s.ListApps(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	public, err := s.ListPublicApps(ctx)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "beta", public[0].Name)
}

// =============================================================================
// Update Tests
// =============================================================================

func TestUpdateAppContainerInfo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	app := testApp("myapp", "/myapp")
	require.NoError(t, s.InsertApp(ctx, app))

	require.NoError(t, s.UpdateAppContainerInfo(ctx, app.ID, "new-container", "milkcrate-myapp:20240202-130000"))

	got, err := s.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-container", got.ContainerID)
	assert.Equal(t, "milkcrate-myapp:20240202-130000", got.ImageTag)
}

func TestUpdateAppStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	app := testApp("myapp", "/myapp")
	require.NoError(t, s.InsertApp(ctx, app))

	require.NoError(t, s.UpdateAppStatus(ctx, app.ID, status.StatusReady))

	got, err := s.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, string(status.StatusReady), got.Status)
}

func TestUpdateAppStatus_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateAppStatus(context.Background(), "missing", status.StatusError)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetAppPublic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	app := testApp("myapp", "/myapp")
	require.NoError(t, s.InsertApp(ctx, app))

	require.NoError(t, s.SetAppPublic(ctx, app.ID, true))

	got, err := s.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.True(t, got.Public)
}

func TestUpdateApp_FullRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	app := testApp("myapp", "/myapp")
	require.NoError(t, s.InsertApp(ctx, app))

	app.Kind = domain.KindCompose
	app.ComposeFile = "docker-compose.yml"
	app.MainService = "web"
	app.Status = "updating"
	require.NoError(t, s.UpdateApp(ctx, app))

	got, err := s.GetApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindCompose, got.Kind)
	assert.Equal(t, "web", got.MainService)
	assert.Equal(t, "updating", got.Status)
}

// =============================================================================
// Delete Tests
// =============================================================================

func TestDeleteApp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	app := testApp("myapp", "/myapp")
	require.NoError(t, s.InsertApp(ctx, app))

	require.NoError(t, s.DeleteApp(ctx, app.ID))

	_, err := s.GetApp(ctx, app.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteApp_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.DeleteApp(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_Commit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(txStore Store) error {
		return txStore.InsertApp(ctx, testApp("txapp", "/txapp"))
	})
	require.NoError(t, err)

	_, err = s.GetAppByName(ctx, "txapp")
	assert.NoError(t, err)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(txStore Store) error {
		if err := txStore.InsertApp(ctx, testApp("doomed", "/doomed")); err != nil {
			return err
		}
		// Duplicate route inside the same transaction forces a rollback.
		return txStore.InsertApp(ctx, testApp("doomed2", "/doomed"))
	})
	require.Error(t, err)

	_, err = s.GetAppByName(ctx, "doomed")
	assert.ErrorIs(t, err, ErrNotFound)
}
