package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lancereinsmith/milkcrate/internal/core/domain"
	"github.com/lancereinsmith/milkcrate/internal/core/status"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// App Row Mapping
// =============================================================================

// appRow represents an application row in the database.
type appRow struct {
	ID           string  `db:"id"`
	Name         string  `db:"name"`
	ContainerID  string  `db:"container_id"`
	ImageTag     string  `db:"image_tag"`
	Route        string  `db:"route"`
	InternalPort int     `db:"internal_port"`
	Status       string  `db:"status"`
	Kind         string  `db:"kind"`
	ComposeFile  string  `db:"compose_file"`
	MainService  string  `db:"main_service"`
	VolumeMounts *string `db:"volume_mounts"`
	IsPublic     bool    `db:"is_public"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
}

func rowToApp(row *appRow) (*domain.App, error) {
	app := &domain.App{
		ID:           row.ID,
		Name:         row.Name,
		ContainerID:  row.ContainerID,
		ImageTag:     row.ImageTag,
		Route:        row.Route,
		InternalPort: row.InternalPort,
		Status:       row.Status,
		Kind:         domain.DeploymentKind(row.Kind),
		ComposeFile:  row.ComposeFile,
		MainService:  row.MainService,
		Public:       row.IsPublic,
	}

	if row.VolumeMounts != nil && *row.VolumeMounts != "" {
		if err := json.Unmarshal([]byte(*row.VolumeMounts), &app.VolumeMounts); err != nil {
			return nil, NewStoreError("rowToApp", "app", row.ID, "failed to deserialize volume mounts", ErrInvalidData)
		}
	}

	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToApp", "app", row.ID, "invalid created_at timestamp", ErrInvalidData)
	}
	updatedAt, err := time.Parse(time.RFC3339, row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToApp", "app", row.ID, "invalid updated_at timestamp", ErrInvalidData)
	}
	app.CreatedAt = createdAt
	app.UpdatedAt = updatedAt

	return app, nil
}

func appToNamedArgs(op string, app *domain.App) (map[string]any, error) {
	var mountsJSON *string
	if len(app.VolumeMounts) > 0 {
		data, err := json.Marshal(app.VolumeMounts)
		if err != nil {
			return nil, NewStoreError(op, "app", app.ID, "failed to serialize volume mounts", ErrInvalidData)
		}
		s := string(data)
		mountsJSON = &s
	}

	return map[string]any{
		"id":            app.ID,
		"name":          app.Name,
		"container_id":  app.ContainerID,
		"image_tag":     app.ImageTag,
		"route":         app.Route,
		"internal_port": app.InternalPort,
		"status":        app.Status,
		"kind":          string(app.Kind),
		"compose_file":  app.ComposeFile,
		"main_service":  app.MainService,
		"volume_mounts": mountsJSON,
		"is_public":     app.Public,
		"created_at":    app.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    app.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// =============================================================================
// Store Implementation (connection-scoped)
// =============================================================================

func (s *SQLiteStore) GetApp(ctx context.Context, id string) (*domain.App, error) {
	return getApp(ctx, s.db, id)
}

func (s *SQLiteStore) GetAppByName(ctx context.Context, name string) (*domain.App, error) {
	return getAppBy(ctx, s.db, "GetAppByName", "name", name)
}

func (s *SQLiteStore) GetAppByContainerID(ctx context.Context, containerID string) (*domain.App, error) {
	return getAppBy(ctx, s.db, "GetAppByContainerID", "container_id", containerID)
}

func (s *SQLiteStore) GetAppByRoute(ctx context.Context, route string) (*domain.App, error) {
	return getAppBy(ctx, s.db, "GetAppByRoute", "route", route)
}

func (s *SQLiteStore) ListApps(ctx context.Context) ([]domain.App, error) {
	return listApps(ctx, s.db, false)
}

func (s *SQLiteStore) ListPublicApps(ctx context.Context) ([]domain.App, error) {
	return listApps(ctx, s.db, true)
}

func (s *SQLiteStore) InsertApp(ctx context.Context, app *domain.App) error {
	return insertApp(ctx, s.db, app)
}

func (s *SQLiteStore) UpdateApp(ctx context.Context, app *domain.App) error {
	return updateApp(ctx, s.db, app)
}

func (s *SQLiteStore) UpdateAppContainerInfo(ctx context.Context, id, containerID, imageTag string) error {
	return updateAppContainerInfo(ctx, s.db, id, containerID, imageTag)
}

func (s *SQLiteStore) UpdateAppStatus(ctx context.Context, id string, st status.Status) error {
	return updateAppStatus(ctx, s.db, id, st)
}

func (s *SQLiteStore) SetAppPublic(ctx context.Context, id string, public bool) error {
	return setAppPublic(ctx, s.db, id, public)
}

func (s *SQLiteStore) DeleteApp(ctx context.Context, id string) error {
	return deleteApp(ctx, s.db, id)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) GetApp(ctx context.Context, id string) (*domain.App, error) {
	return getApp(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetAppByName(ctx context.Context, name string) (*domain.App, error) {
	return getAppBy(ctx, s.tx, "GetAppByName", "name", name)
}

func (s *txSQLiteStore) GetAppByContainerID(ctx context.Context, containerID string) (*domain.App, error) {
	return getAppBy(ctx, s.tx, "GetAppByContainerID", "container_id", containerID)
}

func (s *txSQLiteStore) GetAppByRoute(ctx context.Context, route string) (*domain.App, error) {
	return getAppBy(ctx, s.tx, "GetAppByRoute", "route", route)
}

func (s *txSQLiteStore) ListApps(ctx context.Context) ([]domain.App, error) {
	return listApps(ctx, s.tx, false)
}

func (s *txSQLiteStore) ListPublicApps(ctx context.Context) ([]domain.App, error) {
	return listApps(ctx, s.tx, true)
}

func (s *txSQLiteStore) InsertApp(ctx context.Context, app *domain.App) error {
	return insertApp(ctx, s.tx, app)
}

func (s *txSQLiteStore) UpdateApp(ctx context.Context, app *domain.App) error {
	return updateApp(ctx, s.tx, app)
}

func (s *txSQLiteStore) UpdateAppContainerInfo(ctx context.Context, id, containerID, imageTag string) error {
	return updateAppContainerInfo(ctx, s.tx, id, containerID, imageTag)
}

func (s *txSQLiteStore) UpdateAppStatus(ctx context.Context, id string, st status.Status) error {
	return updateAppStatus(ctx, s.tx, id, st)
}

func (s *txSQLiteStore) SetAppPublic(ctx context.Context, id string, public bool) error {
	return setAppPublic(ctx, s.tx, id, public)
}

func (s *txSQLiteStore) DeleteApp(ctx context.Context, id string) error {
	return deleteApp(ctx, s.tx, id)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function.
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store.
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func getApp(ctx context.Context, exec executor, id string) (*domain.App, error) {
	var row appRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM apps WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetApp", "app", id, "application not found", ErrNotFound)
		}
		return nil, NewStoreError("GetApp", "app", id, err.Error(), err)
	}
	return rowToApp(&row)
}

func getAppBy(ctx context.Context, exec executor, op, column, value string) (*domain.App, error) {
	var row appRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM apps WHERE `+column+` = ?`, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError(op, "app", value, "application not found", ErrNotFound)
		}
		return nil, NewStoreError(op, "app", value, err.Error(), err)
	}
	return rowToApp(&row)
}

func listApps(ctx context.Context, exec executor, publicOnly bool) ([]domain.App, error) {
	query := `SELECT * FROM apps ORDER BY created_at DESC`
	if publicOnly {
		query = `SELECT * FROM apps WHERE is_public = 1 ORDER BY created_at DESC`
	}

	var rows []appRow
	if err := exec.SelectContext(ctx, &rows, query); err != nil {
		return nil, NewStoreError("ListApps", "app", "", err.Error(), err)
	}

	apps := make([]domain.App, 0, len(rows))
	for i := range rows {
		app, err := rowToApp(&rows[i])
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	return apps, nil
}

func insertApp(ctx context.Context, exec executor, app *domain.App) error {
	args, err := appToNamedArgs("InsertApp", app)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO apps (
			id, name, container_id, image_tag, route, internal_port,
			status, kind, compose_file, main_service, volume_mounts,
			is_public, created_at, updated_at
		) VALUES (
			:id, :name, :container_id, :image_tag, :route, :internal_port,
			:status, :kind, :compose_file, :main_service, :volume_mounts,
			:is_public, :created_at, :updated_at
		)`

	if _, err := exec.NamedExecContext(ctx, query, args); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: apps.name") {
			return NewStoreError("InsertApp", "app", app.ID, "application with this name already exists", ErrDuplicateName)
		}
		if strings.Contains(err.Error(), "UNIQUE constraint failed: apps.route") {
			return NewStoreError("InsertApp", "app", app.ID, "application with this route already exists", ErrDuplicateRoute)
		}
		return NewStoreError("InsertApp", "app", app.ID, err.Error(), err)
	}
	return nil
}

func updateApp(ctx context.Context, exec executor, app *domain.App) error {
	args, err := appToNamedArgs("UpdateApp", app)
	if err != nil {
		return err
	}

	query := `
		UPDATE apps SET
			name = :name, container_id = :container_id, image_tag = :image_tag,
			route = :route, internal_port = :internal_port, status = :status,
			kind = :kind, compose_file = :compose_file, main_service = :main_service,
			volume_mounts = :volume_mounts, is_public = :is_public,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := exec.NamedExecContext(ctx, query, args)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: apps.route") {
			return NewStoreError("UpdateApp", "app", app.ID, "application with this route already exists", ErrDuplicateRoute)
		}
		return NewStoreError("UpdateApp", "app", app.ID, err.Error(), err)
	}
	return requireRowAffected(result, "UpdateApp", app.ID)
}

func updateAppContainerInfo(ctx context.Context, exec executor, id, containerID, imageTag string) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE apps SET container_id = ?, image_tag = ?, updated_at = ? WHERE id = ?`,
		containerID, imageTag, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("UpdateAppContainerInfo", "app", id, err.Error(), err)
	}
	return requireRowAffected(result, "UpdateAppContainerInfo", id)
}

func updateAppStatus(ctx context.Context, exec executor, id string, st status.Status) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE apps SET status = ?, updated_at = ? WHERE id = ?`,
		string(st), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("UpdateAppStatus", "app", id, err.Error(), err)
	}
	return requireRowAffected(result, "UpdateAppStatus", id)
}

func setAppPublic(ctx context.Context, exec executor, id string, public bool) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE apps SET is_public = ?, updated_at = ? WHERE id = ?`,
		public, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return NewStoreError("SetAppPublic", "app", id, err.Error(), err)
	}
	return requireRowAffected(result, "SetAppPublic", id)
}

func deleteApp(ctx context.Context, exec executor, id string) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM apps WHERE id = ?`, id)
	if err != nil {
		return NewStoreError("DeleteApp", "app", id, err.Error(), err)
	}
	return requireRowAffected(result, "DeleteApp", id)
}

func requireRowAffected(result sql.Result, op, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return NewStoreError(op, "app", id, err.Error(), err)
	}
	if n == 0 {
		return NewStoreError(op, "app", id, "application not found", ErrNotFound)
	}
	return nil
}
