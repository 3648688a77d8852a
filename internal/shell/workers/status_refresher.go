// Package workers contains background workers for milkcrate.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	corestatus "github.com/lancereinsmith/milkcrate/internal/core/status"
	"github.com/lancereinsmith/milkcrate/internal/shell/status"
	"github.com/lancereinsmith/milkcrate/internal/shell/store"
)

// StatusRefresherConfig configures the status refresher worker.
type StatusRefresherConfig struct {
	// Interval is the time between reconciliation cycles.
	// Default: 30 seconds.
	Interval time.Duration

	// AppTimeout is the timeout for reconciling a single application.
	// Default: 30 seconds (five sequential probe attempts at 5s each,
	// plus the engine inspection).
	AppTimeout time.Duration

	// MaxConcurrent is the maximum number of applications to reconcile
	// concurrently. Default: 5.
	MaxConcurrent int
}

// DefaultStatusRefresherConfig returns the default configuration.
func DefaultStatusRefresherConfig() StatusRefresherConfig {
	return StatusRefresherConfig{
		Interval:      30 * time.Second,
		AppTimeout:    30 * time.Second,
		MaxConcurrent: 5,
	}
}

// StatusRefresher periodically reconciles every persisted application's
// status against the engine and writes the derived status back. It also
// accepts one-shot triggers so a fresh deployment's transitional status is
// replaced without waiting for the next cycle.
type StatusRefresher struct {
	store   store.Store
	manager *status.Manager
	config  StatusRefresherConfig
	logger  *slog.Logger

	trigger chan string

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatusRefresher creates a status refresher worker.
func NewStatusRefresher(s store.Store, m *status.Manager, config StatusRefresherConfig, logger *slog.Logger) *StatusRefresher {
	if config.Interval == 0 {
		config.Interval = 30 * time.Second
	}
	if config.AppTimeout == 0 {
		config.AppTimeout = 30 * time.Second
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &StatusRefresher{
		store:   s,
		manager: m,
		config:  config,
		logger:  logger.With("component", "status_refresher"),
		trigger: make(chan string, 16),
	}
}

// Start begins the refresher background goroutine.
func (r *StatusRefresher) Start() {
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(1)
	go r.run()

	r.logger.Info("status refresher started",
		"interval", r.config.Interval,
		"max_concurrent", r.config.MaxConcurrent,
	)
}

// Stop gracefully stops the refresher. It waits for any in-progress
// reconciliations to complete.
func (r *StatusRefresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("status refresher stopped")
}

// TriggerApp queues a one-shot reconciliation for a single application.
// Never blocks; if the queue is full the periodic cycle covers it.
func (r *StatusRefresher) TriggerApp(appID string) {
	select {
	case r.trigger <- appID:
	default:
		r.logger.Debug("refresh queue full, app deferred to next cycle", "app_id", appID)
	}
}

// run is the main loop: periodic full cycles plus on-demand single refreshes.
func (r *StatusRefresher) run() {
	defer r.wg.Done()

	// Run immediately on start
	r.runCycle()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case appID := <-r.trigger:
			r.refreshOne(appID)
		case <-ticker.C:
			r.runCycle()
		}
	}
}

// runCycle reconciles the status of every persisted application.
func (r *StatusRefresher) runCycle() {
	ctx, cancel := context.WithTimeout(r.ctx, r.config.Interval)
	defer cancel()

	apps, err := r.store.ListApps(ctx)
	if err != nil {
		r.logger.Error("failed to list applications", "error", err)
		return
	}
	if len(apps) == 0 {
		return
	}

	r.logger.Debug("starting reconciliation cycle", "app_count", len(apps))

	// Semaphore bounds concurrent engine inspections and probes.
	sem := make(chan struct{}, r.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range apps {
		app := apps[i]

		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}

			r.refreshApp(ctx, app.ID, app.ContainerID, app.Name, app.Route, app.InternalPort, app.Status)
		}()
	}

	wg.Wait()
	r.logger.Debug("completed reconciliation cycle", "app_count", len(apps))
}

// refreshOne reconciles a single application by id, outside a full cycle.
func (r *StatusRefresher) refreshOne(appID string) {
	ctx, cancel := context.WithTimeout(r.ctx, r.config.AppTimeout)
	defer cancel()

	app, err := r.store.GetApp(ctx, appID)
	if err != nil {
		r.logger.Warn("triggered refresh for unknown app", "app_id", appID, "error", err)
		return
	}
	r.refreshApp(ctx, app.ID, app.ContainerID, app.Name, app.Route, app.InternalPort, app.Status)
}

// refreshApp derives a fresh status snapshot and persists it if it changed.
func (r *StatusRefresher) refreshApp(ctx context.Context, appID, containerID, name, route string, port int, current string) {
	appCtx, cancel := context.WithTimeout(ctx, r.config.AppTimeout)
	defer cancel()

	snap := r.manager.Snapshot(appCtx, containerID, name, route, port)
	if string(snap.Status) == current {
		return
	}

	if err := r.store.UpdateAppStatus(ctx, appID, snap.Status); err != nil {
		r.logger.Error("failed to persist status", "app_id", appID, "error", err)
		return
	}

	level := slog.LevelInfo
	if snap.Status == corestatus.StatusError {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, "application status changed",
		"app", name, "from", current, "to", snap.Status)
}
