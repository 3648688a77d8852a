// Package status reconciles composite application status from the container
// engine and HTTP health probes routed through the shared proxy.
package status

import (
	"context"
	"errors"
	"log/slog"
	"time"

	corestatus "github.com/lancereinsmith/milkcrate/internal/core/status"
	"github.com/lancereinsmith/milkcrate/internal/shell/docker"
)

// =============================================================================
// Status Manager
// =============================================================================

// Manager computes point-in-time status snapshots. Snapshots are derived on
// every call and never cached; the store only persists the last transition
// the deployment pipeline wrote.
type Manager struct {
	docker docker.Client
	prober *Prober
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a status manager. prober may be nil to disable HTTP
// probing, in which case snapshots stop at the engine-derived status.
func NewManager(d docker.Client, prober *Prober, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		docker: d,
		prober: prober,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot computes the composite status of an application.
//
// Failures never cross this boundary as errors: an unreachable engine and a
// missing container both produce an error-status snapshot carrying the
// diagnostic, so a broken daemon degrades the status display instead of
// breaking list pages.
func (m *Manager) Snapshot(ctx context.Context, containerID, appName, route string, internalPort int) *corestatus.Snapshot {
	now := m.now()

	info, err := m.docker.InspectContainer(ctx, containerID)
	if err != nil {
		engine := corestatus.EngineState{Error: err.Error()}
		if errors.Is(err, docker.ErrContainerNotFound) {
			engine.Error = "container not found"
		}
		m.logger.Warn("container inspection failed",
			"app", appName, "container_id", containerID, "error", err)
		return corestatus.NewSnapshot(corestatus.StatusError, engine, nil, now)
	}

	engine := corestatus.EngineState{
		State:        info.State,
		Health:       info.Health,
		StartedAt:    info.StartedAt,
		ExitCode:     info.ExitCode,
		RestartCount: info.RestartCount,
		Error:        info.Error,
	}

	st := corestatus.FromEngine(engine, now)

	var probe *corestatus.ProbeResult
	if m.prober != nil && corestatus.Probeable(st) && route != "" && appName != "" {
		probe = m.prober.Probe(ctx, route)
		st = corestatus.ApplyProbe(st, probe.Healthy)
	}

	return corestatus.NewSnapshot(st, engine, probe, now)
}
