package status

import "time"

// StartingWindow is how long after container start a running container without
// a health check is still reported as starting.
const StartingWindow = 30 * time.Second

// EngineState is the raw container state as reported by the engine,
// independent of any HTTP probing.
type EngineState struct {
	State        string     // "created", "running", "exited", ...
	Health       string     // "healthy", "unhealthy", "starting", or "" when no healthcheck
	StartedAt    *time.Time // nil when the container never started
	ExitCode     int
	RestartCount int
	Error        string // engine-reported error string, if any
}

// FromEngine derives the first-pass composite status from raw engine state.
//
// Engine lifecycle states map 1:1. A running container with a health check
// follows the health check; without one it is "starting" for the first
// StartingWindow after start and "running" afterwards.
func FromEngine(s EngineState, now time.Time) Status {
	switch s.State {
	case "created":
		return StatusCreated
	case "paused":
		return StatusPaused
	case "restarting":
		return StatusRestarting
	case "exited":
		return StatusExited
	case "dead":
		return StatusDead
	case "removing":
		return StatusRemoving
	case "running":
		switch s.Health {
		case "healthy":
			return StatusHealthy
		case "unhealthy":
			return StatusUnhealthy
		case "starting":
			return StatusStarting
		}
		if s.StartedAt != nil && now.Sub(*s.StartedAt) < StartingWindow {
			return StatusStarting
		}
		return StatusRunning
	}
	return StatusError
}

// Probeable reports whether a first-pass status warrants an HTTP probe.
// Only running and starting containers are worth probing.
func Probeable(s Status) bool {
	return s == StatusRunning || s == StatusStarting
}

// ApplyProbe folds an HTTP probe outcome into a first-pass status.
//
// A successful probe upgrades running to ready; a failed probe downgrades
// running to not_ready. A starting status is never altered by probe outcomes.
func ApplyProbe(s Status, healthy bool) Status {
	if s != StatusRunning {
		return s
	}
	if healthy {
		return StatusReady
	}
	return StatusNotReady
}
