// Package status contains the composite application status model and the
// pure derivation rules that map raw engine state to it. No I/O happens here;
// the imperative probe lives in internal/shell/status.
package status

// =============================================================================
// Status Values
// =============================================================================

// Status is the composite application status.
type Status string

const (
	// Engine lifecycle states, mapped 1:1.
	StatusCreated    Status = "created"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusRestarting Status = "restarting"
	StatusRemoving   Status = "removing"
	StatusExited     Status = "exited"
	StatusDead       Status = "dead"

	// Derived application states.
	StatusStarting  Status = "starting"
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusReady     Status = "ready"
	StatusNotReady  Status = "not_ready"

	// Transitional states set by the orchestrator.
	StatusDeploying Status = "deploying"
	StatusUpdating  Status = "updating"
	StatusDeleting  Status = "deleting"

	// Terminal error state (engine unreachable, container missing, ...).
	StatusError Status = "error"
)

// =============================================================================
// Display Table
// =============================================================================

// displayNames maps each status to its fixed human-readable label.
var displayNames = map[Status]string{
	StatusCreated:    "Created",
	StatusRunning:    "Running",
	StatusPaused:     "Paused",
	StatusRestarting: "Restarting",
	StatusRemoving:   "Removing",
	StatusExited:     "Stopped",
	StatusDead:       "Dead",
	StatusStarting:   "Starting",
	StatusHealthy:    "Healthy",
	StatusUnhealthy:  "Unhealthy",
	StatusReady:      "Ready",
	StatusNotReady:   "Not Ready",
	StatusDeploying:  "Deploying",
	StatusUpdating:   "Updating",
	StatusDeleting:   "Deleting",
	StatusError:      "Error",
}

// badgeClasses maps each status to its UI severity class.
var badgeClasses = map[Status]string{
	StatusCreated:    "secondary",
	StatusRunning:    "success",
	StatusPaused:     "warning",
	StatusRestarting: "warning",
	StatusRemoving:   "danger",
	StatusExited:     "secondary",
	StatusDead:       "danger",
	StatusStarting:   "info",
	StatusHealthy:    "success",
	StatusUnhealthy:  "danger",
	StatusReady:      "success",
	StatusNotReady:   "warning",
	StatusDeploying:  "info",
	StatusUpdating:   "info",
	StatusDeleting:   "warning",
	StatusError:      "danger",
}

// Display returns the human-readable label for a status.
// Unknown statuses are returned as-is.
func (s Status) Display() string {
	if d, ok := displayNames[s]; ok {
		return d
	}
	return string(s)
}

// BadgeClass returns the UI severity class for a status.
// Unknown statuses default to "secondary".
func (s Status) BadgeClass() string {
	if c, ok := badgeClasses[s]; ok {
		return c
	}
	return "secondary"
}
