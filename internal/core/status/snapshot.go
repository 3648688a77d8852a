package status

import "time"

// =============================================================================
// Status Snapshot
// =============================================================================

// Snapshot is the composite status of an application at one point in time.
// It is recomputed on every call and never persisted.
type Snapshot struct {
	Status     Status       `json:"status"`
	Display    string       `json:"display_status"`
	BadgeClass string       `json:"badge_color"`
	Engine     EngineState  `json:"engine"`
	Probe      *ProbeResult `json:"health_check,omitempty"`
	CheckedAt  time.Time    `json:"last_checked"`
}

// NewSnapshot builds a Snapshot for a status, filling in the display table.
func NewSnapshot(s Status, engine EngineState, probe *ProbeResult, now time.Time) *Snapshot {
	return &Snapshot{
		Status:     s,
		Display:    s.Display(),
		BadgeClass: s.BadgeClass(),
		Engine:     engine,
		Probe:      probe,
		CheckedAt:  now,
	}
}

// ProbeResult records the outcome of an HTTP health probe across the ordered
// candidate endpoint list.
type ProbeResult struct {
	Healthy            bool           `json:"is_healthy"`
	EndpointsChecked   []string       `json:"endpoints_checked"`
	SuccessfulEndpoint string         `json:"successful_endpoint,omitempty"`
	ResponseTime       time.Duration  `json:"response_time,omitempty"`
	StatusCode         int            `json:"status_code,omitempty"`
	ResponseData       map[string]any `json:"response_data,omitempty"`
	Error              string         `json:"error,omitempty"`
}
