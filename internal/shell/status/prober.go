package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	corestatus "github.com/lancereinsmith/milkcrate/internal/core/status"
)

// =============================================================================
// HTTP Prober
// =============================================================================

// ProbeTimeout bounds each individual endpoint attempt.
const ProbeTimeout = 5 * time.Second

// probePaths are the candidate health endpoints relative to an app's route,
// tried in order. The bare route is the last resort: any page answering 200
// counts as alive.
var probePaths = []string{
	"/api/health",
	"/api/status",
	"/health",
	"/status",
	"/",
}

// Prober performs HTTP health checks against apps through the shared proxy.
//
// Apps are only reachable on the proxy network, so probes target the proxy
// directly (default http://traefik:80) with a Host header matching the
// public site (default "localhost") and the app's route as the path.
type Prober struct {
	target     string // proxy base URL, no trailing slash
	hostHeader string
	client     *http.Client
}

// NewProber creates a prober. target and hostHeader fall back to the
// conventional in-cluster defaults when empty.
func NewProber(target, hostHeader string) *Prober {
	if target == "" {
		target = "http://traefik:80"
	}
	if hostHeader == "" {
		hostHeader = "localhost"
	}
	return &Prober{
		target:     strings.TrimSuffix(target, "/"),
		hostHeader: hostHeader,
		client:     &http.Client{Timeout: ProbeTimeout},
	}
}

// Probe tries the candidate endpoints under route in order and reports the
// first 200 response as healthy. Non-200 responses and transport errors move
// on to the next candidate; exhausting the list means unhealthy.
func (p *Prober) Probe(ctx context.Context, route string) *corestatus.ProbeResult {
	route = strings.TrimSuffix(route, "/")

	result := &corestatus.ProbeResult{
		EndpointsChecked: make([]string, 0, len(probePaths)),
	}

	for _, path := range probePaths {
		endpoint := route + path
		result.EndpointsChecked = append(result.EndpointsChecked, endpoint)

		code, elapsed, body, err := p.attempt(ctx, endpoint)
		if err != nil {
			result.Error = err.Error()
			continue
		}

		result.StatusCode = code
		result.ResponseTime = elapsed

		if code == http.StatusOK {
			result.Healthy = true
			result.SuccessfulEndpoint = endpoint

			// JSON bodies often carry extra health detail; keep it when
			// present, ignore anything that does not decode to an object.
			var data map[string]any
			if json.Unmarshal(body, &data) == nil {
				result.ResponseData = data
			}
			return result
		}
	}

	return result
}

func (p *Prober) attempt(ctx context.Context, endpoint string) (int, time.Duration, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target+endpoint, nil)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("build probe request: %w", err)
	}
	req.Host = p.hostHeader

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	return resp.StatusCode, time.Since(start), body, nil
}
