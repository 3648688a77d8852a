package status

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corestatus "github.com/lancereinsmith/milkcrate/internal/core/status"
	"github.com/lancereinsmith/milkcrate/internal/shell/docker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func managerWithClock(d docker.Client, p *Prober, now time.Time) *Manager {
	m := NewManager(d, p, testLogger())
	m.now = func() time.Time { return now }
	return m
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func TestSnapshot_ContainerNotFound(t *testing.T) {
	fake := &docker.FakeClient{
		InspectContainerFn: func(ctx context.Context, id string) (*docker.ContainerInfo, error) {
			return nil, docker.NewDockerError("InspectContainer", "container", id, "container not found", docker.ErrContainerNotFound)
		},
	}
	m := NewManager(fake, nil, testLogger())

	snap := m.Snapshot(context.Background(), "gone", "myapp", "/myapp", 8000)

	assert.Equal(t, corestatus.StatusError, snap.Status)
	assert.Equal(t, "Error", snap.Display)
	assert.Equal(t, "danger", snap.BadgeClass)
	assert.Equal(t, "container not found", snap.Engine.Error)
}

func TestSnapshot_EngineUnreachable(t *testing.T) {
	fake := &docker.FakeClient{
		InspectContainerFn: func(ctx context.Context, id string) (*docker.ContainerInfo, error) {
			return nil, docker.NewDockerError("Ping", "", "", "daemon unreachable", docker.ErrConnectionFailed)
		},
	}
	m := NewManager(fake, nil, testLogger())

	snap := m.Snapshot(context.Background(), "abc", "myapp", "/myapp", 8000)

	assert.Equal(t, corestatus.StatusError, snap.Status)
	assert.Contains(t, snap.Engine.Error, "daemon unreachable")
}

func TestSnapshot_ExitedContainerNotProbed(t *testing.T) {
	probed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed = true
	}))
	defer srv.Close()

	fake := &docker.FakeClient{
		InspectContainerFn: func(ctx context.Context, id string) (*docker.ContainerInfo, error) {
			return &docker.ContainerInfo{ID: id, State: "exited", ExitCode: 1}, nil
		},
	}
	m := NewManager(fake, NewProber(srv.URL, "localhost"), testLogger())

	snap := m.Snapshot(context.Background(), "abc", "myapp", "/myapp", 8000)

	assert.Equal(t, corestatus.StatusExited, snap.Status)
	assert.Equal(t, "Stopped", snap.Display)
	assert.Nil(t, snap.Probe)
	assert.False(t, probed)
}

func TestSnapshot_RunningAndProbeHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/myapp/api/health" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	started := time.Now().Add(-5 * time.Minute)
	fake := &docker.FakeClient{
		InspectContainerFn: func(ctx context.Context, id string) (*docker.ContainerInfo, error) {
			return &docker.ContainerInfo{ID: id, State: "running", StartedAt: &started}, nil
		},
	}
	m := NewManager(fake, NewProber(srv.URL, "localhost"), testLogger())

	snap := m.Snapshot(context.Background(), "abc", "myapp", "/myapp", 8000)

	assert.Equal(t, corestatus.StatusReady, snap.Status)
	require.NotNil(t, snap.Probe)
	assert.True(t, snap.Probe.Healthy)
	assert.Equal(t, "/myapp/api/health", snap.Probe.SuccessfulEndpoint)
	assert.Equal(t, "ok", snap.Probe.ResponseData["status"])
}

func TestSnapshot_RunningAndProbeUnhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	started := time.Now().Add(-5 * time.Minute)
	fake := &docker.FakeClient{
		InspectContainerFn: func(ctx context.Context, id string) (*docker.ContainerInfo, error) {
			return &docker.ContainerInfo{ID: id, State: "running", StartedAt: &started}, nil
		},
	}
	m := NewManager(fake, NewProber(srv.URL, "localhost"), testLogger())

	snap := m.Snapshot(context.Background(), "abc", "myapp", "/myapp", 8000)

	assert.Equal(t, corestatus.StatusNotReady, snap.Status)
	require.NotNil(t, snap.Probe)
	assert.False(t, snap.Probe.Healthy)
	assert.Len(t, snap.Probe.EndpointsChecked, 5)
}

func TestSnapshot_StartingNotOverriddenByProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	now := time.Now()
	started := now.Add(-10 * time.Second)
	fake := &docker.FakeClient{
		InspectContainerFn: func(ctx context.Context, id string) (*docker.ContainerInfo, error) {
			return &docker.ContainerInfo{ID: id, State: "running", StartedAt: &started}, nil
		},
	}
	m := managerWithClock(fake, NewProber(srv.URL, "localhost"), now)

	snap := m.Snapshot(context.Background(), "abc", "myapp", "/myapp", 8000)

	// Within the starting window the probe still runs but never upgrades.
	assert.Equal(t, corestatus.StatusStarting, snap.Status)
	require.NotNil(t, snap.Probe)
	assert.True(t, snap.Probe.Healthy)
}

func TestSnapshot_HealthcheckedContainerSkipsProbeUpgrade(t *testing.T) {
	started := time.Now().Add(-5 * time.Minute)
	fake := &docker.FakeClient{
		InspectContainerFn: func(ctx context.Context, id string) (*docker.ContainerInfo, error) {
			return &docker.ContainerInfo{ID: id, State: "running", Health: "healthy", StartedAt: &started}, nil
		},
	}
	m := NewManager(fake, NewProber("http://127.0.0.1:1", "localhost"), testLogger())

	snap := m.Snapshot(context.Background(), "abc", "myapp", "/myapp", 8000)

	// Healthy from the engine healthcheck; not probeable, so no probe ran.
	assert.Equal(t, corestatus.StatusHealthy, snap.Status)
	assert.Nil(t, snap.Probe)
}

func TestSnapshot_NoRouteSkipsProbe(t *testing.T) {
	started := time.Now().Add(-5 * time.Minute)
	fake := &docker.FakeClient{
		InspectContainerFn: func(ctx context.Context, id string) (*docker.ContainerInfo, error) {
			return &docker.ContainerInfo{ID: id, State: "running", StartedAt: &started}, nil
		},
	}
	m := NewManager(fake, NewProber("http://127.0.0.1:1", "localhost"), testLogger())

	snap := m.Snapshot(context.Background(), "abc", "myapp", "", 8000)

	assert.Equal(t, corestatus.StatusRunning, snap.Status)
	assert.Nil(t, snap.Probe)
}

// =============================================================================
// Prober Tests
// =============================================================================

func TestProber_EndpointOrder(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, "localhost")
	result := p.Probe(context.Background(), "/app")

	assert.False(t, result.Healthy)
	assert.Equal(t, []string{
		"/app/api/health",
		"/app/api/status",
		"/app/health",
		"/app/status",
		"/app/",
	}, paths)
}

func TestProber_StopsAtFirstSuccess(t *testing.T) {
	var count int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		if r.URL.Path == "/app/api/status" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, "localhost")
	result := p.Probe(context.Background(), "/app")

	assert.True(t, result.Healthy)
	assert.Equal(t, "/app/api/status", result.SuccessfulEndpoint)
	assert.Equal(t, 2, count)
}

func TestProber_SetsHostHeader(t *testing.T) {
	var host string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host = r.Host
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber(srv.URL, "localhost")
	p.Probe(context.Background(), "/app")

	assert.Equal(t, "localhost", host)
}

func TestProber_TransportErrorRecorded(t *testing.T) {
	// Nothing listens here; every attempt fails at the transport level.
	p := NewProber("http://127.0.0.1:1", "localhost")
	result := p.Probe(context.Background(), "/app")

	assert.False(t, result.Healthy)
	assert.NotEmpty(t, result.Error)
	assert.Len(t, result.EndpointsChecked, 5)
}

func TestProber_Defaults(t *testing.T) {
	p := NewProber("", "")
	assert.Equal(t, "http://traefik:80", p.target)
	assert.Equal(t, "localhost", p.hostHeader)
}
