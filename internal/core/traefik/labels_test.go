package traefik

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// GenerateLabels Tests
// =============================================================================

func TestGenerateLabels_Basic(t *testing.T) {
	params := LabelParams{
		AppName:  "myapp",
		Route:    "/myapp",
		Port:     8000,
		Priority: 116,
	}

	labels := GenerateLabels(params)

	assert.Equal(t, "true", labels["traefik.enable"])
	assert.Equal(t, "PathPrefix(`/myapp`)", labels["traefik.http.routers.myapp.rule"])
	assert.Equal(t, "web", labels["traefik.http.routers.myapp.entrypoints"])
	assert.Equal(t, "116", labels["traefik.http.routers.myapp.priority"])
	assert.Equal(t, "8000", labels["traefik.http.services.myapp.loadbalancer.server.port"])
}

func TestGenerateLabels_StripPrefixMiddleware(t *testing.T) {
	labels := GenerateLabels(LabelParams{AppName: "myapp", Route: "/myapp", Port: 80, Priority: 116})

	assert.Equal(t, "/myapp", labels["traefik.http.middlewares.myapp_stripprefix.stripprefix.prefixes"])
	assert.Equal(t, "myapp_stripprefix", labels["traefik.http.routers.myapp.middlewares"])
}

func TestGenerateLabels_HyphenSanitization(t *testing.T) {
	labels := GenerateLabels(LabelParams{AppName: "my-cool-app", Route: "/cool", Port: 80, Priority: 115})

	assert.Equal(t, "PathPrefix(`/cool`)", labels["traefik.http.routers.my_cool_app.rule"])
	assert.Equal(t, "my_cool_app_stripprefix", labels["traefik.http.routers.my_cool_app.middlewares"])
}

func TestGenerateLabels_HTTPDoesNotCarryTLS(t *testing.T) {
	labels := GenerateLabels(LabelParams{AppName: "app", Route: "/app", Port: 80, Priority: 114})

	assert.Equal(t, "web", labels["traefik.http.routers.app.entrypoints"])
	_, hasResolver := labels["traefik.http.routers.app.tls.certresolver"]
	assert.False(t, hasResolver)
	assert.Len(t, labels, 7)
}

func TestGenerateLabels_HTTPS(t *testing.T) {
	labels := GenerateLabels(LabelParams{AppName: "app", Route: "/app", Port: 443, Priority: 114, EnableHTTPS: true})

	assert.Equal(t, "websecure", labels["traefik.http.routers.app.entrypoints"])
	assert.Equal(t, "letsencrypt", labels["traefik.http.routers.app.tls.certresolver"])
	assert.Len(t, labels, 8)
}

func TestGenerateLabels_TableDriven(t *testing.T) {
	tests := []struct {
		name           string
		params         LabelParams
		expectedLabels map[string]string
	}{
		{
			name:   "basic http app",
			params: LabelParams{AppName: "web", Route: "/web", Port: 3000, Priority: 114},
			expectedLabels: map[string]string{
				"traefik.enable":                                     "true",
				"traefik.http.routers.web.rule":                      "PathPrefix(`/web`)",
				"traefik.http.routers.web.entrypoints":               "web",
				"traefik.http.routers.web.priority":                  "114",
				"traefik.http.services.web.loadbalancer.server.port": "3000",
			},
		},
		{
			name:   "https app with hyphens",
			params: LabelParams{AppName: "api-v2", Route: "/api/v2", Port: 8080, Priority: 127, EnableHTTPS: true},
			expectedLabels: map[string]string{
				"traefik.http.routers.api_v2.rule":             "PathPrefix(`/api/v2`)",
				"traefik.http.routers.api_v2.entrypoints":      "websecure",
				"traefik.http.routers.api_v2.tls.certresolver": "letsencrypt",
				"traefik.http.routers.api_v2.middlewares":      "api_v2_stripprefix",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := GenerateLabels(tt.params)

			for key, expected := range tt.expectedLabels {
				assert.Equal(t, expected, labels[key], "label %s", key)
			}
		})
	}
}
