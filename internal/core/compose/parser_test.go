package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_Valid(t *testing.T) {
	yaml := `
services:
  web:
    image: nginx:latest
    ports:
      - "8080:80"
  db:
    image: postgres:16
`
	p, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, []string{"web", "db"}, p.ServiceNames())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		expectedErr error
	}{
		{"empty input", "", ErrEmptyInput},
		{"whitespace only", "   \n  ", ErrEmptyInput},
		{"invalid yaml", "services: [unterminated", ErrInvalidYAML},
		{"not a mapping", "- one\n- two", ErrNotMapping},
		{"no services section", "version: '3'\n", ErrNoServicesSection},
		{"empty services", "services: {}\n", ErrNoServices},
		{"services not a mapping", "services:\n  - web\n", ErrNoServices},
		{"service not a mapping", "services:\n  web: just-a-string\n", ErrServiceNotMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestParse_PreservesDocumentOrder(t *testing.T) {
	yaml := `
services:
  zeta:
    image: a
  alpha:
    image: b
  mid:
    image: c
`
	p, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, p.ServiceNames())
}

// =============================================================================
// MainService Tests
// =============================================================================

func TestMainService_FirstByDefault(t *testing.T) {
	yaml := `
services:
  web:
    image: nginx
  worker:
    image: worker
`
	p, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "web", p.MainService().Name)
}

func TestMainService_MappingLabel(t *testing.T) {
	yaml := `
services:
  db:
    image: postgres
  app:
    image: myapp
    labels:
      milkcrate.main_service: "true"
`
	p, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "app", p.MainService().Name)
}

func TestMainService_ListLabel(t *testing.T) {
	yaml := `
services:
  db:
    image: postgres
  app:
    image: myapp
    labels:
      - "milkcrate.main_service=true"
`
	p, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "app", p.MainService().Name)
}

func TestMainService_LabelFalseIgnored(t *testing.T) {
	yaml := `
services:
  db:
    image: postgres
    labels:
      milkcrate.main_service: "false"
  app:
    image: myapp
`
	p, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.Equal(t, "db", p.MainService().Name)
}

// =============================================================================
// ServicePort Tests
// =============================================================================

func TestServicePort(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected int
	}{
		{
			name: "host colon container",
			yaml: `
services:
  web:
    image: nginx
    ports:
      - "8080:80"
`,
			expected: 80,
		},
		{
			name: "bare port",
			yaml: `
services:
  web:
    image: nginx
    ports:
      - "3000"
`,
			expected: 3000,
		},
		{
			name: "unquoted numeric port",
			yaml: `
services:
  web:
    image: nginx
    ports:
      - 5000
`,
			expected: 5000,
		},
		{
			name: "long syntax target",
			yaml: `
services:
  web:
    image: nginx
    ports:
      - target: 9090
        published: 9091
`,
			expected: 9090,
		},
		{
			name: "protocol suffix stripped",
			yaml: `
services:
  web:
    image: nginx
    ports:
      - "8080:80/tcp"
`,
			expected: 80,
		},
		{
			name: "expose fallback",
			yaml: `
services:
  web:
    image: nginx
    expose:
      - "8500"
`,
			expected: 8500,
		},
		{
			name: "no ports at all",
			yaml: `
services:
  web:
    image: nginx
`,
			expected: 8000,
		},
		{
			name: "malformed entry skipped",
			yaml: `
services:
  web:
    image: nginx
    ports:
      - "abc:def"
      - "8080:80"
`,
			expected: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ServicePort(p.MainService().Node))
		})
	}
}

// =============================================================================
// ValidateForDeployment Tests
// =============================================================================

func TestValidateForDeployment(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		expectedErr error
	}{
		{
			name: "image with ports",
			yaml: `
services:
  web:
    image: nginx
    ports: ["8080:80"]
`,
			expectedErr: nil,
		},
		{
			name: "build with expose",
			yaml: `
services:
  web:
    build: .
    expose: ["8000"]
`,
			expectedErr: nil,
		},
		{
			name: "no image or build",
			yaml: `
services:
  web:
    ports: ["8080:80"]
`,
			expectedErr: ErrNoImageOrBuild,
		},
		{
			name: "no ports",
			yaml: `
services:
  web:
    image: nginx
`,
			expectedErr: ErrNoPorts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)

			err = ValidateForDeployment(p)
			if tt.expectedErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expectedErr)
			}
		})
	}
}

func TestValidateForDeployment_ChecksMainServiceOnly(t *testing.T) {
	// The sidecar has no ports; only the labelled main service matters.
	yaml := `
services:
  sidecar:
    image: helper
  app:
    image: myapp
    ports: ["8080:80"]
    labels:
      milkcrate.main_service: "true"
`
	p, err := Parse([]byte(yaml))
	require.NoError(t, err)
	assert.NoError(t, ValidateForDeployment(p))
}
