package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExposedTCPPorts(t *testing.T) {
	tests := []struct {
		name     string
		exposed  map[string]struct{}
		expected []int
	}{
		{
			name:     "single tcp port",
			exposed:  map[string]struct{}{"8000/tcp": {}},
			expected: []int{8000},
		},
		{
			name: "udp ports are skipped",
			exposed: map[string]struct{}{
				"8000/tcp": {},
				"53/udp":   {},
			},
			expected: []int{8000},
		},
		{
			name: "multiple tcp ports",
			exposed: map[string]struct{}{
				"3000/tcp": {},
				"8080/tcp": {},
			},
			expected: []int{3000, 8080},
		},
		{
			name:     "bare port defaults to tcp",
			exposed:  map[string]struct{}{"5000": {}},
			expected: []int{5000},
		},
		{
			name:     "no exposed ports",
			exposed:  map[string]struct{}{},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.expected, exposedTCPPorts(tt.exposed))
		})
	}
}
