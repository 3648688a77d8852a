// Package compose contains pure functions for parsing, validating, and
// rewriting Docker Compose documents.
//
// Parsing works on the yaml.v3 node tree rather than a typed model so that
// service order and the author's label notation (mapping vs list) survive the
// round trip: the rewritten document must stay recognizable as the user's
// own compose file with routing config merged in.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input errors
	ErrEmptyInput  = errors.New("compose file is empty")
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Structure errors
	ErrNotMapping        = errors.New("compose file must contain a mapping")
	ErrNoServicesSection = errors.New("compose file must contain a 'services' section")
	ErrNoServices        = errors.New("compose file must contain at least one service")
	ErrServiceNotMapping = errors.New("service must be a mapping")

	// Deployment suitability errors
	ErrNoImageOrBuild = errors.New("main service must define 'build' or 'image'")
	ErrNoPorts        = errors.New("main service must expose at least one port")

	// Lookup errors
	ErrServiceNotFound = errors.New("service not found")
)

// ParseError wraps errors with context about where parsing or validation
// failed.
type ParseError struct {
	Field   string // e.g. "services.web"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
