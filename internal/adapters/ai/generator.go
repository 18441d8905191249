// Package ai talks to the hosted text-generation service.
package ai

import (
	"context"
	"encoding/json"
	"errors"
)

// Errors returned by generators.
var (
	ErrDisabled      = errors.New("text generation is not configured")
	ErrEmptyResponse = errors.New("text generation returned no content")
)

// Request is one structured generation call.
// Schema is an OpenAPI-style JSON schema the response must follow.
type Request struct {
	Prompt string
	Schema json.RawMessage
}

// Generator returns the raw JSON document produced for a request.
// Callers validate the shape; generators only guarantee well-formed JSON.
type Generator interface {
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
}

// Disabled is the Generator used when no API key is configured.
type Disabled struct{}

// Generate always fails with ErrDisabled.
func (Disabled) Generate(context.Context, Request) (json.RawMessage, error) {
	return nil, ErrDisabled
}
