// Package adapters bridges plain Go functions into the tool interface.
package adapters

import (
	"context"
	"fmt"

	"github.com/voyago-ai/voyago"
)

// GoToolAdapter adapts a standard Go function to the voyago.Tool interface.
type GoToolAdapter struct {
	toolFunc    func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
	name        string
	description string
	parameters  map[string]interface{}
	validator   func(map[string]interface{}) error
}

// ToolOption represents an option for configuring a GoToolAdapter.
type ToolOption func(*GoToolAdapter)

// WithValidator sets a custom validator function for the tool.
func WithValidator(validator func(map[string]interface{}) error) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.validator = validator
	}
}

// WithDescription sets a detailed description for the tool.
func WithDescription(description string) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.description = description
	}
}

// WithParameters sets the JSON schema for the tool's arguments.
func WithParameters(parameters map[string]interface{}) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.parameters = parameters
	}
}

// StringParameters builds a JSON schema for a flat set of required string
// arguments, which covers every provider tool in this runtime.
func StringParameters(params map[string]string) map[string]interface{} {
	properties := make(map[string]interface{}, len(params))
	required := make([]string, 0, len(params))
	for name, description := range params {
		properties[name] = map[string]interface{}{
			"type":        "string",
			"description": description,
		}
		required = append(required, name)
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// NewGoToolAdapter creates a new adapter for a Go function.
func NewGoToolAdapter(
	name string,
	toolFunc func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error),
	options ...ToolOption) *GoToolAdapter {

	adapter := &GoToolAdapter{
		toolFunc:   toolFunc,
		name:       name,
		parameters: map[string]interface{}{"type": "object"},
		validator: func(input map[string]interface{}) error {
			// Default validator just ensures input is not nil
			if input == nil {
				return fmt.Errorf("input cannot be nil")
			}
			return nil
		},
	}

	for _, option := range options {
		option(adapter)
	}

	return adapter
}

// Execute implements the voyago.Tool interface.
func (a *GoToolAdapter) Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if a.toolFunc == nil {
		return nil, fmt.Errorf("tool function is nil")
	}

	// Validate input before execution
	if err := a.Validate(input); err != nil {
		return nil, fmt.Errorf("input validation failed for %s: %w", a.name, err)
	}

	return a.toolFunc(ctx, input)
}

// Schema implements the voyago.Tool interface.
func (a *GoToolAdapter) Schema() voyago.ToolSchema {
	return voyago.ToolSchema{
		Name:        a.name,
		Description: a.description,
		Parameters:  a.parameters,
	}
}

// Validate implements the voyago.Tool interface.
func (a *GoToolAdapter) Validate(input map[string]interface{}) error {
	if a.validator != nil {
		return a.validator(input)
	}
	return nil
}

// Name implements the voyago.Tool interface.
func (a *GoToolAdapter) Name() string {
	return a.name
}
