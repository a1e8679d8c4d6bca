package planner

import (
	"fmt"
	"strings"
	"text/template"
)

// Prompt template names known to the registry.
const (
	PromptClassify  = "classify_destination"
	PromptPlan      = "plan_system"
	PromptSummarize = "summarize_turn"
)

var promptSources = map[string]string{
	PromptClassify: `Extract the destination (city, country, or region) from this query: '{{.Query}}'
Reply with ONLY the name (e.g., 'Paris', 'Mexico', 'Tokyo'). If no specific destination is mentioned, reply with 'None'.`,

	PromptPlan: `You are a travel assistant. The user is asking about {{if .Destination}}{{.Destination}}{{else}}a destination{{end}}.
Use the available tools to gather a weather forecast, images, and background information before answering.
Call every tool you need in a single batch. If the query needs no tools, answer directly in 2-3 sentences.`,

	PromptSummarize: `Provide a 2-3 sentence summary of the city based on the tool outputs provided in the conversation.`,
}

// Registry holds the parsed prompt templates used by the planner and
// classifier. Templates are parsed once at construction.
type Registry struct {
	templates map[string]*template.Template
}

// NewRegistry parses the built-in prompt set.
func NewRegistry() (*Registry, error) {
	r := &Registry{templates: make(map[string]*template.Template, len(promptSources))}
	for name, src := range promptSources {
		tmpl, err := template.New(name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt '%s': %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render executes the named template with the given input.
func (r *Registry) Render(name string, input interface{}) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt '%s' not found", name)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("failed to render prompt '%s': %w", name, err)
	}
	return buf.String(), nil
}
