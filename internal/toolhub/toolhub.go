// Package toolhub implements the Tool Hub service: a name -> {schema,
// handler} registry looked up by name on exec, with two built-in tools
// (echo, current_time) standing in for the external adapters so the
// gateway's tool-call loop can be exercised end to end.
package toolhub

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openrelay/gatewaysuite/pkg/models"
)

// Handler executes one tool call given its parsed arguments.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

type registration struct {
	def     models.ToolDef
	handler Handler
}

// Registry is the Tool Hub's in-memory tool table.
type Registry struct {
	tools map[string]registration
}

// NewRegistry returns a Registry pre-populated with the two built-in tools.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[string]registration)}
	r.register(echoTool())
	r.register(currentTimeTool())
	return r
}

func (r *Registry) register(def models.ToolDef, handler Handler) {
	r.tools[def.Function.Name] = registration{def: def, handler: handler}
}

// List returns every registered tool's OpenAI-style function schema, sorted
// by name for a deterministic GET /tools response.
func (r *Registry) List() []models.ToolDef {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.ToolDef, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name].def)
	}
	return out
}

// Exec runs the named tool against arguments, returning a ToolResult whether
// or not the tool itself failed: failures are reported in the result, not
// as a Go error, matching the flat POST /tools/exec {result|error,success}
// contract.
func (r *Registry) Exec(ctx context.Context, name string, arguments map[string]interface{}) (models.ToolResult, error) {
	reg, ok := r.tools[name]
	if !ok {
		return models.ToolResult{Name: name, Success: false, Error: fmt.Sprintf("unknown tool %q", name)}, nil
	}

	result, err := reg.handler(ctx, arguments)
	if err != nil {
		return models.ToolResult{Name: name, Success: false, Error: err.Error()}, nil
	}
	return models.ToolResult{Name: name, Success: true, Result: result}, nil
}

func echoTool() (models.ToolDef, Handler) {
	def := models.ToolDef{
		Type: "function",
		Function: models.ToolFunction{
			Name:        "echo",
			Description: "Echoes back the given text, unmodified.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{"type": "string"},
				},
				"required": []string{"text"},
			},
		},
	}
	handler := func(_ context.Context, args map[string]interface{}) (interface{}, error) {
		text, _ := args["text"].(string)
		return map[string]interface{}{"text": text}, nil
	}
	return def, handler
}

func currentTimeTool() (models.ToolDef, Handler) {
	def := models.ToolDef{
		Type: "function",
		Function: models.ToolFunction{
			Name:        "current_time",
			Description: "Returns the current UTC time in RFC3339 format.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
	handler := func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"time": time.Now().UTC().Format(time.RFC3339)}, nil
	}
	return def, handler
}
