// Package tools implements the browser-domain tool registry: parameter
// validation against each tool's JSON Schema, per-call timeout enforcement,
// and structured success/error results returned to the turn manager.
package tools

import "github.com/codex-web-agent/agent/internal/protocol"

// Spec describes one callable tool: its name, a model-facing description,
// and a JSON Schema for its parameters.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToWire converts Spec into the protocol.ToolSpec shape sent to the model.
func (s Spec) ToWire() protocol.ToolSpec {
	return protocol.ToolSpec{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  s.Parameters,
	}
}

// objectSchema is a small helper for building the common
// {"type":"object","properties":{...},"required":[...]} shape tool specs
// use, without hand-building nested maps at every call site.
func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	schema["additionalProperties"] = false
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func enumProp(description string, values ...string) map[string]any {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return map[string]any{"type": "string", "description": description, "enum": vals}
}
