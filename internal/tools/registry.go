package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// DefaultTimeout bounds how long a single tool call may run before the
// registry cancels its context and returns ErrCodeTimeout.
const DefaultTimeout = 30 * time.Second

// Handler executes one tool call. ctx is canceled when the call's timeout
// elapses or the turn is interrupted. args is the already-validated,
// decoded argument object.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// registration pairs a Spec with its Handler and compiled schema.
type registration struct {
	spec    Spec
	handler Handler
	schema  *jsonschema.Schema
}

// Registry holds explicitly registered tools. There is no package-level
// singleton: every session builds its own Registry via NewRegistry and
// Register, so tool availability can vary per session configuration.
type Registry struct {
	tools   map[string]registration
	timeout time.Duration
}

// NewRegistry builds an empty registry with the given per-call timeout.
// A zero timeout falls back to DefaultTimeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{tools: make(map[string]registration), timeout: timeout}
}

// Register compiles spec's parameter schema and adds it under spec.Name,
// replacing any existing registration with the same name.
func (r *Registry) Register(spec Spec, handler Handler) error {
	schemaJSON, err := json.Marshal(spec.Parameters)
	if err != nil {
		return fmt.Errorf("tools: marshal schema for %s: %w", spec.Name, err)
	}

	compiler := jsonschema.NewCompiler()
	resourceName := spec.Name + ".schema.json"
	if err := compiler.AddResource(resourceName, strings.NewReader(string(schemaJSON))); err != nil {
		return fmt.Errorf("tools: add schema resource for %s: %w", spec.Name, err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return fmt.Errorf("tools: compile schema for %s: %w", spec.Name, err)
	}

	r.tools[spec.Name] = registration{spec: spec, handler: handler, schema: compiled}
	return nil
}

// Specs returns the Spec of every registered tool (ToWire converts one to
// the wire format). The order is not guaranteed (map iteration); callers
// that need stable ordering should sort by name.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.tools))
	for _, reg := range r.tools {
		out = append(out, reg.spec)
	}
	return out
}

// ExecutionResponse is the structured result of Execute, mirroring what the
// client ultimately sees for a tool_call_end event.
type ExecutionResponse struct {
	Success  bool            `json:"success"`
	Data     string          `json:"data,omitempty"`
	Error    *ExecutionError `json:"error,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// Execute validates rawArgs against the tool's schema, then runs its
// handler under a timeout derived from the registry's configured bound.
func (r *Registry) Execute(ctx context.Context, name string, rawArgs string) ExecutionResponse {
	start := time.Now()

	reg, ok := r.tools[name]
	if !ok {
		return ExecutionResponse{
			Error:    newError(ErrCodeNotFound, fmt.Sprintf("unknown tool %q", name)),
			Duration: time.Since(start),
		}
	}

	var decoded any
	if err := json.Unmarshal([]byte(rawArgs), &decoded); err != nil {
		return ExecutionResponse{
			Error:    newError(ErrCodeValidation, fmt.Sprintf("arguments are not valid JSON: %v", err)),
			Duration: time.Since(start),
		}
	}
	if err := reg.schema.Validate(decoded); err != nil {
		return ExecutionResponse{
			Error:    newError(ErrCodeValidation, err.Error()),
			Duration: time.Since(start),
		}
	}

	args, ok := decoded.(map[string]any)
	if !ok {
		args = map[string]any{}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := reg.handler(callCtx, args)
		done <- result{out: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return ExecutionResponse{
				Error:    newError(ErrCodeExecution, res.err.Error()),
				Duration: time.Since(start),
			}
		}
		return ExecutionResponse{Success: true, Data: res.out, Duration: time.Since(start)}
	case <-callCtx.Done():
		return ExecutionResponse{
			Error:    newError(ErrCodeTimeout, fmt.Sprintf("tool %q exceeded %s", name, r.timeout)),
			Duration: time.Since(start),
		}
	}
}
