// Package tools holds the catalog tools the assistant model may call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/skinsense/ai/metrics"
)

// Tool is one callable function exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() *JSONSchema
	// Run executes the tool with the raw JSON arguments from the model and
	// returns a JSON-serializable result.
	Run(ctx context.Context, input string) (any, error)
}

// Definition is the provider-neutral declaration of a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  *JSONSchema
}

// Registry is an immutable set of tools built once at startup.
type Registry struct {
	tools   map[string]Tool
	order   []string
	metrics *metrics.Exporter
}

// NewRegistry builds a registry. Duplicate names are rejected.
func NewRegistry(m *metrics.Exporter, tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]Tool, len(tools)),
		metrics: m,
	}
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			return nil, fmt.Errorf("tool already registered: %s", t.Name())
		}
		r.tools[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r, nil
}

// Definitions returns every tool declaration in registration order.
func (r *Registry) Definitions() []Definition {
	if r == nil {
		return nil
	}
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, Definition{Name: name, Description: t.Description(), Parameters: t.Parameters()})
	}
	return defs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Execute runs a tool and always returns a JSON object. Unknown tools and
// tool failures are reported to the model as {"error": "..."} so the turn
// can continue.
func (r *Registry) Execute(ctx context.Context, name, input string) json.RawMessage {
	start := time.Now()

	t, ok := r.lookup(name)
	if !ok {
		r.metrics.RecordToolCall(name, time.Since(start), false)
		return errorResult(fmt.Errorf("unknown tool: %s", name))
	}

	if input == "" {
		input = "{}"
	}
	result, err := t.Run(ctx, input)
	r.metrics.RecordToolCall(name, time.Since(start), err == nil)
	if err != nil {
		slog.Warn("tool.executed", "tool", name, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return errorResult(err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorResult(fmt.Errorf("encode %s result: %w", name, err))
	}
	slog.Debug("tool.executed", "tool", name, "duration_ms", time.Since(start).Milliseconds())
	return raw
}

func (r *Registry) lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

func errorResult(err error) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return raw
}

// decodeInput unmarshals tool arguments, naming the tool on failure.
func decodeInput(name, input string, v any) error {
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid %s arguments: %w", name, err)
	}
	return nil
}
