// Package tools holds the agent's callable capabilities. Tools are registered
// once at startup and shared read-only across concurrent requests; every
// failure inside a tool becomes a descriptive string result, because the
// orchestrator feeds tool output back to the model as authoritative content.
package tools

import (
	"context"
	"fmt"

	"github.com/okravchuk/devfinder/internal/core/domain"
	"github.com/okravchuk/devfinder/internal/core/ports"
)

// Observer is notified after each dispatched tool call.
type Observer func(tool, status string)

type Registry struct {
	order    []string
	tools    map[string]ports.Tool
	observer Observer
}

func NewRegistry(observer Observer) *Registry {
	return &Registry{
		tools:    make(map[string]ports.Tool),
		observer: observer,
	}
}

func (r *Registry) Register(tool ports.Tool) error {
	name := tool.Schema().Name
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Specs returns the model-facing declarations in registration order.
func (r *Registry) Specs() []domain.ToolSchema {
	out := make([]domain.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Schema())
	}
	return out
}

// Invoke dispatches a model-requested call. Unknown tools are reported as a
// textual result like any other tool failure.
func (r *Registry) Invoke(ctx context.Context, call domain.ToolCall) string {
	tool, ok := r.tools[call.Name]
	if !ok {
		r.observe(call.Name, "unknown")
		return fmt.Sprintf("Tool %q is not available.", call.Name)
	}

	result := tool.Invoke(ctx, call.Arguments)
	r.observe(call.Name, "ok")
	return result
}

func (r *Registry) observe(tool, status string) {
	if r.observer != nil {
		r.observer(tool, status)
	}
}
