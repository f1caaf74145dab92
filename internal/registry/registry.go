package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xscopehub/datajud-bridge/internal/types"
)

// ErrToolNotFound is returned when invoking an unregistered tool.
var ErrToolNotFound = errors.New("tool not found")

// ToolFunc represents the implementation of a tool call.
type ToolFunc func(ctx context.Context, arguments types.Arguments) (types.Envelope, error)

// Registry maintains the available tools in registration order. Tools are
// registered at startup; lookups are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	tools    map[string]ToolFunc
	toolInfo map[string]types.ToolDescriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools:    make(map[string]ToolFunc),
		toolInfo: make(map[string]types.ToolDescriptor),
	}
}

// RegisterTool registers a single tool implementation. Registering a name
// twice replaces the earlier entry in place.
func (r *Registry) RegisterTool(desc types.ToolDescriptor, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.toolInfo[desc.Name]; !exists {
		r.order = append(r.order, desc.Name)
	}
	r.toolInfo[desc.Name] = desc
	r.tools[desc.Name] = fn
}

// ListTools returns tool descriptors in registration order.
func (r *Registry) ListTools() []types.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptors := make([]types.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		descriptors = append(descriptors, r.toolInfo[name])
	}
	return descriptors
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// InvokeTool executes a tool by name.
func (r *Registry) InvokeTool(ctx context.Context, name string, arguments types.Arguments) (types.Envelope, error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", name, ErrToolNotFound)
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: implementation missing", name)
	}
	if arguments == nil {
		arguments = types.Arguments{}
	}
	return fn(ctx, arguments)
}
