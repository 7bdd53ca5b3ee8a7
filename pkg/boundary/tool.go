package boundary

import (
	"context"
	"sort"
	"sync"

	"github.com/substratehq/strata/pkg/errors"
)

// Tool is anything an agent can invoke through the boundary. Execute returns
// the tool's raw textual output; the boundary decides whether that output is
// small enough to cross inline.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, params map[string]interface{}) (string, error)
}

// Registry holds the tools available behind one boundary. Safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New(errors.InvalidInput, "cannot register a nil tool")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return errors.WithFields(
			errors.New(errors.InvalidInput, "tool already registered"),
			errors.Fields{"tool_name": name},
		)
	}
	r.tools[name] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, errors.WithFields(
			errors.New(errors.ResourceNotFound, "tool not found"),
			errors.Fields{"tool_name": name},
		)
	}
	return tool, nil
}

// List returns registered tool names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
