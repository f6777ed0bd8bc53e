package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/sdap/playbook/internal/domain"
)

// Registry maps action kinds to their executor. It is built once at
// startup; the first executor registered for a kind wins dispatch, but
// every executor instance is retained in the full list so duplicates
// are de-prioritized, not dropped.
type Registry struct {
	byKind map[domain.ActionKind]NodeExecutor
	all    []NodeExecutor
}

// NewRegistry builds a registry from the full set of executors.
func NewRegistry(executors ...NodeExecutor) *Registry {
	r := &Registry{byKind: make(map[domain.ActionKind]NodeExecutor)}
	for _, ex := range executors {
		r.all = append(r.all, ex)
		for _, kind := range ex.SupportedActionKinds() {
			if _, exists := r.byKind[kind]; !exists {
				r.byKind[kind] = ex
			}
		}
	}
	return r
}

// Executor returns the dispatch executor for kind. The second return is
// false when no executor supports the kind; callers handle that
// explicitly rather than receiving an error.
func (r *Registry) Executor(kind domain.ActionKind) (NodeExecutor, bool) {
	ex, ok := r.byKind[kind]
	return ex, ok
}

// All returns every registered executor, including duplicate-kind ones.
func (r *Registry) All() []NodeExecutor {
	return r.all
}

// ToolHandler runs one pluggable analysis capability, looked up by the
// tool's handler-class string.
type ToolHandler interface {
	// Validate checks tool-level configuration without side effects.
	// A non-nil result is a tool-level validation failure carrying the
	// tool's own error code.
	Validate(ctx context.Context, ec *domain.NodeExecutionContext, tool *domain.AnalysisTool) *domain.ToolResult
	Execute(ctx context.Context, ec *domain.NodeExecutionContext, tool *domain.AnalysisTool) (*domain.ToolResult, error)
}

// HandlerRegistry stores tool handlers keyed by handler class.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ToolHandler
}

// NewHandlerRegistry creates an empty tool handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]ToolHandler)}
}

// Register adds a handler for a handler-class string.
func (r *HandlerRegistry) Register(handlerClass string, h ToolHandler) error {
	if handlerClass == "" {
		return fmt.Errorf("handler class is required")
	}
	if h == nil {
		return fmt.Errorf("handler is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[handlerClass]; exists {
		return fmt.Errorf("handler already registered for %s", handlerClass)
	}
	r.handlers[handlerClass] = h
	return nil
}

// MustRegister adds a handler or panics.
func (r *HandlerRegistry) MustRegister(handlerClass string, h ToolHandler) {
	if err := r.Register(handlerClass, h); err != nil {
		panic(err)
	}
}

// Handler returns the handler for an exact handler-class string.
func (r *HandlerRegistry) Handler(handlerClass string) (ToolHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[handlerClass]
	return h, ok
}
