package tool

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/kaptinlin/jsonschema"
	"go.opentelemetry.io/otel/trace"

	"aihub/internal/domain"
	"aihub/internal/infra/tracer"
)

// Registry holds named tools. Registering a name that already exists
// replaces the previous tool: callers rely on this to override built-in
// tools with their own implementation of the same name.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]domain.Tool
	validated map[string]*jsonschema.Schema
	logger    *slog.Logger
}

// NewRegistry creates an empty tool registry. A nil logger discards output.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		tools:     make(map[string]domain.Tool),
		validated: make(map[string]*jsonschema.Schema),
		logger:    logger,
	}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t domain.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		r.logger.Debug("tool replaced", "tool", name)
	}
	r.tools[name] = t
	delete(r.validated, name)
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// Call invokes the named tool and returns its raw result. Errors raised by
// the tool itself are returned unchanged.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, domain.NewSubSystemError("tool", "Registry.Call", domain.ErrToolNotFound, name)
	}

	ctx, span := tracer.StartSpan(ctx, "tool.call",
		trace.WithAttributes(tracer.StringAttr("tool.name", name)),
	)
	defer span.End()

	result, err := t.Call(ctx, args)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return result, nil
}

// Describe returns the schema of the named tool.
func (r *Registry) Describe(name string) (domain.ToolSchema, bool) {
	t, ok := r.Get(name)
	if !ok {
		return domain.ToolSchema{}, false
	}
	return t.Schema(), true
}

// DescribeAll returns every tool schema, ordered by name.
func (r *Registry) DescribeAll() []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, t.Schema())
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// GetAllToolDefinitions returns the OpenAI-style definitions of every tool.
func (r *Registry) GetAllToolDefinitions() []domain.ToolDefinition {
	schemas := r.DescribeAll()
	defs := make([]domain.ToolDefinition, 0, len(schemas))
	for _, s := range schemas {
		defs = append(defs, s.Definition())
	}
	return defs
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ domain.ToolExecutor = (*Registry)(nil)
