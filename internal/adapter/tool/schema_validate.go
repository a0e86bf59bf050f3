package tool

import (
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"aihub/internal/domain"
)

// Validate checks decoded arguments against the named tool's declared
// schema. Compiled schemas are cached until the tool is re-registered.
func (r *Registry) Validate(name string, args map[string]any) error {
	schema, err := r.compiledSchema(name)
	if err != nil {
		return err
	}

	data := make(map[string]any, len(args))
	for k, v := range args {
		data[k] = v
	}
	result := schema.Validate(data)
	if !result.IsValid() {
		return domain.NewDomainError("Registry.Validate", domain.ErrSchemaViolation,
			fmt.Sprintf("%s: %s", name, result.Error()))
	}
	return nil
}

func (r *Registry) compiledSchema(name string) (*jsonschema.Schema, error) {
	r.mu.RLock()
	cached, ok := r.validated[name]
	t, exists := r.tools[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}
	if !exists {
		return nil, domain.NewSubSystemError("tool", "Registry.Validate", domain.ErrToolNotFound, name)
	}

	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile([]byte(t.Schema().ParametersJSON()))
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", name, err)
	}

	r.mu.Lock()
	// Only cache if the tool was not replaced while compiling.
	if current, still := r.tools[name]; still && current == t {
		r.validated[name] = compiled
	}
	r.mu.Unlock()
	return compiled, nil
}
