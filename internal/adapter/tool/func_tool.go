package tool

import (
	"context"
	"reflect"
	"strings"

	"aihub/internal/domain"
)

// Param declares one parameter of a function tool. A parameter without
// a default is required.
type Param struct {
	Name        string
	Kind        reflect.Kind
	Description string
	Default     any
	HasDefault  bool
}

// Required declares a parameter the caller must supply.
func Required(name string, kind reflect.Kind, description string) Param {
	return Param{Name: name, Kind: kind, Description: description}
}

// Optional declares a parameter that falls back to def when omitted.
func Optional(name string, kind reflect.Kind, description string, def any) Param {
	return Param{Name: name, Kind: kind, Description: description, Default: def, HasDefault: true}
}

// JSONType maps a Go kind onto the JSON Schema type advertised to models.
// Anything without a direct counterpart is advertised as a string.
func JSONType(kind reflect.Kind) string {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return domain.TypeInteger
	case reflect.Float32, reflect.Float64:
		return domain.TypeNumber
	case reflect.Bool:
		return domain.TypeBoolean
	default:
		return domain.TypeString
	}
}

// Func is the handler behind a FuncTool.
type Func func(ctx context.Context, args Args) (any, error)

// FuncTool adapts a plain Go function into a domain.Tool.
type FuncTool struct {
	name        string
	description string
	params      []Param
	fn          Func
}

// NewFuncTool builds a tool from explicit parameter declarations.
func NewFuncTool(name, description string, params []Param, fn Func) *FuncTool {
	return &FuncTool{name: name, description: description, params: params, fn: fn}
}

// NewDocTool builds a tool whose descriptions come from a doc block. The
// first non-empty line becomes the tool description; each parameter takes
// the text after the colon on the first line beginning with its name.
func NewDocTool(name, doc string, params []Param, fn Func) *FuncTool {
	described := make([]Param, len(params))
	for i, p := range params {
		if p.Description == "" {
			p.Description = paramDoc(doc, p.Name)
		}
		described[i] = p
	}
	return NewFuncTool(name, firstLine(doc), described, fn)
}

func (t *FuncTool) Name() string        { return t.name }
func (t *FuncTool) Description() string { return t.description }

func (t *FuncTool) Schema() domain.ToolSchema {
	props := make(map[string]domain.PropertySchema, len(t.params))
	required := []string{}
	for _, p := range t.params {
		props[p.Name] = domain.PropertySchema{Type: JSONType(p.Kind), Description: p.Description}
		if !p.HasDefault {
			required = append(required, p.Name)
		}
	}
	return domain.ToolSchema{
		Name:        t.name,
		Description: t.description,
		Parameters: domain.ParameterSchema{
			Type:       domain.TypeObject,
			Properties: props,
			Required:   required,
		},
	}
}

func (t *FuncTool) Call(ctx context.Context, args map[string]any) (any, error) {
	full := make(Args, len(t.params))
	for k, v := range args {
		full[k] = v
	}
	for _, p := range t.params {
		if _, ok := full[p.Name]; !ok && p.HasDefault {
			full[p.Name] = p.Default
		}
	}
	return t.fn(ctx, full)
}

// RegisterFunc is shorthand for Register(NewFuncTool(...)).
func (r *Registry) RegisterFunc(name, description string, params []Param, fn Func) {
	r.Register(NewFuncTool(name, description, params, fn))
}

func firstLine(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

func paramDoc(doc, name string) string {
	for _, line := range strings.Split(doc, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), name)
		if !ok {
			continue
		}
		if after, ok := strings.CutPrefix(strings.TrimLeft(rest, " \t"), ":"); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}
