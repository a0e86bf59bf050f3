package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"aihub/internal/domain"
)

// StructTool derives its schema from the exported fields of P. Field names
// come from the json tag, descriptions from the desc tag. A field carrying
// a default tag is optional; every other field is required.
//
//	type weatherParams struct {
//		Location string `json:"location" desc:"The city and state"`
//		Unit     string `json:"unit" default:"fahrenheit"`
//	}
type StructTool[P any] struct {
	name        string
	description string
	params      []Param
	defaults    map[string]string
	fn          func(ctx context.Context, p P) (any, error)
}

// NewStructTool reflects over P and returns the resulting tool.
func NewStructTool[P any](name, description string, fn func(ctx context.Context, p P) (any, error)) (*StructTool[P], error) {
	typ := reflect.TypeFor[P]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, domain.NewDomainError("NewStructTool", domain.ErrInvalidInput,
			fmt.Sprintf("%s: parameter type %s is not a struct", name, typ))
	}

	t := &StructTool[P]{
		name:        name,
		description: description,
		defaults:    map[string]string{},
		fn:          fn,
	}
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		fieldName := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				fieldName = tagName
			}
		}
		p := Param{Name: fieldName, Kind: f.Type.Kind(), Description: f.Tag.Get("desc")}
		if def, ok := f.Tag.Lookup("default"); ok {
			p.HasDefault = true
			p.Default = def
			t.defaults[fieldName] = def
		}
		t.params = append(t.params, p)
	}
	return t, nil
}

func (t *StructTool[P]) Name() string        { return t.name }
func (t *StructTool[P]) Description() string { return t.description }

func (t *StructTool[P]) Schema() domain.ToolSchema {
	return NewFuncTool(t.name, t.description, t.params, nil).Schema()
}

func (t *StructTool[P]) Call(ctx context.Context, args map[string]any) (any, error) {
	schema := t.Schema()
	full := CoerceArguments(schema, args)
	for name, def := range t.defaults {
		if _, ok := full[name]; !ok {
			full[name] = coerceScalar(schema.Parameters.Properties[name].Type, def)
		}
	}

	data, err := json.Marshal(full)
	if err != nil {
		return nil, fmt.Errorf("encode %s arguments: %w", t.name, err)
	}
	var p P
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, domain.NewDomainError(t.name, domain.ErrInvalidInput, err.Error())
	}
	return t.fn(ctx, p)
}

// RegisterStruct registers a reflected tool on r.
func RegisterStruct[P any](r *Registry, name, description string, fn func(ctx context.Context, p P) (any, error)) error {
	t, err := NewStructTool(name, description, fn)
	if err != nil {
		return err
	}
	r.Register(t)
	return nil
}
