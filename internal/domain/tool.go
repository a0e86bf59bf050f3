package domain

import (
	"context"
	"encoding/json"
)

// JSON Schema primitive types used in tool parameter schemas.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
)

// PropertySchema describes a single tool parameter.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ParameterSchema is the JSON Schema object describing a tool's parameters.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// ToolSchema describes a tool for the function-calling protocol.
// When Raw is set the schema originated outside the process and is
// advertised verbatim instead of Parameters.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"-"`
	Raw         json.RawMessage `json:"-"`
}

// ParametersJSON returns the parameters schema as advertised to the model.
func (s ToolSchema) ParametersJSON() json.RawMessage {
	if len(s.Raw) > 0 {
		return s.Raw
	}
	p := s.Parameters
	if p.Type == "" {
		p.Type = TypeObject
	}
	if p.Properties == nil {
		p.Properties = map[string]PropertySchema{}
	}
	if p.Required == nil {
		p.Required = []string{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
	}
	return data
}

// Declared returns the declared property names and the required names.
// Raw schemas are decoded on demand; an undecodable raw schema declares nothing.
func (s ToolSchema) Declared() (properties map[string]bool, required []string) {
	params := s.Parameters
	if len(s.Raw) > 0 {
		var raw struct {
			Properties map[string]json.RawMessage `json:"properties"`
			Required   []string                   `json:"required"`
		}
		if err := json.Unmarshal(s.Raw, &raw); err == nil {
			properties = make(map[string]bool, len(raw.Properties))
			for name := range raw.Properties {
				properties[name] = true
			}
			return properties, raw.Required
		}
		return map[string]bool{}, nil
	}
	properties = make(map[string]bool, len(params.Properties))
	for name := range params.Properties {
		properties[name] = true
	}
	return properties, params.Required
}

// MarshalJSON renders the schema in the function body shape
// {"name", "description", "parameters"}.
func (s ToolSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(FunctionDefinition{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  s.ParametersJSON(),
	})
}

// Definition returns the OpenAI-style tool definition record.
func (s ToolSchema) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.ParametersJSON(),
		},
	}
}

// ToolDefinition is {"type": "function", "function": {...}}.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the body of a ToolDefinition.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Tool is the interface every invocable capability implements.
// Call returns the tool's raw result; errors are the tool's own.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolExecutor abstracts tool lookup, schema listing and invocation.
type ToolExecutor interface {
	Get(name string) (Tool, bool)
	Describe(name string) (ToolSchema, bool)
	DescribeAll() []ToolSchema
	Call(ctx context.Context, name string, args map[string]any) (any, error)
}
