package tool

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"aihub/internal/domain"
)

// Args is the decoded argument map passed to a function tool handler.
// Accessors tolerate values that arrive as strings, which is how the
// positional argument repair delivers them.
type Args map[string]any

// String returns the named argument rendered as a string.
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the named argument as an int, or def when absent or not numeric.
func (a Args) Int(name string, def int) int {
	switch v := a[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Float returns the named argument as a float64, or def.
func (a Args) Float(name string, def float64) float64 {
	switch v := a[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the named argument as a bool, or def.
func (a Args) Bool(name string, def bool) bool {
	switch v := a[name].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// RequireField returns an error if the string value is empty.
func RequireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("'%s' is required", name)
	}
	return nil
}

// CoerceArguments converts string values into the scalar type the schema
// declares for them. Values that do not parse are left untouched so that
// schema validation can report them.
func CoerceArguments(schema domain.ToolSchema, args map[string]any) map[string]any {
	types := propertyTypes(schema)
	out := make(map[string]any, len(args))
	for k, v := range args {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		out[k] = coerceScalar(types[k], s)
	}
	return out
}

func coerceScalar(typ, s string) any {
	trimmed := strings.TrimSpace(s)
	switch typ {
	case domain.TypeInteger:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return float64(n)
		}
	case domain.TypeNumber:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	case domain.TypeBoolean:
		if b, err := strconv.ParseBool(trimmed); err == nil {
			return b
		}
	}
	return s
}

func propertyTypes(schema domain.ToolSchema) map[string]string {
	if len(schema.Raw) == 0 {
		types := make(map[string]string, len(schema.Parameters.Properties))
		for name, p := range schema.Parameters.Properties {
			types[name] = p.Type
		}
		return types
	}
	var raw struct {
		Properties map[string]struct {
			Type any `json:"type"`
		} `json:"properties"`
	}
	types := map[string]string{}
	if err := json.Unmarshal(schema.Raw, &raw); err != nil {
		return types
	}
	for name, p := range raw.Properties {
		if s, ok := p.Type.(string); ok {
			types[name] = s
		}
	}
	return types
}
