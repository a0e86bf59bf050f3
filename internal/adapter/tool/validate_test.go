package tool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"aihub/internal/domain"
)

func TestArgsAccessors(t *testing.T) {
	args := Args{
		"name":    "poem.txt",
		"count":   float64(3),
		"limit":   " 7 ",
		"ratio":   "0.25",
		"recurse": "true",
		"force":   false,
		"size":    float64(1.5),
		"tags":    []any{"a"},
	}

	assert.Equal(t, "poem.txt", args.String("name"))
	assert.Equal(t, "3", args.String("count"))
	assert.Equal(t, "1.5", args.String("size"))
	assert.Equal(t, "[a]", args.String("tags"))
	assert.Empty(t, args.String("missing"))

	assert.Equal(t, 3, args.Int("count", 0))
	assert.Equal(t, 7, args.Int("limit", 0))
	assert.Equal(t, 9, args.Int("name", 9), "non-numeric falls back")
	assert.Equal(t, 9, args.Int("missing", 9))

	assert.Equal(t, 0.25, args.Float("ratio", 0))
	assert.Equal(t, 3.0, args.Float("count", 0))
	assert.Equal(t, 2.0, args.Float("name", 2))

	assert.True(t, args.Bool("recurse", false))
	assert.False(t, args.Bool("force", true))
	assert.True(t, args.Bool("name", true), "unparseable falls back")
}

func TestRequireField(t *testing.T) {
	assert.NoError(t, RequireField("filename", "a.txt"))
	err := RequireField("filename", "")
	assert.EqualError(t, err, "'filename' is required")
}

func TestCoerceArguments(t *testing.T) {
	schema := domain.ToolSchema{
		Name: "resize",
		Parameters: domain.ParameterSchema{
			Type: domain.TypeObject,
			Properties: map[string]domain.PropertySchema{
				"width":  {Type: domain.TypeInteger},
				"scale":  {Type: domain.TypeNumber},
				"crop":   {Type: domain.TypeBoolean},
				"label":  {Type: domain.TypeString},
				"height": {Type: domain.TypeInteger},
			},
		},
	}

	got := CoerceArguments(schema, map[string]any{
		"width":  " 640",
		"scale":  "0.5",
		"crop":   "false",
		"label":  "42",
		"height": "tall",
		"extra":  "7",
	})
	assert.Equal(t, map[string]any{
		"width":  float64(640),
		"scale":  0.5,
		"crop":   false,
		"label":  "42",
		"height": "tall",
		"extra":  "7",
	}, got)
}

func TestCoerceArgumentsRawSchema(t *testing.T) {
	schema := domain.ToolSchema{
		Name: "mcp_fs_read",
		Raw:  json.RawMessage(`{"type":"object","properties":{"lines":{"type":"integer"},"path":{"type":["string","null"]}}}`),
	}

	got := CoerceArguments(schema, map[string]any{"lines": "10", "path": "10"})
	assert.Equal(t, float64(10), got["lines"])
	assert.Equal(t, "10", got["path"], "union types are left alone")

	broken := domain.ToolSchema{Name: "x", Raw: json.RawMessage(`{`)}
	assert.Equal(t, map[string]any{"n": "1"}, CoerceArguments(broken, map[string]any{"n": "1"}))
}

func TestCoerceScalar(t *testing.T) {
	tests := []struct {
		typ  string
		in   string
		want any
	}{
		{domain.TypeInteger, "12", float64(12)},
		{domain.TypeInteger, "1.5", "1.5"},
		{domain.TypeNumber, " -2.5 ", -2.5},
		{domain.TypeBoolean, "TRUE", true},
		{domain.TypeBoolean, "yes", "yes"},
		{domain.TypeString, "12", "12"},
		{"", "12", "12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, coerceScalar(tt.typ, tt.in), "%s %q", tt.typ, tt.in)
	}
}
