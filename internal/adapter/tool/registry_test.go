package tool

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aihub/internal/domain"
)

func weatherTool(answer string) *FuncTool {
	return NewFuncTool("get_current_weather", "Get the current weather in a given location",
		[]Param{
			Required("location", reflect.String, "The city and state, e.g. San Francisco, CA"),
			Optional("unit", reflect.String, "celsius or fahrenheit", "fahrenheit"),
		},
		func(_ context.Context, args Args) (any, error) {
			return answer + " in " + args.String("location") + " (" + args.String("unit") + ")", nil
		})
}

func TestRegistry_RegisterAndCall(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(weatherTool("sunny"))

	got, ok := reg.Get("get_current_weather")
	require.True(t, ok)
	assert.Equal(t, "get_current_weather", got.Name())

	result, err := reg.Call(context.Background(), "get_current_weather", map[string]any{"location": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "sunny in Paris (fahrenheit)", result)
}

func TestRegistry_OverwriteLastWins(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(weatherTool("sunny"))
	reg.Register(weatherTool("rainy"))

	assert.Len(t, reg.Names(), 1)
	result, err := reg.Call(context.Background(), "get_current_weather", map[string]any{"location": "Oslo", "unit": "celsius"})
	require.NoError(t, err)
	assert.Equal(t, "rainy in Oslo (celsius)", result)
}

func TestRegistry_CallUnknown(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Call(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
	assert.Equal(t, domain.CodeToolNotFound, domain.ErrorCodeOf(err))
}

func TestRegistry_CallPropagatesToolError(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry(nil)
	reg.RegisterFunc("fail", "always fails", nil, func(context.Context, Args) (any, error) {
		return nil, boom
	})

	_, err := reg.Call(context.Background(), "fail", map[string]any{})
	assert.Same(t, boom, err)
}

func TestRegistry_DescribeAllSorted(t *testing.T) {
	reg := NewRegistry(nil)
	for _, name := range []string{"write_file", "exec_command", "list_files"} {
		reg.RegisterFunc(name, name, nil, func(context.Context, Args) (any, error) { return nil, nil })
	}

	var names []string
	for _, s := range reg.DescribeAll() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"exec_command", "list_files", "write_file"}, names)

	defs := reg.GetAllToolDefinitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "exec_command", defs[0].Function.Name)
}

func TestRegistry_Describe(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(weatherTool("sunny"))

	schema, ok := reg.Describe("get_current_weather")
	require.True(t, ok)
	assert.Equal(t, []string{"location"}, schema.Parameters.Required)
	assert.Equal(t, domain.TypeString, schema.Parameters.Properties["unit"].Type)
	assert.Equal(t, "The city and state, e.g. San Francisco, CA", schema.Parameters.Properties["location"].Description)

	_, ok = reg.Describe("nope")
	assert.False(t, ok)
}
