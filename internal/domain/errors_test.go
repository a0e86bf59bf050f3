package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Registry.Call", ErrToolNotFound, "weather")
	want := "Registry.Call: weather: tool not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Agent.Run", ErrEntryPointMissing, "")
	want := "Agent.Run: agent entry point is missing"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Sandbox.ValidatePath", ErrPathOutsideSandbox, "/etc/passwd")
	if !errors.Is(err, ErrPathOutsideSandbox) {
		t.Error("errors.Is should match ErrPathOutsideSandbox")
	}
}

func TestWrapOp(t *testing.T) {
	assert.Nil(t, WrapOp("op", nil))

	err := WrapOp("Environment.Run", ErrMissingMetadata)
	assert.ErrorIs(t, err, ErrMissingMetadata)
	assert.Equal(t, "Environment.Run: agent metadata is missing required keys", err.Error())
}

func TestJSONDecodeError(t *testing.T) {
	inner := fmt.Errorf("unexpected end of JSON input")
	err := error(&JSONDecodeError{Raw: `{"a":`, Offset: 5, Err: inner})

	assert.ErrorIs(t, err, ErrJSONDecode)
	assert.ErrorIs(t, err, inner)

	var jde *JSONDecodeError
	require.ErrorAs(t, err, &jde)
	assert.Equal(t, `{"a":`, jde.Raw)
	assert.Equal(t, int64(5), jde.Offset)
	assert.Contains(t, err.Error(), "offset 5")
}

func TestToolExecutionError(t *testing.T) {
	inner := errors.New("boom")
	err := error(&ToolExecutionError{
		Tool:      "remote_search",
		Arguments: map[string]any{"q": "go"},
		Err:       inner,
	})

	assert.ErrorIs(t, err, ErrToolExecution)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "remote_search")
	assert.Contains(t, err.Error(), "q:go")
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeUnknown},
		{"sentinel", ErrToolNotFound, CodeToolNotFound},
		{"domain error", NewDomainError("Registry.Call", ErrToolNotFound, "x"), CodeToolNotFound},
		{"wrapped", fmt.Errorf("outer: %w", ErrArgumentsRequired), CodeArgumentsRequired},
		{"json decode", &JSONDecodeError{Raw: "x"}, CodeJSONDecode},
		{"tool execution wrapping a timeout", &ToolExecutionError{Tool: "t", Err: ErrTimeout}, CodeToolExecution},
		{"subsystem", NewSubSystemError("exec", "ExecCommand", ErrTimeout, ""), CodeCommandTimeout},
		{"subsystem fallback", NewSubSystemError("other", "Op", ErrTimeout, ""), CodeTimeout},
		{"unknown", errors.New("random"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(fmt.Errorf("x: %w", ErrRateLimit)))
	assert.True(t, IsRetryableError(ErrServerError))
	assert.False(t, IsRetryableError(ErrAuthInvalid))
}
