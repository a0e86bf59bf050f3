package wasm

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aihub/internal/domain"
)

// helloWASM is a WASI command whose _start writes "hello" to stdout with
// fd_write.
var helloWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x0c, 0x02, 0x60,
	0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f, 0x60, 0x00, 0x00, 0x02, 0x23,
	0x01, 0x16, 0x77, 0x61, 0x73, 0x69, 0x5f, 0x73, 0x6e, 0x61, 0x70, 0x73,
	0x68, 0x6f, 0x74, 0x5f, 0x70, 0x72, 0x65, 0x76, 0x69, 0x65, 0x77, 0x31,
	0x08, 0x66, 0x64, 0x5f, 0x77, 0x72, 0x69, 0x74, 0x65, 0x00, 0x00, 0x03,
	0x02, 0x01, 0x01, 0x05, 0x03, 0x01, 0x00, 0x01, 0x07, 0x13, 0x02, 0x06,
	0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02, 0x00, 0x06, 0x5f, 0x73, 0x74,
	0x61, 0x72, 0x74, 0x00, 0x01, 0x0a, 0x0f, 0x01, 0x0d, 0x00, 0x41, 0x01,
	0x41, 0x00, 0x41, 0x01, 0x41, 0x10, 0x10, 0x00, 0x1a, 0x0b, 0x0b, 0x13,
	0x01, 0x00, 0x41, 0x00, 0x0b, 0x0d, 0x08, 0x00, 0x00, 0x00, 0x05, 0x00,
	0x00, 0x00, 0x68, 0x65, 0x6c, 0x6c, 0x6f,
}

// exit3WASM is a WASI command whose _start calls proc_exit(3).
var exit3WASM = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x02, 0x60,
	0x01, 0x7f, 0x00, 0x60, 0x00, 0x00, 0x02, 0x24, 0x01, 0x16, 0x77, 0x61,
	0x73, 0x69, 0x5f, 0x73, 0x6e, 0x61, 0x70, 0x73, 0x68, 0x6f, 0x74, 0x5f,
	0x70, 0x72, 0x65, 0x76, 0x69, 0x65, 0x77, 0x31, 0x09, 0x70, 0x72, 0x6f,
	0x63, 0x5f, 0x65, 0x78, 0x69, 0x74, 0x00, 0x00, 0x03, 0x02, 0x01, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01, 0x07, 0x13, 0x02, 0x06, 0x6d, 0x65, 0x6d,
	0x6f, 0x72, 0x79, 0x02, 0x00, 0x06, 0x5f, 0x73, 0x74, 0x61, 0x72, 0x74,
	0x00, 0x01, 0x0a, 0x08, 0x01, 0x06, 0x00, 0x41, 0x03, 0x10, 0x00, 0x0b,
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := NewRuntime(context.Background(), DefaultRuntimeConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close(context.Background()) })
	return rt
}

func TestRuntime_ExecWritesStdout(t *testing.T) {
	rt := newTestRuntime(t)

	var stdout bytes.Buffer
	code, err := rt.Exec(context.Background(), helloWASM, Invocation{
		Args:     []string{"task"},
		Env:      map[string]string{"B": "2", "A": "1"},
		Stdout:   &stdout,
		MountDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello", stdout.String())
}

func TestRuntime_ExecRunsRepeatedly(t *testing.T) {
	rt := newTestRuntime(t)
	for i := 0; i < 3; i++ {
		var stdout bytes.Buffer
		_, err := rt.Exec(context.Background(), helloWASM, Invocation{Stdout: &stdout})
		require.NoError(t, err)
		assert.Equal(t, "hello", stdout.String())
	}
}

func TestRuntime_ExecExitCode(t *testing.T) {
	rt := newTestRuntime(t)
	code, err := rt.Exec(context.Background(), exit3WASM, Invocation{})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestRuntime_ExecInvalidModule(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.Exec(context.Background(), []byte("not wasm"), Invocation{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestDefaultRuntimeConfig(t *testing.T) {
	assert.Equal(t, uint32(512), DefaultRuntimeConfig().MaxMemoryPages)
}
