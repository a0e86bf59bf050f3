package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aihub/internal/domain"
)

const replyScript = `package main

import (
	"context"
	"os"

	"aihub"
)

func Run(ctx context.Context, rc aihub.RunContext) error {
	if err := rc.Env.AddReply(rc.Task + " in a " + os.Getenv("TONE") + " tone"); err != nil {
		return err
	}
	return rc.Env.RequestUserInput()
}
`

// helloWASM is a WASI command whose _start writes "hello" to stdout.
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

func bundle(t *testing.T, files map[string][]byte) *Agent {
	t.Helper()
	files["metadata.json"] = TextFile(writerMetadata)
	a, err := FromFiles(files, testOptions(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Unload() })
	return a
}

func TestInterpreterRunner(t *testing.T) {
	a := bundle(t, map[string][]byte{ScriptEntry: TextFile(replyScript)})
	host := &fakeHost{path: t.TempDir()}

	require.NoError(t, a.Run(context.Background(), host, "a limerick", RunOptions{}))

	require.Len(t, host.messages, 1)
	assert.Equal(t, "a limerick in a dry tone", host.messages[0].Content)
	assert.True(t, host.asked)
}

func TestInterpreterRunnerRejectsBadScripts(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		target error
	}{
		{
			name:   "syntax error",
			src:    "package main\nfunc Run(",
			target: domain.ErrInvalidInput,
		},
		{
			name:   "blocked import",
			src:    "package main\nimport \"os/exec\"\nvar _ = exec.Command\n",
			target: domain.ErrInvalidInput,
		},
		{
			name:   "wrong signature",
			src:    "package main\nfunc Run() error { return nil }\n",
			target: domain.ErrEntryPointMissing,
		},
		{
			name:   "no Run",
			src:    "package main\nfunc Start() {}\n",
			target: domain.ErrEntryPointMissing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := bundle(t, map[string][]byte{ScriptEntry: TextFile(tt.src)})
			err := a.Run(context.Background(), &fakeHost{path: t.TempDir()}, "", RunOptions{})
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestWasmRunnerRecordsStdoutAsReply(t *testing.T) {
	a := bundle(t, map[string][]byte{WasmEntry: helloWASM})
	host := &fakeHost{path: t.TempDir()}

	require.NoError(t, a.Run(context.Background(), host, "greet", RunOptions{}))

	require.Len(t, host.messages, 1)
	assert.Equal(t, domain.RoleAgent, host.messages[0].Role)
	assert.Equal(t, "hello", host.messages[0].Content)
}

func TestEntryPointFromMetadata(t *testing.T) {
	meta := `{"name":"custom","version":"1","details":{"agent":{"entry_point":"bin/main.wasm"}}}`
	a, err := FromFiles(map[string][]byte{
		"metadata.json": TextFile(meta),
		"bin/main.wasm": helloWASM,
		ScriptEntry:     TextFile("package main\nfunc Run() {}\n"),
	}, testOptions(t))
	require.NoError(t, err)
	defer a.Unload()

	host := &fakeHost{path: t.TempDir()}
	require.NoError(t, a.Run(context.Background(), host, "", RunOptions{}))
	require.Len(t, host.messages, 1)
	assert.Equal(t, "hello", host.messages[0].Content)
}

func TestEnvList(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, envList(map[string]string{"B": "2", "A": "1"}))
}
