package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aihub/internal/domain"
)

func TestDirRegistrySaveAndLoadSnapshot(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"chat.txt": "line\n", "out/result.md": "# done"})
	blob, err := PackTarGz(src)
	require.NoError(t, err)

	reg := NewDirRegistry(t.TempDir(), nil)
	id, err := reg.Save(context.Background(), blob, map[string]string{"agent": "acme/writer/1.0.0"})
	require.NoError(t, err)
	assert.Len(t, id, 26)

	files, err := reg.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "# done", string(files["out/result.md"]))

	meta, err := reg.SnapshotMetadata(id)
	require.NoError(t, err)
	assert.Equal(t, "acme/writer/1.0.0", meta["agent"])
}

func TestDirRegistryLoadAgent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"acme/writer/1.0.0/metadata.json": `{"name":"writer","version":"1.0.0"}`,
		"acme/writer/1.0.0/lib/util.go":   "package main",
	})
	reg := NewDirRegistry(root, nil)

	files, err := reg.Load(context.Background(), "acme/writer/1.0.0")
	require.NoError(t, err)
	assert.Contains(t, files, "metadata.json")
	assert.Equal(t, "package main", string(files["lib/util.go"]))

	agents, err := reg.Agents()
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "writer", agents[0].Metadata.Name)
}

func TestDirRegistryLoadErrors(t *testing.T) {
	reg := NewDirRegistry(t.TempDir(), nil)

	_, err := reg.Load(context.Background(), "acme/missing/1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, domain.CodeAgentNotFound, domain.ErrorCodeOf(err))

	_, err = reg.Load(context.Background(), "../../etc")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
