package tool

import (
	"fmt"
	"os"
	"path/filepath"

	"aihub/internal/domain"
	"aihub/internal/security"
)

// LocalFilesystemBackend serves files from a sandboxed directory on the
// local disk.
type LocalFilesystemBackend struct {
	box *security.Sandbox
}

// NewLocalFilesystemBackend creates a backend confined to box.
func NewLocalFilesystemBackend(box *security.Sandbox) *LocalFilesystemBackend {
	return &LocalFilesystemBackend{box: box}
}

func (b *LocalFilesystemBackend) Name() string { return "local" }

func (b *LocalFilesystemBackend) Root() string { return b.box.Root() }

func (b *LocalFilesystemBackend) ReadFile(name string) ([]byte, error) {
	path, err := b.box.Resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (b *LocalFilesystemBackend) WriteFile(name string, data []byte) error {
	path, err := b.box.Resolve(name)
	if err != nil {
		return err
	}
	if path == b.box.Root() {
		return domain.NewDomainError("write_file", domain.ErrInvalidInput, "empty file name")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (b *LocalFilesystemBackend) ListDir(name string) ([]string, error) {
	path, err := b.box.Resolve(name)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name()+"/")
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

var _ FilesystemBackend = (*LocalFilesystemBackend)(nil)
