package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"aihub/internal/domain"
)

const snapshotDir = "snapshots"

// DirRegistry is a filesystem-backed agent and snapshot store. Agents live
// under root/<namespace>/<name>/<version>; snapshots are kept as
// root/snapshots/<id>.tar.gz with a JSON metadata sidecar.
type DirRegistry struct {
	root   string
	logger *slog.Logger
}

// NewDirRegistry creates a registry rooted at root.
func NewDirRegistry(root string, logger *slog.Logger) *DirRegistry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DirRegistry{root: root, logger: logger}
}

// Root returns the registry directory.
func (r *DirRegistry) Root() string { return r.root }

// Save stores a snapshot archive and returns its ULID identifier.
func (r *DirRegistry) Save(_ context.Context, snapshot []byte, metadata map[string]string) (string, error) {
	dir := filepath.Join(r.root, snapshotDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.NewDomainError("DirRegistry.Save", domain.ErrRegistryUnavailable, err.Error())
	}

	id := generateULID(time.Now())
	if err := os.WriteFile(filepath.Join(dir, id+".tar.gz"), snapshot, 0o644); err != nil {
		return "", domain.NewDomainError("DirRegistry.Save", domain.ErrRegistryUnavailable, err.Error())
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
		return "", domain.NewDomainError("DirRegistry.Save", domain.ErrRegistryUnavailable, err.Error())
	}

	r.logger.Debug("snapshot saved", "id", id, "size", len(snapshot))
	return id, nil
}

// Load returns the files stored under identifier, which is either a
// snapshot id or an agent path relative to the registry root.
func (r *DirRegistry) Load(_ context.Context, identifier string) (map[string][]byte, error) {
	rel, err := entryName(identifier)
	if err != nil || rel == "." {
		return nil, domain.NewSubSystemError("agent", "DirRegistry.Load", domain.ErrInvalidInput, identifier)
	}

	archive := filepath.Join(r.root, snapshotDir, rel+".tar.gz")
	if data, err := os.ReadFile(archive); err == nil {
		return ReadTarGz(bytes.NewReader(data))
	}

	dir := filepath.Join(r.root, rel)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, domain.NewSubSystemError("agent", "DirRegistry.Load", domain.ErrNotFound, identifier)
	}
	return readTree(dir)
}

// SnapshotMetadata returns the sidecar metadata saved with a snapshot.
func (r *DirRegistry) SnapshotMetadata(id string) (map[string]string, error) {
	rel, err := entryName(id)
	if err != nil {
		return nil, domain.NewDomainError("DirRegistry.SnapshotMetadata", domain.ErrInvalidInput, id)
	}
	data, err := os.ReadFile(filepath.Join(r.root, snapshotDir, rel+".json"))
	if err != nil {
		return nil, domain.NewDomainError("DirRegistry.SnapshotMetadata", domain.ErrNotFound, id)
	}
	var meta map[string]string
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode snapshot metadata: %w", err)
	}
	return meta, nil
}

// Agents lists the agents stored in the registry.
func (r *DirRegistry) Agents() ([]AgentEntry, error) {
	return ScanAgents(r.root)
}

func readTree(dir string) (map[string][]byte, error) {
	files := map[string][]byte{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	return files, nil
}

func generateULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

var _ domain.RegistryClient = (*DirRegistry)(nil)
