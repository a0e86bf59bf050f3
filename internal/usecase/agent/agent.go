// Package agent loads agent bundles into private working directories and
// runs their entry points against a host environment.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"aihub/internal/domain"
	"aihub/internal/plugin"
	"aihub/internal/security"
)

// Options configures how agents are materialized and run.
type Options struct {
	// TempDir is the parent of per-agent directories; empty uses os.TempDir.
	TempDir string
	// WasmMemoryPages caps the memory of WASM entry points.
	WasmMemoryPages uint32
	Logger          *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Agent is one loaded agent: its metadata plus an exclusively owned
// directory holding its files.
type Agent struct {
	Metadata domain.AgentMetadata

	dir    string
	native EntryFunc
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	unloaded bool
}

// Load fetches an agent. identifierOrPath is tried first as a local
// directory, which is copied; otherwise registry is asked for the files
// stored under that identifier.
func Load(ctx context.Context, identifierOrPath string, registry domain.RegistryClient, opts Options) (*Agent, error) {
	if info, err := os.Stat(identifierOrPath); err == nil && info.IsDir() {
		dir, err := MaterializeDir(opts.TempDir, identifierOrPath)
		if err != nil {
			return nil, err
		}
		return newAgent(dir, opts)
	}
	if registry == nil {
		return nil, domain.NewSubSystemError("agent", "agent.Load", domain.ErrNotFound, identifierOrPath)
	}

	files, err := registry.Load(ctx, identifierOrPath)
	if err != nil {
		return nil, domain.WrapOp("agent.Load", err)
	}
	return FromFiles(files, opts)
}

// FromFiles materializes files and reads the agent's metadata.
func FromFiles(files map[string][]byte, opts Options) (*Agent, error) {
	dir, err := Materialize(opts.TempDir, files)
	if err != nil {
		return nil, err
	}
	return newAgent(dir, opts)
}

// NewNative creates an agent whose entry point is a Go function. Its
// directory holds only the metadata descriptor.
func NewNative(meta domain.AgentMetadata, fn EntryFunc, opts Options) (*Agent, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	data, err := JSONFile(meta)
	if err != nil {
		return nil, err
	}
	dir, err := Materialize(opts.TempDir, map[string][]byte{domain.MetadataFile: data})
	if err != nil {
		return nil, err
	}
	return &Agent{Metadata: meta, dir: dir, native: fn, opts: opts, logger: opts.logger()}, nil
}

func newAgent(dir string, opts Options) (*Agent, error) {
	meta, err := plugin.ReadMetadata(dir)
	if err != nil {
		os.RemoveAll(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewSubSystemError("agent", "agent.Load", domain.ErrMissingMetadata,
				domain.MetadataFile+" not found")
		}
		return nil, err
	}
	a := &Agent{Metadata: meta, dir: dir, opts: opts, logger: opts.logger()}
	a.logger.Debug("agent loaded", "agent", meta.Identifier(), "dir", dir)
	return a, nil
}

// Identifier returns "namespace/name/version".
func (a *Agent) Identifier() string { return a.Metadata.Identifier() }

// Dir returns the agent's private directory.
func (a *Agent) Dir() string { return a.dir }

// SetEntryFunc registers a native entry point used when the bundle has no
// script or module entry file.
func (a *Agent) SetEntryFunc(fn EntryFunc) { a.native = fn }

// Defaults returns the model and loop defaults declared in metadata.
func (a *Agent) Defaults() domain.AgentDefaults { return a.Metadata.Details.Agent.Defaults }

// Unload removes the agent's directory. Calling it again is a no-op.
func (a *Agent) Unload() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unloaded {
		return nil
	}
	a.unloaded = true
	if err := os.RemoveAll(a.dir); err != nil {
		return fmt.Errorf("unload %s: %w", a.Identifier(), err)
	}
	return nil
}

// Materialize writes files into a fresh, uniquely named directory under
// tempRoot. Names may contain subdirectories but must stay inside it.
func Materialize(tempRoot string, files map[string][]byte) (string, error) {
	dir, err := os.MkdirTemp(tempRoot, "aihub-agent-*")
	if err != nil {
		return "", fmt.Errorf("create agent dir: %w", err)
	}
	box, err := security.NewSandbox(dir)
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}

	for name, content := range files {
		target, err := box.Resolve(filepath.FromSlash(name))
		if err == nil && target == box.Root() {
			err = domain.NewDomainError("agent.Materialize", domain.ErrInvalidInput, "empty file name")
		}
		if err != nil {
			os.RemoveAll(dir)
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("create parent of %s: %w", name, err)
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	return box.Root(), nil
}

// MaterializeDir copies the tree at src into a fresh directory under tempRoot.
func MaterializeDir(tempRoot, src string) (string, error) {
	files := map[string][]byte{}
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
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
		return "", fmt.Errorf("copy agent dir %s: %w", src, err)
	}
	return Materialize(tempRoot, files)
}

// TextFile encodes text file content.
func TextFile(s string) []byte { return []byte(s) }

// JSONFile serializes v as indented JSON file content.
func JSONFile(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode file content: %w", err)
	}
	return data, nil
}
