package wasm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"aihub/internal/domain"
)

// RuntimeConfig holds configuration for the WASM runtime.
type RuntimeConfig struct {
	// MaxMemoryPages is the maximum number of 64KB WASM memory pages.
	MaxMemoryPages uint32
}

// DefaultRuntimeConfig returns a RuntimeConfig with sensible defaults.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		MaxMemoryPages: 512, // 32MB
	}
}

// Runtime wraps a wazero.Runtime with WASI preview1 instantiated. The
// caller must call Close when done.
type Runtime struct {
	inner  wazero.Runtime
	config RuntimeConfig
	logger *slog.Logger
}

// NewRuntime creates a new WASM runtime.
func NewRuntime(ctx context.Context, cfg RuntimeConfig, logger *slog.Logger) (*Runtime, error) {
	if cfg.MaxMemoryPages == 0 {
		cfg.MaxMemoryPages = DefaultRuntimeConfig().MaxMemoryPages
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rtCfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(cfg.MaxMemoryPages)

	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("%w: instantiate wasi: %v", domain.ErrInvalidInput, err)
	}

	logger.Debug("wasm runtime created",
		"max_memory_pages", cfg.MaxMemoryPages,
		"max_memory_mb", cfg.MaxMemoryPages*64/1024,
	)

	return &Runtime{inner: rt, config: cfg, logger: logger}, nil
}

// Invocation describes one run of a WASI command module.
type Invocation struct {
	// Name is argv[0].
	Name string
	Args []string
	Env  map[string]string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// MountDir is the host directory exposed to the guest as "/".
	MountDir string
}

// Exec compiles and runs a command module to completion. A guest that
// exits through proc_exit reports its code with a nil error; compile
// failures and traps are returned as errors.
func (r *Runtime) Exec(ctx context.Context, wasmBytes []byte, inv Invocation) (int, error) {
	compiled, err := r.inner.CompileModule(ctx, wasmBytes)
	if err != nil {
		return -1, fmt.Errorf("%w: compile: %v", domain.ErrInvalidInput, err)
	}
	defer compiled.Close(ctx)

	name := inv.Name
	if name == "" {
		name = "agent"
	}
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(append([]string{name}, inv.Args...)...).
		WithSysWalltime().
		WithSysNanotime()

	keys := make([]string, 0, len(inv.Env))
	for k := range inv.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		modCfg = modCfg.WithEnv(k, inv.Env[k])
	}
	if inv.Stdin != nil {
		modCfg = modCfg.WithStdin(inv.Stdin)
	}
	if inv.Stdout != nil {
		modCfg = modCfg.WithStdout(inv.Stdout)
	}
	if inv.Stderr != nil {
		modCfg = modCfg.WithStderr(inv.Stderr)
	}
	if inv.MountDir != "" {
		modCfg = modCfg.WithFSConfig(wazero.NewFSConfig().WithDirMount(inv.MountDir, "/"))
	}

	mod, err := r.inner.InstantiateModule(ctx, compiled, modCfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil {
		var exitErr *sys.ExitError
		if errors.As(err, &exitErr) {
			code := int(exitErr.ExitCode())
			r.logger.Debug("wasm module exited", "name", name, "code", code)
			if ctx.Err() != nil {
				return code, fmt.Errorf("%w: %v", domain.ErrTimeout, ctx.Err())
			}
			return code, nil
		}
		return -1, fmt.Errorf("%w: run %s: %v", domain.ErrToolExecution, name, err)
	}
	return 0, nil
}

// Close releases all resources held by the runtime.
func (r *Runtime) Close(ctx context.Context) error {
	if err := r.inner.Close(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	r.logger.Debug("wasm runtime closed")
	return nil
}
