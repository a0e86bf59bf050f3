package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"aihub/internal/adapter/llm"
	"aihub/internal/adapter/tool"
	"aihub/internal/domain"
	"aihub/internal/infra/config"
	"aihub/internal/infra/logger"
	"aihub/internal/infra/tracer"
	"aihub/internal/plugin"
	"aihub/internal/usecase/agent"
	"aihub/internal/usecase/environment"
)

// app holds the process-wide components every command shares.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	providers *llm.Registry
	vectors   domain.VectorStore
	registry  *plugin.DirRegistry
	mcp       *tool.MCPBridge
	cleanup   []func()
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}
	a.cleanup = append(a.cleanup, func() { logCloser() })

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.cleanup = append(a.cleanup, func() { tracerShutdown(context.Background()) })

	a.providers, err = llm.NewRegistryFromConfig(ctx, cfg.LLM, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}
	if cfg.VectorStore.BaseURL != "" {
		a.vectors = llm.NewVectorStoreClient(cfg.VectorStore, log)
	}
	a.registry = plugin.NewDirRegistry(cfg.Runtime.RegistryDir, log)

	if len(cfg.Tools.MCPServers) > 0 {
		a.mcp, err = tool.NewMCPBridge(ctx, cfg.Tools.MCPServers, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("mcp: %w", err)
		}
		a.cleanup = append(a.cleanup, a.mcp.Close)
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func (a *app) agentOptions() agent.Options {
	return agent.Options{
		TempDir:         a.cfg.Runtime.TempDir,
		WasmMemoryPages: a.cfg.Runtime.WasmMemoryPages,
		Logger:          a.log,
	}
}

// loadAgent accepts a local directory or a namespace/name/version
// identifier from the registry.
func (a *app) loadAgent(ctx context.Context, ref string) (*agent.Agent, error) {
	ag, err := agent.Load(ctx, ref, a.registry, a.agentOptions())
	if err != nil {
		return nil, fmt.Errorf("load agent %s: %w", ref, err)
	}
	a.log.Info("agent loaded", "agent", ag.Identifier())
	return ag, nil
}

func (a *app) newEnvironment(workdir string, vars map[string]string, agents ...*agent.Agent) (*environment.Environment, error) {
	rt := a.cfg.Runtime
	deps := environment.Deps{
		Providers:   a.providers,
		VectorStore: a.vectors,
		Logger:      a.log,
	}
	if a.mcp != nil {
		deps.Tools = append(deps.Tools, a.mcp)
	}
	return environment.New(environment.Options{
		Path:              workdir,
		TempDir:           rt.TempDir,
		Vars:              vars,
		ChangeDir:         rt.ChangeDir,
		ApplyProcessEnv:   rt.ApplyProcessEnv,
		ExecTimeout:       rt.ExecTimeout,
		ExecDenylist:      a.cfg.Tools.ExecDenylist,
		ExecPerMinute:     a.cfg.Tools.ExecPerMinute,
		ValidateArguments: a.cfg.Tools.ValidateArguments,
		LogLevel:          a.cfg.Logger.Level,
		OwnAgents:         true,
	}, agents, deps)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
