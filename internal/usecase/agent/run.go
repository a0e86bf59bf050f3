package agent

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"aihub/internal/domain"
	"aihub/internal/infra/tracer"
)

// Default entry files, checked in order when metadata names none.
const (
	ScriptEntry = "agent.go"
	WasmEntry   = "agent.wasm"
)

// Host is the capability surface an agent sees during a run.
type Host interface {
	GetPath() string
	AddMessage(role, content string, metadata map[string]any) error
	AddReply(content string) error
	ListMessages() ([]domain.Message, error)
	GetLastMessage(role string) (*domain.Message, error)
	ListFiles(path string) ([]string, error)
	ReadFile(name string) (string, error)
	WriteFile(name, content string) error
	ExecCommand(ctx context.Context, command string) (domain.CommandResult, error)
	Completion(ctx context.Context, messages []domain.ChatMessage, opts domain.CompletionOptions) (string, error)
	Completions(ctx context.Context, messages []domain.ChatMessage, opts domain.CompletionOptions) (*domain.ChatResponse, error)
	CompletionsAndRunTools(ctx context.Context, messages []domain.ChatMessage, opts domain.CompletionOptions) (*domain.ChatResponse, error)
	QueryVectorStore(ctx context.Context, vectorStoreID, query string) ([]domain.VectorResult, error)
	RequestUserInput() error
	MarkDone() error
	AgentLogger() *slog.Logger
}

// RunContext is everything an entry point receives.
type RunContext struct {
	Env   Host
	Agent *Agent
	Task  string
	// Vars is the agent's declared env_vars merged with the run's
	// variables; run values win.
	Vars map[string]string
}

// EntryFunc is a natively registered entry point.
type EntryFunc func(ctx context.Context, rc RunContext) error

// RunOptions controls one invocation.
type RunOptions struct {
	Vars map[string]string
	// ApplyProcessEnv also exports Vars to the process environment for the
	// duration of the call and restores the previous values afterwards.
	ApplyProcessEnv bool
	// ChangeDir switches the working directory to the host's sandbox root
	// for the duration of the call.
	ChangeDir bool
}

// Run resolves the entry point and executes it with host and task. Errors
// from the entry point are returned unchanged; the working directory and
// process environment are restored on every path.
func (a *Agent) Run(ctx context.Context, host Host, task string, opts RunOptions) (err error) {
	runner, entryPath, err := a.resolveEntry()
	if err != nil {
		return err
	}

	ctx, span := tracer.StartSpan(ctx, "agent.run",
		trace.WithAttributes(
			tracer.StringAttr("agent.id", a.Identifier()),
			tracer.StringAttr("agent.runner", runner.Name()),
		),
	)
	defer func() {
		if err != nil {
			tracer.RecordError(span, err)
		} else {
			tracer.SetOK(span)
		}
		span.End()
	}()

	vars := mergeVars(a.Metadata.Details.EnvVars, opts.Vars)

	if opts.ApplyProcessEnv {
		restore, err := applyProcessEnv(vars)
		if err != nil {
			return err
		}
		defer restore()
	}
	if opts.ChangeDir {
		prev, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		if err := os.Chdir(host.GetPath()); err != nil {
			return fmt.Errorf("enter sandbox: %w", err)
		}
		defer func() {
			if cerr := os.Chdir(prev); cerr != nil {
				a.logger.Warn("restore working directory", "dir", prev, "error", cerr)
			}
		}()
	}

	a.logger.Debug("agent run", "agent", a.Identifier(), "runner", runner.Name(), "entry", entryPath)
	return runner.Run(ctx, entryPath, RunContext{Env: host, Agent: a, Task: task, Vars: vars})
}

func (a *Agent) resolveEntry() (Runner, string, error) {
	candidates := []string{ScriptEntry, WasmEntry}
	if ep := strings.TrimSpace(a.Metadata.Details.Agent.EntryPoint); ep != "" {
		candidates = []string{ep}
	}
	for _, name := range candidates {
		path := filepath.Join(a.dir, filepath.FromSlash(name))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		switch filepath.Ext(name) {
		case ".wasm":
			return NewWasmRunner(a.opts.WasmMemoryPages, a.logger), path, nil
		default:
			return NewInterpreterRunner(a.logger), path, nil
		}
	}
	if a.native != nil {
		return FuncRunner(a.native), "", nil
	}
	return nil, "", domain.NewSubSystemError("agent", "Agent.Run", domain.ErrEntryPointMissing,
		fmt.Sprintf("%s has none of %s", a.Identifier(), strings.Join(candidates, ", ")))
}

func mergeVars(declared, run map[string]string) map[string]string {
	merged := make(map[string]string, len(declared)+len(run))
	for k, v := range declared {
		merged[k] = v
	}
	for k, v := range run {
		merged[k] = v
	}
	return merged
}

// applyProcessEnv sets vars process-wide and returns a func restoring the
// prior state, unsetting keys that were previously absent.
func applyProcessEnv(vars map[string]string) (func(), error) {
	type prior struct {
		value string
		set   bool
	}
	saved := make(map[string]prior, len(vars))
	restore := func() {
		for k, p := range saved {
			if p.set {
				os.Setenv(k, p.value)
			} else {
				os.Unsetenv(k)
			}
		}
	}
	for k, v := range vars {
		old, ok := os.LookupEnv(k)
		saved[k] = prior{value: old, set: ok}
		if err := os.Setenv(k, v); err != nil {
			restore()
			return nil, fmt.Errorf("set %s: %w", k, err)
		}
	}
	return restore, nil
}
