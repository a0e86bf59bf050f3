package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"

	"aihub/internal/domain"
	"aihub/internal/plugin/script"
	"aihub/internal/plugin/wasm"
)

// Runner executes one kind of entry point.
type Runner interface {
	Run(ctx context.Context, entryPath string, rc RunContext) error
	Name() string
}

// FuncRunner runs a natively registered EntryFunc.
type FuncRunner EntryFunc

func (f FuncRunner) Name() string { return "func" }

func (f FuncRunner) Run(ctx context.Context, _ string, rc RunContext) error {
	return f(ctx, rc)
}

// Symbols is the "aihub" package visible to script entry points:
//
//	package main
//
//	import (
//		"context"
//
//		"aihub"
//	)
//
//	func Run(ctx context.Context, rc aihub.RunContext) error {
//		return rc.Env.AddReply("hello " + rc.Task)
//	}
var Symbols = interp.Exports{
	"aihub/aihub": {
		"RunContext":        reflect.ValueOf((*RunContext)(nil)),
		"Host":              reflect.ValueOf((*Host)(nil)),
		"Agent":             reflect.ValueOf((*Agent)(nil)),
		"Message":           reflect.ValueOf((*domain.Message)(nil)),
		"ChatMessage":       reflect.ValueOf((*domain.ChatMessage)(nil)),
		"ChatResponse":      reflect.ValueOf((*domain.ChatResponse)(nil)),
		"CompletionOptions": reflect.ValueOf((*domain.CompletionOptions)(nil)),
		"CommandResult":     reflect.ValueOf((*domain.CommandResult)(nil)),
		"VectorResult":      reflect.ValueOf((*domain.VectorResult)(nil)),
		"RoleUser":          reflect.ValueOf(domain.RoleUser),
		"RoleAgent":         reflect.ValueOf(domain.RoleAgent),
		"RoleSystem":        reflect.ValueOf(domain.RoleSystem),
		"RoleTool":          reflect.ValueOf(domain.RoleTool),
		"ChatMessages":      reflect.ValueOf(domain.ChatMessages),
	},
}

// InterpreterRunner evaluates a Go source entry point with yaegi. The
// script must define func Run(context.Context, aihub.RunContext) error.
type InterpreterRunner struct {
	logger *slog.Logger
}

// NewInterpreterRunner creates an interpreter runner.
func NewInterpreterRunner(logger *slog.Logger) *InterpreterRunner {
	return &InterpreterRunner{logger: logger}
}

func (r *InterpreterRunner) Name() string { return "interpreter" }

func (r *InterpreterRunner) Run(ctx context.Context, entryPath string, rc RunContext) error {
	src, err := os.ReadFile(entryPath)
	if err != nil {
		return fmt.Errorf("read entry point: %w", err)
	}

	out := logWriter(rc.Env.AgentLogger(), "stdout")
	prog, err := script.Compile(ctx, entryPath, string(src), script.Options{
		Symbols: Symbols,
		Env:     envList(rc.Vars),
		Stdout:  out,
		Stderr:  logWriter(rc.Env.AgentLogger(), "stderr"),
	})
	if err != nil {
		return err
	}
	v, err := prog.Func("Run")
	if err != nil {
		return err
	}
	fn, ok := v.Interface().(func(context.Context, RunContext) error)
	if !ok {
		return domain.NewSubSystemError("agent", "InterpreterRunner.Run", domain.ErrEntryPointMissing,
			fmt.Sprintf("Run has signature %s, want func(context.Context, aihub.RunContext) error", v.Type()))
	}
	return fn(ctx, rc)
}

// WasmRunner runs a WASI command module. The sandbox root is mounted at
// "/", the task arrives on stdin and as argv[1], vars become the module's
// environment, and anything written to stdout is recorded as the agent's
// reply.
type WasmRunner struct {
	memoryPages uint32
	logger      *slog.Logger
}

// NewWasmRunner creates a WASM runner with the given memory cap.
func NewWasmRunner(memoryPages uint32, logger *slog.Logger) *WasmRunner {
	return &WasmRunner{memoryPages: memoryPages, logger: logger}
}

func (r *WasmRunner) Name() string { return "wasm" }

func (r *WasmRunner) Run(ctx context.Context, entryPath string, rc RunContext) error {
	module, err := os.ReadFile(entryPath)
	if err != nil {
		return fmt.Errorf("read entry point: %w", err)
	}

	rt, err := wasm.NewRuntime(ctx, wasm.RuntimeConfig{MaxMemoryPages: r.memoryPages}, r.logger)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	var stdout bytes.Buffer
	code, err := rt.Exec(ctx, module, wasm.Invocation{
		Name:     rc.Agent.Metadata.Name,
		Args:     []string{rc.Task},
		Env:      rc.Vars,
		Stdin:    strings.NewReader(rc.Task),
		Stdout:   &stdout,
		Stderr:   logWriter(rc.Env.AgentLogger(), "stderr"),
		MountDir: rc.Env.GetPath(),
	})
	if out := strings.TrimSpace(stdout.String()); out != "" {
		if rerr := rc.Env.AddReply(out); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("%w: %s exited with code %d", domain.ErrToolExecution, rc.Agent.Identifier(), code)
	}
	return nil
}

func envList(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// lineLogger forwards each written line to a logger.
type lineLogger struct {
	logger *slog.Logger
	stream string
	buf    []byte
}

func logWriter(logger *slog.Logger, stream string) io.Writer {
	if logger == nil {
		return io.Discard
	}
	return &lineLogger{logger: logger, stream: stream}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logger.Info(string(w.buf[:i]), "stream", w.stream)
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

var (
	_ Runner = FuncRunner(nil)
	_ Runner = (*InterpreterRunner)(nil)
	_ Runner = (*WasmRunner)(nil)
)
