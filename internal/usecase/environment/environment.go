// Package environment drives agent runs. An Environment owns a sandbox
// directory, the transcript and terminal logs inside it, a tool registry,
// and the loop that hands control to the primary agent until it asks for
// user input, marks the run done, or the iteration budget runs out.
package environment

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"aihub/internal/adapter/tool"
	"aihub/internal/domain"
	"aihub/internal/infra/logger"
	"aihub/internal/security"
	"aihub/internal/usecase/agent"
)

// Files kept in the sandbox root.
const (
	ChatFile       = "chat.txt"
	TerminalFile   = "terminal.txt"
	NextActionFile = ".next_action"
	SystemLogFile  = "system_log.txt"
	AgentLogFile   = "agent_log.txt"
)

// Actors recorded in the next-action marker.
const (
	ActorUser  = "user"
	ActorAgent = "agent"
)

// DefaultMaxIterations is used when neither the caller nor the primary
// agent sets a budget.
const DefaultMaxIterations = 10

// ProviderSource resolves completion providers by name. An empty name
// selects the default provider.
type ProviderSource interface {
	Get(name string) (domain.LLMProvider, error)
}

// ToolSource contributes extra tools to every environment registry.
type ToolSource interface {
	Register(r *tool.Registry)
}

// Options configures one Environment.
type Options struct {
	// Path is the sandbox root. Empty creates a fresh directory under TempDir.
	Path    string
	TempDir string

	// Vars are run-scoped variables merged over each agent's env_vars.
	Vars            map[string]string
	ChangeDir       bool
	ApplyProcessEnv bool

	ExecTimeout       time.Duration
	ExecDenylist      []string
	ExecPerMinute     int // exec_command calls allowed per minute, 0 = unlimited
	ValidateArguments bool

	// MaxRetries bounds completion retries on rate-limit and server errors.
	MaxRetries int
	// LogLevel applies to system_log.txt and agent_log.txt.
	LogLevel string
	// OwnAgents makes Close unload the agents.
	OwnAgents bool
}

// Deps are the collaborators an Environment calls out to. Any of them
// may be nil; the operations that need a missing one fail.
type Deps struct {
	Providers   ProviderSource
	VectorStore domain.VectorStore
	Commands    tool.CommandBackend
	Tools       []ToolSource
	Logger      *slog.Logger
}

// Environment is the run-scoped context agents act through.
type Environment struct {
	opts   Options
	deps   Deps
	agents []*agent.Agent

	box      *security.Sandbox
	tools    *tool.Registry
	chat     *JSONLog
	terminal *JSONLog
	files    tool.FilesystemBackend
	commands tool.CommandBackend
	logger   *slog.Logger

	mu        sync.Mutex
	systemLog *slog.Logger
	agentLog  *slog.Logger
	closers   []func() error
	done      bool
	closed    bool
}

// New prepares an environment over agents. agents[0] is the primary agent
// whose entry point the run loop invokes.
func New(opts Options, agents []*agent.Agent, deps Deps) (*Environment, error) {
	if len(agents) == 0 {
		return nil, domain.NewDomainError("environment.New", domain.ErrInvalidInput, "at least one agent is required")
	}

	root := opts.Path
	if root == "" {
		dir, err := os.MkdirTemp(opts.TempDir, "aihub-run-*")
		if err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
		root = dir
	}
	box, err := security.NewSandbox(root)
	if err != nil {
		return nil, err
	}

	lg := deps.Logger
	if lg == nil {
		lg = slog.New(slog.DiscardHandler)
	}
	e := &Environment{
		opts:     opts,
		deps:     deps,
		agents:   agents,
		box:      box,
		chat:     NewJSONLog(filepath.Join(box.Root(), ChatFile)),
		terminal: NewJSONLog(filepath.Join(box.Root(), TerminalFile)),
		files:    tool.NewLocalFilesystemBackend(box),
		commands: deps.Commands,
		logger:   lg.With("component", "environment"),
	}
	if e.commands == nil {
		e.commands = tool.NewLocalCommandBackend(opts.ExecTimeout, opts.ExecDenylist, e.logger).
			WithRateLimit(opts.ExecPerMinute, time.Minute)
	}
	if err := e.openLogs(); err != nil {
		return nil, err
	}

	e.tools = tool.NewRegistry(e.logger)
	e.registerBuiltinTools()
	for _, src := range deps.Tools {
		src.Register(e.tools)
	}

	e.logger.Debug("environment ready", "path", box.Root(), "agent", agents[0].Identifier(), "tools", len(e.tools.Names()))
	return e, nil
}

func (e *Environment) openLogs() error {
	sys, closeSys, err := logger.NewFileLogger(filepath.Join(e.box.Root(), SystemLogFile), e.opts.LogLevel)
	if err != nil {
		return err
	}
	ag, closeAg, err := logger.NewFileLogger(filepath.Join(e.box.Root(), AgentLogFile), e.opts.LogLevel)
	if err != nil {
		closeSys()
		return err
	}
	e.mu.Lock()
	e.systemLog, e.agentLog = sys, ag
	e.closers = []func() error{closeSys, closeAg}
	e.mu.Unlock()
	return nil
}

func (e *Environment) closeLogs() error {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	var firstErr error
	for _, c := range closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close releases the log files and, with OwnAgents, unloads the agents.
// The sandbox directory is kept.
func (e *Environment) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	err := e.closeLogs()
	if e.opts.OwnAgents {
		for _, a := range e.agents {
			if uerr := a.Unload(); uerr != nil && err == nil {
				err = uerr
			}
		}
	}
	return err
}

// GetPath returns the sandbox root.
func (e *Environment) GetPath() string { return e.box.Root() }

// Tools returns the environment's tool registry.
func (e *Environment) Tools() *tool.Registry { return e.tools }

// PrimaryAgent returns the agent the run loop invokes.
func (e *Environment) PrimaryAgent() *agent.Agent { return e.agents[0] }

// Agents returns every agent of the run.
func (e *Environment) Agents() []*agent.Agent { return e.agents }

// SystemLogger writes to system_log.txt.
func (e *Environment) SystemLogger() *slog.Logger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.systemLog
}

// AgentLogger writes to agent_log.txt.
func (e *Environment) AgentLogger() *slog.Logger {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agentLog
}

func newRunID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

var _ agent.Host = (*Environment)(nil)
