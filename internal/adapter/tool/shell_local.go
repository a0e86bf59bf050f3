package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mattn/go-shellwords"
	"go.opentelemetry.io/otel/trace"

	"aihub/internal/domain"
	"aihub/internal/infra/tracer"
)

// DefaultExecTimeout is how long a command may run before the watchdog
// kills it and its descendants.
const DefaultExecTimeout = 2 * time.Second

// LocalCommandBackend executes commands directly on the host. The command
// line is split into argv with shell quoting rules but is not passed to a
// shell.
type LocalCommandBackend struct {
	timeout  time.Duration
	denylist []string
	quota    *ExecQuota
	logger   *slog.Logger
}

// NewLocalCommandBackend creates a backend with the given watchdog timeout.
// Commands whose program name appears in denylist are refused.
func NewLocalCommandBackend(timeout time.Duration, denylist []string, logger *slog.Logger) *LocalCommandBackend {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LocalCommandBackend{timeout: timeout, denylist: denylist, logger: logger}
}

// WithRateLimit refuses commands beyond limit per window. A limit of zero
// or less removes the cap.
func (b *LocalCommandBackend) WithRateLimit(limit int, window time.Duration) *LocalCommandBackend {
	if limit <= 0 {
		b.quota = nil
		return b
	}
	b.quota = NewExecQuota(limit, window)
	return b
}

// Remaining reports how many more commands the quota admits right now, or
// -1 when there is no quota.
func (b *LocalCommandBackend) Remaining() int {
	if b.quota == nil {
		return -1
	}
	return b.quota.Remaining()
}

func (b *LocalCommandBackend) Name() string { return "local" }

func (b *LocalCommandBackend) Run(ctx context.Context, command, workDir string) (domain.CommandResult, error) {
	res := domain.CommandResult{Command: command}

	argv, err := shellwords.Parse(command)
	if err != nil {
		return res, domain.NewDomainError("exec_command", domain.ErrInvalidInput, err.Error())
	}
	if len(argv) == 0 {
		return res, domain.NewDomainError("exec_command", domain.ErrInvalidInput, "empty command")
	}
	for _, denied := range b.denylist {
		if argv[0] == denied {
			return res, domain.NewDomainError("exec_command", domain.ErrInvalidInput,
				fmt.Sprintf("command %q is not allowed", denied))
		}
	}

	if err := ctx.Err(); err != nil {
		return res, domain.WrapOp("exec_command", err)
	}
	if b.quota != nil {
		if refused, ok := b.quota.Admit(); !ok {
			b.logger.Debug("command refused by quota", "command", command, "retry_in", refused.RetryIn)
			return res, domain.NewDomainError("exec_command", domain.ErrRateLimit, refused.String())
		}
	}

	_, span := tracer.StartSpan(ctx, "tool.exec_command",
		trace.WithAttributes(tracer.StringAttr("exec.program", argv[0])),
	)
	defer span.End()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.Dir = workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 250 * time.Millisecond
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		res.Stderr = err.Error()
		res.ReturnCode = 127
		res.Msg = domain.MsgStartError
		tracer.RecordError(span, err)
		return res, nil
	}

	// The watchdog runs on its own timer goroutine and kills the whole
	// process group; Wait then returns with whatever output was captured.
	var timedOut atomic.Bool
	done := make(chan struct{})
	watchdog := time.AfterFunc(b.timeout, func() {
		select {
		case <-done:
		default:
			timedOut.Store(true)
			if err := killProcessGroup(cmd); err != nil {
				b.logger.Debug("kill process group", "command", command, "error", err)
			}
		}
	})
	waitErr := cmd.Wait()
	close(done)
	watchdog.Stop()

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.ReturnCode = exitCode(cmd)
	res.Msg = domain.MsgCompleted
	if timedOut.Load() {
		res.Msg = domain.MsgTimedOut
		b.logger.Debug("command timed out", "command", command, "timeout", b.timeout)
	}

	if err := ctx.Err(); err != nil && !timedOut.Load() {
		res.Msg = domain.MsgCanceled
		tracer.RecordError(span, err)
		return res, domain.WrapOp("exec_command", err)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		res.Stderr = strings.TrimSpace(res.Stderr + "\n" + waitErr.Error())
	}
	tracer.SetOK(span)
	return res, nil
}

var _ CommandBackend = (*LocalCommandBackend)(nil)
