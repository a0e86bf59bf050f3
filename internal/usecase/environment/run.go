package environment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"aihub/internal/domain"
	"aihub/internal/infra/tracer"
	"aihub/internal/usecase/agent"
)

// Status is how a run ended.
type Status string

const (
	StatusAwaitingUser    Status = "awaiting_user"
	StatusDone            Status = "done"
	StatusBudgetExhausted Status = "budget_exhausted"
)

// RunResult reports one call to Run.
type RunResult struct {
	RunID      string `json:"run_id"`
	Status     Status `json:"status"`
	Iterations int    `json:"iterations"`
}

// Run appends newMessage (when non-empty) as a user message, hands control
// to the agent and invokes the primary agent until it requests user input,
// marks the run done, or maxIterations invocations have happened. A
// maxIterations of zero or less uses the primary agent's default.
//
// Agent errors end the run and are returned with the partial result.
func (e *Environment) Run(ctx context.Context, newMessage string, maxIterations int) (RunResult, error) {
	res := RunResult{RunID: newRunID()}
	if maxIterations <= 0 {
		maxIterations = e.PrimaryAgent().Defaults().MaxIterations
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	ctx = domain.ContextWithRunID(ctx, res.RunID)
	ctx, span := tracer.StartSpan(ctx, "environment.run",
		trace.WithAttributes(
			tracer.StringAttr("agent.id", e.PrimaryAgent().Identifier()),
			tracer.IntAttr("run.max_iterations", maxIterations),
		),
	)
	defer span.End()

	if e.IsDone() {
		res.Status = StatusDone
		tracer.SetOK(span)
		return res, nil
	}

	if newMessage != "" {
		if err := e.AddMessage(domain.RoleUser, newMessage, nil); err != nil {
			tracer.RecordError(span, err)
			return res, err
		}
	}
	if err := e.SetNextActor(ActorAgent); err != nil {
		tracer.RecordError(span, err)
		return res, err
	}
	e.SystemLogger().Info("run started", "run_id", res.RunID, "max_iterations", maxIterations)

	primary := e.PrimaryAgent()
	runOpts := agent.RunOptions{
		Vars:            e.opts.Vars,
		ApplyProcessEnv: e.opts.ApplyProcessEnv,
		ChangeDir:       e.opts.ChangeDir,
	}
	for res.Iterations < maxIterations && !e.IsDone() && e.GetNextActor() == ActorAgent {
		res.Iterations++
		e.logger.Debug("run iteration", "run_id", res.RunID, "iteration", res.Iterations)

		iterCtx, iterSpan := tracer.StartSpan(ctx, "environment.iteration",
			trace.WithAttributes(tracer.IntAttr("run.iteration", res.Iterations)),
		)
		err := primary.Run(iterCtx, e, newMessage, runOpts)
		if err != nil {
			tracer.RecordError(iterSpan, err)
			iterSpan.End()
			tracer.RecordError(span, err)
			e.SystemLogger().Error("agent run failed", "run_id", res.RunID, "iteration", res.Iterations, "error", err)
			res.Status = e.status()
			return res, err
		}
		iterSpan.End()
	}

	res.Status = e.status()
	span.SetAttributes(
		tracer.IntAttr("run.iterations", res.Iterations),
		tracer.StringAttr("run.status", string(res.Status)),
	)
	tracer.SetOK(span)
	e.SystemLogger().Info("run finished", "run_id", res.RunID, "status", string(res.Status), "iterations", res.Iterations)
	return res, nil
}

func (e *Environment) status() Status {
	switch {
	case e.IsDone():
		return StatusDone
	case e.GetNextActor() == ActorUser:
		return StatusAwaitingUser
	default:
		return StatusBudgetExhausted
	}
}

// RequestUserInput yields control to the user.
func (e *Environment) RequestUserInput() error {
	return e.SetNextActor(ActorUser)
}

// MarkDone ends the run. Later calls to Run return immediately.
func (e *Environment) MarkDone() error {
	e.mu.Lock()
	e.done = true
	e.mu.Unlock()
	e.SystemLogger().Info("run marked done")
	return nil
}

// IsDone reports whether MarkDone was called.
func (e *Environment) IsDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// GetNextActor reads the next-action marker. A missing or unreadable
// marker means the user acts next.
func (e *Environment) GetNextActor() string {
	data, err := os.ReadFile(filepath.Join(e.box.Root(), NextActionFile))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("read next action", "error", err)
		}
		return ActorUser
	}
	if actor := strings.TrimSpace(string(data)); actor != "" {
		return actor
	}
	return ActorUser
}

// SetNextActor persists the next-action marker.
func (e *Environment) SetNextActor(actor string) error {
	if actor != ActorUser && actor != ActorAgent {
		return domain.NewDomainError("Environment.SetNextActor", domain.ErrInvalidInput,
			fmt.Sprintf("unknown actor %q", actor))
	}
	if err := os.WriteFile(filepath.Join(e.box.Root(), NextActionFile), []byte(actor), 0o644); err != nil {
		return fmt.Errorf("write next action: %w", err)
	}
	return nil
}
