package tool

import (
	"context"
	"encoding/json"
	"time"

	"aihub/internal/domain"
)

// DefaultRemoteTimeout bounds a single remote tool invocation.
const DefaultRemoteTimeout = 30 * time.Second

// RemoteDescriptor describes a tool whose implementation lives outside the
// process. InputSchema is advertised verbatim.
type RemoteDescriptor struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// RemoteInvoker performs the call on the remote side.
type RemoteInvoker func(ctx context.Context, name string, args map[string]any) (any, error)

// RemoteTool forwards calls to a RemoteInvoker.
type RemoteTool struct {
	desc    RemoteDescriptor
	invoke  RemoteInvoker
	timeout time.Duration
}

// NewRemoteTool wraps an external tool. A zero timeout uses DefaultRemoteTimeout.
func NewRemoteTool(desc RemoteDescriptor, invoke RemoteInvoker, timeout time.Duration) *RemoteTool {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteTool{desc: desc, invoke: invoke, timeout: timeout}
}

func (t *RemoteTool) Name() string        { return t.desc.Name }
func (t *RemoteTool) Description() string { return t.desc.Description }

func (t *RemoteTool) Schema() domain.ToolSchema {
	raw := t.desc.InputSchema
	if len(raw) == 0 {
		raw = json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
	}
	return domain.ToolSchema{Name: t.desc.Name, Description: t.desc.Description, Raw: raw}
}

// Call runs the invoker on its own goroutine and waits for either the
// result or the deadline, so an invoker that ignores ctx cannot stall the
// caller.
func (t *RemoteTool) Call(ctx context.Context, args map[string]any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := t.invoke(callCtx, t.desc.Name, args)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, &domain.ToolExecutionError{Tool: t.desc.Name, Arguments: args, Err: o.err}
		}
		return o.result, nil
	case <-callCtx.Done():
		return nil, &domain.ToolExecutionError{Tool: t.desc.Name, Arguments: args, Err: callCtx.Err()}
	}
}

// RegisterRemote registers an external tool. The descriptor's schema is
// stored as given.
func (r *Registry) RegisterRemote(desc RemoteDescriptor, invoke RemoteInvoker) {
	r.Register(NewRemoteTool(desc, invoke, 0))
}
