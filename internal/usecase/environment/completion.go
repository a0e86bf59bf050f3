package environment

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/trace"

	"aihub/internal/adapter/tool"
	"aihub/internal/domain"
	"aihub/internal/infra/tracer"
)

// DefaultMaxRetries is used when Options.MaxRetries is zero.
const DefaultMaxRetries = 2

var (
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 8 * time.Second
)

// retryBackoff computes exponential backoff with jitter.
func retryBackoff(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Add 0-25% jitter.
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}

// Completion returns the text of the first choice.
func (e *Environment) Completion(ctx context.Context, messages []domain.ChatMessage, opts domain.CompletionOptions) (string, error) {
	resp, err := e.Completions(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	return resp.FirstMessage().Content, nil
}

// Completions requests a completion without tools. Zero option fields take
// the primary agent's defaults.
func (e *Environment) Completions(ctx context.Context, messages []domain.ChatMessage, opts domain.CompletionOptions) (*domain.ChatResponse, error) {
	return e.complete(ctx, messages, opts, nil)
}

// CompletionsAndRunTools requests a completion with every registered tool
// attached, then runs each tool call in the response once. Non-empty tool
// results are appended to the transcript as tool messages. Tool outputs
// are not sent back to the model.
func (e *Environment) CompletionsAndRunTools(ctx context.Context, messages []domain.ChatMessage, opts domain.CompletionOptions) (*domain.ChatResponse, error) {
	resp, err := e.complete(ctx, messages, opts, e.tools.DescribeAll())
	if err != nil {
		return nil, err
	}
	for _, call := range resp.FirstMessage().ToolCalls {
		if err := e.runToolCall(ctx, call); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (e *Environment) runToolCall(ctx context.Context, call domain.ToolCall) error {
	name := call.Function.Name
	if name == "" {
		return domain.NewDomainError("Environment.CompletionsAndRunTools", domain.ErrEmptyToolName,
			fmt.Sprintf("tool call %q", call.ID))
	}

	ctx, span := tracer.StartSpan(ctx, "environment.tool_call",
		trace.WithAttributes(
			tracer.StringAttr("tool.name", name),
			tracer.StringAttr("tool.call_id", call.ID),
		),
	)
	defer span.End()

	schema, ok := e.tools.Describe(name)
	if !ok {
		err := domain.NewSubSystemError("tool", "Environment.CompletionsAndRunTools", domain.ErrToolNotFound, name)
		tracer.RecordError(span, err)
		return err
	}
	args, err := tool.ParseArguments(schema, call.Function.Arguments)
	if err != nil {
		tracer.RecordError(span, err)
		e.SystemLogger().Error("tool arguments rejected", "tool", name, "arguments", call.Function.Arguments, "error", err)
		return err
	}
	args = tool.CoerceArguments(schema, args)
	if e.opts.ValidateArguments {
		if err := e.tools.Validate(name, args); err != nil {
			tracer.RecordError(span, err)
			return err
		}
	}

	e.SystemLogger().Info("tool call", "tool", name, "id", call.ID)
	result, err := e.tools.Call(ctx, name, args)
	if err != nil {
		tracer.RecordError(span, err)
		e.SystemLogger().Error("tool call failed", "tool", name, "error", err)
		return err
	}
	tracer.SetOK(span)

	if isEmptyResult(result) {
		return nil
	}
	content, err := resultText(result)
	if err != nil {
		return domain.WrapOp("Environment.CompletionsAndRunTools", err)
	}
	return e.AddMessage(domain.RoleTool, content, map[string]any{
		domain.MetaToolCallID: call.ID,
		domain.MetaName:       name,
	})
}

func (e *Environment) complete(ctx context.Context, messages []domain.ChatMessage, opts domain.CompletionOptions, tools []domain.ToolSchema) (*domain.ChatResponse, error) {
	if e.deps.Providers == nil {
		return nil, domain.NewDomainError("Environment.Completions", domain.ErrProviderNotFound, "no completion providers configured")
	}
	opts = e.withDefaults(opts)
	provider, err := e.deps.Providers.Get(opts.Provider)
	if err != nil {
		return nil, err
	}

	req := domain.ChatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      opts.Stream,
	}

	maxRetries := e.opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	sys := e.SystemLogger()
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := provider.Chat(ctx, req)
		if err == nil {
			sys.Info("completion", "provider", provider.Name(), "model", resp.Model,
				"messages", len(messages), "tools", len(tools), "total_tokens", resp.Usage.TotalTokens)
			return resp, nil
		}
		lastErr = err
		if !domain.IsRetryableError(err) || attempt == maxRetries {
			break
		}

		delay := retryBackoff(attempt)
		sys.Warn("retrying completion after error", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	sys.Error("completion failed", "provider", provider.Name(), "error", lastErr)
	return nil, lastErr
}

func (e *Environment) withDefaults(opts domain.CompletionOptions) domain.CompletionOptions {
	d := e.PrimaryAgent().Defaults()
	if opts.Model == "" {
		opts.Model = d.Model
	}
	if opts.Provider == "" {
		opts.Provider = d.ModelProvider
	}
	if opts.Temperature == 0 {
		opts.Temperature = d.ModelTemperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = d.ModelMaxTokens
	}
	return opts
}

// QueryVectorStore searches a vector store.
func (e *Environment) QueryVectorStore(ctx context.Context, vectorStoreID, query string) ([]domain.VectorResult, error) {
	if e.deps.VectorStore == nil {
		return nil, domain.NewDomainError("Environment.QueryVectorStore", domain.ErrVectorStoreUnavailable, "no vector store configured")
	}
	results, err := e.deps.VectorStore.Query(ctx, vectorStoreID, query)
	if err != nil {
		return nil, err
	}
	e.SystemLogger().Info("vector store query", "vector_store_id", vectorStoreID, "results", len(results))
	return results, nil
}

// isEmptyResult reports results that are not worth a transcript entry:
// nil, zero scalars and empty strings, slices and maps.
func isEmptyResult(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.IsZero()
	}
	return false
}

func resultText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(data), nil
}
