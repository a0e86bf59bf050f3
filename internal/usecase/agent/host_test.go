package agent

import (
	"context"
	"log/slog"

	"aihub/internal/domain"
)

// fakeHost records what an entry point does to its environment.
type fakeHost struct {
	path     string
	messages []domain.Message
	done     bool
	asked    bool
}

func (h *fakeHost) GetPath() string { return h.path }

func (h *fakeHost) AddMessage(role, content string, metadata map[string]any) error {
	h.messages = append(h.messages, domain.Message{Role: role, Content: content, Metadata: metadata})
	return nil
}

func (h *fakeHost) AddReply(content string) error {
	return h.AddMessage(domain.RoleAgent, content, nil)
}

func (h *fakeHost) ListMessages() ([]domain.Message, error) { return h.messages, nil }

func (h *fakeHost) GetLastMessage(role string) (*domain.Message, error) {
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].Role == role {
			m := h.messages[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (h *fakeHost) ListFiles(string) ([]string, error) { return nil, nil }
func (h *fakeHost) ReadFile(string) (string, error)    { return "", nil }
func (h *fakeHost) WriteFile(string, string) error     { return nil }

func (h *fakeHost) ExecCommand(_ context.Context, command string) (domain.CommandResult, error) {
	return domain.CommandResult{Command: command, Msg: domain.MsgCompleted}, nil
}

func (h *fakeHost) Completion(context.Context, []domain.ChatMessage, domain.CompletionOptions) (string, error) {
	return "completion", nil
}

func (h *fakeHost) Completions(context.Context, []domain.ChatMessage, domain.CompletionOptions) (*domain.ChatResponse, error) {
	return &domain.ChatResponse{}, nil
}

func (h *fakeHost) CompletionsAndRunTools(context.Context, []domain.ChatMessage, domain.CompletionOptions) (*domain.ChatResponse, error) {
	return &domain.ChatResponse{}, nil
}

func (h *fakeHost) QueryVectorStore(context.Context, string, string) ([]domain.VectorResult, error) {
	return nil, nil
}

func (h *fakeHost) RequestUserInput() error { h.asked = true; return nil }
func (h *fakeHost) MarkDone() error         { h.done = true; return nil }

func (h *fakeHost) AgentLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

var _ Host = (*fakeHost)(nil)
