package domain

// Transcript roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleTool   = "tool"

	// RoleAssistant is the wire name the completion API uses for RoleAgent.
	RoleAssistant = "assistant"
)

// Metadata keys attached to tool-role transcript messages.
const (
	MetaToolCallID = "tool_call_id"
	MetaName       = "name"
)

// Message is one transcript record. It is immutable once appended.
type Message struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"-"`
}

// ToChat converts a transcript message into the completion wire shape.
func (m Message) ToChat() ChatMessage {
	cm := ChatMessage{Role: m.Role, Content: m.Content}
	if m.Role == RoleAgent {
		cm.Role = RoleAssistant
	}
	if id, ok := m.Metadata[MetaToolCallID].(string); ok {
		cm.ToolCallID = id
	}
	if name, ok := m.Metadata[MetaName].(string); ok {
		cm.Name = name
	}
	return cm
}

// ChatMessages converts a transcript slice for a completion request.
func ChatMessages(msgs []Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ToChat())
	}
	return out
}

// ChatMessage is a message in the completion API's shape.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a model's request to invoke a tool. Arguments is the raw,
// possibly malformed, JSON text produced by the model.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the tool and carries its argument text.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatRequest is sent to an LLM provider.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Tools       []ToolSchema  `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatResponse is returned from an LLM provider.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// FirstMessage returns choices[0].message, or a zero message when the
// response carries no choices.
func (r *ChatResponse) FirstMessage() ChatMessage {
	if r == nil || len(r.Choices) == 0 {
		return ChatMessage{}
	}
	return r.Choices[0].Message
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
