package environment

import (
	"fmt"
	"sort"

	"aihub/internal/domain"
)

// AddMessage appends a message to chat.txt. Metadata keys become extra
// fields of the record, written after role and content in sorted order.
func (e *Environment) AddMessage(role, content string, metadata map[string]any) error {
	fields := []Field{{Key: "role", Value: role}, {Key: "content", Value: content}}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		if k == "role" || k == "content" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: metadata[k]})
	}

	if err := e.chat.Append(fields...); err != nil {
		return domain.WrapOp("Environment.AddMessage", err)
	}
	return nil
}

// AddReply appends an agent message.
func (e *Environment) AddReply(content string) error {
	return e.AddMessage(domain.RoleAgent, content, nil)
}

// ListMessages returns the transcript in append order.
func (e *Environment) ListMessages() ([]domain.Message, error) {
	return readMessages(e.chat)
}

// ListMessagesFrom reads messages from another transcript file inside the
// sandbox.
func (e *Environment) ListMessagesFrom(filename string) ([]domain.Message, error) {
	if filename == "" {
		return e.ListMessages()
	}
	path, err := e.box.Resolve(filename)
	if err != nil {
		return nil, err
	}
	if path == e.chat.Path() {
		return e.ListMessages()
	}
	return readMessages(NewJSONLog(path))
}

// GetLastMessage returns the most recent message with the given role, or
// the most recent message of any role when role is empty. It returns nil
// when there is none.
func (e *Environment) GetLastMessage(role string) (*domain.Message, error) {
	msgs, err := e.ListMessages()
	if err != nil {
		return nil, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if role == "" || msgs[i].Role == role {
			m := msgs[i]
			return &m, nil
		}
	}
	return nil, nil
}

func readMessages(log *JSONLog) ([]domain.Message, error) {
	records, err := log.Records()
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(records))
	for _, rec := range records {
		m := domain.Message{}
		if role, ok := rec["role"].(string); ok {
			m.Role = role
		}
		switch c := rec["content"].(type) {
		case string:
			m.Content = c
		case nil:
		default:
			m.Content = fmt.Sprint(c)
		}
		for k, v := range rec {
			if k == "role" || k == "content" {
				continue
			}
			if m.Metadata == nil {
				m.Metadata = map[string]any{}
			}
			m.Metadata[k] = v
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
