package domain

import (
	"fmt"
	"strings"
)

// MetadataFile is the descriptor every agent directory carries.
const MetadataFile = "metadata.json"

// AgentMetadata is the decoded agent descriptor.
type AgentMetadata struct {
	Namespace   string       `json:"namespace,omitempty"`
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Details     AgentDetails `json:"details"`
}

// AgentDetails holds the nested agent-specific settings.
type AgentDetails struct {
	Agent   AgentSettings     `json:"agent"`
	EnvVars map[string]string `json:"env_vars,omitempty"`
}

// AgentSettings groups run defaults, welcome text and the entry point.
type AgentSettings struct {
	Defaults   AgentDefaults `json:"defaults"`
	Welcome    AgentWelcome  `json:"welcome"`
	EntryPoint string        `json:"entry_point,omitempty"`
}

// AgentDefaults are the model and loop defaults declared by an agent.
type AgentDefaults struct {
	Model            string  `json:"model,omitempty"`
	ModelProvider    string  `json:"model_provider,omitempty"`
	ModelTemperature float64 `json:"model_temperature,omitempty"`
	ModelMaxTokens   int     `json:"model_max_tokens,omitempty"`
	MaxIterations    int     `json:"max_iterations,omitempty"`
}

// AgentWelcome is optional text shown before the first user turn.
type AgentWelcome struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Identifier returns "namespace/name/version".
func (m AgentMetadata) Identifier() string {
	return strings.Join([]string{m.Namespace, m.Name, m.Version}, "/")
}

// Validate reports missing required keys.
func (m AgentMetadata) Validate() error {
	var missing []string
	if strings.TrimSpace(m.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(m.Version) == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return NewSubSystemError("agent", "AgentMetadata.Validate", ErrMissingMetadata,
			fmt.Sprintf("missing %s", strings.Join(missing, ", ")))
	}
	return nil
}
