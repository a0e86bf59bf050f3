package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentMetadataDecode(t *testing.T) {
	raw := `{
		"namespace": "jdoe",
		"name": "weather",
		"version": "0.1.0",
		"details": {
			"agent": {
				"defaults": {
					"model": "llama-v3p1-70b-instruct",
					"model_provider": "fireworks",
					"model_temperature": 0.7,
					"model_max_tokens": 4000,
					"max_iterations": 3
				},
				"welcome": {"title": "Weather", "description": "Ask me about the weather"}
			},
			"env_vars": {"UNITS": "metric"}
		}
	}`

	var m AgentMetadata
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.NoError(t, m.Validate())

	assert.Equal(t, "jdoe/weather/0.1.0", m.Identifier())
	assert.Equal(t, "fireworks", m.Details.Agent.Defaults.ModelProvider)
	assert.Equal(t, 0.7, m.Details.Agent.Defaults.ModelTemperature)
	assert.Equal(t, 4000, m.Details.Agent.Defaults.ModelMaxTokens)
	assert.Equal(t, 3, m.Details.Agent.Defaults.MaxIterations)
	assert.Equal(t, "Weather", m.Details.Agent.Welcome.Title)
	assert.Equal(t, "metric", m.Details.EnvVars["UNITS"])
}

func TestAgentMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    AgentMetadata
		wantErr bool
	}{
		{"complete", AgentMetadata{Name: "a", Version: "1"}, false},
		{"no name", AgentMetadata{Version: "1"}, true},
		{"blank version", AgentMetadata{Name: "a", Version: "  "}, true},
		{"empty", AgentMetadata{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingMetadata))
		})
	}
}
