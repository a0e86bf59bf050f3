package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAccumulates(t *testing.T) {
	cfg := Defaults()
	cfg.Runtime.MaxIterations = 0
	cfg.Runtime.ExecTimeout = 0
	cfg.Logger.Level = "loud"
	cfg.LLM.DefaultProvider = "missing"

	err := Validate(cfg)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(ve.Errors) != 4 {
		t.Errorf("got %d errors, want 4:\n%v", len(ve.Errors), ve)
	}
}

func TestValidateCases(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"bad provider type", func(c *Config) { c.LLM.Providers[0].Type = "vertex" }, "type \"vertex\" is invalid"},
		{"default base url", func(c *Config) { c.LLM.Providers[0].BaseURL = "" }, ""},
		{"bedrock without model", func(c *Config) {
			c.LLM.Providers[0].Type = "bedrock"
			c.LLM.Providers[0].Model = ""
		}, "bedrock requires a model id"},
		{"bad base url", func(c *Config) { c.LLM.Providers[0].BaseURL = "ftp://x" }, "scheme must be http or https"},
		{"duplicate provider", func(c *Config) {
			c.LLM.Providers = append(c.LLM.Providers, c.LLM.Providers[0])
		}, "duplicate provider name"},
		{"rate without burst", func(c *Config) {
			c.LLM.RequestsPerSecond = 1
			c.LLM.Burst = 0
		}, "llm.burst"},
		{"mcp stdio without command", func(c *Config) {
			c.Tools.MCPServers = []MCPServer{{Name: "fs", Transport: "stdio"}}
		}, "command is required"},
		{"mcp bad transport", func(c *Config) {
			c.Tools.MCPServers = []MCPServer{{Name: "fs", Transport: "ws"}}
		}, "transport \"ws\" is invalid"},
		{"file tracer without path", func(c *Config) {
			c.Tracer.Enabled = true
			c.Tracer.Exporter = "file"
		}, "tracer.endpoint"},
		{"wasm pages", func(c *Config) { c.Runtime.WasmMemoryPages = 0 }, "wasm_memory_pages"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
