package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError listing every problem found.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateRuntime(cfg, ve)
	validateLLM(cfg, ve)
	validateTools(cfg, ve)
	validateVectorStore(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateRuntime(cfg *Config, ve *ValidationError) {
	if cfg.Runtime.MaxIterations <= 0 {
		ve.Add("runtime.max_iterations must be > 0")
	}
	if cfg.Runtime.ExecTimeout <= 0 {
		ve.Add("runtime.exec_timeout must be > 0")
	}
	if cfg.Runtime.WasmMemoryPages == 0 || cfg.Runtime.WasmMemoryPages > 65536 {
		ve.Add("runtime.wasm_memory_pages must be 1-65536")
	}
}

var validProviderTypes = map[string]bool{
	"openai":     true,
	"openrouter": true,
	"fireworks":  true,
	"ollama":     true,
	"bedrock":    true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}
	if cfg.LLM.RequestsPerSecond < 0 {
		ve.Add("llm.requests_per_second must be >= 0")
	}
	if cfg.LLM.RequestsPerSecond > 0 && cfg.LLM.Burst <= 0 {
		ve.Add("llm.burst must be > 0 when requests_per_second is set")
	}
	if cfg.LLM.CircuitBreaker.Enabled && cfg.LLM.CircuitBreaker.MaxFailures == 0 {
		ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
	}

	seen := make(map[string]bool)
	foundDefault := false
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: openai, openrouter, fireworks, ollama, bedrock)", i, p.Type)
		}
		if p.BaseURL != "" {
			if err := validateURL(p.BaseURL); err != nil {
				ve.Add("llm.providers[%d] (%s): base_url %v", i, p.Name, err)
			}
		}
		if p.Type == "bedrock" && p.Model == "" {
			ve.Add("llm.providers[%d] (%s): bedrock requires a model id", i, p.Name)
		}
		if p.Name == cfg.LLM.DefaultProvider {
			foundDefault = true
		}
	}
	if !foundDefault && cfg.LLM.DefaultProvider != "" && len(cfg.LLM.Providers) > 0 {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}
}

func validateTools(cfg *Config, ve *ValidationError) {
	if cfg.Tools.ExecPerMinute < 0 {
		ve.Add("tools.exec_per_minute must be >= 0")
	}
	seen := make(map[string]bool)
	for i, srv := range cfg.Tools.MCPServers {
		if srv.Name == "" {
			ve.Add("tools.mcp_servers[%d].name must not be empty", i)
		} else if seen[srv.Name] {
			ve.Add("tools.mcp_servers[%d]: duplicate name %q", i, srv.Name)
		}
		seen[srv.Name] = true

		switch srv.Transport {
		case "stdio":
			if srv.Command == "" {
				ve.Add("tools.mcp_servers[%d] (%s): command is required for stdio", i, srv.Name)
			}
		case "http":
			if err := validateURL(srv.URL); err != nil {
				ve.Add("tools.mcp_servers[%d] (%s): url %v", i, srv.Name, err)
			}
		default:
			ve.Add("tools.mcp_servers[%d] (%s): transport %q is invalid (want: stdio, http)", i, srv.Name, srv.Transport)
		}
	}
}

func validateVectorStore(cfg *Config, ve *ValidationError) {
	if cfg.VectorStore.BaseURL == "" {
		return
	}
	if err := validateURL(cfg.VectorStore.BaseURL); err != nil {
		ve.Add("vector_store.base_url %v", err)
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	case "file":
		if cfg.Tracer.Endpoint == "" {
			ve.Add("tracer.endpoint must name a file when exporter is file")
		}
	default:
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout, file)", cfg.Tracer.Exporter)
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	return nil
}
