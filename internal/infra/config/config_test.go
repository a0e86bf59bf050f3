package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Runtime.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10", cfg.Runtime.MaxIterations)
	}
	if cfg.Runtime.ExecTimeout != 2*time.Second {
		t.Errorf("ExecTimeout = %v, want 2s", cfg.Runtime.ExecTimeout)
	}
	if !cfg.Runtime.ChangeDir {
		t.Error("ChangeDir should default to true")
	}
	if cfg.Runtime.ApplyProcessEnv {
		t.Error("ApplyProcessEnv should default to false")
	}
	if cfg.LLM.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q, want openai", cfg.LLM.DefaultProvider)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runtime.MaxIterations != 10 {
		t.Errorf("expected defaults, got MaxIterations=%d", cfg.Runtime.MaxIterations)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
runtime:
  max_iterations: 25
  exec_timeout: 5s
  apply_process_env: true
llm:
  default_provider: "fireworks"
  requests_per_second: 2
  burst: 4
  providers:
    - name: "fireworks"
      type: "fireworks"
      base_url: "https://api.fireworks.ai/inference/v1"
      api_key: "fw-key"
      model: "llama-v3p1-70b-instruct"
tools:
  validate_arguments: true
  mcp_servers:
    - name: fs
      transport: stdio
      command: mcp-fs
logger:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runtime.MaxIterations != 25 {
		t.Errorf("MaxIterations = %d, want 25", cfg.Runtime.MaxIterations)
	}
	if cfg.Runtime.ExecTimeout != 5*time.Second {
		t.Errorf("ExecTimeout = %v, want 5s", cfg.Runtime.ExecTimeout)
	}
	if !cfg.Runtime.ApplyProcessEnv {
		t.Error("ApplyProcessEnv should be true")
	}
	if !cfg.Runtime.ChangeDir {
		t.Error("ChangeDir default should survive a partial runtime section")
	}
	p, ok := cfg.Provider("fireworks")
	if !ok || p.APIKey != "fw-key" {
		t.Errorf("Provider(fireworks) = %+v, %v", p, ok)
	}
	if len(cfg.Tools.MCPServers) != 1 || cfg.Tools.MCPServers[0].Command != "mcp-fs" {
		t.Errorf("MCPServers = %+v", cfg.Tools.MCPServers)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("runtime: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logger:\n  level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0o666); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected permission error for world-writable config")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("AIHUB_RUNTIME_MAX_ITERATIONS", "3")
	t.Setenv("AIHUB_RUNTIME_EXEC_TIMEOUT", "750ms")
	t.Setenv("AIHUB_RUNTIME_CHANGE_DIR", "false")
	t.Setenv("AIHUB_TOOLS_EXEC_DENYLIST", "rm, shutdown ,")
	t.Setenv("AIHUB_LLM_PROVIDER_OPENAI_API_KEY", "sk-env")
	t.Setenv("AIHUB_LOGGER_LEVEL", "warn")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	if cfg.Runtime.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want 3", cfg.Runtime.MaxIterations)
	}
	if cfg.Runtime.ExecTimeout != 750*time.Millisecond {
		t.Errorf("ExecTimeout = %v", cfg.Runtime.ExecTimeout)
	}
	if cfg.Runtime.ChangeDir {
		t.Error("ChangeDir should be false")
	}
	if len(cfg.Tools.ExecDenylist) != 2 || cfg.Tools.ExecDenylist[1] != "shutdown" {
		t.Errorf("ExecDenylist = %q", cfg.Tools.ExecDenylist)
	}
	if p, _ := cfg.Provider("openai"); p.APIKey != "sk-env" {
		t.Errorf("APIKey = %q, want sk-env", p.APIKey)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q", cfg.Logger.Level)
	}
}

func TestApplyEnvOverridesIgnoresBadNumbers(t *testing.T) {
	t.Setenv("AIHUB_RUNTIME_MAX_ITERATIONS", "-4")
	t.Setenv("AIHUB_RUNTIME_EXEC_TIMEOUT", "soon")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	if cfg.Runtime.MaxIterations != 10 || cfg.Runtime.ExecTimeout != 2*time.Second {
		t.Errorf("bad values should be ignored, got %d / %v", cfg.Runtime.MaxIterations, cfg.Runtime.ExecTimeout)
	}
}

func TestEncryptDecryptValue(t *testing.T) {
	enc, err := EncryptValue("sk-secret", "passphrase")
	if err != nil {
		t.Fatalf("EncryptValue: %v", err)
	}
	got, err := DecryptValue(enc, "passphrase")
	if err != nil {
		t.Fatalf("DecryptValue: %v", err)
	}
	if got != "sk-secret" {
		t.Errorf("DecryptValue = %q", got)
	}
	if _, err := DecryptValue(enc, "wrong"); err == nil {
		t.Error("expected error for wrong passphrase")
	}
	if _, err := DecryptValue("nocolon", "passphrase"); err == nil {
		t.Error("expected format error")
	}
}

func TestLoadDecryptsSecrets(t *testing.T) {
	enc, err := EncryptValue("sk-real", "k3y")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "vector_store:\n  base_url: https://hub.example.com/v1\n  api_key: \"enc:" + enc + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AIHUB_CONFIG_KEY", "k3y")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VectorStore.APIKey != "sk-real" {
		t.Errorf("VectorStore.APIKey = %q", cfg.VectorStore.APIKey)
	}
}
