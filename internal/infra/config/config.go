package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Runtime     RuntimeConfig     `yaml:"runtime"`
	LLM         LLMConfig         `yaml:"llm"`
	Tools       ToolsConfig       `yaml:"tools"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Logger      LoggerConfig      `yaml:"logger"`
	Tracer      TracerConfig      `yaml:"tracer"`
}

// RuntimeConfig controls how agents are loaded and runs are driven.
type RuntimeConfig struct {
	MaxIterations   int           `yaml:"max_iterations"`
	ExecTimeout     time.Duration `yaml:"exec_timeout"`
	ChangeDir       bool          `yaml:"change_dir"`
	ApplyProcessEnv bool          `yaml:"apply_process_env"`
	RegistryDir     string        `yaml:"registry_dir"`
	TempDir         string        `yaml:"temp_dir"`
	WasmMemoryPages uint32        `yaml:"wasm_memory_pages"`
}

// LLMConfig holds completion provider settings.
type LLMConfig struct {
	DefaultProvider   string               `yaml:"default_provider"`
	Providers         []ProviderConfig     `yaml:"providers"`
	CircuitBreaker    CircuitBreakerConfig `yaml:"circuit_breaker"`
	RequestsPerSecond float64              `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int                  `yaml:"burst"`
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for LLM providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single OpenAI-compatible endpoint.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Region      string        `yaml:"region,omitempty"` // bedrock only
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// ToolsConfig holds tool dispatch settings.
type ToolsConfig struct {
	ValidateArguments bool        `yaml:"validate_arguments"`
	ExecDenylist      []string    `yaml:"exec_denylist"`
	ExecPerMinute     int         `yaml:"exec_per_minute"` // 0 = unlimited
	MCPServers        []MCPServer `yaml:"mcp_servers"`
}

// MCPServer describes an external tool server.
type MCPServer struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// VectorStoreConfig points query_vector_store at a search service.
type VectorStoreConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // noop, stdout, file
	Endpoint string `yaml:"endpoint"` // file path for the file exporter
}

// defaultRegistryDir returns $HOME/.aihub/registry, or ./registry when
// $HOME cannot be determined.
func defaultRegistryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./registry"
	}
	return filepath.Join(home, ".aihub", "registry")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			MaxIterations:   10,
			ExecTimeout:     2 * time.Second,
			ChangeDir:       true,
			RegistryDir:     defaultRegistryDir(),
			WasmMemoryPages: 512,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			Providers: []ProviderConfig{{
				Name:        "openai",
				Type:        "openai",
				BaseURL:     "https://api.openai.com/v1",
				Model:       "gpt-4o-mini",
				ConnTimeout: 10 * time.Second,
				RespTimeout: 120 * time.Second,
			}},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
			Burst: 1,
		},
		Tools: ToolsConfig{
			ValidateArguments: false,
		},
		VectorStore: VectorStoreConfig{
			Timeout: 30 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file over Defaults, applies AIHUB_* overrides,
// decrypts enc: secrets when AIHUB_CONFIG_KEY is set, and validates the
// result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := validatePermissions(path); err != nil {
				return nil, err
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("AIHUB_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps AIHUB_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AIHUB_RUNTIME_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Runtime.MaxIterations = n
		}
	}
	if v := os.Getenv("AIHUB_RUNTIME_EXEC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Runtime.ExecTimeout = d
		}
	}
	if v := os.Getenv("AIHUB_RUNTIME_CHANGE_DIR"); v != "" {
		cfg.Runtime.ChangeDir = v == "true"
	}
	if v := os.Getenv("AIHUB_RUNTIME_APPLY_PROCESS_ENV"); v != "" {
		cfg.Runtime.ApplyProcessEnv = v == "true"
	}
	if v := os.Getenv("AIHUB_RUNTIME_REGISTRY_DIR"); v != "" {
		cfg.Runtime.RegistryDir = v
	}
	if v := os.Getenv("AIHUB_RUNTIME_TEMP_DIR"); v != "" {
		cfg.Runtime.TempDir = v
	}
	if v := os.Getenv("AIHUB_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("AIHUB_LLM_REQUESTS_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.LLM.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("AIHUB_TOOLS_VALIDATE_ARGUMENTS"); v != "" {
		cfg.Tools.ValidateArguments = v == "true"
	}
	if v := os.Getenv("AIHUB_TOOLS_EXEC_DENYLIST"); v != "" {
		cfg.Tools.ExecDenylist = splitAndTrim(v, ",")
	}
	if v := os.Getenv("AIHUB_TOOLS_EXEC_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Tools.ExecPerMinute = n
		}
	}
	if v := os.Getenv("AIHUB_VECTOR_STORE_BASE_URL"); v != "" {
		cfg.VectorStore.BaseURL = v
	}
	if v := os.Getenv("AIHUB_VECTOR_STORE_API_KEY"); v != "" {
		cfg.VectorStore.APIKey = v
	}
	if v := os.Getenv("AIHUB_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("AIHUB_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("AIHUB_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("AIHUB_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}

	// Per-provider overrides: AIHUB_LLM_PROVIDER_<NAME>_API_KEY / _BASE_URL.
	for i := range cfg.LLM.Providers {
		prefix := "AIHUB_LLM_PROVIDER_" + envName(cfg.LLM.Providers[i].Name)
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			cfg.LLM.Providers[i].APIKey = v
		}
		if v := os.Getenv(prefix + "_BASE_URL"); v != "" {
			cfg.LLM.Providers[i].BaseURL = v
		}
	}
}

// Provider returns the provider config with the given name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.LLM.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func envName(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(s))
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// decryptSecrets replaces "enc:..." provider and vector store keys with
// their plaintext.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		key := cfg.LLM.Providers[i].APIKey
		if strings.HasPrefix(key, "enc:") {
			decrypted, err := DecryptValue(strings.TrimPrefix(key, "enc:"), passphrase)
			if err != nil {
				return fmt.Errorf("provider %s api_key: %w", cfg.LLM.Providers[i].Name, err)
			}
			cfg.LLM.Providers[i].APIKey = decrypted
		}
	}
	if strings.HasPrefix(cfg.VectorStore.APIKey, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.VectorStore.APIKey, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("vector_store api_key: %w", err)
		}
		cfg.VectorStore.APIKey = decrypted
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
// The result is hex(salt) + ":" + hex(nonce+ciphertext).
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(sealed), nil
}

// DecryptValue reverses EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
