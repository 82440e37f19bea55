package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/kelseyhightower/envconfig"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvPrefix prefixes every environment override of SystemConfig,
// e.g. ORBIT_ASK_TIMEOUT_MS.
const EnvPrefix = "ORBIT"

// Responder kinds understood by the responder builder.
const (
	KindOrbit           = "orbit"
	KindTroubleshooting = "troubleshooting"
	KindPrompt          = "prompt"
)

// Config defines the application configuration stored in config.json:
// which backends to call, which responders exist and which caller surfaces
// are exposed.
type Config struct {
	// LLM holds the provider groups in raw JSON; pkg/llm decodes it.
	LLM jsoniter.RawMessage `json:"llm"`
	// Channels maps a channel identifier ("web", "telegram", "nats") to its
	// raw configuration payload.
	Channels map[string]jsoniter.RawMessage `json:"channels"`
	// Responders lists the responders to register at startup.
	Responders []ResponderConfig `json:"responders"`
	// IntentInstructionFile overrides the built-in classifier instruction.
	IntentInstructionFile string `json:"intent_instruction_file,omitempty"`
}

// ResponderConfig declares one responder.
type ResponderConfig struct {
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	Description     string `json:"description"`
	Instruction     string `json:"instruction,omitempty"`
	InstructionFile string `json:"instruction_file,omitempty"`
	// FrameworkRepo is the checkout an orbit responder answers questions about.
	FrameworkRepo string `json:"framework_repo,omitempty"`
	// Repos are the checkouts a troubleshooting responder inspects.
	Repos []string `json:"repos,omitempty"`
}

// Validate ensures the configuration contains every mandatory field.
func (c *Config) Validate() error {
	if len(c.LLM) == 0 {
		return fmt.Errorf("mandatory 'llm' configuration is missing or empty")
	}
	seen := make(map[string]bool, len(c.Responders))
	for i, r := range c.Responders {
		if r.Name == "" {
			return fmt.Errorf("responder #%d has no name", i+1)
		}
		if r.Kind == "" {
			return fmt.Errorf("responder %q has no kind", r.Name)
		}
		if seen[r.Name] {
			slog.Warn("Duplicate responder in config, first one wins", "name", r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

// SystemConfig defines engine-level technical parameters, usually stored in
// system.json and overridable through ORBIT_* environment variables.
type SystemConfig struct {
	// AskTimeoutMs bounds a whole round trip from caller to answer.
	AskTimeoutMs int `json:"ask_timeout_ms" envconfig:"ASK_TIMEOUT_MS"`
	// BackendTimeoutMs bounds a single generative backend call.
	BackendTimeoutMs int `json:"backend_timeout_ms" envconfig:"BACKEND_TIMEOUT_MS"`
	// MaxRetries is how often a transient backend failure is retried per provider.
	MaxRetries int `json:"max_retries" envconfig:"MAX_RETRIES"`
	// RetryDelayMs is the base delay between retries; it grows linearly.
	RetryDelayMs int `json:"retry_delay_ms" envconfig:"RETRY_DELAY_MS"`
	// OllamaDefaultURL is used when an ollama group sets no base_url.
	OllamaDefaultURL string `json:"ollama_default_url" envconfig:"OLLAMA_DEFAULT_URL"`

	// MailboxSize is the default actor mailbox capacity.
	MailboxSize int `json:"mailbox_size" envconfig:"MAILBOX_SIZE"`
	// Orchestrator pool floor, ceiling and idle reclamation.
	OrchestratorPoolMin int `json:"orchestrator_pool_min" envconfig:"ORCHESTRATOR_POOL_MIN"`
	OrchestratorPoolMax int `json:"orchestrator_pool_max" envconfig:"ORCHESTRATOR_POOL_MAX"`
	OrchestratorIdleMs  int `json:"orchestrator_idle_ms" envconfig:"ORCHESTRATOR_IDLE_MS"`
	// Responder and classifier pool floor, ceiling and idle reclamation.
	ResponderPoolMin int `json:"responder_pool_min" envconfig:"RESPONDER_POOL_MIN"`
	ResponderPoolMax int `json:"responder_pool_max" envconfig:"RESPONDER_POOL_MAX"`
	ResponderIdleMs  int `json:"responder_idle_ms" envconfig:"RESPONDER_IDLE_MS"`
	// MaxRestarts within RestartWindowMs before a panicking actor is stopped.
	MaxRestarts     int `json:"max_restarts" envconfig:"MAX_RESTARTS"`
	RestartWindowMs int `json:"restart_window_ms" envconfig:"RESTART_WINDOW_MS"`

	// MaxChunkChars splits oversized responder prompts into chunks.
	MaxChunkChars int `json:"max_chunk_chars" envconfig:"MAX_CHUNK_CHARS"`
	// MaxFileBytes skips larger files when digesting a repository.
	MaxFileBytes int64 `json:"max_file_bytes" envconfig:"MAX_FILE_BYTES"`
	// RepoCacheDir holds shallow clones of remote repositories.
	RepoCacheDir string `json:"repo_cache_dir" envconfig:"REPO_CACHE_DIR"`

	// TelegramMessageLimit is the maximum character count of one Telegram
	// message; longer answers are split.
	TelegramMessageLimit int `json:"telegram_message_limit" envconfig:"TELEGRAM_MESSAGE_LIMIT"`

	// LogLevel sets the minimum severity: "debug", "info", "warn", "error".
	LogLevel string `json:"log_level" envconfig:"LOG_LEVEL"`
	// DebugBackend saves every prompt and response under debug/backend.
	DebugBackend bool `json:"debug_backend" envconfig:"DEBUG_BACKEND"`
}

// DefaultSystemConfig returns safe defaults, used when system.json is
// missing or corrupt so the engine can always start.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		AskTimeoutMs:         50000,
		BackendTimeoutMs:     120000,
		MaxRetries:           3,
		RetryDelayMs:         500,
		OllamaDefaultURL:     "http://localhost:11434",
		MailboxSize:          64,
		OrchestratorPoolMin:  3,
		OrchestratorPoolMax:  10,
		OrchestratorIdleMs:   60000,
		ResponderPoolMin:     2,
		ResponderPoolMax:     5,
		ResponderIdleMs:      60000,
		MaxRestarts:          3,
		RestartWindowMs:      60000,
		MaxChunkChars:        30000,
		MaxFileBytes:         5 * 1024 * 1024,
		RepoCacheDir:         filepath.Join(".orbit", "repos"),
		TelegramMessageLimit: 4000,
		LogLevel:             "info",
	}
}

// Validate rejects settings the runtime cannot honor.
func (s *SystemConfig) Validate() error {
	if s.AskTimeoutMs <= 0 {
		return fmt.Errorf("ask_timeout_ms must be positive, got %d", s.AskTimeoutMs)
	}
	if s.BackendTimeoutMs <= 0 {
		return fmt.Errorf("backend_timeout_ms must be positive, got %d", s.BackendTimeoutMs)
	}
	if s.OrchestratorPoolMax <= 0 || s.OrchestratorPoolMin < 0 || s.OrchestratorPoolMin > s.OrchestratorPoolMax {
		return fmt.Errorf("orchestrator pool [%d, %d] is invalid", s.OrchestratorPoolMin, s.OrchestratorPoolMax)
	}
	if s.ResponderPoolMax <= 0 || s.ResponderPoolMin < 0 || s.ResponderPoolMin > s.ResponderPoolMax {
		return fmt.Errorf("responder pool [%d, %d] is invalid", s.ResponderPoolMin, s.ResponderPoolMax)
	}
	if s.MaxChunkChars <= 0 {
		return fmt.Errorf("max_chunk_chars must be positive, got %d", s.MaxChunkChars)
	}
	return nil
}

func (s *SystemConfig) AskTimeout() time.Duration {
	return time.Duration(s.AskTimeoutMs) * time.Millisecond
}

func (s *SystemConfig) BackendTimeout() time.Duration {
	return time.Duration(s.BackendTimeoutMs) * time.Millisecond
}

func (s *SystemConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelayMs) * time.Millisecond
}

func (s *SystemConfig) OrchestratorIdle() time.Duration {
	return time.Duration(s.OrchestratorIdleMs) * time.Millisecond
}

func (s *SystemConfig) ResponderIdle() time.Duration {
	return time.Duration(s.ResponderIdleMs) * time.Millisecond
}

func (s *SystemConfig) RestartWindow() time.Duration {
	return time.Duration(s.RestartWindowMs) * time.Millisecond
}

// Load reads config.json at appPath (mandatory) and system.json at
// systemPath (optional, defaults on failure).
func Load(appPath, systemPath string) (*Config, *SystemConfig, error) {
	cfg, err := LoadApp(appPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, LoadSystemConfig(systemPath), nil
}

// LoadApp reads and validates the application config.
func LoadApp(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file '%s' not found. please create one", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadSystemConfig loads system settings on top of the defaults and then
// applies environment overrides. It never fails; problems are logged.
func LoadSystemConfig(path string) *SystemConfig {
	cfg := DefaultSystemConfig()

	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, cfg); err != nil {
			slog.Warn("Failed to parse system config, using defaults", "file", path, "error", err)
			cfg = DefaultSystemConfig()
		}
	}

	applyEnv(cfg)
	return cfg
}

func applyEnv(cfg *SystemConfig) {
	// envconfig only touches fields whose variable is set.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		slog.Warn("Ignoring invalid environment override", "prefix", EnvPrefix, "error", err)
	}
}
