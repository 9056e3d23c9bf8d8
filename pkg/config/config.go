package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"

	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
)

type Config struct {
	Agent     AgentConfig      `json:"agent"`
	Providers ProvidersConfig  `json:"providers"`
	LLM       LLMConfig        `json:"llm"`
	Memory    MemoryConfig     `json:"memory"`
	Tools     ToolsConfig      `json:"tools"`
	Log       logger.LogConfig `json:"log"`
	mu        sync.RWMutex
}

type AgentConfig struct {
	ID                  string `json:"id" env:"AUTOBYTEUS_AGENT_ID"`
	Workspace           string `json:"workspace" env:"AUTOBYTEUS_AGENT_WORKSPACE"`
	Provider            string `json:"provider" env:"AUTOBYTEUS_AGENT_PROVIDER"`
	Model               string `json:"model" env:"AUTOBYTEUS_AGENT_MODEL"`
	SystemPrompt        string `json:"system_prompt,omitempty" env:"AUTOBYTEUS_AGENT_SYSTEM_PROMPT"`
	MaxToolIterations   int    `json:"max_tool_iterations" env:"AUTOBYTEUS_AGENT_MAX_TOOL_ITERATIONS"`
	RestrictToWorkspace bool   `json:"restrict_to_workspace" env:"AUTOBYTEUS_AGENT_RESTRICT_TO_WORKSPACE"`
}

type ProvidersConfig struct {
	OpenAI      OpenAIConfig   `json:"openai" envPrefix:"AUTOBYTEUS_PROVIDERS_OPENAI_"`
	OpenAICodex OAuthConfig    `json:"openai_codex" envPrefix:"AUTOBYTEUS_PROVIDERS_OPENAI_CODEX_"`
	OpenRouter  ProviderConfig `json:"openrouter" envPrefix:"AUTOBYTEUS_PROVIDERS_OPENROUTER_"`
	Anthropic   ProviderConfig `json:"anthropic" envPrefix:"AUTOBYTEUS_PROVIDERS_ANTHROPIC_"`
	Gemini      ProviderConfig `json:"gemini" envPrefix:"AUTOBYTEUS_PROVIDERS_GEMINI_"`
	Mistral     ProviderConfig `json:"mistral" envPrefix:"AUTOBYTEUS_PROVIDERS_MISTRAL_"`
	Ollama      ProviderConfig `json:"ollama" envPrefix:"AUTOBYTEUS_PROVIDERS_OLLAMA_"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key,omitempty" env:"API_KEY"`
	APIBase string `json:"api_base,omitempty" env:"API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"PROXY"`
}

type OAuthConfig struct {
	APIBase          string `json:"api_base,omitempty" env:"API_BASE"`
	Proxy            string `json:"proxy,omitempty" env:"PROXY"`
	OAuthAccessToken string `json:"oauth_access_token,omitempty" env:"OAUTH_ACCESS_TOKEN"`
	OAuthTokenFile   string `json:"oauth_token_file,omitempty" env:"OAUTH_TOKEN_FILE"`
}

type OpenAIConfig struct {
	APIKey           string `json:"api_key,omitempty" env:"API_KEY"`
	APIBase          string `json:"api_base,omitempty" env:"API_BASE"`
	Proxy            string `json:"proxy,omitempty" env:"PROXY"`
	Organization     string `json:"organization,omitempty" env:"ORGANIZATION"`
	Project          string `json:"project,omitempty" env:"PROJECT"`
	OAuthAccessToken string `json:"oauth_access_token,omitempty" env:"OAUTH_ACCESS_TOKEN"`
	OAuthTokenFile   string `json:"oauth_token_file,omitempty" env:"OAUTH_TOKEN_FILE"`
	// API selects the wire protocol: "chat" (chat completions) or "responses".
	API string `json:"api,omitempty" env:"API"`
}

// LLMConfig holds per-agent model overrides. Zero values mean "not set" and
// defer to the model catalog.
type LLMConfig struct {
	MaxTokens          int     `json:"max_tokens,omitempty" env:"AUTOBYTEUS_LLM_MAX_TOKENS"`
	Temperature        float64 `json:"temperature" env:"AUTOBYTEUS_LLM_TEMPERATURE"`
	CompactionRatio    float64 `json:"compaction_ratio,omitempty" env:"AUTOBYTEUS_LLM_COMPACTION_RATIO"`
	SafetyMarginTokens int     `json:"safety_margin_tokens,omitempty" env:"AUTOBYTEUS_LLM_SAFETY_MARGIN_TOKENS"`
	TokenLimit         int     `json:"token_limit,omitempty" env:"AUTOBYTEUS_LLM_TOKEN_LIMIT"`
	ModelCatalog       string  `json:"model_catalog,omitempty" env:"AUTOBYTEUS_LLM_MODEL_CATALOG"`
}

type MemoryConfig struct {
	Dir                string  `json:"dir" env:"AUTOBYTEUS_MEMORY_DIR"`
	SnapshotBackend    string  `json:"snapshot_backend" env:"AUTOBYTEUS_MEMORY_SNAPSHOT_BACKEND"` // file, badger, redis
	RedisAddr          string  `json:"redis_addr,omitempty" env:"AUTOBYTEUS_MEMORY_REDIS_ADDR"`
	RedisPassword      string  `json:"redis_password,omitempty" env:"AUTOBYTEUS_MEMORY_REDIS_PASSWORD"`
	RedisDB            int     `json:"redis_db,omitempty" env:"AUTOBYTEUS_MEMORY_REDIS_DB"`
	Summarizer         string  `json:"summarizer" env:"AUTOBYTEUS_MEMORY_SUMMARIZER"` // llm, heuristic
	TriggerRatio       float64 `json:"trigger_ratio" env:"AUTOBYTEUS_MEMORY_TRIGGER_RATIO"`
	SafetyMarginTokens int     `json:"safety_margin_tokens" env:"AUTOBYTEUS_MEMORY_SAFETY_MARGIN_TOKENS"`
	RawTailTurns       int     `json:"raw_tail_turns" env:"AUTOBYTEUS_MEMORY_RAW_TAIL_TURNS"`
	MaxEpisodicItems   int     `json:"max_episodic_items" env:"AUTOBYTEUS_MEMORY_MAX_EPISODIC_ITEMS"`
	MaxSemanticItems   int     `json:"max_semantic_items" env:"AUTOBYTEUS_MEMORY_MAX_SEMANTIC_ITEMS"`
}

type ToolsConfig struct {
	AllowWrite bool `json:"allow_write" env:"AUTOBYTEUS_TOOLS_ALLOW_WRITE"`
	// MaxReadBytes caps what read_file returns to the model.
	MaxReadBytes int `json:"max_read_bytes" env:"AUTOBYTEUS_TOOLS_MAX_READ_BYTES"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			ID:                  "default",
			Workspace:           "~/.autobyteus/workspace",
			Provider:            "openrouter",
			Model:               "openai/gpt-4o",
			MaxToolIterations:   20,
			RestrictToWorkspace: true,
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{API: "chat"},
		},
		LLM: LLMConfig{
			Temperature: 0.7,
		},
		Memory: MemoryConfig{
			Dir:                "~/.autobyteus/memory",
			SnapshotBackend:    "file",
			Summarizer:         "llm",
			TriggerRatio:       0.8,
			SafetyMarginTokens: 256,
			RawTailTurns:       4,
			MaxEpisodicItems:   6,
			MaxSemanticItems:   12,
		},
		Tools: ToolsConfig{
			AllowWrite:   false,
			MaxReadBytes: 64 * 1024,
		},
		Log: logger.LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns ~/.autobyteus/config.json.
func DefaultPath() string {
	return expandHome("~/.autobyteus/config.json")
}

// LoadConfig reads path over the defaults, then applies AUTOBYTEUS_* env
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects settings the memory subsystem cannot run with.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if strings.TrimSpace(c.Agent.ID) == "" {
		return fmt.Errorf("agent.id is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Memory.SnapshotBackend)) {
	case "", "file", "badger":
	case "redis":
		if strings.TrimSpace(c.Memory.RedisAddr) == "" {
			return fmt.Errorf("memory.redis_addr is required for the redis snapshot backend")
		}
	default:
		return fmt.Errorf("unsupported memory.snapshot_backend %q (file, badger, redis)", c.Memory.SnapshotBackend)
	}
	if c.Memory.TriggerRatio <= 0 || c.Memory.TriggerRatio > 1 {
		return fmt.Errorf("memory.trigger_ratio must be in (0, 1], got %v", c.Memory.TriggerRatio)
	}
	if c.LLM.CompactionRatio < 0 || c.LLM.CompactionRatio > 1 {
		return fmt.Errorf("llm.compaction_ratio must be in [0, 1], got %v", c.LLM.CompactionRatio)
	}
	if c.Memory.RawTailTurns < 0 {
		return fmt.Errorf("memory.raw_tail_turns must not be negative")
	}
	return nil
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Agent.Workspace)
}

func (c *Config) MemoryDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Memory.Dir)
}

// ModelCatalogPath resolves the optional YAML model catalog override.
func (c *Config) ModelCatalogPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.LLM.ModelCatalog)
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
