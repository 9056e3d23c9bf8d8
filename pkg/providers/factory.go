package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
)

const (
	ProviderOpenRouter  = "openrouter"
	ProviderOpenAI      = "openai"
	ProviderOpenAICodex = "openai-codex"
	ProviderAnthropic   = "anthropic"
	ProviderGemini      = "gemini"
	ProviderMistral     = "mistral"
	ProviderOllama      = "ollama"
)

// Factory builds one provider from config. Validate and CredentialStatus are
// optional.
type Factory struct {
	Build            func(cfg *config.Config, media *MediaLoader) (LLMProvider, error)
	Validate         func(cfg *config.Config) error
	CredentialStatus func(cfg *config.Config) (configured bool, mode string)
}

// Registry maps provider names to factories. It is constructed explicitly and
// passed to whoever needs to build providers.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	media     *MediaLoader
}

func NewRegistry(media *MediaLoader) *Registry {
	if media == nil {
		media = NewMediaLoader(nil)
	}
	return &Registry{factories: map[string]Factory{}, media: media}
}

// NewDefaultRegistry returns a registry with every built-in provider.
func NewDefaultRegistry(media *MediaLoader) *Registry {
	r := NewRegistry(media)
	builtins := map[string]Factory{
		ProviderOpenRouter: {
			Build:    newOpenRouterProviderFromConfig,
			Validate: validateOpenRouterConfig,
			CredentialStatus: func(cfg *config.Config) (bool, string) {
				return apiKeyCredentialStatus(cfg.Providers.OpenRouter.APIKey)
			},
		},
		ProviderOpenAI:      {Build: newOpenAIProviderFromConfig, Validate: validateOpenAIConfig, CredentialStatus: openAICredentialStatus},
		ProviderOpenAICodex: {Build: newOpenAICodexProviderFromConfig, Validate: validateOpenAICodexConfig, CredentialStatus: openAICodexCredentialStatus},
		ProviderAnthropic: {
			Build:    newAnthropicProviderFromConfig,
			Validate: validateAnthropicConfig,
			CredentialStatus: func(cfg *config.Config) (bool, string) {
				return apiKeyCredentialStatus(cfg.Providers.Anthropic.APIKey)
			},
		},
		ProviderGemini: {
			Build:    newGeminiProviderFromConfig,
			Validate: validateGeminiConfig,
			CredentialStatus: func(cfg *config.Config) (bool, string) {
				return apiKeyCredentialStatus(cfg.Providers.Gemini.APIKey)
			},
		},
		ProviderMistral: {
			Build:    newMistralProviderFromConfig,
			Validate: validateMistralConfig,
			CredentialStatus: func(cfg *config.Config) (bool, string) {
				return apiKeyCredentialStatus(cfg.Providers.Mistral.APIKey)
			},
		},
		ProviderOllama: {
			Build:            newOllamaProviderFromConfig,
			CredentialStatus: func(*config.Config) (bool, string) { return true, "none" },
		},
	}
	for name, f := range builtins {
		// Built-in names and build funcs are always valid.
		_ = r.Register(name, f)
	}
	return r
}

func (r *Registry) Register(name string, f Factory) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("providers: factory name is required")
	}
	if f.Build == nil {
		return fmt.Errorf("providers: factory %q build func is required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	return nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderOpenRouter
	}
	return name
}

func ActiveProviderName(cfg *config.Config) string {
	if cfg == nil {
		return ProviderOpenRouter
	}
	return NormalizeProviderName(cfg.Agent.Provider)
}

func (r *Registry) Validate(cfg *config.Config) error {
	f, _, err := r.lookup(cfg)
	if err != nil {
		return err
	}
	if f.Validate == nil {
		return nil
	}
	return f.Validate(cfg)
}

func (r *Registry) CredentialStatus(cfg *config.Config) (provider string, configured bool, mode string, err error) {
	f, name, err := r.lookup(cfg)
	if err != nil {
		return "", false, "", err
	}
	if f.CredentialStatus != nil {
		configured, mode = f.CredentialStatus(cfg)
		return name, configured, mode, nil
	}
	return name, f.Validate == nil || f.Validate(cfg) == nil, "", nil
}

// Create builds the provider named by cfg.Agent.Provider.
func (r *Registry) Create(cfg *config.Config) (LLMProvider, error) {
	f, _, err := r.lookup(cfg)
	if err != nil {
		return nil, err
	}
	return f.Build(cfg, r.media)
}

func (r *Registry) lookup(cfg *config.Config) (Factory, string, error) {
	name := ActiveProviderName(cfg)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return Factory{}, name, fmt.Errorf("unsupported provider %q: supported providers are %s", name, strings.Join(r.Names(), ", "))
	}
	return f, name, nil
}
