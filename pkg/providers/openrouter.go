package providers

import (
	"fmt"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
)

const (
	defaultOpenRouterAPIBase = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openai/gpt-4o"

	defaultMistralAPIBase = "https://api.mistral.ai/v1"
	defaultMistralModel   = "mistral-large-latest"
)

// apiKeyCredentialStatus reports a provider configured by a single API key.
func apiKeyCredentialStatus(key string) (bool, string) {
	if strings.TrimSpace(key) == "" {
		return false, ""
	}
	return true, authModeAPIKey
}

func validateOpenRouterConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.OpenRouter.APIKey) == "" {
		return fmt.Errorf("OpenRouter API key is required (set providers.openrouter.api_key or AUTOBYTEUS_PROVIDERS_OPENROUTER_API_KEY)")
	}
	return nil
}

func newOpenRouterProviderFromConfig(cfg *config.Config, media *MediaLoader) (LLMProvider, error) {
	if err := validateOpenRouterConfig(cfg); err != nil {
		return nil, err
	}
	apiBase := strings.TrimSpace(cfg.Providers.OpenRouter.APIBase)
	if apiBase == "" {
		apiBase = defaultOpenRouterAPIBase
	}
	auth := NewAPIKeyAuth(NewStaticTokenSource(cfg.Providers.OpenRouter.APIKey, "providers.openrouter.api_key"))
	endpoint, err := newHTTPEndpoint(ProviderOpenRouter, apiBase, cfg.Providers.OpenRouter.Proxy, auth, nil)
	if err != nil {
		return nil, err
	}
	return newChatCompletionsProvider(endpoint, defaultOpenRouterModel, &OpenAIChatRenderer{Media: media}), nil
}

func validateMistralConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.Mistral.APIKey) == "" {
		return fmt.Errorf("Mistral API key is required (set providers.mistral.api_key or AUTOBYTEUS_PROVIDERS_MISTRAL_API_KEY)")
	}
	return nil
}

// Mistral shares the chat completions wire format but gets tool history as
// degraded text.
func newMistralProviderFromConfig(cfg *config.Config, media *MediaLoader) (LLMProvider, error) {
	if err := validateMistralConfig(cfg); err != nil {
		return nil, err
	}
	apiBase := strings.TrimSpace(cfg.Providers.Mistral.APIBase)
	if apiBase == "" {
		apiBase = defaultMistralAPIBase
	}
	auth := NewAPIKeyAuth(NewStaticTokenSource(cfg.Providers.Mistral.APIKey, "providers.mistral.api_key"))
	endpoint, err := newHTTPEndpoint(ProviderMistral, apiBase, cfg.Providers.Mistral.Proxy, auth, nil)
	if err != nil {
		return nil, err
	}
	return newChatCompletionsProvider(endpoint, defaultMistralModel, &MistralRenderer{Media: media}), nil
}
