package providers

import (
	"fmt"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
)

const (
	defaultOpenAIAPIBase = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o"
)

func validateOpenAIConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	mode, source, err := resolveOpenAIAuthConfig(cfg)
	if err != nil {
		return err
	}
	if err := validateOAuthTokenFileSource(mode, source, "OpenAI"); err != nil {
		return err
	}
	switch openAIWireAPI(cfg) {
	case "chat", "responses":
		return nil
	default:
		return fmt.Errorf("unsupported providers.openai.api %q (chat, responses)", cfg.Providers.OpenAI.API)
	}
}

func openAICredentialStatus(cfg *config.Config) (bool, string) {
	if cfg == nil {
		return false, ""
	}
	mode, _, err := resolveOpenAIAuthConfig(cfg)
	if err != nil {
		return false, ""
	}
	if mode == "api_key" {
		return true, authModeAPIKey
	}
	return true, mode
}

// newOpenAIProviderFromConfig builds a chat completions or Responses client
// depending on providers.openai.api; each pairs with its own renderer.
func newOpenAIProviderFromConfig(cfg *config.Config, media *MediaLoader) (LLMProvider, error) {
	if err := validateOpenAIConfig(cfg); err != nil {
		return nil, err
	}
	auth, err := resolveOpenAIAuthStrategy(cfg)
	if err != nil {
		return nil, err
	}

	apiBase := strings.TrimSpace(cfg.Providers.OpenAI.APIBase)
	if apiBase == "" {
		apiBase = defaultOpenAIAPIBase
	}
	extraHeaders := map[string]string{
		"OpenAI-Organization": cfg.Providers.OpenAI.Organization,
		"OpenAI-Project":      cfg.Providers.OpenAI.Project,
	}
	endpoint, err := newHTTPEndpoint(ProviderOpenAI, apiBase, cfg.Providers.OpenAI.Proxy, auth, extraHeaders)
	if err != nil {
		return nil, err
	}

	if openAIWireAPI(cfg) == "responses" {
		return newResponsesProvider(endpoint, defaultOpenAIModel, &OpenAIResponsesRenderer{Media: media}), nil
	}
	return newChatCompletionsProvider(endpoint, defaultOpenAIModel, &OpenAIChatRenderer{Media: media}), nil
}

func openAIWireAPI(cfg *config.Config) string {
	api := strings.ToLower(strings.TrimSpace(cfg.Providers.OpenAI.API))
	if api == "" {
		return "chat"
	}
	return api
}

func resolveOpenAIAuthStrategy(cfg *config.Config) (AuthStrategy, error) {
	mode, source, err := resolveOpenAIAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	switch mode {
	case "api_key":
		return NewAPIKeyAuth(NewStaticTokenSource(source, "providers.openai.api_key")), nil
	case "oauth_access_token":
		return NewBearerTokenAuth(NewStaticTokenSource(source, "providers.openai.oauth_access_token")), nil
	case "oauth_token_file":
		return NewBearerTokenAuth(NewFileTokenSource(source)), nil
	default:
		return nil, fmt.Errorf("unsupported OpenAI auth mode %q", mode)
	}
}

func resolveOpenAIAuthConfig(cfg *config.Config) (mode string, source string, err error) {
	if cfg == nil {
		return "", "", fmt.Errorf("config is required")
	}
	p := cfg.Providers.OpenAI
	candidates := collectCredentials(
		credentialCandidate{mode: "api_key", source: p.APIKey, field: "providers.openai.api_key"},
		credentialCandidate{mode: "oauth_access_token", source: p.OAuthAccessToken, field: "providers.openai.oauth_access_token"},
		credentialCandidate{mode: "oauth_token_file", source: p.OAuthTokenFile, field: "providers.openai.oauth_token_file"},
	)
	return selectSingleCredential(
		candidates,
		"OpenAI credentials are required (set providers.openai.api_key, providers.openai.oauth_access_token, or providers.openai.oauth_token_file)",
		"multiple OpenAI credential sources configured",
	)
}
