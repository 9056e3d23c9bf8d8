package providers

import (
	"fmt"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
)

const (
	defaultOpenAICodexAPIBase = "https://api.openai.com/v1"
	defaultOpenAICodexModel   = "gpt-5"
)

func validateOpenAICodexConfig(cfg *config.Config) error {
	mode, source, err := resolveOpenAICodexAuthConfig(cfg)
	if err != nil {
		return err
	}
	return validateOAuthTokenFileSource(mode, source, "OpenAI Codex")
}

func openAICodexCredentialStatus(cfg *config.Config) (bool, string) {
	mode, _, err := resolveOpenAICodexAuthConfig(cfg)
	if err != nil {
		return false, ""
	}
	return true, mode
}

// newOpenAICodexProviderFromConfig always uses the Responses API with OAuth
// bearer credentials.
func newOpenAICodexProviderFromConfig(cfg *config.Config, media *MediaLoader) (LLMProvider, error) {
	if err := validateOpenAICodexConfig(cfg); err != nil {
		return nil, err
	}
	mode, source, err := resolveOpenAICodexAuthConfig(cfg)
	if err != nil {
		return nil, err
	}
	var tokens TokenSource
	switch mode {
	case "oauth_access_token":
		tokens = NewStaticTokenSource(source, "providers.openai_codex.oauth_access_token")
	case "oauth_token_file":
		tokens = NewFileTokenSource(source)
	default:
		return nil, fmt.Errorf("unsupported OpenAI Codex auth mode %q", mode)
	}

	apiBase := strings.TrimSpace(cfg.Providers.OpenAICodex.APIBase)
	if apiBase == "" {
		apiBase = defaultOpenAICodexAPIBase
	}
	endpoint, err := newHTTPEndpoint(ProviderOpenAICodex, apiBase, cfg.Providers.OpenAICodex.Proxy, NewBearerTokenAuth(tokens), nil)
	if err != nil {
		return nil, err
	}
	return newResponsesProvider(endpoint, defaultOpenAICodexModel, &OpenAIResponsesRenderer{Media: media}), nil
}

func resolveOpenAICodexAuthConfig(cfg *config.Config) (mode string, source string, err error) {
	if cfg == nil {
		return "", "", fmt.Errorf("config is required")
	}
	p := cfg.Providers.OpenAICodex
	return selectSingleCredential(
		collectCredentials(
			credentialCandidate{mode: "oauth_access_token", source: p.OAuthAccessToken, field: "providers.openai_codex.oauth_access_token"},
			credentialCandidate{mode: "oauth_token_file", source: p.OAuthTokenFile, field: "providers.openai_codex.oauth_token_file"},
		),
		"OpenAI Codex credentials are required (set providers.openai_codex.oauth_access_token or providers.openai_codex.oauth_token_file)",
		"multiple OpenAI Codex credential sources configured",
	)
}
