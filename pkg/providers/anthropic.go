package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
)

const (
	defaultAnthropicAPIBase   = "https://api.anthropic.com/v1"
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 4096
	anthropicVersion          = "2023-06-01"
)

type anthropicProvider struct {
	endpoint     *httpEndpoint
	defaultModel string
	renderer     Renderer
}

func validateAnthropicConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.Anthropic.APIKey) == "" {
		return fmt.Errorf("Anthropic API key is required (set providers.anthropic.api_key or AUTOBYTEUS_PROVIDERS_ANTHROPIC_API_KEY)")
	}
	return nil
}

func newAnthropicProviderFromConfig(cfg *config.Config, media *MediaLoader) (LLMProvider, error) {
	if err := validateAnthropicConfig(cfg); err != nil {
		return nil, err
	}
	apiBase := strings.TrimSpace(cfg.Providers.Anthropic.APIBase)
	if apiBase == "" {
		apiBase = defaultAnthropicAPIBase
	}
	auth := NewHeaderKeyAuth("x-api-key", NewStaticTokenSource(cfg.Providers.Anthropic.APIKey, "providers.anthropic.api_key"))
	endpoint, err := newHTTPEndpoint(ProviderAnthropic, apiBase, cfg.Providers.Anthropic.Proxy, auth,
		map[string]string{"anthropic-version": anthropicVersion})
	if err != nil {
		return nil, err
	}
	return &anthropicProvider{
		endpoint:     endpoint,
		defaultModel: defaultAnthropicModel,
		renderer:     &AnthropicRenderer{Media: media},
	}, nil
}

func (p *anthropicProvider) Chat(ctx context.Context, payload interface{}, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	rendered, ok := payload.(*AnthropicPayload)
	if !ok || rendered == nil {
		return nil, fmt.Errorf("anthropic expects *AnthropicPayload, got %T", payload)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.defaultModel
	}

	maxTokens, ok := optionAsInt(options, "max_tokens")
	if !ok || maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	requestBody := map[string]interface{}{
		"model":      model,
		"messages":   rendered.Messages,
		"max_tokens": maxTokens,
	}
	if rendered.System != "" {
		requestBody["system"] = rendered.System
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		requestBody["temperature"] = temperature
	}
	if len(tools) > 0 {
		defs := make([]map[string]interface{}, 0, len(tools))
		for _, t := range tools {
			schema := t.Function.Parameters
			if schema == nil {
				schema = map[string]interface{}{"type": "object"}
			}
			defs = append(defs, map[string]interface{}{
				"name":         t.Function.Name,
				"description":  t.Function.Description,
				"input_schema": schema,
			})
		}
		requestBody["tools"] = defs
	}

	body, err := p.endpoint.postJSON(ctx, "/messages", requestBody)
	if err != nil {
		return nil, err
	}
	resp, err := parseAnthropicResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse anthropic response: %w", err)
	}
	return resp, nil
}

func (p *anthropicProvider) Renderer() Renderer      { return p.renderer }
func (p *anthropicProvider) GetDefaultModel() string { return p.defaultModel }

func parseAnthropicResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Content []struct {
			Type     string                 `json:"type"`
			Text     string                 `json:"text"`
			Thinking string                 `json:"thinking"`
			ID       string                 `json:"id"`
			Name     string                 `json:"name"`
			Input    map[string]interface{} `json:"input"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, err
	}

	resp := &LLMResponse{FinishReason: apiResponse.StopReason}
	var text, thinking []string
	for _, block := range apiResponse.Content {
		switch block.Type {
		case "text":
			text = append(text, block.Text)
		case "thinking":
			thinking = append(thinking, block.Thinking)
		case "tool_use":
			args := block.Input
			if args == nil {
				args = map[string]interface{}{}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCallSpec{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}
	resp.Content = strings.Join(text, "")
	resp.ReasoningContent = strings.Join(thinking, "\n")
	if apiResponse.Usage != nil {
		resp.Usage = &UsageInfo{
			PromptTokens:     apiResponse.Usage.InputTokens,
			CompletionTokens: apiResponse.Usage.OutputTokens,
			TotalTokens:      apiResponse.Usage.InputTokens + apiResponse.Usage.OutputTokens,
		}
	}
	return resp, nil
}
