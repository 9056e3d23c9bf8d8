package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// chatCompletionsProvider speaks the /chat/completions protocol used by
// OpenAI, OpenRouter and Mistral. The renderer decides whether tool payloads
// travel natively or as text.
type chatCompletionsProvider struct {
	endpoint     *httpEndpoint
	defaultModel string
	renderer     Renderer
}

func newChatCompletionsProvider(endpoint *httpEndpoint, defaultModel string, renderer Renderer) *chatCompletionsProvider {
	return &chatCompletionsProvider{
		endpoint:     endpoint,
		defaultModel: strings.TrimSpace(defaultModel),
		renderer:     renderer,
	}
}

func (p *chatCompletionsProvider) Chat(ctx context.Context, payload interface{}, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	if p == nil || p.endpoint == nil {
		return nil, fmt.Errorf("provider not initialized")
	}
	messages, ok := payload.([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s expects rendered chat messages, got %T", p.endpoint.providerName, payload)
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = p.GetDefaultModel()
	}

	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if len(tools) > 0 {
		requestBody["tools"] = tools
		requestBody["tool_choice"] = "auto"
	}
	if maxTokens, ok := optionAsInt(options, "max_tokens"); ok {
		requestBody["max_tokens"] = maxTokens
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		requestBody["temperature"] = temperature
	}

	body, err := p.endpoint.postJSON(ctx, "/chat/completions", requestBody)
	if err != nil {
		return nil, err
	}
	result, err := parseChatCompletionsResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", p.endpoint.providerName, err)
	}
	return result, nil
}

func (p *chatCompletionsProvider) Renderer() Renderer { return p.renderer }

func (p *chatCompletionsProvider) GetDefaultModel() string {
	if p == nil {
		return ""
	}
	return p.defaultModel
}

func parseChatCompletionsResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content          interface{} `json:"content"`
				ReasoningContent string      `json:"reasoning_content"`
				Reasoning        string      `json:"reasoning"`
				ToolCalls        []struct {
					ID       string `json:"id"`
					Function *struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *UsageInfo `json:"usage"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, err
	}
	if len(apiResponse.Choices) == 0 {
		return &LLMResponse{FinishReason: "stop", Usage: apiResponse.Usage}, nil
	}

	choice := apiResponse.Choices[0]
	toolCalls := make([]ToolCallSpec, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function == nil {
			continue
		}
		toolCalls = append(toolCalls, ToolCallSpec{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}

	reasoning := choice.Message.ReasoningContent
	if reasoning == "" {
		reasoning = choice.Message.Reasoning
	}
	return &LLMResponse{
		Content:          flattenMessageContent(choice.Message.Content),
		ReasoningContent: reasoning,
		ToolCalls:        toolCalls,
		FinishReason:     choice.FinishReason,
		Usage:            apiResponse.Usage,
	}, nil
}

func flattenMessageContent(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
				continue
			}
			if content, ok := m["content"].(string); ok {
				parts = append(parts, content)
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}
