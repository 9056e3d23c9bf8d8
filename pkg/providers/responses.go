package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type responsesProvider struct {
	endpoint     *httpEndpoint
	defaultModel string
	renderer     Renderer
}

func newResponsesProvider(endpoint *httpEndpoint, defaultModel string, renderer Renderer) *responsesProvider {
	return &responsesProvider{
		endpoint:     endpoint,
		defaultModel: strings.TrimSpace(defaultModel),
		renderer:     renderer,
	}
}

func (p *responsesProvider) Chat(ctx context.Context, payload interface{}, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	if p == nil || p.endpoint == nil {
		return nil, fmt.Errorf("provider not initialized")
	}
	input, ok := payload.([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s expects rendered responses input, got %T", p.endpoint.providerName, payload)
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = p.GetDefaultModel()
	}

	requestBody := map[string]interface{}{
		"model": model,
		"input": input,
		"store": false,
	}
	if toolDefs := toResponsesTools(tools); len(toolDefs) > 0 {
		requestBody["tools"] = toolDefs
	}
	if maxTokens, ok := optionAsInt(options, "max_tokens"); ok {
		requestBody["max_output_tokens"] = maxTokens
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		requestBody["temperature"] = temperature
	}

	body, err := p.endpoint.postJSON(ctx, "/responses", requestBody)
	if err != nil {
		return nil, err
	}
	parsed, err := parseResponsesResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", p.endpoint.providerName, err)
	}
	return parsed, nil
}

func (p *responsesProvider) Renderer() Renderer { return p.renderer }

func (p *responsesProvider) GetDefaultModel() string {
	if p == nil {
		return ""
	}
	return p.defaultModel
}

func parseResponsesResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Status     string      `json:"status"`
		OutputText interface{} `json:"output_text"`
		Output     []struct {
			ID        string `json:"id"`
			Type      string `json:"type"`
			CallID    string `json:"call_id"`
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
			Content   []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			Summary []struct {
				Text string `json:"text"`
			} `json:"summary"`
			Text string `json:"text"`
		} `json:"output"`
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, err
	}

	var toolCalls []ToolCallSpec
	var contentParts, reasoningParts []string
	if top := flattenResponsesOutputText(apiResponse.OutputText); top != "" {
		contentParts = append(contentParts, top)
	}

	for _, item := range apiResponse.Output {
		switch strings.TrimSpace(strings.ToLower(item.Type)) {
		case "function_call":
			callID := strings.TrimSpace(item.CallID)
			if callID == "" {
				callID = strings.TrimSpace(item.ID)
			}
			toolCalls = append(toolCalls, ToolCallSpec{
				ID:        callID,
				Name:      strings.TrimSpace(item.Name),
				Arguments: decodeArguments(item.Arguments),
			})
		case "message":
			if len(contentParts) > 0 && apiResponse.OutputText != nil {
				// output_text already aggregates message parts.
				continue
			}
			for _, part := range item.Content {
				if txt := strings.TrimSpace(part.Text); txt != "" {
					contentParts = append(contentParts, txt)
				}
			}
		case "reasoning":
			for _, s := range item.Summary {
				if txt := strings.TrimSpace(s.Text); txt != "" {
					reasoningParts = append(reasoningParts, txt)
				}
			}
		case "output_text", "text":
			if txt := strings.TrimSpace(item.Text); txt != "" {
				contentParts = append(contentParts, txt)
			}
		}
	}

	var usage *UsageInfo
	if apiResponse.Usage != nil {
		usage = &UsageInfo{
			PromptTokens:     apiResponse.Usage.InputTokens,
			CompletionTokens: apiResponse.Usage.OutputTokens,
			TotalTokens:      apiResponse.Usage.TotalTokens,
		}
	}

	finishReason := strings.TrimSpace(apiResponse.Status)
	if finishReason == "" {
		finishReason = "completed"
	}
	if len(toolCalls) > 0 {
		finishReason = "tool_calls"
	}

	return &LLMResponse{
		Content:          strings.TrimSpace(strings.Join(contentParts, "\n")),
		ReasoningContent: strings.Join(reasoningParts, "\n"),
		ToolCalls:        toolCalls,
		FinishReason:     finishReason,
		Usage:            usage,
	}, nil
}

func toResponsesTools(defs []ToolDefinition) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(defs))
	for _, def := range defs {
		if strings.TrimSpace(strings.ToLower(def.Type)) != "function" {
			continue
		}
		name := strings.TrimSpace(def.Function.Name)
		if name == "" {
			continue
		}
		item := map[string]interface{}{
			"type": "function",
			"name": name,
		}
		if desc := strings.TrimSpace(def.Function.Description); desc != "" {
			item["description"] = desc
		}
		if def.Function.Parameters != nil {
			item["parameters"] = def.Function.Parameters
		}
		out = append(out, item)
	}
	return out
}

func flattenResponsesOutputText(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			switch tv := item.(type) {
			case string:
				if s := strings.TrimSpace(tv); s != "" {
					parts = append(parts, s)
				}
			case map[string]interface{}:
				if text, ok := tv["text"].(string); ok {
					if s := strings.TrimSpace(text); s != "" {
						parts = append(parts, s)
					}
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}
