package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
)

const (
	defaultOllamaAPIBase = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1"
)

type ollamaProvider struct {
	endpoint     *httpEndpoint
	defaultModel string
	renderer     Renderer
}

func newOllamaProviderFromConfig(cfg *config.Config, media *MediaLoader) (LLMProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	apiBase := strings.TrimSpace(cfg.Providers.Ollama.APIBase)
	if apiBase == "" {
		apiBase = defaultOllamaAPIBase
	}
	var auth AuthStrategy = NewNoAuth()
	if key := strings.TrimSpace(cfg.Providers.Ollama.APIKey); key != "" {
		auth = NewAPIKeyAuth(NewStaticTokenSource(key, "providers.ollama.api_key"))
	}
	endpoint, err := newHTTPEndpoint(ProviderOllama, apiBase, cfg.Providers.Ollama.Proxy, auth, nil)
	if err != nil {
		return nil, err
	}
	return &ollamaProvider{
		endpoint:     endpoint,
		defaultModel: defaultOllamaModel,
		renderer:     &OllamaRenderer{Media: media},
	}, nil
}

func (p *ollamaProvider) Chat(ctx context.Context, payload interface{}, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	messages, ok := payload.([]map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("ollama expects rendered chat messages, got %T", payload)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.defaultModel
	}

	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	if len(tools) > 0 {
		requestBody["tools"] = tools
	}
	modelOptions := map[string]interface{}{}
	if maxTokens, ok := optionAsInt(options, "max_tokens"); ok {
		modelOptions["num_predict"] = maxTokens
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		modelOptions["temperature"] = temperature
	}
	if len(modelOptions) > 0 {
		requestBody["options"] = modelOptions
	}

	body, err := p.endpoint.postJSON(ctx, "/api/chat", requestBody)
	if err != nil {
		return nil, err
	}
	resp, err := parseOllamaResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}
	return resp, nil
}

func (p *ollamaProvider) Renderer() Renderer      { return p.renderer }
func (p *ollamaProvider) GetDefaultModel() string { return p.defaultModel }

func parseOllamaResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Message struct {
			Content   string `json:"content"`
			Thinking  string `json:"thinking"`
			ToolCalls []struct {
				Function struct {
					Name      string                 `json:"name"`
					Arguments map[string]interface{} `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		DoneReason      string `json:"done_reason"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, err
	}

	resp := &LLMResponse{
		Content:          apiResponse.Message.Content,
		ReasoningContent: apiResponse.Message.Thinking,
		FinishReason:     apiResponse.DoneReason,
		Usage: &UsageInfo{
			PromptTokens:     apiResponse.PromptEvalCount,
			CompletionTokens: apiResponse.EvalCount,
			TotalTokens:      apiResponse.PromptEvalCount + apiResponse.EvalCount,
		},
	}
	for _, tc := range apiResponse.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]interface{}{}
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCallSpec{
			ID:        "call_" + uuid.NewString(),
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	if resp.FinishReason == "" {
		resp.FinishReason = "stop"
	}
	return resp, nil
}
