package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
)

const (
	defaultGeminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.5-flash"
)

type geminiProvider struct {
	endpoint     *httpEndpoint
	defaultModel string
	renderer     Renderer
}

func validateGeminiConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.Gemini.APIKey) == "" {
		return fmt.Errorf("Gemini API key is required (set providers.gemini.api_key or AUTOBYTEUS_PROVIDERS_GEMINI_API_KEY)")
	}
	return nil
}

func newGeminiProviderFromConfig(cfg *config.Config, media *MediaLoader) (LLMProvider, error) {
	if err := validateGeminiConfig(cfg); err != nil {
		return nil, err
	}
	apiBase := strings.TrimSpace(cfg.Providers.Gemini.APIBase)
	if apiBase == "" {
		apiBase = defaultGeminiAPIBase
	}
	auth := NewHeaderKeyAuth("x-goog-api-key", NewStaticTokenSource(cfg.Providers.Gemini.APIKey, "providers.gemini.api_key"))
	endpoint, err := newHTTPEndpoint(ProviderGemini, apiBase, cfg.Providers.Gemini.Proxy, auth, nil)
	if err != nil {
		return nil, err
	}
	return &geminiProvider{
		endpoint:     endpoint,
		defaultModel: defaultGeminiModel,
		renderer:     &GeminiRenderer{Media: media},
	}, nil
}

func (p *geminiProvider) Chat(ctx context.Context, payload interface{}, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	rendered, ok := payload.(*GeminiPayload)
	if !ok || rendered == nil {
		return nil, fmt.Errorf("gemini expects *GeminiPayload, got %T", payload)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.defaultModel
	}

	requestBody := map[string]interface{}{"contents": rendered.Contents}
	if rendered.SystemInstruction != nil {
		requestBody["system_instruction"] = rendered.SystemInstruction
	}
	genConfig := map[string]interface{}{}
	if maxTokens, ok := optionAsInt(options, "max_tokens"); ok {
		genConfig["maxOutputTokens"] = maxTokens
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		genConfig["temperature"] = temperature
	}
	if len(genConfig) > 0 {
		requestBody["generationConfig"] = genConfig
	}
	if len(tools) > 0 {
		decls := make([]map[string]interface{}, 0, len(tools))
		for _, t := range tools {
			decl := map[string]interface{}{"name": t.Function.Name, "description": t.Function.Description}
			if t.Function.Parameters != nil {
				decl["parameters"] = t.Function.Parameters
			}
			decls = append(decls, decl)
		}
		requestBody["tools"] = []map[string]interface{}{{"function_declarations": decls}}
	}

	body, err := p.endpoint.postJSON(ctx, "/models/"+url.PathEscape(model)+":generateContent", requestBody)
	if err != nil {
		return nil, err
	}
	resp, err := parseGeminiResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}
	return resp, nil
}

func (p *geminiProvider) Renderer() Renderer      { return p.renderer }
func (p *geminiProvider) GetDefaultModel() string { return p.defaultModel }

func parseGeminiResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text         string `json:"text"`
					Thought      bool   `json:"thought"`
					FunctionCall *struct {
						Name string                 `json:"name"`
						Args map[string]interface{} `json:"args"`
					} `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata *struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, err
	}

	resp := &LLMResponse{FinishReason: "stop"}
	if apiResponse.UsageMetadata != nil {
		resp.Usage = &UsageInfo{
			PromptTokens:     apiResponse.UsageMetadata.PromptTokenCount,
			CompletionTokens: apiResponse.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      apiResponse.UsageMetadata.TotalTokenCount,
		}
	}
	if len(apiResponse.Candidates) == 0 {
		return resp, nil
	}

	candidate := apiResponse.Candidates[0]
	if candidate.FinishReason != "" {
		resp.FinishReason = strings.ToLower(candidate.FinishReason)
	}
	var text, thoughts []string
	for _, part := range candidate.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]interface{}{}
			}
			// Gemini does not assign call ids.
			resp.ToolCalls = append(resp.ToolCalls, ToolCallSpec{
				ID:        "call_" + uuid.NewString(),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		case part.Thought:
			thoughts = append(thoughts, part.Text)
		default:
			text = append(text, part.Text)
		}
	}
	resp.Content = strings.Join(text, "")
	resp.ReasoningContent = strings.Join(thoughts, "\n")
	return resp, nil
}
