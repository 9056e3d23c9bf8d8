package providers

import "context"

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole maps a wire role string to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return Role(s), true
	default:
		return "", false
	}
}

// ToolCallSpec is one function call requested by the model.
type ToolCallSpec struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolPayload is either *ToolCallPayload or *ToolResultPayload.
type ToolPayload interface {
	toolPayload()
}

// ToolCallPayload is attached to ASSISTANT messages that request tool calls.
type ToolCallPayload struct {
	ToolCalls []ToolCallSpec
}

// ToolResultPayload is attached to TOOL messages.
type ToolResultPayload struct {
	ToolCallID string
	ToolName   string
	ToolResult interface{}
	ToolError  string
}

func (*ToolCallPayload) toolPayload()   {}
func (*ToolResultPayload) toolPayload() {}

// Message is a provider-agnostic conversation turn unit. Empty strings stand
// for absent content or reasoning.
type Message struct {
	Role             Role
	Content          string
	ReasoningContent string
	ImageURLs        []string
	AudioURLs        []string
	VideoURLs        []string
	ToolPayload      ToolPayload
}

// ToolCalls returns the call specs carried by m, if any.
func (m Message) ToolCalls() []ToolCallSpec {
	if p, ok := m.ToolPayload.(*ToolCallPayload); ok && p != nil {
		return p.ToolCalls
	}
	return nil
}

// ToolResult returns the result payload carried by m, if any.
func (m Message) ToolResult() (*ToolResultPayload, bool) {
	p, ok := m.ToolPayload.(*ToolResultPayload)
	return p, ok && p != nil
}

func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message   { return Message{Role: RoleUser, Content: content} }

// Renderer converts normalized messages into a provider wire payload. Some
// renderers fetch or encode media, so Render may block.
type Renderer interface {
	Render(ctx context.Context, messages []Message) (interface{}, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, messages []Message) (interface{}, error)

func (f RendererFunc) Render(ctx context.Context, messages []Message) (interface{}, error) {
	return f(ctx, messages)
}

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LLMResponse is the normalized result of one provider call.
type LLMResponse struct {
	Content          string
	ReasoningContent string
	ToolCalls        []ToolCallSpec
	FinishReason     string
	Usage            *UsageInfo
}

type ToolFunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ToolDefinition struct {
	Type     string                 `json:"type"`
	Function ToolFunctionDefinition `json:"function"`
}

// LLMProvider sends a rendered payload to a model API. The payload must come
// from the provider's own Renderer.
type LLMProvider interface {
	Chat(ctx context.Context, payload interface{}, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error)
	Renderer() Renderer
	GetDefaultModel() string
}

// LLMConfig carries per-agent model overrides. Nil fields are unset.
type LLMConfig struct {
	MaxTokens          *int
	Temperature        *float64
	CompactionRatio    *float64
	SafetyMarginTokens *int
	TokenLimit         *int
}

// Options converts the request-level fields into provider call options.
func (c LLMConfig) Options() map[string]interface{} {
	opts := map[string]interface{}{}
	if c.MaxTokens != nil {
		opts["max_tokens"] = *c.MaxTokens
	}
	if c.Temperature != nil {
		opts["temperature"] = *c.Temperature
	}
	return opts
}
