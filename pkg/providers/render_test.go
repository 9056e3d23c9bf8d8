package providers

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolConversation() []Message {
	return []Message{
		SystemMessage("You are helpful."),
		UserMessage("find the docs"),
		{
			Role: RoleAssistant,
			ToolPayload: &ToolCallPayload{ToolCalls: []ToolCallSpec{
				{ID: "call_1", Name: "search", Arguments: map[string]interface{}{"query": "memory"}},
			}},
		},
		{
			Role:        RoleTool,
			ToolPayload: &ToolResultPayload{ToolCallID: "call_1", ToolName: "search", ToolResult: map[string]interface{}{"hits": 2}},
		},
		{Role: RoleAssistant, Content: "Found two documents.", ReasoningContent: "counted hits"},
	}
}

func TestFormatToolText(t *testing.T) {
	calls := []ToolCallSpec{
		{ID: "a", Name: "search", Arguments: map[string]interface{}{"query": "x<y", "limit": 3}},
		{ID: "b", Name: "noop"},
	}
	assert.Equal(t, "[TOOL_CALL] search {\"limit\":3,\"query\":\"x<y\"}\n[TOOL_CALL] noop {}", FormatToolCallText(calls))

	assert.Equal(t, `[TOOL_RESULT] search {"hits":2}`,
		FormatToolResultText(&ToolResultPayload{ToolName: "search", ToolResult: map[string]interface{}{"hits": 2}}))
	assert.Equal(t, `[TOOL_RESULT] read_file "hello"`,
		FormatToolResultText(&ToolResultPayload{ToolName: "read_file", ToolResult: "hello"}))
	assert.Equal(t, "[TOOL_ERROR] read_file permission denied",
		FormatToolResultText(&ToolResultPayload{ToolName: "read_file", ToolError: "permission denied"}))
}

func TestAnthropicRenderer_DegradesToolPayloads(t *testing.T) {
	out, err := (&AnthropicRenderer{}).Render(context.Background(), toolConversation())
	require.NoError(t, err)

	payload := out.(*AnthropicPayload)
	assert.Equal(t, "You are helpful.", payload.System)
	require.Len(t, payload.Messages, 4)
	assert.Equal(t, map[string]interface{}{"role": "user", "content": "find the docs"}, payload.Messages[0])
	assert.Equal(t, map[string]interface{}{"role": "assistant", "content": `[TOOL_CALL] search {"query":"memory"}`}, payload.Messages[1])
	assert.Equal(t, map[string]interface{}{"role": "user", "content": `[TOOL_RESULT] search {"hits":2}`}, payload.Messages[2])
	assert.Equal(t, map[string]interface{}{"role": "assistant", "content": "Found two documents."}, payload.Messages[3])
}

func TestGeminiRenderer_DegradesToolPayloads(t *testing.T) {
	out, err := (&GeminiRenderer{}).Render(context.Background(), toolConversation())
	require.NoError(t, err)

	payload := out.(*GeminiPayload)
	require.NotNil(t, payload.SystemInstruction)
	require.Len(t, payload.Contents, 4)

	textOf := func(i int) string {
		parts := payload.Contents[i]["parts"].([]map[string]interface{})
		return parts[0]["text"].(string)
	}
	assert.Equal(t, "model", payload.Contents[1]["role"])
	assert.Equal(t, `[TOOL_CALL] search {"query":"memory"}`, textOf(1))
	assert.Equal(t, "user", payload.Contents[2]["role"])
	assert.Equal(t, `[TOOL_RESULT] search {"hits":2}`, textOf(2))
}

func TestMistralAndOllamaRenderers_DegradeToolPayloads(t *testing.T) {
	for name, r := range map[string]Renderer{"mistral": &MistralRenderer{}, "ollama": &OllamaRenderer{}} {
		out, err := r.Render(context.Background(), toolConversation())
		require.NoError(t, err, name)

		msgs := out.([]map[string]interface{})
		require.Len(t, msgs, 5, name)
		assert.Equal(t, "system", msgs[0]["role"], name)
		assert.Equal(t, "assistant", msgs[2]["role"], name)
		assert.Equal(t, `[TOOL_CALL] search {"query":"memory"}`, msgs[2]["content"], name)
		assert.Equal(t, "user", msgs[3]["role"], name)
		assert.Equal(t, `[TOOL_RESULT] search {"hits":2}`, msgs[3]["content"], name)
	}
}

func TestDegradedText_KeepsContentBeforeToolLines(t *testing.T) {
	msg := Message{
		Role:        RoleAssistant,
		Content:     "Let me check.",
		ToolPayload: &ToolCallPayload{ToolCalls: []ToolCallSpec{{ID: "c", Name: "ls", Arguments: map[string]interface{}{}}}},
	}
	assert.Equal(t, "Let me check.\n[TOOL_CALL] ls {}", degradedText(msg))
}

func TestOpenAIChatRenderer_NativeToolBlocks(t *testing.T) {
	out, err := (&OpenAIChatRenderer{}).Render(context.Background(), toolConversation())
	require.NoError(t, err)

	msgs := out.([]map[string]interface{})
	require.Len(t, msgs, 5)

	assert.Nil(t, msgs[2]["content"])
	calls := msgs[2]["tool_calls"].([]map[string]interface{})
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0]["id"])
	fn := calls[0]["function"].(map[string]interface{})
	assert.Equal(t, "search", fn["name"])
	assert.Equal(t, `{"query":"memory"}`, fn["arguments"])

	assert.Equal(t, "tool", msgs[3]["role"])
	assert.Equal(t, "call_1", msgs[3]["tool_call_id"])
	assert.Equal(t, `{"hits":2}`, msgs[3]["content"])
}

func TestOpenAIChatRenderer_OrphanResultDegrades(t *testing.T) {
	out, err := (&OpenAIChatRenderer{}).Render(context.Background(), []Message{
		{Role: RoleTool, ToolPayload: &ToolResultPayload{ToolCallID: "missing", ToolName: "search", ToolError: "boom"}},
	})
	require.NoError(t, err)

	msgs := out.([]map[string]interface{})
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0]["role"])
	assert.Equal(t, "[TOOL_ERROR] search boom", msgs[0]["content"])
}

func TestOpenAIChatRenderer_EncodesLocalImages(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "pixel.png")
	raw := []byte("\x89PNG\r\n\x1a\nfake")
	require.NoError(t, os.WriteFile(imgPath, raw, 0o600))

	out, err := (&OpenAIChatRenderer{}).Render(context.Background(), []Message{
		{Role: RoleUser, Content: "what is this?", ImageURLs: []string{imgPath, "https://example.com/cat.jpg"}},
	})
	require.NoError(t, err)

	parts := out.([]map[string]interface{})[0]["content"].([]map[string]interface{})
	require.Len(t, parts, 3)
	assert.Equal(t, "text", parts[0]["type"])
	local := parts[1]["image_url"].(map[string]interface{})["url"].(string)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(raw), local)
	remote := parts[2]["image_url"].(map[string]interface{})["url"].(string)
	assert.Equal(t, "https://example.com/cat.jpg", remote)
}

func TestOllamaRenderer_InlinesImages(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(imgPath, []byte("jpeg-bytes"), 0o600))

	out, err := (&OllamaRenderer{}).Render(context.Background(), []Message{
		{Role: RoleUser, Content: "describe", ImageURLs: []string{imgPath, filepath.Join(t.TempDir(), "missing.jpg")}},
	})
	require.NoError(t, err)

	msg := out.([]map[string]interface{})[0]
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))}, msg["images"])
}

func TestRenderers_HonorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	renderers := []Renderer{
		&OpenAIChatRenderer{}, &OpenAIResponsesRenderer{}, &AnthropicRenderer{},
		&GeminiRenderer{}, &MistralRenderer{}, &OllamaRenderer{},
	}
	for _, r := range renderers {
		_, err := r.Render(ctx, []Message{UserMessage("hi")})
		assert.ErrorIs(t, err, context.Canceled, "%T", r)
	}
}

func TestRenderers_AllRolesWithoutPanic(t *testing.T) {
	msgs := append(toolConversation(), Message{Role: RoleTool, Content: "plain tool text"})
	renderers := []Renderer{
		&OpenAIChatRenderer{}, &OpenAIResponsesRenderer{}, &AnthropicRenderer{},
		&GeminiRenderer{}, &MistralRenderer{}, &OllamaRenderer{},
	}
	for _, r := range renderers {
		out, err := r.Render(context.Background(), msgs)
		require.NoError(t, err, "%T", r)
		require.NotNil(t, out, "%T", r)
		assert.False(t, strings.Contains(CompactJSON(out), "reasoning"), "%T leaked reasoning", r)
	}
}
