package providers

import (
	"context"
	"testing"
)

func renderResponses(t *testing.T, msgs []Message) []map[string]interface{} {
	t.Helper()
	out, err := (&OpenAIResponsesRenderer{}).Render(context.Background(), msgs)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return out.([]map[string]interface{})
}

func TestOpenAIResponsesRenderer_ConvertsToolMessages(t *testing.T) {
	input := renderResponses(t, []Message{
		SystemMessage("system prompt"),
		UserMessage("read file"),
		{
			Role: RoleAssistant,
			ToolPayload: &ToolCallPayload{ToolCalls: []ToolCallSpec{
				{ID: "call_1", Name: "read_file", Arguments: map[string]interface{}{"path": "README.md"}},
			}},
		},
		{Role: RoleTool, ToolPayload: &ToolResultPayload{ToolCallID: "call_1", ToolName: "read_file", ToolResult: map[string]interface{}{"ok": true}}},
	})

	foundFunctionCall := false
	foundFunctionCallOutput := false
	for _, item := range input {
		switch item["type"] {
		case "function_call":
			foundFunctionCall = true
			if got := item["call_id"]; got != "call_1" {
				t.Fatalf("expected function call id call_1, got %v", got)
			}
			if got := item["arguments"]; got != `{"path":"README.md"}` {
				t.Fatalf("unexpected arguments %v", got)
			}
		case "function_call_output":
			foundFunctionCallOutput = true
			if got := item["output"]; got != `{"ok":true}` {
				t.Fatalf("unexpected output %v", got)
			}
		}
	}
	if !foundFunctionCall {
		t.Fatalf("expected function_call item in responses input")
	}
	if !foundFunctionCallOutput {
		t.Fatalf("expected function_call_output item in responses input")
	}
}

func TestOpenAIResponsesRenderer_AssistantUsesOutputText(t *testing.T) {
	input := renderResponses(t, []Message{{Role: RoleAssistant, Content: "assistant reply"}})
	if len(input) != 1 {
		t.Fatalf("expected one item, got %d", len(input))
	}
	parts := input[0]["content"].([]map[string]interface{})
	if parts[0]["type"] != "output_text" {
		t.Fatalf("expected assistant content as output_text, got %v", parts[0]["type"])
	}
}

func TestOpenAIResponsesRenderer_OrphanResultBecomesUserText(t *testing.T) {
	input := renderResponses(t, []Message{
		{Role: RoleTool, ToolPayload: &ToolResultPayload{ToolCallID: "nope", ToolName: "ls", ToolResult: "a b"}},
	})
	if len(input) != 1 || input[0]["role"] != "user" {
		t.Fatalf("expected a single user item, got %v", input)
	}
	parts := input[0]["content"].([]map[string]interface{})
	if parts[0]["text"] != `[TOOL_RESULT] ls "a b"` {
		t.Fatalf("unexpected degraded text %v", parts[0]["text"])
	}
}

func TestParseResponsesResponse_ToolCallsAndUsage(t *testing.T) {
	body := []byte(`{
		"id":"resp_1","status":"completed",
		"output":[
			{"type":"reasoning","summary":[{"text":"thinking it over"}]},
			{"type":"function_call","call_id":"call_9","name":"search","arguments":"{\"q\":\"go\"}"},
			{"type":"message","content":[{"type":"output_text","text":"working on it"}]}
		],
		"usage":{"input_tokens":120,"output_tokens":30,"total_tokens":150}
	}`)
	resp, err := parseResponsesResponse(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if resp.FinishReason != "tool_calls" {
		t.Fatalf("expected tool_calls finish reason, got %q", resp.FinishReason)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "call_9" || resp.ToolCalls[0].Arguments["q"] != "go" {
		t.Fatalf("unexpected tool calls %+v", resp.ToolCalls)
	}
	if resp.Content != "working on it" || resp.ReasoningContent != "thinking it over" {
		t.Fatalf("unexpected content %q / reasoning %q", resp.Content, resp.ReasoningContent)
	}
	if resp.Usage == nil || resp.Usage.PromptTokens != 120 || resp.Usage.TotalTokens != 150 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}
