package providers

import (
	"context"
	"strings"
)

// OpenAIChatRenderer produces the chat completions "messages" array with
// native tool_calls and tool messages.
type OpenAIChatRenderer struct {
	Media *MediaLoader
}

func (r *OpenAIChatRenderer) Render(ctx context.Context, messages []Message) (interface{}, error) {
	out := make([]map[string]interface{}, 0, len(messages))
	seenCalls := map[string]bool{}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if calls := msg.ToolCalls(); len(calls) > 0 {
			wireCalls := make([]map[string]interface{}, 0, len(calls))
			for _, call := range calls {
				seenCalls[call.ID] = true
				wireCalls = append(wireCalls, map[string]interface{}{
					"id":   call.ID,
					"type": "function",
					"function": map[string]interface{}{
						"name":      call.Name,
						"arguments": argumentsJSON(call.Arguments),
					},
				})
			}
			item := map[string]interface{}{"role": string(RoleAssistant), "tool_calls": wireCalls}
			if msg.Content != "" {
				item["content"] = msg.Content
			} else {
				item["content"] = nil
			}
			out = append(out, item)
			continue
		}

		if result, ok := msg.ToolResult(); ok {
			if !seenCalls[result.ToolCallID] {
				// Orphaned results would be rejected by the API.
				out = append(out, map[string]interface{}{"role": string(RoleUser), "content": degradedText(msg)})
				continue
			}
			out = append(out, map[string]interface{}{
				"role":         string(RoleTool),
				"tool_call_id": result.ToolCallID,
				"content":      toolResultOutput(result),
			})
			continue
		}

		role := msg.Role
		if role == RoleTool {
			role = RoleUser
		}
		content, err := r.content(ctx, msg)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{"role": string(role), "content": content})
	}
	return out, nil
}

func (r *OpenAIChatRenderer) content(ctx context.Context, msg Message) (interface{}, error) {
	if len(msg.ImageURLs) == 0 && len(msg.AudioURLs) == 0 {
		warnUnsupportedMedia("openai_chat", "video", msg.VideoURLs)
		return msg.Content, nil
	}

	parts := make([]map[string]interface{}, 0, 1+len(msg.ImageURLs)+len(msg.AudioURLs))
	if msg.Content != "" {
		parts = append(parts, map[string]interface{}{"type": "text", "text": msg.Content})
	}
	for _, ref := range msg.ImageURLs {
		url := ref
		if !IsRemoteURL(ref) && !IsDataURI(ref) {
			loaded, err := loadMedia(ctx, r.Media, "openai_chat", []string{ref})
			if err != nil {
				return nil, err
			}
			if len(loaded) == 0 {
				continue
			}
			url = loaded[0].DataURI()
		}
		parts = append(parts, map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]interface{}{"url": url},
		})
	}
	audio, err := loadMedia(ctx, r.Media, "openai_chat", msg.AudioURLs)
	if err != nil {
		return nil, err
	}
	for _, a := range audio {
		parts = append(parts, map[string]interface{}{
			"type":        "input_audio",
			"input_audio": map[string]interface{}{"data": a.Data, "format": audioFormat(a.MIMEType)},
		})
	}
	warnUnsupportedMedia("openai_chat", "video", msg.VideoURLs)
	return parts, nil
}

// OpenAIResponsesRenderer produces the Responses API "input" item list.
type OpenAIResponsesRenderer struct {
	Media *MediaLoader
}

func (r *OpenAIResponsesRenderer) Render(ctx context.Context, messages []Message) (interface{}, error) {
	out := make([]map[string]interface{}, 0, len(messages))
	seenCalls := map[string]bool{}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if msg.Role == RoleAssistant && strings.TrimSpace(msg.Content) != "" {
			out = append(out, map[string]interface{}{
				"role":    string(RoleAssistant),
				"content": []map[string]interface{}{{"type": "output_text", "text": msg.Content}},
			})
		}

		if calls := msg.ToolCalls(); len(calls) > 0 {
			for _, call := range calls {
				seenCalls[call.ID] = true
				out = append(out, map[string]interface{}{
					"type":      "function_call",
					"call_id":   call.ID,
					"name":      call.Name,
					"arguments": argumentsJSON(call.Arguments),
				})
			}
			continue
		}

		if result, ok := msg.ToolResult(); ok {
			if !seenCalls[result.ToolCallID] {
				out = append(out, responsesText(RoleUser, degradedText(msg)))
				continue
			}
			out = append(out, map[string]interface{}{
				"type":    "function_call_output",
				"call_id": result.ToolCallID,
				"output":  toolResultOutput(result),
			})
			continue
		}

		if msg.Role == RoleAssistant {
			continue
		}

		role := msg.Role
		if role == RoleTool {
			role = RoleUser
		}
		item := responsesText(role, msg.Content)
		parts := item["content"].([]map[string]interface{})
		for _, ref := range msg.ImageURLs {
			url := ref
			if !IsRemoteURL(ref) && !IsDataURI(ref) {
				loaded, err := loadMedia(ctx, r.Media, "openai_responses", []string{ref})
				if err != nil {
					return nil, err
				}
				if len(loaded) == 0 {
					continue
				}
				url = loaded[0].DataURI()
			}
			parts = append(parts, map[string]interface{}{"type": "input_image", "image_url": url})
		}
		warnUnsupportedMedia("openai_responses", "audio", msg.AudioURLs)
		warnUnsupportedMedia("openai_responses", "video", msg.VideoURLs)
		if len(parts) == 0 {
			continue
		}
		item["content"] = parts
		out = append(out, item)
	}
	return out, nil
}

func responsesText(role Role, text string) map[string]interface{} {
	parts := []map[string]interface{}{}
	if strings.TrimSpace(text) != "" {
		parts = append(parts, map[string]interface{}{"type": "input_text", "text": text})
	}
	return map[string]interface{}{"role": string(role), "content": parts}
}
