package providers

import (
	"context"
	"strings"
)

// AnthropicPayload is the rendered Messages API body minus model settings.
// Anthropic takes the system prompt outside the message list.
type AnthropicPayload struct {
	System   string                   `json:"system,omitempty"`
	Messages []map[string]interface{} `json:"messages"`
}

// AnthropicRenderer degrades tool payloads to [TOOL_*] text.
type AnthropicRenderer struct {
	Media *MediaLoader
}

func (r *AnthropicRenderer) Render(ctx context.Context, messages []Message) (interface{}, error) {
	payload := &AnthropicPayload{Messages: make([]map[string]interface{}, 0, len(messages))}
	var system []string

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if msg.Role == RoleSystem {
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
			continue
		}

		text := degradedText(msg)
		role := degradedRole(msg.Role)

		images, err := loadMedia(ctx, r.Media, "anthropic", msg.ImageURLs)
		if err != nil {
			return nil, err
		}
		warnUnsupportedMedia("anthropic", "audio", msg.AudioURLs)
		warnUnsupportedMedia("anthropic", "video", msg.VideoURLs)

		if len(images) == 0 {
			if text == "" {
				continue
			}
			payload.Messages = append(payload.Messages, map[string]interface{}{"role": string(role), "content": text})
			continue
		}

		blocks := make([]map[string]interface{}, 0, len(images)+1)
		for _, img := range images {
			blocks = append(blocks, map[string]interface{}{
				"type": "image",
				"source": map[string]interface{}{
					"type":       "base64",
					"media_type": img.MIMEType,
					"data":       img.Data,
				},
			})
		}
		if text != "" {
			blocks = append(blocks, map[string]interface{}{"type": "text", "text": text})
		}
		payload.Messages = append(payload.Messages, map[string]interface{}{"role": string(role), "content": blocks})
	}

	payload.System = strings.Join(system, "\n\n")
	return payload, nil
}
