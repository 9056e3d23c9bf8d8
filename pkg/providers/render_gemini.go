package providers

import (
	"context"
	"strings"
)

// GeminiPayload is the rendered generateContent body.
type GeminiPayload struct {
	SystemInstruction map[string]interface{}   `json:"system_instruction,omitempty"`
	Contents          []map[string]interface{} `json:"contents"`
}

// GeminiRenderer maps assistant turns to the "model" role, inlines all media
// and degrades tool payloads to [TOOL_*] text.
type GeminiRenderer struct {
	Media *MediaLoader
}

func (r *GeminiRenderer) Render(ctx context.Context, messages []Message) (interface{}, error) {
	payload := &GeminiPayload{Contents: make([]map[string]interface{}, 0, len(messages))}
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

		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}

		refs := make([]string, 0, len(msg.ImageURLs)+len(msg.AudioURLs)+len(msg.VideoURLs))
		refs = append(refs, msg.ImageURLs...)
		refs = append(refs, msg.AudioURLs...)
		refs = append(refs, msg.VideoURLs...)
		media, err := loadMedia(ctx, r.Media, "gemini", refs)
		if err != nil {
			return nil, err
		}

		parts := make([]map[string]interface{}, 0, len(media)+1)
		if text := degradedText(msg); text != "" {
			parts = append(parts, map[string]interface{}{"text": text})
		}
		for _, m := range media {
			parts = append(parts, map[string]interface{}{
				"inline_data": map[string]interface{}{"mime_type": m.MIMEType, "data": m.Data},
			})
		}
		if len(parts) == 0 {
			continue
		}
		payload.Contents = append(payload.Contents, map[string]interface{}{"role": role, "parts": parts})
	}

	if len(system) > 0 {
		payload.SystemInstruction = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": strings.Join(system, "\n\n")}},
		}
	}
	return payload, nil
}
