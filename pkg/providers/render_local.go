package providers

import "context"

// MistralRenderer emits chat-completions style messages with tool payloads
// degraded to [TOOL_*] text.
type MistralRenderer struct {
	Media *MediaLoader
}

func (r *MistralRenderer) Render(ctx context.Context, messages []Message) (interface{}, error) {
	out := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := degradedText(msg)
		role := string(degradedRole(msg.Role))
		warnUnsupportedMedia("mistral", "audio", msg.AudioURLs)
		warnUnsupportedMedia("mistral", "video", msg.VideoURLs)

		if len(msg.ImageURLs) == 0 {
			out = append(out, map[string]interface{}{"role": role, "content": text})
			continue
		}

		parts := []map[string]interface{}{}
		if text != "" {
			parts = append(parts, map[string]interface{}{"type": "text", "text": text})
		}
		for _, ref := range msg.ImageURLs {
			url := ref
			if !IsRemoteURL(ref) && !IsDataURI(ref) {
				loaded, err := loadMedia(ctx, r.Media, "mistral", []string{ref})
				if err != nil {
					return nil, err
				}
				if len(loaded) == 0 {
					continue
				}
				url = loaded[0].DataURI()
			}
			parts = append(parts, map[string]interface{}{"type": "image_url", "image_url": url})
		}
		out = append(out, map[string]interface{}{"role": role, "content": parts})
	}
	return out, nil
}

// OllamaRenderer emits /api/chat messages. Images travel as raw base64 in the
// "images" field; tool payloads are degraded to [TOOL_*] text.
type OllamaRenderer struct {
	Media *MediaLoader
}

func (r *OllamaRenderer) Render(ctx context.Context, messages []Message) (interface{}, error) {
	out := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := map[string]interface{}{
			"role":    string(degradedRole(msg.Role)),
			"content": degradedText(msg),
		}
		images, err := loadMedia(ctx, r.Media, "ollama", msg.ImageURLs)
		if err != nil {
			return nil, err
		}
		if len(images) > 0 {
			encoded := make([]string, 0, len(images))
			for _, img := range images {
				encoded = append(encoded, img.Data)
			}
			item["images"] = encoded
		}
		warnUnsupportedMedia("ollama", "audio", msg.AudioURLs)
		warnUnsupportedMedia("ollama", "video", msg.VideoURLs)
		out = append(out, item)
	}
	return out, nil
}
