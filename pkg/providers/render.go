package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
)

const (
	toolCallPrefix   = "[TOOL_CALL]"
	toolResultPrefix = "[TOOL_RESULT]"
	toolErrorPrefix  = "[TOOL_ERROR]"
)

// CompactJSON encodes v without HTML escaping or a trailing newline. Values
// json cannot encode fall back to fmt.Sprint.
func CompactJSON(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func argumentsJSON(args map[string]interface{}) string {
	if args == nil {
		return "{}"
	}
	return CompactJSON(args)
}

// FormatToolCallText renders tool calls for providers that get no native
// tool blocks, one "[TOOL_CALL] name {args}" line per call.
func FormatToolCallText(calls []ToolCallSpec) string {
	lines := make([]string, 0, len(calls))
	for _, call := range calls {
		lines = append(lines, toolCallPrefix+" "+call.Name+" "+argumentsJSON(call.Arguments))
	}
	return strings.Join(lines, "\n")
}

// FormatToolResultText is the text form of a tool result: "[TOOL_RESULT] name
// {result}", or "[TOOL_ERROR] name message" for failed calls.
func FormatToolResultText(p *ToolResultPayload) string {
	if p == nil {
		return toolResultPrefix + " unknown null"
	}
	if p.ToolError != "" {
		return toolErrorPrefix + " " + p.ToolName + " " + p.ToolError
	}
	return toolResultPrefix + " " + p.ToolName + " " + CompactJSON(p.ToolResult)
}

// degradedText is the full text form of m: content followed by any tool
// payload rendered as [TOOL_*] lines.
func degradedText(m Message) string {
	var payload string
	switch p := m.ToolPayload.(type) {
	case *ToolCallPayload:
		if p != nil {
			payload = FormatToolCallText(p.ToolCalls)
		}
	case *ToolResultPayload:
		payload = FormatToolResultText(p)
	}
	switch {
	case payload == "":
		return m.Content
	case m.Content == "":
		return payload
	default:
		return m.Content + "\n" + payload
	}
}

// degradedRole maps TOOL messages to USER for text-only providers.
func degradedRole(r Role) Role {
	if r == RoleTool {
		return RoleUser
	}
	return r
}

// toolResultOutput is what native tool blocks carry as output text.
func toolResultOutput(p *ToolResultPayload) string {
	if p.ToolError != "" {
		return "Error: " + p.ToolError
	}
	if s, ok := p.ToolResult.(string); ok {
		return s
	}
	return CompactJSON(p.ToolResult)
}

// loadMedia resolves refs, skipping (and logging) the ones that fail. A
// cancelled context aborts the whole render.
func loadMedia(ctx context.Context, loader *MediaLoader, renderer string, refs []string) ([]*MediaData, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	if loader == nil {
		loader = NewMediaLoader(nil)
	}
	out := make([]*MediaData, 0, len(refs))
	for _, ref := range refs {
		data, err := loader.Load(ctx, ref)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.WarnCF("providers", "Skipping unreadable media", map[string]interface{}{
				"renderer": renderer,
				"ref":      ref,
				"error":    err.Error(),
			})
			continue
		}
		out = append(out, data)
	}
	return out, nil
}

func warnUnsupportedMedia(renderer, kind string, refs []string) {
	if len(refs) == 0 {
		return
	}
	logger.WarnCF("providers", "Dropping unsupported media", map[string]interface{}{
		"renderer": renderer,
		"kind":     kind,
		"count":    len(refs),
	})
}
