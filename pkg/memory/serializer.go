package memory

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

// SnapshotSchemaVersion is the current persisted snapshot layout.
const SnapshotSchemaVersion = 1

// SnapshotMetadata travels with a serialized snapshot.
type SnapshotMetadata struct {
	SchemaVersion int
	AgentID       string
}

// SerializeSnapshot converts s into a JSON-safe map. Tool values json cannot
// encode are stored as their fmt.Sprint text.
func SerializeSnapshot(s *WorkingContextSnapshot, meta SnapshotMetadata) map[string]interface{} {
	if meta.SchemaVersion == 0 {
		meta.SchemaVersion = SnapshotSchemaVersion
	}
	msgs := s.BuildMessages()
	out := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, serializeMessage(msg))
	}

	var ts interface{}
	if s.LastCompactionTS != nil {
		ts = *s.LastCompactionTS
	}
	return map[string]interface{}{
		"schema_version":     meta.SchemaVersion,
		"agent_id":           meta.AgentID,
		"epoch_id":           s.EpochID(),
		"last_compaction_ts": ts,
		"messages":           out,
	}
}

func serializeMessage(msg providers.Message) map[string]interface{} {
	return map[string]interface{}{
		"role":              string(msg.Role),
		"content":           nullableString(msg.Content),
		"reasoning_content": nullableString(msg.ReasoningContent),
		"image_urls":        stringList(msg.ImageURLs),
		"audio_urls":        stringList(msg.AudioURLs),
		"video_urls":        stringList(msg.VideoURLs),
		"tool_payload":      serializeToolPayload(msg.ToolPayload),
	}
}

func serializeToolPayload(p providers.ToolPayload) interface{} {
	switch tp := p.(type) {
	case *providers.ToolCallPayload:
		if tp == nil {
			return nil
		}
		calls := make([]interface{}, 0, len(tp.ToolCalls))
		for _, call := range tp.ToolCalls {
			calls = append(calls, map[string]interface{}{
				"id":        call.ID,
				"name":      call.Name,
				"arguments": jsonSafeArguments(call.Arguments),
			})
		}
		return map[string]interface{}{"tool_calls": calls}
	case *providers.ToolResultPayload:
		if tp == nil {
			return nil
		}
		return map[string]interface{}{
			"tool_call_id": tp.ToolCallID,
			"tool_name":    tp.ToolName,
			"tool_result":  jsonSafe(tp.ToolResult),
			"tool_error":   nullableString(tp.ToolError),
		}
	}
	return nil
}

func jsonSafe(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}

func jsonSafeArguments(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return map[string]interface{}{}
	}
	if _, err := json.Marshal(args); err == nil {
		return args
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = jsonSafe(v)
	}
	return out
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func stringList(values []string) []interface{} {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

// ValidateSnapshot is a structural gate run before DeserializeSnapshot.
func ValidateSnapshot(payload map[string]interface{}) bool {
	if payload == nil {
		return false
	}
	if _, ok := asInt(payload["schema_version"]); !ok {
		return false
	}
	if _, ok := payload["agent_id"].(string); !ok {
		return false
	}
	msgs, ok := payload["messages"].([]interface{})
	if !ok {
		return false
	}
	for _, raw := range msgs {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return false
		}
		if _, ok := m["role"].(string); !ok {
			return false
		}
	}
	return true
}

// DeserializeSnapshot rebuilds a snapshot from a payload produced by
// SerializeSnapshot, directly or after a JSON round trip.
func DeserializeSnapshot(payload map[string]interface{}) (*WorkingContextSnapshot, SnapshotMetadata, error) {
	if !ValidateSnapshot(payload) {
		return nil, SnapshotMetadata{}, ErrInvalidSnapshot
	}
	version, _ := asInt(payload["schema_version"])
	meta := SnapshotMetadata{SchemaVersion: version, AgentID: payload["agent_id"].(string)}

	epoch, ok := asInt(payload["epoch_id"])
	if !ok {
		epoch = 1
	}
	var ts *float64
	if v, ok := asFloat(payload["last_compaction_ts"]); ok {
		ts = &v
	}

	raw := payload["messages"].([]interface{})
	messages := make([]providers.Message, 0, len(raw))
	for i, item := range raw {
		msg, err := deserializeMessage(item.(map[string]interface{}))
		if err != nil {
			return nil, SnapshotMetadata{}, fmt.Errorf("%w: messages[%d]: %v", ErrInvalidSnapshot, i, err)
		}
		messages = append(messages, msg)
	}
	return restoreWorkingContextSnapshot(messages, epoch, ts), meta, nil
}

func deserializeMessage(m map[string]interface{}) (providers.Message, error) {
	role, ok := providers.ParseRole(m["role"].(string))
	if !ok {
		return providers.Message{}, fmt.Errorf("unknown role %q", m["role"])
	}
	msg := providers.Message{
		Role:             role,
		Content:          asString(m["content"]),
		ReasoningContent: asString(m["reasoning_content"]),
		ImageURLs:        asStrings(m["image_urls"]),
		AudioURLs:        asStrings(m["audio_urls"]),
		VideoURLs:        asStrings(m["video_urls"]),
	}

	tp, ok := m["tool_payload"].(map[string]interface{})
	if !ok {
		return msg, nil
	}
	if rawCalls, ok := tp["tool_calls"]; ok {
		list, _ := rawCalls.([]interface{})
		calls := make([]providers.ToolCallSpec, 0, len(list))
		for _, rc := range list {
			c, ok := rc.(map[string]interface{})
			if !ok {
				return providers.Message{}, fmt.Errorf("tool call is not an object")
			}
			args, _ := c["arguments"].(map[string]interface{})
			if args == nil {
				args = map[string]interface{}{}
			}
			calls = append(calls, providers.ToolCallSpec{
				ID:        asString(c["id"]),
				Name:      asString(c["name"]),
				Arguments: args,
			})
		}
		msg.ToolPayload = &providers.ToolCallPayload{ToolCalls: calls}
		return msg, nil
	}
	msg.ToolPayload = &providers.ToolResultPayload{
		ToolCallID: asString(tp["tool_call_id"]),
		ToolName:   asString(tp["tool_name"]),
		ToolResult: tp["tool_result"],
		ToolError:  asString(tp["tool_error"]),
	}
	return msg, nil
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asStrings(v interface{}) []string {
	var out []string
	switch list := v.(type) {
	case []string:
		out = append(out, list...)
	case []interface{}:
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
