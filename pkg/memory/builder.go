package memory

import (
	"sort"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

const (
	sectionEpisodic    = "[MEMORY:EPISODIC]"
	sectionSemantic    = "[MEMORY:SEMANTIC]"
	sectionRecentTurns = "[RECENT TURNS]"
)

// SnapshotBuilder renders memory into the canonical message list used after
// compaction and at bootstrap. Build is pure: equal inputs give byte-equal
// output.
type SnapshotBuilder struct{}

// Build returns [SYSTEM systemPrompt] followed by one USER message holding
// the episodic, semantic and recent-turn sections, when any is non-empty.
func (SnapshotBuilder) Build(systemPrompt string, bundle MemoryBundle, rawTail []RawTraceItem) []providers.Message {
	messages := []providers.Message{providers.SystemMessage(systemPrompt)}

	var sections []string
	if len(bundle.Episodic) > 0 {
		episodic := append([]EpisodicItem(nil), bundle.Episodic...)
		sortEpisodic(episodic)
		lines := []string{sectionEpisodic}
		for _, item := range episodic {
			lines = append(lines, "- "+item.Summary)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if len(bundle.Semantic) > 0 {
		semantic := append([]SemanticItem(nil), bundle.Semantic...)
		sortSemantic(semantic)
		lines := []string{sectionSemantic}
		for _, item := range semantic {
			lines = append(lines, "- "+item.Fact)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if len(rawTail) > 0 {
		lines := []string{sectionRecentTurns}
		for _, item := range rawTail {
			if line := formatTailItem(item); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 1 {
			sections = append(sections, strings.Join(lines, "\n"))
		}
	}

	if len(sections) > 0 {
		messages = append(messages, providers.UserMessage(strings.Join(sections, "\n\n")))
	}
	return messages
}

func formatTailItem(item RawTraceItem) string {
	switch item.TraceType {
	case TraceUser:
		return "user: " + item.Content
	case TraceAssistant:
		return "assistant: " + item.Content
	case TraceToolCall:
		return "TOOL: " + item.ToolName + " " + toolArgsText(item.ToolArgs)
	case TraceToolResult:
		return formatToolOutcome(item)
	}
	return ""
}

func formatToolOutcome(item RawTraceItem) string {
	if item.ToolError != "" {
		return item.ToolName + " -> ERROR: " + item.ToolError
	}
	if s, ok := item.ToolResult.(string); ok {
		return item.ToolName + " -> " + s
	}
	return item.ToolName + " -> " + providers.CompactJSON(item.ToolResult)
}

func toolArgsText(args map[string]interface{}) string {
	if args == nil {
		return "{}"
	}
	return providers.CompactJSON(args)
}

// Newest first, ties broken by ascending id.
func sortEpisodic(items []EpisodicItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].TS != items[j].TS {
			return items[i].TS > items[j].TS
		}
		return items[i].ID < items[j].ID
	})
}

func sortSemantic(items []SemanticItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].TS != items[j].TS {
			return items[i].TS > items[j].TS
		}
		return items[i].ID < items[j].ID
	})
}
