package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

const summaryInstructions = `You compact conversation history for an assistant's long-term memory.
Reply with a single JSON object and nothing else:
{"summary": "<what happened in these turns, in a few sentences>", "facts": ["<durable fact about the user or task>", ...]}
Only list facts that stay true beyond this conversation. Use an empty list when there are none.`

// LLMSummarizer asks a model for a JSON {"summary", "facts"} object.
type LLMSummarizer struct {
	provider providers.LLMProvider
	model    string
	options  map[string]interface{}
}

func NewLLMSummarizer(provider providers.LLMProvider, model string, options map[string]interface{}) *LLMSummarizer {
	if model == "" && provider != nil {
		model = provider.GetDefaultModel()
	}
	return &LLMSummarizer{provider: provider, model: model, options: options}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, items []RawTraceItem) (Summary, error) {
	if s.provider == nil {
		return Summary{}, fmt.Errorf("no summary provider configured")
	}
	messages := []providers.Message{
		providers.SystemMessage(summaryInstructions),
		providers.UserMessage(formatCompactionTranscript(items)),
	}
	payload, err := s.provider.Renderer().Render(ctx, messages)
	if err != nil {
		return Summary{}, fmt.Errorf("render summary request: %w", err)
	}
	resp, err := s.provider.Chat(ctx, payload, nil, s.model, s.options)
	if err != nil {
		return Summary{}, fmt.Errorf("summary request: %w", err)
	}
	if resp == nil {
		return Summary{}, fmt.Errorf("summary request returned no response")
	}
	return parseSummaryResponse(resp.Content)
}

// parseSummaryResponse accepts the JSON contract, optionally inside a code
// fence. Non-JSON text is taken as the summary with no facts.
func parseSummaryResponse(content string) (Summary, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Summary{}, fmt.Errorf("empty summary response")
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		var parsed struct {
			Summary string   `json:"summary"`
			Facts   []string `json:"facts"`
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err == nil && strings.TrimSpace(parsed.Summary) != "" {
			return Summary{Text: strings.TrimSpace(parsed.Summary), Facts: parsed.Facts}, nil
		}
	}
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return Summary{Text: strings.TrimSpace(content)}, nil
}

// HeuristicSummarizer builds a summary without a model: user topics, tools
// used and first-person facts.
type HeuristicSummarizer struct {
	maxTopics int
}

func NewHeuristicSummarizer() *HeuristicSummarizer {
	return &HeuristicSummarizer{maxTopics: 6}
}

func (s *HeuristicSummarizer) Summarize(ctx context.Context, items []RawTraceItem) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	turns := map[string]struct{}{}
	tools := map[string]struct{}{}
	topics := []string{}
	facts := []string{}
	for _, item := range items {
		turns[item.TurnID] = struct{}{}
		switch item.TraceType {
		case TraceUser:
			line := strings.TrimSpace(item.Content)
			if line == "" {
				continue
			}
			facts = append(facts, ExtractFactSignals(line)...)
			if len(topics) >= s.maxTopics {
				continue
			}
			if clipped, cut := clipRunes(line, 160); cut {
				line = clipped + "..."
			}
			topics = append(topics, "- User topic: "+line)
		case TraceToolCall:
			if item.ToolName != "" {
				tools[item.ToolName] = struct{}{}
			}
		}
	}

	parts := []string{fmt.Sprintf("Compacted %d turns (%d events).", len(turns), len(items))}
	parts = append(parts, topics...)
	if len(tools) > 0 {
		names := make([]string, 0, len(tools))
		for name := range tools {
			names = append(names, name)
		}
		sort.Strings(names)
		parts = append(parts, "- Tools used: "+strings.Join(names, ", "))
	}
	return Summary{Text: strings.Join(parts, "\n"), Facts: facts}, nil
}

// formatCompactionTranscript is the plain-text view of raw items sent to the
// summarizer.
func formatCompactionTranscript(items []RawTraceItem) string {
	var b strings.Builder
	for _, item := range items {
		var line string
		switch item.TraceType {
		case TraceUser, TraceAssistant:
			content := strings.TrimSpace(item.Content)
			if content == "" {
				continue
			}
			if clipped, cut := clipRunes(content, 400); cut {
				content = clipped + "..."
			}
			line = string(item.TraceType) + ": " + content
		case TraceToolCall:
			line = "tool call: " + item.ToolName + " " + toolArgsText(item.ToolArgs)
		case TraceToolResult:
			line = "tool result: " + formatToolOutcome(item)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
