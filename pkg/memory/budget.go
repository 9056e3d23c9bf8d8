package memory

import (
	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

// TokenBudget holds the resolved token thresholds for one model.
type TokenBudget struct {
	MaxContextTokens   int
	MaxOutputTokens    int
	SafetyMarginTokens int
	CompactionRatio    float64
	InputBudget        int
}

// Usable reports whether any prompt fits the budget. Output and safety
// reservations that eat the whole context leave nothing to compact toward.
func (b TokenBudget) Usable() bool { return b.InputBudget > 0 }

// CompactionThreshold is the prompt token count at which compaction is
// requested.
func (b TokenBudget) CompactionThreshold() int {
	return int(b.CompactionRatio * float64(b.InputBudget))
}

// ResolveTokenBudget layers explicit config overrides over model defaults
// over the config token limit (context size only) over policy values. It
// returns nil when no layer knows the context size; budget-driven compaction
// is then disabled.
func ResolveTokenBudget(model *providers.ModelMetadata, cfg providers.LLMConfig, policy CompactionPolicy) *TokenBudget {
	var contextTokens int
	switch {
	case model != nil && positive(model.MaxContextTokens):
		contextTokens = *model.MaxContextTokens
	case positive(cfg.TokenLimit):
		contextTokens = *cfg.TokenLimit
	default:
		return nil
	}

	b := &TokenBudget{
		MaxContextTokens:   contextTokens,
		SafetyMarginTokens: policy.SafetyMarginTokens,
		CompactionRatio:    policy.TriggerRatio,
	}

	switch {
	case cfg.MaxTokens != nil:
		b.MaxOutputTokens = *cfg.MaxTokens
	case model != nil && model.DefaultMaxOutputTokens != nil:
		b.MaxOutputTokens = *model.DefaultMaxOutputTokens
	}

	switch {
	case cfg.CompactionRatio != nil:
		b.CompactionRatio = *cfg.CompactionRatio
	case model != nil && model.DefaultCompactionRatio != nil:
		b.CompactionRatio = *model.DefaultCompactionRatio
	}

	switch {
	case cfg.SafetyMarginTokens != nil:
		b.SafetyMarginTokens = *cfg.SafetyMarginTokens
	case model != nil && model.DefaultSafetyMarginTokens != nil:
		b.SafetyMarginTokens = *model.DefaultSafetyMarginTokens
	}

	b.InputBudget = b.MaxContextTokens - b.MaxOutputTokens - b.SafetyMarginTokens
	if b.InputBudget < 0 {
		b.InputBudget = 0
	}
	if !b.Usable() {
		logger.WarnCF("memory", "Token budget leaves no room for input; budget-driven compaction disabled",
			map[string]interface{}{
				"max_context_tokens":   b.MaxContextTokens,
				"max_output_tokens":    b.MaxOutputTokens,
				"safety_margin_tokens": b.SafetyMarginTokens,
			})
	}
	return b
}

func positive(v *int) bool { return v != nil && *v > 0 }

// EstimateTokens approximates the prompt size of messages when a provider
// reports no usage.
func EstimateTokens(messages []providers.Message) int {
	total := 0
	for _, msg := range messages {
		total += estimateTextTokens(msg.Content)
		total += estimateTextTokens(msg.ReasoningContent)
		switch p := msg.ToolPayload.(type) {
		case *providers.ToolCallPayload:
			for _, call := range p.ToolCalls {
				total += estimateTextTokens(call.Name + providers.CompactJSON(call.Arguments))
			}
		case *providers.ToolResultPayload:
			total += estimateTextTokens(providers.FormatToolResultText(p))
		}
	}
	return total
}

func estimateTextTokens(content string) int {
	runes := len([]rune(content))
	if runes == 0 {
		return 0
	}
	tokens := runes * 2 / 5
	if tokens < 8 {
		return 8
	}
	return tokens
}
