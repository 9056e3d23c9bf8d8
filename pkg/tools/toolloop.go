package tools

import (
	"encoding/json"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

const (
	toolRepeatThreshold         = 3
	toolDriftCountThreshold     = 8
	toolDriftDistinctSigCeiling = 2
)

// LoopGuard trips when a turn keeps issuing the same tool calls. Create one
// per turn.
type LoopGuard struct {
	signatures         map[string]int
	nameCounts         map[string]int
	distinctSignatures map[string]map[string]struct{}
}

func NewLoopGuard() *LoopGuard {
	return &LoopGuard{
		signatures:         map[string]int{},
		nameCounts:         map[string]int{},
		distinctSignatures: map[string]map[string]struct{}{},
	}
}

// Observe records one round of tool calls. When it returns true the caller
// should stop iterating and answer with the returned message.
func (g *LoopGuard) Observe(calls []providers.ToolCallSpec, iteration int) (bool, string) {
	signature := toolCallSignature(calls)
	if signature != "" {
		g.signatures[signature]++
		if g.signatures[signature] >= toolRepeatThreshold {
			logger.WarnCF("toolloop", "Tool-call loop detected; tripping circuit breaker",
				map[string]interface{}{
					"signature": signature,
					"count":     g.signatures[signature],
					"iteration": iteration,
				})
			return true, "I'm stopping tool execution because I detected a repeated tool-call loop. If you still want this action, restate it with a narrower scope."
		}
	}

	for _, tc := range calls {
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			name = "(unknown)"
		}
		g.nameCounts[name]++
		argsJSON, _ := json.Marshal(tc.Arguments)
		if _, ok := g.distinctSignatures[name]; !ok {
			g.distinctSignatures[name] = map[string]struct{}{}
		}
		g.distinctSignatures[name][string(argsJSON)] = struct{}{}
		distinct := len(g.distinctSignatures[name])
		if g.nameCounts[name] >= toolDriftCountThreshold && distinct <= toolDriftDistinctSigCeiling {
			logger.WarnCF("toolloop", "Tool drift loop detected; tripping circuit breaker",
				map[string]interface{}{
					"tool":                name,
					"count":               g.nameCounts[name],
					"distinct_signatures": distinct,
					"iteration":           iteration,
				})
			return true, "I'm stopping tool execution because one tool kept being called repeatedly. If you still want this action, restate it with a narrower scope."
		}
	}
	return false, ""
}

func toolCallSignature(calls []providers.ToolCallSpec) string {
	if len(calls) == 0 {
		return ""
	}
	parts := make([]string, 0, len(calls))
	for _, tc := range calls {
		argsJSON, _ := json.Marshal(tc.Arguments)
		parts = append(parts, tc.Name+":"+string(argsJSON))
	}
	return strings.Join(parts, "|")
}
