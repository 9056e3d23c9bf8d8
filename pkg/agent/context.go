package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/tools"
)

// ContextBuilder assembles the system prompt an agent starts every working
// context with.
type ContextBuilder struct {
	workspace    string
	instructions string
	tools        *tools.ToolRegistry
}

func NewContextBuilder(workspace string) *ContextBuilder {
	return &ContextBuilder{workspace: workspace}
}

// SetToolsRegistry sets the tools registry for dynamic tool summary generation.
func (cb *ContextBuilder) SetToolsRegistry(registry *tools.ToolRegistry) {
	cb.tools = registry
}

// SetInstructions sets operator instructions appended after the identity.
func (cb *ContextBuilder) SetInstructions(instructions string) {
	cb.instructions = strings.TrimSpace(instructions)
}

func (cb *ContextBuilder) getIdentity() string {
	workspacePath, _ := filepath.Abs(cb.workspace)
	runtime := fmt.Sprintf("%s %s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())

	return fmt.Sprintf(`# autobyteus

You are an autobyteus agent, a helpful AI assistant.

## Runtime
%s

## Workspace
Your workspace is at: %s

## Important Rules

1. **Use tools for actions** - When you need to read or change files, call the appropriate tool. Do NOT pretend to do it.

2. **Memory** - Earlier turns may reach you as [MEMORY:EPISODIC], [MEMORY:SEMANTIC] and [RECENT TURNS] sections. Treat them as your own recollection of the conversation.

3. **Context honesty** - Never claim you cannot access prior messages unless the current context lacks them, and say precisely what is missing.`,
		runtime, workspacePath)
}

func (cb *ContextBuilder) buildToolsSection() string {
	if cb.tools == nil {
		return ""
	}

	summaries := cb.tools.GetSummaries()
	if len(summaries) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Available Tools\n\n")
	sb.WriteString("You have access to the following tools:\n\n")
	for _, s := range summaries {
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// BuildSystemPrompt joins identity, instructions, tools and the workspace
// AGENT.md with "---" separators. The output depends only on the workspace
// contents and registered tools.
func (cb *ContextBuilder) BuildSystemPrompt() string {
	parts := []string{cb.getIdentity()}
	if cb.instructions != "" {
		parts = append(parts, "## Instructions\n\n"+cb.instructions)
	}
	if toolsSection := cb.buildToolsSection(); toolsSection != "" {
		parts = append(parts, toolsSection)
	}
	if bootstrapContent := cb.LoadBootstrapFiles(); bootstrapContent != "" {
		parts = append(parts, bootstrapContent)
	}

	prompt := strings.Join(parts, "\n\n---\n\n")
	logger.DebugCF("agent", "System prompt built",
		map[string]interface{}{
			"total_chars":   len(prompt),
			"section_count": len(parts),
		})
	return prompt
}

func (cb *ContextBuilder) LoadBootstrapFiles() string {
	agentCandidates := []string{"AGENT.md", "AGENTS.md"}
	for _, filename := range agentCandidates {
		data, err := os.ReadFile(filepath.Join(cb.workspace, filename))
		if err != nil {
			continue
		}
		return fmt.Sprintf("## %s\n\n%s", filename, strings.TrimSpace(string(data)))
	}
	return ""
}
