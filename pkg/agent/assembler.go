package agent

import (
	"context"
	"fmt"

	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/memory"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

// RequestPackage is one assembled model request.
type RequestPackage struct {
	Messages        []providers.Message
	RenderedPayload interface{}
	DidCompact      bool
}

// LLMRequestAssembler turns the working transcript into provider payloads,
// compacting first when the memory manager has asked for it.
type LLMRequestAssembler struct {
	memory   *memory.Manager
	renderer providers.Renderer
}

func NewLLMRequestAssembler(m *memory.Manager, renderer providers.Renderer) *LLMRequestAssembler {
	return &LLMRequestAssembler{memory: m, renderer: renderer}
}

// PrepareRequest appends the user input of the current turn and renders the
// transcript.
func (a *LLMRequestAssembler) PrepareRequest(ctx context.Context, input, currentTurnID, systemPrompt string) (*RequestPackage, error) {
	return a.PrepareMessage(ctx, providers.UserMessage(input), currentTurnID, systemPrompt)
}

// PrepareMessage is PrepareRequest for a user message that may carry media.
// When compaction is pending it runs before the input is appended. A failed
// compaction leaves the transcript as it was and the request pending.
func (a *LLMRequestAssembler) PrepareMessage(ctx context.Context, input providers.Message, currentTurnID, systemPrompt string) (*RequestPackage, error) {
	didCompact := false
	if a.memory.CompactionRequired() {
		if err := a.compact(ctx, currentTurnID, systemPrompt); err != nil {
			return nil, err
		}
		didCompact = true
	}

	input.Role = providers.RoleUser
	a.memory.Transcript().AppendMessage(input)

	pkg, err := a.Render(ctx)
	if err != nil {
		return nil, err
	}
	pkg.DidCompact = didCompact
	return pkg, nil
}

// Render renders the transcript as it stands, used between tool iterations.
func (a *LLMRequestAssembler) Render(ctx context.Context) (*RequestPackage, error) {
	messages := a.memory.GetTranscriptMessages()
	payload, err := a.renderer.Render(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("render request: %w", err)
	}
	return &RequestPackage{Messages: messages, RenderedPayload: payload}, nil
}

// CompactInFlight compacts in the middle of a turn and replays the turn's
// recorded items onto the rebuilt transcript. Used when the provider rejects
// a request for overflowing its window.
func (a *LLMRequestAssembler) CompactInFlight(ctx context.Context, currentTurnID, systemPrompt string) (*RequestPackage, error) {
	current, err := a.memory.Store().RawTraceByTurn(ctx, currentTurnID)
	if err != nil {
		return nil, fmt.Errorf("compaction: load current turn: %w", err)
	}
	input, hasInput := turnInput(a.memory.GetTranscriptMessages(), current)
	if err := a.compact(ctx, currentTurnID, systemPrompt); err != nil {
		return nil, err
	}
	replayTurn(a.memory.Transcript(), current, input, hasInput)

	pkg, err := a.Render(ctx)
	if err != nil {
		return nil, err
	}
	pkg.DidCompact = true
	return pkg, nil
}

func (a *LLMRequestAssembler) compact(ctx context.Context, currentTurnID, systemPrompt string) error {
	if systemPrompt == "" {
		systemPrompt = leadingSystemPrompt(a.memory.GetTranscriptMessages())
	}
	policy := a.memory.Policy()

	window, err := a.memory.Compactor().SelectCompactionWindow(ctx, currentTurnID)
	if err != nil {
		return fmt.Errorf("compaction: %w", err)
	}
	if err := a.memory.Compactor().Compact(ctx, window); err != nil {
		return fmt.Errorf("compaction: %w", err)
	}
	bundle, err := a.memory.Retriever().Retrieve(ctx, policy.MaxEpisodicItems, policy.MaxSemanticItems)
	if err != nil {
		return fmt.Errorf("compaction: retrieve: %w", err)
	}
	tail, err := a.memory.RawTail(ctx, policy.RawTailTurns, currentTurnID)
	if err != nil {
		return fmt.Errorf("compaction: %w", err)
	}

	messages := a.memory.Builder().Build(systemPrompt, bundle, tail)
	a.memory.ResetTranscript(messages)
	a.memory.ClearCompactionRequest()

	logger.InfoCF("agent", "Working context compacted", map[string]interface{}{
		"agent_id":       a.memory.AgentID(),
		"turn_id":        currentTurnID,
		"compacted":      len(window),
		"episodic":       len(bundle.Episodic),
		"semantic":       len(bundle.Semantic),
		"tail_items":     len(tail),
		"transcript_len": len(messages),
	})
	return nil
}

func leadingSystemPrompt(messages []providers.Message) string {
	if len(messages) > 0 && messages[0].Role == providers.RoleSystem {
		return messages[0].Content
	}
	return ""
}

// turnInput finds the transcript message that opened the turn. The raw trace
// keeps only its text, so attached media survive a replay only through it.
func turnInput(messages []providers.Message, items []memory.RawTraceItem) (providers.Message, bool) {
	var text string
	found := false
	for _, item := range items {
		if item.TraceType == memory.TraceUser {
			text, found = item.Content, true
			break
		}
	}
	if !found {
		return providers.Message{}, false
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == providers.RoleUser && messages[i].Content == text {
			return messages[i], true
		}
	}
	return providers.Message{}, false
}

// replayTurn appends recorded items back onto the transcript in the shape
// the turn loop originally produced them. Consecutive tool calls share one
// message. When input is set it replaces the turn's first user item.
func replayTurn(transcript *memory.WorkingContextSnapshot, items []memory.RawTraceItem, input providers.Message, hasInput bool) {
	var pending []providers.ToolCallSpec
	flush := func() {
		if len(pending) > 0 {
			transcript.AppendToolCalls(pending)
			pending = nil
		}
	}
	for _, item := range items {
		if item.TraceType == memory.TraceToolCall {
			pending = append(pending, providers.ToolCallSpec{ID: item.ToolCallID, Name: item.ToolName, Arguments: item.ToolArgs})
			continue
		}
		flush()
		switch item.TraceType {
		case memory.TraceUser:
			if hasInput {
				transcript.AppendMessage(input)
				hasInput = false
				continue
			}
			transcript.AppendUser(item.Content)
		case memory.TraceToolResult:
			transcript.AppendToolResult(item.ToolCallID, item.ToolName, item.ToolResult, item.ToolError)
		case memory.TraceAssistant:
			transcript.AppendAssistant(item.Content, "")
		}
	}
	flush()
}
