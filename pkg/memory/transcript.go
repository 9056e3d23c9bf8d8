package memory

import "github.com/AutoByteus/autobyteus-sub000/pkg/providers"

// WorkingContextSnapshot is the active transcript: the ordered messages sent
// to the model each turn. It has a single writer and does no locking.
type WorkingContextSnapshot struct {
	messages         []providers.Message
	epochID          int
	LastCompactionTS *float64
}

// NewWorkingContextSnapshot returns an empty transcript at epoch 1.
func NewWorkingContextSnapshot() *WorkingContextSnapshot {
	return &WorkingContextSnapshot{epochID: 1}
}

func restoreWorkingContextSnapshot(messages []providers.Message, epochID int, lastCompactionTS *float64) *WorkingContextSnapshot {
	if epochID < 1 {
		epochID = 1
	}
	return &WorkingContextSnapshot{
		messages:         append([]providers.Message(nil), messages...),
		epochID:          epochID,
		LastCompactionTS: lastCompactionTS,
	}
}

func (s *WorkingContextSnapshot) EpochID() int { return s.epochID }

func (s *WorkingContextSnapshot) Len() int { return len(s.messages) }

func (s *WorkingContextSnapshot) AppendUser(content string) {
	s.messages = append(s.messages, providers.UserMessage(content))
}

func (s *WorkingContextSnapshot) AppendAssistant(content, reasoning string) {
	s.messages = append(s.messages, providers.Message{
		Role:             providers.RoleAssistant,
		Content:          content,
		ReasoningContent: reasoning,
	})
}

func (s *WorkingContextSnapshot) AppendToolCalls(calls []providers.ToolCallSpec) {
	s.messages = append(s.messages, providers.Message{
		Role:        providers.RoleAssistant,
		ToolPayload: &providers.ToolCallPayload{ToolCalls: append([]providers.ToolCallSpec(nil), calls...)},
	})
}

func (s *WorkingContextSnapshot) AppendToolResult(toolCallID, toolName string, result interface{}, toolErr string) {
	s.messages = append(s.messages, providers.Message{
		Role: providers.RoleTool,
		ToolPayload: &providers.ToolResultPayload{
			ToolCallID: toolCallID,
			ToolName:   toolName,
			ToolResult: result,
			ToolError:  toolErr,
		},
	})
}

// AppendMessage appends an already-built message, used for user turns that
// carry media.
func (s *WorkingContextSnapshot) AppendMessage(msg providers.Message) {
	s.messages = append(s.messages, msg)
}

// BuildMessages returns a copy of the ordered message list.
func (s *WorkingContextSnapshot) BuildMessages() []providers.Message {
	return append([]providers.Message(nil), s.messages...)
}

// Reset replaces the messages wholesale and advances the epoch by one.
// lastCompactionTS is kept unchanged when nil.
func (s *WorkingContextSnapshot) Reset(messages []providers.Message, lastCompactionTS *float64) {
	s.messages = append([]providers.Message(nil), messages...)
	s.epochID++
	if lastCompactionTS != nil {
		ts := *lastCompactionTS
		s.LastCompactionTS = &ts
	}
}
