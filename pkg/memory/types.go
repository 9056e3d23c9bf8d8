package memory

import "time"

// TraceType classifies a raw trace item.
type TraceType string

const (
	TraceUser       TraceType = "user"
	TraceAssistant  TraceType = "assistant"
	TraceToolCall   TraceType = "tool_call"
	TraceToolResult TraceType = "tool_result"
)

func (t TraceType) valid() bool {
	switch t {
	case TraceUser, TraceAssistant, TraceToolCall, TraceToolResult:
		return true
	}
	return false
}

// Item is one of *RawTraceItem, *EpisodicItem or *SemanticItem.
type Item interface {
	ItemID() string
	memoryItem()
}

// RawTraceItem is the canonical append-only record of one conversation event.
// (TurnID, Seq) is unique and Seq increases within a turn.
type RawTraceItem struct {
	ID          string
	TS          float64
	TurnID      string
	Seq         int
	TraceType   TraceType
	Content     string
	SourceEvent string
	ToolName    string
	ToolCallID  string
	ToolArgs    map[string]interface{}
	ToolResult  interface{}
	ToolError   string
}

// EpisodicItem is a compaction summary covering one or more turns.
type EpisodicItem struct {
	ID       string
	TS       float64
	TurnIDs  []string
	Summary  string
	Tags     []string
	Salience float64
}

// SemanticItem is a standalone fact extracted during compaction.
type SemanticItem struct {
	ID         string
	TS         float64
	Fact       string
	Tags       []string
	Confidence float64
	Salience   float64
}

func (i *RawTraceItem) ItemID() string { return i.ID }
func (i *EpisodicItem) ItemID() string { return i.ID }
func (i *SemanticItem) ItemID() string { return i.ID }

func (*RawTraceItem) memoryItem() {}
func (*EpisodicItem) memoryItem() {}
func (*SemanticItem) memoryItem() {}

// MemoryBundle is a bounded read-only view over derived memory.
type MemoryBundle struct {
	Episodic []EpisodicItem
	Semantic []SemanticItem
}

func (b MemoryBundle) Empty() bool {
	return len(b.Episodic) == 0 && len(b.Semantic) == 0
}

// CompactionPolicy controls when compaction triggers and what survives it.
type CompactionPolicy struct {
	TriggerRatio       float64
	SafetyMarginTokens int
	RawTailTurns       int
	MaxEpisodicItems   int
	MaxSemanticItems   int
}

// DefaultCompactionPolicy mirrors the config defaults.
func DefaultCompactionPolicy() CompactionPolicy {
	return CompactionPolicy{
		TriggerRatio:       0.8,
		SafetyMarginTokens: 256,
		RawTailTurns:       4,
		MaxEpisodicItems:   6,
		MaxSemanticItems:   12,
	}
}

// nowTS returns the current time as fractional unix seconds.
func nowTS() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
