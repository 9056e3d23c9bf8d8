package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
	"github.com/google/uuid"
)

// ManagerConfig configures one agent's memory.
type ManagerConfig struct {
	AgentID string
	// Dir is the memory base directory. The item database lives at
	// Dir/agents/<agent_id>/memory.db.
	Dir    string
	Policy CompactionPolicy
	Budget *TokenBudget
}

// StorePath is where OpenManager keeps the agent's item database.
func StorePath(dir, agentID string) string {
	return filepath.Join(dir, "agents", agentID, "memory.db")
}

// Manager owns an agent's transcript, durable item store, compaction flag
// and snapshot persistence. Transcript mutations must come from one
// goroutine at a time.
type Manager struct {
	cfg        ManagerConfig
	store      Store
	snapshots  SnapshotStore
	compactor  *Compactor
	retriever  *Retriever
	builder    SnapshotBuilder
	transcript *WorkingContextSnapshot

	compactionRequested atomic.Bool

	seqMu sync.Mutex
	seq   map[string]int

	closeOnce sync.Once
	closeErr  error
}

// NewManager wires a manager over an existing store. snapshots may be nil,
// which disables snapshot persistence. A nil summarizer uses the heuristic
// one.
func NewManager(cfg ManagerConfig, store Store, snapshots SnapshotStore, summarizer Summarizer) (*Manager, error) {
	if err := validateAgentID(cfg.AgentID); err != nil {
		return nil, fmt.Errorf("memory manager: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("memory manager: store is required")
	}
	return &Manager{
		cfg:        cfg,
		store:      store,
		snapshots:  snapshots,
		compactor:  NewCompactor(store, summarizer, cfg.Policy),
		retriever:  NewRetriever(store),
		transcript: NewWorkingContextSnapshot(),
		seq:        map[string]int{},
	}, nil
}

// OpenManager opens the SQLite item store under cfg.Dir and wires a manager
// over it. Close releases the store.
func OpenManager(cfg ManagerConfig, snapshots SnapshotStore, summarizer Summarizer) (*Manager, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("memory dir is required")
	}
	if err := validateAgentID(cfg.AgentID); err != nil {
		return nil, fmt.Errorf("memory manager: %w", err)
	}
	store, err := NewSQLiteStore(StorePath(cfg.Dir, cfg.AgentID))
	if err != nil {
		return nil, err
	}
	m, err := NewManager(cfg, store, snapshots, summarizer)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return m, nil
}

func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.store.Close()
	})
	return m.closeErr
}

func (m *Manager) AgentID() string                     { return m.cfg.AgentID }
func (m *Manager) Policy() CompactionPolicy            { return m.cfg.Policy }
func (m *Manager) Budget() *TokenBudget                { return m.cfg.Budget }
func (m *Manager) Store() Store                        { return m.store }
func (m *Manager) SnapshotStore() SnapshotStore        { return m.snapshots }
func (m *Manager) Compactor() *Compactor               { return m.compactor }
func (m *Manager) Retriever() *Retriever               { return m.retriever }
func (m *Manager) Builder() SnapshotBuilder            { return m.builder }
func (m *Manager) Transcript() *WorkingContextSnapshot { return m.transcript }

// GetTranscriptMessages returns a copy of the active transcript.
func (m *Manager) GetTranscriptMessages() []providers.Message {
	return m.transcript.BuildMessages()
}

// NewTurnID returns a fresh turn identifier.
func (m *Manager) NewTurnID() string {
	return "turn_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (m *Manager) nextSeq(turnID string) int {
	m.seqMu.Lock()
	defer m.seqMu.Unlock()
	m.seq[turnID]++
	return m.seq[turnID]
}

func (m *Manager) newRawItem(turnID string, traceType TraceType, sourceEvent string) *RawTraceItem {
	return &RawTraceItem{
		ID:          "rt_" + uuid.NewString(),
		TS:          nowTS(),
		TurnID:      turnID,
		Seq:         m.nextSeq(turnID),
		TraceType:   traceType,
		SourceEvent: sourceEvent,
	}
}

// IngestUserMessage records the user input of a turn in the store. The
// request assembler appends it to the transcript.
func (m *Manager) IngestUserMessage(ctx context.Context, turnID, content string) error {
	item := m.newRawItem(turnID, TraceUser, "user_input")
	item.Content = content
	if err := m.store.Add(ctx, item); err != nil {
		return fmt.Errorf("ingest user message: %w", err)
	}
	return nil
}

// IngestToolCalls records one raw item per call and appends the call
// message to the transcript.
func (m *Manager) IngestToolCalls(ctx context.Context, turnID string, calls []providers.ToolCallSpec) error {
	if len(calls) == 0 {
		return nil
	}
	items := make([]Item, 0, len(calls))
	for _, call := range calls {
		item := m.newRawItem(turnID, TraceToolCall, "tool_invocation")
		item.ToolName = call.Name
		item.ToolCallID = call.ID
		item.ToolArgs = call.Arguments
		items = append(items, item)
	}
	if err := m.store.Add(ctx, items...); err != nil {
		return fmt.Errorf("ingest tool calls: %w", err)
	}
	m.transcript.AppendToolCalls(calls)
	return nil
}

func (m *Manager) IngestToolResult(ctx context.Context, turnID, toolCallID, toolName string, result interface{}, toolErr string) error {
	item := m.newRawItem(turnID, TraceToolResult, "tool_result")
	item.ToolName = toolName
	item.ToolCallID = toolCallID
	item.ToolResult = result
	item.ToolError = toolErr
	if err := m.store.Add(ctx, item); err != nil {
		return fmt.Errorf("ingest tool result: %w", err)
	}
	m.transcript.AppendToolResult(toolCallID, toolName, result, toolErr)
	return nil
}

// IngestAssistantResponse records the final reply of a turn, appends it to
// the transcript and persists the snapshot. Snapshot failures are logged.
func (m *Manager) IngestAssistantResponse(ctx context.Context, turnID, content, reasoning string) error {
	item := m.newRawItem(turnID, TraceAssistant, "assistant_response")
	item.Content = content
	if err := m.store.Add(ctx, item); err != nil {
		return fmt.Errorf("ingest assistant response: %w", err)
	}
	m.transcript.AppendAssistant(content, reasoning)
	m.endTurn(turnID)

	if err := m.PersistSnapshot(ctx); err != nil {
		logger.WarnCF("memory", "Snapshot persist failed", map[string]interface{}{
			"agent_id": m.cfg.AgentID,
			"error":    err.Error(),
		})
	}
	return nil
}

func (m *Manager) endTurn(turnID string) {
	m.seqMu.Lock()
	delete(m.seq, turnID)
	m.seqMu.Unlock()
}

// PersistSnapshot writes the current transcript to the snapshot store.
func (m *Manager) PersistSnapshot(ctx context.Context) error {
	if m.snapshots == nil {
		return nil
	}
	payload := SerializeSnapshot(m.transcript, SnapshotMetadata{
		SchemaVersion: SnapshotSchemaVersion,
		AgentID:       m.cfg.AgentID,
	})
	return m.snapshots.Write(ctx, m.cfg.AgentID, payload)
}

func (m *Manager) RequestCompaction()       { m.compactionRequested.Store(true) }
func (m *Manager) ClearCompactionRequest()  { m.compactionRequested.Store(false) }
func (m *Manager) CompactionRequired() bool { return m.compactionRequested.Load() }

// ObserveTokenUsage requests compaction once prompt usage reaches the
// budget's compaction threshold. Without a usable budget it does nothing.
func (m *Manager) ObserveTokenUsage(promptTokens int) bool {
	b := m.cfg.Budget
	if b == nil || !b.Usable() || promptTokens <= 0 {
		return false
	}
	if promptTokens < b.CompactionThreshold() {
		return false
	}
	if !m.CompactionRequired() {
		logger.InfoCF("memory", "Compaction requested", map[string]interface{}{
			"agent_id":      m.cfg.AgentID,
			"prompt_tokens": promptTokens,
			"threshold":     b.CompactionThreshold(),
		})
	}
	m.RequestCompaction()
	return true
}

// ResetTranscript replaces the transcript after compaction and stamps the
// compaction time.
func (m *Manager) ResetTranscript(messages []providers.Message) {
	ts := nowTS()
	m.transcript.Reset(messages, &ts)
}

// ResetWorkingContextSnapshot replaces the transcript on restore.
func (m *Manager) ResetWorkingContextSnapshot(messages []providers.Message, lastCompactionTS *float64) {
	m.transcript.Reset(messages, lastCompactionTS)
}

// RawTail returns the raw items of the most recent n uncompacted turns,
// skipping excluded turns. The tail grows rather than splitting a tool call
// from its result.
func (m *Manager) RawTail(ctx context.Context, n int, excludeTurnIDs ...string) ([]RawTraceItem, error) {
	log, err := loadUncompacted(ctx, m.store, excludeTurnIDs)
	if err != nil {
		return nil, fmt.Errorf("raw tail: %w", err)
	}
	_, tail := log.split(n)
	return log.items(tail), nil
}
