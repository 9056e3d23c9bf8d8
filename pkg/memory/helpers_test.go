package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "memory.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestManager(t *testing.T, policy CompactionPolicy, snapshots SnapshotStore) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{AgentID: "agent-1", Policy: policy}, newTestStore(t), snapshots, NewHeuristicSummarizer())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func rawItem(turnID string, seq int, traceType TraceType, content string) *RawTraceItem {
	return &RawTraceItem{
		ID:        fmt.Sprintf("%s-%d", turnID, seq),
		TS:        float64(seq),
		TurnID:    turnID,
		Seq:       seq,
		TraceType: traceType,
		Content:   content,
	}
}

func toolCallItem(turnID string, seq int, callID, name string, args map[string]interface{}) *RawTraceItem {
	it := rawItem(turnID, seq, TraceToolCall, "")
	it.ToolCallID = callID
	it.ToolName = name
	it.ToolArgs = args
	return it
}

func toolResultItem(turnID string, seq int, callID, name string, result interface{}, toolErr string) *RawTraceItem {
	it := rawItem(turnID, seq, TraceToolResult, "")
	it.ToolCallID = callID
	it.ToolName = name
	it.ToolResult = result
	it.ToolError = toolErr
	return it
}

func mustAdd(t *testing.T, store Store, items ...Item) {
	t.Helper()
	if err := store.Add(context.Background(), items...); err != nil {
		t.Fatalf("add items: %v", err)
	}
}

// countingRetriever records how often Retrieve is called.
type countingRetriever struct {
	inner BundleRetriever
	calls int
}

func (r *countingRetriever) Retrieve(ctx context.Context, maxEpisodic, maxSemantic int) (MemoryBundle, error) {
	r.calls++
	return r.inner.Retrieve(ctx, maxEpisodic, maxSemantic)
}

type failingSummarizer struct{ err error }

func (f failingSummarizer) Summarize(ctx context.Context, items []RawTraceItem) (Summary, error) {
	return Summary{}, f.err
}
