package agent

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/AutoByteus/autobyteus-sub000/pkg/memory"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
	"github.com/AutoByteus/autobyteus-sub000/pkg/tools"
)

func passthroughRenderer() providers.Renderer {
	return providers.RendererFunc(func(ctx context.Context, messages []providers.Message) (interface{}, error) {
		return messages, nil
	})
}

func newTestStore(t *testing.T) *memory.SQLiteStore {
	t.Helper()
	store, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newManagerOn(t *testing.T, store memory.Store, snapshots memory.SnapshotStore, policy memory.CompactionPolicy, summarizer memory.Summarizer) *memory.Manager {
	t.Helper()
	m, err := memory.NewManager(memory.ManagerConfig{AgentID: "agent-1", Policy: policy}, store, snapshots, summarizer)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func newTestManager(t *testing.T, policy memory.CompactionPolicy) *memory.Manager {
	t.Helper()
	return newManagerOn(t, newTestStore(t), memory.NewFileSnapshotStore(t.TempDir()), policy, memory.NewHeuristicSummarizer())
}

// completeTurn records a plain question and answer the way the turn loop
// does.
func completeTurn(t *testing.T, m *memory.Manager, turnID, question, answer string) {
	t.Helper()
	ctx := context.Background()
	if err := m.IngestUserMessage(ctx, turnID, question); err != nil {
		t.Fatalf("ingest user: %v", err)
	}
	m.Transcript().AppendUser(question)
	if err := m.IngestAssistantResponse(ctx, turnID, answer, ""); err != nil {
		t.Fatalf("ingest assistant: %v", err)
	}
}

type failingSummarizer struct{ err error }

func (f failingSummarizer) Summarize(ctx context.Context, items []memory.RawTraceItem) (memory.Summary, error) {
	return memory.Summary{}, f.err
}

// scriptedProvider answers with responses in order, then with fallback.
// errs[i], when set, fails call i instead.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*providers.LLMResponse
	fallback  *providers.LLMResponse
	errs      []error
	payloads  [][]providers.Message
	tools     [][]providers.ToolDefinition
}

func (p *scriptedProvider) Chat(ctx context.Context, payload interface{}, defs []providers.ToolDefinition, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.payloads)
	messages, _ := payload.([]providers.Message)
	p.payloads = append(p.payloads, messages)
	p.tools = append(p.tools, defs)
	if idx < len(p.errs) && p.errs[idx] != nil {
		return nil, p.errs[idx]
	}
	if idx < len(p.responses) {
		return p.responses[idx], nil
	}
	if p.fallback != nil {
		return p.fallback, nil
	}
	return &providers.LLMResponse{Content: "done"}, nil
}

func (p *scriptedProvider) Renderer() providers.Renderer { return passthroughRenderer() }
func (p *scriptedProvider) GetDefaultModel() string      { return "scripted-model" }

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echo the text argument." }
func (echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (echoTool) Execute(ctx context.Context, args map[string]interface{}) *tools.ToolResult {
	text, _ := args["text"].(string)
	return tools.NewToolResult("echo: " + text)
}

func newTestAgent(t *testing.T, provider providers.LLMProvider, m *memory.Manager, maxIterations int) *Agent {
	t.Helper()
	registry := tools.NewToolRegistry()
	registry.Register(echoTool{})
	a, err := New(Options{
		Provider:      provider,
		Memory:        m,
		Tools:         registry,
		SystemPrompt:  "sys",
		MaxIterations: maxIterations,
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func contentCount(messages []providers.Message, needle string) int {
	n := 0
	for _, msg := range messages {
		if msg.Content == needle {
			n++
		}
	}
	return n
}
