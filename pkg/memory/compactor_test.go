package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTurns(t *testing.T, store Store, turns ...string) {
	t.Helper()
	for _, turn := range turns {
		mustAdd(t, store,
			rawItem(turn, 1, TraceUser, "question "+turn),
			rawItem(turn, 2, TraceAssistant, "answer "+turn),
		)
	}
}

func TestSelectCompactionWindow_KeepsRawTail(t *testing.T) {
	store := newTestStore(t)
	seedTurns(t, store, "t1", "t2", "t3", "t4", "t5")
	c := NewCompactor(store, nil, CompactionPolicy{RawTailTurns: 2})

	window, err := c.SelectCompactionWindow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, window)

	window, err = c.SelectCompactionWindow(context.Background(), "t5")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, window, "excluded turns are neither compacted nor counted in the tail")
}

func TestSelectCompactionWindow_SkipsCompactedTurns(t *testing.T) {
	store := newTestStore(t)
	seedTurns(t, store, "t1", "t2", "t3", "t4")
	mustAdd(t, store, &EpisodicItem{ID: "ep", TS: 1, TurnIDs: []string{"t1", "t2"}, Summary: "old"})
	c := NewCompactor(store, nil, CompactionPolicy{RawTailTurns: 1})

	window, err := c.SelectCompactionWindow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t3"}, window)
}

func TestSelectCompactionWindow_TailLargerThanHistory(t *testing.T) {
	store := newTestStore(t)
	seedTurns(t, store, "t1", "t2")
	c := NewCompactor(store, nil, CompactionPolicy{RawTailTurns: 5})

	window, err := c.SelectCompactionWindow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, window)
}

func TestSelectCompactionWindow_NeverSplitsToolPairs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mustAdd(t, store,
		rawItem("t1", 1, TraceUser, "hi"),
		rawItem("t1", 2, TraceAssistant, "hello"),
		rawItem("t2", 1, TraceUser, "read the file"),
		toolCallItem("t2", 2, "call_a", "read_file", map[string]interface{}{"path": "a.txt"}),
		// The result of call_a lands in the next turn.
		toolResultItem("t3", 1, "call_a", "read_file", "contents", ""),
		rawItem("t3", 2, TraceAssistant, "done"),
	)
	policy := CompactionPolicy{RawTailTurns: 1}
	c := NewCompactor(store, nil, policy)

	window, err := c.SelectCompactionWindow(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, window, "boundary moves before the call turn")

	m, err := NewManager(ManagerConfig{AgentID: "a", Policy: policy}, store, nil, nil)
	require.NoError(t, err)
	tail, err := m.RawTail(ctx, policy.RawTailTurns)
	require.NoError(t, err)

	inWindow := map[string]bool{}
	for _, id := range window {
		inWindow[id] = true
	}
	sides := map[string][]bool{}
	for _, item := range append(mustItems(t, store, window), tail...) {
		if item.ToolCallID != "" {
			sides[item.ToolCallID] = append(sides[item.ToolCallID], inWindow[item.TurnID])
		}
	}
	for callID, s := range sides {
		require.Len(t, s, 2, callID)
		assert.Equal(t, s[0], s[1], "tool pair %s split across the boundary", callID)
	}
}

func TestSelectCompactionWindow_ResultBeforeBoundaryPullsCallIn(t *testing.T) {
	store := newTestStore(t)
	mustAdd(t, store,
		rawItem("t1", 1, TraceUser, "one"),
		toolCallItem("t2", 1, "c1", "ls", nil),
		rawItem("t3", 1, TraceUser, "three"),
		toolResultItem("t4", 1, "c1", "ls", "x", ""),
		rawItem("t5", 1, TraceUser, "five"),
	)
	c := NewCompactor(store, nil, CompactionPolicy{RawTailTurns: 2})

	window, err := c.SelectCompactionWindow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, window)
}

func mustItems(t *testing.T, store Store, turns []string) []RawTraceItem {
	t.Helper()
	var out []RawTraceItem
	for _, turn := range turns {
		items, err := store.RawTraceByTurn(context.Background(), turn)
		require.NoError(t, err)
		out = append(out, items...)
	}
	return out
}

func TestCompact_WritesEpisodicAndSemanticItems(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mustAdd(t, store,
		rawItem("t1", 1, TraceUser, "My name is Ada. I prefer concise answers."),
		rawItem("t1", 2, TraceAssistant, "Noted."),
		rawItem("t2", 1, TraceUser, "What is a goroutine?"),
		toolCallItem("t2", 2, "c1", "search", map[string]interface{}{"q": "goroutine"}),
		toolResultItem("t2", 3, "c1", "search", "docs", ""),
	)
	c := NewCompactor(store, NewHeuristicSummarizer(), DefaultCompactionPolicy())

	require.NoError(t, c.Compact(ctx, []string{"t1", "t2"}))

	episodic, err := store.Episodic(ctx)
	require.NoError(t, err)
	require.Len(t, episodic, 1)
	assert.Equal(t, []string{"t1", "t2"}, episodic[0].TurnIDs)
	assert.Contains(t, episodic[0].Summary, "Compacted 2 turns (5 events).")
	assert.Contains(t, episodic[0].Summary, "- Tools used: search")

	semantic, err := store.Semantic(ctx)
	require.NoError(t, err)
	facts := []string{}
	for _, s := range semantic {
		facts = append(facts, s.Fact)
	}
	assert.Equal(t, []string{"User's name is Ada", "I prefer concise answers"}, facts)

	window, err := c.SelectCompactionWindow(ctx)
	require.NoError(t, err)
	assert.Empty(t, window, "compacted turns leave the window")
}

func TestCompact_SummaryFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTurns(t, store, "t1")
	c := NewCompactor(store, failingSummarizer{err: errors.New("model unavailable")}, DefaultCompactionPolicy())

	err := c.Compact(ctx, []string{"t1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSummaryFailed)
	assert.Contains(t, err.Error(), "model unavailable")

	episodic, _ := store.Episodic(ctx)
	assert.Empty(t, episodic)
}

func TestCompact_EmptyWindowIsNoop(t *testing.T) {
	store := newTestStore(t)
	c := NewCompactor(store, failingSummarizer{err: errors.New("unused")}, DefaultCompactionPolicy())
	assert.NoError(t, c.Compact(context.Background(), nil))
	assert.NoError(t, c.Compact(context.Background(), []string{"unknown-turn"}))
}

type stubProvider struct {
	content  string
	err      error
	rendered interface{}
	model    string
}

func (p *stubProvider) Chat(ctx context.Context, payload interface{}, tools []providers.ToolDefinition, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	p.rendered = payload
	p.model = model
	if p.err != nil {
		return nil, p.err
	}
	return &providers.LLMResponse{Content: p.content}, nil
}

func (p *stubProvider) Renderer() providers.Renderer {
	return providers.RendererFunc(func(ctx context.Context, messages []providers.Message) (interface{}, error) {
		return messages, nil
	})
}

func (p *stubProvider) GetDefaultModel() string { return "stub-model" }

func TestLLMSummarizer_ParsesJSONContract(t *testing.T) {
	p := &stubProvider{content: "```json\n{\"summary\": \"User set up the project.\", \"facts\": [\"Project uses Go 1.25\"]}\n```"}
	s := NewLLMSummarizer(p, "", nil)

	summary, err := s.Summarize(context.Background(), []RawTraceItem{
		*rawItem("t1", 1, TraceUser, "set up the project"),
		*toolCallItem("t1", 2, "c1", "write_file", map[string]interface{}{"path": "go.mod"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "User set up the project.", summary.Text)
	assert.Equal(t, []string{"Project uses Go 1.25"}, summary.Facts)
	assert.Equal(t, "stub-model", p.model)

	sent := p.rendered.([]providers.Message)
	require.Len(t, sent, 2)
	assert.Equal(t, providers.RoleSystem, sent[0].Role)
	assert.True(t, strings.Contains(sent[1].Content, `tool call: write_file {"path":"go.mod"}`), sent[1].Content)
}

func TestParseSummaryResponse(t *testing.T) {
	s, err := parseSummaryResponse("Plain text summary.")
	require.NoError(t, err)
	assert.Equal(t, "Plain text summary.", s.Text)
	assert.Empty(t, s.Facts)

	_, err = parseSummaryResponse("   ")
	assert.Error(t, err)
}

func TestLLMSummarizer_ProviderErrorFailsCompaction(t *testing.T) {
	store := newTestStore(t)
	seedTurns(t, store, "t1")
	c := NewCompactor(store, NewLLMSummarizer(&stubProvider{err: errors.New("429")}, "m", nil), DefaultCompactionPolicy())

	err := c.Compact(context.Background(), []string{"t1"})
	assert.ErrorIs(t, err, ErrSummaryFailed)
}

func TestExtractFactSignals(t *testing.T) {
	assert.Equal(t, []string{"I prefer tabs over spaces"}, ExtractFactSignals("I prefer tabs over spaces. What do you use?"))
	assert.Equal(t, []string{"the deploy key rotates monthly"}, ExtractFactSignals("Please remember that the deploy key rotates monthly"))
	assert.Empty(t, ExtractFactSignals("How do I use channels?"))
	assert.Empty(t, ExtractFactSignals(""))
}

type nilResponseProvider struct{ stubProvider }

func (p *nilResponseProvider) Chat(ctx context.Context, payload interface{}, tools []providers.ToolDefinition, model string, options map[string]interface{}) (*providers.LLMResponse, error) {
	return nil, nil
}

func TestLLMSummarizer_NilResponseIsError(t *testing.T) {
	s := NewLLMSummarizer(&nilResponseProvider{}, "m", nil)
	_, err := s.Summarize(context.Background(), []RawTraceItem{*rawItem("t1", 1, TraceUser, "hello")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response")
}

func TestHeuristicSummarizer_TruncatesOnCharacterBoundaries(t *testing.T) {
	long := strings.Repeat("a", 159) + "éé" + strings.Repeat("ü", 300)
	summary, err := NewHeuristicSummarizer().Summarize(context.Background(), []RawTraceItem{*rawItem("t1", 1, TraceUser, long)})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(summary.Text))
	assert.Contains(t, summary.Text, "- User topic: "+strings.Repeat("a", 159)+"é...")

	prompt := formatCompactionTranscript([]RawTraceItem{*rawItem("t1", 1, TraceAssistant, strings.Repeat("a", 399)+"日本語")})
	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, strings.Repeat("a", 399)+"日...")

	phrase := normalizeFactPhrase(strings.Repeat("b", 179) + "ßß")
	assert.True(t, utf8.ValidString(phrase))
	assert.Equal(t, strings.Repeat("b", 179)+"ß", phrase)
}
