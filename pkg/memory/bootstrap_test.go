package memory

import (
	"context"
	"testing"

	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSystemPrompt = "You are a careful assistant."

func seedMemory(t *testing.T, store Store) {
	t.Helper()
	mustAdd(t, store,
		&EpisodicItem{ID: "ep1", TS: 10, TurnIDs: []string{"t1"}, Summary: "User asked about memory."},
		&SemanticItem{ID: "sem1", TS: 10, Fact: "User prefers concise answers."},
		rawItem("t1", 1, TraceUser, "compacted already"),
		rawItem("t2", 1, TraceUser, "Current question"),
	)
}

func TestBootstrap_RebuildPersistsBuilderOutput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedMemory(t, store)
	snapshots := NewFileSnapshotStore(t.TempDir())
	m, err := NewManager(ManagerConfig{AgentID: "agent-1", Policy: DefaultCompactionPolicy()}, store, snapshots, nil)
	require.NoError(t, err)

	retriever := &countingRetriever{inner: m.Retriever()}
	result, err := NewBootstrapper(nil, retriever).Bootstrap(ctx, m, testSystemPrompt, BootstrapOptions{})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.True(t, result.Persisted)
	assert.Equal(t, 1, retriever.calls)

	bundle, err := m.Retriever().Retrieve(ctx, 6, 12)
	require.NoError(t, err)
	tail, err := m.RawTail(ctx, 4)
	require.NoError(t, err)
	want := SnapshotBuilder{}.Build(testSystemPrompt, bundle, tail)
	assert.Equal(t, want, m.GetTranscriptMessages())

	payload, err := snapshots.Read(ctx, "agent-1")
	require.NoError(t, err)
	cached, _, err := DeserializeSnapshot(payload)
	require.NoError(t, err)
	assert.Equal(t, want, cached.BuildMessages())

	body := want[1].Content
	assert.Contains(t, body, "Current question")
	assert.NotContains(t, body, "compacted already")
}

func TestBootstrap_CacheHitSkipsRetrieval(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedMemory(t, store)
	snapshots := NewFileSnapshotStore(t.TempDir())
	cfg := ManagerConfig{AgentID: "agent-1", Policy: DefaultCompactionPolicy()}

	first, err := NewManager(cfg, store, snapshots, nil)
	require.NoError(t, err)
	_, err = NewBootstrapper(nil, nil).Bootstrap(ctx, first, testSystemPrompt, BootstrapOptions{})
	require.NoError(t, err)
	ts := 1700000000.0
	first.ResetTranscript(append(first.GetTranscriptMessages(), providers.UserMessage("after compaction")))
	first.Transcript().LastCompactionTS = &ts
	require.NoError(t, first.PersistSnapshot(ctx))

	second, err := NewManager(cfg, store, snapshots, nil)
	require.NoError(t, err)
	retriever := &countingRetriever{inner: second.Retriever()}
	result, err := NewBootstrapper(nil, retriever).Bootstrap(ctx, second, testSystemPrompt, BootstrapOptions{})
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	assert.Equal(t, 0, retriever.calls)
	assert.Equal(t, first.GetTranscriptMessages(), second.GetTranscriptMessages())
	require.NotNil(t, second.Transcript().LastCompactionTS)
	assert.Equal(t, ts, *second.Transcript().LastCompactionTS)
}

func TestBootstrap_EmptyStoreYieldsSystemOnly(t *testing.T) {
	m := newTestManager(t, DefaultCompactionPolicy(), NewFileSnapshotStore(t.TempDir()))

	result, err := NewBootstrapper(nil, nil).Bootstrap(context.Background(), m, testSystemPrompt, BootstrapOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Messages)
	assert.Equal(t, []providers.Message{providers.SystemMessage(testSystemPrompt)}, m.GetTranscriptMessages())
}

func TestBootstrap_SectionsInOrder(t *testing.T) {
	store := newTestStore(t)
	seedMemory(t, store)
	m, err := NewManager(ManagerConfig{AgentID: "agent-1", Policy: DefaultCompactionPolicy()}, store, nil, nil)
	require.NoError(t, err)

	_, err = NewBootstrapper(nil, nil).Bootstrap(context.Background(), m, testSystemPrompt, BootstrapOptions{})
	require.NoError(t, err)

	msgs := m.GetTranscriptMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t,
		"[MEMORY:EPISODIC]\n- User asked about memory.\n\n[MEMORY:SEMANTIC]\n- User prefers concise answers.\n\n[RECENT TURNS]\nuser: Current question",
		msgs[1].Content)
}

func TestBootstrap_UnusableCacheFallsBackToRebuild(t *testing.T) {
	tests := map[string]map[string]interface{}{
		"structurally invalid": {"schema_version": "one", "agent_id": "agent-1", "messages": []interface{}{}},
		"other agent":          samplePayload("someone-else"),
		"unknown role": {
			"schema_version": 1,
			"agent_id":       "agent-1",
			"messages":       []interface{}{map[string]interface{}{"role": "narrator"}},
		},
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			snapshots := NewFileSnapshotStore(t.TempDir())
			require.NoError(t, snapshots.Write(ctx, "agent-1", payload))
			m := newTestManager(t, DefaultCompactionPolicy(), snapshots)

			retriever := &countingRetriever{inner: m.Retriever()}
			result, err := NewBootstrapper(nil, retriever).Bootstrap(ctx, m, testSystemPrompt, BootstrapOptions{})
			require.NoError(t, err)
			assert.False(t, result.FromCache)
			assert.Equal(t, 1, retriever.calls)

			repaired, err := snapshots.Read(ctx, "agent-1")
			require.NoError(t, err)
			assert.True(t, ValidateSnapshot(repaired))
			assert.Equal(t, "agent-1", repaired["agent_id"])
		})
	}
}

func TestBootstrap_FallbackSnapshotStore(t *testing.T) {
	ctx := context.Background()
	snapshots := NewFileSnapshotStore(t.TempDir())
	m := newTestManager(t, DefaultCompactionPolicy(), nil)

	result, err := NewBootstrapper(snapshots, nil).Bootstrap(ctx, m, testSystemPrompt, BootstrapOptions{})
	require.NoError(t, err)
	assert.True(t, result.Persisted)

	exists, err := snapshots.Exists(ctx, "agent-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBootstrap_OptionsOverridePolicy(t *testing.T) {
	store := newTestStore(t)
	mustAdd(t, store,
		&SemanticItem{ID: "s1", TS: 1, Fact: "one"},
		&SemanticItem{ID: "s2", TS: 2, Fact: "two"},
	)
	seedTurns(t, store, "t1", "t2", "t3")
	m, err := NewManager(ManagerConfig{AgentID: "agent-1", Policy: DefaultCompactionPolicy()}, store, nil, nil)
	require.NoError(t, err)

	_, err = NewBootstrapper(nil, nil).Bootstrap(context.Background(), m, "sys", BootstrapOptions{MaxSemantic: 1, RawTailTurns: 1})
	require.NoError(t, err)
	assert.Equal(t,
		"[MEMORY:SEMANTIC]\n- two\n\n[RECENT TURNS]\nuser: question t3\nassistant: answer t3",
		m.GetTranscriptMessages()[1].Content)
}

func TestBootstrap_NegativeOptionsSelectNothing(t *testing.T) {
	store := newTestStore(t)
	mustAdd(t, store,
		&EpisodicItem{ID: "e1", TS: 1, TurnIDs: []string{"t0"}, Summary: "earlier work"},
		&SemanticItem{ID: "s1", TS: 1, Fact: "one"},
	)
	seedTurns(t, store, "t1")
	m, err := NewManager(ManagerConfig{AgentID: "agent-1", Policy: DefaultCompactionPolicy()}, store, nil, nil)
	require.NoError(t, err)

	_, err = NewBootstrapper(nil, nil).Bootstrap(context.Background(), m, "sys", BootstrapOptions{MaxEpisodic: -1, RawTailTurns: -1})
	require.NoError(t, err)
	messages := m.GetTranscriptMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "[MEMORY:SEMANTIC]\n- one", messages[1].Content)
}
