package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
	"github.com/AutoByteus/autobyteus-sub000/pkg/memory"
)

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand(false)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeTestConfig saves a config whose workspace and memory live under a
// temp dir and returns its path.
func writeTestConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Agent.Workspace = filepath.Join(dir, "workspace")
	cfg.Memory.Dir = filepath.Join(dir, "memory")
	path := filepath.Join(dir, "config.json")
	require.NoError(t, config.SaveConfig(path, cfg))
	return path, cfg
}

func seedMemory(t *testing.T, cfg *config.Config) {
	t.Helper()
	store, err := memory.NewSQLiteStore(memory.StorePath(cfg.MemoryDir(), cfg.Agent.ID))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Add(ctx,
		&memory.RawTraceItem{ID: "raw-1", TS: 10, TurnID: "turn_0001", Seq: 1, TraceType: memory.TraceUser, Content: "what is badger?"},
		&memory.RawTraceItem{ID: "raw-2", TS: 11, TurnID: "turn_0001", Seq: 2, TraceType: memory.TraceAssistant, Content: "an embedded key-value store"},
		&memory.EpisodicItem{ID: "ep-1", TS: 5, TurnIDs: []string{"turn_0000"}, Summary: "User set up the project."},
		&memory.SemanticItem{ID: "sem-1", TS: 5, Fact: "User prefers Go.", Confidence: 1, Salience: 1},
	))
}

func TestRootHelpListsCommands(t *testing.T) {
	output, err := runRootCommandForTest("--help")
	require.NoError(t, err)
	for _, name := range []string{"onboard", "agent", "status", "snapshot", "memory", "models", "version"} {
		assert.Contains(t, output, name)
	}
	assert.NotContains(t, output, "completion")
}

func TestRootWithoutSubcommandFails(t *testing.T) {
	_, err := runRootCommandForTest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subcommand is required")
}

func TestVersionCommand(t *testing.T) {
	output, err := runRootCommandForTest("version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, "autobyteus dev"))
	assert.Contains(t, output, "Go: ")

	flagOutput, err := runRootCommandForTest("--version")
	require.NoError(t, err)
	assert.Equal(t, output, flagOutput)
}

func TestAgentImageRequiresMessage(t *testing.T) {
	path, _ := writeTestConfig(t)
	_, err := runRootCommandForTest("--config", path, "agent", "--image", "cat.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--image requires --message")
}

func TestOnboardRefusesToOverwrite(t *testing.T) {
	path, _ := writeTestConfig(t)
	_, err := runRootCommandForTest("--config", path, "onboard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestStatusReportsUninitializedMemory(t *testing.T) {
	path, cfg := writeTestConfig(t)
	output, err := runRootCommandForTest("--config", path, "status")
	require.NoError(t, err)
	assert.Contains(t, output, "autobyteus Status")
	assert.Contains(t, output, "Config: "+path+" ✓")
	assert.Contains(t, output, "Memory DB: "+memory.StorePath(cfg.MemoryDir(), "default")+" not initialized")
	assert.Contains(t, output, "Snapshot backend: file")
	assert.Contains(t, output, "Provider: openrouter")
}

func TestSnapshotValidateWithoutSnapshot(t *testing.T) {
	path, _ := writeTestConfig(t)
	output, err := runRootCommandForTest("--config", path, "snapshot", "validate")
	require.NoError(t, err)
	assert.Contains(t, output, "No snapshot stored")

	_, err = runRootCommandForTest("--config", path, "snapshot", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshot stored")
}

func TestSnapshotRebuildShowValidate(t *testing.T) {
	path, cfg := writeTestConfig(t)
	seedMemory(t, cfg)

	output, err := runRootCommandForTest("--config", path, "snapshot", "rebuild")
	require.NoError(t, err)
	assert.Contains(t, output, `Rebuilt snapshot for agent "default" ✓ (2 messages)`)

	output, err = runRootCommandForTest("--config", path, "snapshot", "validate")
	require.NoError(t, err)
	assert.Contains(t, output, `is valid ✓ (2 messages)`)

	output, err = runRootCommandForTest("--config", path, "snapshot", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "Agent: default")
	assert.Contains(t, output, "Last compaction: never")
	assert.Contains(t, output, "[0] system: # autobyteus")
	assert.Contains(t, output, "[1] user: [MEMORY:EPISODIC]")

	output, err = runRootCommandForTest("--config", path, "snapshot", "show", "--json")
	require.NoError(t, err)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &payload))
	assert.True(t, memory.ValidateSnapshot(payload))
	assert.Equal(t, "default", payload["agent_id"])
}

func TestSnapshotRebuildMatchesAgentSystemPrompt(t *testing.T) {
	path, cfg := writeTestConfig(t)
	seedMemory(t, cfg)
	_, err := runRootCommandForTest("--config", path, "snapshot", "rebuild")
	require.NoError(t, err)

	payload, err := memory.NewFileSnapshotStore(cfg.MemoryDir()).Read(context.Background(), "default")
	require.NoError(t, err)
	snapshot, _, err := memory.DeserializeSnapshot(payload)
	require.NoError(t, err)
	messages := snapshot.BuildMessages()
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "read_file")
	assert.Contains(t, messages[1].Content, "- User prefers Go.")
	assert.Contains(t, messages[1].Content, "[RECENT TURNS]\nuser: what is badger?\nassistant: an embedded key-value store")
}

func TestSnapshotValidateRejectsCorruptPayload(t *testing.T) {
	path, cfg := writeTestConfig(t)
	store := memory.NewFileSnapshotStore(cfg.MemoryDir())
	require.NoError(t, store.Write(context.Background(), "default", map[string]interface{}{"agent_id": "default"}))

	_, err := runRootCommandForTest("--config", path, "snapshot", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is invalid")
}

func TestMemoryList(t *testing.T) {
	path, cfg := writeTestConfig(t)

	output, err := runRootCommandForTest("--config", path, "memory", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "Memory store not initialized")

	seedMemory(t, cfg)
	output, err = runRootCommandForTest("--config", path, "memory", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "Episodic (1)")
	assert.Contains(t, output, "User set up the project.")
	assert.Contains(t, output, "Semantic (1)")
	assert.Contains(t, output, "User prefers Go.")
	assert.NotContains(t, output, "Raw (")

	output, err = runRootCommandForTest("--config", path, "memory", "list", "--turn", "turn_0001")
	require.NoError(t, err)
	assert.Contains(t, output, "Raw (2)")
	assert.Contains(t, output, "turn_0001 #1")
	assert.Contains(t, output, "what is badger?")
}

func TestModelsList(t *testing.T) {
	path, _ := writeTestConfig(t)
	output, err := runRootCommandForTest("--config", path, "models", "list")
	require.NoError(t, err)
	assert.Contains(t, output, "context=")
}

func TestConfigReferenceComposesEnvPrefixes(t *testing.T) {
	ref, err := buildConfigReferenceMarkdown()
	require.NoError(t, err)
	assert.Contains(t, ref, "| `providers.openrouter.api_key` | `string` | `AUTOBYTEUS_PROVIDERS_OPENROUTER_API_KEY` |")
	assert.Contains(t, ref, "| `memory.raw_tail_turns` | `int` | `AUTOBYTEUS_MEMORY_RAW_TAIL_TURNS` | `4` |")
	assert.Contains(t, ref, "| `memory.snapshot_backend` | `string` | `AUTOBYTEUS_MEMORY_SNAPSHOT_BACKEND` | `\"file\"` |")
}

func TestDocsGenerateThenCheck(t *testing.T) {
	out := t.TempDir()
	factory := func() *cobra.Command { return buildRootCommand(false) }
	require.NoError(t, generateDocumentation(factory, out, false))

	for _, rel := range []string{"reference/config.md", "reference/models.md", "reference/tools.md", "reference/cli/autobyteus.md"} {
		_, err := os.Stat(filepath.Join(out, rel))
		require.NoError(t, err, rel)
	}
	require.NoError(t, generateDocumentation(factory, out, true))

	require.NoError(t, os.WriteFile(filepath.Join(out, "reference", "tools.md"), []byte("stale"), 0o644))
	err := generateDocumentation(factory, out, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docs out of date")
}
