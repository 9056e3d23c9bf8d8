package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AutoByteus/autobyteus-sub000/pkg/agent"
	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
	"github.com/AutoByteus/autobyteus-sub000/pkg/memory"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

const previewChars = 120

func agentStorePath(cfg *config.Config) string {
	return memory.StorePath(cfg.MemoryDir(), cfg.Agent.ID)
}

func newSnapshotCommand(configPath func() string) *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect or rebuild the working context snapshot",
		Long: strings.TrimSpace(`The working context snapshot caches the transcript sent to the model so an
agent can resume without rebuilding it from the memory store.`),
	}

	var asJSON bool
	show := &cobra.Command{
		Use:     "show",
		Short:   "Print the cached working context",
		Example: "  autobyteus snapshot show\n  autobyteus snapshot show --json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshotStore(configPath(), func(cfg *config.Config, store memory.SnapshotStore) error {
				return showSnapshot(cmd.Context(), cmd.OutOrStdout(), store, cfg.Agent.ID, asJSON)
			})
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Print the raw snapshot payload")

	validate := &cobra.Command{
		Use:     "validate",
		Short:   "Check that the cached snapshot can be restored",
		Example: "  autobyteus snapshot validate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshotStore(configPath(), func(cfg *config.Config, store memory.SnapshotStore) error {
				return validateSnapshot(cmd.Context(), cmd.OutOrStdout(), store, cfg.Agent.ID)
			})
		},
	}

	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the snapshot from the memory store",
		Long: strings.TrimSpace(`Discard the cached working context and rebuild it from episodic memory,
semantic memory and the most recent raw turns, then write it back to the
snapshot store. No model calls are made.`),
		Example: "  autobyteus snapshot rebuild",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshotStore(configPath(), func(cfg *config.Config, store memory.SnapshotStore) error {
				return rebuildSnapshot(cmd.Context(), cmd.OutOrStdout(), cfg, store)
			})
		},
	}

	snapshotCmd.AddCommand(show, validate, rebuild)
	return snapshotCmd
}

func withSnapshotStore(configPath string, fn func(*config.Config, memory.SnapshotStore) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := agent.OpenSnapshotStore(cfg)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

func showSnapshot(ctx context.Context, w io.Writer, store memory.SnapshotStore, agentID string, asJSON bool) error {
	payload, err := store.Read(ctx, agentID)
	if err != nil {
		if errors.Is(err, memory.ErrSnapshotNotFound) {
			return fmt.Errorf("no snapshot stored for agent %q", agentID)
		}
		return err
	}
	if asJSON {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	snapshot, meta, err := memory.DeserializeSnapshot(payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Agent: %s\n", meta.AgentID)
	fmt.Fprintf(w, "Schema version: %d\n", meta.SchemaVersion)
	fmt.Fprintf(w, "Epoch: %d\n", snapshot.EpochID())
	if snapshot.LastCompactionTS != nil {
		fmt.Fprintf(w, "Last compaction: %s\n", formatTS(*snapshot.LastCompactionTS))
	} else {
		fmt.Fprintln(w, "Last compaction: never")
	}
	messages := snapshot.BuildMessages()
	fmt.Fprintf(w, "Messages: %d (~%d tokens)\n\n", len(messages), memory.EstimateTokens(messages))
	for i, msg := range messages {
		fmt.Fprintf(w, "[%d] %s\n", i, describeMessage(msg))
	}
	return nil
}

func describeMessage(msg providers.Message) string {
	if calls := msg.ToolCalls(); len(calls) > 0 {
		names := make([]string, 0, len(calls))
		for _, call := range calls {
			names = append(names, call.Name)
		}
		return fmt.Sprintf("%s: tool calls %s", msg.Role, strings.Join(names, ", "))
	}
	if result, ok := msg.ToolResult(); ok {
		if result.ToolError != "" {
			return fmt.Sprintf("%s: %s error: %s", msg.Role, result.ToolName, preview(result.ToolError))
		}
		return fmt.Sprintf("%s: %s result: %s", msg.Role, result.ToolName, preview(fmt.Sprint(result.ToolResult)))
	}
	text := fmt.Sprintf("%s: %s", msg.Role, preview(msg.Content))
	if media := len(msg.ImageURLs) + len(msg.AudioURLs) + len(msg.VideoURLs); media > 0 {
		text += fmt.Sprintf(" (+%d media)", media)
	}
	return text
}

func validateSnapshot(ctx context.Context, w io.Writer, store memory.SnapshotStore, agentID string) error {
	payload, err := store.Read(ctx, agentID)
	if err != nil {
		if errors.Is(err, memory.ErrSnapshotNotFound) {
			fmt.Fprintf(w, "No snapshot stored for agent %q; it will be rebuilt on start.\n", agentID)
			return nil
		}
		return err
	}
	if !memory.ValidateSnapshot(payload) {
		return fmt.Errorf("snapshot for agent %q is invalid; run `autobyteus snapshot rebuild`", agentID)
	}
	snapshot, _, err := memory.DeserializeSnapshot(payload)
	if err != nil {
		return fmt.Errorf("snapshot for agent %q cannot be restored: %w", agentID, err)
	}
	fmt.Fprintf(w, "Snapshot for agent %q is valid ✓ (%d messages)\n", agentID, snapshot.Len())
	return nil
}

func rebuildSnapshot(ctx context.Context, w io.Writer, cfg *config.Config, store memory.SnapshotStore) error {
	// The manager gets no snapshot store so bootstrap ignores the cache.
	mgr, err := memory.OpenManager(memory.ManagerConfig{
		AgentID: cfg.Agent.ID,
		Dir:     cfg.MemoryDir(),
		Policy:  agent.CompactionPolicyFromConfig(cfg.Memory),
	}, nil, memory.NewHeuristicSummarizer())
	if err != nil {
		return err
	}
	defer mgr.Close()

	registry := agent.NewToolRegistryFromConfig(cfg)

	result, err := memory.NewBootstrapper(nil, nil).Bootstrap(ctx, mgr, agent.SystemPromptFromConfig(cfg, registry), memory.BootstrapOptions{})
	if err != nil {
		return err
	}
	payload := memory.SerializeSnapshot(mgr.Transcript(), memory.SnapshotMetadata{
		SchemaVersion: memory.SnapshotSchemaVersion,
		AgentID:       cfg.Agent.ID,
	})
	if err := store.Write(ctx, cfg.Agent.ID, payload); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	fmt.Fprintf(w, "Rebuilt snapshot for agent %q ✓ (%d messages)\n", cfg.Agent.ID, result.Messages)
	return nil
}

func newMemoryCommand(configPath func() string) *cobra.Command {
	memoryCmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect the agent's durable memory store",
	}

	var (
		showRaw bool
		turnID  string
	)
	list := &cobra.Command{
		Use:     "list",
		Short:   "List episodic summaries and semantic facts",
		Example: "  autobyteus memory list\n  autobyteus memory list --raw\n  autobyteus memory list --turn turn_0123456789abcdef",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath())
			if err != nil {
				return err
			}
			path := agentStorePath(cfg)
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Memory store not initialized: %s\n", path)
				return nil
			}
			store, err := memory.NewSQLiteStore(path)
			if err != nil {
				return err
			}
			defer store.Close()
			return listMemory(cmd.Context(), cmd.OutOrStdout(), store, showRaw || turnID != "", turnID)
		},
	}
	list.Flags().BoolVar(&showRaw, "raw", false, "Also list raw trace items")
	list.Flags().StringVar(&turnID, "turn", "", "List raw trace items of one turn")

	memoryCmd.AddCommand(list)
	return memoryCmd
}

func listMemory(ctx context.Context, w io.Writer, store memory.Store, showRaw bool, turnID string) error {
	episodic, err := store.Episodic(ctx)
	if err != nil {
		return err
	}
	semantic, err := store.Semantic(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Episodic (%d)\n", len(episodic))
	for _, item := range episodic {
		fmt.Fprintf(w, "  %s  %s  turns=%s\n", item.ID, formatTS(item.TS), strings.Join(item.TurnIDs, ","))
		for _, line := range strings.Split(strings.TrimSpace(item.Summary), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
	fmt.Fprintf(w, "Semantic (%d)\n", len(semantic))
	for _, item := range semantic {
		fmt.Fprintf(w, "  %s  %s  %s\n", item.ID, formatTS(item.TS), item.Fact)
	}

	if !showRaw {
		return nil
	}
	var raw []memory.RawTraceItem
	if turnID != "" {
		raw, err = store.RawTraceByTurn(ctx, turnID)
	} else {
		raw, err = store.RawTrace(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Raw (%d)\n", len(raw))
	for _, item := range raw {
		detail := preview(item.Content)
		switch {
		case item.ToolError != "":
			detail = fmt.Sprintf("%s error: %s", item.ToolName, preview(item.ToolError))
		case item.ToolName != "" && item.ToolResult != nil:
			detail = fmt.Sprintf("%s -> %s", item.ToolName, preview(fmt.Sprint(item.ToolResult)))
		case item.ToolName != "":
			detail = item.ToolName
		}
		fmt.Fprintf(w, "  %s #%d %-12s %s\n", item.TurnID, item.Seq, item.TraceType, detail)
	}
	return nil
}

func newModelsCommand(configPath func() string) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the model catalog used for token budgets",
	}
	list := &cobra.Command{
		Use:     "list",
		Short:   "List known models and their context windows",
		Example: "  autobyteus models list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath())
			if err != nil {
				return err
			}
			catalog, err := providers.LoadModelCatalog(cfg.ModelCatalogPath())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, name := range catalog.Names() {
				meta, _ := catalog.Lookup(name)
				fmt.Fprintf(w, "%-32s context=%s max_output=%s\n", name, intOr(meta.MaxContextTokens), intOr(meta.DefaultMaxOutputTokens))
			}
			return nil
		},
	}
	modelsCmd.AddCommand(list)
	return modelsCmd
}

func intOr(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func formatTS(ts float64) string {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format(time.RFC3339)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= previewChars {
		return s
	}
	return string([]rune(s)[:previewChars]) + "..."
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
