package agent

import (
	"fmt"
	"os"
	"strings"

	"github.com/AutoByteus/autobyteus-sub000/pkg/config"
	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/memory"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
	"github.com/AutoByteus/autobyteus-sub000/pkg/tools"
)

// LLMOverrides converts the config's model overrides, where zero means
// unset, into provider overrides. Temperature is always sent.
func LLMOverrides(c config.LLMConfig) providers.LLMConfig {
	out := providers.LLMConfig{}
	temperature := c.Temperature
	out.Temperature = &temperature
	if c.MaxTokens > 0 {
		v := c.MaxTokens
		out.MaxTokens = &v
	}
	if c.CompactionRatio > 0 {
		v := c.CompactionRatio
		out.CompactionRatio = &v
	}
	if c.SafetyMarginTokens > 0 {
		v := c.SafetyMarginTokens
		out.SafetyMarginTokens = &v
	}
	if c.TokenLimit > 0 {
		v := c.TokenLimit
		out.TokenLimit = &v
	}
	return out
}

// CompactionPolicyFromConfig fills unset memory settings from the defaults.
func CompactionPolicyFromConfig(c config.MemoryConfig) memory.CompactionPolicy {
	policy := memory.DefaultCompactionPolicy()
	if c.TriggerRatio > 0 {
		policy.TriggerRatio = c.TriggerRatio
	}
	if c.SafetyMarginTokens > 0 {
		policy.SafetyMarginTokens = c.SafetyMarginTokens
	}
	if c.RawTailTurns > 0 {
		policy.RawTailTurns = c.RawTailTurns
	}
	if c.MaxEpisodicItems > 0 {
		policy.MaxEpisodicItems = c.MaxEpisodicItems
	}
	if c.MaxSemanticItems > 0 {
		policy.MaxSemanticItems = c.MaxSemanticItems
	}
	return policy
}

// OpenSnapshotStore opens the snapshot backend the config names.
func OpenSnapshotStore(cfg *config.Config) (memory.ClosableSnapshotStore, error) {
	return memory.OpenSnapshotStore(memory.SnapshotStoreOptions{
		Backend:       cfg.Memory.SnapshotBackend,
		Dir:           cfg.MemoryDir(),
		RedisAddr:     cfg.Memory.RedisAddr,
		RedisPassword: cfg.Memory.RedisPassword,
		RedisDB:       cfg.Memory.RedisDB,
	})
}

// NewToolRegistryFromConfig registers the workspace file tools.
func NewToolRegistryFromConfig(cfg *config.Config) *tools.ToolRegistry {
	return tools.NewFileToolRegistry(cfg.WorkspacePath(), cfg.Agent.RestrictToWorkspace, cfg.Tools.AllowWrite, cfg.Tools.MaxReadBytes)
}

// SystemPromptFromConfig renders the system prompt an agent built from cfg
// starts with. Offline snapshot rebuilds use it so they match live agents.
func SystemPromptFromConfig(cfg *config.Config, registry *tools.ToolRegistry) string {
	contextBuilder := NewContextBuilder(cfg.WorkspacePath())
	contextBuilder.SetInstructions(cfg.Agent.SystemPrompt)
	contextBuilder.SetToolsRegistry(registry)
	return contextBuilder.BuildSystemPrompt()
}

// NewFromConfig builds an agent with its memory, snapshot store, model
// budget and file tools, all taken from cfg.
func NewFromConfig(cfg *config.Config, provider providers.LLMProvider) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	catalog, err := providers.LoadModelCatalog(cfg.ModelCatalogPath())
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Agent.Model)
	if model == "" {
		model = provider.GetDefaultModel()
	}
	llm := LLMOverrides(cfg.LLM)
	policy := CompactionPolicyFromConfig(cfg.Memory)

	meta, _ := catalog.Lookup(model)
	budget := memory.ResolveTokenBudget(meta, llm, policy)
	if budget == nil {
		logger.WarnCF("agent", "No context size known for model; budget-driven compaction disabled",
			map[string]interface{}{"model": model})
	}

	snapshots, err := OpenSnapshotStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	var summarizer memory.Summarizer
	if strings.EqualFold(strings.TrimSpace(cfg.Memory.Summarizer), "heuristic") {
		summarizer = memory.NewHeuristicSummarizer()
	} else {
		summarizer = memory.NewLLMSummarizer(provider, model, llm.Options())
	}

	mgr, err := memory.OpenManager(memory.ManagerConfig{
		AgentID: cfg.Agent.ID,
		Dir:     cfg.MemoryDir(),
		Policy:  policy,
		Budget:  budget,
	}, snapshots, summarizer)
	if err != nil {
		_ = snapshots.Close()
		return nil, err
	}

	registry := NewToolRegistryFromConfig(cfg)

	return New(Options{
		Provider:      provider,
		Model:         model,
		Memory:        mgr,
		Tools:         registry,
		LLM:           llm,
		SystemPrompt:  SystemPromptFromConfig(cfg, registry),
		MaxIterations: cfg.Agent.MaxToolIterations,
		Closers:       []func() error{snapshots.Close, mgr.Close},
	})
}
