package memory

import (
	"context"
	"fmt"

	"github.com/AutoByteus/autobyteus-sub000/pkg/logger"
	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
)

// BootstrapOptions bounds a rebuild. Zero values fall back to the manager's
// compaction policy; a negative value asks for none of that kind.
type BootstrapOptions struct {
	MaxEpisodic  int
	MaxSemantic  int
	RawTailTurns int
}

// BootstrapResult reports how the working context was restored.
type BootstrapResult struct {
	FromCache bool
	Persisted bool
	Messages  int
}

// Bootstrapper restores working memory at agent start, preferring a valid
// cached snapshot over a rebuild from the store.
type Bootstrapper struct {
	store     SnapshotStore
	retriever BundleRetriever
	builder   SnapshotBuilder
}

// NewBootstrapper takes fallbacks used when the manager has no snapshot
// store; a nil retriever uses the manager's own.
func NewBootstrapper(store SnapshotStore, retriever BundleRetriever) *Bootstrapper {
	return &Bootstrapper{store: store, retriever: retriever}
}

// Bootstrap never fails because of a missing or corrupt cache. Errors come
// only from the rebuild path reading the item store.
func (b *Bootstrapper) Bootstrap(ctx context.Context, m *Manager, systemPrompt string, opts BootstrapOptions) (BootstrapResult, error) {
	store := m.SnapshotStore()
	if store == nil {
		store = b.store
	}
	agentID := m.AgentID()

	if store != nil {
		if messages, ts, ok := b.loadCached(ctx, store, agentID); ok {
			m.ResetWorkingContextSnapshot(messages, ts)
			logger.InfoCF("memory", "Working context restored from snapshot", map[string]interface{}{
				"agent_id": agentID,
				"messages": len(messages),
			})
			return BootstrapResult{FromCache: true, Messages: len(messages)}, nil
		}
	}

	policy := m.Policy()
	if opts.MaxEpisodic == 0 {
		opts.MaxEpisodic = policy.MaxEpisodicItems
	}
	if opts.MaxSemantic == 0 {
		opts.MaxSemantic = policy.MaxSemanticItems
	}
	if opts.RawTailTurns == 0 {
		opts.RawTailTurns = policy.RawTailTurns
	}
	opts.MaxEpisodic = max(opts.MaxEpisodic, 0)
	opts.MaxSemantic = max(opts.MaxSemantic, 0)
	opts.RawTailTurns = max(opts.RawTailTurns, 0)

	var retriever BundleRetriever = m.Retriever()
	if b.retriever != nil {
		retriever = b.retriever
	}
	bundle, err := retriever.Retrieve(ctx, opts.MaxEpisodic, opts.MaxSemantic)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("bootstrap retrieve: %w", err)
	}
	tail, err := m.RawTail(ctx, opts.RawTailTurns)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("bootstrap: %w", err)
	}
	messages := b.builder.Build(systemPrompt, bundle, tail)
	m.ResetWorkingContextSnapshot(messages, nil)

	result := BootstrapResult{Messages: len(messages)}
	if store != nil {
		payload := SerializeSnapshot(m.Transcript(), SnapshotMetadata{SchemaVersion: SnapshotSchemaVersion, AgentID: agentID})
		if err := store.Write(ctx, agentID, payload); err != nil {
			logger.WarnCF("memory", "Rebuilt snapshot not persisted", map[string]interface{}{
				"agent_id": agentID,
				"error":    err.Error(),
			})
		} else {
			result.Persisted = true
		}
	}
	logger.InfoCF("memory", "Working context rebuilt from store", map[string]interface{}{
		"agent_id":   agentID,
		"episodic":   len(bundle.Episodic),
		"semantic":   len(bundle.Semantic),
		"tail_items": len(tail),
	})
	return result, nil
}

func (b *Bootstrapper) loadCached(ctx context.Context, store SnapshotStore, agentID string) ([]providers.Message, *float64, bool) {
	warn := func(reason string, err error) {
		fields := map[string]interface{}{"agent_id": agentID, "reason": reason}
		if err != nil {
			fields["error"] = err.Error()
		}
		logger.WarnCF("memory", "Snapshot cache unusable, rebuilding", fields)
	}

	exists, err := store.Exists(ctx, agentID)
	if err != nil {
		warn("lookup failed", err)
		return nil, nil, false
	}
	if !exists {
		return nil, nil, false
	}
	payload, err := store.Read(ctx, agentID)
	if err != nil {
		warn("read failed", err)
		return nil, nil, false
	}
	if !ValidateSnapshot(payload) {
		warn("validation failed", nil)
		return nil, nil, false
	}
	snap, meta, err := DeserializeSnapshot(payload)
	if err != nil {
		warn("decode failed", err)
		return nil, nil, false
	}
	if meta.AgentID != agentID {
		warn("agent id mismatch", nil)
		return nil, nil, false
	}
	return snap.BuildMessages(), snap.LastCompactionTS, true
}
