package memory

import "context"

// Store is the durable, append-only memory log.
type Store interface {
	Close() error
	// Add writes all items in one transaction. Items are never updated; an
	// existing id or (turn_id, seq) yields ErrImmutableItem.
	Add(ctx context.Context, items ...Item) error
	// RawTrace returns every raw item in observation order.
	RawTrace(ctx context.Context) ([]RawTraceItem, error)
	RawTraceByTurn(ctx context.Context, turnID string) ([]RawTraceItem, error)
	Episodic(ctx context.Context) ([]EpisodicItem, error)
	Semantic(ctx context.Context) ([]SemanticItem, error)
}

// Summarizer condenses raw turns into an episodic summary plus facts.
type Summarizer interface {
	Summarize(ctx context.Context, items []RawTraceItem) (Summary, error)
}

// Summary is the output of a Summarizer.
type Summary struct {
	Text  string
	Facts []string
}

// BundleRetriever produces bounded memory bundles.
type BundleRetriever interface {
	Retrieve(ctx context.Context, maxEpisodic, maxSemantic int) (MemoryBundle, error)
}

// SnapshotStore persists serialized working context snapshots per agent.
// Writes are last-writer-wins.
type SnapshotStore interface {
	Exists(ctx context.Context, agentID string) (bool, error)
	// Read returns ErrSnapshotNotFound when nothing is stored.
	Read(ctx context.Context, agentID string) (map[string]interface{}, error)
	Write(ctx context.Context, agentID string, payload map[string]interface{}) error
}
