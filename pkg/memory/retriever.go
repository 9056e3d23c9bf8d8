package memory

import (
	"context"
	"fmt"
)

// Retriever returns the most recent derived memory. Items are ordered newest
// first with ties broken by ascending id; salience does not affect order.
type Retriever struct {
	store Store
}

func NewRetriever(store Store) *Retriever {
	return &Retriever{store: store}
}

func (r *Retriever) Retrieve(ctx context.Context, maxEpisodic, maxSemantic int) (MemoryBundle, error) {
	bundle := MemoryBundle{Episodic: []EpisodicItem{}, Semantic: []SemanticItem{}}

	if maxEpisodic > 0 {
		episodic, err := r.store.Episodic(ctx)
		if err != nil {
			return MemoryBundle{}, fmt.Errorf("retrieve episodic: %w", err)
		}
		sortEpisodic(episodic)
		if len(episodic) > maxEpisodic {
			episodic = episodic[:maxEpisodic]
		}
		bundle.Episodic = episodic
	}

	if maxSemantic > 0 {
		semantic, err := r.store.Semantic(ctx)
		if err != nil {
			return MemoryBundle{}, fmt.Errorf("retrieve semantic: %w", err)
		}
		sortSemantic(semantic)
		if len(semantic) > maxSemantic {
			semantic = semantic[:maxSemantic]
		}
		bundle.Semantic = semantic
	}
	return bundle, nil
}
