package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetriever_NewestFirstWithLimits(t *testing.T) {
	store := newTestStore(t)
	mustAdd(t, store,
		&EpisodicItem{ID: "ep_old", TS: 1, Summary: "old", Salience: 0.99},
		&EpisodicItem{ID: "ep_b", TS: 3, Summary: "b"},
		&EpisodicItem{ID: "ep_a", TS: 3, Summary: "a"},
		&SemanticItem{ID: "s1", TS: 1, Fact: "one"},
		&SemanticItem{ID: "s2", TS: 2, Fact: "two"},
	)
	r := NewRetriever(store)

	bundle, err := r.Retrieve(context.Background(), 2, 5)
	require.NoError(t, err)
	require.Len(t, bundle.Episodic, 2)
	assert.Equal(t, "ep_a", bundle.Episodic[0].ID)
	assert.Equal(t, "ep_b", bundle.Episodic[1].ID)
	require.Len(t, bundle.Semantic, 2)
	assert.Equal(t, "s2", bundle.Semantic[0].ID)
}

func TestRetriever_ZeroLimitsAndEmptyStore(t *testing.T) {
	store := newTestStore(t)
	r := NewRetriever(store)

	bundle, err := r.Retrieve(context.Background(), 6, 12)
	require.NoError(t, err)
	assert.NotNil(t, bundle.Episodic)
	assert.NotNil(t, bundle.Semantic)
	assert.True(t, bundle.Empty())

	mustAdd(t, store, &SemanticItem{ID: "s1", TS: 1, Fact: "one"})
	bundle, err = r.Retrieve(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.True(t, bundle.Empty())
}
