package memory

import (
	"testing"

	"github.com/AutoByteus/autobyteus-sub000/pkg/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestResolveTokenBudget_Precedence(t *testing.T) {
	policy := CompactionPolicy{TriggerRatio: 0.8, SafetyMarginTokens: 256}
	model := &providers.ModelMetadata{
		Name:                      "m",
		MaxContextTokens:          intp(100000),
		DefaultMaxOutputTokens:    intp(8000),
		DefaultCompactionRatio:    floatp(0.7),
		DefaultSafetyMarginTokens: intp(1000),
	}

	tests := []struct {
		name  string
		model *providers.ModelMetadata
		cfg   providers.LLMConfig
		want  *TokenBudget
	}{
		{
			name:  "model defaults beat policy",
			model: model,
			want:  &TokenBudget{MaxContextTokens: 100000, MaxOutputTokens: 8000, SafetyMarginTokens: 1000, CompactionRatio: 0.7, InputBudget: 91000},
		},
		{
			name:  "config overrides beat model defaults",
			model: model,
			cfg:   providers.LLMConfig{MaxTokens: intp(2000), CompactionRatio: floatp(0.5), SafetyMarginTokens: intp(500)},
			want:  &TokenBudget{MaxContextTokens: 100000, MaxOutputTokens: 2000, SafetyMarginTokens: 500, CompactionRatio: 0.5, InputBudget: 97500},
		},
		{
			name:  "model context beats token limit",
			model: model,
			cfg:   providers.LLMConfig{TokenLimit: intp(4096)},
			want:  &TokenBudget{MaxContextTokens: 100000, MaxOutputTokens: 8000, SafetyMarginTokens: 1000, CompactionRatio: 0.7, InputBudget: 91000},
		},
		{
			name: "token limit is the last context fallback",
			cfg:  providers.LLMConfig{TokenLimit: intp(16000), MaxTokens: intp(1000)},
			want: &TokenBudget{MaxContextTokens: 16000, MaxOutputTokens: 1000, SafetyMarginTokens: 256, CompactionRatio: 0.8, InputBudget: 14744},
		},
		{
			name:  "model without context falls back to token limit",
			model: &providers.ModelMetadata{Name: "bare", DefaultMaxOutputTokens: intp(100)},
			cfg:   providers.LLMConfig{TokenLimit: intp(1000)},
			want:  &TokenBudget{MaxContextTokens: 1000, MaxOutputTokens: 100, SafetyMarginTokens: 256, CompactionRatio: 0.8, InputBudget: 644},
		},
		{
			name:  "input budget is clamped at zero",
			model: &providers.ModelMetadata{Name: "tiny", MaxContextTokens: intp(500)},
			cfg:   providers.LLMConfig{MaxTokens: intp(400)},
			want:  &TokenBudget{MaxContextTokens: 500, MaxOutputTokens: 400, SafetyMarginTokens: 256, CompactionRatio: 0.8, InputBudget: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTokenBudget(tt.model, tt.cfg, policy)
			require.NotNil(t, got)
			assert.Equal(t, tt.want.MaxContextTokens, got.MaxContextTokens)
			assert.Equal(t, tt.want.MaxOutputTokens, got.MaxOutputTokens)
			assert.Equal(t, tt.want.SafetyMarginTokens, got.SafetyMarginTokens)
			assert.InDelta(t, tt.want.CompactionRatio, got.CompactionRatio, 1e-9)
			assert.Equal(t, tt.want.InputBudget, got.InputBudget)
		})
	}
}

func TestResolveTokenBudget_NilWithoutContextSize(t *testing.T) {
	policy := DefaultCompactionPolicy()
	assert.Nil(t, ResolveTokenBudget(nil, providers.LLMConfig{}, policy))
	assert.Nil(t, ResolveTokenBudget(&providers.ModelMetadata{Name: "x", DefaultMaxOutputTokens: intp(10)},
		providers.LLMConfig{MaxTokens: intp(5), CompactionRatio: floatp(0.5)}, policy))
	assert.Nil(t, ResolveTokenBudget(nil, providers.LLMConfig{TokenLimit: intp(0)}, policy))
}

func TestTokenBudget_CompactionThreshold(t *testing.T) {
	b := TokenBudget{CompactionRatio: 0.5, InputBudget: 1000}
	assert.Equal(t, 500, b.CompactionThreshold())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(nil))
	msgs := []providers.Message{
		providers.UserMessage("hi"),
		providers.UserMessage(string(make([]byte, 100))),
	}
	assert.Equal(t, 8+40, EstimateTokens(msgs))
}
